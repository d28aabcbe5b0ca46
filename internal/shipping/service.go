// Package shipping computes checkout shipping cost from the flat rate and free-shipping threshold.
package shipping

import (
	"context"
	"errors"
	"fmt"

	"motoparca-backend/internal/config"
	"motoparca-backend/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Service struct {
	db       *gorm.DB
	defaults models.ShippingSetting
}

func NewService(db *gorm.DB, cfg config.ShippingConfig) *Service {
	return &Service{
		db: db,
		defaults: models.ShippingSetting{
			FlatRate:              decimal.NewFromFloat(cfg.DefaultFlatRate).Round(2),
			FreeShippingThreshold: decimal.NewFromFloat(cfg.DefaultFreeThreshold).Round(2),
			IsFreeShippingEnabled: true,
			IsActive:              true,
		},
	}
}

// With returns a copy bound to db (usually a transaction).
func (s *Service) With(db *gorm.DB) *Service {
	n := *s
	n.db = db
	return &n
}

type Quote struct {
	Subtotal              decimal.Decimal `json:"subtotal"`
	Cost                  decimal.Decimal `json:"cost"`
	IsFree                bool            `json:"is_free"`
	FreeShippingThreshold decimal.Decimal `json:"free_shipping_threshold"`
	RemainingForFree      decimal.Decimal `json:"remaining_for_free"`
}

// Settings returns the stored row or the configured defaults when none exists.
func (s *Service) Settings(ctx context.Context) (models.ShippingSetting, error) {
	var st models.ShippingSetting
	err := s.db.WithContext(ctx).Order("id asc").First(&st).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return s.defaults, nil
	}
	if err != nil {
		return models.ShippingSetting{}, fmt.Errorf("kargo ayarları okunamadı: %w", err)
	}
	return st, nil
}

// Calculate loads settings and quotes shipping for subtotal.
func (s *Service) Calculate(ctx context.Context, subtotal decimal.Decimal) (Quote, error) {
	st, err := s.Settings(ctx)
	if err != nil {
		return Quote{}, err
	}
	return QuoteFor(st, subtotal), nil
}

// QuoteFor is the pure calculation.
func QuoteFor(st models.ShippingSetting, subtotal decimal.Decimal) Quote {
	q := Quote{Subtotal: subtotal, Cost: decimal.Zero, RemainingForFree: decimal.Zero}
	if st.IsFreeShippingEnabled {
		q.FreeShippingThreshold = st.FreeShippingThreshold
	}

	// boş sepet ya da kargo kapalıysa ücret yok
	if !subtotal.IsPositive() || !st.IsActive {
		q.IsFree = true
		return q
	}

	if st.IsFreeShippingEnabled && st.FreeShippingThreshold.IsPositive() {
		if subtotal.GreaterThanOrEqual(st.FreeShippingThreshold) {
			q.IsFree = true
			return q
		}
		q.RemainingForFree = st.FreeShippingThreshold.Sub(subtotal)
	}

	q.Cost = st.FlatRate
	q.IsFree = !st.FlatRate.IsPositive()
	return q
}

// Save upserts the single settings row.
func (s *Service) Save(ctx context.Context, in models.ShippingSetting) (models.ShippingSetting, error) {
	var st models.ShippingSetting
	err := s.db.WithContext(ctx).Order("id asc").First(&st).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return models.ShippingSetting{}, fmt.Errorf("kargo ayarları okunamadı: %w", err)
	}

	st.FlatRate = in.FlatRate.Round(2)
	st.FreeShippingThreshold = in.FreeShippingThreshold.Round(2)
	st.IsFreeShippingEnabled = in.IsFreeShippingEnabled
	st.IsActive = in.IsActive

	if err := s.db.WithContext(ctx).Save(&st).Error; err != nil {
		return models.ShippingSetting{}, fmt.Errorf("kargo ayarları kaydedilemedi: %w", err)
	}
	return st, nil
}
