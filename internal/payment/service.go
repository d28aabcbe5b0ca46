// Package payment keeps track of payment links sent to customers. Links are
// recorded locally; collecting the money happens outside this service.
package payment

import (
	"context"
	"errors"
	"strings"
	"time"

	"motoparca-backend/internal/config"
	"motoparca-backend/internal/database"
	"motoparca-backend/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrLinkNotFound   = errors.New("ödeme linki bulunamadı")
	ErrOrderNotFound  = errors.New("sipariş bulunamadı")
	ErrOrderCancelled = errors.New("iptal edilmiş sipariş için ödeme linki oluşturulamaz")
	ErrInvalidAmount  = errors.New("tutar sıfırdan büyük olmalı")
	ErrNotActive      = errors.New("ödeme linki aktif değil")
	ErrExpired        = errors.New("ödeme linkinin süresi dolmuş")
)

type Service struct {
	db  *gorm.DB
	cfg config.PaymentLinkConfig
	now func() time.Time
	log *zap.Logger
}

func NewService(db *gorm.DB, cfg config.PaymentLinkConfig) *Service {
	return &Service{db: db, cfg: cfg, now: time.Now, log: zap.L().Named("payment")}
}

// CreateInput: Amount may be omitted when OrderID is given, the order total is used then.
type CreateInput struct {
	OrderID        *uint            `json:"order_id"`
	Amount         *decimal.Decimal `json:"amount"`
	Description    string           `json:"description" validate:"max=255"`
	CustomerEmail  string           `json:"customer_email" validate:"omitempty,email,max=150"`
	ExpiresInHours int              `json:"expires_in_hours" validate:"omitempty,min=1,max=720"`
}

func (s *Service) linkURL(token string) string {
	return strings.TrimRight(s.cfg.BaseURL, "/") + "/" + token
}

func (s *Service) ttl(hours int) time.Duration {
	if hours > 0 {
		return time.Duration(hours) * time.Hour
	}
	if s.cfg.DefaultTTL > 0 {
		return s.cfg.DefaultTTL
	}
	return 72 * time.Hour
}

func lockRow(tx *gorm.DB) *gorm.DB {
	if database.IsPostgres(tx) {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

func (s *Service) Create(ctx context.Context, in CreateInput) (*models.PaymentLink, error) {
	link := models.PaymentLink{
		OrderID:       in.OrderID,
		Description:   strings.TrimSpace(in.Description),
		CustomerEmail: strings.ToLower(strings.TrimSpace(in.CustomerEmail)),
		Status:        models.PaymentLinkActive,
	}
	if in.Amount != nil {
		link.Amount = in.Amount.Round(2)
	}

	if in.OrderID != nil {
		var o models.Order
		err := s.db.WithContext(ctx).Preload("Customer").First(&o, *in.OrderID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		if err != nil {
			return nil, err
		}
		if o.Status == models.OrderStatusCancelled {
			return nil, ErrOrderCancelled
		}
		if in.Amount == nil {
			link.Amount = o.Total
		}
		if link.CustomerEmail == "" {
			link.CustomerEmail = o.Customer.Email
		}
		if link.Description == "" {
			link.Description = "Sipariş " + o.OrderNumber
		}
	}

	if !link.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	link.Token = uuid.NewString()
	link.URL = s.linkURL(link.Token)
	link.ExpiresAt = s.now().Add(s.ttl(in.ExpiresInHours))

	if err := s.db.WithContext(ctx).Omit("Order").Create(&link).Error; err != nil {
		return nil, err
	}
	s.log.Info("ödeme linki oluşturuldu", zap.Uint("id", link.ID), zap.String("amount", link.Amount.StringFixed(2)))
	return &link, nil
}

func (s *Service) Get(ctx context.Context, id uint) (*models.PaymentLink, error) {
	var link models.PaymentLink
	err := s.db.WithContext(ctx).Preload("Order").First(&link, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrLinkNotFound
	}
	if err != nil {
		return nil, err
	}
	return &link, nil
}

// Resolve finds a link by token. An active link past its expiry is marked expired on the way out.
func (s *Service) Resolve(ctx context.Context, token string) (*models.PaymentLink, error) {
	if _, err := uuid.Parse(token); err != nil {
		return nil, ErrLinkNotFound
	}

	var link models.PaymentLink
	err := s.db.WithContext(ctx).Preload("Order").Where("token = ?", token).First(&link).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrLinkNotFound
	}
	if err != nil {
		return nil, err
	}

	if link.Status == models.PaymentLinkActive && link.IsExpiredAt(s.now()) {
		res := s.db.WithContext(ctx).Model(&models.PaymentLink{}).
			Where("id = ? AND status = ?", link.ID, models.PaymentLinkActive).
			Update("status", models.PaymentLinkExpired)
		if res.Error != nil {
			return nil, res.Error
		}
		link.Status = models.PaymentLinkExpired
	}
	return &link, nil
}

// transition loads the link under lock and hands it to apply inside the same transaction.
func (s *Service) transition(ctx context.Context, id uint, apply func(tx *gorm.DB, link *models.PaymentLink) error) (before, after *models.PaymentLink, err error) {
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var link models.PaymentLink
		err := lockRow(tx).First(&link, id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrLinkNotFound
		}
		if err != nil {
			return err
		}
		prev := link
		before = &prev

		if err := apply(tx, &link); err != nil {
			return err
		}
		after = &link
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return before, after, nil
}

func (s *Service) Cancel(ctx context.Context, id uint) (before, after *models.PaymentLink, err error) {
	return s.transition(ctx, id, func(tx *gorm.DB, link *models.PaymentLink) error {
		if link.Status != models.PaymentLinkActive {
			return ErrNotActive
		}
		link.Status = models.PaymentLinkCancelled
		return tx.Model(&models.PaymentLink{}).Where("id = ?", link.ID).Update("status", link.Status).Error
	})
}

// MarkPaid records the payment. A pending order of the link moves to processing.
func (s *Service) MarkPaid(ctx context.Context, id uint) (before, after *models.PaymentLink, err error) {
	before, after, err = s.transition(ctx, id, func(tx *gorm.DB, link *models.PaymentLink) error {
		if link.Status != models.PaymentLinkActive {
			return ErrNotActive
		}
		now := s.now()
		if link.IsExpiredAt(now) {
			return ErrExpired
		}

		link.Status = models.PaymentLinkPaid
		link.PaidAt = &now
		if err := tx.Model(&models.PaymentLink{}).Where("id = ?", link.ID).
			Updates(map[string]any{"status": link.Status, "paid_at": now}).Error; err != nil {
			return err
		}

		if link.OrderID == nil {
			return nil
		}
		return tx.Model(&models.Order{}).
			Where("id = ? AND status = ?", *link.OrderID, models.OrderStatusPending).
			Update("status", models.OrderStatusProcessing).Error
	})
	if err != nil {
		return nil, nil, err
	}

	s.log.Info("ödeme linki ödendi", zap.Uint("id", after.ID), zap.String("amount", after.Amount.StringFixed(2)))
	return before, after, nil
}

// ExpireStale marks every active link whose expiry is at or before now as expired.
func (s *Service) ExpireStale(ctx context.Context, now time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Model(&models.PaymentLink{}).
		Where("status = ? AND expires_at <= ?", models.PaymentLinkActive, now).
		Update("status", models.PaymentLinkExpired)
	return res.RowsAffected, res.Error
}
