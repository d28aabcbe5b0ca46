package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ShippingSetting: tek satırlık kargo ayarı tablosu
type ShippingSetting struct {
	ID                    uint            `gorm:"primaryKey"`
	FlatRate              decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	FreeShippingThreshold decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	IsFreeShippingEnabled bool            `gorm:"not null"`
	IsActive              bool            `gorm:"not null"`
	CreatedAt             time.Time
	UpdatedAt             time.Time
}
