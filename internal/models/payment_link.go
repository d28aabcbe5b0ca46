package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentLinkStatus string

const (
	PaymentLinkActive    PaymentLinkStatus = "active"
	PaymentLinkPaid      PaymentLinkStatus = "paid"
	PaymentLinkExpired   PaymentLinkStatus = "expired"
	PaymentLinkCancelled PaymentLinkStatus = "cancelled"
)

type PaymentLink struct {
	ID            uint   `gorm:"primaryKey"`
	OrderID       *uint  `gorm:"index"`
	Order         *Order
	Token         string            `gorm:"size:36;uniqueIndex;not null"`
	Amount        decimal.Decimal   `gorm:"type:numeric(12,2);not null"`
	Description   string            `gorm:"size:255"`
	CustomerEmail string            `gorm:"size:150"`
	Status        PaymentLinkStatus `gorm:"size:20;index;not null"`
	URL           string            `gorm:"size:500;not null"`
	ExpiresAt     time.Time         `gorm:"index;not null"`
	PaidAt        *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (p *PaymentLink) IsExpiredAt(t time.Time) bool {
	return !t.Before(p.ExpiresAt)
}
