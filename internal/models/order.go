package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

type PaymentMethod string

const (
	PaymentMethodCreditCard   PaymentMethod = "credit_card"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodPaymentLink  PaymentMethod = "payment_link"
)

type Order struct {
	ID            uint   `gorm:"primaryKey"`
	OrderNumber   string `gorm:"size:20;uniqueIndex;not null"`
	CustomerID    uint   `gorm:"index;not null"`
	Customer      Customer
	Status        OrderStatus     `gorm:"size:20;index;not null"`
	Subtotal      decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	ShippingCost  decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Total         decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	PaymentMethod PaymentMethod   `gorm:"size:20;not null"`
	Note          string          `gorm:"size:1000"`

	// Teslimat bilgisi sipariş anındaki haliyle saklanır
	ShipFullName   string `gorm:"size:200;not null"`
	ShipPhone      string `gorm:"size:20;not null"`
	ShipCity       string `gorm:"size:100;not null"`
	ShipDistrict   string `gorm:"size:100;not null"`
	ShipLine       string `gorm:"size:500;not null"`
	ShipPostalCode string `gorm:"size:10"`

	CreatedAt time.Time `gorm:"index"`
	UpdatedAt time.Time

	Items []OrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
}

// OrderItem: ürün adı, sku ve fiyat sipariş anındaki değerlerdir
type OrderItem struct {
	ID          uint            `gorm:"primaryKey"`
	OrderID     uint            `gorm:"index;not null"`
	ProductID   uint            `gorm:"index;not null"`
	ProductName string          `gorm:"size:255;not null"`
	SKU         string          `gorm:"column:sku;size:80;not null"`
	UnitPrice   decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Quantity    int             `gorm:"not null"`
	LineTotal   decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	CreatedAt   time.Time
}
