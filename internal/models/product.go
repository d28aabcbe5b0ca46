package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Category struct {
	ID          uint      `gorm:"primaryKey"`
	ParentID    *uint     `gorm:"index"`
	Parent      *Category
	Name        string    `gorm:"size:150;not null"`
	Slug        string    `gorm:"size:180;not null;uniqueIndex"`
	Description string    `gorm:"size:1000"`
	IsActive    bool      `gorm:"not null"`
	SortOrder   int       `gorm:"not null;default:0"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Product struct {
	ID            uint             `gorm:"primaryKey"`
	CategoryID    *uint            `gorm:"index"`
	Category      *Category
	Name          string           `gorm:"size:255;not null"`
	Slug          string           `gorm:"size:280;not null;uniqueIndex"`
	SKU           string           `gorm:"column:sku;size:80;not null;uniqueIndex"`
	Brand         string           `gorm:"size:100;index"`
	Description   string           `gorm:"type:text"`
	BasePrice     decimal.Decimal  `gorm:"type:numeric(12,2);not null;default:0"` // tedarikçi/liste fiyatı, KDV dahil
	CustomPrice   *decimal.Decimal `gorm:"type:numeric(12,2)"`                    // elle girilen fiyat, kurallardan önce gelir
	StockQuantity int              `gorm:"not null;default:0"`
	IsActive      bool             `gorm:"not null;index"`
	IsFeatured    bool             `gorm:"not null"`
	Weight        decimal.Decimal  `gorm:"type:numeric(8,3);not null;default:0"` // kg
	ImageURL      string           `gorm:"size:500"`
	SearchText    string           `gorm:"size:700;index"` // ad + sku + marka, Türkçe katlanmış küçük harf
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// HasCustomPrice: özel fiyat girilmiş ve sıfırdan büyük mü
func (p *Product) HasCustomPrice() bool {
	return p.CustomPrice != nil && p.CustomPrice.IsPositive()
}
