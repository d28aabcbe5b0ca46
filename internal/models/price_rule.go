package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type PriceRuleScope string

const (
	PriceRuleScopeGlobal   PriceRuleScope = "global"
	PriceRuleScopeCategory PriceRuleScope = "category"
	PriceRuleScopeProduct  PriceRuleScope = "product"
)

type PriceRuleKind string

const (
	PriceRuleKindPercentage PriceRuleKind = "percentage" // +15 = %15 zam, -10 = %10 indirim
	PriceRuleKindFixed      PriceRuleKind = "fixed"      // TL olarak eklenir (negatif olabilir)
)

type PriceRule struct {
	ID         uint            `gorm:"primaryKey" json:"id"`
	Name       string          `gorm:"size:150;not null" json:"name"`
	Scope      PriceRuleScope  `gorm:"size:20;not null;index" json:"scope"`
	CategoryID *uint           `gorm:"index" json:"category_id"`
	ProductID  *uint           `gorm:"index" json:"product_id"`
	Kind       PriceRuleKind   `gorm:"size:20;not null" json:"kind"`
	Value      decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"value"`
	Priority   int             `gorm:"not null;default:0" json:"priority"`
	IsActive   bool            `gorm:"not null" json:"is_active"`
	StartsAt   *time.Time      `json:"starts_at"`
	EndsAt     *time.Time      `json:"ends_at"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// ActiveAt: kural aktif ve geçerlilik aralığı t'yi kapsıyor mu
func (r *PriceRule) ActiveAt(t time.Time) bool {
	if !r.IsActive {
		return false
	}
	if r.StartsAt != nil && t.Before(*r.StartsAt) {
		return false
	}
	if r.EndsAt != nil && !t.Before(*r.EndsAt) {
		return false
	}
	return true
}
