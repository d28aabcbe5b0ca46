// Package pricing computes the final storefront price of a product.
//
// A positive custom price always wins. Otherwise the base price is adjusted by
// the most specific active price rule (product, then category, then global).
// Results are cached per product for a short TTL.
package pricing

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"motoparca-backend/internal/cache"
	"motoparca-backend/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	cachePrefix = "price:"
	DefaultTTL  = 5 * time.Minute
)

var hundred = decimal.NewFromInt(100)

type Engine struct {
	db    *gorm.DB
	store cache.Store
	ttl   time.Duration
	now   func() time.Time
	log   *zap.Logger
}

func NewEngine(db *gorm.DB, store cache.Store, ttl time.Duration) *Engine {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Engine{
		db:    db,
		store: store,
		ttl:   ttl,
		now:   time.Now,
		log:   zap.L().Named("pricing"),
	}
}

// With returns a copy that reads rules through db, typically an open transaction.
func (e *Engine) With(db *gorm.DB) *Engine {
	n := *e
	n.db = db
	return &n
}

func productKey(id uint) string {
	return fmt.Sprintf("%sproduct:%d", cachePrefix, id)
}

// FinalPrice returns the cached or freshly computed price for p.
func (e *Engine) FinalPrice(ctx context.Context, p *models.Product) (decimal.Decimal, error) {
	if v, ok := e.cached(ctx, p.ID); ok {
		return v, nil
	}

	rules, err := e.rulesFor(ctx, []models.Product{*p})
	if err != nil {
		return decimal.Zero, err
	}
	price := Calculate(p, rules, e.now()).FinalPrice
	e.remember(ctx, p.ID, price)
	return price, nil
}

// FinalPrices prices a batch with a single rule query for the cache misses.
func (e *Engine) FinalPrices(ctx context.Context, products []models.Product) (map[uint]decimal.Decimal, error) {
	out := make(map[uint]decimal.Decimal, len(products))
	var misses []models.Product
	for _, p := range products {
		if v, ok := e.cached(ctx, p.ID); ok {
			out[p.ID] = v
			continue
		}
		misses = append(misses, p)
	}
	if len(misses) == 0 {
		return out, nil
	}

	rules, err := e.rulesFor(ctx, misses)
	if err != nil {
		return nil, err
	}
	now := e.now()
	for i := range misses {
		price := Calculate(&misses[i], rules, now).FinalPrice
		out[misses[i].ID] = price
		e.remember(ctx, misses[i].ID, price)
	}
	return out, nil
}

// Explain computes the breakdown without touching the cache.
func (e *Engine) Explain(ctx context.Context, p *models.Product) (Breakdown, error) {
	rules, err := e.rulesFor(ctx, []models.Product{*p})
	if err != nil {
		return Breakdown{}, err
	}
	return Calculate(p, rules, e.now()), nil
}

func (e *Engine) Invalidate(ctx context.Context, productIDs ...uint) error {
	keys := make([]string, len(productIDs))
	for i, id := range productIDs {
		keys[i] = productKey(id)
	}
	return e.store.Delete(ctx, keys...)
}

// InvalidateAll is used when a price rule changes since any product may be affected.
func (e *Engine) InvalidateAll(ctx context.Context) error {
	return e.store.DeletePrefix(ctx, cachePrefix)
}

func (e *Engine) cached(ctx context.Context, id uint) (decimal.Decimal, bool) {
	raw, err := e.store.Get(ctx, productKey(id))
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			e.log.Warn("fiyat cache okunamadı", zap.Uint("product_id", id), zap.Error(err))
		}
		return decimal.Zero, false
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, false
	}
	return v, true
}

func (e *Engine) remember(ctx context.Context, id uint, price decimal.Decimal) {
	if err := e.store.Set(ctx, productKey(id), price.StringFixed(2), e.ttl); err != nil {
		e.log.Warn("fiyat cache yazılamadı", zap.Uint("product_id", id), zap.Error(err))
	}
}

// rulesFor loads active rules that could apply to any of the given products.
func (e *Engine) rulesFor(ctx context.Context, products []models.Product) ([]models.PriceRule, error) {
	productIDs := make([]uint, 0, len(products))
	categoryIDs := make([]uint, 0, len(products))
	for _, p := range products {
		productIDs = append(productIDs, p.ID)
		if p.CategoryID != nil {
			categoryIDs = append(categoryIDs, *p.CategoryID)
		}
	}

	q := e.db.WithContext(ctx).Model(&models.PriceRule{}).Where("is_active = ?", true)
	cond := e.db.Where("scope = ?", models.PriceRuleScopeGlobal).
		Or("scope = ? AND product_id IN ?", models.PriceRuleScopeProduct, productIDs)
	if len(categoryIDs) > 0 {
		cond = cond.Or("scope = ? AND category_id IN ?", models.PriceRuleScopeCategory, categoryIDs)
	}

	var rules []models.PriceRule
	if err := q.Where(cond).Find(&rules).Error; err != nil {
		return nil, fmt.Errorf("fiyat kuralları okunamadı: %w", err)
	}
	return rules, nil
}

type Breakdown struct {
	BasePrice   decimal.Decimal   `json:"base_price"`
	CustomPrice *decimal.Decimal  `json:"custom_price"`
	AppliedRule *models.PriceRule `json:"applied_rule"`
	FinalPrice  decimal.Decimal   `json:"final_price"`
}

// Calculate is the pure pricing function. rules may contain rules for other products.
func Calculate(p *models.Product, rules []models.PriceRule, now time.Time) Breakdown {
	b := Breakdown{BasePrice: p.BasePrice, CustomPrice: p.CustomPrice}

	if p.HasCustomPrice() {
		b.FinalPrice = p.CustomPrice.Round(2)
		return b
	}

	price := p.BasePrice
	if rule := bestRule(p, rules, now); rule != nil {
		b.AppliedRule = rule
		price = applyRule(price, rule)
	}

	if price.IsNegative() {
		price = decimal.Zero
	}
	b.FinalPrice = price.Round(2)
	return b
}

func applyRule(price decimal.Decimal, r *models.PriceRule) decimal.Decimal {
	switch r.Kind {
	case models.PriceRuleKindPercentage:
		return price.Add(price.Mul(r.Value).Div(hundred))
	case models.PriceRuleKindFixed:
		return price.Add(r.Value)
	default:
		return price
	}
}

func specificity(s models.PriceRuleScope) int {
	switch s {
	case models.PriceRuleScopeProduct:
		return 3
	case models.PriceRuleScopeCategory:
		return 2
	case models.PriceRuleScopeGlobal:
		return 1
	default:
		return 0
	}
}

func matches(p *models.Product, r *models.PriceRule) bool {
	switch r.Scope {
	case models.PriceRuleScopeGlobal:
		return true
	case models.PriceRuleScopeCategory:
		return p.CategoryID != nil && r.CategoryID != nil && *p.CategoryID == *r.CategoryID
	case models.PriceRuleScopeProduct:
		return r.ProductID != nil && *r.ProductID == p.ID
	default:
		return false
	}
}

// bestRule sırası: kapsam, priority (büyük önce), id (küçük önce)
func bestRule(p *models.Product, rules []models.PriceRule, now time.Time) *models.PriceRule {
	var candidates []*models.PriceRule
	for i := range rules {
		r := &rules[i]
		if r.ActiveAt(now) && matches(p, r) {
			candidates = append(candidates, r)
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if sa, sb := specificity(a.Scope), specificity(b.Scope); sa != sb {
			return sa > sb
		}
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		return a.ID < b.ID
	})
	return candidates[0]
}
