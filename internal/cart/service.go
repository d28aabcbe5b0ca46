// Package cart keeps one shopping cart per customer and prices it live.
package cart

import (
	"context"
	"errors"

	"motoparca-backend/internal/models"
	"motoparca-backend/internal/pricing"
	"motoparca-backend/internal/shipping"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrProductNotFound   = errors.New("ürün bulunamadı")
	ErrItemNotFound      = errors.New("sepette bu ürün yok")
	ErrInsufficientStock = errors.New("yetersiz stok")
	ErrInvalidQuantity   = errors.New("adet geçersiz")
)

type Service struct {
	db       *gorm.DB
	engine   *pricing.Engine
	shipping *shipping.Service
}

func NewService(db *gorm.DB, engine *pricing.Engine, ship *shipping.Service) *Service {
	return &Service{db: db, engine: engine, shipping: ship}
}

func (s *Service) With(db *gorm.DB) *Service {
	n := *s
	n.db = db
	n.engine = s.engine.With(db)
	n.shipping = s.shipping.With(db)
	return &n
}

type Line struct {
	ItemID        uint            `json:"item_id"`
	ProductID     uint            `json:"product_id"`
	Name          string          `json:"name"`
	Slug          string          `json:"slug"`
	SKU           string          `json:"sku"`
	ImageURL      string          `json:"image_url"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	Quantity      int             `json:"quantity"`
	LineTotal     decimal.Decimal `json:"line_total"`
	StockQuantity int             `json:"stock_quantity"`
	Available     bool            `json:"available"`
}

// View is the priced cart. Unavailable lines are listed but not counted in the subtotal.
type View struct {
	Items     []Line          `json:"items"`
	ItemCount int             `json:"item_count"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	Shipping  shipping.Quote  `json:"shipping"`
	Total     decimal.Decimal `json:"total"`
}

// cartFor loads the customer's cart, creating an empty one on first use.
func (s *Service) cartFor(ctx context.Context, customerID uint) (*models.Cart, error) {
	var c models.Cart
	if err := s.db.WithContext(ctx).Where(models.Cart{CustomerID: customerID}).FirstOrCreate(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Service) View(ctx context.Context, customerID uint) (*View, error) {
	c, err := s.cartFor(ctx, customerID)
	if err != nil {
		return nil, err
	}

	var items []models.CartItem
	if err := s.db.WithContext(ctx).Preload("Product").Where("cart_id = ?", c.ID).Order("id asc").Find(&items).Error; err != nil {
		return nil, err
	}

	products := make([]models.Product, 0, len(items))
	for _, it := range items {
		if it.Product.ID != 0 {
			products = append(products, it.Product)
		}
	}
	prices, err := s.engine.FinalPrices(ctx, products)
	if err != nil {
		return nil, err
	}

	v := &View{Items: make([]Line, 0, len(items)), Subtotal: decimal.Zero}
	for _, it := range items {
		p := it.Product
		line := Line{
			ItemID:        it.ID,
			ProductID:     it.ProductID,
			Name:          p.Name,
			Slug:          p.Slug,
			SKU:           p.SKU,
			ImageURL:      p.ImageURL,
			UnitPrice:     prices[p.ID],
			Quantity:      it.Quantity,
			StockQuantity: p.StockQuantity,
			Available:     p.ID != 0 && p.IsActive && p.StockQuantity >= it.Quantity,
		}
		line.LineTotal = line.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
		if line.Available {
			v.Subtotal = v.Subtotal.Add(line.LineTotal)
			v.ItemCount += it.Quantity
		}
		v.Items = append(v.Items, line)
	}

	quote, err := s.shipping.Calculate(ctx, v.Subtotal)
	if err != nil {
		return nil, err
	}
	v.Shipping = quote
	v.Total = v.Subtotal.Add(quote.Cost)
	return v, nil
}

func (s *Service) product(ctx context.Context, productID uint) (*models.Product, error) {
	var p models.Product
	err := s.db.WithContext(ctx).Where("id = ? AND is_active = ?", productID, true).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// AddItem adds quantity of the product, merging with an existing line.
func (s *Service) AddItem(ctx context.Context, customerID, productID uint, quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		svc := s.With(tx)
		p, err := svc.product(ctx, productID)
		if err != nil {
			return err
		}
		c, err := svc.cartFor(ctx, customerID)
		if err != nil {
			return err
		}

		var item models.CartItem
		err = tx.Where("cart_id = ? AND product_id = ?", c.ID, productID).First(&item).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			item = models.CartItem{CartID: c.ID, ProductID: productID}
		case err != nil:
			return err
		}

		item.Quantity += quantity
		if item.Quantity > p.StockQuantity {
			return ErrInsufficientStock
		}
		return tx.Save(&item).Error
	})
}

// SetQuantity replaces the line quantity. Zero removes the line.
func (s *Service) SetQuantity(ctx context.Context, customerID, productID uint, quantity int) error {
	if quantity < 0 {
		return ErrInvalidQuantity
	}
	if quantity == 0 {
		return s.RemoveItem(ctx, customerID, productID)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		svc := s.With(tx)
		c, err := svc.cartFor(ctx, customerID)
		if err != nil {
			return err
		}

		var item models.CartItem
		err = tx.Where("cart_id = ? AND product_id = ?", c.ID, productID).First(&item).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrItemNotFound
		}
		if err != nil {
			return err
		}

		p, err := svc.product(ctx, productID)
		if err != nil {
			return err
		}
		if quantity > p.StockQuantity {
			return ErrInsufficientStock
		}
		return tx.Model(&item).Update("quantity", quantity).Error
	})
}

func (s *Service) RemoveItem(ctx context.Context, customerID, productID uint) error {
	c, err := s.cartFor(ctx, customerID)
	if err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Where("cart_id = ? AND product_id = ?", c.ID, productID).Delete(&models.CartItem{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrItemNotFound
	}
	return nil
}

func (s *Service) Clear(ctx context.Context, customerID uint) error {
	c, err := s.cartFor(ctx, customerID)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Where("cart_id = ?", c.ID).Delete(&models.CartItem{}).Error
}
