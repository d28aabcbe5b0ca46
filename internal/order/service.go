// Package order turns a customer's cart into an order and drives its status afterwards.
package order

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"motoparca-backend/internal/database"
	"motoparca-backend/internal/models"
	"motoparca-backend/internal/phone"
	"motoparca-backend/internal/pricing"
	"motoparca-backend/internal/shipping"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrEmptyCart            = errors.New("sepet boş")
	ErrProductUnavailable   = errors.New("ürün satışta değil")
	ErrInsufficientStock    = errors.New("yetersiz stok")
	ErrOrderNotFound        = errors.New("sipariş bulunamadı")
	ErrAddressNotFound      = errors.New("adres bulunamadı")
	ErrInvalidAddress       = errors.New("teslimat adresi eksik veya hatalı")
	ErrInvalidPaymentMethod = errors.New("ödeme yöntemi geçersiz")
	ErrInvalidTransition    = errors.New("sipariş durumu bu duruma geçemez")
	ErrOrderNumberExhausted = errors.New("sipariş numarası üretilemedi")
)

// ItemError names the product that made the order fail.
type ItemError struct {
	Err         error
	ProductID   uint
	ProductName string
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.ProductName)
}

func (e *ItemError) Unwrap() error { return e.Err }

type Service struct {
	db       *gorm.DB
	engine   *pricing.Engine
	shipping *shipping.Service
	now      func() time.Time
	log      *zap.Logger
}

func NewService(db *gorm.DB, engine *pricing.Engine, ship *shipping.Service) *Service {
	return &Service{
		db:       db,
		engine:   engine,
		shipping: ship,
		now:      time.Now,
		log:      zap.L().Named("order"),
	}
}

type AddressInput struct {
	FullName   string `json:"full_name" validate:"required,max=200"`
	Phone      string `json:"phone" validate:"required"`
	City       string `json:"city" validate:"required,max=100"`
	District   string `json:"district" validate:"required,max=100"`
	Line       string `json:"line" validate:"required,max=500"`
	PostalCode string `json:"postal_code" validate:"omitempty,numeric,len=5"`
}

// CreateInput: AddressID or Address must be given. AddressID wins when both are set.
type CreateInput struct {
	AddressID     *uint                `json:"address_id"`
	Address       *AddressInput        `json:"address"`
	Note          string               `json:"note" validate:"max=1000"`
	PaymentMethod models.PaymentMethod `json:"payment_method" validate:"required"`
}

// lock adds FOR UPDATE where the dialect supports it.
func lock(tx *gorm.DB) *gorm.DB {
	if database.IsPostgres(tx) {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

func (s *Service) shippingAddress(tx *gorm.DB, customerID uint, in CreateInput) (AddressInput, error) {
	var addr AddressInput
	switch {
	case in.AddressID != nil:
		var a models.Address
		err := tx.Where("id = ? AND customer_id = ?", *in.AddressID, customerID).First(&a).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return addr, ErrAddressNotFound
		}
		if err != nil {
			return addr, err
		}
		addr = AddressInput{
			FullName: a.FullName, Phone: a.Phone, City: a.City,
			District: a.District, Line: a.Line, PostalCode: a.PostalCode,
		}
	case in.Address != nil:
		addr = *in.Address
	default:
		return addr, ErrInvalidAddress
	}

	addr.FullName = strings.TrimSpace(addr.FullName)
	addr.City = strings.TrimSpace(addr.City)
	addr.District = strings.TrimSpace(addr.District)
	addr.Line = strings.TrimSpace(addr.Line)
	addr.PostalCode = strings.TrimSpace(addr.PostalCode)
	if addr.FullName == "" || addr.City == "" || addr.District == "" || addr.Line == "" {
		return addr, ErrInvalidAddress
	}

	normalized, err := phone.Normalize(addr.Phone)
	if err != nil {
		return addr, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	addr.Phone = normalized
	return addr, nil
}

const orderNumberAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// NewOrderNumber: MP + YYMMDD + 6 rastgele büyük harf/rakam, ör. MP250614K3Z9QA
func NewOrderNumber(now time.Time) (string, error) {
	var b strings.Builder
	b.WriteString("MP")
	b.WriteString(now.Format("060102"))
	size := big.NewInt(int64(len(orderNumberAlphabet)))
	for i := 0; i < 6; i++ {
		n, err := rand.Int(rand.Reader, size)
		if err != nil {
			return "", err
		}
		b.WriteByte(orderNumberAlphabet[n.Int64()])
	}
	return b.String(), nil
}

func (s *Service) uniqueOrderNumber(tx *gorm.DB) (string, error) {
	for attempt := 0; attempt < 5; attempt++ {
		number, err := NewOrderNumber(s.now())
		if err != nil {
			return "", err
		}
		var count int64
		if err := tx.Model(&models.Order{}).Where("order_number = ?", number).Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return number, nil
		}
		s.log.Warn("sipariş numarası çakıştı, yeniden deneniyor", zap.String("order_number", number))
	}
	return "", ErrOrderNumberExhausted
}

// CreateFromCart converts the customer's cart into a pending order in one transaction.
// Prices are snapshotted, stock is decremented and the cart is emptied.
func (s *Service) CreateFromCart(ctx context.Context, customerID uint, in CreateInput) (*models.Order, error) {
	if !validPaymentMethod(in.PaymentMethod) {
		return nil, ErrInvalidPaymentMethod
	}

	var order models.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		addr, err := s.shippingAddress(tx, customerID, in)
		if err != nil {
			return err
		}

		var cart models.Cart
		err = tx.Where("customer_id = ?", customerID).First(&cart).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrEmptyCart
		}
		if err != nil {
			return err
		}

		var items []models.CartItem
		if err := tx.Where("cart_id = ?", cart.ID).Order("product_id asc").Find(&items).Error; err != nil {
			return err
		}
		if len(items) == 0 {
			return ErrEmptyCart
		}

		engine := s.engine.With(tx)
		subtotal := decimal.Zero
		orderItems := make([]models.OrderItem, 0, len(items))

		// product_id sırasıyla kilitlenir, eşzamanlı siparişlerde kilitlenme sırası sabit kalır
		for _, it := range items {
			var p models.Product
			err := lock(tx).First(&p, it.ProductID).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &ItemError{Err: ErrProductUnavailable, ProductID: it.ProductID, ProductName: fmt.Sprintf("#%d", it.ProductID)}
			}
			if err != nil {
				return err
			}
			if !p.IsActive {
				return &ItemError{Err: ErrProductUnavailable, ProductID: p.ID, ProductName: p.Name}
			}
			if p.StockQuantity < it.Quantity {
				return &ItemError{Err: ErrInsufficientStock, ProductID: p.ID, ProductName: p.Name}
			}

			price, err := engine.FinalPrice(ctx, &p)
			if err != nil {
				return err
			}
			line := price.Mul(decimal.NewFromInt(int64(it.Quantity))).Round(2)
			subtotal = subtotal.Add(line)

			orderItems = append(orderItems, models.OrderItem{
				ProductID:   p.ID,
				ProductName: p.Name,
				SKU:         p.SKU,
				UnitPrice:   price,
				Quantity:    it.Quantity,
				LineTotal:   line,
			})

			res := tx.Model(&models.Product{}).
				Where("id = ? AND stock_quantity >= ?", p.ID, it.Quantity).
				Update("stock_quantity", gorm.Expr("stock_quantity - ?", it.Quantity))
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected != 1 {
				return &ItemError{Err: ErrInsufficientStock, ProductID: p.ID, ProductName: p.Name}
			}
		}

		quote, err := s.shipping.With(tx).Calculate(ctx, subtotal)
		if err != nil {
			return err
		}

		number, err := s.uniqueOrderNumber(tx)
		if err != nil {
			return err
		}

		order = models.Order{
			OrderNumber:    number,
			CustomerID:     customerID,
			Status:         models.OrderStatusPending,
			Subtotal:       subtotal,
			ShippingCost:   quote.Cost,
			Total:          subtotal.Add(quote.Cost),
			PaymentMethod:  in.PaymentMethod,
			Note:           strings.TrimSpace(in.Note),
			ShipFullName:   addr.FullName,
			ShipPhone:      addr.Phone,
			ShipCity:       addr.City,
			ShipDistrict:   addr.District,
			ShipLine:       addr.Line,
			ShipPostalCode: addr.PostalCode,
			Items:          orderItems,
		}
		if err := tx.Omit("Customer").Create(&order).Error; err != nil {
			return err
		}

		return tx.Where("cart_id = ?", cart.ID).Delete(&models.CartItem{}).Error
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("sipariş oluşturuldu",
		zap.String("order_number", order.OrderNumber),
		zap.Uint("customer_id", customerID),
		zap.String("total", order.Total.StringFixed(2)))
	return &order, nil
}

// UpdateStatus moves the order to status. Cancelling goes through Cancel so stock is restored.
func (s *Service) UpdateStatus(ctx context.Context, orderID uint, status models.OrderStatus) (before, after *models.Order, err error) {
	if !ValidStatus(status) {
		return nil, nil, ErrInvalidTransition
	}
	if status == models.OrderStatusCancelled {
		return s.Cancel(ctx, orderID)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var o models.Order
		if err := lock(tx).First(&o, orderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrOrderNotFound
			}
			return err
		}
		if !CanTransition(o.Status, status) {
			return ErrInvalidTransition
		}
		prev := o
		before = &prev

		o.Status = status
		if err := tx.Model(&models.Order{}).Where("id = ?", o.ID).Update("status", status).Error; err != nil {
			return err
		}
		after = &o
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return before, after, nil
}

// Cancel cancels a pending or processing order, puts its items back in stock and
// cancels any active payment link of the order.
func (s *Service) Cancel(ctx context.Context, orderID uint) (before, after *models.Order, err error) {
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var o models.Order
		if err := lock(tx).Preload("Items").First(&o, orderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrOrderNotFound
			}
			return err
		}
		if !CanTransition(o.Status, models.OrderStatusCancelled) {
			return ErrInvalidTransition
		}
		prev := o
		before = &prev

		if restocks(o.Status) {
			for _, it := range o.Items {
				if err := tx.Model(&models.Product{}).
					Where("id = ?", it.ProductID).
					Update("stock_quantity", gorm.Expr("stock_quantity + ?", it.Quantity)).Error; err != nil {
					return err
				}
			}
		}

		if err := tx.Model(&models.PaymentLink{}).
			Where("order_id = ? AND status = ?", o.ID, models.PaymentLinkActive).
			Update("status", models.PaymentLinkCancelled).Error; err != nil {
			return err
		}

		o.Status = models.OrderStatusCancelled
		if err := tx.Model(&models.Order{}).Where("id = ?", o.ID).Update("status", o.Status).Error; err != nil {
			return err
		}
		after = &o
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	s.log.Info("sipariş iptal edildi", zap.String("order_number", after.OrderNumber))
	return before, after, nil
}
