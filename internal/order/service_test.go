package order

import (
	"context"
	"regexp"
	"testing"
	"time"

	"motoparca-backend/internal/cache"
	"motoparca-backend/internal/config"
	"motoparca-backend/internal/models"
	"motoparca-backend/internal/pricing"
	"motoparca-backend/internal/shipping"
	"motoparca-backend/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db := testutil.NewDB(t)
	store := cache.NewMemoryStore()
	t.Cleanup(func() { store.Close() })
	engine := pricing.NewEngine(db, store, time.Minute)
	ship := shipping.NewService(db, config.ShippingConfig{DefaultFlatRate: 89.90, DefaultFreeThreshold: 1500})
	return NewService(db, engine, ship), db
}

func fillCart(t *testing.T, db *gorm.DB, customerID uint, items map[uint]int) {
	t.Helper()
	cart := models.Cart{CustomerID: customerID}
	require.NoError(t, db.Where(cart).FirstOrCreate(&cart).Error)
	for productID, qty := range items {
		require.NoError(t, db.Create(&models.CartItem{CartID: cart.ID, ProductID: productID, Quantity: qty}).Error)
	}
}

func inlineAddress() *AddressInput {
	return &AddressInput{
		FullName: "Ahmet Yılmaz", Phone: "0532 123 45 67",
		City: "İzmir", District: "Bornova", Line: "Kazımdirik Mah. 12", PostalCode: "35100",
	}
}

func stockOf(t *testing.T, db *gorm.DB, id uint) int {
	t.Helper()
	var p models.Product
	require.NoError(t, db.First(&p, id).Error)
	return p.StockQuantity
}

func TestNewOrderNumber(t *testing.T) {
	now := time.Date(2025, 6, 14, 10, 0, 0, 0, time.UTC)
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		n, err := NewOrderNumber(now)
		require.NoError(t, err)
		assert.Regexp(t, regexp.MustCompile(`^MP250614[A-Z0-9]{6}$`), n)
		seen[n] = true
	}
	assert.Greater(t, len(seen), 45)
}

func TestTransitions(t *testing.T) {
	assert.True(t, CanTransition(models.OrderStatusPending, models.OrderStatusProcessing))
	assert.True(t, CanTransition(models.OrderStatusPending, models.OrderStatusCancelled))
	assert.True(t, CanTransition(models.OrderStatusProcessing, models.OrderStatusShipped))
	assert.True(t, CanTransition(models.OrderStatusShipped, models.OrderStatusDelivered))

	assert.False(t, CanTransition(models.OrderStatusPending, models.OrderStatusShipped))
	assert.False(t, CanTransition(models.OrderStatusShipped, models.OrderStatusCancelled))
	assert.False(t, CanTransition(models.OrderStatusDelivered, models.OrderStatusCancelled))
	assert.False(t, CanTransition(models.OrderStatusCancelled, models.OrderStatusPending))
	assert.False(t, ValidStatus("lost"))
}

func TestCreateFromCart(t *testing.T) {
	ctx := context.Background()

	t.Run("snapshots prices and decrements stock", func(t *testing.T) {
		svc, db := newService(t)
		cu := testutil.CreateCustomer(t, db, "a@example.com")
		p1 := testutil.CreateProduct(t, db, "ZNC-1", "400", 5, nil)
		p2 := testutil.CreateProduct(t, db, "DSL-1", "150", 10, nil)
		p2.CustomPrice = testutil.DecPtr("125.50")
		require.NoError(t, db.Save(p2).Error)
		fillCart(t, db, cu.ID, map[uint]int{p1.ID: 2, p2.ID: 4})

		o, err := svc.CreateFromCart(ctx, cu.ID, CreateInput{Address: inlineAddress(), PaymentMethod: models.PaymentMethodBankTransfer})
		require.NoError(t, err)

		assert.Equal(t, models.OrderStatusPending, o.Status)
		assert.Equal(t, "1302.00", o.Subtotal.StringFixed(2))
		assert.Equal(t, "89.90", o.ShippingCost.StringFixed(2))
		assert.Equal(t, "1391.90", o.Total.StringFixed(2))
		assert.Equal(t, "+905321234567", o.ShipPhone)
		require.Len(t, o.Items, 2)
		assert.Equal(t, "ZNC-1", o.Items[0].SKU)
		assert.Equal(t, "125.50", o.Items[1].UnitPrice.StringFixed(2))

		assert.Equal(t, 3, stockOf(t, db, p1.ID))
		assert.Equal(t, 6, stockOf(t, db, p2.ID))

		var count int64
		db.Model(&models.CartItem{}).Count(&count)
		assert.Zero(t, count)

		// ürün sonradan değişse de sipariş satırı değişmez
		require.NoError(t, db.Model(p1).Updates(map[string]any{"name": "Yeni Ad", "base_price": "999"}).Error)
		var item models.OrderItem
		require.NoError(t, db.Where("order_id = ? AND product_id = ?", o.ID, p1.ID).First(&item).Error)
		assert.Equal(t, "Ürün ZNC-1", item.ProductName)
		assert.Equal(t, "400.00", item.UnitPrice.StringFixed(2))
	})

	t.Run("free shipping over threshold", func(t *testing.T) {
		svc, db := newService(t)
		cu := testutil.CreateCustomer(t, db, "a@example.com")
		p := testutil.CreateProduct(t, db, "EGZ-1", "1500", 1, nil)
		fillCart(t, db, cu.ID, map[uint]int{p.ID: 1})

		o, err := svc.CreateFromCart(ctx, cu.ID, CreateInput{Address: inlineAddress(), PaymentMethod: models.PaymentMethodCreditCard})
		require.NoError(t, err)
		assert.True(t, o.ShippingCost.IsZero())
		assert.Equal(t, "1500.00", o.Total.StringFixed(2))
	})

	t.Run("empty cart", func(t *testing.T) {
		svc, db := newService(t)
		cu := testutil.CreateCustomer(t, db, "a@example.com")

		_, err := svc.CreateFromCart(ctx, cu.ID, CreateInput{Address: inlineAddress(), PaymentMethod: models.PaymentMethodCreditCard})
		assert.ErrorIs(t, err, ErrEmptyCart)

		fillCart(t, db, cu.ID, nil)
		_, err = svc.CreateFromCart(ctx, cu.ID, CreateInput{Address: inlineAddress(), PaymentMethod: models.PaymentMethodCreditCard})
		assert.ErrorIs(t, err, ErrEmptyCart)
	})

	t.Run("insufficient stock rolls back", func(t *testing.T) {
		svc, db := newService(t)
		cu := testutil.CreateCustomer(t, db, "a@example.com")
		ok := testutil.CreateProduct(t, db, "OK-1", "10", 5, nil)
		short := testutil.CreateProduct(t, db, "SHORT-1", "10", 1, nil)
		fillCart(t, db, cu.ID, map[uint]int{ok.ID: 2, short.ID: 3})

		_, err := svc.CreateFromCart(ctx, cu.ID, CreateInput{Address: inlineAddress(), PaymentMethod: models.PaymentMethodCreditCard})
		require.ErrorIs(t, err, ErrInsufficientStock)
		var ie *ItemError
		require.ErrorAs(t, err, &ie)
		assert.Equal(t, short.ID, ie.ProductID)

		assert.Equal(t, 5, stockOf(t, db, ok.ID))
		var count int64
		db.Model(&models.Order{}).Count(&count)
		assert.Zero(t, count)
		db.Model(&models.CartItem{}).Count(&count)
		assert.Equal(t, int64(2), count)
	})

	t.Run("inactive product", func(t *testing.T) {
		svc, db := newService(t)
		cu := testutil.CreateCustomer(t, db, "a@example.com")
		p := testutil.CreateProduct(t, db, "OFF-1", "10", 5, nil)
		fillCart(t, db, cu.ID, map[uint]int{p.ID: 1})
		require.NoError(t, db.Model(p).Update("is_active", false).Error)

		_, err := svc.CreateFromCart(ctx, cu.ID, CreateInput{Address: inlineAddress(), PaymentMethod: models.PaymentMethodCreditCard})
		assert.ErrorIs(t, err, ErrProductUnavailable)
	})

	t.Run("saved address and validation", func(t *testing.T) {
		svc, db := newService(t)
		cu := testutil.CreateCustomer(t, db, "a@example.com")
		other := testutil.CreateCustomer(t, db, "b@example.com")
		p := testutil.CreateProduct(t, db, "ADR-1", "10", 5, nil)
		fillCart(t, db, cu.ID, map[uint]int{p.ID: 1})

		addr := models.Address{
			CustomerID: cu.ID, FullName: "Ahmet Yılmaz", Phone: "+903122223344",
			City: "Ankara", District: "Çankaya", Line: "Kızılay", IsDefault: true,
		}
		require.NoError(t, db.Create(&addr).Error)
		foreign := models.Address{CustomerID: other.ID, FullName: "X", Phone: "+905321234567", City: "X", District: "X", Line: "X"}
		require.NoError(t, db.Create(&foreign).Error)

		_, err := svc.CreateFromCart(ctx, cu.ID, CreateInput{AddressID: &foreign.ID, PaymentMethod: models.PaymentMethodCreditCard})
		assert.ErrorIs(t, err, ErrAddressNotFound)

		_, err = svc.CreateFromCart(ctx, cu.ID, CreateInput{PaymentMethod: models.PaymentMethodCreditCard})
		assert.ErrorIs(t, err, ErrInvalidAddress)

		bad := inlineAddress()
		bad.Phone = "12345"
		_, err = svc.CreateFromCart(ctx, cu.ID, CreateInput{Address: bad, PaymentMethod: models.PaymentMethodCreditCard})
		assert.ErrorIs(t, err, ErrInvalidAddress)

		_, err = svc.CreateFromCart(ctx, cu.ID, CreateInput{AddressID: &addr.ID, PaymentMethod: "cash"})
		assert.ErrorIs(t, err, ErrInvalidPaymentMethod)

		o, err := svc.CreateFromCart(ctx, cu.ID, CreateInput{AddressID: &addr.ID, PaymentMethod: models.PaymentMethodPaymentLink})
		require.NoError(t, err)
		assert.Equal(t, "Ankara", o.ShipCity)
		assert.Equal(t, "+903122223344", o.ShipPhone)
	})
}

func TestStatusAndCancel(t *testing.T) {
	ctx := context.Background()

	place := func(t *testing.T, svc *Service, db *gorm.DB) (*models.Order, *models.Product) {
		t.Helper()
		cu := testutil.CreateCustomer(t, db, "a@example.com")
		p := testutil.CreateProduct(t, db, "ST-1", "100", 10, nil)
		fillCart(t, db, cu.ID, map[uint]int{p.ID: 3})
		o, err := svc.CreateFromCart(ctx, cu.ID, CreateInput{Address: inlineAddress(), PaymentMethod: models.PaymentMethodPaymentLink})
		require.NoError(t, err)
		return o, p
	}

	t.Run("walks the happy path", func(t *testing.T) {
		svc, db := newService(t)
		o, _ := place(t, svc, db)

		for _, next := range []models.OrderStatus{models.OrderStatusProcessing, models.OrderStatusShipped, models.OrderStatusDelivered} {
			before, after, err := svc.UpdateStatus(ctx, o.ID, next)
			require.NoError(t, err)
			assert.NotEqual(t, before.Status, after.Status)
			assert.Equal(t, next, after.Status)
		}

		_, _, err := svc.UpdateStatus(ctx, o.ID, models.OrderStatusCancelled)
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("skipping a step is rejected", func(t *testing.T) {
		svc, db := newService(t)
		o, _ := place(t, svc, db)
		_, _, err := svc.UpdateStatus(ctx, o.ID, models.OrderStatusDelivered)
		assert.ErrorIs(t, err, ErrInvalidTransition)
		_, _, err = svc.UpdateStatus(ctx, 9999, models.OrderStatusProcessing)
		assert.ErrorIs(t, err, ErrOrderNotFound)
	})

	t.Run("cancel restores stock and links", func(t *testing.T) {
		svc, db := newService(t)
		o, p := place(t, svc, db)
		assert.Equal(t, 7, stockOf(t, db, p.ID))

		link := models.PaymentLink{
			OrderID: &o.ID, Token: "tok-1", Amount: o.Total, Status: models.PaymentLinkActive,
			URL: "https://pay.example.com/tok-1", ExpiresAt: time.Now().Add(time.Hour),
		}
		require.NoError(t, db.Create(&link).Error)

		_, _, err := svc.UpdateStatus(ctx, o.ID, models.OrderStatusProcessing)
		require.NoError(t, err)
		_, after, err := svc.Cancel(ctx, o.ID)
		require.NoError(t, err)
		assert.Equal(t, models.OrderStatusCancelled, after.Status)
		assert.Equal(t, 10, stockOf(t, db, p.ID))

		require.NoError(t, db.First(&link, link.ID).Error)
		assert.Equal(t, models.PaymentLinkCancelled, link.Status)

		_, _, err = svc.Cancel(ctx, o.ID)
		assert.ErrorIs(t, err, ErrInvalidTransition)
		assert.Equal(t, 10, stockOf(t, db, p.ID))
	})
}
