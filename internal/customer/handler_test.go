package customer

import (
	"fmt"
	"testing"

	"motoparca-backend/internal/models"
	"motoparca-backend/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func adminApp() *fiber.App {
	app := testutil.NewApp()
	admin := app.Group("/api/admin", testutil.AsAdmin(1))
	admin.Get("/customers", ListCustomersHandler())
	admin.Get("/customers/:id", GetCustomerHandler())
	admin.Post("/customers", CreateCustomerHandler())
	admin.Put("/customers/:id", UpdateCustomerHandler())
	admin.Delete("/customers/:id", DeleteCustomerHandler())
	return app
}

func accountApp(customerID uint) *fiber.App {
	app := testutil.NewApp()
	account := app.Group("/api/account", testutil.AsCustomer(10, customerID))
	account.Get("/profile", GetProfileHandler())
	account.Put("/profile", UpdateProfileHandler())
	account.Get("/addresses", ListAddressesHandler())
	account.Post("/addresses", CreateAddressHandler())
	account.Put("/addresses/:id", UpdateAddressHandler())
	account.Delete("/addresses/:id", DeleteAddressHandler())
	return app
}

func TestAdminCustomers(t *testing.T) {
	db := testutil.NewDB(t)
	app := adminApp()

	var created CustomerResponse
	status, raw := testutil.Do(t, app, "POST", "/api/admin/customers", map[string]any{
		"first_name": "Mehmet", "last_name": "Kaya", "email": "Mehmet@Example.com",
		"phone": "0532 111 22 33", "company_name": "Kaya Motor",
	})
	require.Equal(t, 201, status, string(raw))
	testutil.DecodeJSON(t, raw, &created)
	assert.Equal(t, "mehmet@example.com", created.Email)
	assert.Equal(t, "+905321112233", created.Phone)
	assert.Equal(t, "0 (532) 111 22 33", created.PhoneFormatted)
	assert.True(t, created.PhoneIsMobile)

	t.Run("invalid phone", func(t *testing.T) {
		status, _ := testutil.Do(t, app, "POST", "/api/admin/customers", map[string]any{
			"first_name": "A", "last_name": "B", "email": "a@b.com", "phone": "123",
		})
		assert.Equal(t, 400, status)
	})

	t.Run("duplicate email", func(t *testing.T) {
		status, _ := testutil.Do(t, app, "POST", "/api/admin/customers", map[string]any{
			"first_name": "A", "last_name": "B", "email": "mehmet@example.com",
		})
		assert.Equal(t, 409, status)
	})

	t.Run("search", func(t *testing.T) {
		testutil.CreateCustomer(t, db, "ahmet@example.com")

		status, raw := testutil.Do(t, app, "GET", "/api/admin/customers?q=kaya", nil)
		require.Equal(t, 200, status, string(raw))
		var page struct {
			Data  []CustomerResponse `json:"data"`
			Total int64              `json:"total"`
		}
		testutil.DecodeJSON(t, raw, &page)
		require.Equal(t, int64(1), page.Total)
		assert.Equal(t, created.ID, page.Data[0].ID)

		status, raw = testutil.Do(t, app, "GET", "/api/admin/customers?q=0532+123+45+67", nil)
		require.Equal(t, 200, status, string(raw))
		testutil.DecodeJSON(t, raw, &page)
		assert.Equal(t, int64(1), page.Total)
	})

	t.Run("update syncs linked user", func(t *testing.T) {
		require.NoError(t, db.Create(&models.User{
			CustomerID: &created.ID, Name: "Mehmet Kaya", Email: "mehmet@example.com",
			PasswordHash: "x", Role: models.RoleCustomer,
		}).Error)

		status, raw := testutil.Do(t, app, "PUT", fmt.Sprintf("/api/admin/customers/%d", created.ID), map[string]any{
			"last_name": "Demir", "email": "mehmet.demir@example.com", "is_active": false,
		})
		require.Equal(t, 200, status, string(raw))

		var user models.User
		require.NoError(t, db.Where("customer_id = ?", created.ID).First(&user).Error)
		assert.Equal(t, "mehmet.demir@example.com", user.Email)
		assert.Equal(t, "Mehmet Demir", user.Name)

		var cu models.Customer
		require.NoError(t, db.First(&cu, created.ID).Error)
		assert.False(t, cu.IsActive)
	})

	t.Run("get includes order count", func(t *testing.T) {
		status, raw := testutil.Do(t, app, "GET", fmt.Sprintf("/api/admin/customers/%d", created.ID), nil)
		require.Equal(t, 200, status, string(raw))
		var res CustomerResponse
		testutil.DecodeJSON(t, raw, &res)
		require.NotNil(t, res.OrderCount)
		assert.Equal(t, int64(0), *res.OrderCount)
	})

	t.Run("delete refused with orders", func(t *testing.T) {
		cu := testutil.CreateCustomer(t, db, "siparisli@example.com")
		require.NoError(t, db.Create(&models.Order{
			OrderNumber: "MP250101ABCDEF", CustomerID: cu.ID, Status: models.OrderStatusPending,
			Subtotal: testutil.Dec("10"), ShippingCost: testutil.Dec("0"), Total: testutil.Dec("10"),
			PaymentMethod: models.PaymentMethodBankTransfer,
			ShipFullName: "x", ShipPhone: "+905321234567", ShipCity: "x", ShipDistrict: "x", ShipLine: "x",
		}).Error)

		status, _ := testutil.Do(t, app, "DELETE", fmt.Sprintf("/api/admin/customers/%d", cu.ID), nil)
		assert.Equal(t, 409, status)
	})

	t.Run("delete removes addresses and user", func(t *testing.T) {
		status, _ := testutil.Do(t, app, "DELETE", fmt.Sprintf("/api/admin/customers/%d", created.ID), nil)
		require.Equal(t, 204, status)

		var count int64
		db.Model(&models.User{}).Where("customer_id = ?", created.ID).Count(&count)
		assert.Zero(t, count)
	})
}

func TestDeleteCustomerFailsClosed(t *testing.T) {
	db := testutil.NewDB(t)
	app := adminApp()
	cu := testutil.CreateCustomer(t, db, "kontrol@example.com")
	require.NoError(t, db.Migrator().DropTable(&models.OrderItem{}, &models.Order{}))

	status, _ := testutil.Do(t, app, "DELETE", fmt.Sprintf("/api/admin/customers/%d", cu.ID), nil)
	assert.Equal(t, 500, status)

	var count int64
	require.NoError(t, db.Model(&models.Customer{}).Where("id = ?", cu.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func createAddress(t *testing.T, app *fiber.App, title string, isDefault bool) AddressResponse {
	t.Helper()
	status, raw := testutil.Do(t, app, "POST", "/api/account/addresses", map[string]any{
		"title": title, "full_name": "Ahmet Yılmaz", "phone": "+90 532 123 45 67",
		"city": "İstanbul", "district": "Kadıköy", "line": "Moda Cad. No:1",
		"postal_code": "34710", "is_default": isDefault,
	})
	require.Equal(t, 201, status, string(raw))
	var a AddressResponse
	testutil.DecodeJSON(t, raw, &a)
	return a
}

func defaults(t *testing.T, db *gorm.DB, customerID uint) []uint {
	t.Helper()
	var ids []uint
	require.NoError(t, db.Model(&models.Address{}).
		Where("customer_id = ? AND is_default = ?", customerID, true).
		Pluck("id", &ids).Error)
	return ids
}

func TestAccount(t *testing.T) {
	db := testutil.NewDB(t)
	cu := testutil.CreateCustomer(t, db, "ahmet@example.com")
	app := accountApp(cu.ID)

	home := createAddress(t, app, "Ev", false)
	assert.True(t, home.IsDefault, "ilk adres varsayılan olmalı")
	assert.Equal(t, "+905321234567", home.Phone)

	work := createAddress(t, app, "İş", true)
	assert.Equal(t, []uint{work.ID}, defaults(t, db, cu.ID))

	t.Run("invalid phone on address", func(t *testing.T) {
		status, _ := testutil.Do(t, app, "POST", "/api/account/addresses", map[string]any{
			"full_name": "X", "phone": "+1 555 0100", "city": "X", "district": "X", "line": "X",
		})
		assert.Equal(t, 400, status)
	})

	t.Run("update can move default", func(t *testing.T) {
		status, raw := testutil.Do(t, app, "PUT", fmt.Sprintf("/api/account/addresses/%d", home.ID), map[string]any{
			"title": "Ev", "full_name": "Ahmet Yılmaz", "phone": "05321234567",
			"city": "İstanbul", "district": "Üsküdar", "line": "Bağlarbaşı", "is_default": true,
		})
		require.Equal(t, 200, status, string(raw))
		assert.Equal(t, []uint{home.ID}, defaults(t, db, cu.ID))
	})

	t.Run("cannot touch another customer's address", func(t *testing.T) {
		other := testutil.CreateCustomer(t, db, "baska@example.com")
		otherApp := accountApp(other.ID)
		status, _ := testutil.Do(t, otherApp, "DELETE", fmt.Sprintf("/api/account/addresses/%d", home.ID), nil)
		assert.Equal(t, 404, status)
	})

	t.Run("deleting default promotes another", func(t *testing.T) {
		status, _ := testutil.Do(t, app, "DELETE", fmt.Sprintf("/api/account/addresses/%d", home.ID), nil)
		require.Equal(t, 204, status)
		assert.Equal(t, []uint{work.ID}, defaults(t, db, cu.ID))
	})

	t.Run("profile update ignores admin fields", func(t *testing.T) {
		status, raw := testutil.Do(t, app, "PUT", "/api/account/profile", map[string]any{
			"first_name": "Ahmet Can", "is_active": false, "notes": "vip",
		})
		require.Equal(t, 200, status, string(raw))

		var got models.Customer
		require.NoError(t, db.First(&got, cu.ID).Error)
		assert.Equal(t, "Ahmet Can", got.FirstName)
		assert.True(t, got.IsActive)
		assert.Empty(t, got.Notes)
	})

	t.Run("profile lists addresses", func(t *testing.T) {
		status, raw := testutil.Do(t, app, "GET", "/api/account/profile", nil)
		require.Equal(t, 200, status, string(raw))
		var res CustomerResponse
		testutil.DecodeJSON(t, raw, &res)
		assert.Len(t, res.Addresses, 1)
	})
}
