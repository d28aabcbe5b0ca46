package shipping

import (
	"testing"

	"motoparca-backend/internal/config"
	"motoparca-backend/internal/models"
	"motoparca-backend/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlers(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewService(db, config.ShippingConfig{DefaultFlatRate: 89.90, DefaultFreeThreshold: 1500})

	app := testutil.NewApp()
	app.Get("/api/shipping/quote", QuoteHandler(svc))
	admin := app.Group("/api/admin", testutil.AsAdmin(1))
	admin.Get("/shipping-settings", GetSettingsHandler(svc))
	admin.Put("/shipping-settings", UpdateSettingsHandler(svc))

	t.Run("quote uses defaults", func(t *testing.T) {
		status, raw := testutil.Do(t, app, "GET", "/api/shipping/quote?subtotal=1000", nil)
		require.Equal(t, 200, status, string(raw))

		var q Quote
		testutil.DecodeJSON(t, raw, &q)
		assert.Equal(t, "89.90", q.Cost.StringFixed(2))
		assert.Equal(t, "500.00", q.RemainingForFree.StringFixed(2))
	})

	t.Run("invalid subtotal", func(t *testing.T) {
		status, _ := testutil.Do(t, app, "GET", "/api/shipping/quote?subtotal=abc", nil)
		assert.Equal(t, 400, status)
	})

	t.Run("rejects negative values", func(t *testing.T) {
		status, _ := testutil.Do(t, app, "PUT", "/api/admin/shipping-settings", map[string]any{
			"flat_rate": -1, "free_shipping_threshold": 100, "is_active": true,
		})
		assert.Equal(t, 400, status)
	})

	t.Run("update then quote", func(t *testing.T) {
		status, raw := testutil.Do(t, app, "PUT", "/api/admin/shipping-settings", map[string]any{
			"flat_rate": "49.90", "free_shipping_threshold": "750",
			"is_free_shipping_enabled": true, "is_active": true,
		})
		require.Equal(t, 200, status, string(raw))

		status, raw = testutil.Do(t, app, "GET", "/api/shipping/quote?subtotal=800", nil)
		require.Equal(t, 200, status)
		var q Quote
		testutil.DecodeJSON(t, raw, &q)
		assert.True(t, q.IsFree)
		assert.True(t, q.Cost.IsZero())

		var logs []models.AuditLog
		require.NoError(t, db.Where("entity_type = ?", "shipping_setting").Find(&logs).Error)
		assert.Len(t, logs, 1)
	})
}
