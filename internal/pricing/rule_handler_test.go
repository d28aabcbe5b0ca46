package pricing

import (
	"context"
	"fmt"
	"testing"
	"time"

	"motoparca-backend/internal/cache"
	"motoparca-backend/internal/models"
	"motoparca-backend/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriceRuleHandlers(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	store := cache.NewMemoryStore()
	t.Cleanup(func() { store.Close() })
	engine := NewEngine(db, store, time.Minute)

	cat := testutil.CreateCategory(t, db, "Egzoz", "egzoz")
	p := testutil.CreateProduct(t, db, "EGZ-01", "1000", 3, &cat.ID)

	app := testutil.NewApp()
	admin := app.Group("/api/admin", testutil.AsAdmin(1))
	admin.Get("/price-rules", ListPriceRulesHandler())
	admin.Post("/price-rules", CreatePriceRuleHandler(engine))
	admin.Put("/price-rules/:id", UpdatePriceRuleHandler(engine))
	admin.Delete("/price-rules/:id", DeletePriceRuleHandler(engine))

	t.Run("rejects bad scope pairing", func(t *testing.T) {
		cases := []map[string]any{
			{"name": "x", "scope": "global", "kind": "percentage", "value": "10", "category_id": cat.ID},
			{"name": "x", "scope": "category", "kind": "percentage", "value": "10"},
			{"name": "x", "scope": "category", "kind": "percentage", "value": "10", "category_id": 999},
			{"name": "x", "scope": "product", "kind": "fixed", "value": "10", "product_id": p.ID, "category_id": cat.ID},
			{"name": "x", "scope": "product", "kind": "fixed", "value": "10", "product_id": 999},
			{"name": "x", "scope": "global", "kind": "percentage", "value": "0"},
			{"name": "x", "scope": "global", "kind": "percentage", "value": "-100"},
			{"name": "x", "scope": "global", "kind": "bogus", "value": "5"},
			{"name": "x", "scope": "global", "kind": "fixed", "value": "5",
				"starts_at": "2025-06-10T00:00:00Z", "ends_at": "2025-06-01T00:00:00Z"},
		}
		for i, body := range cases {
			status, raw := testutil.Do(t, app, fiber.MethodPost, "/api/admin/price-rules", body)
			assert.Equal(t, fiber.StatusBadRequest, status, "case %d: %s", i, raw)
		}

		var count int64
		db.Model(&models.PriceRule{}).Count(&count)
		assert.Zero(t, count)
	})

	var rule models.PriceRule

	t.Run("create clears cached prices", func(t *testing.T) {
		price, err := engine.FinalPrice(ctx, p)
		require.NoError(t, err)
		assert.Equal(t, "1000.00", price.StringFixed(2))

		status, raw := testutil.Do(t, app, fiber.MethodPost, "/api/admin/price-rules", map[string]any{
			"name": "Egzoz kampanyası", "scope": "category", "category_id": cat.ID,
			"kind": "percentage", "value": "-15",
		})
		require.Equal(t, fiber.StatusCreated, status, string(raw))
		testutil.DecodeJSON(t, raw, &rule)
		assert.True(t, rule.IsActive)

		_, err = store.Get(ctx, productKey(p.ID))
		assert.ErrorIs(t, err, cache.ErrMiss)

		price, err = engine.FinalPrice(ctx, p)
		require.NoError(t, err)
		assert.Equal(t, "850.00", price.StringFixed(2))
	})

	t.Run("update", func(t *testing.T) {
		status, raw := testutil.Do(t, app, fiber.MethodPut, fmt.Sprintf("/api/admin/price-rules/%d", rule.ID), map[string]any{
			"name": "Egzoz kampanyası", "scope": "category", "category_id": cat.ID,
			"kind": "percentage", "value": "-15", "is_active": false,
		})
		require.Equal(t, fiber.StatusOK, status, string(raw))

		price, err := engine.FinalPrice(ctx, p)
		require.NoError(t, err)
		assert.Equal(t, "1000.00", price.StringFixed(2))

		status, raw = testutil.Do(t, app, fiber.MethodGet, "/api/admin/price-rules?active=false", nil)
		require.Equal(t, fiber.StatusOK, status)
		var rules []models.PriceRule
		testutil.DecodeJSON(t, raw, &rules)
		require.Len(t, rules, 1)
		assert.False(t, rules[0].IsActive)

		status, _ = testutil.Do(t, app, fiber.MethodPut, "/api/admin/price-rules/999", map[string]any{
			"name": "x", "scope": "global", "kind": "fixed", "value": "5",
		})
		assert.Equal(t, fiber.StatusNotFound, status)
	})

	t.Run("delete", func(t *testing.T) {
		status, _ := testutil.Do(t, app, fiber.MethodDelete, fmt.Sprintf("/api/admin/price-rules/%d", rule.ID), nil)
		assert.Equal(t, fiber.StatusNoContent, status)

		status, _ = testutil.Do(t, app, fiber.MethodDelete, fmt.Sprintf("/api/admin/price-rules/%d", rule.ID), nil)
		assert.Equal(t, fiber.StatusNotFound, status)

		var logs []models.AuditLog
		require.NoError(t, db.Where("entity_type = ?", "price_rule").Order("id asc").Find(&logs).Error)
		require.Len(t, logs, 3)
		assert.Equal(t, models.AuditActionCreate, logs[0].Action)
		assert.Equal(t, models.AuditActionUpdate, logs[1].Action)
		assert.Equal(t, models.AuditActionDelete, logs[2].Action)
	})
}
