package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"motoparca-backend/internal/httpx"
	"motoparca-backend/internal/models"
	"motoparca-backend/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func writeLog(t *testing.T, db *gorm.DB, entity string, id uint, action models.AuditAction, before, after any) models.AuditLog {
	t.Helper()
	require.NoError(t, WriteLog(db, LogOptions{
		UserID: 1, UserName: "Test Admin", EntityType: entity, EntityID: id,
		Action: action, Description: fmt.Sprintf("%s %d", action, id), Before: before, After: after,
	}))
	var entry models.AuditLog
	require.NoError(t, db.Order("id desc").First(&entry).Error)
	return entry
}

func TestUndoLog(t *testing.T) {
	ctx := context.Background()

	t.Run("update restores the previous row", func(t *testing.T) {
		db := testutil.NewDB(t)
		p := testutil.CreateProduct(t, db, "BJ-1", "100", 3, nil)
		before := *p

		p.BasePrice = testutil.Dec("140")
		p.StockQuantity = 9
		require.NoError(t, db.Save(p).Error)
		entry := writeLog(t, db, EntityProduct, p.ID, models.AuditActionUpdate, before, *p)

		undone, err := UndoLog(ctx, db, entry.ID, 2, "Diğer Admin")
		require.NoError(t, err)
		assert.True(t, undone.IsUndone)
		require.NotNil(t, undone.UndoneBy)
		assert.EqualValues(t, 2, *undone.UndoneBy)

		var got models.Product
		require.NoError(t, db.First(&got, p.ID).Error)
		assert.Equal(t, "100.00", got.BasePrice.StringFixed(2))
		assert.Equal(t, 3, got.StockQuantity)

		var undoEntry models.AuditLog
		require.NoError(t, db.Where("action = ?", models.AuditActionUndo).First(&undoEntry).Error)
		assert.Equal(t, "Geri alındı: update "+fmt.Sprint(p.ID), undoEntry.Description)
		assert.Equal(t, entry.AfterData, undoEntry.BeforeData)

		_, err = UndoLog(ctx, db, entry.ID, 2, "Diğer Admin")
		assert.ErrorIs(t, err, ErrAlreadyUndone)
	})

	t.Run("create is undone by deleting", func(t *testing.T) {
		db := testutil.NewDB(t)
		cat := testutil.CreateCategory(t, db, "Fren", "fren")
		entry := writeLog(t, db, EntityCategory, cat.ID, models.AuditActionCreate, nil, *cat)

		_, err := UndoLog(ctx, db, entry.ID, 1, "Test Admin")
		require.NoError(t, err)

		var count int64
		db.Model(&models.Category{}).Where("id = ?", cat.ID).Count(&count)
		assert.Zero(t, count)
	})

	t.Run("create undo refused while referenced", func(t *testing.T) {
		db := testutil.NewDB(t)
		cat := testutil.CreateCategory(t, db, "Fren", "fren")
		catLog := writeLog(t, db, EntityCategory, cat.ID, models.AuditActionCreate, nil, *cat)
		p := testutil.CreateProduct(t, db, "FR-1", "300", 4, &cat.ID)
		productLog := writeLog(t, db, EntityProduct, p.ID, models.AuditActionCreate, nil, *p)
		require.NoError(t, db.Create(&models.OrderItem{
			OrderID: 1, ProductID: p.ID, ProductName: p.Name, SKU: p.SKU,
			UnitPrice: testutil.Dec("300"), Quantity: 1, LineTotal: testutil.Dec("300"),
		}).Error)

		_, err := UndoLog(ctx, db, catLog.ID, 1, "Test Admin")
		assert.ErrorIs(t, err, ErrInUse)
		_, err = UndoLog(ctx, db, productLog.ID, 1, "Test Admin")
		assert.ErrorIs(t, err, ErrInUse)

		var count int64
		require.NoError(t, db.Model(&models.Category{}).Where("id = ?", cat.ID).Count(&count).Error)
		assert.EqualValues(t, 1, count)
		require.NoError(t, db.Model(&models.Product{}).Where("id = ?", p.ID).Count(&count).Error)
		assert.EqualValues(t, 1, count)

		var entry models.AuditLog
		require.NoError(t, db.First(&entry, catLog.ID).Error)
		assert.False(t, entry.IsUndone)
	})

	t.Run("create undo refused for child category and rule target", func(t *testing.T) {
		db := testutil.NewDB(t)
		parent := testutil.CreateCategory(t, db, "Motor", "motor")
		parentLog := writeLog(t, db, EntityCategory, parent.ID, models.AuditActionCreate, nil, *parent)
		child := &models.Category{Name: "Piston", Slug: "piston", ParentID: &parent.ID, IsActive: true}
		require.NoError(t, db.Create(child).Error)

		_, err := UndoLog(ctx, db, parentLog.ID, 1, "Test Admin")
		assert.ErrorIs(t, err, ErrInUse)

		p := testutil.CreateProduct(t, db, "PST-1", "900", 1, nil)
		productLog := writeLog(t, db, EntityProduct, p.ID, models.AuditActionCreate, nil, *p)
		require.NoError(t, db.Create(&models.PriceRule{
			Name: "piston", Scope: models.PriceRuleScopeProduct, ProductID: &p.ID,
			Kind: models.PriceRuleKindFixed, Value: testutil.Dec("-50"), IsActive: true,
		}).Error)

		_, err = UndoLog(ctx, db, productLog.ID, 1, "Test Admin")
		assert.ErrorIs(t, err, ErrInUse)
	})

	t.Run("recreate refused while target is gone", func(t *testing.T) {
		db := testutil.NewDB(t)
		p := testutil.CreateProduct(t, db, "KSK-1", "1500", 1, nil)
		rule := models.PriceRule{
			Name: "kask", Scope: models.PriceRuleScopeProduct, ProductID: &p.ID,
			Kind: models.PriceRuleKindPercentage, Value: testutil.Dec("-5"), IsActive: true,
		}
		require.NoError(t, db.Create(&rule).Error)
		require.NoError(t, db.Delete(&rule).Error)
		ruleLog := writeLog(t, db, EntityPriceRule, rule.ID, models.AuditActionDelete, rule, nil)
		require.NoError(t, db.Delete(p).Error)
		productLog := writeLog(t, db, EntityProduct, p.ID, models.AuditActionDelete, *p, nil)

		_, err := UndoLog(ctx, db, ruleLog.ID, 1, "Test Admin")
		assert.ErrorIs(t, err, ErrTargetMissing)

		_, err = UndoLog(ctx, db, productLog.ID, 1, "Test Admin")
		require.NoError(t, err)
		_, err = UndoLog(ctx, db, ruleLog.ID, 1, "Test Admin")
		require.NoError(t, err)

		var got models.PriceRule
		require.NoError(t, db.First(&got, rule.ID).Error)
		assert.Equal(t, p.ID, *got.ProductID)
	})

	t.Run("delete is undone by recreating", func(t *testing.T) {
		db := testutil.NewDB(t)
		rule := models.PriceRule{
			Name: "Yaz indirimi", Scope: models.PriceRuleScopeGlobal,
			Kind: models.PriceRuleKindPercentage, Value: testutil.Dec("-10"), IsActive: true,
		}
		require.NoError(t, db.Create(&rule).Error)
		require.NoError(t, db.Delete(&rule).Error)
		entry := writeLog(t, db, EntityPriceRule, rule.ID, models.AuditActionDelete, rule, nil)

		_, err := UndoLog(ctx, db, entry.ID, 1, "Test Admin")
		require.NoError(t, err)

		var got models.PriceRule
		require.NoError(t, db.First(&got, rule.ID).Error)
		assert.Equal(t, "Yaz indirimi", got.Name)
		assert.Equal(t, "-10", got.Value.String())
	})

	t.Run("not undoable", func(t *testing.T) {
		db := testutil.NewDB(t)
		entry := writeLog(t, db, EntityOrder, 7, models.AuditActionUpdate, map[string]string{"status": "pending"}, nil)
		_, err := UndoLog(ctx, db, entry.ID, 1, "Test Admin")
		assert.ErrorIs(t, err, ErrNotUndoable)

		_, err = UndoLog(ctx, db, 999, 1, "Test Admin")
		assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	})
}

func TestHandlers(t *testing.T) {
	db := testutil.NewDB(t)
	p := testutil.CreateProduct(t, db, "ZN-1", "50", 1, nil)
	before := *p
	p.Name = "Zincir 428H"
	require.NoError(t, db.Save(p).Error)
	entry := writeLog(t, db, EntityProduct, p.ID, models.AuditActionUpdate, before, *p)
	writeLog(t, db, EntityOrder, 3, models.AuditActionUpdate, nil, nil)

	var hooked []string
	hook := func(_ context.Context, entityType string, entityID uint) {
		hooked = append(hooked, fmt.Sprintf("%s:%d", entityType, entityID))
	}

	app := testutil.NewApp()
	admin := app.Group("/api/admin", testutil.AsAdmin(1))
	admin.Get("/audit-logs", ListAuditLogsHandler())
	admin.Post("/audit-logs/:id/undo", UndoAuditLogHandler(hook))

	status, raw := testutil.Do(t, app, "GET", "/api/admin/audit-logs?entity_type=product", nil)
	require.Equal(t, 200, status)
	var page httpx.PageResponse[AuditLogResponse]
	testutil.DecodeJSON(t, raw, &page)
	require.Len(t, page.Data, 1)
	assert.Equal(t, entry.ID, page.Data[0].ID)
	assert.False(t, page.Data[0].IsUndone)

	status, raw = testutil.Do(t, app, "POST", fmt.Sprintf("/api/admin/audit-logs/%d/undo", entry.ID), nil)
	require.Equal(t, 200, status, string(raw))
	assert.Equal(t, []string{fmt.Sprintf("product:%d", p.ID)}, hooked)

	var got models.Product
	require.NoError(t, db.First(&got, p.ID).Error)
	assert.Equal(t, "Ürün ZN-1", got.Name)

	status, _ = testutil.Do(t, app, "POST", fmt.Sprintf("/api/admin/audit-logs/%d/undo", entry.ID), nil)
	assert.Equal(t, 409, status)
	status, _ = testutil.Do(t, app, "POST", "/api/admin/audit-logs/999/undo", nil)
	assert.Equal(t, 404, status)

	cat := testutil.CreateCategory(t, db, "Lastik", "lastik")
	catLog := writeLog(t, db, EntityCategory, cat.ID, models.AuditActionCreate, nil, *cat)
	testutil.CreateProduct(t, db, "LST-1", "2000", 2, &cat.ID)
	status, raw = testutil.Do(t, app, "POST", fmt.Sprintf("/api/admin/audit-logs/%d/undo", catLog.ID), nil)
	assert.Equal(t, 409, status)
	assert.Contains(t, string(raw), "kullanılıyor")

	status, raw = testutil.Do(t, app, "GET", "/api/admin/audit-logs?entity_type=product", nil)
	require.Equal(t, 200, status)
	testutil.DecodeJSON(t, raw, &page)
	require.Len(t, page.Data, 2)
	assert.Equal(t, models.AuditActionUndo, page.Data[0].Action)

	var snapshot models.Product
	require.NoError(t, json.Unmarshal([]byte(entry.BeforeData), &snapshot))
	assert.Equal(t, "ZN-1", snapshot.SKU)
}
