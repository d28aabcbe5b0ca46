package pricing

import (
	"fmt"
	"time"

	"motoparca-backend/internal/audit"
	"motoparca-backend/internal/database"
	"motoparca-backend/internal/httpx"
	"motoparca-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type PriceRuleRequest struct {
	Name       string                `json:"name" validate:"required,max=150"`
	Scope      models.PriceRuleScope `json:"scope" validate:"required,oneof=global category product"`
	CategoryID *uint                 `json:"category_id"`
	ProductID  *uint                 `json:"product_id"`
	Kind       models.PriceRuleKind  `json:"kind" validate:"required,oneof=percentage fixed"`
	Value      decimal.Decimal       `json:"value"`
	Priority   int                   `json:"priority"`
	IsActive   *bool                 `json:"is_active"`
	StartsAt   *time.Time            `json:"starts_at"`
	EndsAt     *time.Time            `json:"ends_at"`
}

// validateRule checks the scope/target pairing and that targets exist.
func validateRule(body *PriceRuleRequest) error {
	switch body.Scope {
	case models.PriceRuleScopeGlobal:
		if body.CategoryID != nil || body.ProductID != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Genel kuralda kategori veya ürün seçilemez")
		}
	case models.PriceRuleScopeCategory:
		if body.CategoryID == nil || body.ProductID != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Kategori kuralı için sadece category_id verilmeli")
		}
		var count int64
		if err := database.DB.Model(&models.Category{}).Where("id = ?", *body.CategoryID).Count(&count).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Kural hedefi okunamadı")
		}
		if count == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Kategori bulunamadı")
		}
	case models.PriceRuleScopeProduct:
		if body.ProductID == nil || body.CategoryID != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Ürün kuralı için sadece product_id verilmeli")
		}
		var count int64
		if err := database.DB.Model(&models.Product{}).Where("id = ?", *body.ProductID).Count(&count).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Kural hedefi okunamadı")
		}
		if count == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Ürün bulunamadı")
		}
	}

	if body.Value.IsZero() {
		return fiber.NewError(fiber.StatusBadRequest, "Kural değeri 0 olamaz")
	}
	if body.Kind == models.PriceRuleKindPercentage && body.Value.LessThanOrEqual(decimal.NewFromInt(-100)) {
		return fiber.NewError(fiber.StatusBadRequest, "İndirim yüzdesi -100'den büyük olmalı")
	}
	if body.StartsAt != nil && body.EndsAt != nil && !body.EndsAt.After(*body.StartsAt) {
		return fiber.NewError(fiber.StatusBadRequest, "Bitiş tarihi başlangıçtan sonra olmalı")
	}
	return nil
}

func applyRuleRequest(r *models.PriceRule, body *PriceRuleRequest) {
	r.Name = body.Name
	r.Scope = body.Scope
	r.CategoryID = body.CategoryID
	r.ProductID = body.ProductID
	r.Kind = body.Kind
	r.Value = body.Value
	r.Priority = body.Priority
	r.StartsAt = body.StartsAt
	r.EndsAt = body.EndsAt
	if body.IsActive != nil {
		r.IsActive = *body.IsActive
	}
}

// GET /api/admin/price-rules?scope=category&active=true
func ListPriceRulesHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		dbq := database.DB.Model(&models.PriceRule{})
		if scope := c.Query("scope"); scope != "" {
			dbq = dbq.Where("scope = ?", scope)
		}
		if active := c.Query("active"); active != "" {
			dbq = dbq.Where("is_active = ?", active == "true")
		}

		var rules []models.PriceRule
		if err := dbq.Order("scope asc, priority desc, id asc").Find(&rules).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Fiyat kuralları listelenemedi")
		}
		return c.JSON(rules)
	}
}

// POST /api/admin/price-rules
func CreatePriceRuleHandler(engine *Engine) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body PriceRuleRequest
		if err := httpx.ParseBody(c, &body); err != nil {
			return err
		}
		if err := validateRule(&body); err != nil {
			return err
		}

		rule := models.PriceRule{IsActive: true}
		applyRuleRequest(&rule, &body)
		if err := database.DB.Create(&rule).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Fiyat kuralı oluşturulamadı")
		}

		invalidateAll(c, engine)
		audit.Record(c, audit.EntityPriceRule, rule.ID, models.AuditActionCreate,
			fmt.Sprintf("Fiyat kuralı eklendi: %s", rule.Name), nil, rule)

		return c.Status(fiber.StatusCreated).JSON(rule)
	}
}

// PUT /api/admin/price-rules/:id
func UpdatePriceRuleHandler(engine *Engine) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}

		var rule models.PriceRule
		if err := database.DB.First(&rule, id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Fiyat kuralı bulunamadı")
		}
		before := rule

		var body PriceRuleRequest
		if err := httpx.ParseBody(c, &body); err != nil {
			return err
		}
		if err := validateRule(&body); err != nil {
			return err
		}

		applyRuleRequest(&rule, &body)
		if err := database.DB.Save(&rule).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Fiyat kuralı güncellenemedi")
		}

		invalidateAll(c, engine)
		audit.Record(c, audit.EntityPriceRule, rule.ID, models.AuditActionUpdate,
			fmt.Sprintf("Fiyat kuralı güncellendi: %s", rule.Name), before, rule)

		return c.JSON(rule)
	}
}

// DELETE /api/admin/price-rules/:id
func DeletePriceRuleHandler(engine *Engine) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}

		var rule models.PriceRule
		if err := database.DB.First(&rule, id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Fiyat kuralı bulunamadı")
		}
		if err := database.DB.Delete(&rule).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Fiyat kuralı silinemedi")
		}

		invalidateAll(c, engine)
		audit.Record(c, audit.EntityPriceRule, rule.ID, models.AuditActionDelete,
			fmt.Sprintf("Fiyat kuralı silindi: %s", rule.Name), rule, nil)

		return c.SendStatus(fiber.StatusNoContent)
	}
}

func invalidateAll(c *fiber.Ctx, engine *Engine) {
	if err := engine.InvalidateAll(c.UserContext()); err != nil {
		zap.L().Warn("fiyat cache temizlenemedi", zap.Error(err))
	}
}
