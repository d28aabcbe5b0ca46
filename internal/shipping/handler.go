package shipping

import (
	"motoparca-backend/internal/audit"
	"motoparca-backend/internal/httpx"
	"motoparca-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type SettingsRequest struct {
	FlatRate              decimal.Decimal `json:"flat_rate"`
	FreeShippingThreshold decimal.Decimal `json:"free_shipping_threshold"`
	IsFreeShippingEnabled bool            `json:"is_free_shipping_enabled"`
	IsActive              bool            `json:"is_active"`
}

type SettingsResponse struct {
	FlatRate              decimal.Decimal `json:"flat_rate"`
	FreeShippingThreshold decimal.Decimal `json:"free_shipping_threshold"`
	IsFreeShippingEnabled bool            `json:"is_free_shipping_enabled"`
	IsActive              bool            `json:"is_active"`
}

func toSettingsResponse(st models.ShippingSetting) SettingsResponse {
	return SettingsResponse{
		FlatRate:              st.FlatRate,
		FreeShippingThreshold: st.FreeShippingThreshold,
		IsFreeShippingEnabled: st.IsFreeShippingEnabled,
		IsActive:              st.IsActive,
	}
}

// GET /api/admin/shipping-settings
func GetSettingsHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		st, err := svc.Settings(c.UserContext())
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Kargo ayarları okunamadı")
		}
		return c.JSON(toSettingsResponse(st))
	}
}

// PUT /api/admin/shipping-settings
func UpdateSettingsHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body SettingsRequest
		if err := httpx.ParseBody(c, &body); err != nil {
			return err
		}
		if body.FlatRate.IsNegative() || body.FreeShippingThreshold.IsNegative() {
			return fiber.NewError(fiber.StatusBadRequest, "Kargo ücreti ve ücretsiz kargo limiti negatif olamaz")
		}

		before, err := svc.Settings(c.UserContext())
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Kargo ayarları okunamadı")
		}

		st, err := svc.Save(c.UserContext(), models.ShippingSetting{
			FlatRate:              body.FlatRate,
			FreeShippingThreshold: body.FreeShippingThreshold,
			IsFreeShippingEnabled: body.IsFreeShippingEnabled,
			IsActive:              body.IsActive,
		})
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Kargo ayarları kaydedilemedi")
		}

		audit.Record(c, audit.EntityShippingSetting, st.ID, models.AuditActionUpdate,
			"Kargo ayarları güncellendi", toSettingsResponse(before), toSettingsResponse(st))

		return c.JSON(toSettingsResponse(st))
	}
}

// GET /api/shipping/quote?subtotal=1250.50
func QuoteHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		subtotal, err := decimal.NewFromString(c.Query("subtotal", "0"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "subtotal geçersiz")
		}

		q, err := svc.Calculate(c.UserContext(), subtotal)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Kargo ücreti hesaplanamadı")
		}
		return c.JSON(q)
	}
}
