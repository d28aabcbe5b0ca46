package payment

import (
	"context"
	"errors"
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

type LinkResponse struct {
	ID            uint                     `json:"id"`
	OrderID       *uint                    `json:"order_id"`
	OrderNumber   string                   `json:"order_number,omitempty"`
	Token         string                   `json:"token"`
	URL           string                   `json:"url"`
	Amount        decimal.Decimal          `json:"amount"`
	Description   string                   `json:"description"`
	CustomerEmail string                   `json:"customer_email"`
	Status        models.PaymentLinkStatus `json:"status"`
	ExpiresAt     time.Time                `json:"expires_at"`
	PaidAt        *time.Time               `json:"paid_at"`
	CreatedAt     time.Time                `json:"created_at"`
}

// PublicLinkResponse is what the payment page sees; no customer data.
type PublicLinkResponse struct {
	Token       string                   `json:"token"`
	Amount      decimal.Decimal          `json:"amount"`
	Description string                   `json:"description"`
	OrderNumber string                   `json:"order_number,omitempty"`
	Status      models.PaymentLinkStatus `json:"status"`
	ExpiresAt   time.Time                `json:"expires_at"`
	Payable     bool                     `json:"payable"`
}

func toLinkResponse(l *models.PaymentLink) LinkResponse {
	res := LinkResponse{
		ID:            l.ID,
		OrderID:       l.OrderID,
		Token:         l.Token,
		URL:           l.URL,
		Amount:        l.Amount,
		Description:   l.Description,
		CustomerEmail: l.CustomerEmail,
		Status:        l.Status,
		ExpiresAt:     l.ExpiresAt,
		PaidAt:        l.PaidAt,
		CreatedAt:     l.CreatedAt,
	}
	if l.Order != nil {
		res.OrderNumber = l.Order.OrderNumber
	}
	return res
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, ErrLinkNotFound):
		return fiber.NewError(fiber.StatusNotFound, "Ödeme linki bulunamadı")
	case errors.Is(err, ErrOrderNotFound):
		return fiber.NewError(fiber.StatusNotFound, "Sipariş bulunamadı")
	case errors.Is(err, ErrInvalidAmount):
		return fiber.NewError(fiber.StatusBadRequest, "Tutar sıfırdan büyük olmalı")
	case errors.Is(err, ErrOrderCancelled), errors.Is(err, ErrNotActive), errors.Is(err, ErrExpired):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	}
	zap.L().Error("ödeme linki işlemi başarısız", zap.Error(err))
	return fiber.NewError(fiber.StatusInternalServerError, "Ödeme linki işlemi başarısız")
}

// GET /api/admin/payment-links?status=active&order_id=3
func ListLinksHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		dbq := database.DB.Model(&models.PaymentLink{})

		if status := models.PaymentLinkStatus(c.Query("status")); status != "" {
			switch status {
			case models.PaymentLinkActive, models.PaymentLinkPaid, models.PaymentLinkExpired, models.PaymentLinkCancelled:
			default:
				return fiber.NewError(fiber.StatusBadRequest, "status geçersiz")
			}
			dbq = dbq.Where("status = ?", status)
		}
		orderID, err := httpx.QueryUint(c, "order_id")
		if err != nil {
			return err
		}
		if orderID != nil {
			dbq = dbq.Where("order_id = ?", *orderID)
		}

		page := httpx.ParsePage(c)
		var total int64
		if err := dbq.Count(&total).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Ödeme linkleri listelenemedi")
		}

		var links []models.PaymentLink
		if err := dbq.Preload("Order").Order("created_at desc, id desc").Offset(page.Offset()).Limit(page.PerPage).Find(&links).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Ödeme linkleri listelenemedi")
		}

		res := make([]LinkResponse, 0, len(links))
		for i := range links {
			res = append(res, toLinkResponse(&links[i]))
		}
		return c.JSON(httpx.NewPageResponse(res, total, page))
	}
}

// GET /api/admin/payment-links/:id
func GetLinkHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		link, err := svc.Get(c.UserContext(), id)
		if err != nil {
			return toHTTPError(err)
		}
		return c.JSON(toLinkResponse(link))
	}
}

// POST /api/admin/payment-links
func CreateLinkHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateInput
		if err := httpx.ParseBody(c, &body); err != nil {
			return err
		}
		if body.OrderID == nil && body.Amount == nil {
			return fiber.NewError(fiber.StatusBadRequest, "Tutar veya sipariş belirtilmeli")
		}

		link, err := svc.Create(c.UserContext(), body)
		if err != nil {
			return toHTTPError(err)
		}

		res := toLinkResponse(link)
		audit.Record(c, audit.EntityPaymentLink, link.ID, models.AuditActionCreate,
			fmt.Sprintf("Ödeme linki oluşturuldu: %s TL", link.Amount.StringFixed(2)), nil, res)
		return c.Status(fiber.StatusCreated).JSON(res)
	}
}

type linkOp func(ctx context.Context, id uint) (before, after *models.PaymentLink, err error)

func transitionHandler(op linkOp, verb string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}

		before, after, err := op(c.UserContext(), id)
		if err != nil {
			return toHTTPError(err)
		}

		audit.Record(c, audit.EntityPaymentLink, after.ID, models.AuditActionUpdate,
			"Ödeme linki "+verb, toLinkResponse(before), toLinkResponse(after))
		return c.JSON(toLinkResponse(after))
	}
}

// POST /api/admin/payment-links/:id/cancel
func CancelLinkHandler(svc *Service) fiber.Handler {
	return transitionHandler(svc.Cancel, "iptal edildi")
}

// POST /api/admin/payment-links/:id/mark-paid
func MarkPaidHandler(svc *Service) fiber.Handler {
	return transitionHandler(svc.MarkPaid, "ödendi olarak işaretlendi")
}

// GET /api/pay/:token
func ResolveLinkHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		link, err := svc.Resolve(c.UserContext(), c.Params("token"))
		if err != nil {
			return toHTTPError(err)
		}

		res := PublicLinkResponse{
			Token:       link.Token,
			Amount:      link.Amount,
			Description: link.Description,
			Status:      link.Status,
			ExpiresAt:   link.ExpiresAt,
			Payable:     link.Status == models.PaymentLinkActive,
		}
		if link.Order != nil {
			res.OrderNumber = link.Order.OrderNumber
		}
		return c.JSON(res)
	}
}
