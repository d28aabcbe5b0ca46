package order

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"motoparca-backend/internal/audit"
	"motoparca-backend/internal/auth"
	"motoparca-backend/internal/database"
	"motoparca-backend/internal/httpx"
	"motoparca-backend/internal/models"
	"motoparca-backend/internal/phone"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type OrderItemResponse struct {
	ProductID   uint            `json:"product_id"`
	ProductName string          `json:"product_name"`
	SKU         string          `json:"sku"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int             `json:"quantity"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

type ShippingAddressResponse struct {
	FullName       string `json:"full_name"`
	Phone          string `json:"phone"`
	PhoneFormatted string `json:"phone_formatted"`
	City           string `json:"city"`
	District       string `json:"district"`
	Line           string `json:"line"`
	PostalCode     string `json:"postal_code"`
}

type OrderResponse struct {
	ID            uint                    `json:"id"`
	OrderNumber   string                  `json:"order_number"`
	CustomerID    uint                    `json:"customer_id"`
	CustomerName  string                  `json:"customer_name,omitempty"`
	Status        models.OrderStatus      `json:"status"`
	StatusLabel   string                  `json:"status_label"`
	Subtotal      decimal.Decimal         `json:"subtotal"`
	ShippingCost  decimal.Decimal         `json:"shipping_cost"`
	Total         decimal.Decimal         `json:"total"`
	PaymentMethod models.PaymentMethod    `json:"payment_method"`
	Note          string                  `json:"note"`
	Shipping      ShippingAddressResponse `json:"shipping_address"`
	Items         []OrderItemResponse     `json:"items,omitempty"`
	CreatedAt     string                  `json:"created_at"`
}

type UpdateStatusRequest struct {
	Status models.OrderStatus `json:"status" validate:"required"`
}

func toOrderResponse(o *models.Order) OrderResponse {
	res := OrderResponse{
		ID:            o.ID,
		OrderNumber:   o.OrderNumber,
		CustomerID:    o.CustomerID,
		Status:        o.Status,
		StatusLabel:   StatusLabel(o.Status),
		Subtotal:      o.Subtotal,
		ShippingCost:  o.ShippingCost,
		Total:         o.Total,
		PaymentMethod: o.PaymentMethod,
		Note:          o.Note,
		Shipping: ShippingAddressResponse{
			FullName:       o.ShipFullName,
			Phone:          o.ShipPhone,
			PhoneFormatted: phone.Format(o.ShipPhone),
			City:           o.ShipCity,
			District:       o.ShipDistrict,
			Line:           o.ShipLine,
			PostalCode:     o.ShipPostalCode,
		},
		CreatedAt: o.CreatedAt.Format("2006-01-02 15:04:05"),
	}
	if o.Customer.ID != 0 {
		res.CustomerName = o.Customer.FullName()
	}
	for _, it := range o.Items {
		res.Items = append(res.Items, OrderItemResponse{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			SKU:         it.SKU,
			UnitPrice:   it.UnitPrice,
			Quantity:    it.Quantity,
			LineTotal:   it.LineTotal,
		})
	}
	return res
}

func toHTTPError(err error) error {
	var ie *ItemError
	switch {
	case errors.As(err, &ie) && errors.Is(err, ErrInsufficientStock):
		return fiber.NewError(fiber.StatusConflict, "Yetersiz stok: "+ie.ProductName)
	case errors.As(err, &ie) && errors.Is(err, ErrProductUnavailable):
		return fiber.NewError(fiber.StatusConflict, "Ürün artık satışta değil: "+ie.ProductName)
	case errors.Is(err, ErrEmptyCart):
		return fiber.NewError(fiber.StatusBadRequest, "Sepetiniz boş")
	case errors.Is(err, ErrAddressNotFound):
		return fiber.NewError(fiber.StatusNotFound, "Adres bulunamadı")
	case errors.Is(err, ErrInvalidAddress):
		return fiber.NewError(fiber.StatusBadRequest, "Teslimat adresi eksik veya telefon numarası geçersiz")
	case errors.Is(err, ErrInvalidPaymentMethod):
		return fiber.NewError(fiber.StatusBadRequest, "Ödeme yöntemi geçersiz")
	case errors.Is(err, ErrOrderNotFound):
		return fiber.NewError(fiber.StatusNotFound, "Sipariş bulunamadı")
	case errors.Is(err, ErrInvalidTransition):
		return fiber.NewError(fiber.StatusConflict, "Sipariş bu duruma geçirilemez")
	}
	zap.L().Error("sipariş işlemi başarısız", zap.Error(err))
	return fiber.NewError(fiber.StatusInternalServerError, "Sipariş işlemi başarısız")
}

// POST /api/account/orders
func PlaceOrderHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		customerID, err := auth.CurrentCustomerID(c)
		if err != nil {
			return err
		}

		var body CreateInput
		if err := httpx.ParseBody(c, &body); err != nil {
			return err
		}

		o, err := svc.CreateFromCart(c.UserContext(), customerID, body)
		if err != nil {
			return toHTTPError(err)
		}
		return c.Status(fiber.StatusCreated).JSON(toOrderResponse(o))
	}
}

// GET /api/account/orders
func ListMyOrdersHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		customerID, err := auth.CurrentCustomerID(c)
		if err != nil {
			return err
		}

		dbq := database.DB.Model(&models.Order{}).Where("customer_id = ?", customerID)
		page := httpx.ParsePage(c)
		var total int64
		if err := dbq.Count(&total).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Siparişler listelenemedi")
		}

		var orders []models.Order
		if err := dbq.Order("created_at desc, id desc").Offset(page.Offset()).Limit(page.PerPage).Find(&orders).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Siparişler listelenemedi")
		}

		res := make([]OrderResponse, 0, len(orders))
		for i := range orders {
			res = append(res, toOrderResponse(&orders[i]))
		}
		return c.JSON(httpx.NewPageResponse(res, total, page))
	}
}

// GET /api/account/orders/:number
func GetMyOrderHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		customerID, err := auth.CurrentCustomerID(c)
		if err != nil {
			return err
		}

		var o models.Order
		err = database.DB.Preload("Items").
			Where("order_number = ? AND customer_id = ?", strings.ToUpper(c.Params("number")), customerID).
			First(&o).Error
		if err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Sipariş bulunamadı")
		}
		return c.JSON(toOrderResponse(&o))
	}
}

// filteredOrders applies the admin filters: status, customer_id, from, to (YYYY-MM-DD, inclusive) and q.
func filteredOrders(c *fiber.Ctx) (*gorm.DB, error) {
	dbq := database.DB.Model(&models.Order{})

	if status := models.OrderStatus(c.Query("status")); status != "" {
		if !ValidStatus(status) {
			return nil, fiber.NewError(fiber.StatusBadRequest, "status geçersiz")
		}
		dbq = dbq.Where("status = ?", status)
	}
	customerID, err := httpx.QueryUint(c, "customer_id")
	if err != nil {
		return nil, err
	}
	if customerID != nil {
		dbq = dbq.Where("customer_id = ?", *customerID)
	}
	from, err := httpx.QueryDate(c, "from")
	if err != nil {
		return nil, err
	}
	if from != nil {
		dbq = dbq.Where("created_at >= ?", *from)
	}
	to, err := httpx.QueryDate(c, "to")
	if err != nil {
		return nil, err
	}
	if to != nil {
		dbq = dbq.Where("created_at < ?", to.AddDate(0, 0, 1))
	}
	if q := strings.TrimSpace(c.Query("q")); q != "" {
		dbq = dbq.Where("order_number LIKE ?", "%"+strings.ToUpper(q)+"%")
	}
	return dbq, nil
}

// GET /api/admin/orders?status=pending&customer_id=3&from=2025-01-01&to=2025-01-31&q=MP2501
func ListOrdersHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		dbq, err := filteredOrders(c)
		if err != nil {
			return err
		}

		page := httpx.ParsePage(c)
		var total int64
		if err := dbq.Count(&total).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Siparişler listelenemedi")
		}

		var orders []models.Order
		if err := dbq.Preload("Customer").Order("created_at desc, id desc").Offset(page.Offset()).Limit(page.PerPage).Find(&orders).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Siparişler listelenemedi")
		}

		res := make([]OrderResponse, 0, len(orders))
		for i := range orders {
			res = append(res, toOrderResponse(&orders[i]))
		}
		return c.JSON(httpx.NewPageResponse(res, total, page))
	}
}

// GET /api/admin/orders/:id
func GetOrderHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}

		var o models.Order
		if err := database.DB.Preload("Customer").Preload("Items").First(&o, id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Sipariş bulunamadı")
		}
		return c.JSON(toOrderResponse(&o))
	}
}

func recordStatusChange(c *fiber.Ctx, before, after *models.Order) {
	audit.Record(c, audit.EntityOrder, after.ID, models.AuditActionUpdate,
		fmt.Sprintf("Sipariş %s: %s → %s", after.OrderNumber, StatusLabel(before.Status), StatusLabel(after.Status)),
		fiber.Map{"status": before.Status}, fiber.Map{"status": after.Status})
}

// PUT /api/admin/orders/:id/status
func UpdateStatusHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		var body UpdateStatusRequest
		if err := httpx.ParseBody(c, &body); err != nil {
			return err
		}
		if !ValidStatus(body.Status) {
			return fiber.NewError(fiber.StatusBadRequest, "status geçersiz")
		}

		before, after, err := svc.UpdateStatus(c.UserContext(), id, body.Status)
		if err != nil {
			return toHTTPError(err)
		}
		recordStatusChange(c, before, after)
		return c.JSON(toOrderResponse(after))
	}
}

// POST /api/admin/orders/:id/cancel
func CancelOrderHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}

		before, after, err := svc.Cancel(c.UserContext(), id)
		if err != nil {
			return toHTTPError(err)
		}
		recordStatusChange(c, before, after)
		return c.JSON(toOrderResponse(after))
	}
}

// GET /api/admin/orders/export?from=2025-01-01&to=2025-01-31
func ExportOrdersHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		dbq, err := filteredOrders(c)
		if err != nil {
			return err
		}

		var orders []models.Order
		if err := dbq.Preload("Customer").Order("created_at asc, id asc").Find(&orders).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Siparişler okunamadı")
		}

		f, err := buildOrdersSheet(orders)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Excel dosyası oluşturulamadı")
		}
		return httpx.SendXLSX(c, f, fmt.Sprintf("siparisler-%s.xlsx", time.Now().Format("20060102")))
	}
}
