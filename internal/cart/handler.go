package cart

import (
	"errors"

	"motoparca-backend/internal/auth"
	"motoparca-backend/internal/httpx"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type AddItemRequest struct {
	ProductID uint `json:"product_id" validate:"required"`
	Quantity  int  `json:"quantity" validate:"required,gte=1,lte=999"`
}

type SetQuantityRequest struct {
	Quantity int `json:"quantity" validate:"gte=0,lte=999"`
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, ErrProductNotFound):
		return fiber.NewError(fiber.StatusNotFound, "Ürün bulunamadı")
	case errors.Is(err, ErrItemNotFound):
		return fiber.NewError(fiber.StatusNotFound, "Ürün sepette bulunamadı")
	case errors.Is(err, ErrInsufficientStock):
		return fiber.NewError(fiber.StatusConflict, "Yetersiz stok")
	case errors.Is(err, ErrInvalidQuantity):
		return fiber.NewError(fiber.StatusBadRequest, "Adet geçersiz")
	}
	zap.L().Error("sepet işlemi başarısız", zap.Error(err))
	return fiber.NewError(fiber.StatusInternalServerError, "Sepet işlemi başarısız")
}

// respond returns the refreshed cart after a mutation.
func respond(c *fiber.Ctx, svc *Service, customerID uint) error {
	v, err := svc.View(c.UserContext(), customerID)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(v)
}

// GET /api/account/cart
func GetCartHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		customerID, err := auth.CurrentCustomerID(c)
		if err != nil {
			return err
		}
		return respond(c, svc, customerID)
	}
}

// POST /api/account/cart/items
func AddItemHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		customerID, err := auth.CurrentCustomerID(c)
		if err != nil {
			return err
		}
		var body AddItemRequest
		if err := httpx.ParseBody(c, &body); err != nil {
			return err
		}
		if err := svc.AddItem(c.UserContext(), customerID, body.ProductID, body.Quantity); err != nil {
			return toHTTPError(err)
		}
		return respond(c, svc, customerID)
	}
}

// PUT /api/account/cart/items/:productId
func SetQuantityHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		customerID, err := auth.CurrentCustomerID(c)
		if err != nil {
			return err
		}
		productID, err := httpx.ParamID(c, "productId")
		if err != nil {
			return err
		}
		var body SetQuantityRequest
		if err := httpx.ParseBody(c, &body); err != nil {
			return err
		}
		if err := svc.SetQuantity(c.UserContext(), customerID, productID, body.Quantity); err != nil {
			return toHTTPError(err)
		}
		return respond(c, svc, customerID)
	}
}

// DELETE /api/account/cart/items/:productId
func RemoveItemHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		customerID, err := auth.CurrentCustomerID(c)
		if err != nil {
			return err
		}
		productID, err := httpx.ParamID(c, "productId")
		if err != nil {
			return err
		}
		if err := svc.RemoveItem(c.UserContext(), customerID, productID); err != nil {
			return toHTTPError(err)
		}
		return respond(c, svc, customerID)
	}
}

// DELETE /api/account/cart
func ClearCartHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		customerID, err := auth.CurrentCustomerID(c)
		if err != nil {
			return err
		}
		if err := svc.Clear(c.UserContext(), customerID); err != nil {
			return toHTTPError(err)
		}
		return respond(c, svc, customerID)
	}
}
