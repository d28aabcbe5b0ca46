package customer

import (
	"errors"
	"strings"

	"motoparca-backend/internal/auth"
	"motoparca-backend/internal/database"
	"motoparca-backend/internal/httpx"
	"motoparca-backend/internal/models"
	"motoparca-backend/internal/phone"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type AddressResponse struct {
	ID             uint   `json:"id"`
	Title          string `json:"title"`
	FullName       string `json:"full_name"`
	Phone          string `json:"phone"`
	PhoneFormatted string `json:"phone_formatted"`
	City           string `json:"city"`
	District       string `json:"district"`
	Line           string `json:"line"`
	PostalCode     string `json:"postal_code"`
	IsDefault      bool   `json:"is_default"`
}

type AddressRequest struct {
	Title      string `json:"title" validate:"max=50"`
	FullName   string `json:"full_name" validate:"required,max=200"`
	Phone      string `json:"phone" validate:"required"`
	City       string `json:"city" validate:"required,max=100"`
	District   string `json:"district" validate:"required,max=100"`
	Line       string `json:"line" validate:"required,max=500"`
	PostalCode string `json:"postal_code" validate:"omitempty,numeric,len=5"`
	IsDefault  bool   `json:"is_default"`
}

func toAddressResponse(a *models.Address) AddressResponse {
	return AddressResponse{
		ID:             a.ID,
		Title:          a.Title,
		FullName:       a.FullName,
		Phone:          a.Phone,
		PhoneFormatted: phone.Format(a.Phone),
		City:           a.City,
		District:       a.District,
		Line:           a.Line,
		PostalCode:     a.PostalCode,
		IsDefault:      a.IsDefault,
	}
}

func (r *AddressRequest) apply(a *models.Address) error {
	normalized, err := phone.Normalize(r.Phone)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Telefon numarası geçersiz")
	}
	a.Title = strings.TrimSpace(r.Title)
	a.FullName = strings.TrimSpace(r.FullName)
	a.Phone = normalized
	a.City = strings.TrimSpace(r.City)
	a.District = strings.TrimSpace(r.District)
	a.Line = strings.TrimSpace(r.Line)
	a.PostalCode = strings.TrimSpace(r.PostalCode)
	a.IsDefault = r.IsDefault
	return nil
}

// saveAddress persists a and keeps exactly one default address per customer.
// The first address of a customer always becomes the default.
func saveAddress(db *gorm.DB, a *models.Address) error {
	return db.Transaction(func(tx *gorm.DB) error {
		var others int64
		if err := tx.Model(&models.Address{}).
			Where("customer_id = ? AND id <> ?", a.CustomerID, a.ID).
			Count(&others).Error; err != nil {
			return err
		}
		if others == 0 {
			a.IsDefault = true
		}

		if a.IsDefault {
			if err := tx.Model(&models.Address{}).
				Where("customer_id = ? AND id <> ?", a.CustomerID, a.ID).
				Update("is_default", false).Error; err != nil {
				return err
			}
		}
		return tx.Save(a).Error
	})
}

// GET /api/account/profile
func GetProfileHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		customerID, err := auth.CurrentCustomerID(c)
		if err != nil {
			return err
		}

		var cu models.Customer
		err = database.DB.Preload("Addresses", func(db *gorm.DB) *gorm.DB {
			return db.Order("is_default desc, id asc")
		}).First(&cu, customerID).Error
		if err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Müşteri bulunamadı")
		}
		return c.JSON(toCustomerResponse(&cu, false))
	}
}

// PUT /api/account/profile
func UpdateProfileHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		customerID, err := auth.CurrentCustomerID(c)
		if err != nil {
			return err
		}

		var cu models.Customer
		if err := database.DB.First(&cu, customerID).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Müşteri bulunamadı")
		}

		var body UpdateCustomerRequest
		if err := httpx.ParseBody(c, &body); err != nil {
			return err
		}
		if err := applyUpdate(&cu, &body, false); err != nil {
			return err
		}
		if err := saveCustomer(&cu); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Profil güncellenemedi")
		}
		return c.JSON(toCustomerResponse(&cu, false))
	}
}

// GET /api/account/addresses
func ListAddressesHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		customerID, err := auth.CurrentCustomerID(c)
		if err != nil {
			return err
		}

		var addresses []models.Address
		if err := database.DB.Where("customer_id = ?", customerID).Order("is_default desc, id asc").Find(&addresses).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Adresler listelenemedi")
		}

		res := make([]AddressResponse, 0, len(addresses))
		for i := range addresses {
			res = append(res, toAddressResponse(&addresses[i]))
		}
		return c.JSON(res)
	}
}

// POST /api/account/addresses
func CreateAddressHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		customerID, err := auth.CurrentCustomerID(c)
		if err != nil {
			return err
		}

		var body AddressRequest
		if err := httpx.ParseBody(c, &body); err != nil {
			return err
		}

		a := models.Address{CustomerID: customerID}
		if err := body.apply(&a); err != nil {
			return err
		}
		if err := saveAddress(database.DB, &a); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Adres kaydedilemedi")
		}
		return c.Status(fiber.StatusCreated).JSON(toAddressResponse(&a))
	}
}

func ownAddress(c *fiber.Ctx) (*models.Address, error) {
	customerID, err := auth.CurrentCustomerID(c)
	if err != nil {
		return nil, err
	}
	id, err := httpx.ParamID(c, "id")
	if err != nil {
		return nil, err
	}

	var a models.Address
	if err := database.DB.Where("id = ? AND customer_id = ?", id, customerID).First(&a).Error; err != nil {
		return nil, fiber.NewError(fiber.StatusNotFound, "Adres bulunamadı")
	}
	return &a, nil
}

// PUT /api/account/addresses/:id
func UpdateAddressHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		a, err := ownAddress(c)
		if err != nil {
			return err
		}

		var body AddressRequest
		if err := httpx.ParseBody(c, &body); err != nil {
			return err
		}
		wasDefault := a.IsDefault
		if err := body.apply(a); err != nil {
			return err
		}
		// varsayılan adres kaldırılamaz, başka bir adres varsayılan yapılmalı
		if wasDefault {
			a.IsDefault = true
		}
		if err := saveAddress(database.DB, a); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Adres güncellenemedi")
		}
		return c.JSON(toAddressResponse(a))
	}
}

// DELETE /api/account/addresses/:id
func DeleteAddressHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		a, err := ownAddress(c)
		if err != nil {
			return err
		}

		err = database.DB.Transaction(func(tx *gorm.DB) error {
			if err := tx.Delete(a).Error; err != nil {
				return err
			}
			if !a.IsDefault {
				return nil
			}
			// varsayılan silindiyse en eski adres varsayılan olur
			var next models.Address
			err := tx.Where("customer_id = ?", a.CustomerID).Order("id asc").First(&next).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			return tx.Model(&next).Update("is_default", true).Error
		})
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Adres silinemedi")
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}
