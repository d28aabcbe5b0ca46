package customer

import (
	"errors"
	"fmt"
	"strings"

	"motoparca-backend/internal/audit"
	"motoparca-backend/internal/database"
	"motoparca-backend/internal/httpx"
	"motoparca-backend/internal/models"
	"motoparca-backend/internal/phone"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type CustomerResponse struct {
	ID             uint              `json:"id"`
	FirstName      string            `json:"first_name"`
	LastName       string            `json:"last_name"`
	Email          string            `json:"email"`
	Phone          string            `json:"phone"`
	PhoneFormatted string            `json:"phone_formatted"`
	PhoneIsMobile  bool              `json:"phone_is_mobile"`
	TaxNumber      string            `json:"tax_number"`
	CompanyName    string            `json:"company_name"`
	Notes          string            `json:"notes,omitempty"`
	IsActive       bool              `json:"is_active"`
	CreatedAt      string            `json:"created_at"`
	Addresses      []AddressResponse `json:"addresses,omitempty"`
	OrderCount     *int64            `json:"order_count,omitempty"`
}

type CreateCustomerRequest struct {
	FirstName   string `json:"first_name" validate:"required,max=100"`
	LastName    string `json:"last_name" validate:"required,max=100"`
	Email       string `json:"email" validate:"required,email,max=150"`
	Phone       string `json:"phone"`
	TaxNumber   string `json:"tax_number" validate:"max=20"`
	CompanyName string `json:"company_name" validate:"max=200"`
	Notes       string `json:"notes" validate:"max=1000"`
	IsActive    *bool  `json:"is_active"`
}

type UpdateCustomerRequest struct {
	FirstName   *string `json:"first_name"`
	LastName    *string `json:"last_name"`
	Email       *string `json:"email" validate:"omitempty,email,max=150"`
	Phone       *string `json:"phone"`
	TaxNumber   *string `json:"tax_number"`
	CompanyName *string `json:"company_name"`
	Notes       *string `json:"notes"`
	IsActive    *bool   `json:"is_active"`
}

func toCustomerResponse(cu *models.Customer, withNotes bool) CustomerResponse {
	res := CustomerResponse{
		ID:             cu.ID,
		FirstName:      cu.FirstName,
		LastName:       cu.LastName,
		Email:          cu.Email,
		Phone:          cu.Phone,
		PhoneFormatted: phone.Format(cu.Phone),
		PhoneIsMobile:  phone.IsMobile(cu.Phone),
		TaxNumber:      cu.TaxNumber,
		CompanyName:    cu.CompanyName,
		IsActive:       cu.IsActive,
		CreatedAt:      cu.CreatedAt.Format("2006-01-02 15:04:05"),
	}
	if withNotes {
		res.Notes = cu.Notes
	}
	for i := range cu.Addresses {
		res.Addresses = append(res.Addresses, toAddressResponse(&cu.Addresses[i]))
	}
	return res
}

func checkEmail(email string, excludeID uint) error {
	var count int64
	q := database.DB.Model(&models.Customer{}).Where("email = ?", email)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Count(&count).Error; err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "E-posta kontrol edilemedi")
	}
	if count > 0 {
		return fiber.NewError(fiber.StatusConflict, "Bu e-posta ile kayıtlı bir müşteri var")
	}
	return nil
}

func normalizePhone(raw string) (string, error) {
	p, err := phone.NormalizeOptional(raw)
	if err != nil {
		return "", fiber.NewError(fiber.StatusBadRequest, "Telefon numarası geçersiz")
	}
	return p, nil
}

// GET /api/admin/customers?q=ahmet&page=1&per_page=20
func ListCustomersHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		dbq := database.DB.Model(&models.Customer{})
		if q := strings.TrimSpace(c.Query("q")); q != "" {
			like := "%" + strings.ToLower(q) + "%"
			digits, _ := phone.NormalizeOptional(q)
			if digits == "" {
				digits = q
			}
			dbq = dbq.Where("LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ? OR LOWER(email) LIKE ? OR LOWER(company_name) LIKE ? OR phone LIKE ?",
				like, like, like, like, "%"+digits+"%")
		}
		if active := c.Query("is_active"); active != "" {
			dbq = dbq.Where("is_active = ?", active == "true")
		}

		page := httpx.ParsePage(c)
		var total int64
		if err := dbq.Count(&total).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Müşteriler listelenemedi")
		}

		var customers []models.Customer
		if err := dbq.Order("created_at desc, id desc").Offset(page.Offset()).Limit(page.PerPage).Find(&customers).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Müşteriler listelenemedi")
		}

		res := make([]CustomerResponse, 0, len(customers))
		for i := range customers {
			res = append(res, toCustomerResponse(&customers[i], false))
		}
		return c.JSON(httpx.NewPageResponse(res, total, page))
	}
}

// GET /api/admin/customers/:id
func GetCustomerHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}

		var cu models.Customer
		err = database.DB.Preload("Addresses", func(db *gorm.DB) *gorm.DB {
			return db.Order("is_default desc, id asc")
		}).First(&cu, id).Error
		if err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Müşteri bulunamadı")
		}

		var orderCount int64
		if err := database.DB.Model(&models.Order{}).Where("customer_id = ?", id).Count(&orderCount).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Müşteri siparişleri kontrol edilemedi")
		}

		res := toCustomerResponse(&cu, true)
		res.OrderCount = &orderCount
		return c.JSON(res)
	}
}

// POST /api/admin/customers
func CreateCustomerHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateCustomerRequest
		if err := httpx.ParseBody(c, &body); err != nil {
			return err
		}

		email := strings.TrimSpace(strings.ToLower(body.Email))
		if err := checkEmail(email, 0); err != nil {
			return err
		}
		normalized, err := normalizePhone(body.Phone)
		if err != nil {
			return err
		}

		cu := models.Customer{
			FirstName:   strings.TrimSpace(body.FirstName),
			LastName:    strings.TrimSpace(body.LastName),
			Email:       email,
			Phone:       normalized,
			TaxNumber:   strings.TrimSpace(body.TaxNumber),
			CompanyName: strings.TrimSpace(body.CompanyName),
			Notes:       body.Notes,
			IsActive:    body.IsActive == nil || *body.IsActive,
		}
		if err := database.DB.Create(&cu).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Müşteri oluşturulamadı")
		}

		audit.Record(c, audit.EntityCustomer, cu.ID, models.AuditActionCreate,
			fmt.Sprintf("Müşteri eklendi: %s", cu.FullName()), nil, cu)

		return c.Status(fiber.StatusCreated).JSON(toCustomerResponse(&cu, true))
	}
}

// applyUpdate fills cu from body. notes and is_active are only honoured for admins.
func applyUpdate(cu *models.Customer, body *UpdateCustomerRequest, admin bool) error {
	if body.FirstName != nil {
		v := strings.TrimSpace(*body.FirstName)
		if v == "" {
			return fiber.NewError(fiber.StatusBadRequest, "Ad boş olamaz")
		}
		cu.FirstName = v
	}
	if body.LastName != nil {
		v := strings.TrimSpace(*body.LastName)
		if v == "" {
			return fiber.NewError(fiber.StatusBadRequest, "Soyad boş olamaz")
		}
		cu.LastName = v
	}
	if body.Email != nil {
		email := strings.TrimSpace(strings.ToLower(*body.Email))
		if email == "" {
			return fiber.NewError(fiber.StatusBadRequest, "E-posta boş olamaz")
		}
		if err := checkEmail(email, cu.ID); err != nil {
			return err
		}
		cu.Email = email
	}
	if body.Phone != nil {
		normalized, err := normalizePhone(*body.Phone)
		if err != nil {
			return err
		}
		cu.Phone = normalized
	}
	if body.TaxNumber != nil {
		cu.TaxNumber = strings.TrimSpace(*body.TaxNumber)
	}
	if body.CompanyName != nil {
		cu.CompanyName = strings.TrimSpace(*body.CompanyName)
	}
	if admin {
		if body.Notes != nil {
			cu.Notes = *body.Notes
		}
		if body.IsActive != nil {
			cu.IsActive = *body.IsActive
		}
	}
	return nil
}

// PUT /api/admin/customers/:id
func UpdateCustomerHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}

		var cu models.Customer
		if err := database.DB.First(&cu, id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Müşteri bulunamadı")
		}
		before := cu

		var body UpdateCustomerRequest
		if err := httpx.ParseBody(c, &body); err != nil {
			return err
		}
		if err := applyUpdate(&cu, &body, true); err != nil {
			return err
		}

		if err := saveCustomer(&cu); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Müşteri güncellenemedi")
		}

		audit.Record(c, audit.EntityCustomer, cu.ID, models.AuditActionUpdate,
			fmt.Sprintf("Müşteri güncellendi: %s", cu.FullName()), before, cu)

		return c.JSON(toCustomerResponse(&cu, true))
	}
}

// saveCustomer keeps the linked user's login email and display name in sync.
func saveCustomer(cu *models.Customer) error {
	return database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Addresses").Save(cu).Error; err != nil {
			return err
		}
		return tx.Model(&models.User{}).
			Where("customer_id = ?", cu.ID).
			Updates(map[string]any{"email": cu.Email, "name": cu.FullName()}).Error
	})
}

// DELETE /api/admin/customers/:id
func DeleteCustomerHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}

		var cu models.Customer
		if err := database.DB.First(&cu, id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Müşteri bulunamadı")
		}

		var orderCount int64
		if err := database.DB.Model(&models.Order{}).Where("customer_id = ?", id).Count(&orderCount).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Müşteri siparişleri kontrol edilemedi")
		}
		if orderCount > 0 {
			return fiber.NewError(fiber.StatusConflict, "Siparişi olan müşteri silinemez, pasife alın")
		}

		err = database.DB.Transaction(func(tx *gorm.DB) error {
			if err := tx.Where("customer_id = ?", id).Delete(&models.Address{}).Error; err != nil {
				return err
			}
			var cart models.Cart
			err := tx.Where("customer_id = ?", id).First(&cart).Error
			if err == nil {
				if err := tx.Where("cart_id = ?", cart.ID).Delete(&models.CartItem{}).Error; err != nil {
					return err
				}
				if err := tx.Delete(&cart).Error; err != nil {
					return err
				}
			} else if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			if err := tx.Where("customer_id = ?", id).Delete(&models.User{}).Error; err != nil {
				return err
			}
			return tx.Delete(&cu).Error
		})
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Müşteri silinemedi")
		}

		audit.Record(c, audit.EntityCustomer, cu.ID, models.AuditActionDelete,
			fmt.Sprintf("Müşteri silindi: %s", cu.FullName()), cu, nil)

		return c.SendStatus(fiber.StatusNoContent)
	}
}
