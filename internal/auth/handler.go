package auth

import (
	"errors"
	"strings"

	"motoparca-backend/internal/config"
	"motoparca-backend/internal/database"
	"motoparca-backend/internal/httpx"
	"motoparca-backend/internal/models"
	"motoparca-backend/internal/phone"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type RegisterAdminRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type RegisterCustomerRequest struct {
	FirstName string `json:"first_name" validate:"required"`
	LastName  string `json:"last_name" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	Phone     string `json:"phone"`
	Password  string `json:"password" validate:"required,min=8"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type UserResponse struct {
	ID         uint            `json:"id"`
	Name       string          `json:"name"`
	Email      string          `json:"email"`
	Role       models.UserRole `json:"role"`
	CustomerID *uint           `json:"customer_id,omitempty"`
}

func toUserResponse(u *models.User) UserResponse {
	return UserResponse{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role, CustomerID: u.CustomerID}
}

// POST /api/auth/register-admin
// Sadece sistemde hiç admin yokken çalışır
func RegisterAdminHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body RegisterAdminRequest
		if err := httpx.ParseBody(c, &body); err != nil {
			return err
		}
		body.Email = strings.TrimSpace(strings.ToLower(body.Email))

		var count int64
		if err := database.DB.Model(&models.User{}).Where("role = ?", models.RoleAdmin).Count(&count).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Kullanıcılar okunamadı")
		}
		if count > 0 {
			return fiber.NewError(fiber.StatusForbidden, "Zaten bir admin var")
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(body.Password), bcrypt.DefaultCost)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Şifre hashlenemedi")
		}

		user := models.User{
			Name:         strings.TrimSpace(body.Name),
			Email:        body.Email,
			PasswordHash: string(hash),
			Role:         models.RoleAdmin,
		}
		if err := database.DB.Create(&user).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Kullanıcı oluşturulamadı")
		}

		return c.Status(fiber.StatusCreated).JSON(toUserResponse(&user))
	}
}

var errCustomerExists = errors.New("müşteri kaydı zaten var")

// POST /api/auth/register
// Mağaza müşterisi kaydı: Customer + User tek transaction'da
func RegisterCustomerHandler(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body RegisterCustomerRequest
		if err := httpx.ParseBody(c, &body); err != nil {
			return err
		}
		body.Email = strings.TrimSpace(strings.ToLower(body.Email))

		normalizedPhone, err := phone.NormalizeOptional(body.Phone)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Telefon numarası geçersiz")
		}

		var count int64
		if err := database.DB.Model(&models.User{}).Where("email = ?", body.Email).Count(&count).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Kullanıcılar okunamadı")
		}
		if count > 0 {
			return fiber.NewError(fiber.StatusConflict, "Bu e-posta ile kayıtlı bir hesap var")
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(body.Password), bcrypt.DefaultCost)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Şifre hashlenemedi")
		}

		var user models.User
		err = database.DB.Transaction(func(tx *gorm.DB) error {
			// panelden açılmış müşteri kaydı e-posta ile sahiplenilemez
			var existing int64
			if err := tx.Model(&models.Customer{}).Where("email = ?", body.Email).Count(&existing).Error; err != nil {
				return err
			}
			if existing > 0 {
				return errCustomerExists
			}

			customer := models.Customer{
				FirstName: strings.TrimSpace(body.FirstName),
				LastName:  strings.TrimSpace(body.LastName),
				Email:     body.Email,
				Phone:     normalizedPhone,
				IsActive:  true,
			}
			if err := tx.Create(&customer).Error; err != nil {
				return err
			}

			user = models.User{
				CustomerID:   &customer.ID,
				Name:         customer.FullName(),
				Email:        body.Email,
				PasswordHash: string(hash),
				Role:         models.RoleCustomer,
			}
			return tx.Create(&user).Error
		})
		if errors.Is(err, errCustomerExists) {
			return fiber.NewError(fiber.StatusConflict, "Bu e-posta ile açılmış bir müşteri kaydı var, hesap için mağazayla iletişime geçin")
		}
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Hesap oluşturulamadı")
		}

		token, err := GenerateToken(cfg.JWT.Secret, cfg.JWT.Expiration, &user)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Token oluşturulamadı")
		}

		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"token": token,
			"user":  toUserResponse(&user),
		})
	}
}

// POST /api/auth/login
func LoginHandler(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body LoginRequest
		if err := httpx.ParseBody(c, &body); err != nil {
			return err
		}
		body.Email = strings.TrimSpace(strings.ToLower(body.Email))

		var user models.User
		if err := database.DB.Where("email = ?", body.Email).First(&user).Error; err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "Email veya şifre hatalı")
		}

		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(body.Password)); err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "Email veya şifre hatalı")
		}

		if user.CustomerID != nil {
			var customer models.Customer
			if err := database.DB.First(&customer, *user.CustomerID).Error; err == nil && !customer.IsActive {
				return fiber.NewError(fiber.StatusForbidden, "Hesabınız pasif durumda")
			}
		}

		token, err := GenerateToken(cfg.JWT.Secret, cfg.JWT.Expiration, &user)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Token oluşturulamadı")
		}

		return c.JSON(fiber.Map{
			"token": token,
			"user":  toUserResponse(&user),
		})
	}
}

// GET /api/auth/me
func MeHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, _, err := CurrentUser(c)
		if err != nil {
			return err
		}

		var user models.User
		if err := database.DB.First(&user, userID).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Kullanıcı bulunamadı")
		}

		resp := fiber.Map{"user": toUserResponse(&user)}
		if user.CustomerID != nil {
			var customer models.Customer
			if err := database.DB.First(&customer, *user.CustomerID).Error; err == nil {
				resp["customer"] = fiber.Map{
					"id":         customer.ID,
					"first_name": customer.FirstName,
					"last_name":  customer.LastName,
					"phone":      customer.Phone,
				}
			}
		}
		return c.JSON(resp)
	}
}
