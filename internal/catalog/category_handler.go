package catalog

import (
	"fmt"
	"strings"

	"motoparca-backend/internal/audit"
	"motoparca-backend/internal/database"
	"motoparca-backend/internal/httpx"
	"motoparca-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

type CategoryResponse struct {
	ID          uint   `json:"id"`
	ParentID    *uint  `json:"parent_id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
	IsActive    bool   `json:"is_active"`
	SortOrder   int    `json:"sort_order"`
	CreatedAt   string `json:"created_at"`
}

type CreateCategoryRequest struct {
	ParentID    *uint  `json:"parent_id"`
	Name        string `json:"name" validate:"required,max=150"`
	Description string `json:"description" validate:"max=1000"`
	IsActive    *bool  `json:"is_active"`
	SortOrder   int    `json:"sort_order"`
}

type UpdateCategoryRequest struct {
	ParentID    *uint   `json:"parent_id"`
	ClearParent bool    `json:"clear_parent"`
	Name        *string `json:"name"`
	Description *string `json:"description"`
	IsActive    *bool   `json:"is_active"`
	SortOrder   *int    `json:"sort_order"`
}

func toCategoryResponse(cat *models.Category) CategoryResponse {
	return CategoryResponse{
		ID:          cat.ID,
		ParentID:    cat.ParentID,
		Name:        cat.Name,
		Slug:        cat.Slug,
		Description: cat.Description,
		IsActive:    cat.IsActive,
		SortOrder:   cat.SortOrder,
		CreatedAt:   cat.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}

// checkParent: üst kategori var mı ve döngü oluşturuyor mu
func checkParent(categoryID uint, parentID uint) error {
	if categoryID != 0 && parentID == categoryID {
		return fiber.NewError(fiber.StatusBadRequest, "Kategori kendisinin üst kategorisi olamaz")
	}

	current := parentID
	for depth := 0; current != 0; depth++ {
		if depth > 32 {
			return fiber.NewError(fiber.StatusBadRequest, "Kategori hiyerarşisi çok derin")
		}
		var parent models.Category
		if err := database.DB.First(&parent, current).Error; err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Üst kategori bulunamadı")
		}
		if categoryID != 0 && parent.ParentID != nil && *parent.ParentID == categoryID {
			return fiber.NewError(fiber.StatusBadRequest, "Kategori hiyerarşisinde döngü oluşur")
		}
		if parent.ParentID == nil {
			break
		}
		current = *parent.ParentID
	}
	return nil
}

// GET /api/admin/categories
func ListCategoriesHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var categories []models.Category
		if err := database.DB.Order("sort_order asc, name asc").Find(&categories).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Kategoriler listelenemedi")
		}

		res := make([]CategoryResponse, 0, len(categories))
		for i := range categories {
			res = append(res, toCategoryResponse(&categories[i]))
		}
		return c.JSON(res)
	}
}

// POST /api/admin/categories
func CreateCategoryHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateCategoryRequest
		if err := httpx.ParseBody(c, &body); err != nil {
			return err
		}

		body.Name = strings.TrimSpace(body.Name)
		if body.Name == "" {
			return fiber.NewError(fiber.StatusBadRequest, "Kategori adı zorunlu")
		}
		if body.ParentID != nil {
			if err := checkParent(0, *body.ParentID); err != nil {
				return err
			}
		}

		slug, err := uniqueSlug(database.DB, &models.Category{}, Slugify(body.Name), 0)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Slug oluşturulamadı")
		}

		cat := models.Category{
			ParentID:    body.ParentID,
			Name:        body.Name,
			Slug:        slug,
			Description: strings.TrimSpace(body.Description),
			IsActive:    body.IsActive == nil || *body.IsActive,
			SortOrder:   body.SortOrder,
		}
		if err := database.DB.Create(&cat).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Kategori oluşturulamadı")
		}

		audit.Record(c, audit.EntityCategory, cat.ID, models.AuditActionCreate,
			fmt.Sprintf("Kategori eklendi: %s", cat.Name), nil, cat)

		return c.Status(fiber.StatusCreated).JSON(toCategoryResponse(&cat))
	}
}

// PUT /api/admin/categories/:id
func UpdateCategoryHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}

		var cat models.Category
		if err := database.DB.First(&cat, id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Kategori bulunamadı")
		}
		before := cat

		var body UpdateCategoryRequest
		if err := httpx.ParseBody(c, &body); err != nil {
			return err
		}

		if body.Name != nil {
			name := strings.TrimSpace(*body.Name)
			if name == "" {
				return fiber.NewError(fiber.StatusBadRequest, "Kategori adı boş olamaz")
			}
			if name != cat.Name {
				slug, err := uniqueSlug(database.DB, &models.Category{}, Slugify(name), cat.ID)
				if err != nil {
					return fiber.NewError(fiber.StatusInternalServerError, "Slug oluşturulamadı")
				}
				cat.Slug = slug
			}
			cat.Name = name
		}
		if body.ClearParent {
			cat.ParentID = nil
		} else if body.ParentID != nil {
			if err := checkParent(cat.ID, *body.ParentID); err != nil {
				return err
			}
			cat.ParentID = body.ParentID
		}
		if body.Description != nil {
			cat.Description = strings.TrimSpace(*body.Description)
		}
		if body.IsActive != nil {
			cat.IsActive = *body.IsActive
		}
		if body.SortOrder != nil {
			cat.SortOrder = *body.SortOrder
		}

		if err := database.DB.Save(&cat).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Kategori güncellenemedi")
		}

		audit.Record(c, audit.EntityCategory, cat.ID, models.AuditActionUpdate,
			fmt.Sprintf("Kategori güncellendi: %s", cat.Name), before, cat)

		return c.JSON(toCategoryResponse(&cat))
	}
}

// DELETE /api/admin/categories/:id
func DeleteCategoryHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}

		var cat models.Category
		if err := database.DB.First(&cat, id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Kategori bulunamadı")
		}

		var count int64
		if err := database.DB.Model(&models.Product{}).Where("category_id = ?", id).Count(&count).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Kategori kullanımı kontrol edilemedi")
		}
		if count > 0 {
			return fiber.NewError(fiber.StatusConflict, "Bu kategoriye ait ürünler var, önce ürünleri taşıyın veya silin")
		}
		if err := database.DB.Model(&models.Category{}).Where("parent_id = ?", id).Count(&count).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Kategori kullanımı kontrol edilemedi")
		}
		if count > 0 {
			return fiber.NewError(fiber.StatusConflict, "Bu kategorinin alt kategorileri var")
		}

		if err := database.DB.Delete(&cat).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Kategori silinemedi")
		}

		audit.Record(c, audit.EntityCategory, cat.ID, models.AuditActionDelete,
			fmt.Sprintf("Kategori silindi: %s", cat.Name), cat, nil)

		return c.SendStatus(fiber.StatusNoContent)
	}
}
