package catalog

import (
	"errors"
	"fmt"
	"strings"

	"motoparca-backend/internal/audit"
	"motoparca-backend/internal/database"
	"motoparca-backend/internal/httpx"
	"motoparca-backend/internal/models"
	"motoparca-backend/internal/pricing"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ProductResponse struct {
	ID            uint             `json:"id"`
	CategoryID    *uint            `json:"category_id"`
	Name          string           `json:"name"`
	Slug          string           `json:"slug"`
	SKU           string           `json:"sku"`
	Brand         string           `json:"brand"`
	Description   string           `json:"description"`
	BasePrice     decimal.Decimal  `json:"base_price"`
	CustomPrice   *decimal.Decimal `json:"custom_price"`
	FinalPrice    decimal.Decimal  `json:"final_price"`
	StockQuantity int              `json:"stock_quantity"`
	IsActive      bool             `json:"is_active"`
	IsFeatured    bool             `json:"is_featured"`
	Weight        decimal.Decimal  `json:"weight"`
	ImageURL      string           `json:"image_url"`
	UpdatedAt     string           `json:"updated_at"`
}

type ProductDetailResponse struct {
	ProductResponse
	Pricing pricing.Breakdown `json:"pricing"`
}

type CreateProductRequest struct {
	CategoryID    *uint            `json:"category_id"`
	Name          string           `json:"name" validate:"required,max=255"`
	SKU           string           `json:"sku" validate:"required,max=80"`
	Brand         string           `json:"brand" validate:"max=100"`
	Description   string           `json:"description"`
	BasePrice     decimal.Decimal  `json:"base_price"`
	CustomPrice   *decimal.Decimal `json:"custom_price"`
	StockQuantity int              `json:"stock_quantity" validate:"gte=0"`
	IsActive      *bool            `json:"is_active"`
	IsFeatured    bool             `json:"is_featured"`
	Weight        decimal.Decimal  `json:"weight"`
	ImageURL      string           `json:"image_url" validate:"max=500"`
}

type UpdateProductRequest struct {
	CategoryID       *uint            `json:"category_id"`
	ClearCategory    bool             `json:"clear_category"`
	Name             *string          `json:"name"`
	SKU              *string          `json:"sku"`
	Brand            *string          `json:"brand"`
	Description      *string          `json:"description"`
	BasePrice        *decimal.Decimal `json:"base_price"`
	CustomPrice      *decimal.Decimal `json:"custom_price"`
	ClearCustomPrice bool             `json:"clear_custom_price"`
	StockQuantity    *int             `json:"stock_quantity"`
	IsActive         *bool            `json:"is_active"`
	IsFeatured       *bool            `json:"is_featured"`
	Weight           *decimal.Decimal `json:"weight"`
	ImageURL         *string          `json:"image_url"`
}

func toProductResponse(p *models.Product, finalPrice decimal.Decimal) ProductResponse {
	return ProductResponse{
		ID:            p.ID,
		CategoryID:    p.CategoryID,
		Name:          p.Name,
		Slug:          p.Slug,
		SKU:           p.SKU,
		Brand:         p.Brand,
		Description:   p.Description,
		BasePrice:     p.BasePrice,
		CustomPrice:   p.CustomPrice,
		FinalPrice:    finalPrice,
		StockQuantity: p.StockQuantity,
		IsActive:      p.IsActive,
		IsFeatured:    p.IsFeatured,
		Weight:        p.Weight,
		ImageURL:      p.ImageURL,
		UpdatedAt:     p.UpdatedAt.Format("2006-01-02 15:04:05"),
	}
}

func validatePrices(base decimal.Decimal, custom *decimal.Decimal) error {
	if base.IsNegative() {
		return fiber.NewError(fiber.StatusBadRequest, "Liste fiyatı negatif olamaz")
	}
	if custom != nil && !custom.IsPositive() {
		return fiber.NewError(fiber.StatusBadRequest, "Özel fiyat 0'dan büyük olmalı")
	}
	return nil
}

func checkCategory(id *uint) error {
	if id == nil {
		return nil
	}
	var count int64
	if err := database.DB.Model(&models.Category{}).Where("id = ?", *id).Count(&count).Error; err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "Kategori okunamadı")
	}
	if count == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "Kategori bulunamadı")
	}
	return nil
}

func checkSKU(sku string, excludeID uint) error {
	var count int64
	q := database.DB.Model(&models.Product{}).Where("sku = ?", sku)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Count(&count).Error; err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "SKU kontrol edilemedi")
	}
	if count > 0 {
		return fiber.NewError(fiber.StatusConflict, "Bu SKU zaten kullanılıyor")
	}
	return nil
}

func invalidateProduct(c *fiber.Ctx, engine *pricing.Engine, id uint) {
	if err := engine.Invalidate(c.UserContext(), id); err != nil {
		zap.L().Warn("ürün fiyat cache'i temizlenemedi", zap.Uint("product_id", id), zap.Error(err))
	}
}

// GET /api/admin/products?category_id=1&q=balata&is_active=true&page=1&per_page=20
func ListProductsHandler(engine *pricing.Engine) fiber.Handler {
	return func(c *fiber.Ctx) error {
		dbq := database.DB.Model(&models.Product{})

		categoryID, err := httpx.QueryUint(c, "category_id")
		if err != nil {
			return err
		}
		if categoryID != nil {
			dbq = dbq.Where("category_id = ?", *categoryID)
		}
		if q := c.Query("q"); q != "" {
			dbq = dbq.Where(searchClause("search_text"), searchPattern(q))
		}
		if active := c.Query("is_active"); active != "" {
			dbq = dbq.Where("is_active = ?", active == "true")
		}

		page := httpx.ParsePage(c)
		var total int64
		if err := dbq.Count(&total).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Ürünler listelenemedi")
		}

		var products []models.Product
		if err := dbq.Order("name asc, id asc").Offset(page.Offset()).Limit(page.PerPage).Find(&products).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Ürünler listelenemedi")
		}

		prices, err := engine.FinalPrices(c.UserContext(), products)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Fiyatlar hesaplanamadı")
		}

		res := make([]ProductResponse, 0, len(products))
		for i := range products {
			res = append(res, toProductResponse(&products[i], prices[products[i].ID]))
		}
		return c.JSON(httpx.NewPageResponse(res, total, page))
	}
}

// GET /api/admin/products/:id
func GetProductHandler(engine *pricing.Engine) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}

		var p models.Product
		if err := database.DB.First(&p, id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Ürün bulunamadı")
		}

		breakdown, err := engine.Explain(c.UserContext(), &p)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Fiyat hesaplanamadı")
		}

		return c.JSON(ProductDetailResponse{
			ProductResponse: toProductResponse(&p, breakdown.FinalPrice),
			Pricing:         breakdown,
		})
	}
}

// POST /api/admin/products
func CreateProductHandler(engine *pricing.Engine) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateProductRequest
		if err := httpx.ParseBody(c, &body); err != nil {
			return err
		}

		body.Name = strings.TrimSpace(body.Name)
		body.SKU = strings.ToUpper(strings.TrimSpace(body.SKU))
		body.Brand = strings.TrimSpace(body.Brand)
		if body.Name == "" || body.SKU == "" {
			return fiber.NewError(fiber.StatusBadRequest, "Ürün adı ve SKU zorunlu")
		}
		if err := validatePrices(body.BasePrice, body.CustomPrice); err != nil {
			return err
		}
		if body.Weight.IsNegative() {
			return fiber.NewError(fiber.StatusBadRequest, "Ağırlık negatif olamaz")
		}
		if err := checkCategory(body.CategoryID); err != nil {
			return err
		}
		if err := checkSKU(body.SKU, 0); err != nil {
			return err
		}

		slug, err := uniqueSlug(database.DB, &models.Product{}, Slugify(body.Name), 0)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Slug oluşturulamadı")
		}

		p := models.Product{
			CategoryID:    body.CategoryID,
			Name:          body.Name,
			Slug:          slug,
			SKU:           body.SKU,
			Brand:         body.Brand,
			Description:   body.Description,
			BasePrice:     body.BasePrice.Round(2),
			CustomPrice:   body.CustomPrice,
			StockQuantity: body.StockQuantity,
			IsActive:      body.IsActive == nil || *body.IsActive,
			IsFeatured:    body.IsFeatured,
			Weight:        body.Weight,
			ImageURL:      strings.TrimSpace(body.ImageURL),
			SearchText:    productSearchText(body.Name, body.SKU, body.Brand),
		}
		if err := database.DB.Create(&p).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Ürün oluşturulamadı")
		}

		price, err := engine.FinalPrice(c.UserContext(), &p)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Fiyat hesaplanamadı")
		}

		audit.Record(c, audit.EntityProduct, p.ID, models.AuditActionCreate,
			fmt.Sprintf("Ürün eklendi: %s (%s)", p.Name, p.SKU), nil, p)

		return c.Status(fiber.StatusCreated).JSON(toProductResponse(&p, price))
	}
}

// PUT /api/admin/products/:id
func UpdateProductHandler(engine *pricing.Engine) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}

		var p models.Product
		if err := database.DB.First(&p, id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Ürün bulunamadı")
		}
		before := p

		var body UpdateProductRequest
		if err := httpx.ParseBody(c, &body); err != nil {
			return err
		}

		if body.Name != nil {
			name := strings.TrimSpace(*body.Name)
			if name == "" {
				return fiber.NewError(fiber.StatusBadRequest, "Ürün adı boş olamaz")
			}
			if name != p.Name {
				slug, err := uniqueSlug(database.DB, &models.Product{}, Slugify(name), p.ID)
				if err != nil {
					return fiber.NewError(fiber.StatusInternalServerError, "Slug oluşturulamadı")
				}
				p.Slug = slug
			}
			p.Name = name
		}
		if body.SKU != nil {
			sku := strings.ToUpper(strings.TrimSpace(*body.SKU))
			if sku == "" {
				return fiber.NewError(fiber.StatusBadRequest, "SKU boş olamaz")
			}
			if err := checkSKU(sku, p.ID); err != nil {
				return err
			}
			p.SKU = sku
		}
		if body.ClearCategory {
			p.CategoryID = nil
		} else if body.CategoryID != nil {
			if err := checkCategory(body.CategoryID); err != nil {
				return err
			}
			p.CategoryID = body.CategoryID
		}
		if body.Brand != nil {
			p.Brand = strings.TrimSpace(*body.Brand)
		}
		if body.Description != nil {
			p.Description = *body.Description
		}
		if body.BasePrice != nil {
			p.BasePrice = body.BasePrice.Round(2)
		}
		if body.ClearCustomPrice {
			p.CustomPrice = nil
		} else if body.CustomPrice != nil {
			p.CustomPrice = body.CustomPrice
		}
		if err := validatePrices(p.BasePrice, p.CustomPrice); err != nil {
			return err
		}
		if body.StockQuantity != nil {
			if *body.StockQuantity < 0 {
				return fiber.NewError(fiber.StatusBadRequest, "Stok negatif olamaz")
			}
			p.StockQuantity = *body.StockQuantity
		}
		if body.IsActive != nil {
			p.IsActive = *body.IsActive
		}
		if body.IsFeatured != nil {
			p.IsFeatured = *body.IsFeatured
		}
		if body.Weight != nil {
			if body.Weight.IsNegative() {
				return fiber.NewError(fiber.StatusBadRequest, "Ağırlık negatif olamaz")
			}
			p.Weight = *body.Weight
		}
		if body.ImageURL != nil {
			p.ImageURL = strings.TrimSpace(*body.ImageURL)
		}
		p.SearchText = productSearchText(p.Name, p.SKU, p.Brand)

		if err := database.DB.Save(&p).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Ürün güncellenemedi")
		}

		invalidateProduct(c, engine, p.ID)
		price, err := engine.FinalPrice(c.UserContext(), &p)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Fiyat hesaplanamadı")
		}

		audit.Record(c, audit.EntityProduct, p.ID, models.AuditActionUpdate,
			fmt.Sprintf("Ürün güncellendi: %s (%s)", p.Name, p.SKU), before, p)

		return c.JSON(toProductResponse(&p, price))
	}
}

// DELETE /api/admin/products/:id
// Siparişlerde geçen ürünler silinmez, pasife alınmalı
func DeleteProductHandler(engine *pricing.Engine) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}

		var p models.Product
		if err := database.DB.First(&p, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "Ürün bulunamadı")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "Ürün okunamadı")
		}

		var orderCount int64
		if err := database.DB.Model(&models.OrderItem{}).Where("product_id = ?", id).Count(&orderCount).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Ürün kullanımı kontrol edilemedi")
		}
		if orderCount > 0 {
			return fiber.NewError(fiber.StatusConflict, "Bu ürün siparişlerde kullanılmış, silmek yerine pasife alın")
		}

		// sepet satırları geri alınmaz; ürün kuralları ayrı loglanır
		var rules []models.PriceRule
		err = database.DB.Transaction(func(tx *gorm.DB) error {
			if err := tx.Where("product_id = ?", id).Delete(&models.CartItem{}).Error; err != nil {
				return err
			}
			if err := tx.Where("product_id = ?", id).Find(&rules).Error; err != nil {
				return err
			}
			if err := tx.Where("product_id = ?", id).Delete(&models.PriceRule{}).Error; err != nil {
				return err
			}
			return tx.Delete(&p).Error
		})
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Ürün silinemedi")
		}

		invalidateProduct(c, engine, p.ID)
		audit.Record(c, audit.EntityProduct, p.ID, models.AuditActionDelete,
			fmt.Sprintf("Ürün silindi: %s (%s)", p.Name, p.SKU), p, nil)
		for _, r := range rules {
			audit.Record(c, audit.EntityPriceRule, r.ID, models.AuditActionDelete,
				fmt.Sprintf("Fiyat kuralı ürünle birlikte silindi: %s", r.Name), r, nil)
		}

		return c.SendStatus(fiber.StatusNoContent)
	}
}
