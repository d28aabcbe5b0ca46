package catalog

import (
	"sort"

	"motoparca-backend/internal/database"
	"motoparca-backend/internal/httpx"
	"motoparca-backend/internal/models"
	"motoparca-backend/internal/pricing"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type StoreProductResponse struct {
	ID          uint            `json:"id"`
	Name        string          `json:"name"`
	Slug        string          `json:"slug"`
	SKU         string          `json:"sku"`
	Brand       string          `json:"brand"`
	Price       decimal.Decimal `json:"price"`
	InStock     bool            `json:"in_stock"`
	IsFeatured  bool            `json:"is_featured"`
	ImageURL    string          `json:"image_url"`
	Category    *StoreCategory  `json:"category,omitempty"`
	Description string          `json:"description,omitempty"`
	Stock       *int            `json:"stock_quantity,omitempty"`
}

type StoreCategory struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type CategoryNode struct {
	ID       uint            `json:"id"`
	Name     string          `json:"name"`
	Slug     string          `json:"slug"`
	Children []*CategoryNode `json:"children"`
}

func toStoreProduct(p *models.Product, price decimal.Decimal) StoreProductResponse {
	res := StoreProductResponse{
		ID:         p.ID,
		Name:       p.Name,
		Slug:       p.Slug,
		SKU:        p.SKU,
		Brand:      p.Brand,
		Price:      price,
		InStock:    p.StockQuantity > 0,
		IsFeatured: p.IsFeatured,
		ImageURL:   p.ImageURL,
	}
	if p.Category != nil {
		res.Category = &StoreCategory{ID: p.Category.ID, Name: p.Category.Name, Slug: p.Category.Slug}
	}
	return res
}

// visibleProducts: aktif ürünler, kategorisi varsa o da aktif olmalı
func visibleProducts(db *gorm.DB) *gorm.DB {
	return db.Model(&models.Product{}).
		Where("products.is_active = ?", true).
		Where("products.category_id IS NULL OR products.category_id IN (?)",
			db.Model(&models.Category{}).Select("id").Where("is_active = ?", true))
}

// GET /api/store/products?category=fren&q=balata&featured=true&sort=price_asc&page=1&per_page=20
func StoreListProductsHandler(engine *pricing.Engine) fiber.Handler {
	return func(c *fiber.Ctx) error {
		dbq := visibleProducts(database.DB)

		if slug := c.Query("category"); slug != "" {
			var cat models.Category
			if err := database.DB.Where("slug = ? AND is_active = ?", slug, true).First(&cat).Error; err != nil {
				return fiber.NewError(fiber.StatusNotFound, "Kategori bulunamadı")
			}
			ids, err := categorySubtree(database.DB, cat.ID)
			if err != nil {
				return fiber.NewError(fiber.StatusInternalServerError, "Kategori okunamadı")
			}
			dbq = dbq.Where("products.category_id IN ?", ids)
		}
		if q := c.Query("q"); q != "" {
			dbq = dbq.Where(searchClause("products.search_text"), searchPattern(q))
		}
		if c.Query("featured") == "true" {
			dbq = dbq.Where("products.is_featured = ?", true)
		}

		sortKey := c.Query("sort", "newest")
		var order string
		switch sortKey {
		case "newest":
			order = "products.created_at desc, products.id desc"
		case "name":
			order = "products.name asc, products.id asc"
		case "price_asc", "price_desc":
			order = "products.id asc"
		default:
			return fiber.NewError(fiber.StatusBadRequest, "sort geçersiz, price_asc, price_desc, newest veya name olmalı")
		}

		page := httpx.ParsePage(c)
		var total int64
		if err := dbq.Count(&total).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Ürünler listelenemedi")
		}

		dbq = dbq.Order(order)
		var products []models.Product
		// Nihai fiyat kurallardan hesaplandığı için fiyat sıralaması bellekte yapılır
		pricedSort := sortKey == "price_asc" || sortKey == "price_desc"
		if pricedSort {
			if err := dbq.Preload("Category").Find(&products).Error; err != nil {
				return fiber.NewError(fiber.StatusInternalServerError, "Ürünler listelenemedi")
			}
		} else {
			if err := dbq.Preload("Category").Offset(page.Offset()).Limit(page.PerPage).Find(&products).Error; err != nil {
				return fiber.NewError(fiber.StatusInternalServerError, "Ürünler listelenemedi")
			}
		}

		prices, err := engine.FinalPrices(c.UserContext(), products)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Fiyatlar hesaplanamadı")
		}

		if pricedSort {
			desc := sortKey == "price_desc"
			sort.SliceStable(products, func(i, j int) bool {
				a, b := prices[products[i].ID], prices[products[j].ID]
				if desc {
					return a.GreaterThan(b)
				}
				return a.LessThan(b)
			})
			start := page.Offset()
			if start > len(products) {
				start = len(products)
			}
			end := start + page.PerPage
			if end > len(products) {
				end = len(products)
			}
			products = products[start:end]
		}

		res := make([]StoreProductResponse, 0, len(products))
		for i := range products {
			res = append(res, toStoreProduct(&products[i], prices[products[i].ID]))
		}
		return c.JSON(httpx.NewPageResponse(res, total, page))
	}
}

// GET /api/store/products/:slug
func StoreGetProductHandler(engine *pricing.Engine) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var p models.Product
		err := visibleProducts(database.DB).
			Preload("Category").
			Where("products.slug = ?", c.Params("slug")).
			First(&p).Error
		if err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Ürün bulunamadı")
		}

		price, err := engine.FinalPrice(c.UserContext(), &p)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Fiyat hesaplanamadı")
		}

		res := toStoreProduct(&p, price)
		res.Description = p.Description
		stock := p.StockQuantity
		res.Stock = &stock
		return c.JSON(res)
	}
}

// GET /api/store/categories
func StoreCategoryTreeHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var categories []models.Category
		if err := database.DB.Where("is_active = ?", true).Order("sort_order asc, name asc").Find(&categories).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Kategoriler listelenemedi")
		}
		return c.JSON(BuildTree(categories))
	}
}

// BuildTree nests categories under their parents. A category whose parent is
// not in the list (inactive or missing) is dropped with its subtree.
func BuildTree(categories []models.Category) []*CategoryNode {
	nodes := make(map[uint]*CategoryNode, len(categories))
	for _, cat := range categories {
		nodes[cat.ID] = &CategoryNode{ID: cat.ID, Name: cat.Name, Slug: cat.Slug, Children: []*CategoryNode{}}
	}

	roots := []*CategoryNode{}
	for _, cat := range categories {
		node := nodes[cat.ID]
		if cat.ParentID == nil {
			roots = append(roots, node)
			continue
		}
		if parent, ok := nodes[*cat.ParentID]; ok {
			parent.Children = append(parent.Children, node)
		}
	}
	return roots
}

// categorySubtree returns id and the ids of all active descendants.
func categorySubtree(db *gorm.DB, id uint) ([]uint, error) {
	var all []models.Category
	if err := db.Select("id", "parent_id").Where("is_active = ?", true).Find(&all).Error; err != nil {
		return nil, err
	}
	children := make(map[uint][]uint)
	for _, cat := range all {
		if cat.ParentID != nil {
			children[*cat.ParentID] = append(children[*cat.ParentID], cat.ID)
		}
	}

	ids := []uint{id}
	for i := 0; i < len(ids); i++ {
		ids = append(ids, children[ids[i]]...)
	}
	return ids, nil
}
