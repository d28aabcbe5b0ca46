package catalog

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"motoparca-backend/internal/audit"
	"motoparca-backend/internal/database"
	"motoparca-backend/internal/httpx"
	"motoparca-backend/internal/models"
	"motoparca-backend/internal/pricing"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const priceSheet = "Fiyat Listesi"

var priceListHeader = []string{"SKU", "Ürün Adı", "Liste Fiyatı", "Özel Fiyat", "Satış Fiyatı", "Stok"}

type ImportRowError struct {
	Row    int    `json:"row"`
	SKU    string `json:"sku"`
	Reason string `json:"reason"`
}

type ImportResult struct {
	Updated   int              `json:"updated"`
	Unmatched []string         `json:"unmatched"`
	Invalid   []ImportRowError `json:"invalid"`
}

// GET /api/admin/products/export
func ExportProductsHandler(engine *pricing.Engine) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var products []models.Product
		if err := database.DB.Order("sku asc").Find(&products).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Ürünler okunamadı")
		}

		prices, err := engine.FinalPrices(c.UserContext(), products)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Fiyatlar hesaplanamadı")
		}

		f, err := httpx.NewSheet(priceSheet, priceListHeader)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Excel dosyası oluşturulamadı")
		}

		for i, p := range products {
			custom := ""
			if p.CustomPrice != nil {
				custom = p.CustomPrice.StringFixed(2)
			}
			row := []any{
				p.SKU,
				p.Name,
				p.BasePrice.InexactFloat64(),
				custom,
				prices[p.ID].InexactFloat64(),
				p.StockQuantity,
			}
			cell, _ := excelize.CoordinatesToCellName(1, i+2)
			if err := f.SetSheetRow(priceSheet, cell, &row); err != nil {
				f.Close()
				return fiber.NewError(fiber.StatusInternalServerError, "Excel dosyası oluşturulamadı")
			}
		}

		name := fmt.Sprintf("fiyat-listesi-%s.xlsx", time.Now().Format("20060102"))
		return httpx.SendXLSX(c, f, name)
	}
}

// parseAmount accepts "1250.50", "1.250,50" and "1250,50 TL".
func parseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "TL"))
	s = strings.ReplaceAll(s, " ", "")
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}
	return decimal.NewFromString(s)
}

type priceRow struct {
	row    int
	sku    string
	base   decimal.Decimal
	custom *decimal.Decimal
	stock  int
}

// parsePriceRow reads one data row laid out like the export: SKU, name, base, custom, final, stock.
func parsePriceRow(index int, cells []string) (priceRow, *ImportRowError) {
	cell := func(i int) string {
		if i < len(cells) {
			return strings.TrimSpace(cells[i])
		}
		return ""
	}

	r := priceRow{row: index + 1, sku: strings.ToUpper(cell(0))}
	fail := func(reason string) (priceRow, *ImportRowError) {
		return r, &ImportRowError{Row: r.row, SKU: r.sku, Reason: reason}
	}

	base, err := parseAmount(cell(2))
	if err != nil {
		return fail("Liste fiyatı okunamadı")
	}
	if base.IsNegative() {
		return fail("Liste fiyatı negatif olamaz")
	}
	r.base = base.Round(2)

	if raw := cell(3); raw != "" {
		custom, err := parseAmount(raw)
		if err != nil {
			return fail("Özel fiyat okunamadı")
		}
		if !custom.IsPositive() {
			return fail("Özel fiyat 0'dan büyük olmalı")
		}
		custom = custom.Round(2)
		r.custom = &custom
	}

	stock, err := strconv.Atoi(cell(5))
	if err != nil {
		return fail("Stok okunamadı")
	}
	if stock < 0 {
		return fail("Stok negatif olamaz")
	}
	r.stock = stock
	return r, nil
}

func isHeaderRow(cells []string) bool {
	return len(cells) > 0 && strings.EqualFold(strings.TrimSpace(cells[0]), "SKU")
}

// POST /api/admin/products/import
// Boş özel fiyat hücresi mevcut özel fiyatı kaldırır
func ImportProductsHandler(engine *pricing.Engine) fiber.Handler {
	return func(c *fiber.Ctx) error {
		rows, err := httpx.ReadUploadedRows(c, "file")
		if err != nil {
			return err
		}

		result := ImportResult{Unmatched: []string{}, Invalid: []ImportRowError{}}
		type change struct{ before, after models.Product }
		var changes []change

		err = database.DB.Transaction(func(tx *gorm.DB) error {
			for i, cells := range rows {
				if i == 0 && isHeaderRow(cells) {
					continue
				}
				if len(cells) == 0 || strings.TrimSpace(cells[0]) == "" {
					continue
				}

				r, rowErr := parsePriceRow(i, cells)
				if rowErr != nil {
					result.Invalid = append(result.Invalid, *rowErr)
					continue
				}

				var p models.Product
				if err := tx.Where("sku = ?", r.sku).First(&p).Error; err != nil {
					result.Unmatched = append(result.Unmatched, r.sku)
					continue
				}

				before := p
				p.BasePrice = r.base
				p.CustomPrice = r.custom
				p.StockQuantity = r.stock
				if err := tx.Model(&p).Select("base_price", "custom_price", "stock_quantity").Updates(&p).Error; err != nil {
					return err
				}
				changes = append(changes, change{before: before, after: p})
			}
			return nil
		})
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Fiyat listesi içe aktarılamadı")
		}

		ids := make([]uint, 0, len(changes))
		for _, ch := range changes {
			ids = append(ids, ch.after.ID)
			audit.Record(c, audit.EntityProduct, ch.after.ID, models.AuditActionUpdate,
				fmt.Sprintf("Fiyat listesinden güncellendi: %s", ch.after.SKU), ch.before, ch.after)
		}
		if len(ids) > 0 {
			if err := engine.Invalidate(c.UserContext(), ids...); err != nil {
				zap.L().Warn("içe aktarım sonrası fiyat cache'i temizlenemedi", zap.Error(err))
			}
		}
		result.Updated = len(changes)

		zap.L().Info("fiyat listesi içe aktarıldı",
			zap.Int("updated", result.Updated),
			zap.Int("unmatched", len(result.Unmatched)),
			zap.Int("invalid", len(result.Invalid)))

		return c.JSON(result)
	}
}
