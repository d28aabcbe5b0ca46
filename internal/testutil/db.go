// Package testutil holds helpers shared by package tests.
package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"

	"motoparca-backend/internal/database"
	"motoparca-backend/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var dbSeq atomic.Int64

// NewDB opens a fresh in-memory sqlite database, migrates it and installs it as database.DB.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	// her test kendi paylaşımlı bellek veritabanını alır
	dsn := fmt.Sprintf("file:memdb%d?mode=memory&cache=shared", dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	prev := database.DB
	database.DB = db
	t.Cleanup(func() {
		database.DB = prev
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func Dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func DecPtr(s string) *decimal.Decimal {
	d := Dec(s)
	return &d
}

func CreateCategory(t *testing.T, db *gorm.DB, name, slug string) *models.Category {
	t.Helper()
	c := &models.Category{Name: name, Slug: slug, IsActive: true}
	require.NoError(t, db.Create(c).Error)
	return c
}

func CreateProduct(t *testing.T, db *gorm.DB, sku, basePrice string, stock int, categoryID *uint) *models.Product {
	t.Helper()
	p := &models.Product{
		CategoryID:    categoryID,
		Name:          "Ürün " + sku,
		Slug:          "urun-" + sku,
		SKU:           sku,
		BasePrice:     Dec(basePrice),
		StockQuantity: stock,
		IsActive:      true,
	}
	require.NoError(t, db.Create(p).Error)
	return p
}

func CreateCustomer(t *testing.T, db *gorm.DB, email string) *models.Customer {
	t.Helper()
	c := &models.Customer{
		FirstName: "Ahmet",
		LastName:  "Yılmaz",
		Email:     email,
		Phone:     "+905321234567",
		IsActive:  true,
	}
	require.NoError(t, db.Create(c).Error)
	return c
}
