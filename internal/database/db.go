package database

import (
	"fmt"

	"motoparca-backend/internal/config"
	"motoparca-backend/internal/logger"
	"motoparca-backend/internal/models"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var DB *gorm.DB

// Init opens the Postgres pool, applies pool settings and runs migrations.
func Init(cfg *config.Config, log *zap.Logger) error {
	db, err := gorm.Open(postgres.Open(cfg.Database.DSN), &gorm.Config{
		Logger: logger.NewGormLogger(log, cfg.Database.LogLevel),
	})
	if err != nil {
		return fmt.Errorf("veritabanına bağlanılamadı: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("sql.DB alınamadı: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	if err := Migrate(db); err != nil {
		return err
	}

	DB = db
	log.Info("Veritabanı bağlantısı başarılı. Migration tamamlandı.")
	return nil
}

// Migrate auto-migrates every model. Tests call it on an sqlite handle.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Customer{},
		&models.Address{},
		&models.User{},
		&models.Category{},
		&models.Product{},
		&models.PriceRule{},
		&models.ShippingSetting{},
		&models.Cart{},
		&models.CartItem{},
		&models.Order{},
		&models.OrderItem{},
		&models.PaymentLink{},
		&models.AuditLog{},
	)
	if err != nil {
		return fmt.Errorf("AutoMigrate hatası: %w", err)
	}
	return nil
}

// IsPostgres reports whether row-level locking clauses are supported.
func IsPostgres(db *gorm.DB) bool {
	return db.Dialector.Name() == "postgres"
}
