package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"motoparca-backend/internal/auth"
	"motoparca-backend/internal/database"
	"motoparca-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	EntityProduct         = "product"
	EntityCategory        = "category"
	EntityPriceRule       = "price_rule"
	EntityShippingSetting = "shipping_setting"
	EntityOrder           = "order"
	EntityPaymentLink     = "payment_link"
	EntityCustomer        = "customer"
)

var (
	ErrAlreadyUndone = errors.New("bu işlem zaten geri alınmış")
	ErrNotUndoable   = errors.New("bu işlem türü geri alınamaz")
	ErrInUse         = errors.New("kayıt başka kayıtlarda kullanılıyor, geri alınamaz")
	ErrTargetMissing = errors.New("bağlı kayıt bulunamadı, önce onu geri alın")
)

type reference struct {
	model  any
	column string
}

// references: bir kaydı silmeden önce boş olması gereken bağlantılar
var references = map[string][]reference{
	EntityCategory: {
		{&models.Product{}, "category_id"},
		{&models.Category{}, "parent_id"},
		{&models.PriceRule{}, "category_id"},
	},
	EntityProduct: {
		{&models.OrderItem{}, "product_id"},
		{&models.CartItem{}, "product_id"},
		{&models.PriceRule{}, "product_id"},
	},
}

// undoable: geri alınabilen entity tipleri ve model fabrikaları
var undoable = map[string]func() any{
	EntityProduct:   func() any { return &models.Product{} },
	EntityCategory:  func() any { return &models.Category{} },
	EntityPriceRule: func() any { return &models.PriceRule{} },
}

type LogOptions struct {
	UserID      uint
	UserName    string
	EntityType  string
	EntityID    uint
	Action      models.AuditAction
	Description string
	Before      any
	After       any
}

func WriteLog(db *gorm.DB, opts LogOptions) error {
	entry := models.AuditLog{
		UserID:      opts.UserID,
		UserName:    opts.UserName,
		EntityType:  opts.EntityType,
		EntityID:    opts.EntityID,
		Action:      opts.Action,
		Description: opts.Description,
		BeforeData:  marshalOrNull(opts.Before),
		AfterData:   marshalOrNull(opts.After),
	}

	if err := db.Create(&entry).Error; err != nil {
		return fmt.Errorf("audit log kaydedilemedi: %w", err)
	}
	return nil
}

// Record writes a log entry for the user on the request. Failures are logged, never returned.
func Record(c *fiber.Ctx, entityType string, entityID uint, action models.AuditAction, description string, before, after any) {
	userID, userName, err := auth.CurrentUser(c)
	if err != nil {
		return
	}
	if err := WriteLog(database.DB, LogOptions{
		UserID:      userID,
		UserName:    userName,
		EntityType:  entityType,
		EntityID:    entityID,
		Action:      action,
		Description: description,
		Before:      before,
		After:       after,
	}); err != nil {
		zap.L().Warn("Audit log yazılamadı", zap.String("entity", entityType), zap.Uint("id", entityID), zap.Error(err))
	}
}

func marshalOrNull(v any) string {
	if v == nil {
		return "null"
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(b)
}

// UndoLog reverts a create, update or delete and records an undo entry.
// It returns the reverted entity type and id so callers can drop derived state.
func UndoLog(ctx context.Context, db *gorm.DB, logID, userID uint, userName string) (*models.AuditLog, error) {
	var entry models.AuditLog
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&entry, "id = ?", logID).Error; err != nil {
			return fmt.Errorf("log bulunamadı: %w", err)
		}
		if entry.IsUndone {
			return ErrAlreadyUndone
		}

		newModel, ok := undoable[entry.EntityType]
		if !ok {
			return ErrNotUndoable
		}

		switch entry.Action {
		case models.AuditActionCreate:
			if err := checkUnreferenced(tx, entry.EntityType, entry.EntityID); err != nil {
				return err
			}
			if err := tx.Delete(newModel(), "id = ?", entry.EntityID).Error; err != nil {
				return fmt.Errorf("kayıt silinemedi: %w", err)
			}
		case models.AuditActionUpdate:
			if err := saveSnapshot(tx, newModel(), entry.BeforeData, false); err != nil {
				return fmt.Errorf("kayıt geri yüklenemedi: %w", err)
			}
		case models.AuditActionDelete:
			if err := saveSnapshot(tx, newModel(), entry.BeforeData, true); err != nil {
				return fmt.Errorf("kayıt geri oluşturulamadı: %w", err)
			}
		default:
			return ErrNotUndoable
		}

		now := time.Now()
		entry.IsUndone = true
		entry.UndoneBy = &userID
		entry.UndoneAt = &now
		if err := tx.Save(&entry).Error; err != nil {
			return fmt.Errorf("log güncellenemedi: %w", err)
		}

		return tx.Create(&models.AuditLog{
			UserID:      userID,
			UserName:    userName,
			EntityType:  entry.EntityType,
			EntityID:    entry.EntityID,
			Action:      models.AuditActionUndo,
			Description: fmt.Sprintf("Geri alındı: %s", entry.Description),
			BeforeData:  entry.AfterData,
			AfterData:   entry.BeforeData,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func checkUnreferenced(tx *gorm.DB, entityType string, id uint) error {
	for _, ref := range references[entityType] {
		var count int64
		if err := tx.Model(ref.model).Where(ref.column+" = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrInUse
		}
	}
	return nil
}

// checkTargets refuses to bring back a row whose parent category, or a rule whose target, is gone.
func checkTargets(tx *gorm.DB, model any) error {
	var (
		target any
		id     *uint
	)
	switch m := model.(type) {
	case *models.PriceRule:
		if m.ProductID != nil {
			target, id = &models.Product{}, m.ProductID
		} else {
			target, id = &models.Category{}, m.CategoryID
		}
	case *models.Product:
		target, id = &models.Category{}, m.CategoryID
	case *models.Category:
		target, id = &models.Category{}, m.ParentID
	}
	if id == nil {
		return nil
	}

	var count int64
	if err := tx.Model(target).Where("id = ?", *id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ErrTargetMissing
	}
	return nil
}

// saveSnapshot loads the JSON snapshot into model and writes it back with the same primary key.
func saveSnapshot(tx *gorm.DB, model any, data string, create bool) error {
	if data == "" || data == "null" {
		return errors.New("kayıt görüntüsü yok")
	}
	if err := json.Unmarshal([]byte(data), model); err != nil {
		return err
	}
	if err := checkTargets(tx, model); err != nil {
		return err
	}
	q := tx.Omit(clause.Associations)
	if create {
		return q.Create(model).Error
	}
	return q.Save(model).Error
}
