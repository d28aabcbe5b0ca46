package audit

import (
	"context"
	"errors"

	"motoparca-backend/internal/auth"
	"motoparca-backend/internal/database"
	"motoparca-backend/internal/httpx"
	"motoparca-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type AuditLogResponse struct {
	ID          uint               `json:"id"`
	CreatedAt   string             `json:"created_at"`
	UserID      uint               `json:"user_id"`
	UserName    string             `json:"user_name"`
	EntityType  string             `json:"entity_type"`
	EntityID    uint               `json:"entity_id"`
	Action      models.AuditAction `json:"action"`
	Description string             `json:"description"`
	IsUndone    bool               `json:"is_undone"`
	UndoneBy    *uint              `json:"undone_by"`
	UndoneAt    *string            `json:"undone_at"`
}

// UndoHook is called after an undo so derived state (cached prices) can be dropped.
type UndoHook func(ctx context.Context, entityType string, entityID uint)

// GET /api/admin/audit-logs?entity_type=product&entity_id=1&user_id=1
func ListAuditLogsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		dbq := database.DB.Model(&models.AuditLog{})

		if et := c.Query("entity_type"); et != "" {
			dbq = dbq.Where("entity_type = ?", et)
		}
		entityID, err := httpx.QueryUint(c, "entity_id")
		if err != nil {
			return err
		}
		if entityID != nil {
			dbq = dbq.Where("entity_id = ?", *entityID)
		}
		userID, err := httpx.QueryUint(c, "user_id")
		if err != nil {
			return err
		}
		if userID != nil {
			dbq = dbq.Where("user_id = ?", *userID)
		}

		page := httpx.ParsePage(c)
		var total int64
		if err := dbq.Count(&total).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Loglar listelenemedi")
		}

		var logs []models.AuditLog
		if err := dbq.Order("created_at DESC, id DESC").Offset(page.Offset()).Limit(page.PerPage).Find(&logs).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Loglar listelenemedi")
		}

		resp := make([]AuditLogResponse, 0, len(logs))
		for _, l := range logs {
			var undoneAt *string
			if l.UndoneAt != nil {
				s := l.UndoneAt.Format("2006-01-02 15:04:05")
				undoneAt = &s
			}
			resp = append(resp, AuditLogResponse{
				ID:          l.ID,
				CreatedAt:   l.CreatedAt.Format("2006-01-02 15:04:05"),
				UserID:      l.UserID,
				UserName:    l.UserName,
				EntityType:  l.EntityType,
				EntityID:    l.EntityID,
				Action:      l.Action,
				Description: l.Description,
				IsUndone:    l.IsUndone,
				UndoneBy:    l.UndoneBy,
				UndoneAt:    undoneAt,
			})
		}

		return c.JSON(httpx.NewPageResponse(resp, total, page))
	}
}

// POST /api/admin/audit-logs/:id/undo
func UndoAuditLogHandler(onUndo UndoHook) fiber.Handler {
	return func(c *fiber.Ctx) error {
		logID, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		userID, userName, err := auth.CurrentUser(c)
		if err != nil {
			return err
		}

		entry, err := UndoLog(c.UserContext(), database.DB, logID, userID, userName)
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return fiber.NewError(fiber.StatusNotFound, "Log bulunamadı")
		case errors.Is(err, ErrAlreadyUndone), errors.Is(err, ErrNotUndoable),
			errors.Is(err, ErrInUse), errors.Is(err, ErrTargetMissing):
			return fiber.NewError(fiber.StatusConflict, err.Error())
		case err != nil:
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		if onUndo != nil {
			onUndo(c.UserContext(), entry.EntityType, entry.EntityID)
		}

		return c.JSON(fiber.Map{
			"message": "İşlem başarıyla geri alındı",
		})
	}
}
