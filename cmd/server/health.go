package main

import (
	"context"
	"time"

	"motoparca-backend/internal/cache"
	"motoparca-backend/internal/database"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// GET /api/health
func healthHandler(store cache.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()

		res := fiber.Map{"status": "ok", "database": "ok", "cache": "ok"}
		status := fiber.StatusOK

		sqlDB, err := database.DB.DB()
		if err == nil {
			err = sqlDB.PingContext(ctx)
		}
		if err != nil {
			zap.L().Warn("health: veritabanı yanıt vermiyor", zap.Error(err))
			res["database"] = "down"
			res["status"] = "degraded"
			status = fiber.StatusServiceUnavailable
		}

		if err := store.Ping(ctx); err != nil {
			zap.L().Warn("health: cache yanıt vermiyor", zap.Error(err))
			res["cache"] = "down"
			res["status"] = "degraded"
			status = fiber.StatusServiceUnavailable
		}

		return c.Status(status).JSON(res)
	}
}
