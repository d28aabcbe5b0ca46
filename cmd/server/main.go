package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"motoparca-backend/internal/audit"
	"motoparca-backend/internal/auth"
	"motoparca-backend/internal/cache"
	"motoparca-backend/internal/cart"
	"motoparca-backend/internal/catalog"
	"motoparca-backend/internal/config"
	"motoparca-backend/internal/customer"
	"motoparca-backend/internal/database"
	"motoparca-backend/internal/logger"
	"motoparca-backend/internal/models"
	"motoparca-backend/internal/order"
	"motoparca-backend/internal/payment"
	"motoparca-backend/internal/pricing"
	"motoparca-backend/internal/shipping"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// logger henüz yok
		os.Stderr.WriteString("config yüklenemedi: " + err.Error() + "\n")
		os.Exit(1)
	}

	log := logger.New(cfg.Log)
	defer log.Sync()
	for _, w := range cfg.Warnings {
		log.Warn(w)
	}

	if err := database.Init(cfg, log); err != nil {
		log.Fatal("veritabanı başlatılamadı", zap.Error(err))
	}

	store := newStore(cfg, log)
	defer store.Close()

	engine := pricing.NewEngine(database.DB, store, cfg.Pricing.CacheTTL)
	shippingSvc := shipping.NewService(database.DB, cfg.Shipping)
	cartSvc := cart.NewService(database.DB, engine, shippingSvc)
	orderSvc := order.NewService(database.DB, engine, shippingSvc)
	paymentSvc := payment.NewService(database.DB, cfg.PaymentLink)

	app := fiber.New(fiber.Config{
		AppName:   cfg.App.Name,
		BodyLimit: cfg.HTTP.BodyLimit,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				return c.Status(fe.Code).JSON(fiber.Map{
					"error": fe.Message,
				})
			}
			log.Error("beklenmeyen hata", zap.String("path", c.Path()), zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Beklenmeyen sunucu hatası",
			})
		},
	})

	app.Use(recover.New(recover.Config{EnableStackTrace: !cfg.IsProduction()}))
	app.Use(requestid.New())
	app.Use(logger.FiberMiddleware(log))
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(cfg.HTTP.CORSOrigins, ","),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
	}))

	api := app.Group("/api")
	api.Get("/health", healthHandler(store))

	// Public auth
	api.Post("/auth/register-admin", auth.RegisterAdminHandler())
	api.Post("/auth/register", auth.RegisterCustomerHandler(cfg))
	api.Post("/auth/login", auth.LoginHandler(cfg))
	api.Get("/auth/me", auth.JWTMiddleware(cfg.JWT.Secret), auth.MeHandler())

	// Mağaza (public)
	storefront := api.Group("/store")
	storefront.Get("/categories", catalog.StoreCategoryTreeHandler())
	storefront.Get("/products", catalog.StoreListProductsHandler(engine))
	storefront.Get("/products/:slug", catalog.StoreGetProductHandler(engine))

	api.Get("/shipping/quote", shipping.QuoteHandler(shippingSvc))
	api.Get("/pay/:token", payment.ResolveLinkHandler(paymentSvc))

	// Müşteri hesabı
	account := api.Group("/account", auth.JWTMiddleware(cfg.JWT.Secret), auth.RequireRole(models.RoleCustomer))
	account.Get("/profile", customer.GetProfileHandler())
	account.Put("/profile", customer.UpdateProfileHandler())
	account.Get("/addresses", customer.ListAddressesHandler())
	account.Post("/addresses", customer.CreateAddressHandler())
	account.Put("/addresses/:id", customer.UpdateAddressHandler())
	account.Delete("/addresses/:id", customer.DeleteAddressHandler())

	account.Get("/cart", cart.GetCartHandler(cartSvc))
	account.Delete("/cart", cart.ClearCartHandler(cartSvc))
	account.Post("/cart/items", cart.AddItemHandler(cartSvc))
	account.Put("/cart/items/:productId", cart.SetQuantityHandler(cartSvc))
	account.Delete("/cart/items/:productId", cart.RemoveItemHandler(cartSvc))

	account.Post("/orders", order.PlaceOrderHandler(orderSvc))
	account.Get("/orders", order.ListMyOrdersHandler())
	account.Get("/orders/:number", order.GetMyOrderHandler())

	// Yönetim
	admin := api.Group("/admin", auth.JWTMiddleware(cfg.JWT.Secret), auth.RequireRole(models.RoleAdmin))

	admin.Get("/categories", catalog.ListCategoriesHandler())
	admin.Post("/categories", catalog.CreateCategoryHandler())
	admin.Put("/categories/:id", catalog.UpdateCategoryHandler())
	admin.Delete("/categories/:id", catalog.DeleteCategoryHandler())

	admin.Get("/products/export", catalog.ExportProductsHandler(engine))
	admin.Post("/products/import", catalog.ImportProductsHandler(engine))
	admin.Get("/products", catalog.ListProductsHandler(engine))
	admin.Get("/products/:id", catalog.GetProductHandler(engine))
	admin.Post("/products", catalog.CreateProductHandler(engine))
	admin.Put("/products/:id", catalog.UpdateProductHandler(engine))
	admin.Delete("/products/:id", catalog.DeleteProductHandler(engine))

	admin.Get("/price-rules", pricing.ListPriceRulesHandler())
	admin.Post("/price-rules", pricing.CreatePriceRuleHandler(engine))
	admin.Put("/price-rules/:id", pricing.UpdatePriceRuleHandler(engine))
	admin.Delete("/price-rules/:id", pricing.DeletePriceRuleHandler(engine))

	admin.Get("/shipping-settings", shipping.GetSettingsHandler(shippingSvc))
	admin.Put("/shipping-settings", shipping.UpdateSettingsHandler(shippingSvc))

	admin.Get("/customers", customer.ListCustomersHandler())
	admin.Post("/customers", customer.CreateCustomerHandler())
	admin.Get("/customers/:id", customer.GetCustomerHandler())
	admin.Put("/customers/:id", customer.UpdateCustomerHandler())
	admin.Delete("/customers/:id", customer.DeleteCustomerHandler())

	admin.Get("/orders/export", order.ExportOrdersHandler())
	admin.Get("/orders", order.ListOrdersHandler())
	admin.Get("/orders/:id", order.GetOrderHandler())
	admin.Put("/orders/:id/status", order.UpdateStatusHandler(orderSvc))
	admin.Post("/orders/:id/cancel", order.CancelOrderHandler(orderSvc))

	admin.Get("/payment-links", payment.ListLinksHandler())
	admin.Post("/payment-links", payment.CreateLinkHandler(paymentSvc))
	admin.Get("/payment-links/:id", payment.GetLinkHandler(paymentSvc))
	admin.Post("/payment-links/:id/cancel", payment.CancelLinkHandler(paymentSvc))
	admin.Post("/payment-links/:id/mark-paid", payment.MarkPaidHandler(paymentSvc))

	admin.Get("/audit-logs", audit.ListAuditLogsHandler())
	admin.Post("/audit-logs/:id/undo", audit.UndoAuditLogHandler(undoHook(engine, log)))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerCtx, stopWorker := context.WithCancel(context.Background())
	workerDone := payment.RunExpiryWorker(workerCtx, paymentSvc, cfg.PaymentLink.ExpiryInterval)

	go func() {
		log.Info("Server çalışıyor", zap.String("port", cfg.App.Port), zap.String("env", cfg.App.Env))
		if err := app.Listen(":" + cfg.App.Port); err != nil {
			log.Error("server durdu", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("kapatılıyor")

	stopWorker()
	<-workerDone

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Error("server kapatılamadı", zap.Error(err))
	}
	if sqlDB, err := database.DB.DB(); err == nil {
		sqlDB.Close()
	}
}

// newStore falls back to the in-process store when redis is disabled or unreachable.
func newStore(cfg *config.Config, log *zap.Logger) cache.Store {
	if !cfg.Redis.Enabled {
		return cache.NewMemoryStore()
	}
	rs, err := cache.NewRedisStore(cfg.Redis)
	if err != nil {
		log.Warn("redis kullanılamıyor, bellek içi cache ile devam ediliyor", zap.Error(err))
		return cache.NewMemoryStore()
	}
	log.Info("redis cache bağlandı", zap.String("addr", cfg.Redis.Addr))
	return rs
}

// undoHook drops cached prices touched by an undone change.
func undoHook(engine *pricing.Engine, log *zap.Logger) audit.UndoHook {
	return func(ctx context.Context, entityType string, entityID uint) {
		var err error
		switch entityType {
		case audit.EntityProduct:
			err = engine.Invalidate(ctx, entityID)
		case audit.EntityPriceRule, audit.EntityCategory:
			err = engine.InvalidateAll(ctx)
		}
		if err != nil {
			log.Warn("geri alma sonrası fiyat cache temizlenemedi", zap.String("entity", entityType), zap.Uint("id", entityID), zap.Error(err))
		}
	}
}
