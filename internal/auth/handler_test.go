package auth_test

import (
	"net/http/httptest"
	"testing"
	"time"

	"motoparca-backend/internal/auth"
	"motoparca-backend/internal/config"
	"motoparca-backend/internal/models"
	"motoparca-backend/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tokenResponse struct {
	Token string            `json:"token"`
	User  auth.UserResponse `json:"user"`
}

func newAuthApp(cfg *config.Config) *fiber.App {
	app := testutil.NewApp()
	app.Post("/api/auth/register-admin", auth.RegisterAdminHandler())
	app.Post("/api/auth/register", auth.RegisterCustomerHandler(cfg))
	app.Post("/api/auth/login", auth.LoginHandler(cfg))
	app.Get("/api/auth/me", auth.JWTMiddleware(cfg.JWT.Secret), auth.MeHandler())

	app.Get("/api/admin/ping", auth.JWTMiddleware(cfg.JWT.Secret), auth.RequireRole(models.RoleAdmin), func(c *fiber.Ctx) error {
		return c.SendString("pong")
	})
	return app
}

func get(t *testing.T, app *fiber.App, path, token string) (int, []byte) {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return testutil.DoRequest(t, app, req)
}

func TestAuthFlow(t *testing.T) {
	db := testutil.NewDB(t)
	cfg := &config.Config{JWT: config.JWTConfig{Secret: "test-secret", Expiration: time.Hour}}
	app := newAuthApp(cfg)

	status, raw := testutil.Do(t, app, "POST", "/api/auth/register-admin", map[string]any{
		"name": "Yönetici", "email": "Admin@MotoParca.test", "password": "gizli-sifre",
	})
	require.Equal(t, 201, status, string(raw))

	status, _ = testutil.Do(t, app, "POST", "/api/auth/register-admin", map[string]any{
		"name": "İkinci", "email": "iki@motoparca.test", "password": "gizli-sifre",
	})
	assert.Equal(t, 403, status)

	status, raw = testutil.Do(t, app, "POST", "/api/auth/login", map[string]any{"email": "admin@motoparca.test", "password": "yanlis"})
	assert.Equal(t, 401, status)
	assert.Contains(t, string(raw), "Email veya şifre hatalı")

	status, raw = testutil.Do(t, app, "POST", "/api/auth/login", map[string]any{"email": " ADMIN@motoparca.test ", "password": "gizli-sifre"})
	require.Equal(t, 200, status, string(raw))
	var admin tokenResponse
	testutil.DecodeJSON(t, raw, &admin)
	assert.Equal(t, models.RoleAdmin, admin.User.Role)

	status, _ = get(t, app, "/api/admin/ping", admin.Token)
	assert.Equal(t, 200, status)

	// panelden açılmış müşteri kaydı kayıt ile sahiplenilemez
	panel := testutil.CreateCustomer(t, db, "panel@example.com")

	status, _ = testutil.Do(t, app, "POST", "/api/auth/register", map[string]any{
		"first_name": "Ayşe", "last_name": "Demir", "email": "x@example.com", "phone": "123", "password": "gizli-sifre",
	})
	assert.Equal(t, 400, status)

	status, raw = testutil.Do(t, app, "POST", "/api/auth/register", map[string]any{
		"first_name": "Ahmet", "last_name": "Yılmaz", "email": "Panel@example.com", "password": "gizli-sifre",
	})
	assert.Equal(t, 409, status)
	assert.Contains(t, string(raw), "müşteri kaydı var")
	var linked int64
	require.NoError(t, db.Model(&models.User{}).Where("customer_id = ?", panel.ID).Count(&linked).Error)
	assert.Zero(t, linked)

	status, raw = testutil.Do(t, app, "POST", "/api/auth/register", map[string]any{
		"first_name": "Ahmet", "last_name": "Yılmaz", "email": "musteri@example.com", "phone": "0532 123 45 67", "password": "gizli-sifre",
	})
	require.Equal(t, 201, status, string(raw))
	var cust tokenResponse
	testutil.DecodeJSON(t, raw, &cust)
	require.NotNil(t, cust.User.CustomerID)
	var registered models.Customer
	require.NoError(t, db.First(&registered, *cust.User.CustomerID).Error)
	assert.Equal(t, "musteri@example.com", registered.Email)
	assert.Equal(t, "+905321234567", registered.Phone)

	status, _ = testutil.Do(t, app, "POST", "/api/auth/register", map[string]any{
		"first_name": "Ahmet", "last_name": "Yılmaz", "email": "musteri@example.com", "password": "gizli-sifre",
	})
	assert.Equal(t, 409, status)

	status, raw = get(t, app, "/api/auth/me", cust.Token)
	require.Equal(t, 200, status, string(raw))
	assert.Contains(t, string(raw), `"first_name":"Ahmet"`)

	status, _ = get(t, app, "/api/admin/ping", cust.Token)
	assert.Equal(t, 403, status)

	require.NoError(t, db.Model(&registered).Update("is_active", false).Error)
	status, raw = testutil.Do(t, app, "POST", "/api/auth/login", map[string]any{"email": "musteri@example.com", "password": "gizli-sifre"})
	assert.Equal(t, 403, status)
	assert.Contains(t, string(raw), "pasif")
}

func TestJWTMiddleware(t *testing.T) {
	testutil.NewDB(t)
	cfg := &config.Config{JWT: config.JWTConfig{Secret: "test-secret", Expiration: time.Hour}}
	app := newAuthApp(cfg)

	status, _ := get(t, app, "/api/admin/ping", "")
	assert.Equal(t, 401, status)

	req := httptest.NewRequest("GET", "/api/admin/ping", nil)
	req.Header.Set("Authorization", "Token abc")
	status, raw := testutil.DoRequest(t, app, req)
	assert.Equal(t, 401, status)
	assert.Contains(t, string(raw), "Bearer")

	user := &models.User{ID: 1, Name: "Yönetici", Role: models.RoleAdmin}

	expired, err := auth.GenerateToken(cfg.JWT.Secret, -time.Minute, user)
	require.NoError(t, err)
	status, _ = get(t, app, "/api/admin/ping", expired)
	assert.Equal(t, 401, status)

	foreign, err := auth.GenerateToken("baska-secret", time.Hour, user)
	require.NoError(t, err)
	status, _ = get(t, app, "/api/admin/ping", foreign)
	assert.Equal(t, 401, status)

	valid, err := auth.GenerateToken(cfg.JWT.Secret, time.Hour, user)
	require.NoError(t, err)
	status, raw = get(t, app, "/api/admin/ping", valid)
	assert.Equal(t, 200, status)
	assert.Equal(t, "pong", string(raw))
}

func TestRegisterAdminFailsClosed(t *testing.T) {
	db := testutil.NewDB(t)
	cfg := &config.Config{JWT: config.JWTConfig{Secret: "test-secret", Expiration: time.Hour}}
	app := newAuthApp(cfg)

	// kullanıcılar okunamıyorsa ikinci admin açılmamalı
	require.NoError(t, db.Migrator().DropTable(&models.User{}))

	status, _ := testutil.Do(t, app, "POST", "/api/auth/register-admin", map[string]any{
		"name": "Yönetici", "email": "admin@motoparca.test", "password": "gizli-sifre",
	})
	assert.Equal(t, 500, status)
	assert.False(t, db.Migrator().HasTable(&models.User{}))
}
