package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	defaultDSN        = "host=localhost user=postgres password=postgres dbname=motoparca port=5432 sslmode=disable"
	defaultCORSOrigin = "http://localhost:5173"
)

type Config struct {
	App         AppConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	JWT         JWTConfig
	HTTP        HTTPConfig
	Log         LogConfig
	Pricing     PricingConfig
	Shipping    ShippingConfig
	PaymentLink PaymentLinkConfig

	// Load sırasında biriken uyarılar, logger hazır olunca yazılır
	Warnings []string
}

type AppConfig struct {
	Name string
	Env  string
	Port string
}

type DatabaseConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	LogLevel        string // silent, error, warn, info
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
}

type HTTPConfig struct {
	CORSOrigins []string
	BodyLimit   int
}

type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr veya dosya yolu
}

type PricingConfig struct {
	CacheTTL time.Duration
}

// ShippingConfig: veritabanında kargo ayarı yoksa kullanılacak değerler
type ShippingConfig struct {
	DefaultFlatRate      float64
	DefaultFreeThreshold float64
}

type PaymentLinkConfig struct {
	BaseURL        string
	DefaultTTL     time.Duration
	ExpiryInterval time.Duration
}

func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

// Load: öncelik sırası env (MOTO_ prefix) > config.toml > varsayılanlar.
// Varsa .env dosyası da ortam değişkenlerine yüklenir.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config dosyası okunamadı: %w", err)
		}
	}

	v.SetEnvPrefix("MOTO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			DSN:             v.GetString("database.dsn"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetDuration("database.conn_max_lifetime"),
			LogLevel:        v.GetString("database.log_level"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret:     v.GetString("jwt.secret"),
			Expiration: v.GetDuration("jwt.expiration"),
		},
		HTTP: HTTPConfig{
			CORSOrigins: splitList(v.GetString("http.cors_origins")),
			BodyLimit:   v.GetInt("http.body_limit"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Pricing: PricingConfig{
			CacheTTL: v.GetDuration("pricing.cache_ttl"),
		},
		Shipping: ShippingConfig{
			DefaultFlatRate:      v.GetFloat64("shipping.default_flat_rate"),
			DefaultFreeThreshold: v.GetFloat64("shipping.default_free_threshold"),
		},
		PaymentLink: PaymentLinkConfig{
			BaseURL:        v.GetString("payment_link.base_url"),
			DefaultTTL:     v.GetDuration("payment_link.default_ttl"),
			ExpiryInterval: v.GetDuration("payment_link.expiry_interval"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "motoparca-backend"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.DSN == "" {
		cfg.Database.DSN = defaultDSN
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = time.Hour
	}
	if cfg.Database.LogLevel == "" {
		cfg.Database.LogLevel = "warn"
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.JWT.Expiration == 0 {
		cfg.JWT.Expiration = 24 * time.Hour
	}
	if len(cfg.HTTP.CORSOrigins) == 0 {
		cfg.HTTP.CORSOrigins = []string{defaultCORSOrigin}
	}
	if cfg.HTTP.BodyLimit == 0 {
		cfg.HTTP.BodyLimit = 10 << 20
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		if cfg.App.Env == "production" {
			cfg.Log.Format = "json"
		} else {
			cfg.Log.Format = "console"
		}
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.Pricing.CacheTTL == 0 {
		cfg.Pricing.CacheTTL = 5 * time.Minute
	}
	if cfg.Shipping.DefaultFlatRate == 0 {
		cfg.Shipping.DefaultFlatRate = 89.90
	}
	if cfg.Shipping.DefaultFreeThreshold == 0 {
		cfg.Shipping.DefaultFreeThreshold = 1500
	}
	if cfg.PaymentLink.BaseURL == "" {
		cfg.PaymentLink.BaseURL = "http://localhost:5173/odeme"
	}
	if cfg.PaymentLink.DefaultTTL == 0 {
		cfg.PaymentLink.DefaultTTL = 72 * time.Hour
	}
	if cfg.PaymentLink.ExpiryInterval == 0 {
		cfg.PaymentLink.ExpiryInterval = 10 * time.Minute
	}
}

func (c *Config) validate() error {
	if c.JWT.Secret == "" {
		return errors.New("jwt.secret (MOTO_JWT_SECRET) tanımlanmamış")
	}
	if len(c.JWT.Secret) < 32 {
		return errors.New("jwt.secret en az 32 karakter olmalıdır")
	}
	if c.Pricing.CacheTTL < 0 {
		return errors.New("pricing.cache_ttl negatif olamaz")
	}

	if c.IsProduction() {
		if c.Database.DSN == defaultDSN {
			c.Warnings = append(c.Warnings, "database.dsn varsayılan değer kullanılıyor, production için kendi Postgres bağlantı bilgini tanımla")
		}
		if len(c.HTTP.CORSOrigins) == 1 && c.HTTP.CORSOrigins[0] == defaultCORSOrigin {
			c.Warnings = append(c.Warnings, "http.cors_origins varsayılan değer kullanılıyor, production için kendi domain'ini tanımla")
		}
	}
	return nil
}

// splitList: virgülle ayrılmış listeyi parçalar, boş elemanları atar
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
