// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment string
	LogLevel    string
	Server      ServerConfig
	Database    DatabaseConfig
	Auth        AuthConfig
	Gateway     GatewayConfig
	Checkout    CheckoutConfig
	Redis       RedisConfig
	Kafka       KafkaConfig
	RateLimit   RateLimitConfig
	CORS        CORSConfig
	I18n        I18nConfig
}

type ServerConfig struct {
	Port         string
	Host         string
	ReadTimeout  int
	WriteTimeout int
	IdleTimeout  int

	// TrustedProxies are the networks whose X-Forwarded-For is honoured.
	// Empty means the peer address is always the client IP.
	TrustedProxies []string
}

type DatabaseConfig struct {
	Driver       string // postgres or sqlite
	Host         string
	Port         string
	User         string
	Password     string
	Database     string
	SSLMode      string
	SQLitePath   string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  int
	LogLevel     string
	AutoMigrate  bool
}

// AuthConfig describes the identity provider whose access tokens
// authenticate account-level calls.
type AuthConfig struct {
	JWTSecret string
	Issuer    string
}

type GatewayConfig struct {
	Env            string // test or live
	BaseURL        string // overrides the Env-derived URL when set
	ShopID         string
	SecretKey      string
	PublishableKey string
	Country        string
	Locale         string
	Currency       string
	Timeout        int // in seconds
}

type CheckoutConfig struct {
	PublicBaseURL   string
	NotificationURL string
	Presentation    string // methods or redirect
	ManageURL       string
	ReferencePrefix string
}

type RedisConfig struct {
	URL             string
	MethodsCacheTTL int // in hours
}

type KafkaConfig struct {
	Brokers []string
	Topics  map[string]string
}

type RateLimitConfig struct {
	PublicPerSecond float64
	PublicBurst     int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type I18nConfig struct {
	DefaultLocale string
}

const (
	GatewayEnvTest = "test"
	GatewayEnvLive = "live"

	PresentationMethods  = "methods"
	PresentationRedirect = "redirect"
)

func Load() (*Config, error) {
	// Load .env file if it exists
	godotenv.Load()

	config := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			Host:         getEnv("SERVER_HOST", "localhost"),
			ReadTimeout:  getEnvAsInt("SERVER_READ_TIMEOUT", 15),
			WriteTimeout: getEnvAsInt("SERVER_WRITE_TIMEOUT", 15),
			IdleTimeout:  getEnvAsInt("SERVER_IDLE_TIMEOUT", 60),

			TrustedProxies: getEnvAsSlice("TRUSTED_PROXIES", nil),
		},
		Database: DatabaseConfig{
			Driver:       getEnv("DB_DRIVER", "postgres"),
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", ""),
			Database:     getEnv("DB_NAME", "licenses"),
			SSLMode:      getEnv("DB_SSL_MODE", "disable"),
			SQLitePath:   getEnv("DB_SQLITE_PATH", "data/licenses.db"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:  getEnvAsInt("DB_MAX_LIFETIME", 300),
			LogLevel:     getEnv("DB_LOG_LEVEL", "warn"),
			AutoMigrate:  getEnvAsBool("DB_AUTO_MIGRATE", true),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("AUTH_JWT_SECRET", ""),
			Issuer:    getEnv("AUTH_JWT_ISSUER", ""),
		},
		Gateway: GatewayConfig{
			Env:            getEnv("MK_ENV", GatewayEnvTest),
			BaseURL:        getEnv("MK_BASE_URL", ""),
			ShopID:         getEnv("MK_SHOP_ID", ""),
			SecretKey:      getEnv("MK_SECRET_KEY", ""),
			PublishableKey: getEnv("MK_PUBLISHABLE_KEY", ""),
			Country:        getEnv("MK_COUNTRY", "ee"),
			Locale:         getEnv("MK_LOCALE", "et"),
			Currency:       getEnv("MK_CURRENCY", "EUR"),
			Timeout:        getEnvAsInt("MK_TIMEOUT", 10),
		},
		Checkout: CheckoutConfig{
			PublicBaseURL:   strings.TrimRight(getEnv("PUBLIC_BASE_URL", "https://minu.tarksober.ee"), "/"),
			NotificationURL: getEnv("PAYMENT_NOTIFICATION_URL", ""),
			Presentation:    getEnv("CHECKOUT_PRESENTATION", PresentationMethods),
			ManageURL:       getEnv("MANAGE_URL", "https://minu.tarksober.ee"),
			ReferencePrefix: getEnv("CHECKOUT_REFERENCE_PREFIX", "TS"),
		},
		Redis: RedisConfig{
			URL:             getEnv("REDIS_URL", ""),
			MethodsCacheTTL: getEnvAsInt("PAYMENT_METHODS_CACHE_TTL", 12), // 12 hours
		},
		Kafka: KafkaConfig{
			Brokers: getEnvAsSlice("KAFKA_BROKERS", nil),
			Topics: map[string]string{
				"purchase.completed": getEnv("KAFKA_TOPIC_PURCHASE_COMPLETED", "purchase.completed"),
				"license.issued":     getEnv("KAFKA_TOPIC_LICENSE_ISSUED", "license.issued"),
				"device.activated":   getEnv("KAFKA_TOPIC_DEVICE_ACTIVATED", "device.activated"),
				"device.deactivated": getEnv("KAFKA_TOPIC_DEVICE_DEACTIVATED", "device.deactivated"),
			},
		},
		RateLimit: RateLimitConfig{
			PublicPerSecond: getEnvAsFloat("RATE_LIMIT_PUBLIC_RPS", 5),
			PublicBurst:     getEnvAsInt("RATE_LIMIT_PUBLIC_BURST", 20),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		I18n: I18nConfig{
			DefaultLocale: getEnv("DEFAULT_LOCALE", "et"),
		},
	}

	if config.Checkout.NotificationURL == "" {
		config.Checkout.NotificationURL = config.Checkout.PublicBaseURL + "/v1/payment-webhook"
	}

	return config, config.Validate()
}

func (c *Config) Validate() error {
	if c.Database.Driver != "postgres" && c.Database.Driver != "sqlite" {
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}

	if c.Gateway.Env != GatewayEnvTest && c.Gateway.Env != GatewayEnvLive {
		return fmt.Errorf("MK_ENV must be %q or %q", GatewayEnvTest, GatewayEnvLive)
	}

	if c.Checkout.Presentation != PresentationMethods && c.Checkout.Presentation != PresentationRedirect {
		return fmt.Errorf("CHECKOUT_PRESENTATION must be %q or %q", PresentationMethods, PresentationRedirect)
	}

	if c.Environment == "production" {
		if c.Gateway.SecretKey == "" || c.Gateway.ShopID == "" {
			return fmt.Errorf("MK_SHOP_ID and MK_SECRET_KEY are required in production")
		}
		if c.Auth.JWTSecret == "" {
			return fmt.Errorf("AUTH_JWT_SECRET is required in production")
		}
		if c.Database.Driver == "postgres" && c.Database.Password == "" {
			return fmt.Errorf("database password is required in production")
		}
	}

	return nil
}

// MethodsCacheTTL is how long a fetched payment-method list is served
// before the gateway is asked again.
func (c *Config) MethodsCacheTTL() time.Duration {
	return time.Duration(c.Redis.MethodsCacheTTL) * time.Hour
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(strings.ToLower(value)); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
