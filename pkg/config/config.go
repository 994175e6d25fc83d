package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Cart         CartConfig
	Checkout     CheckoutConfig
	Facade       FacadeConfig
	Payment      PaymentConfig
	RateLimit    RateLimitConfig
	Retention    RetentionConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Cart.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadWorker reads only the sections background tools use (app, database,
// redis, cart, retention and feature flags), so migrate and the retention
// worker start without facade or payment settings.
func LoadWorker() (*Config, error) {
	var cfg Config
	sections := []any{&cfg.App, &cfg.DB, &cfg.Redis, &cfg.Cart, &cfg.Retention, &cfg.FeatureFlags}
	for _, section := range sections {
		if err := envconfig.Process(EnvPrefix, section); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Cart.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string   `envconfig:"GHANADUDE_APP_ENV" required:"true"`
	Port         string   `envconfig:"GHANADUDE_APP_PORT" default:"8080"`
	LogLevel     string   `envconfig:"GHANADUDE_LOG_LEVEL" default:"info"`
	LogWarnStack bool     `envconfig:"GHANADUDE_LOG_WARN_STACK" default:"false"`
	CORSOrigins  []string `envconfig:"GHANADUDE_CORS_ORIGINS" default:"http://localhost:3000,http://localhost:8081"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"GHANADUDE_DB_DSN"`
	Driver string `envconfig:"GHANADUDE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"GHANADUDE_DB_HOST"`
	LegacyPort     int    `envconfig:"GHANADUDE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"GHANADUDE_DB_USER"`
	LegacyPassword string `envconfig:"GHANADUDE_DB_PASSWORD"`
	LegacyName     string `envconfig:"GHANADUDE_DB_NAME"`
	LegacySSLMode  string `envconfig:"GHANADUDE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"GHANADUDE_DB_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int           `envconfig:"GHANADUDE_DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"GHANADUDE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"GHANADUDE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"GHANADUDE_DB_SLOW_QUERY" default:"200ms"`
}

// IsSQLite reports whether the sqlite dialector should be used.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(db.Driver), EnvDBDriverLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"GHANADUDE_REDIS_URL"`
	Address      string        `envconfig:"GHANADUDE_REDIS_ADDR"`
	Password     string        `envconfig:"GHANADUDE_REDIS_PASSWORD"`
	DB           int           `envconfig:"GHANADUDE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"GHANADUDE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"GHANADUDE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"GHANADUDE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"GHANADUDE_REDIS_READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"GHANADUDE_REDIS_WRITE_TIMEOUT" default:"3s"`
}

// Enabled reports whether a redis endpoint was configured.
func (r RedisConfig) Enabled() bool {
	return r.URL != "" || r.Address != ""
}

type JWTConfig struct {
	Secret            string `envconfig:"GHANADUDE_JWT_SECRET"`
	Issuer            string `envconfig:"GHANADUDE_JWT_ISSUER" default:"ghanadude"`
	ExpirationMinutes int    `envconfig:"GHANADUDE_JWT_EXPIRATION_MINUTES" default:"60"`
}

// CartConfig selects where cart snapshots are persisted.
type CartConfig struct {
	Store string        `envconfig:"GHANADUDE_CART_STORE" default:"redis"`
	TTL   time.Duration `envconfig:"GHANADUDE_CART_TTL" default:"720h"`
}

const (
	CartStoreRedis  = "redis"
	CartStoreDB     = "db"
	CartStoreMemory = "memory"
)

func (c CartConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Store)) {
	case CartStoreRedis, CartStoreDB, CartStoreMemory:
		return nil
	}
	return fmt.Errorf("%s must be one of redis, db, memory (got %q)", EnvCartStore, c.Store)
}

// Backend returns the normalized backend name.
func (c CartConfig) Backend() string {
	return strings.ToLower(strings.TrimSpace(c.Store))
}

type CheckoutConfig struct {
	SubmitTimeout    time.Duration `envconfig:"GHANADUDE_CHECKOUT_SUBMIT_TIMEOUT" default:"30s"`
	RewardPointValue string        `envconfig:"GHANADUDE_CHECKOUT_REWARD_POINT_VALUE" default:"1.00"`
	Currency         string        `envconfig:"GHANADUDE_CHECKOUT_CURRENCY" default:"ZAR"`
	IdempotencyTTL   time.Duration `envconfig:"GHANADUDE_CHECKOUT_IDEMPOTENCY_TTL" default:"168h"`
}

// PointValue parses the configured monetary value of a single reward point.
func (c CheckoutConfig) PointValue() (decimal.Decimal, error) {
	value, err := decimal.NewFromString(strings.TrimSpace(c.RewardPointValue))
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing %s: %w", EnvPointValue, err)
	}
	if value.IsNegative() {
		return decimal.Zero, fmt.Errorf("%s must not be negative", EnvPointValue)
	}
	return value, nil
}

type FacadeConfig struct {
	BaseURL             string        `envconfig:"GHANADUDE_FACADE_BASE_URL" required:"true"`
	Timeout             time.Duration `envconfig:"GHANADUDE_FACADE_TIMEOUT" default:"15s"`
	BreakerTimeout      time.Duration `envconfig:"GHANADUDE_FACADE_BREAKER_TIMEOUT" default:"30s"`
	BreakerFailureRatio float64       `envconfig:"GHANADUDE_FACADE_BREAKER_FAILURE_RATIO" default:"0.5"`
	BreakerMinRequests  uint32        `envconfig:"GHANADUDE_FACADE_BREAKER_MIN_REQUESTS" default:"5"`
}

type PaymentConfig struct {
	MerchantID  string `envconfig:"GHANADUDE_PAYMENT_MERCHANT_ID"`
	MerchantKey string `envconfig:"GHANADUDE_PAYMENT_MERCHANT_KEY"`
	Passphrase  string `envconfig:"GHANADUDE_PAYMENT_PASSPHRASE"`
	Sandbox     bool   `envconfig:"GHANADUDE_PAYMENT_SANDBOX" default:"true"`
	ReturnURL   string `envconfig:"GHANADUDE_PAYMENT_RETURN_URL"`
	CancelURL   string `envconfig:"GHANADUDE_PAYMENT_CANCEL_URL"`
	NotifyURL   string `envconfig:"GHANADUDE_PAYMENT_NOTIFY_URL"`
}

// RateLimitConfig throttles checkout submissions per owner.
type RateLimitConfig struct {
	CheckoutWindow time.Duration `envconfig:"GHANADUDE_RATE_LIMIT_CHECKOUT_WINDOW" default:"1m"`
	CheckoutLimit  int           `envconfig:"GHANADUDE_RATE_LIMIT_CHECKOUT_LIMIT" default:"5"`
}

// RetentionConfig drives the retention worker. Cart snapshots expire after
// CartConfig.TTL; finished checkout sessions after SessionRetention.
type RetentionConfig struct {
	Interval         time.Duration `envconfig:"GHANADUDE_RETENTION_INTERVAL" default:"6h"`
	SessionRetention time.Duration `envconfig:"GHANADUDE_RETENTION_CHECKOUT_SESSIONS" default:"2160h"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"GHANADUDE_AUTO_MIGRATE" default:"false"`
	VerifyStock bool `envconfig:"GHANADUDE_FEATURE_VERIFY_STOCK" default:"true"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if db.IsSQLite() {
		return fmt.Errorf("%s is required for the sqlite driver", EnvDBDSN)
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
