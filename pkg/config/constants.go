package config

// EnvPrefix is handed to envconfig; every tag below already carries the full name.
const EnvPrefix = "GHANADUDE"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv       = "GHANADUDE_APP_ENV"
	EnvPort         = "GHANADUDE_APP_PORT"
	EnvLogLevel     = "GHANADUDE_LOG_LEVEL"
	EnvDBDSN        = "GHANADUDE_DB_DSN"
	EnvDBDriver     = "GHANADUDE_DB_DRIVER"
	EnvDBHost       = "GHANADUDE_DB_HOST"
	EnvDBUser       = "GHANADUDE_DB_USER"
	EnvDBName       = "GHANADUDE_DB_NAME"
	EnvRedisURL     = "GHANADUDE_REDIS_URL"
	EnvJWTSecret    = "GHANADUDE_JWT_SECRET"
	EnvJWTIssuer    = "GHANADUDE_JWT_ISSUER"
	EnvCartStore    = "GHANADUDE_CART_STORE"
	EnvFacadeURL    = "GHANADUDE_FACADE_BASE_URL"
	EnvSubmitTTL    = "GHANADUDE_CHECKOUT_SUBMIT_TIMEOUT"
	EnvPointValue   = "GHANADUDE_CHECKOUT_REWARD_POINT_VALUE"
	EnvMerchantID   = "GHANADUDE_PAYMENT_MERCHANT_ID"
	EnvMerchantKey  = "GHANADUDE_PAYMENT_MERCHANT_KEY"
	EnvPaymentRet   = "GHANADUDE_PAYMENT_RETURN_URL"
	EnvPaymentCncl  = "GHANADUDE_PAYMENT_CANCEL_URL"
	EnvPaymentNote  = "GHANADUDE_PAYMENT_NOTIFY_URL"
	EnvAutoMigrate  = "GHANADUDE_AUTO_MIGRATE"
	EnvVerifyStock  = "GHANADUDE_FEATURE_VERIFY_STOCK"
	EnvDBDriverLite = "sqlite"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
