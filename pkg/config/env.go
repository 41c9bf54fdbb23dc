package config

const (
	EnvPrefix = "STOREFRONT"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv       = "STOREFRONT_APP_ENV"
	EnvPort         = "STOREFRONT_APP_PORT"
	EnvDBDSN        = "STOREFRONT_DB_DSN"
	EnvDBHost       = "STOREFRONT_DB_HOST"
	EnvDBUser       = "STOREFRONT_DB_USER"
	EnvDBName       = "STOREFRONT_DB_NAME"
	EnvRedisURL     = "STOREFRONT_REDIS_URL"
	EnvJWTSecret    = "STOREFRONT_JWT_SECRET"
	EnvJWTIssuer    = "STOREFRONT_JWT_ISSUER"
	EnvJWTExpMins   = "STOREFRONT_JWT_EXPIRATION_MINUTES"
	EnvGenieAPIKey  = "STOREFRONT_GENIE_API_KEY"
	EnvEMedBaseURL  = "STOREFRONT_EMED_BASE_URL"
	EnvEMedTokenURL = "STOREFRONT_EMED_TOKEN_URL"
	EnvEMedClientID = "STOREFRONT_EMED_CLIENT_ID"
	EnvEMedSecret   = "STOREFRONT_EMED_CLIENT_SECRET"
	EnvSessionTTL   = "STOREFRONT_CHECKOUT_SESSION_TTL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
