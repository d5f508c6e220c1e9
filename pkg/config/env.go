package config

const EnvPrefix = "STOREFRONT"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	MediaDriverSFTP = "sftp"
	MediaDriverS3   = "s3"
)

const (
	EnvAppEnv   = "STOREFRONT_APP_ENV"
	EnvPort     = "STOREFRONT_APP_PORT"
	EnvLogLevel = "STOREFRONT_LOG_LEVEL"
	EnvLogFile  = "STOREFRONT_LOG_FILE"

	EnvDBDSN  = "STOREFRONT_DB_DSN"
	EnvDBHost = "STOREFRONT_DB_HOST"
	EnvDBUser = "STOREFRONT_DB_USER"
	EnvDBName = "STOREFRONT_DB_NAME"

	EnvRedisURL = "STOREFRONT_REDIS_URL"

	EnvMediaDriver     = "STOREFRONT_MEDIA_DRIVER"
	EnvMediaPublicBase = "STOREFRONT_MEDIA_PUBLIC_BASE_URL"
	EnvSFTPHost        = "STOREFRONT_SFTP_HOST"
	EnvSFTPUser        = "STOREFRONT_SFTP_USER"
	EnvSFTPPassword    = "STOREFRONT_SFTP_PASSWORD"
	EnvSFTPPrivateKey  = "STOREFRONT_SFTP_PRIVATE_KEY"
	EnvS3Bucket        = "STOREFRONT_S3_BUCKET"

	EnvUseSQLite = "STOREFRONT_USE_SQLITE"
)

var discreteDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
