package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	HTTP         HTTPConfig
	DB           DBConfig
	Redis        RedisConfig
	MediaStore   MediaStoreConfig
	Staging      StagingConfig
	Catalog      CatalogConfig
	Cron         CronConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if err := cfg.MediaStore.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"STOREFRONT_APP_ENV" required:"true"`
	Port         string `envconfig:"STOREFRONT_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"STOREFRONT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"STOREFRONT_LOG_WARN_STACK" default:"false"`
	LogFile      string `envconfig:"STOREFRONT_LOG_FILE"`
	LogMaxSizeMB int    `envconfig:"STOREFRONT_LOG_MAX_SIZE_MB" default:"100"`
	LogBackups   int    `envconfig:"STOREFRONT_LOG_MAX_BACKUPS" default:"5"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"STOREFRONT_SERVICE_KIND" default:"api"`
}

type HTTPConfig struct {
	CORSOrigins    []string      `envconfig:"STOREFRONT_CORS_ORIGINS" default:"http://localhost:3000"`
	RequestTimeout time.Duration `envconfig:"STOREFRONT_REQUEST_TIMEOUT" default:"2m"`
	IdempotencyTTL time.Duration `envconfig:"STOREFRONT_IDEMPOTENCY_TTL" default:"24h"`
}

type DBConfig struct {
	DSN    string `envconfig:"STOREFRONT_DB_DSN"`
	Driver string `envconfig:"STOREFRONT_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"STOREFRONT_DB_HOST"`
	Port     int    `envconfig:"STOREFRONT_DB_PORT" default:"5432"`
	User     string `envconfig:"STOREFRONT_DB_USER"`
	Password string `envconfig:"STOREFRONT_DB_PASSWORD"`
	Name     string `envconfig:"STOREFRONT_DB_NAME"`
	SSLMode  string `envconfig:"STOREFRONT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"STOREFRONT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"STOREFRONT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"STOREFRONT_REDIS_URL"`
	Address      string        `envconfig:"STOREFRONT_REDIS_ADDR"`
	Password     string        `envconfig:"STOREFRONT_REDIS_PASSWORD"`
	DB           int           `envconfig:"STOREFRONT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STOREFRONT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STOREFRONT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STOREFRONT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Configured reports whether any redis endpoint was supplied.
func (r RedisConfig) Configured() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

// MediaStoreConfig describes the remote file server holding product images.
type MediaStoreConfig struct {
	Driver        string        `envconfig:"STOREFRONT_MEDIA_DRIVER" default:"sftp"`
	BaseDir       string        `envconfig:"STOREFRONT_MEDIA_BASE_DIR" default:"uploads/products"`
	PublicBaseURL string        `envconfig:"STOREFRONT_MEDIA_PUBLIC_BASE_URL"`
	DialTimeout   time.Duration `envconfig:"STOREFRONT_MEDIA_DIAL_TIMEOUT" default:"10s"`

	SFTPHost         string `envconfig:"STOREFRONT_SFTP_HOST"`
	SFTPPort         int    `envconfig:"STOREFRONT_SFTP_PORT" default:"22"`
	SFTPUser         string `envconfig:"STOREFRONT_SFTP_USER"`
	SFTPPassword     string `envconfig:"STOREFRONT_SFTP_PASSWORD"`
	SFTPPrivateKey   string `envconfig:"STOREFRONT_SFTP_PRIVATE_KEY"`
	SFTPHostKey      string `envconfig:"STOREFRONT_SFTP_HOST_KEY"`
	SFTPInsecureHost bool   `envconfig:"STOREFRONT_SFTP_INSECURE_HOST_KEY" default:"false"`

	S3Bucket    string `envconfig:"STOREFRONT_S3_BUCKET"`
	S3Region    string `envconfig:"STOREFRONT_S3_REGION" default:"us-east-1"`
	S3Endpoint  string `envconfig:"STOREFRONT_S3_ENDPOINT"`
	S3AccessKey string `envconfig:"STOREFRONT_S3_ACCESS_KEY"`
	S3SecretKey string `envconfig:"STOREFRONT_S3_SECRET_KEY"`
	S3PathStyle bool   `envconfig:"STOREFRONT_S3_PATH_STYLE" default:"false"`
}

// URLFor renders a stored relative name against the public base URL.
func (m MediaStoreConfig) URLFor(name string) string {
	base := strings.TrimRight(strings.TrimSpace(m.PublicBaseURL), "/")
	if base == "" || name == "" {
		return name
	}
	return base + "/" + strings.TrimLeft(name, "/")
}

func (m MediaStoreConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(m.Driver)) {
	case MediaDriverSFTP:
		if m.SFTPHost == "" || m.SFTPUser == "" {
			return fmt.Errorf("%s and %s are required for the sftp media driver", EnvSFTPHost, EnvSFTPUser)
		}
		if m.SFTPPassword == "" && m.SFTPPrivateKey == "" {
			return fmt.Errorf("either %s or %s is required", EnvSFTPPassword, EnvSFTPPrivateKey)
		}
	case MediaDriverS3:
		if m.S3Bucket == "" {
			return fmt.Errorf("%s is required for the s3 media driver", EnvS3Bucket)
		}
	default:
		return fmt.Errorf("unsupported media driver %q", m.Driver)
	}
	return nil
}

type StagingConfig struct {
	Dir         string `envconfig:"STOREFRONT_STAGING_DIR" default:"/tmp/storefront-staging"`
	MaxUploadMB int    `envconfig:"STOREFRONT_MAX_UPLOAD_MB" default:"20"`
}

// MaxUploadBytes is the largest multipart body the admin surface accepts.
func (s StagingConfig) MaxUploadBytes() int64 {
	if s.MaxUploadMB <= 0 {
		return 20 << 20
	}
	return int64(s.MaxUploadMB) << 20
}

type CatalogConfig struct {
	DefaultQuantityLimit int           `envconfig:"STOREFRONT_DEFAULT_QUANTITY_LIMIT" default:"10"`
	CacheTTL             time.Duration `envconfig:"STOREFRONT_PRODUCT_CACHE_TTL" default:"10m"`
}

type CronConfig struct {
	Interval        time.Duration `envconfig:"STOREFRONT_CRON_INTERVAL" default:"1h"`
	IntentRetention time.Duration `envconfig:"STOREFRONT_MEDIA_INTENT_RETENTION" default:"24h"`
	RepairEnabled   bool          `envconfig:"STOREFRONT_CRON_REPAIR_ENABLED" default:"true"`
}

type FeatureFlagsConfig struct {
	UseSQLite    bool `envconfig:"STOREFRONT_USE_SQLITE" default:"false"`
	AutoMigrate  bool `envconfig:"STOREFRONT_AUTO_MIGRATE" default:"false"`
	CacheEnabled bool `envconfig:"STOREFRONT_PRODUCT_CACHE_ENABLED" default:"true"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if db.DSN != "" {
		return nil
	}
	if useSQLite {
		db.DSN = "file:storefront.db?_foreign_keys=on"
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range discreteDBEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
