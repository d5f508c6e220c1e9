package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const slowQueryThreshold = 500 * time.Millisecond

// Client wraps the shared GORM connection.
type Client struct {
	conn *gorm.DB
}

// Pinger exposes the health check surface.
type Pinger interface {
	Ping(ctx context.Context) error
}

// New opens the catalog database. useSQLite selects the embedded driver used
// for local development and tests; sqlite always runs with foreign keys on
// and a single connection.
func New(ctx context.Context, cfg config.DBConfig, useSQLite bool, logg *logger.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("database DSN is required")
	}

	conn, err := gorm.Open(dialectorFor(cfg.DSN, useSQLite), &gorm.Config{
		Logger:                 queryLogger(logg),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening db connection: %w", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql db handle: %w", err)
	}

	if useSQLite {
		sqlDB.SetMaxOpenConns(1)
		if err := conn.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("enabling sqlite foreign keys: %w", err)
		}
	} else {
		if cfg.MaxOpenConns > 0 {
			sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		if cfg.MaxIdleConns > 0 {
			sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		}
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if cfg.ConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if logg != nil {
		driver := "postgres"
		if useSQLite {
			driver = "sqlite"
		}
		logg.Info(logg.WithField(ctx, "db_driver", driver), "database connection established")
	}
	return &Client{conn: conn}, nil
}

func dialectorFor(dsn string, useSQLite bool) gorm.Dialector {
	if useSQLite {
		return sqlite.Open(dsn)
	}
	return postgres.New(postgres.Config{DSN: dsn, PreferSimpleProtocol: true})
}

// queryLogger reports slow queries and driver errors through the service
// logger. Record-not-found is routine for lookups and stays quiet.
func queryLogger(logg *logger.Logger) gormlogger.Interface {
	if logg == nil {
		return gormlogger.Discard
	}
	return gormlogger.New(gormWriter{logg: logg}, gormlogger.Config{
		SlowThreshold:             slowQueryThreshold,
		LogLevel:                  gormlogger.Warn,
		IgnoreRecordNotFoundError: true,
		ParameterizedQueries:      true,
		Colorful:                  false,
	})
}

type gormWriter struct {
	logg *logger.Logger
}

func (w gormWriter) Printf(format string, args ...any) {
	w.logg.Warn(w.logg.WithField(context.Background(), "component", "gorm"), fmt.Sprintf(format, args...))
}

// FromConn wraps an already opened connection.
func FromConn(conn *gorm.DB) *Client {
	return &Client{conn: conn}
}

func (c *Client) DB() *gorm.DB {
	return c.conn
}

func (c *Client) Ping(ctx context.Context) error {
	sqlDB, err := c.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (c *Client) Close() error {
	sqlDB, err := c.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (c *Client) Exec(ctx context.Context, query string, args ...any) *gorm.DB {
	return c.conn.WithContext(ctx).Exec(query, args...)
}

func (c *Client) Raw(ctx context.Context, query string, args ...any) *gorm.DB {
	return c.conn.WithContext(ctx).Raw(query, args...)
}

// WithTx runs fn in one transaction. An error or panic from fn rolls it back.
func (c *Client) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return c.conn.WithContext(ctx).Transaction(fn)
}
