// Package migrate wraps goose for the catalog schema. SQL files under
// DefaultDir target Postgres; sqlite dev databases are built from the models.
package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/pressly/goose/v3"
)

const (
	DefaultDir = "pkg/migrate/migrations"
	dialect    = "postgres"
)

func prepare(db *sql.DB, dir string) error {
	if db == nil {
		return fmt.Errorf("db is required")
	}
	if dir == "" {
		return fmt.Errorf("dir is required")
	}
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	return nil
}

// Run executes a goose command such as up, down or status.
func Run(ctx context.Context, db *sql.DB, dir string, command string, args ...string) error {
	if err := prepare(db, dir); err != nil {
		return err
	}
	if err := goose.RunContext(ctx, command, db, dir, args...); err != nil {
		return fmt.Errorf("goose %s: %w", command, err)
	}
	return nil
}

// MigrateToVersion moves the schema up or down until it sits at target
// (a YYYYMMDDHHMMSS migration version).
func MigrateToVersion(ctx context.Context, db *sql.DB, dir string, target string) error {
	if err := prepare(db, dir); err != nil {
		return err
	}
	version, err := strconv.ParseInt(target, 10, 64)
	if err != nil || len(target) != len(versionLayout) {
		return fmt.Errorf("invalid version %q (expected %s)", target, versionLayout)
	}

	current, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	switch {
	case current < version:
		err = goose.UpToContext(ctx, db, dir, version)
	case current > version:
		err = goose.DownToContext(ctx, db, dir, version)
	default:
		return nil
	}
	if err != nil {
		return fmt.Errorf("migrate %d -> %d: %w", current, version, err)
	}
	return nil
}
