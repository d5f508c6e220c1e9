package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/angelmondragon/storefront-backend/internal/bootstrap"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/migrate"
)

type options struct {
	cmd     string
	dir     string
	name    string
	version string
}

var errUsage = errors.New("usage")

func main() {
	var opts options
	flag.StringVar(&opts.cmd, "cmd", "up", "migration command: up|down|status|version|create|validate")
	flag.StringVar(&opts.dir, "dir", migrate.DefaultDir, "goose migrations directory")
	flag.StringVar(&opts.name, "name", "", "migration name (create)")
	flag.StringVar(&opts.version, "version", "", "target version YYYYMMDDHHMMSS (version)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts); err != nil {
		if errors.Is(err, errUsage) {
			flag.Usage()
		}
		fmt.Fprintf(os.Stderr, "migrate %s: %v\n", opts.cmd, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options) error {
	// create and validate only touch the filesystem.
	switch opts.cmd {
	case "create":
		if opts.name == "" {
			return fmt.Errorf("%w: -name is required", errUsage)
		}
		path, err := migrate.Create(opts.dir, opts.name)
		if err != nil {
			return err
		}
		fmt.Println("created migration:", path)
		return nil
	case "validate":
		if err := migrate.ValidateDir(opts.dir); err != nil {
			return err
		}
		fmt.Println("migration validation passed")
		return nil
	}

	cfg, logg, err := bootstrap.LoadConfig("migrate")
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.FeatureFlags.UseSQLite {
		return errors.New("goose migrations target postgres; sqlite schemas come from STOREFRONT_AUTO_MIGRATE")
	}
	ctx = logg.WithFields(ctx, map[string]any{
		"env": cfg.App.Env,
		"cmd": opts.cmd,
		"dir": opts.dir,
	})

	client, err := db.New(ctx, cfg.DB, false, logg)
	if err != nil {
		logg.Error(ctx, "database unavailable", err)
		return err
	}
	defer client.Close()
	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("sql handle: %w", err)
	}

	if err := apply(ctx, sqlDB, opts); err != nil {
		logg.Error(ctx, "migration failed", err)
		return err
	}
	logg.Info(ctx, "migration finished")
	return nil
}

func apply(ctx context.Context, sqlDB *sql.DB, opts options) error {
	switch opts.cmd {
	case "up", "down", "status":
		return migrate.Run(ctx, sqlDB, opts.dir, opts.cmd)
	case "version":
		if opts.version == "" {
			return fmt.Errorf("%w: -version is required", errUsage)
		}
		return migrate.MigrateToVersion(ctx, sqlDB, opts.dir, opts.version)
	default:
		return fmt.Errorf("%w: unknown -cmd %q", errUsage, opts.cmd)
	}
}
