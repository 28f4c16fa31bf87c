package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/IliaW/program-scraper/config"
	"github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"
)

// Open connects to the configured database and waits until it answers a ping.
func Open(ctx context.Context, cfg *config.DatabaseConfig, log *slog.Logger) (*sql.DB, error) {
	log.Info("connecting to the database...", slog.String("driver", cfg.Driver))
	var driver, dsn string
	switch cfg.Driver {
	case "mysql":
		sqlCfg := mysql.Config{
			User:                 cfg.User,
			Passwd:               cfg.Password,
			Net:                  "tcp",
			Addr:                 fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
			DBName:               cfg.Name,
			AllowNativePasswords: true,
			ParseTime:            true,
		}
		driver, dsn = "mysql", sqlCfg.FormatDSN()
	case "sqlite", "":
		if dir := filepath.Dir(cfg.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create database dir: %w", err)
			}
		}
		driver, dsn = "sqlite", cfg.Path
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	database, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	database.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	database.SetMaxOpenConns(cfg.MaxOpenConns)
	database.SetMaxIdleConns(cfg.MaxIdleConns)

	maxRetry := 6
	for i := 1; i <= maxRetry; i++ {
		log.Info("ping the database.", slog.String("attempt", fmt.Sprintf("%d/%d", i, maxRetry)))
		pingErr := database.PingContext(ctx)
		if pingErr == nil {
			break
		}
		log.Error("not responding.", slog.String("err", pingErr.Error()))
		if i == maxRetry || ctx.Err() != nil {
			_ = database.Close()
			return nil, fmt.Errorf("establish database connection: %w", pingErr)
		}
		log.Info(fmt.Sprintf("wait %d seconds", 5*i))
		select {
		case <-time.After(time.Duration(5*i) * time.Second):
		case <-ctx.Done():
		}
	}
	log.Info("connected to the database!")

	return database, nil
}
