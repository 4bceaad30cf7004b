package repository

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

//go:embed migrations
var migrationsFS embed.FS

// RunMigrations 执行内嵌的数据库迁移
// sqlite 在同一连接池上迁移 (内存库只对当前连接可见); postgres 使用独立连接并在结束后关闭
func RunMigrations(driver string, db *sql.DB, dsn string, logger *zap.Logger) error {
	logger.Info("starting database migrations", zap.String("driver", driver))

	src, err := iofs.New(migrationsFS, "migrations/"+driver)
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}

	var (
		dbDriver database.Driver
		closeFn  func() error
	)
	switch driver {
	case "sqlite":
		dbDriver, err = sqlite.WithInstance(db, &sqlite.Config{})
		closeFn = src.Close
	case "postgres":
		var mdb *sql.DB
		mdb, err = sql.Open("postgres", dsn)
		if err != nil {
			return fmt.Errorf("failed to open migration connection: %w", err)
		}
		dbDriver, err = postgres.WithInstance(mdb, &postgres.Config{})
		if err != nil {
			mdb.Close()
		}
		closeFn = func() error { return errors.Join(src.Close(), mdb.Close()) }
	default:
		return fmt.Errorf("no migrations for driver %q", driver)
	}
	if err != nil {
		return fmt.Errorf("failed to create migrate driver: %w", err)
	}
	defer closeFn()

	m, err := migrate.NewWithInstance("iofs", src, driver, dbDriver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info("no migrations to apply")
			return nil
		}
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	logger.Info("database migrations applied successfully")
	return nil
}
