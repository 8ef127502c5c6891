// Package db opens the database and brings its schema up to date.
package db

import (
	"time"

	migrate "github.com/golang-migrate/migrate/v4"
	// The following blank imports register the postgres driver and file source for golang-migrate.
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/diewo77/go-fees/internal/config"
	"github.com/diewo77/go-fees/internal/models"
)

const (
	connectAttempts = 10
	retryDelay      = 2 * time.Second
	migrationsURL   = "file://migrations"
)

// requiredTables must exist once the schema is migrated.
var requiredTables = []string{"users", "academic_years", "classes", "students", "fee_structures", "student_fees", "payments"}

// Connect opens the configured database, retrying while it comes up.
func Connect(cfg *config.Config, log *zap.Logger) (*gorm.DB, error) {
	logLevel := logger.Silent
	if cfg.App.DBDebug {
		logLevel = logger.Info
	}
	gcfg := &gorm.Config{Logger: logger.Default.LogMode(logLevel), TranslateError: true}

	var dialector gorm.Dialector
	var dsn string
	if cfg.Database.IsSQLite() {
		dsn = cfg.Database.Path
		dialector = sqlite.Open(dsn)
	} else {
		dsn = NormalizeDSN(cfg.Database.DSN())
		dialector = postgres.Open(dsn)
	}
	log.Info("connecting to database", zap.String("driver", cfg.Database.Driver), zap.String("dsn", MaskDSN(dsn)))

	var (
		db  *gorm.DB
		err error
	)
	for i := 0; i < connectAttempts; i++ {
		db, err = gorm.Open(dialector, gcfg)
		if err == nil {
			break
		}
		log.Warn("database not ready, retrying", zap.Int("attempt", i+1), zap.Error(err))
		time.Sleep(retryDelay)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect database after retries")
	}

	// Basic connectivity test
	if err := db.Exec("SELECT 1").Error; err != nil {
		return nil, errors.Wrap(err, "db ping failed")
	}
	return db, nil
}

// Migrate applies the SQL migrations when enabled on postgres, and otherwise
// falls back to AutoMigrate. Seeding runs last when requested.
func Migrate(db *gorm.DB, cfg *config.Config, log *zap.Logger) error {
	if cfg.App.Migrations && !cfg.Database.IsSQLite() {
		log.Info("running sql migrations", zap.String("source", migrationsURL))
		if err := runSQLMigrations(cfg.Database.URL()); err != nil {
			return errors.Wrap(err, "sql migrations failed")
		}
	} else {
		for _, m := range models.All() {
			if err := db.AutoMigrate(m); err != nil {
				return errors.Wrapf(err, "automigrate %T", m)
			}
		}
	}

	// sanity check: ensure required core tables exist
	for _, table := range requiredTables {
		if !db.Migrator().HasTable(table) {
			return errors.New("missing table after migration: " + table)
		}
	}
	if cfg.App.Seed {
		if err := Seed(db, time.Now().UTC()); err != nil {
			return errors.Wrap(err, "seed")
		}
		log.Info("seed data ensured")
	}
	return nil
}

func runSQLMigrations(url string) error {
	m, err := migrate.New(migrationsURL, url)
	if err != nil {
		return err
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}
