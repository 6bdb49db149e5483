// Package datastore opens the SQL database and exposes the handscan
// repositories through repository.Store.
package datastore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/handscan/handscan/internal/conf"
	"github.com/handscan/handscan/internal/datastore/entities"
	"github.com/handscan/handscan/internal/datastore/repository"
	"github.com/handscan/handscan/internal/errors"
	"github.com/handscan/handscan/internal/logger"
)

const (
	DriverSQLite   = "sqlite"
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
)

// Manager owns the database connection.
type Manager struct {
	db     *gorm.DB
	store  *repository.Store
	driver string
	log    logger.Logger
}

// Open connects to the configured database. Migrations are not applied;
// call Migrate for that.
func Open(settings *conf.DatabaseSettings, log logger.Logger) (*Manager, error) {
	if log == nil {
		log = logger.Global().Module("datastore")
	}

	dialector, err := dialectorFor(settings)
	if err != nil {
		return nil, err
	}

	return OpenDialector(dialector, settings, log)
}

// OpenDialector connects through an explicit dialector. Tests use it to
// point the manager at an in-memory or containerized database.
func OpenDialector(dialector gorm.Dialector, settings *conf.DatabaseSettings, log logger.Logger) (*Manager, error) {
	if log == nil {
		log = logger.Global().Module("datastore")
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.NewGormLoggerAdapter(log, settings.SlowQueryThreshold),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("driver", settings.Driver).
			Build()
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database handle: %w", err)
	}
	if settings.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(settings.MaxOpenConns)
	}
	if settings.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(settings.MaxIdleConns)
	}

	log.Info("database opened", logger.String("driver", settings.Driver))

	return &Manager{
		db:     db,
		store:  repository.NewStore(db),
		driver: settings.Driver,
		log:    log,
	}, nil
}

func dialectorFor(settings *conf.DatabaseSettings) (gorm.Dialector, error) {
	switch settings.Driver {
	case DriverSQLite, "":
		path := settings.SQLite.Path
		if dir := filepath.Dir(path); dir != "." && path != ":memory:" {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
			}
		}
		return sqlite.Open(SQLiteDSN(path)), nil
	case DriverMySQL:
		return mysql.Open(MySQLDSN(&settings.MySQL)), nil
	case DriverPostgres:
		return postgres.Open(PostgresDSN(&settings.Postgres)), nil
	default:
		return nil, errors.Newf("unsupported database driver %q", settings.Driver).
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Build()
	}
}

// SQLiteDSN enables WAL, a busy timeout and foreign key enforcement, which
// the cascade deletes rely on.
func SQLiteDSN(path string) string {
	if path == ":memory:" {
		return "file::memory:?_foreign_keys=ON"
	}
	return path + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=ON"
}

// MySQLDSN builds a go-sql-driver DSN.
func MySQLDSN(s *conf.MySQLSettings) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		s.Username, s.Password, s.Host, s.Port, s.Database)
}

// PostgresDSN builds a pgx keyword/value DSN.
func PostgresDSN(s *conf.PostgresSettings) string {
	sslMode := s.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
		s.Host, s.Port, s.Username, s.Password, s.Database, sslMode)
}

// Migrate creates or updates every table.
func (m *Manager) Migrate(ctx context.Context) error {
	start := time.Now()
	if err := m.db.WithContext(ctx).AutoMigrate(entities.All()...); err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "auto_migrate").
			Context("driver", m.driver).
			Build()
	}
	m.log.Info("schema migrated",
		logger.String("driver", m.driver),
		logger.Duration("elapsed", time.Since(start)))
	return nil
}

// Store returns the repositories bound to this connection.
func (m *Manager) Store() *repository.Store {
	return m.store
}

// DB returns the GORM handle.
func (m *Manager) DB() *gorm.DB {
	return m.db
}

// Ping checks that the database answers.
func (m *Manager) Ping(ctx context.Context) error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the connection pool.
func (m *Manager) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.Close(); err != nil {
		m.log.Warn("failed to close database", logger.Error(err))
		return err
	}
	return nil
}
