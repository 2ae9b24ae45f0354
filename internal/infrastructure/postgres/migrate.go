package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/fastygo/taskdesk/internal/config"
)

// Migration directions accepted by Migrate.
const (
	DirectionUp   = "up"
	DirectionDown = "down"
)

// RunMigrations applies pending migrations when enabled in configuration.
func RunMigrations(cfg *config.Config, logger *zap.Logger) error {
	if cfg == nil || !cfg.Migrations.Enabled {
		return nil
	}
	return Migrate(cfg, DirectionUp, 0, logger)
}

// Migrate moves the schema in direction. A positive steps limits how many
// migrations are applied or rolled back; zero means all of them.
func Migrate(cfg *config.Config, direction string, steps int, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	m, closeFn, err := open(cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	switch {
	case direction == DirectionUp && steps > 0:
		err = m.Steps(steps)
	case direction == DirectionUp:
		err = m.Up()
	case direction == DirectionDown && steps > 0:
		err = m.Steps(-steps)
	case direction == DirectionDown:
		err = m.Down()
	default:
		return fmt.Errorf("unknown migration direction %q", direction)
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}

	version, dirty, verr := m.Version()
	if verr != nil && !errors.Is(verr, migrate.ErrNilVersion) {
		return verr
	}
	logger.Info("database migrations applied",
		zap.String("direction", direction),
		zap.Uint("version", version),
		zap.Bool("dirty", dirty))
	return nil
}

func open(cfg *config.Config) (*migrate.Migrate, func(), error) {
	sqlDB, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		return nil, nil, err
	}
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, nil, err
	}

	driver, err := postgres.WithInstance(sqlDB, &postgres.Config{MigrationsTable: "taskdesk_schema_migrations"})
	if err != nil {
		sqlDB.Close()
		return nil, nil, err
	}

	sourceURL := fmt.Sprintf("file://%s", filepath.ToSlash(cfg.Migrations.Path))
	m, err := migrate.NewWithDatabaseInstance(sourceURL, cfg.Database.Name, driver)
	if err != nil {
		sqlDB.Close()
		return nil, nil, err
	}
	return m, func() {
		m.Close()
		sqlDB.Close()
	}, nil
}
