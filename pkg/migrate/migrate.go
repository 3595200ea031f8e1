package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/pressly/goose/v3"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const DefaultDir = "pkg/migrate/migrations"

// SQL migrations target Postgres; SQLite dev databases use AutoMigrateModels.
const dialect = "postgres"

// Command is a goose action that needs a database connection.
type Command string

const (
	CommandUp     Command = "up"
	CommandDown   Command = "down"
	CommandStatus Command = "status"
	CommandRedo   Command = "redo"
)

// ParseCommand accepts the database-backed commands of cmd/migrate.
func ParseCommand(value string) (Command, error) {
	switch cmd := Command(strings.ToLower(strings.TrimSpace(value))); cmd {
	case CommandUp, CommandDown, CommandStatus, CommandRedo:
		return cmd, nil
	default:
		return "", fmt.Errorf("unknown migration command %q", value)
	}
}

// Migrator applies the products/carts schema to a Postgres database and logs
// the schema version before and after every change.
type Migrator struct {
	db   *sql.DB
	dir  string
	logg *logger.Logger
}

func NewMigrator(db *sql.DB, dir string, logg *logger.Logger) (*Migrator, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	if dir == "" {
		return nil, fmt.Errorf("dir is required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if err := goose.SetDialect(dialect); err != nil {
		return nil, fmt.Errorf("set goose dialect: %w", err)
	}
	return &Migrator{db: db, dir: dir, logg: logg}, nil
}

// Run executes cmd. goose prints status output to stdout itself.
func (m *Migrator) Run(ctx context.Context, cmd Command) error {
	return m.tracked(ctx, string(cmd), func() error {
		if err := goose.RunContext(ctx, string(cmd), m.db, m.dir); err != nil {
			return fmt.Errorf("goose %s: %w", cmd, err)
		}
		return nil
	})
}

// ToVersion migrates up or down until the database sits at target
// (YYYYMMDDHHMMSS).
func (m *Migrator) ToVersion(ctx context.Context, target string) error {
	version, err := strconv.ParseInt(strings.TrimSpace(target), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS): %w", target, err)
	}

	return m.tracked(ctx, "version", func() error {
		current, err := goose.GetDBVersion(m.db)
		if err != nil {
			return fmt.Errorf("get db version: %w", err)
		}
		switch {
		case current < version:
			if err := goose.UpToContext(ctx, m.db, m.dir, version); err != nil {
				return fmt.Errorf("goose up-to %d: %w", version, err)
			}
		case current > version:
			if err := goose.DownToContext(ctx, m.db, m.dir, version); err != nil {
				return fmt.Errorf("goose down-to %d: %w", version, err)
			}
		}
		return nil
	})
}

func (m *Migrator) tracked(ctx context.Context, action string, apply func() error) error {
	ctx = m.logg.WithField(ctx, "migration_action", action)
	before, err := goose.GetDBVersion(m.db)
	if err != nil {
		return fmt.Errorf("get db version: %w", err)
	}
	if err := apply(); err != nil {
		m.logg.Error(m.logg.WithField(ctx, "schema_version", before), "migrate.failed", err)
		return err
	}
	after, err := goose.GetDBVersion(m.db)
	if err != nil {
		return fmt.Errorf("get db version: %w", err)
	}
	m.logg.Info(m.logg.WithFields(ctx, map[string]any{
		"schema_version_before": before,
		"schema_version_after":  after,
	}), "migrate.done")
	return nil
}
