package migration

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed sql
var schemaFiles embed.FS

// Dialect names a supported SQL backend.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// Source returns the embedded migration source for the dialect.
func Source(dialect Dialect) (source.Driver, error) {
	switch dialect {
	case DialectSQLite, DialectPostgres:
	default:
		return nil, newMigrationError(dialect, 0, "open source", ErrUnknownDialect)
	}
	src, err := iofs.New(schemaFiles, "sql/"+string(dialect))
	if err != nil {
		return nil, newMigrationError(dialect, 0, "open source", err)
	}
	return src, nil
}

// Runner applies pending migrations and logs the resulting schema version.
type Runner struct {
	logger *slog.Logger
}

// NewRunner constructs a Runner. A nil logger falls back to slog.Default.
func NewRunner(logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{logger: logger.With("component", "migration")}
}

// UpSQLite migrates an open SQLite handle. The handle stays owned by the
// caller and is not closed.
func (r *Runner) UpSQLite(ctx context.Context, db *sql.DB) error {
	src, err := Source(DialectSQLite)
	if err != nil {
		return err
	}
	defer src.Close()

	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return newMigrationError(DialectSQLite, 0, "open database", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, string(DialectSQLite), driver)
	if err != nil {
		return newMigrationError(DialectSQLite, 0, "init", err)
	}
	// m.Close would close db through the driver.
	return r.up(ctx, DialectSQLite, m)
}

// UpPostgres migrates the database at databaseURL using a dedicated
// connection that is closed before returning.
func (r *Runner) UpPostgres(ctx context.Context, databaseURL string) error {
	src, err := Source(DialectPostgres)
	if err != nil {
		return err
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, postgresMigrationURL(databaseURL))
	if err != nil {
		_ = src.Close()
		return newMigrationError(DialectPostgres, 0, "init", err)
	}
	defer func() {
		srcErr, dbErr := m.Close()
		if srcErr != nil || dbErr != nil {
			r.logger.Warn("failed to close migration handles", "source_error", srcErr, "database_error", dbErr)
		}
	}()

	return r.up(ctx, DialectPostgres, m)
}

func (r *Runner) up(ctx context.Context, dialect Dialect, m *migrate.Migrate) error {
	m.Log = &migrateLogger{logger: r.logger.With("dialect", string(dialect))}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			m.GracefulStop <- true
		case <-done:
		}
	}()

	before, _ := currentVersion(m)
	err := m.Up()
	switch {
	case err == nil:
	case errors.Is(err, migrate.ErrNoChange):
		err = nil
	default:
		var dirty migrate.ErrDirty
		if errors.As(err, &dirty) {
			return newMigrationError(dialect, uint(dirty.Version), "up", fmt.Errorf("%w: %v", ErrDirtyDatabase, err))
		}
		version, _ := currentVersion(m)
		return newMigrationError(dialect, version, "up", fmt.Errorf("%w: %v", ErrMigrationFailed, err))
	}

	after, verr := currentVersion(m)
	if verr != nil {
		return newMigrationError(dialect, 0, "read version", verr)
	}

	if after == before {
		r.logger.Info("schema up to date", "dialect", string(dialect), "version", after)
	} else {
		r.logger.Info("schema migrated", "dialect", string(dialect), "from_version", before, "to_version", after)
	}
	return nil
}

func currentVersion(m *migrate.Migrate) (uint, error) {
	version, _, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, nil
	}
	return version, err
}

// postgresMigrationURL normalises pgx style URLs to the scheme registered by
// the migrate postgres driver.
func postgresMigrationURL(databaseURL string) string {
	for _, prefix := range []string{"pgx5://", "pgx://"} {
		if strings.HasPrefix(databaseURL, prefix) {
			return "postgres://" + strings.TrimPrefix(databaseURL, prefix)
		}
	}
	return databaseURL
}

type migrateLogger struct {
	logger *slog.Logger
}

func (l *migrateLogger) Printf(format string, v ...interface{}) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l *migrateLogger) Verbose() bool {
	return false
}
