package migrations

import (
	"database/sql"
	"fmt"
	"sync"

	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog/log"
)

// goose keeps global state (base FS, dialect, logger); serialize access
// so concurrent migrators cannot interleave setup.
var migrationMu sync.Mutex

// gooseZerologAdapter implements goose.Logger to redirect goose output
// to zerolog instead of stdout.
type gooseZerologAdapter struct{}

func (*gooseZerologAdapter) Printf(format string, v ...any) {
	log.Info().Msgf(format, v...)
}

func (*gooseZerologAdapter) Fatalf(format string, v ...any) {
	log.Fatal().Msgf(format, v...)
}

func setup() error {
	goose.SetLogger(&gooseZerologAdapter{})
	goose.SetBaseFS(PostgresFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	return nil
}

// Up applies all pending migrations.
func Up(db *sql.DB) error {
	migrationMu.Lock()
	defer migrationMu.Unlock()

	if err := setup(); err != nil {
		return err
	}
	if err := goose.Up(db, PostgresDir); err != nil {
		return fmt.Errorf("run migrations up: %w", err)
	}
	return nil
}

// Down rolls back the most recent migration.
func Down(db *sql.DB) error {
	migrationMu.Lock()
	defer migrationMu.Unlock()

	if err := setup(); err != nil {
		return err
	}
	if err := goose.Down(db, PostgresDir); err != nil {
		return fmt.Errorf("run migrations down: %w", err)
	}
	return nil
}

// Status logs the applied/pending state of every migration.
func Status(db *sql.DB) error {
	migrationMu.Lock()
	defer migrationMu.Unlock()

	if err := setup(); err != nil {
		return err
	}
	if err := goose.Status(db, PostgresDir); err != nil {
		return fmt.Errorf("migration status: %w", err)
	}
	return nil
}
