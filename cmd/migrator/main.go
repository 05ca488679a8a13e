package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/pflag"
)

const (
	dsnFlag           = "dsn"
	migrationPathFlag = "migrations-path"
	downFlag          = "down"
	dsnEnvName        = "DARKSTORE_STORAGE_SQL_DB"
)

type flags struct {
	dsn            string
	migrationsPath string
	down           bool
}

func main() {
	f := getFlagsValues()
	validateFlags(f)
	if f.down {
		rollback(f)
		return
	}
	makeMigrations(f)
}

type MigrationLogger struct {
	logger  *slog.Logger
	verbose bool
}

func NewMigrationLogger() *MigrationLogger {
	return &MigrationLogger{
		logger:  slog.Default().With("component", "migrator"),
		verbose: true,
	}
}

func (ml *MigrationLogger) Printf(format string, v ...any) {
	ml.logger.Info(fmt.Sprintf(format, v...))
}

func (ml *MigrationLogger) Verbose() bool {
	return ml.verbose
}

// getFlagsValues falls back to DARKSTORE_STORAGE_SQL_DB for the dsn, the
// same variable that overrides storage.sql_db for the cart service.
func getFlagsValues() flags {
	dsn := pflag.StringP(dsnFlag, "d", os.Getenv(dsnEnvName), "postgres dsn without scheme")
	migrationsPath := pflag.StringP(migrationPathFlag, "m", "./migrations", "")
	down := pflag.Bool(downFlag, false, "roll back the last migration")
	pflag.Parse()
	return flags{dsn: *dsn, migrationsPath: *migrationsPath, down: *down}
}

func validateFlags(f flags) {
	var errs []error

	if f.dsn == "" {
		errs = append(errs, fmt.Errorf("--%s flag: required", dsnFlag))
	}

	if f.migrationsPath == "" {
		errs = append(errs, fmt.Errorf("--%s flag: required", migrationPathFlag))
	}

	if len(errs) != 0 {
		slog.Error("too few args", "err", errors.Join(errs...))
		fallDown()
	}
}

func newMigrate(f flags) *migrate.Migrate {
	m, err := migrate.New(
		fmt.Sprintf("file://%s", f.migrationsPath),
		fmt.Sprintf("pgx5://%s", f.dsn),
	)
	if err != nil {
		slog.Error("failed to migrate", "err", err)
		fallDown()
	}
	m.Log = NewMigrationLogger()
	return m
}

func makeMigrations(f flags) {
	m := newMigrate(f)
	defer closeMigrate(m)

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			m.Log.Printf("no migrations to apply")
			return
		}
		slog.Error("failed to migrate", "err", err)
		fallDown()
	}
	m.Log.Printf("migration applied")
}

func rollback(f flags) {
	m := newMigrate(f)
	defer closeMigrate(m)

	if err := m.Steps(-1); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			m.Log.Printf("nothing to roll back")
			return
		}
		slog.Error("failed to roll back", "err", err)
		fallDown()
	}
	m.Log.Printf("migration rolled back")
}

func closeMigrate(m *migrate.Migrate) {
	srcErr, dbErr := m.Close()
	if err := errors.Join(srcErr, dbErr); err != nil {
		slog.Error("failed to close migrate", "err", err)
	}
}

func fallDown() {
	os.Exit(2)
}
