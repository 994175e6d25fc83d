package migrate

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/pressly/goose/v3"

	"github.com/angelmondragon/ghanadude-checkout/pkg/config"
)

// DefaultDir is where the SQL files live in the source tree. Binaries use the
// embedded copy unless a different directory is requested.
const DefaultDir = "pkg/migrate/migrations"

//go:embed migrations/*.sql
var embedded embed.FS

// Dialect maps the configured database driver onto a goose dialect.
func Dialect(cfg config.DBConfig) goose.Dialect {
	if cfg.IsSQLite() {
		return goose.DialectSQLite3
	}
	return goose.DialectPostgres
}

// Source resolves the migration files for dir. The default directory (or an
// empty one) is served from the binary so deployed images need no checkout.
func Source(dir string) (fs.FS, error) {
	if dir == "" || dir == DefaultDir {
		return fs.Sub(embedded, "migrations")
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("migrations dir %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("migrations dir %s is not a directory", dir)
	}
	return os.DirFS(dir), nil
}

// Migrator applies the checkout schema through a goose provider.
type Migrator struct {
	provider *goose.Provider
}

func New(db *sql.DB, dialect goose.Dialect, fsys fs.FS) (*Migrator, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	if fsys == nil {
		return nil, errors.New("migrations source is required")
	}
	provider, err := goose.NewProvider(dialect, db, fsys)
	if err != nil {
		return nil, fmt.Errorf("goose provider: %w", err)
	}
	return &Migrator{provider: provider}, nil
}

// Up applies every pending migration and returns how many ran.
func (m *Migrator) Up(ctx context.Context) (int, error) {
	results, err := m.provider.Up(ctx)
	if err != nil {
		return len(results), fmt.Errorf("goose up: %w", err)
	}
	return len(results), nil
}

// Down rolls back the most recent migration.
func (m *Migrator) Down(ctx context.Context) error {
	if _, err := m.provider.Down(ctx); err != nil {
		return fmt.Errorf("goose down: %w", err)
	}
	return nil
}

func (m *Migrator) Version(ctx context.Context) (int64, error) {
	version, err := m.provider.GetDBVersion(ctx)
	if err != nil {
		return 0, fmt.Errorf("get db version: %w", err)
	}
	return version, nil
}

// Status lists every known migration with whether it has been applied.
func (m *Migrator) Status(ctx context.Context) ([]*goose.MigrationStatus, error) {
	statuses, err := m.provider.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("goose status: %w", err)
	}
	return statuses, nil
}

// To moves the schema up or down until the database sits at target
// (YYYYMMDDHHMMSS, or 0 to roll everything back).
func (m *Migrator) To(ctx context.Context, target string) error {
	version, err := strconv.ParseInt(target, 10, 64)
	if err != nil || version < 0 {
		return fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS)", target)
	}

	current, err := m.Version(ctx)
	if err != nil {
		return err
	}
	switch {
	case current == version:
		return nil
	case current < version:
		if _, err := m.provider.UpTo(ctx, version); err != nil {
			return fmt.Errorf("goose up-to %d: %w", version, err)
		}
	default:
		if _, err := m.provider.DownTo(ctx, version); err != nil {
			return fmt.Errorf("goose down-to %d: %w", version, err)
		}
	}
	return nil
}
