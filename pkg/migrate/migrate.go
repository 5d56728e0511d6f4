// Package migrate applies the goose SQL migrations that mirror the gorm models.
package migrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io"
	"io/fs"
	"strconv"

	"github.com/pressly/goose/v3"

	"github.com/angelmondragon/studyhub-backend/pkg/config"
)

// DefaultDir is where create and validate look on disk.
const DefaultDir = "pkg/migrate/migrations"

//go:embed migrations/*.sql
var embedded embed.FS

// Embedded returns the migrations compiled into the binary.
func Embedded() fs.FS {
	sub, err := fs.Sub(embedded, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

// GooseDialect maps a store driver to the goose dialect.
func GooseDialect(driver string) (goose.Dialect, error) {
	switch driver {
	case config.StoreDriverPostgres:
		return goose.DialectPostgres, nil
	case config.StoreDriverSQLite:
		return goose.DialectSQLite3, nil
	}
	return "", fmt.Errorf("store driver %q has no sql migrations", driver)
}

// NewProvider binds the migrations in fsys to db. The caller owns db.
func NewProvider(db *sql.DB, driver string, fsys fs.FS) (*goose.Provider, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	dialect, err := GooseDialect(driver)
	if err != nil {
		return nil, err
	}
	if fsys == nil {
		fsys = Embedded()
	}
	return goose.NewProvider(dialect, db, fsys)
}

// Run executes up, down, status or version against p and writes one line per
// migration touched to out. version needs a YYYYMMDDHHMMSS target and moves
// up or down to reach it.
func Run(ctx context.Context, p *goose.Provider, command, target string, out io.Writer) error {
	var (
		results []*goose.MigrationResult
		err     error
	)
	switch command {
	case "up":
		results, err = p.Up(ctx)
	case "down":
		var res *goose.MigrationResult
		if res, err = p.Down(ctx); res != nil {
			results = append(results, res)
		}
	case "status":
		return printStatus(ctx, p, out)
	case "version":
		results, err = migrateTo(ctx, p, target)
	default:
		return fmt.Errorf("unknown migrate command %q", command)
	}
	for _, r := range results {
		fmt.Fprintln(out, r.String())
	}
	if err != nil {
		return fmt.Errorf("goose %s: %w", command, err)
	}
	return nil
}

func migrateTo(ctx context.Context, p *goose.Provider, target string) ([]*goose.MigrationResult, error) {
	version, err := strconv.ParseInt(target, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS): %w", target, err)
	}
	current, err := p.GetDBVersion(ctx)
	if err != nil {
		return nil, fmt.Errorf("get db version: %w", err)
	}
	switch {
	case current < version:
		return p.UpTo(ctx, version)
	case current > version:
		return p.DownTo(ctx, version)
	}
	return nil, nil
}

func printStatus(ctx context.Context, p *goose.Provider, out io.Writer) error {
	statuses, err := p.Status(ctx)
	if err != nil {
		return fmt.Errorf("goose status: %w", err)
	}
	for _, s := range statuses {
		applied := "pending"
		if s.State == goose.StateApplied {
			applied = s.AppliedAt.UTC().Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(out, "%-20d %-20s %s\n", s.Source.Version, applied, s.Source.Path)
	}
	return nil
}
