package migrate_test

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/angelmondragon/studyhub-backend/pkg/migrate"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestMigrationsDirIsValid(t *testing.T) {
	require.NoError(t, migrate.ValidateDir("migrations"))
}

func TestNotificationsMigrationConstrainsType(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_notifications.sql"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	content := string(data)

	for _, sub := range []string{
		"CREATE TABLE IF NOT EXISTS notifications",
		"CHECK (type IN ('library', 'training', 'tutorial', 'system'))",
		"DROP TABLE IF EXISTS notifications",
	} {
		require.Contains(t, content, sub)
	}
}

func TestMigrationsApplyOnSQLite(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "migrate.db")), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	provider, err := migrate.NewProvider(sqlDB, "sqlite", os.DirFS("migrations"))
	require.NoError(t, err)
	var out strings.Builder
	require.NoError(t, migrate.Run(context.Background(), provider, "up", "", &out))
	require.Contains(t, out.String(), "create_outbox")

	for _, table := range []string{"notifications", "classified_resources", "resource_ai_data", "outbox_events", "outbox_dlq"} {
		require.True(t, conn.Migrator().HasTable(table), "missing table %s", table)
	}

	require.NoError(t, migrate.Run(context.Background(), provider, "down", "", io.Discard))
	require.False(t, conn.Migrator().HasTable("outbox_events"))
	require.True(t, conn.Migrator().HasTable("resource_ai_data"))

	require.NoError(t, migrate.Run(context.Background(), provider, "version", "20260301120000", io.Discard))
	require.True(t, conn.Migrator().HasTable("notifications"))
	require.False(t, conn.Migrator().HasTable("classified_resources"))

	out.Reset()
	require.NoError(t, migrate.Run(context.Background(), provider, "status", "", &out))
	require.Contains(t, out.String(), "pending")
	require.Error(t, migrate.Run(context.Background(), provider, "version", "latest", io.Discard))
}

func TestEmbeddedMigrationsMatchDisk(t *testing.T) {
	onDisk, err := filepath.Glob(filepath.Join("migrations", "*.sql"))
	require.NoError(t, err)
	embedded, err := fs.Glob(migrate.Embedded(), "*.sql")
	require.NoError(t, err)
	require.Len(t, embedded, len(onDisk))
}

func TestGooseDialect(t *testing.T) {
	d, err := migrate.GooseDialect("sqlite")
	require.NoError(t, err)
	require.Equal(t, goose.DialectSQLite3, d)

	_, err = migrate.GooseDialect("firestore")
	require.Error(t, err)
}

func TestCreateSQLMigrationSanitizesName(t *testing.T) {
	dir := t.TempDir()
	path, err := migrate.CreateSQLMigration(dir, "Add Resource Views!")
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(path, "_add_resource_views.sql"))
	require.NoError(t, migrate.ValidateDir(dir))
}

func TestValidateDirRejectsNonPortableSQL(t *testing.T) {
	dir := t.TempDir()
	body := "-- +goose Up\n-- +goose StatementBegin\nCREATE TABLE t (id SERIAL PRIMARY KEY, data JSONB);\n-- +goose StatementEnd\n-- +goose Down\nDROP TABLE t;\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "20260101000000_bad.sql"), []byte(body), 0o644))

	err := migrate.ValidateDir(dir)
	require.Error(t, err)
	require.Contains(t, err.Error(), "postgres-only")
}

func TestValidateDirRejectsUnbalancedBlocks(t *testing.T) {
	dir := t.TempDir()
	body := "-- +goose Up\n-- +goose StatementBegin\nCREATE TABLE t (id TEXT);\n-- +goose Down\nDROP TABLE t;\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "20260101000000_unbalanced.sql"), []byte(body), 0o644))

	require.Error(t, migrate.ValidateDir(dir))
}
