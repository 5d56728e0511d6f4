package repo

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type counter struct {
	ID    string `gorm:"primaryKey"`
	Value int
}

func newTestBase(t *testing.T) Base {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := conn.AutoMigrate(&counter{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewBase(conn)
}

func TestDBBindsContext(t *testing.T) {
	base := newTestBase(t)
	ctx := context.WithValue(context.Background(), struct{}{}, "value")

	if got := base.DB(ctx).Statement.Context; got != ctx {
		t.Fatalf("expected context to flow through, got %v", got)
	}
	if base.DB(nil) != base.db {
		t.Fatal("expected nil context to return the raw connection")
	}
}

func TestTxRollsBackOnError(t *testing.T) {
	base := newTestBase(t)
	ctx := context.Background()

	err := base.Tx(ctx, func(tx *gorm.DB) error {
		if err := ForUpdate(tx).Create(&counter{ID: "a", Value: 1}).Error; err != nil {
			return err
		}
		return errors.New("abort")
	})
	if err == nil {
		t.Fatal("expected the callback error")
	}

	var c counter
	err = base.DB(ctx).Take(&c, "id = ?", "a").Error
	if !IsNotFound(err) {
		t.Fatalf("expected the insert to be rolled back, got %v", err)
	}
}

func TestIsNotFoundUnwraps(t *testing.T) {
	if !IsNotFound(fmt.Errorf("load: %w", gorm.ErrRecordNotFound)) {
		t.Fatal("expected wrapped not-found to match")
	}
	if IsNotFound(errors.New("other")) {
		t.Fatal("unexpected match")
	}
}
