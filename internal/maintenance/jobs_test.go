package maintenance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/studyhub-backend/pkg/db"
	"github.com/angelmondragon/studyhub-backend/pkg/db/models"
	"github.com/angelmondragon/studyhub-backend/pkg/enums"
	"github.com/angelmondragon/studyhub-backend/pkg/outbox"
)

func TestOutboxRetentionDeletesOnlyFinishedRows(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	client := db.NewFromGorm(conn)
	require.NoError(t, client.AutoMigrate())

	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	old := now.Add(-40 * 24 * time.Hour)
	recent := now.Add(-time.Hour)
	rows := []models.OutboxEvent{
		{ID: "published-old", AggregateID: "n-1", PublishedAt: &old, CreatedAt: old},
		{ID: "published-recent", AggregateID: "n-2", PublishedAt: &recent, CreatedAt: old},
		{ID: "terminal-old", AggregateID: "n-3", AttemptCount: 10, CreatedAt: old},
		{ID: "pending-old", AggregateID: "n-4", AttemptCount: 2, CreatedAt: old},
	}
	for _, row := range rows {
		row.EventType = enums.EventNotificationFanout
		row.AggregateType = enums.AggregateNotification
		row.Payload = "{}"
		require.NoError(t, conn.Create(&row).Error)
	}

	job, err := NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger:     testLogger(),
		DB:         client,
		Repository: outbox.NewRepository(conn),
	})
	require.NoError(t, err)
	job.(*outboxRetentionJob).now = func() time.Time { return now }

	require.NoError(t, job.Run(context.Background()))

	var left []string
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Order("id").Pluck("id", &left).Error)
	require.Equal(t, []string{"pending-old", "published-recent"}, left)
}

type fakeRetentionRepo struct{ err error }

func (f fakeRetentionRepo) DeletePublishedBefore(context.Context, *gorm.DB, time.Time, int) (int64, error) {
	return 0, f.err
}

type passthroughTx struct{}

func (passthroughTx) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error { return fn(nil) }

func TestOutboxRetentionPropagatesErrors(t *testing.T) {
	job, err := NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger:     testLogger(),
		DB:         passthroughTx{},
		Repository: fakeRetentionRepo{err: errors.New("boom")},
	})
	require.NoError(t, err)
	require.Error(t, job.Run(context.Background()))
}

type fakeTokens struct {
	calls int
	err   error
}

func (f *fakeTokens) Tokens(context.Context) ([]string, error) {
	f.calls++
	return []string{"a", "b"}, f.err
}

func TestPushTokenPruneListsRegistry(t *testing.T) {
	tokens := &fakeTokens{}
	job, err := NewPushTokenPruneJob(testLogger(), tokens)
	require.NoError(t, err)
	require.NoError(t, job.Run(context.Background()))
	require.Equal(t, 1, tokens.calls)

	tokens.err = errors.New("redis down")
	require.Error(t, job.Run(context.Background()))

	_, err = NewPushTokenPruneJob(testLogger(), nil)
	require.Error(t, err)
}
