package outbox_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/studyhub-backend/pkg/db"
	"github.com/angelmondragon/studyhub-backend/pkg/db/models"
	"github.com/angelmondragon/studyhub-backend/pkg/enums"
	"github.com/angelmondragon/studyhub-backend/pkg/outbox"
)

func newClient(t *testing.T) *db.Client {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	client := db.NewFromGorm(conn)
	require.NoError(t, client.AutoMigrate())
	return client
}

func emit(t *testing.T, client *db.Client, svc *outbox.Service, aggregateID string) {
	t.Helper()
	require.NoError(t, client.WithTx(context.Background(), func(tx *gorm.DB) error {
		_, err := svc.EmitOnce(context.Background(), tx, outbox.Event{
			Type:          enums.EventNotificationFanout,
			AggregateType: enums.AggregateNotification,
			AggregateID:   aggregateID,
			Data:          map[string]string{"notificationId": aggregateID},
		})
		return err
	}))
}

func TestRepositoryPublishLifecycle(t *testing.T) {
	client := newClient(t)
	repo := outbox.NewRepository(client.DB())
	svc := outbox.NewService(repo, nil)

	emit(t, client, svc, "n-1")
	emit(t, client, svc, "n-2")
	emit(t, client, svc, "n-1")

	rows, err := repo.FetchUnpublishedForPublish(client.DB(), 10, 3)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Contains(t, rows[0].Payload, `"version":1`)

	require.NoError(t, repo.MarkPublishedTx(client.DB(), rows[0].ID))
	require.NoError(t, repo.MarkFailedTx(client.DB(), rows[1].ID, errors.New("unavailable")))

	rows, err = repo.FetchUnpublishedForPublish(client.DB(), 10, 3)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, 1, rows[0].AttemptCount)
	require.Equal(t, "unavailable", *rows[0].LastError)

	require.NoError(t, repo.MarkTerminalTx(client.DB(), rows[0].ID, errors.New("gave up"), 3))
	rows, err = repo.FetchUnpublishedForPublish(client.DB(), 10, 3)
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestEmitRequiresTransactionAndAggregate(t *testing.T) {
	client := newClient(t)
	svc := outbox.NewService(outbox.NewRepository(client.DB()), nil)

	_, err := svc.Emit(context.Background(), nil, outbox.Event{AggregateID: "n-1"})
	require.Error(t, err)
	_, err = svc.Emit(context.Background(), client.DB(), outbox.Event{})
	require.Error(t, err)

	id, err := svc.Emit(context.Background(), client.DB(), outbox.Event{
		Type:          enums.EventNotificationFanout,
		AggregateType: enums.AggregateNotification,
		AggregateID:   "n-9",
		Data:          map[string]string{"notificationId": "n-9"},
	})
	require.NoError(t, err)
	var row models.OutboxEvent
	require.NoError(t, client.DB().First(&row, "id = ?", id).Error)
	env, err := outbox.DecodeEnvelope(row.Payload)
	require.NoError(t, err)
	require.Equal(t, id, env.EventID)
	require.Equal(t, outbox.EnvelopeVersion, env.Version)
	require.JSONEq(t, `{"notificationId":"n-9"}`, string(env.Data))
}

func TestDLQRepositoryTruncatesAndFinds(t *testing.T) {
	client := newClient(t)
	dlq := outbox.NewDLQRepository(client.DB())

	long := strings.Repeat("x", 2000)
	require.NoError(t, dlq.InsertTx(client.DB(), models.OutboxDLQ{
		EventID:       "evt-1",
		EventType:     enums.EventNotificationFanout,
		AggregateType: enums.AggregateNotification,
		AggregateID:   "n-1",
		Payload:       "{}",
		ErrorReason:   enums.OutboxDLQReasonMaxAttempts,
		ErrorMessage:  &long,
	}))

	found, err := dlq.FindByEventID(context.Background(), "evt-1")
	require.NoError(t, err)
	require.NotNil(t, found)
	require.Len(t, *found.ErrorMessage, 1024)

	missing, err := dlq.FindByEventID(context.Background(), "evt-2")
	require.NoError(t, err)
	require.Nil(t, missing)

	rows, err := dlq.List(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestDLQRequeue(t *testing.T) {
	client := newClient(t)
	ctx := context.Background()
	repo := outbox.NewRepository(client.DB())
	dlq := outbox.NewDLQRepository(client.DB())
	emit(t, client, outbox.NewService(repo, nil), "n-1")

	rows, err := repo.FetchUnpublishedForPublish(client.DB(), 10, 3)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	stuck := rows[0]
	require.NoError(t, repo.MarkTerminalTx(client.DB(), stuck.ID, errors.New("topic missing"), 3))
	require.NoError(t, dlq.InsertTx(client.DB(), models.OutboxDLQ{
		EventID:       stuck.ID,
		EventType:     stuck.EventType,
		AggregateType: stuck.AggregateType,
		AggregateID:   stuck.AggregateID,
		Payload:       stuck.Payload,
		ErrorReason:   enums.OutboxDLQReasonNonRetryable,
	}))

	require.NoError(t, dlq.Requeue(ctx, stuck.ID))
	rows, err = repo.FetchUnpublishedForPublish(client.DB(), 10, 3)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Zero(t, rows[0].AttemptCount)
	require.Nil(t, rows[0].LastError)

	left, err := dlq.List(ctx, 0)
	require.NoError(t, err)
	require.Empty(t, left)

	require.ErrorIs(t, dlq.Requeue(ctx, stuck.ID), outbox.ErrDLQEntryNotFound)
}

func TestDLQRequeueRecreatesPrunedRow(t *testing.T) {
	client := newClient(t)
	ctx := context.Background()
	dlq := outbox.NewDLQRepository(client.DB())
	require.NoError(t, dlq.InsertTx(client.DB(), models.OutboxDLQ{
		EventID:       "evt-gone",
		EventType:     enums.EventNotificationFanout,
		AggregateType: enums.AggregateNotification,
		AggregateID:   "n-7",
		Payload:       `{"version":1,"eventId":"evt-gone","data":{"notificationId":"n-7"}}`,
		ErrorReason:   enums.OutboxDLQReasonMaxAttempts,
	}))

	require.NoError(t, dlq.Requeue(ctx, "evt-gone"))

	var row models.OutboxEvent
	require.NoError(t, client.DB().First(&row, "id = ?", "evt-gone").Error)
	require.Equal(t, "n-7", row.AggregateID)
	require.Nil(t, row.PublishedAt)
}
