package fanout

import (
	"context"
	"encoding/json"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/studyhub-backend/pkg/db"
	"github.com/angelmondragon/studyhub-backend/pkg/db/models"
	"github.com/angelmondragon/studyhub-backend/pkg/enums"
	"github.com/angelmondragon/studyhub-backend/pkg/logger"
	"github.com/angelmondragon/studyhub-backend/pkg/outbox"
	"github.com/angelmondragon/studyhub-backend/pkg/outbox/registry"
)

func newOutboxDB(t *testing.T) *db.Client {
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

func TestOutboxPublisherQueuesOncePerNotification(t *testing.T) {
	client := newOutboxDB(t)
	logg := logger.New(logger.Options{ServiceName: "fanout-test", Output: io.Discard})
	pub, err := NewOutboxPublisher(client, outbox.NewService(outbox.NewRepository(client.DB()), logg))
	require.NoError(t, err)

	event := Event{NotificationID: "n-1", Title: "Exam moved", Message: "Room 4", Type: enums.NotificationTypeSystem}
	require.NoError(t, pub.Publish(context.Background(), event))
	require.NoError(t, pub.Publish(context.Background(), event))

	var rows []models.OutboxEvent
	require.NoError(t, client.DB().Find(&rows).Error)
	require.Len(t, rows, 1)
	require.Equal(t, enums.EventNotificationFanout, rows[0].EventType)
	require.Equal(t, "n-1", rows[0].AggregateID)
	require.Nil(t, rows[0].PublishedAt)

	reg, err := registry.NewEventRegistry(OutboxDescriptor("fanout-topic"))
	require.NoError(t, err)
	resolved, err := reg.Resolve(rows[0])
	require.NoError(t, err)
	require.Equal(t, EventType, resolved.Descriptor.MessageType)

	var decoded Event
	require.NoError(t, json.Unmarshal(resolved.Envelope.Data, &decoded))
	require.Equal(t, event, decoded)
}

func TestOutboxPublisherRejectsMissingID(t *testing.T) {
	client := newOutboxDB(t)
	pub, err := NewOutboxPublisher(client, outbox.NewService(outbox.NewRepository(client.DB()), nil))
	require.NoError(t, err)

	require.Error(t, pub.Publish(context.Background(), Event{Title: "x"}))
}
