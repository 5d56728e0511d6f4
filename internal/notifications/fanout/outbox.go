package fanout

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/angelmondragon/studyhub-backend/pkg/enums"
	"github.com/angelmondragon/studyhub-backend/pkg/outbox"
	"github.com/angelmondragon/studyhub-backend/pkg/outbox/registry"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// OutboxPublisher queues events in the SQL outbox instead of calling Pub/Sub.
// cmd/outbox-publisher relays them to the fan-out topic.
type OutboxPublisher struct {
	db     txRunner
	outbox *outbox.Service
}

func NewOutboxPublisher(db txRunner, svc *outbox.Service) (*OutboxPublisher, error) {
	if db == nil {
		return nil, errors.New("database required")
	}
	if svc == nil {
		return nil, errors.New("outbox service required")
	}
	return &OutboxPublisher{db: db, outbox: svc}, nil
}

// Publish queues at most one fan-out row per notification.
func (p *OutboxPublisher) Publish(ctx context.Context, event Event) error {
	if strings.TrimSpace(event.NotificationID) == "" {
		return errors.New("notification id required")
	}
	return p.db.WithTx(ctx, func(tx *gorm.DB) error {
		_, err := p.outbox.EmitOnce(ctx, tx, outbox.Event{
			Type:          enums.EventNotificationFanout,
			AggregateType: enums.AggregateNotification,
			AggregateID:   event.NotificationID,
			Data:          event,
		})
		return err
	})
}

// OutboxDescriptor registers fan-out rows for relay to topic with the
// attributes the Consumer expects.
func OutboxDescriptor(topic string) registry.EventDescriptor {
	return registry.EventDescriptor{
		EventType:      enums.EventNotificationFanout,
		AggregateType:  enums.AggregateNotification,
		Topic:          topic,
		MessageType:    EventType,
		PayloadFactory: func() any { return &Event{} },
	}
}
