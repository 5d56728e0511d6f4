package models

import (
	"time"

	"github.com/angelmondragon/studyhub-backend/pkg/enums"
)

// OutboxEvent is an event queued in the same database as the notification it
// describes. The outbox publisher relays unpublished rows to Pub/Sub.
type OutboxEvent struct {
	ID            string                    `gorm:"column:id;type:text;primaryKey"`
	EventType     enums.OutboxEventType     `gorm:"column:event_type;type:text;not null;uniqueIndex:ux_outbox_events_event_aggregate"`
	AggregateType enums.OutboxAggregateType `gorm:"column:aggregate_type;type:text;not null"`
	AggregateID   string                    `gorm:"column:aggregate_id;type:text;not null;uniqueIndex:ux_outbox_events_event_aggregate"`
	Payload       string                    `gorm:"column:payload;type:text;not null"`
	CreatedAt     time.Time                 `gorm:"column:created_at;autoCreateTime"`
	PublishedAt   *time.Time                `gorm:"column:published_at"`
	AttemptCount  int                       `gorm:"column:attempt_count;not null;default:0"`
	LastError     *string                   `gorm:"column:last_error;type:text"`
}

func (OutboxEvent) TableName() string { return "outbox_events" }
