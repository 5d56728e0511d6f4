package models

import (
	"time"

	"github.com/angelmondragon/studyhub-backend/pkg/enums"
)

// OutboxDLQ records outbox rows that will not be retried.
type OutboxDLQ struct {
	ID            string                     `gorm:"column:id;type:text;primaryKey"`
	EventID       string                     `gorm:"column:event_id;type:text;not null;index"`
	EventType     enums.OutboxEventType      `gorm:"column:event_type;type:text;not null"`
	AggregateType enums.OutboxAggregateType  `gorm:"column:aggregate_type;type:text;not null"`
	AggregateID   string                     `gorm:"column:aggregate_id;type:text;not null"`
	Payload       string                     `gorm:"column:payload_json;type:text;not null"`
	ErrorReason   enums.OutboxDLQErrorReason `gorm:"column:error_reason;type:text;not null"`
	ErrorMessage  *string                    `gorm:"column:error_message;type:text"`
	AttemptCount  int                        `gorm:"column:attempt_count;not null;default:0"`
	FailedAt      time.Time                  `gorm:"column:failed_at"`
	CreatedAt     time.Time                  `gorm:"column:created_at;autoCreateTime"`
}

func (OutboxDLQ) TableName() string { return "outbox_dlq" }
