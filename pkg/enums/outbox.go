package enums

import "slices"

// OutboxAggregateType names the entity an outbox row belongs to.
type OutboxAggregateType string

// OutboxEventType names the event stored in an outbox row.
type OutboxEventType string

// OutboxDLQErrorReason records why the publisher gave up on a row.
type OutboxDLQErrorReason string

const (
	AggregateNotification OutboxAggregateType = "notification"

	// EventNotificationFanout asks the email worker to mail a broadcast to every user.
	EventNotificationFanout OutboxEventType = "notification_fanout"

	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)

var (
	aggregateTypes  = []OutboxAggregateType{AggregateNotification}
	outboxEvents    = []OutboxEventType{EventNotificationFanout}
	dlqErrorReasons = []OutboxDLQErrorReason{OutboxDLQReasonMaxAttempts, OutboxDLQReasonNonRetryable}
)

func (a OutboxAggregateType) IsValid() bool  { return slices.Contains(aggregateTypes, a) }
func (e OutboxEventType) IsValid() bool      { return slices.Contains(outboxEvents, e) }
func (r OutboxDLQErrorReason) IsValid() bool { return slices.Contains(dlqErrorReasons, r) }

func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	return parseOne("aggregate type", value, aggregateTypes)
}

func ParseOutboxEventType(value string) (OutboxEventType, error) {
	return parseOne("event type", value, outboxEvents)
}
