// Package outbox queues domain events in the SQL store so they commit with
// the rows they describe. cmd/outbox-publisher relays them to Pub/Sub.
package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/angelmondragon/studyhub-backend/pkg/db"
	"github.com/angelmondragon/studyhub-backend/pkg/db/models"
	"github.com/angelmondragon/studyhub-backend/pkg/enums"
	"github.com/angelmondragon/studyhub-backend/pkg/logger"
)

const EnvelopeVersion = 1

// Envelope is the JSON document stored in outbox_events.payload.
type Envelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Data       json.RawMessage `json:"data"`
}

// Event is a domain event to queue.
type Event struct {
	Type          enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	AggregateID   string
	Data          any
	OccurredAt    time.Time
}

type Service struct {
	repo *Repository
	logg *logger.Logger
}

func NewService(repo *Repository, logg *logger.Logger) *Service {
	return &Service{repo: repo, logg: logg}
}

// Emit inserts ev with tx and returns the generated event id.
func (s *Service) Emit(ctx context.Context, tx *gorm.DB, ev Event) (string, error) {
	if tx == nil {
		return "", errors.New("transaction required")
	}
	if ev.AggregateID == "" {
		return "", errors.New("aggregate id required")
	}
	data, err := json.Marshal(ev.Data)
	if err != nil {
		return "", err
	}
	env := Envelope{Version: EnvelopeVersion, EventID: uuid.NewString(), OccurredAt: ev.OccurredAt, Data: data}
	if env.OccurredAt.IsZero() {
		env.OccurredAt = time.Now().UTC()
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return "", err
	}

	err = s.repo.Insert(tx, models.OutboxEvent{
		ID:            env.EventID,
		EventType:     ev.Type,
		AggregateType: ev.AggregateType,
		AggregateID:   ev.AggregateID,
		Payload:       string(payload),
	})
	if err != nil {
		return "", err
	}
	if s.logg != nil {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"event_id":     env.EventID,
			"event_type":   ev.Type,
			"aggregate_id": ev.AggregateID,
		}), "outbox event queued")
	}
	return env.EventID, nil
}

// EmitOnce queues ev unless a row with the same type and aggregate exists.
// It reports whether a new row was written.
func (s *Service) EmitOnce(ctx context.Context, tx *gorm.DB, ev Event) (bool, error) {
	exists, err := s.repo.ExistsTx(tx, ev.Type, ev.AggregateID)
	if err != nil || exists {
		return false, err
	}
	if _, err := s.Emit(ctx, tx, ev); err != nil {
		// A concurrent writer won the unique index.
		if dbpkg.IsUniqueViolation(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// DecodeEnvelope parses a stored payload.
func DecodeEnvelope(payload string) (Envelope, error) {
	var env Envelope
	err := json.Unmarshal([]byte(payload), &env)
	return env, err
}
