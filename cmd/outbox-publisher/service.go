package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"gorm.io/gorm"

	"github.com/angelmondragon/studyhub-backend/pkg/config"
	"github.com/angelmondragon/studyhub-backend/pkg/db/models"
	"github.com/angelmondragon/studyhub-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/studyhub-backend/pkg/errors"
	"github.com/angelmondragon/studyhub-backend/pkg/logger"
	"github.com/angelmondragon/studyhub-backend/pkg/metrics"
	"github.com/angelmondragon/studyhub-backend/pkg/outbox/registry"
)

const (
	jobName = "outbox-publisher"

	defaultBatchSize   = 50
	defaultPoll        = 500 * time.Millisecond
	defaultMaxAttempts = 10
	publishTimeout     = 15 * time.Second
	maxBackoff         = 10 * time.Second
	jitterWindow       = 250 * time.Millisecond
)

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type pubSubClient interface {
	Ping(context.Context) error
	Publisher(name string) *gcppubsub.Publisher
}

type outboxRepository interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id string) error
	MarkFailedTx(tx *gorm.DB, id string, err error) error
	MarkTerminalTx(tx *gorm.DB, id string, err error, terminalAttempts int) error
}

type dlqRepository interface {
	InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error
}

type registryResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

type ServiceParams struct {
	Config           *config.Config
	Logger           *logger.Logger
	DB               dbClient
	PubSub           pubSubClient
	Repository       outboxRepository
	Registry         registryResolver
	DLQRepository    dlqRepository
	Jobs             *metrics.JobMetrics
	PublisherFactory func(topic string) publisher
}

// Service relays queued notification fan-out rows from outbox_events to
// Pub/Sub. Rows that cannot be delivered are copied to outbox_dlq.
type Service struct {
	logg        *logger.Logger
	db          dbClient
	pubsub      pubSubClient
	repo        outboxRepository
	registry    registryResolver
	dlq         dlqRepository
	jobs        *metrics.JobMetrics
	newPub      func(topic string) publisher
	publishers  map[string]publisher
	batchSize   int
	maxAttempts int
	poll        time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Config == nil:
		return nil, errors.New("config is required")
	case params.Logger == nil:
		return nil, errors.New("logger is required")
	case params.DB == nil:
		return nil, errors.New("database client is required")
	case params.PubSub == nil:
		return nil, errors.New("pubsub client is required")
	case params.Repository == nil:
		return nil, errors.New("outbox repository is required")
	case params.Registry == nil:
		return nil, errors.New("event registry is required")
	case params.DLQRepository == nil:
		return nil, errors.New("dlq repository is required")
	}

	cfg := params.Config.Outbox
	s := &Service{
		logg:        params.Logger,
		db:          params.DB,
		pubsub:      params.PubSub,
		repo:        params.Repository,
		registry:    params.Registry,
		dlq:         params.DLQRepository,
		jobs:        params.Jobs,
		newPub:      params.PublisherFactory,
		publishers:  map[string]publisher{},
		batchSize:   positiveOr(cfg.BatchSize, defaultBatchSize),
		maxAttempts: positiveOr(cfg.MaxAttempts, defaultMaxAttempts),
		poll:        time.Duration(cfg.PollIntervalMS) * time.Millisecond,
	}
	if s.poll <= 0 {
		s.poll = defaultPoll
	}
	if s.newPub == nil {
		s.newPub = func(topic string) publisher {
			if p := params.PubSub.Publisher(topic); p != nil {
				return gcpPublisher{p}
			}
			return nil
		}
	}
	return s, nil
}

// Run polls until ctx is canceled. A full batch is followed immediately by
// the next poll; an error backs off exponentially with jitter.
func (s *Service) Run(ctx context.Context) error {
	for name, ping := range map[string]func(context.Context) error{"database": s.db.Ping, "pubsub": s.pubsub.Ping} {
		if err := ping(ctx); err != nil {
			s.logg.Error(ctx, name+" ping failed", err)
			return fmt.Errorf("%s ping failed: %w", name, err)
		}
	}

	backoff := s.poll
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		busy, err := s.processBatch(ctx)
		wait := s.poll
		switch {
		case err != nil:
			s.logg.Error(ctx, "outbox batch failed", err)
			backoff = nextBackoff(backoff, s.poll, maxBackoff)
			wait = backoff
		case busy:
			backoff = s.poll
			continue
		default:
			backoff = s.poll
		}
		if err := sleep(ctx, wait+rand.N(jitterWindow)); err != nil {
			return err
		}
	}
}

// pending is one row of the current batch on its way to Pub/Sub.
type pending struct {
	row      models.OutboxEvent
	resolved *registry.ResolvedEvent
	result   publishResult
	err      error
}

// processBatch locks a batch, publishes every resolvable row, then settles
// each row once its publish result is known. It reports whether any rows
// were found.
func (s *Service) processBatch(ctx context.Context) (bool, error) {
	found := false
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := s.repo.FetchUnpublishedForPublish(tx, s.batchSize, s.maxAttempts)
		if err != nil || len(rows) == 0 {
			return err
		}
		found = true

		publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
		defer cancel()
		start := time.Now()

		batch := make([]pending, len(rows))
		for i, row := range rows {
			batch[i] = s.send(publishCtx, row)
		}
		for i := range batch {
			if p := &batch[i]; p.result != nil {
				_, p.err = p.result.Get(publishCtx)
			}
		}
		s.jobs.ObserveDuration(jobName, time.Since(start))

		for _, p := range batch {
			if err := s.settle(ctx, tx, p); err != nil {
				return err
			}
		}
		return nil
	})
	return found, err
}

func (s *Service) send(ctx context.Context, row models.OutboxEvent) pending {
	p := pending{row: row}
	p.resolved, p.err = s.registry.Resolve(row)
	if p.err != nil {
		return p
	}
	topic := p.resolved.Descriptor.Topic
	pub := s.publisherFor(topic)
	if pub == nil {
		p.err = registry.NewNonRetryableError(fmt.Errorf("no publisher for topic %s", topic))
		return p
	}
	// Consumers receive the bare event data, the same bytes the direct
	// Pub/Sub path publishes.
	p.result = pub.Publish(ctx, &gcppubsub.Message{
		Data: p.resolved.Envelope.Data,
		Attributes: map[string]string{
			"event_id":        p.resolved.Envelope.EventID,
			"event_type":      p.resolved.Descriptor.MessageType,
			"aggregate_type":  string(row.AggregateType),
			"aggregate_id":    row.AggregateID,
			"notification_id": row.AggregateID,
			"created_at":      row.CreatedAt.UTC().Format(time.RFC3339Nano),
		},
	})
	if p.result == nil {
		p.err = registry.NewNonRetryableError(fmt.Errorf("publisher for %s returned no result", topic))
	}
	return p
}

func (s *Service) settle(ctx context.Context, tx *gorm.DB, p pending) error {
	logCtx := s.logg.WithFields(ctx, s.fields(p))
	if p.err == nil {
		if err := s.repo.MarkPublishedTx(tx, p.row.ID); err != nil {
			return fmt.Errorf("mark published %s: %w", p.row.ID, err)
		}
		s.jobs.IncSuccess(jobName)
		s.logg.Info(logCtx, "outbox event published")
		return nil
	}

	s.jobs.IncFailure(jobName)
	var nonRetryable registry.NonRetryableError
	switch {
	case p.resolved == nil || errors.As(p.err, &nonRetryable) || !pkgerrors.Retryable(p.err):
		return s.deadLetter(logCtx, tx, p.row, enums.OutboxDLQReasonNonRetryable, p.err)
	case p.row.AttemptCount+1 >= s.maxAttempts:
		return s.deadLetter(logCtx, tx, p.row, enums.OutboxDLQReasonMaxAttempts,
			fmt.Errorf("gave up after %d attempts: %w", p.row.AttemptCount+1, p.err))
	}

	s.logg.Warn(s.logg.WithField(logCtx, "error", p.err.Error()), "outbox publish failed; will retry")
	if err := s.repo.MarkFailedTx(tx, p.row.ID, p.err); err != nil {
		return fmt.Errorf("mark failed %s: %w", p.row.ID, err)
	}
	return nil
}

func (s *Service) deadLetter(ctx context.Context, tx *gorm.DB, row models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error) error {
	s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
		"error":        cause.Error(),
		"error_reason": reason,
	}), "outbox event dead-lettered")

	msg := cause.Error()
	entry := models.OutboxDLQ{
		EventID:       row.ID,
		EventType:     row.EventType,
		AggregateType: row.AggregateType,
		AggregateID:   row.AggregateID,
		Payload:       row.Payload,
		ErrorReason:   reason,
		ErrorMessage:  &msg,
		AttemptCount:  row.AttemptCount,
		FailedAt:      time.Now().UTC(),
	}
	if err := s.dlq.InsertTx(tx, entry); err != nil {
		return fmt.Errorf("insert dlq %s: %w", row.ID, err)
	}
	if err := s.repo.MarkTerminalTx(tx, row.ID, cause, s.maxAttempts); err != nil {
		return fmt.Errorf("mark terminal %s: %w", row.ID, err)
	}
	return nil
}

func (s *Service) publisherFor(topic string) publisher {
	if pub, ok := s.publishers[topic]; ok {
		return pub
	}
	pub := s.newPub(topic)
	if pub != nil {
		s.publishers[topic] = pub
	}
	return pub
}

// Stop flushes every publisher opened by the service.
func (s *Service) Stop() {
	for _, pub := range s.publishers {
		if stopper, ok := pub.(interface{ Stop() }); ok {
			stopper.Stop()
		}
	}
}

func (s *Service) fields(p pending) map[string]any {
	f := map[string]any{
		"outbox_id":       p.row.ID,
		"notification_id": p.row.AggregateID,
		"event_type":      p.row.EventType,
		"attempt_count":   p.row.AttemptCount,
	}
	if p.resolved != nil {
		f["topic"] = p.resolved.Descriptor.Topic
		f["event_id"] = p.resolved.Envelope.EventID
	}
	return f
}

func positiveOr(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func nextBackoff(current, base, max time.Duration) time.Duration {
	if current <= 0 {
		current = base
	}
	return min(current*2, max)
}

// gcpPublisher adapts *pubsub.Publisher to the publisher interface.
type gcpPublisher struct {
	*gcppubsub.Publisher
}

func (p gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return p.Publisher.Publish(ctx, msg)
}
