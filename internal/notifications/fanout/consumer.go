package fanout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/angelmondragon/studyhub-backend/pkg/email"
	"github.com/angelmondragon/studyhub-backend/pkg/logger"
	"github.com/angelmondragon/studyhub-backend/pkg/metrics"
	"go.uber.org/multierr"
)

const (
	consumerName = "email-fanout"
	dedupeTTL    = 7 * 24 * time.Hour
)

// Deduper marks an event as processed exactly once.
type Deduper interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	DedupeKey(consumer, id string) string
}

// ConsumerParams wires the email fan-out consumer.
type ConsumerParams struct {
	Subscription *pubsub.Subscriber
	Dedupe       Deduper
	Directory    Directory
	Sender       email.Sender
	PublicURL    string
	Logger       *logger.Logger
	Jobs         *metrics.JobMetrics
	Domain       *metrics.DomainMetrics
}

// Consumer turns fan-out events into one email per recipient.
type Consumer struct {
	subscription *pubsub.Subscriber
	dedupe       Deduper
	directory    Directory
	sender       email.Sender
	publicURL    string
	logg         *logger.Logger
	jobs         *metrics.JobMetrics
	domain       *metrics.DomainMetrics
}

func NewConsumer(p ConsumerParams) (*Consumer, error) {
	if p.Dedupe == nil {
		return nil, fmt.Errorf("dedupe store required")
	}
	if p.Directory == nil {
		return nil, fmt.Errorf("recipient directory required")
	}
	if p.Sender == nil {
		return nil, fmt.Errorf("email sender required")
	}
	if p.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		subscription: p.Subscription,
		dedupe:       p.Dedupe,
		directory:    p.Directory,
		sender:       p.Sender,
		publicURL:    p.PublicURL,
		logg:         p.Logger,
		jobs:         p.Jobs,
		domain:       p.Domain,
	}, nil
}

// Run receives until ctx is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	if c.subscription == nil {
		return errors.New("fanout subscription required")
	}
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		start := time.Now()
		ctx = c.logg.WithFields(ctx, map[string]any{"message_id": msg.ID, "consumer": consumerName})
		result := c.process(ctx, msg.Attributes["event_type"], msg.Data)
		c.jobs.ObserveDuration(consumerName, time.Since(start))
		if result.nack {
			c.jobs.IncFailure(consumerName)
			msg.Nack()
			return
		}
		c.jobs.IncSuccess(consumerName)
		msg.Ack()
	})
}

type processResult struct {
	ack       bool
	nack      bool
	delivered int
	failed    int
}

func (c *Consumer) process(ctx context.Context, eventType string, data []byte) processResult {
	if eventType != "" && eventType != EventType {
		c.logg.Info(ctx, "skipping non-fanout event")
		return processResult{ack: true}
	}

	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		c.logg.Error(ctx, "failed to decode fanout event", err)
		return processResult{ack: true}
	}
	if strings.TrimSpace(event.NotificationID) == "" {
		c.logg.Warn(ctx, "fanout event missing notification id")
		return processResult{ack: true}
	}
	ctx = c.logg.WithField(ctx, "notification_id", event.NotificationID)

	key := c.dedupe.DedupeKey(consumerName, event.NotificationID)
	first, err := c.dedupe.SetNX(ctx, key, "1", dedupeTTL)
	if err != nil {
		c.logg.Error(ctx, "dedupe check failed", err)
		return processResult{nack: true}
	}
	if !first {
		c.logg.Info(ctx, "fanout event already processed")
		return processResult{ack: true}
	}

	recipients, err := c.directory.Recipients(ctx)
	if err != nil {
		c.logg.Error(ctx, "listing recipients failed", err)
		_ = c.dedupe.Del(ctx, key)
		return processResult{nack: true}
	}

	var (
		combined  error
		delivered int
	)
	for _, r := range recipients {
		msg, err := Render(event, r, c.publicURL)
		if err == nil {
			_, err = c.sender.Send(ctx, msg)
		}
		if err != nil {
			combined = multierr.Append(combined, err)
			c.domain.EmailResult("failed")
			continue
		}
		delivered++
		c.domain.EmailResult("sent")
	}

	failed := len(multierr.Errors(combined))
	ctx = c.logg.WithFields(ctx, map[string]any{
		"recipients": len(recipients),
		"delivered":  delivered,
		"failed":     failed,
	})
	if combined != nil {
		c.logg.Error(ctx, "some fanout emails failed", combined)
	} else {
		c.logg.Info(ctx, "fanout emails delivered")
	}

	return processResult{ack: true, delivered: delivered, failed: failed}
}
