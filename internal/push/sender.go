package push

import (
	"context"
	"strings"

	"firebase.google.com/go/messaging"
	"github.com/angelmondragon/studyhub-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/studyhub-backend/pkg/errors"
	"github.com/angelmondragon/studyhub-backend/pkg/logger"
	"github.com/angelmondragon/studyhub-backend/pkg/metrics"
)

// Cloud Messaging accepts at most 500 tokens per multicast.
const maxMulticastTokens = 500

type multicaster interface {
	SendMulticast(ctx context.Context, msg *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

type tokenRegistry interface {
	Tokens(ctx context.Context) ([]string, error)
	Remove(ctx context.Context, tokens ...string) error
}

// BroadcastResult summarizes one broadcast.
type BroadcastResult struct {
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
	Pruned int `json:"pruned"`
}

// SenderParams wires a Sender.
type SenderParams struct {
	Messaging multicaster
	Registry  tokenRegistry
	BatchSize int
	IconURL   string
	Logger    *logger.Logger
	Metrics   *metrics.DomainMetrics
}

// Sender pushes notifications to every registered device.
type Sender struct {
	fcm       multicaster
	registry  tokenRegistry
	batchSize int
	iconURL   string
	logg      *logger.Logger
	metrics   *metrics.DomainMetrics

	isUnregistered func(error) bool
}

func NewSender(p SenderParams) (*Sender, error) {
	if p.Messaging == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "messaging client required")
	}
	if p.Registry == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "token registry required")
	}
	size := p.BatchSize
	if size <= 0 || size > maxMulticastTokens {
		size = maxMulticastTokens
	}
	return &Sender{
		fcm:       p.Messaging,
		registry:  p.Registry,
		batchSize: size,
		iconURL:   p.IconURL,
		logg:      p.Logger,
		metrics:   p.Metrics,

		isUnregistered: messaging.IsRegistrationTokenNotRegistered,
	}, nil
}

// Broadcast sends n to all registered tokens. Tokens that Cloud Messaging
// reports as unregistered are removed from the registry.
func (s *Sender) Broadcast(ctx context.Context, n models.Notification) (BroadcastResult, error) {
	var result BroadcastResult

	tokens, err := s.registry.Tokens(ctx)
	if err != nil {
		return result, err
	}
	if len(tokens) == 0 {
		return result, nil
	}

	var (
		stale       []string
		batches     int
		failedCalls int
		lastErr     error
	)
	for start := 0; start < len(tokens); start += s.batchSize {
		end := min(start+s.batchSize, len(tokens))
		batch := tokens[start:end]
		batches++

		resp, err := s.fcm.SendMulticast(ctx, s.message(n, batch))
		if err != nil {
			result.Failed += len(batch)
			failedCalls++
			lastErr = err
			s.warn(ctx, "push batch failed", err)
			continue
		}

		result.Sent += resp.SuccessCount
		result.Failed += resp.FailureCount
		for i, r := range resp.Responses {
			if r == nil || r.Success || i >= len(batch) {
				continue
			}
			if s.isUnregistered(r.Error) {
				stale = append(stale, batch[i])
			}
		}
	}

	s.metrics.PushResult("success", result.Sent)
	s.metrics.PushResult("failure", result.Failed)

	if failedCalls == batches {
		return result, pkgerrors.Wrap(pkgerrors.CodeUpstream, lastErr, "push delivery failed")
	}

	if len(stale) > 0 {
		if err := s.registry.Remove(ctx, stale...); err != nil {
			s.warn(ctx, "pruning stale tokens failed", err)
		} else {
			result.Pruned = len(stale)
			s.metrics.PushResult("pruned", len(stale))
		}
	}
	return result, nil
}

func (s *Sender) message(n models.Notification, tokens []string) *messaging.MulticastMessage {
	data := map[string]string{
		"notificationId": n.ID,
		"type":           string(n.Type),
	}
	if n.Link != nil && strings.TrimSpace(*n.Link) != "" {
		data["link"] = *n.Link
	}

	msg := &messaging.MulticastMessage{
		Tokens: tokens,
		Data:   data,
		Notification: &messaging.Notification{
			Title: n.Title,
			Body:  n.Message,
		},
	}
	if s.iconURL != "" {
		msg.Webpush = &messaging.WebpushConfig{
			Notification: &messaging.WebpushNotification{Icon: s.iconURL},
		}
	}
	return msg
}

func (s *Sender) warn(ctx context.Context, msg string, err error) {
	if s.logg == nil {
		return
	}
	s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), msg)
}
