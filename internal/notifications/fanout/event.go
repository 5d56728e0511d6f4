// Package fanout carries notification broadcasts to email over Pub/Sub.
package fanout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/angelmondragon/studyhub-backend/pkg/db/models"
	"github.com/angelmondragon/studyhub-backend/pkg/enums"
)

// EventType is the pubsub attribute value identifying fan-out events.
const EventType = "notification.broadcast"

// Event is the JSON payload published for each broadcast that asked for email.
type Event struct {
	NotificationID string                 `json:"notificationId"`
	Title          string                 `json:"title"`
	Message        string                 `json:"message"`
	Type           enums.NotificationType `json:"type"`
	Link           string                 `json:"link,omitempty"`
}

// EventFromNotification builds the fan-out payload for n.
func EventFromNotification(n models.Notification) Event {
	e := Event{
		NotificationID: n.ID,
		Title:          n.Title,
		Message:        n.Message,
		Type:           n.Type,
	}
	if n.Link != nil {
		e.Link = *n.Link
	}
	return e
}

// Publisher hands events to the fan-out transport.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// PubSubPublisher publishes events on the fan-out topic.
type PubSubPublisher struct {
	topic *pubsub.Publisher
}

func NewPubSubPublisher(topic *pubsub.Publisher) (*PubSubPublisher, error) {
	if topic == nil {
		return nil, errors.New("fanout topic publisher required")
	}
	return &PubSubPublisher{topic: topic}, nil
}

// Publish blocks until the server acknowledges the message.
func (p *PubSubPublisher) Publish(ctx context.Context, event Event) error {
	if strings.TrimSpace(event.NotificationID) == "" {
		return errors.New("notification id required")
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode fanout event: %w", err)
	}
	res := p.topic.Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"event_type":      EventType,
			"notification_id": event.NotificationID,
		},
	})
	if _, err := res.Get(ctx); err != nil {
		return fmt.Errorf("publish fanout event: %w", err)
	}
	return nil
}

// Stop flushes pending messages.
func (p *PubSubPublisher) Stop() {
	if p != nil && p.topic != nil {
		p.topic.Stop()
	}
}
