package notifications

import (
	"context"
	"strings"

	"github.com/angelmondragon/studyhub-backend/internal/notifications/fanout"
	"github.com/angelmondragon/studyhub-backend/internal/push"
	"github.com/angelmondragon/studyhub-backend/pkg/db/models"
	"github.com/angelmondragon/studyhub-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/studyhub-backend/pkg/errors"
	"github.com/angelmondragon/studyhub-backend/pkg/logger"
	"github.com/angelmondragon/studyhub-backend/pkg/metrics"
	"github.com/angelmondragon/studyhub-backend/pkg/pagination"
)

// Service defines notification broadcast and read operations.
type Service interface {
	Send(ctx context.Context, input SendInput) (*SendResult, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
	MarkRead(ctx context.Context, notificationID, userID string) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
}

// Broadcaster delivers a stored notification to registered devices.
type Broadcaster interface {
	Broadcast(ctx context.Context, n models.Notification) (push.BroadcastResult, error)
}

// SendInput is a broadcast request. ID is optional; clients that may retry
// through another path supply their own so the document is written once.
type SendInput struct {
	ID        string
	Title     string
	Message   string
	Type      string
	Link      string
	Metadata  map[string]any
	SendEmail bool
}

// SendResult reports what happened after the document was written.
type SendResult struct {
	Notification  models.Notification `json:"notification"`
	EmailQueued   bool                `json:"emailQueued"`
	PushDelivered int                 `json:"pushDelivered"`
}

// ListParams configures pagination for notifications. UnreadFor keeps only
// notifications that user has not read.
type ListParams struct {
	Limit     int
	Cursor    string
	UnreadFor string
}

// ListResult wraps returned notifications and the cursor for the next page.
type ListResult struct {
	Items  []models.Notification `json:"items"`
	Cursor string                `json:"cursor"`
}

// ServiceParams wires a Service. Only Repo is required.
type ServiceParams struct {
	Repo      Repository
	Publisher fanout.Publisher
	Push      Broadcaster
	Hub       *Hub
	Logger    *logger.Logger
	Metrics   *metrics.DomainMetrics
}

type service struct {
	repo      Repository
	publisher fanout.Publisher
	push      Broadcaster
	hub       *Hub
	logg      *logger.Logger
	metrics   *metrics.DomainMetrics
}

// NewService wires notifications dependencies.
func NewService(p ServiceParams) (Service, error) {
	if p.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifications repository required")
	}
	return &service{
		repo:      p.Repo,
		publisher: p.Publisher,
		push:      p.Push,
		hub:       p.Hub,
		logg:      p.Logger,
		metrics:   p.Metrics,
	}, nil
}

// Send writes the notification document, then best-effort queues the email
// fan-out, pushes to devices and notifies live subscribers. Only the document
// write can fail the call.
func (s *service) Send(ctx context.Context, input SendInput) (*SendResult, error) {
	n, err := input.notification()
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, &n); err != nil {
		if IsAlreadyExists(err) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "notification already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create notification")
	}
	ctx = s.withField(ctx, "notification_id", n.ID)

	result := &SendResult{Notification: n}

	email := "skipped"
	if input.SendEmail {
		email = "failed"
		if s.publisher == nil {
			s.warn(ctx, "notifications.email.unavailable", nil)
		} else if err := s.publisher.Publish(ctx, fanout.EventFromNotification(n)); err != nil {
			s.warn(ctx, "notifications.email.publish_failed", err)
		} else {
			email = "queued"
			result.EmailQueued = true
		}
	}
	s.metrics.NotificationSent(email)

	if s.push != nil {
		delivered, err := s.push.Broadcast(ctx, n)
		if err != nil {
			s.warn(ctx, "notifications.push.failed", err)
		}
		result.PushDelivered = delivered.Sent
	}

	if s.hub != nil {
		s.hub.Publish(ctx, n)
	}
	return result, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	query := listParams{Limit: params.Limit}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, next, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list notifications")
	}

	items := rows
	if params.UnreadFor != "" {
		items = make([]models.Notification, 0, len(rows))
		for _, n := range rows {
			if !n.ReadByUser(params.UnreadFor) {
				items = append(items, n)
			}
		}
	}

	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}
	return &ListResult{Items: items, Cursor: cursor}, nil
}

func (s *service) MarkRead(ctx context.Context, notificationID, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if strings.TrimSpace(notificationID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "notification id required")
	}

	result, err := s.repo.MarkRead(ctx, notificationID, userID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notification read")
	}
	if !result.Found {
		return pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
	}
	return nil
}

func (s *service) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	if strings.TrimSpace(userID) == "" {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}

	count, err := s.repo.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notifications read")
	}
	return count, nil
}

func (in SendInput) notification() (models.Notification, error) {
	title := strings.TrimSpace(in.Title)
	message := strings.TrimSpace(in.Message)
	rawType := strings.TrimSpace(in.Type)

	var missing []string
	if title == "" {
		missing = append(missing, "title")
	}
	if message == "" {
		missing = append(missing, "message")
	}
	if rawType == "" {
		missing = append(missing, "type")
	}
	if len(missing) > 0 {
		return models.Notification{}, pkgerrors.New(pkgerrors.CodeValidation, "title, message and type are required").
			WithDetails(map[string]any{"missing": missing})
	}

	kind, err := enums.ParseNotificationType(strings.ToLower(rawType))
	if err != nil {
		return models.Notification{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid notification type").
			WithDetails(map[string]any{"type": rawType})
	}

	n := models.Notification{
		ID:       strings.TrimSpace(in.ID),
		Title:    title,
		Message:  message,
		Type:     kind,
		Metadata: in.Metadata,
		ReadBy:   []string{},
	}
	if link := strings.TrimSpace(in.Link); link != "" {
		n.Link = &link
	}
	return n, nil
}

func (s *service) withField(ctx context.Context, key string, value any) context.Context {
	if s.logg == nil {
		return ctx
	}
	return s.logg.WithField(ctx, key, value)
}

func (s *service) warn(ctx context.Context, msg string, err error) {
	if s.logg == nil {
		return
	}
	if err != nil {
		ctx = s.logg.WithField(ctx, "error", err.Error())
	}
	s.logg.Warn(ctx, msg)
}
