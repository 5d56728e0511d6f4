// Package dispatch creates notifications from client code. The backend
// broadcast endpoint is tried first; on any failure the document is written
// straight to the store, without the email fan-out.
package dispatch

import (
	"context"
	"fmt"
	"strings"

	"github.com/angelmondragon/studyhub-backend/internal/notifications"
	"github.com/angelmondragon/studyhub-backend/pkg/db/models"
	"github.com/angelmondragon/studyhub-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/studyhub-backend/pkg/errors"
	"github.com/angelmondragon/studyhub-backend/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/multierr"
)

// Outcome tells the caller which path produced the notification.
type Outcome string

const (
	// DispatchedWithEmail: the backend stored the notification and queued the
	// email fan-out.
	DispatchedWithEmail Outcome = "dispatched_with_email"
	// Dispatched: the backend stored the notification but queued no email,
	// either because none was requested or because the fan-out is disabled.
	Dispatched Outcome = "dispatched"
	// DispatchedLocalOnly: the backend failed and the document was written
	// directly. No email was sent.
	DispatchedLocalOnly Outcome = "dispatched_local_only"
	DispatchFailed      Outcome = "dispatch_failed"
)

// Request is a notification to create.
type Request struct {
	ID        string                 `json:"id,omitempty"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	Type      enums.NotificationType `json:"type"`
	Link      string                 `json:"link,omitempty"`
	SendEmail bool                   `json:"sendEmail"`
	Metadata  map[string]any         `json:"metadata,omitempty"`
}

// Result is returned instead of an error.
type Result struct {
	Success        bool
	Outcome        Outcome
	NotificationID string
	EmailQueued    bool
	Err            error
}

// Broadcast is the backend's answer to a broadcast request.
type Broadcast struct {
	NotificationID string
	EmailQueued    bool
}

// Broadcaster calls the backend broadcast endpoint.
type Broadcaster interface {
	Broadcast(ctx context.Context, req Request) (Broadcast, error)
}

// Store writes notification documents directly.
type Store interface {
	Create(ctx context.Context, n *models.Notification) error
}

type Dispatcher struct {
	backend Broadcaster
	store   Store
	logg    *logger.Logger
	newID   func() string
}

// New builds a Dispatcher. Either dependency may be nil; with both nil every
// call fails.
func New(backend Broadcaster, store Store, logg *logger.Logger) *Dispatcher {
	return &Dispatcher{backend: backend, store: store, logg: logg, newID: uuid.NewString}
}

// CreateNotification never panics and never returns an error; failures are
// reported in Result.
func (d *Dispatcher) CreateNotification(ctx context.Context, req Request) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = Result{Outcome: DispatchFailed, Err: fmt.Errorf("dispatch panicked: %v", r)}
		}
	}()

	req = normalize(req)
	if err := validate(req); err != nil {
		return Result{Outcome: DispatchFailed, Err: err}
	}
	if req.ID == "" {
		req.ID = d.newID()
	}

	var backendErr error
	if d.backend != nil {
		resp, err := d.backend.Broadcast(ctx, req)
		if err == nil {
			id := resp.NotificationID
			if id == "" {
				id = req.ID
			}
			outcome := Dispatched
			if resp.EmailQueued {
				outcome = DispatchedWithEmail
			}
			return Result{Success: true, Outcome: outcome, NotificationID: id, EmailQueued: resp.EmailQueued}
		}
		backendErr = err
		d.warn(ctx, req.ID, "notifications.dispatch.backend_failed", err)
	}

	if d.store == nil {
		return Result{Outcome: DispatchFailed, NotificationID: req.ID, Err: multierr.Append(backendErr, pkgerrors.New(pkgerrors.CodeDependency, "no notification store configured"))}
	}

	n := models.Notification{
		ID:       req.ID,
		Title:    req.Title,
		Message:  req.Message,
		Type:     req.Type,
		Metadata: req.Metadata,
		ReadBy:   []string{},
	}
	if req.Link != "" {
		link := req.Link
		n.Link = &link
	}
	if err := d.store.Create(ctx, &n); err != nil && !notifications.IsAlreadyExists(err) {
		d.warn(ctx, req.ID, "notifications.dispatch.fallback_failed", err)
		return Result{Outcome: DispatchFailed, NotificationID: req.ID, Err: multierr.Append(backendErr, err)}
	}
	return Result{Success: true, Outcome: DispatchedLocalOnly, NotificationID: n.ID}
}

func normalize(req Request) Request {
	req.ID = strings.TrimSpace(req.ID)
	req.Title = strings.TrimSpace(req.Title)
	req.Message = strings.TrimSpace(req.Message)
	req.Link = strings.TrimSpace(req.Link)
	req.Type = enums.NotificationType(strings.ToLower(strings.TrimSpace(string(req.Type))))
	return req
}

func validate(req Request) error {
	if req.Title == "" || req.Message == "" || req.Type == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "title, message and type are required")
	}
	if !req.Type.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid notification type")
	}
	return nil
}

func (d *Dispatcher) warn(ctx context.Context, id, msg string, err error) {
	if d.logg == nil {
		return
	}
	ctx = d.logg.WithFields(ctx, map[string]any{"notification_id": id, "error": err.Error()})
	d.logg.Warn(ctx, msg)
}
