package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/studyhub-backend/api/middleware"
	"github.com/angelmondragon/studyhub-backend/api/responses"
	"github.com/angelmondragon/studyhub-backend/api/validators"
	"github.com/angelmondragon/studyhub-backend/internal/notifications"
	pkgerrors "github.com/angelmondragon/studyhub-backend/pkg/errors"
	"github.com/angelmondragon/studyhub-backend/pkg/logger"
)

type sendNotificationRequest struct {
	ID        string         `json:"id" validate:"omitempty,max=128"`
	Title     string         `json:"title" validate:"max=200"`
	Message   string         `json:"message" validate:"max=2000"`
	Type      string         `json:"type"`
	Link      string         `json:"link" validate:"max=2048"`
	SendEmail bool           `json:"sendEmail"`
	Metadata  map[string]any `json:"metadata"`
}

// SendNotification stores a notification and broadcasts it. Missing title,
// message or type yields 400.
func SendNotification(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body sendNotificationRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Send(r.Context(), notifications.SendInput{
			ID:        body.ID,
			Title:     body.Title,
			Message:   body.Message,
			Type:      body.Type,
			Link:      body.Link,
			Metadata:  body.Metadata,
			SendEmail: body.SendEmail,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// ListNotifications returns notifications newest first. unread=true keeps only
// the caller's unread ones.
func ListNotifications(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", 0, 0, 100)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params := notifications.ListParams{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		}

		if unread := strings.TrimSpace(r.URL.Query().Get("unread")); unread != "" {
			value, err := strconv.ParseBool(unread)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid unread value"))
				return
			}
			if value {
				params.UnreadFor = middleware.UserIDFromContext(r.Context())
			}
		}

		resp, err := svc.List(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, resp)
	}
}

func MarkNotificationRead(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(chi.URLParam(r, "notificationId"))
		if err := svc.MarkRead(r.Context(), id, middleware.UserIDFromContext(r.Context())); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"id": id})
	}
}

func MarkAllNotificationsRead(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		updated, err := svc.MarkAllRead(r.Context(), middleware.UserIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]int64{"updated": updated})
	}
}
