package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/angelmondragon/studyhub-backend/api/responses"
	"github.com/angelmondragon/studyhub-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/studyhub-backend/pkg/errors"
	"github.com/angelmondragon/studyhub-backend/pkg/logger"
)

const (
	streamWriteWait  = 10 * time.Second
	streamPongWait   = 60 * time.Second
	streamPingPeriod = (streamPongWait * 9) / 10
)

// Subscriber is satisfied by notifications.Hub.
type Subscriber interface {
	Subscribe() (<-chan models.Notification, func())
}

type streamFrame struct {
	Type         string               `json:"type"`
	Notification *models.Notification `json:"notification,omitempty"`
}

// NotificationStream upgrades to a WebSocket and forwards every new
// notification as {"type":"notification","notification":{...}}. Frames are
// at-least-once; clients de-duplicate by id.
func NotificationStream(hub Subscriber, allowedOrigins []string, logg *logger.Logger) http.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if hub == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeDependency, "live notifications unavailable"))
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade has already written the HTTP error.
			if logg != nil {
				logg.Warn(logg.WithField(r.Context(), "error", err.Error()), "notifications.stream.upgrade_failed")
			}
			return
		}
		defer conn.Close()

		events, cancel := hub.Subscribe()
		defer cancel()

		ctx, stop := context.WithCancel(r.Context())
		defer stop()
		go readPump(conn, stop)

		if logg != nil {
			logg.Info(ctx, "notifications.stream.opened")
			defer logg.Info(ctx, "notifications.stream.closed")
		}

		if err := writeFrame(conn, streamFrame{Type: "ready"}); err != nil {
			return
		}

		ticker := time.NewTicker(streamPingPeriod)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case n, ok := <-events:
				if !ok {
					_ = conn.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
						time.Now().Add(streamWriteWait))
					return
				}
				if err := writeFrame(conn, streamFrame{Type: "notification", Notification: &n}); err != nil {
					return
				}
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteWait)); err != nil {
					return
				}
			}
		}
	}
}

// readPump drains client frames so pongs and close frames are processed, and
// cancels the stream once the peer goes away.
func readPump(conn *websocket.Conn, stop context.CancelFunc) {
	defer stop()
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(streamPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(streamPongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func writeFrame(conn *websocket.Conn, frame streamFrame) error {
	if err := conn.SetWriteDeadline(time.Now().Add(streamWriteWait)); err != nil {
		return err
	}
	return conn.WriteJSON(frame)
}

func originChecker(allowed []string) func(*http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if _, ok := set["*"]; ok {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}
