// Package push keeps a browser/device push registration alive (Manager) and
// delivers broadcasts to every registered device through Cloud Messaging
// (Registry, Sender).
package push

import (
	"context"
	"errors"
	"time"
)

var (
	ErrPermissionDenied   = errors.New("notification permission was denied")
	ErrUnsupported        = errors.New("push notifications are not supported on this device")
	ErrNetworkUnavailable = errors.New("you appear to be offline")
)

// Permission mirrors the host's notification permission.
type Permission string

const (
	PermissionDefault Permission = "default"
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
)

// Platform is the hosting environment's notification capability.
type Platform interface {
	Supported() bool
	Online() bool
	Permission() Permission
	// RequestPermission prompts the user. It must be triggered by a user gesture.
	RequestPermission(ctx context.Context) (Permission, error)
}

// Message is a push message delivered while the app is in the foreground.
type Message struct {
	ID    string
	Title string
	Body  string
	Data  map[string]string
}

// Transport issues delivery tokens and delivers foreground messages.
type Transport interface {
	Token(ctx context.Context) (string, error)
	// OnMessage registers handler and returns a function that removes it.
	OnMessage(handler func(Message)) (unsubscribe func())
}

// Acknowledger surfaces transient UI feedback.
type Acknowledger interface {
	Toast(title, body string)
	Chime()
}

// TokenRegistrar persists the delivery token with the backend.
type TokenRegistrar interface {
	RegisterToken(ctx context.Context, token string) error
}

// HistoryEntry is one foreground message kept for display.
type HistoryEntry struct {
	ID         string
	Title      string
	Body       string
	Data       map[string]string
	ReceivedAt time.Time
}
