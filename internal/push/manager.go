package push

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// State is the subscription lifecycle.
type State string

const (
	StateIdle       State = "idle"
	StateChecking   State = "checking"
	StateRequesting State = "requesting"
	StateActive     State = "active"
	StateError      State = "error"
)

const historyLimit = 20

// Snapshot is a read-only copy of the manager state.
type Snapshot struct {
	State             State
	Token             string
	Error             string
	Permission        Permission
	History           []HistoryEntry
	RegistrationError string
}

// ManagerParams wires a Manager.
type ManagerParams struct {
	Platform     Platform
	Transport    Transport
	Acknowledger Acknowledger
	Registrar    TokenRegistrar
	// Sink receives every foreground message after it is recorded, e.g. the inbox.
	Sink func(Message)
	Now  func() time.Time
}

// Manager obtains and refreshes the delivery token and listens for foreground
// messages. All transport errors end in StateError; none are returned from
// RefreshTokenIfNeeded.
type Manager struct {
	platform  Platform
	transport Transport
	ack       Acknowledger
	registrar TokenRegistrar
	sink      func(Message)
	now       func() time.Time

	mu                sync.Mutex
	mounted           bool
	state             State
	token             string
	errMsg            string
	registrationError string
	history           []HistoryEntry
	listening         bool
	unsubscribe       func()
	refreshing        bool
	cancelPending     context.CancelCauseFunc
}

func NewManager(p ManagerParams) *Manager {
	now := p.Now
	if now == nil {
		now = time.Now
	}
	return &Manager{
		platform:  p.Platform,
		transport: p.Transport,
		ack:       p.Acknowledger,
		registrar: p.Registrar,
		sink:      p.Sink,
		now:       now,
		state:     StateIdle,
	}
}

// Mount starts the lifecycle: idle → checking, then active when permission is
// already granted, idle when the user still has to opt in.
func (m *Manager) Mount(ctx context.Context) {
	m.mu.Lock()
	m.mounted = true
	m.state = StateIdle
	m.errMsg = ""
	m.mu.Unlock()

	if m.platform == nil || !m.platform.Supported() {
		m.fail(ErrUnsupported)
		return
	}
	m.setState(StateChecking)

	if m.platform.Permission() != PermissionGranted {
		m.setState(StateIdle)
		return
	}
	m.RefreshTokenIfNeeded(ctx)
}

// Unmount detaches the foreground listener. Late completions of in-flight work
// are discarded.
func (m *Manager) Unmount() {
	m.mu.Lock()
	m.mounted = false
	m.listening = false
	unsubscribe, cancel := m.unsubscribe, m.cancelPending
	m.unsubscribe, m.cancelPending = nil, nil
	m.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	if cancel != nil {
		cancel(context.Canceled)
	}
}

// RequestPermission prompts for permission and fetches a delivery token.
// Before Mount the token is returned but the manager state is left untouched.
func (m *Manager) RequestPermission(ctx context.Context) (string, error) {
	if m.platform == nil || !m.platform.Supported() {
		m.fail(ErrUnsupported)
		return "", ErrUnsupported
	}
	if !m.platform.Online() {
		m.fail(ErrNetworkUnavailable)
		return "", ErrNetworkUnavailable
	}

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	m.mu.Lock()
	if m.mounted {
		m.state = StateRequesting
		m.errMsg = ""
	}
	m.cancelPending = cancel
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.cancelPending = nil
		m.mu.Unlock()
	}()

	perm, err := m.platform.RequestPermission(ctx)
	if cause := context.Cause(ctx); cause != nil && errors.Is(cause, ErrNetworkUnavailable) {
		m.fail(ErrNetworkUnavailable)
		return "", ErrNetworkUnavailable
	}
	if err != nil {
		m.fail(err)
		return "", err
	}
	if perm != PermissionGranted {
		m.fail(ErrPermissionDenied)
		return "", ErrPermissionDenied
	}

	token, err := m.fetchToken(ctx)
	if err != nil {
		if cause := context.Cause(ctx); cause != nil && errors.Is(cause, ErrNetworkUnavailable) {
			err = ErrNetworkUnavailable
		}
		m.fail(err)
		return "", err
	}

	m.activate(ctx, token)
	if m.ack != nil {
		m.ack.Toast("Notifications enabled", "You will be notified about new resources and announcements.")
	}
	return token, nil
}

// RefreshTokenIfNeeded silently re-fetches the token. On failure it falls back
// to the full permission request and never reports an error to the caller.
func (m *Manager) RefreshTokenIfNeeded(ctx context.Context) {
	m.mu.Lock()
	if m.refreshing {
		m.mu.Unlock()
		return
	}
	m.refreshing = true
	if m.mounted {
		m.state = StateChecking
	}
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.refreshing = false
		m.mu.Unlock()
	}()

	token, err := m.fetchToken(ctx)
	if err == nil {
		m.activate(ctx, token)
		return
	}
	_, _ = m.RequestPermission(ctx)
}

// HandleOnline re-validates the token after connectivity returns.
func (m *Manager) HandleOnline(ctx context.Context) {
	if m.platform == nil || !m.platform.Supported() || m.platform.Permission() != PermissionGranted {
		return
	}
	m.RefreshTokenIfNeeded(ctx)
}

// HandleOffline fails a pending permission request immediately.
func (m *Manager) HandleOffline() {
	m.mu.Lock()
	pending := m.state == StateRequesting
	cancel := m.cancelPending
	m.mu.Unlock()

	if !pending {
		return
	}
	if cancel != nil {
		cancel(ErrNetworkUnavailable)
	}
	m.fail(ErrNetworkUnavailable)
}

// Snapshot returns the current state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	perm := PermissionDefault
	if m.platform != nil && m.platform.Supported() {
		perm = m.platform.Permission()
	}
	history := make([]HistoryEntry, len(m.history))
	copy(history, m.history)
	return Snapshot{
		State:             m.state,
		Token:             m.token,
		Error:             m.errMsg,
		Permission:        perm,
		History:           history,
		RegistrationError: m.registrationError,
	}
}

func (m *Manager) fetchToken(ctx context.Context) (string, error) {
	if m.transport == nil {
		return "", ErrUnsupported
	}
	token, err := m.transport.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("retrieving delivery token: %w", err)
	}
	if token == "" {
		return "", errors.New("retrieving delivery token: empty token")
	}
	return token, nil
}

func (m *Manager) activate(ctx context.Context, token string) {
	m.mu.Lock()
	if !m.mounted {
		m.mu.Unlock()
		return
	}
	changed := token != m.token
	m.token = token
	m.state = StateActive
	m.errMsg = ""
	m.mu.Unlock()

	m.listen()

	if changed && m.registrar != nil {
		err := m.registrar.RegisterToken(ctx, token)
		m.mu.Lock()
		m.registrationError = ""
		if err != nil {
			m.registrationError = err.Error()
		}
		m.mu.Unlock()
	}
}

func (m *Manager) listen() {
	m.mu.Lock()
	if m.listening || m.transport == nil {
		m.mu.Unlock()
		return
	}
	m.listening = true
	m.mu.Unlock()

	unsubscribe := m.transport.OnMessage(m.handleMessage)

	m.mu.Lock()
	m.unsubscribe = unsubscribe
	m.mu.Unlock()
}

func (m *Manager) handleMessage(msg Message) {
	entry := HistoryEntry{
		ID:         msg.ID,
		Title:      msg.Title,
		Body:       msg.Body,
		Data:       msg.Data,
		ReceivedAt: m.now(),
	}

	m.mu.Lock()
	if !m.mounted {
		m.mu.Unlock()
		return
	}
	m.history = append([]HistoryEntry{entry}, m.history...)
	if len(m.history) > historyLimit {
		m.history = m.history[:historyLimit]
	}
	m.mu.Unlock()

	if m.ack != nil {
		m.ack.Toast(msg.Title, msg.Body)
		m.ack.Chime()
	}
	if m.sink != nil {
		m.sink(msg)
	}
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mounted {
		m.state = s
	}
}

func (m *Manager) fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.mounted {
		return
	}
	m.state = StateError
	m.errMsg = humanMessage(err)
}

func humanMessage(err error) string {
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return "Notification permission was denied. Enable it in your browser settings to receive alerts."
	case errors.Is(err, ErrUnsupported):
		return "Push notifications are not supported in this browser."
	case errors.Is(err, ErrNetworkUnavailable):
		return "You appear to be offline. Reconnect and try again."
	case err == nil:
		return ""
	}
	return "Could not enable notifications: " + err.Error()
}
