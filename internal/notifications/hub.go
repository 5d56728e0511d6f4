package notifications

import (
	"context"
	"sync"

	"github.com/angelmondragon/studyhub-backend/pkg/db/models"
	"github.com/angelmondragon/studyhub-backend/pkg/logger"
)

const (
	defaultSubscriberBuffer = 16
	recentIDs               = 256
)

// Hub fans live notifications out to stream subscribers. Each subscriber has a
// buffered channel; when it is full the notification is dropped for that
// subscriber only. Ids seen recently are published once even when both the
// service and the Firestore feed deliver them.
type Hub struct {
	logg   *logger.Logger
	buffer int

	mu     sync.Mutex
	nextID uint64
	subs   map[uint64]chan models.Notification
	closed bool

	recent     [recentIDs]string
	recentNext int
	seen       map[string]struct{}
}

func NewHub(buffer int, logg *logger.Logger) *Hub {
	if buffer <= 0 {
		buffer = defaultSubscriberBuffer
	}
	return &Hub{
		logg:   logg,
		buffer: buffer,
		subs:   make(map[uint64]chan models.Notification),
		seen:   make(map[string]struct{}, recentIDs),
	}
}

// Subscribe registers a subscriber. The returned cancel func closes the channel.
func (h *Hub) Subscribe() (<-chan models.Notification, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan models.Notification, h.buffer)
	if h.closed {
		close(ch)
		return ch, func() {}
	}
	id := h.nextID
	h.nextID++
	h.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if sub, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(sub)
			}
		})
	}
}

// Publish delivers n to every subscriber. It reports false for ids already published.
func (h *Hub) Publish(ctx context.Context, n models.Notification) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed || !h.remember(n.ID) {
		return false
	}
	dropped := 0
	for _, ch := range h.subs {
		select {
		case ch <- n:
		default:
			dropped++
		}
	}
	if dropped > 0 && h.logg != nil {
		h.logg.Warn(h.logg.WithFields(ctx, map[string]any{
			"notification_id": n.ID,
			"dropped":         dropped,
		}), "notifications.hub.slow_subscribers")
	}
	return true
}

// Subscribers returns the current subscriber count.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close ends every subscription.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}

// remember must be called with mu held.
func (h *Hub) remember(id string) bool {
	if id == "" {
		return true
	}
	if _, ok := h.seen[id]; ok {
		return false
	}
	if old := h.recent[h.recentNext]; old != "" {
		delete(h.seen, old)
	}
	h.recent[h.recentNext] = id
	h.recentNext = (h.recentNext + 1) % recentIDs
	h.seen[id] = struct{}{}
	return true
}
