// Package inbox is the client-side notification store shared by the bell
// indicator and the toast. The unread count is never stored; it is derived
// from the list on every Snapshot.
package inbox

import (
	"context"
	"sort"
	"sync"

	"github.com/angelmondragon/studyhub-backend/pkg/db/models"
)

// ReadMarker persists acknowledgments with the backend.
type ReadMarker interface {
	MarkRead(ctx context.Context, notificationID string) error
	MarkAllRead(ctx context.Context) error
}

// Point is a pointer position.
type Point struct {
	X, Y float64
}

// Rect is the bell panel's bounds.
type Rect struct {
	X, Y, Width, Height float64
}

func (r Rect) empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

func (r Rect) contains(p Point) bool {
	return p.X >= r.X && p.X <= r.X+r.Width && p.Y >= r.Y && p.Y <= r.Y+r.Height
}

// Snapshot is a copy of the inbox state.
type Snapshot struct {
	Notifications []models.Notification
	Unread        int
	BellOpen      bool
	Latest        *models.Notification
}

// Inbox keeps notifications newest-first. It is safe for concurrent use.
type Inbox struct {
	marker ReadMarker
	onErr  func(error)

	mu            sync.Mutex
	userID        string
	notifications []models.Notification
	bellOpen      bool
	panel         Rect
	latest        *models.Notification
}

// New returns an empty inbox for userID. marker and onErr may be nil.
func New(userID string, marker ReadMarker, onErr func(error)) *Inbox {
	return &Inbox{userID: userID, marker: marker, onErr: onErr}
}

// SetUser switches the user the unread count is derived for.
func (b *Inbox) SetUser(userID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.userID = userID
}

// Load merges a bulk fetch into the list, de-duplicated by id.
func (b *Inbox) Load(list []models.Notification) {
	b.mu.Lock()
	defer b.mu.Unlock()

	byID := make(map[string]int, len(b.notifications))
	for i, n := range b.notifications {
		byID[n.ID] = i
	}
	for _, n := range list {
		if i, ok := byID[n.ID]; ok {
			b.notifications[i] = merged(b.notifications[i], n)
			continue
		}
		byID[n.ID] = len(b.notifications)
		b.notifications = append(b.notifications, clone(n))
	}
	sort.SliceStable(b.notifications, func(i, j int) bool {
		return newer(b.notifications[i], b.notifications[j])
	})
}

// Receive merges one live notification. A notification newer than every
// known one is prepended and becomes the latest pointer. Known ids are ignored.
func (b *Inbox) Receive(n models.Notification) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, existing := range b.notifications {
		if existing.ID == n.ID {
			return false
		}
	}

	n = clone(n)
	if len(b.notifications) == 0 || !newer(b.notifications[0], n) {
		b.notifications = append([]models.Notification{n}, b.notifications...)
		latest := clone(n)
		b.latest = &latest
		return true
	}

	at := sort.Search(len(b.notifications), func(i int) bool {
		return newer(n, b.notifications[i])
	})
	b.notifications = append(b.notifications, models.Notification{})
	copy(b.notifications[at+1:], b.notifications[at:])
	b.notifications[at] = n
	return true
}

// MarkAsRead adds the current user to the reader list. Repeated calls are no-ops.
func (b *Inbox) MarkAsRead(ctx context.Context, id string) {
	b.mu.Lock()
	changed := false
	for i := range b.notifications {
		n := &b.notifications[i]
		if n.ID == id && !n.ReadByUser(b.userID) {
			n.ReadBy = append(n.ReadBy, b.userID)
			changed = true
			break
		}
	}
	b.mu.Unlock()

	if changed && b.marker != nil {
		b.report(b.marker.MarkRead(ctx, id))
	}
}

// MarkAllAsRead marks every unread notification in one batch.
func (b *Inbox) MarkAllAsRead(ctx context.Context) {
	b.mu.Lock()
	changed := 0
	for i := range b.notifications {
		n := &b.notifications[i]
		if !n.ReadByUser(b.userID) {
			n.ReadBy = append(n.ReadBy, b.userID)
			changed++
		}
	}
	b.mu.Unlock()

	if changed > 0 && b.marker != nil {
		b.report(b.marker.MarkAllRead(ctx))
	}
}

func (b *Inbox) ToggleBell() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bellOpen = !b.bellOpen
}

func (b *Inbox) OpenBell() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bellOpen = true
}

func (b *Inbox) CloseBell() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bellOpen = false
}

// SetPanelBounds records where the open panel is drawn.
func (b *Inbox) SetPanelBounds(r Rect) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.panel = r
}

// PointerDown closes the bell when p falls outside the panel.
func (b *Inbox) PointerDown(p Point) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.bellOpen || b.panel.empty() {
		return
	}
	if !b.panel.contains(p) {
		b.bellOpen = false
	}
}

// ClearLatest drops the toast pointer without touching read state.
func (b *Inbox) ClearLatest() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.latest = nil
}

func (b *Inbox) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := Snapshot{
		Notifications: make([]models.Notification, len(b.notifications)),
		BellOpen:      b.bellOpen,
	}
	for i, n := range b.notifications {
		out.Notifications[i] = clone(n)
		if !n.ReadByUser(b.userID) {
			out.Unread++
		}
	}
	if b.latest != nil {
		latest := clone(*b.latest)
		out.Latest = &latest
	}
	return out
}

func (b *Inbox) report(err error) {
	if err != nil && b.onErr != nil {
		b.onErr(err)
	}
}

func newer(a, b models.Notification) bool {
	if a.CreatedAt.Equal(b.CreatedAt) {
		return a.ID > b.ID
	}
	return a.CreatedAt.After(b.CreatedAt)
}

// merged keeps readers acknowledged locally that a refetch may not know yet.
func merged(local, remote models.Notification) models.Notification {
	out := clone(remote)
	for _, uid := range local.ReadBy {
		if !out.ReadByUser(uid) {
			out.ReadBy = append(out.ReadBy, uid)
		}
	}
	return out
}

func clone(n models.Notification) models.Notification {
	n.ReadBy = append([]string(nil), n.ReadBy...)
	return n
}
