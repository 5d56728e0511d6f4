package inbox

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/angelmondragon/studyhub-backend/pkg/apiclient"
	"github.com/angelmondragon/studyhub-backend/pkg/db/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func note(id string, minutes int, readers ...string) models.Notification {
	return models.Notification{
		ID:        id,
		Title:     "title " + id,
		Type:      "system",
		CreatedAt: t0.Add(time.Duration(minutes) * time.Minute),
		ReadBy:    readers,
	}
}

type recordingMarker struct {
	read    []string
	readAll int
	err     error
}

func (m *recordingMarker) MarkRead(ctx context.Context, id string) error {
	m.read = append(m.read, id)
	return m.err
}

func (m *recordingMarker) MarkAllRead(ctx context.Context) error {
	m.readAll++
	return m.err
}

func ids(list []models.Notification) []string {
	out := make([]string, len(list))
	for i, n := range list {
		out[i] = n.ID
	}
	return out
}

func derivedUnread(list []models.Notification, uid string) int {
	count := 0
	for _, n := range list {
		if !n.ReadByUser(uid) {
			count++
		}
	}
	return count
}

func TestMarkAsReadIsIdempotent(t *testing.T) {
	marker := &recordingMarker{}
	box := New("u1", marker, nil)
	box.Load([]models.Notification{note("a", 1), note("b", 2)})

	box.MarkAsRead(context.Background(), "a")
	once := box.Snapshot()
	box.MarkAsRead(context.Background(), "a")
	twice := box.Snapshot()

	assert.Equal(t, once.Notifications, twice.Notifications)
	assert.Equal(t, []string{"u1"}, twice.Notifications[1].ReadBy)
	assert.Equal(t, 1, twice.Unread)
	assert.Equal(t, []string{"a"}, marker.read, "second call must not hit the backend")
}

func TestMarkAllAsRead(t *testing.T) {
	marker := &recordingMarker{}
	box := New("u1", marker, nil)
	box.Load([]models.Notification{note("a", 1, "u1"), note("b", 2), note("c", 3, "u2")})

	box.MarkAllAsRead(context.Background())
	snap := box.Snapshot()
	assert.Zero(t, snap.Unread)
	assert.Equal(t, []string{"u2", "u1"}, snap.Notifications[0].ReadBy)
	assert.Equal(t, 1, marker.readAll)

	box.MarkAllAsRead(context.Background())
	assert.Equal(t, 1, marker.readAll)
}

func TestReceivePrependsNewestAndSetsLatest(t *testing.T) {
	box := New("u1", nil, nil)
	box.Load([]models.Notification{note("a", 1), note("b", 2)})

	assert.True(t, box.Receive(note("c", 3)))
	snap := box.Snapshot()
	assert.Equal(t, []string{"c", "b", "a"}, ids(snap.Notifications))
	require.NotNil(t, snap.Latest)
	assert.Equal(t, "c", snap.Latest.ID)

	box.ClearLatest()
	snap = box.Snapshot()
	assert.Nil(t, snap.Latest)
	assert.Equal(t, 3, snap.Unread)
}

func TestReceiveIgnoresDuplicatesAndKeepsOrder(t *testing.T) {
	box := New("u1", nil, nil)
	box.Load([]models.Notification{note("a", 1), note("c", 3)})

	assert.False(t, box.Receive(note("c", 3)))
	assert.True(t, box.Receive(note("b", 2)))
	assert.Equal(t, []string{"c", "b", "a"}, ids(box.Snapshot().Notifications))
	assert.Nil(t, box.Snapshot().Latest, "out-of-order arrivals do not drive the toast")
}

func TestLoadAfterLiveDeliveryDeduplicates(t *testing.T) {
	box := New("u1", nil, nil)
	box.Receive(note("b", 2))
	box.MarkAsRead(context.Background(), "b")

	box.Load([]models.Notification{note("a", 1), note("b", 2)})
	snap := box.Snapshot()
	assert.Equal(t, []string{"b", "a"}, ids(snap.Notifications))
	assert.Equal(t, []string{"u1"}, snap.Notifications[0].ReadBy)
}

func TestUnreadStaysDerivedUnderRandomOperations(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	box := New("u1", nil, nil)
	known := []string{}

	for step := 0; step < 400; step++ {
		switch rng.Intn(4) {
		case 0:
			id := fmt.Sprintf("n%d", rng.Intn(60))
			box.Receive(note(id, rng.Intn(120)))
			known = append(known, id)
		case 1:
			if len(known) > 0 {
				box.MarkAsRead(context.Background(), known[rng.Intn(len(known))])
			}
		case 2:
			if rng.Intn(10) == 0 {
				box.MarkAllAsRead(context.Background())
			}
		case 3:
			batch := []models.Notification{}
			for i := 0; i < 3; i++ {
				batch = append(batch, note(fmt.Sprintf("n%d", rng.Intn(60)), rng.Intn(120)))
			}
			box.Load(batch)
		}

		snap := box.Snapshot()
		require.Equal(t, derivedUnread(snap.Notifications, "u1"), snap.Unread)

		seen := map[string]bool{}
		for _, n := range snap.Notifications {
			require.False(t, seen[n.ID], "duplicate id %s", n.ID)
			seen[n.ID] = true
		}
		require.True(t, sort.SliceIsSorted(snap.Notifications, func(i, j int) bool {
			return newer(snap.Notifications[i], snap.Notifications[j])
		}))
	}
}

func TestBellAndOutsideClick(t *testing.T) {
	box := New("u1", nil, nil)
	box.ToggleBell()
	assert.True(t, box.Snapshot().BellOpen)

	box.SetPanelBounds(Rect{X: 100, Y: 0, Width: 300, Height: 400})
	box.PointerDown(Point{X: 150, Y: 20})
	assert.True(t, box.Snapshot().BellOpen)

	box.PointerDown(Point{X: 10, Y: 20})
	assert.False(t, box.Snapshot().BellOpen)

	box.OpenBell()
	box.CloseBell()
	assert.False(t, box.Snapshot().BellOpen)
}

func TestMarkerErrorsAreReported(t *testing.T) {
	var reported []error
	marker := &recordingMarker{err: errors.New("offline")}
	box := New("u1", marker, func(err error) { reported = append(reported, err) })
	box.Load([]models.Notification{note("a", 1)})

	box.MarkAsRead(context.Background(), "a")
	require.Len(t, reported, 1)
	assert.Zero(t, box.Snapshot().Unread)
}

func TestHTTPReadMarker(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.Method+" "+r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	marker := NewHTTPReadMarker(apiclient.New(srv.URL))
	require.NoError(t, marker.MarkRead(context.Background(), "n 1"))
	require.NoError(t, marker.MarkAllRead(context.Background()))
	assert.Equal(t, []string{"POST /api/notifications/n 1/read", "POST /api/notifications/read-all"}, paths)
}
