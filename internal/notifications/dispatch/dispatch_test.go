package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/angelmondragon/studyhub-backend/pkg/apiclient"
	"github.com/angelmondragon/studyhub-backend/pkg/db/models"
	"github.com/angelmondragon/studyhub-backend/pkg/enums"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type memoryStore struct {
	mu    sync.Mutex
	docs  map[string]models.Notification
	err   error
	panic bool
}

func newMemoryStore() *memoryStore {
	return &memoryStore{docs: map[string]models.Notification{}}
}

func (s *memoryStore) Create(ctx context.Context, n *models.Notification) error {
	if s.panic {
		panic("store exploded")
	}
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[n.ID]; ok {
		return status.Error(codes.AlreadyExists, "document already exists")
	}
	s.docs[n.ID] = *n
	return nil
}

func unreachableBackend(t *testing.T) *HTTPBroadcaster {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	return NewHTTPBroadcaster(apiclient.New(url, apiclient.WithMaxRetries(0)))
}

func TestFallbackWhenBackendUnreachable(t *testing.T) {
	store := newMemoryStore()
	d := New(unreachableBackend(t), store, nil)

	res := d.CreateNotification(context.Background(), SystemAnnouncement("Maintenance", "Portal offline Sunday"))

	assert.True(t, res.Success)
	assert.Equal(t, DispatchedLocalOnly, res.Outcome)
	assert.False(t, res.EmailQueued)
	require.Len(t, store.docs, 1)
	doc := store.docs[res.NotificationID]
	assert.Equal(t, "Maintenance", doc.Title)
	assert.Equal(t, enums.NotificationTypeSystem, doc.Type)
	assert.Equal(t, []string{}, doc.ReadBy)
}

func TestBackendSuccessSkipsStore(t *testing.T) {
	var got Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/notifications/send", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"data":{"notification":{"id":"` + got.ID + `"},"emailQueued":true}}`))
	}))
	defer srv.Close()

	store := newMemoryStore()
	d := New(NewHTTPBroadcaster(apiclient.New(srv.URL)), store, nil)
	res := d.CreateNotification(context.Background(), NewLibraryItem(LibraryItem{ResourceID: "r1", Title: "Calculus notes", Course: "MATH101"}))

	assert.True(t, res.Success)
	assert.Equal(t, DispatchedWithEmail, res.Outcome)
	assert.True(t, res.EmailQueued)
	assert.NotEmpty(t, got.ID)
	assert.Equal(t, got.ID, res.NotificationID)
	assert.Equal(t, "/resources/r1", got.Link)
	assert.True(t, got.SendEmail)
	assert.Empty(t, store.docs)
}

func TestBackendSuccessWithoutEmailIsNotReportedAsEmailed(t *testing.T) {
	cases := map[string]struct {
		req   Request
		reply string
	}{
		"email not requested": {
			req:   Request{Title: "Lab safety", Message: "Complete the module by Friday", Type: enums.NotificationTypeTraining},
			reply: `{"success":true,"data":{"notification":{"id":"n-1"},"emailQueued":false}}`,
		},
		"fan-out disabled": {
			req:   NewLibraryItem(LibraryItem{ResourceID: "r2", Title: "Physics lab", Course: "PHY110"}),
			reply: `{"success":true,"data":{"notification":{"id":"n-1"},"emailQueued":false}}`,
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(tc.reply))
			}))
			defer srv.Close()

			res := New(NewHTTPBroadcaster(apiclient.New(srv.URL)), newMemoryStore(), nil).
				CreateNotification(context.Background(), tc.req)

			assert.True(t, res.Success)
			assert.Equal(t, Dispatched, res.Outcome)
			assert.False(t, res.EmailQueued)
			assert.Equal(t, "n-1", res.NotificationID)
		})
	}
}

func TestFallbackOnErrorStatusAndMalformedResponse(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"server error": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"success":false,"error":"boom"}`))
		},
		"not json": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`<html>gateway</html>`))
		},
		"missing id": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"success":true,"data":{}}`))
		},
	}
	for name, handler := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(handler)
			defer srv.Close()

			store := newMemoryStore()
			d := New(NewHTTPBroadcaster(apiclient.New(srv.URL)), store, nil)
			res := d.CreateNotification(context.Background(), Training("Lab safety", "Session on Friday", "/study"))

			assert.True(t, res.Success)
			assert.Equal(t, DispatchedLocalOnly, res.Outcome)
			assert.Len(t, store.docs, 1)
		})
	}
}

type writeThenFail struct {
	store *memoryStore
}

func (b writeThenFail) Broadcast(ctx context.Context, req Request) (Broadcast, error) {
	n := models.Notification{ID: req.ID, Title: req.Title, Message: req.Message, Type: req.Type}
	if err := b.store.Create(ctx, &n); err != nil {
		return Broadcast{}, err
	}
	return Broadcast{}, apiclient.ErrMalformedResponse
}

func TestFallbackDoesNotDuplicateBackendWrite(t *testing.T) {
	store := newMemoryStore()
	d := New(writeThenFail{store: store}, store, nil)

	res := d.CreateNotification(context.Background(), Tutorial("Intro to Go", "/study"))
	assert.True(t, res.Success)
	assert.Len(t, store.docs, 1)
}

func TestDispatchFailures(t *testing.T) {
	t.Run("validation", func(t *testing.T) {
		res := New(nil, newMemoryStore(), nil).CreateNotification(context.Background(), Request{Title: "T"})
		assert.False(t, res.Success)
		assert.Equal(t, DispatchFailed, res.Outcome)
		assert.Error(t, res.Err)
	})

	t.Run("store error", func(t *testing.T) {
		store := newMemoryStore()
		store.err = errors.New("permission denied")
		res := New(unreachableBackend(t), store, nil).CreateNotification(context.Background(), SystemAnnouncement("T", "M"))
		assert.False(t, res.Success)
		assert.Equal(t, DispatchFailed, res.Outcome)
		assert.ErrorContains(t, res.Err, "permission denied")
		assert.ErrorIs(t, res.Err, apiclient.ErrNetwork)
	})

	t.Run("panic is contained", func(t *testing.T) {
		store := newMemoryStore()
		store.panic = true
		res := New(nil, store, nil).CreateNotification(context.Background(), SystemAnnouncement("T", "M"))
		assert.False(t, res.Success)
		assert.ErrorContains(t, res.Err, "store exploded")
	})

	t.Run("no dependencies", func(t *testing.T) {
		res := New(nil, nil, nil).CreateNotification(context.Background(), SystemAnnouncement("T", "M"))
		assert.Equal(t, DispatchFailed, res.Outcome)
	})
}

func TestCategoryHelpers(t *testing.T) {
	created := NewLibraryItem(LibraryItem{ResourceID: "r 1", Title: "Notes", PostedBy: "Dr. Rao"})
	assert.Equal(t, "Dr. Rao added \"Notes\" in the library.", created.Message)
	assert.Equal(t, "/resources/r%201", created.Link)
	assert.Equal(t, "created", created.Metadata["action"])

	updated := UpdatedLibraryItem(LibraryItem{ResourceID: "r1", Title: "Notes", Course: "CS50"})
	assert.Equal(t, "\"Notes\" was updated in CS50.", updated.Message)
	assert.Equal(t, enums.NotificationTypeLibrary, updated.Type)

	tut := Tutorial(" Recursion ", "/study")
	assert.False(t, tut.SendEmail)
	assert.Equal(t, enums.NotificationTypeTutorial, tut.Type)
	assert.Equal(t, "Training: Lab", Training(" Lab ", "m", "").Title)
}
