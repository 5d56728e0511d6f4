package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/studyhub-backend/pkg/errors"
)

type fakeStore struct {
	data map[string]string
	ttls map[string]time.Duration
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeStore) Get(_ context.Context, key string) (string, error) {
	if v, ok := f.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (f *fakeStore) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	f.data[key] = value.(string)
	f.ttls[key] = ttl
	return nil
}

func (f *fakeStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	f.data[key] = value.(string)
	f.ttls[key] = ttl
	return true, nil
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(f.data, k)
	}
	return nil
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("fake:%s:%s", scope, id)
}

func sendRequest(body, key string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/notifications/send", strings.NewReader(body))
	if key != "" {
		req.Header.Set(IdempotencyKeyHeader, key)
	}
	return req
}

func TestIdempotencyWithoutHeaderPassesThrough(t *testing.T) {
	store := newFakeStore()
	calls := 0
	handler := Idempotency(store, 0, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	}))

	for i := 0; i < 2; i++ {
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, sendRequest(`{"title":"x"}`, ""))
		assert.Equal(t, http.StatusCreated, resp.Code)
	}
	assert.Equal(t, 2, calls)
	assert.Empty(t, store.data)
}

func TestIdempotencyReleasesKeyOnServerError(t *testing.T) {
	store := newFakeStore()
	handler := Idempotency(store, SendIdempotencyTTL, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), sendRequest(`{}`, "k"))
	assert.Empty(t, store.data, "5xx responses should stay retryable")
}

func TestIdempotencyReplaysStoredResponse(t *testing.T) {
	store := newFakeStore()
	calls := 0
	handler := Idempotency(store, SendIdempotencyTTL, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, sendRequest(`{"foo":"bar"}`, "abc"))
	require.Equal(t, http.StatusAccepted, first.Code)

	replayed := httptest.NewRecorder()
	handler.ServeHTTP(replayed, sendRequest(`{"foo":"bar"}`, "abc"))

	assert.Equal(t, http.StatusAccepted, replayed.Code)
	assert.Equal(t, "application/json", replayed.Header().Get("Content-Type"))
	assert.Equal(t, `{"ok":true}`, replayed.Body.String())
	assert.Equal(t, "true", replayed.Header().Get(replayedHeader))
	assert.Equal(t, 1, calls)
	for _, ttl := range store.ttls {
		assert.Equal(t, SendIdempotencyTTL, ttl)
	}
}

func TestIdempotencyRejectsBodyChange(t *testing.T) {
	store := newFakeStore()
	handler := Idempotency(store, 0, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), sendRequest(`{"foo":"bar"}`, "xyz"))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, sendRequest(`{"foo":"diff"}`, "xyz"))

	require.Equal(t, http.StatusConflict, resp.Code)
	var payload struct {
		Success bool   `json:"success"`
		Code    string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &payload))
	assert.False(t, payload.Success)
	assert.Equal(t, string(pkgerrors.CodeIdempotency), payload.Code)
}

func TestIdempotencyRejectsConcurrentDuplicate(t *testing.T) {
	store := newFakeStore()
	var nested *httptest.ResponseRecorder
	var handler http.Handler
	handler = Idempotency(store, 0, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if nested == nil {
			nested = httptest.NewRecorder()
			handler.ServeHTTP(nested, sendRequest(`{}`, "dup"))
		}
		w.WriteHeader(http.StatusCreated)
	}))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, sendRequest(`{}`, "dup"))

	assert.Equal(t, http.StatusCreated, first.Code)
	assert.Equal(t, http.StatusConflict, nested.Code)
}
