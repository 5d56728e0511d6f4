package push

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	pkgerrors "github.com/angelmondragon/studyhub-backend/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryTokenStore struct {
	scores map[string]time.Time
	owners map[string]string
	err    error
}

func newMemoryTokenStore() *memoryTokenStore {
	return &memoryTokenStore{scores: map[string]time.Time{}, owners: map[string]string{}}
}

func (s *memoryTokenStore) ZAddWithExpiry(ctx context.Context, key, member string, expiresAt time.Time) error {
	if s.err != nil {
		return s.err
	}
	s.scores[member] = expiresAt
	return nil
}

func (s *memoryTokenStore) ZLive(ctx context.Context, key string, now time.Time) ([]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	var live []string
	for member, exp := range s.scores {
		if exp.Before(now) {
			delete(s.scores, member)
			continue
		}
		live = append(live, member)
	}
	return live, nil
}

func (s *memoryTokenStore) ZRem(ctx context.Context, key string, members ...string) error {
	for _, m := range members {
		delete(s.scores, m)
	}
	return nil
}

func (s *memoryTokenStore) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	s.owners[key] = value.(string)
	return nil
}

func (s *memoryTokenStore) Del(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		delete(s.owners, k)
	}
	return nil
}

func (s *memoryTokenStore) PushTokensKey() string { return "sh:push:tokens" }

func (s *memoryTokenStore) PushOwnerKey(token string) string { return "sh:push:owner:" + token }

func TestRegistryRegisterAndExpire(t *testing.T) {
	store := newMemoryTokenStore()
	reg, err := NewRegistry(store, time.Hour)
	require.NoError(t, err)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	reg.now = func() time.Time { return now }

	require.NoError(t, reg.Register(context.Background(), "user-1", " tok-a "))
	require.NoError(t, reg.Register(context.Background(), "", "tok-b"))

	tokens, err := reg.Tokens(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"tok-a", "tok-b"}, tokens)
	assert.Equal(t, "user-1", store.owners["sh:push:owner:tok-a"])
	assert.NotContains(t, store.owners, "sh:push:owner:tok-b")

	now = now.Add(2 * time.Hour)
	tokens, err = reg.Tokens(context.Background())
	require.NoError(t, err)
	assert.Empty(t, tokens)
}

func TestRegistryRejectsInvalidTokens(t *testing.T) {
	reg, err := NewRegistry(newMemoryTokenStore(), 0)
	require.NoError(t, err)
	assert.Equal(t, 30*24*time.Hour, reg.ttl)

	for _, token := range []string{"", "   ", strings.Repeat("x", maxTokenLength+1)} {
		err := reg.Register(context.Background(), "u", token)
		require.Error(t, err)
		assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
	}
}

func TestRegistryRemove(t *testing.T) {
	store := newMemoryTokenStore()
	reg, err := NewRegistry(store, time.Hour)
	require.NoError(t, err)

	require.NoError(t, reg.Register(context.Background(), "u1", "tok-a"))
	require.NoError(t, reg.Register(context.Background(), "u2", "tok-b"))
	require.NoError(t, reg.Remove(context.Background(), "tok-a", ""))

	tokens, err := reg.Tokens(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"tok-b"}, tokens)
	assert.NotContains(t, store.owners, "sh:push:owner:tok-a")

	require.NoError(t, reg.Remove(context.Background()))
}

func TestRegistryWrapsStoreErrors(t *testing.T) {
	store := newMemoryTokenStore()
	store.err = errors.New("redis down")
	reg, err := NewRegistry(store, time.Hour)
	require.NoError(t, err)

	err = reg.Register(context.Background(), "u", "tok")
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeDependency, pkgerrors.As(err).Code())

	_, err = reg.Tokens(context.Background())
	assert.Equal(t, pkgerrors.CodeDependency, pkgerrors.As(err).Code())

	_, err = NewRegistry(nil, time.Hour)
	assert.Error(t, err)
}
