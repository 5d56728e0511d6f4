package push

import (
	"context"
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/studyhub-backend/pkg/errors"
)

const maxTokenLength = 4096

type tokenStore interface {
	ZAddWithExpiry(ctx context.Context, key, member string, expiresAt time.Time) error
	ZLive(ctx context.Context, key string, now time.Time) ([]string, error)
	ZRem(ctx context.Context, key string, members ...string) error
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	PushTokensKey() string
	PushOwnerKey(token string) string
}

// Registry caches delivery tokens in Redis. Tokens expire after the configured
// TTL unless the client registers them again.
type Registry struct {
	store tokenStore
	ttl   time.Duration
	now   func() time.Time
}

func NewRegistry(store tokenStore, ttl time.Duration) (*Registry, error) {
	if store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "token store required")
	}
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &Registry{store: store, ttl: ttl, now: time.Now}, nil
}

// Register records token for userID and extends its expiry.
func (r *Registry) Register(ctx context.Context, userID, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "token is required")
	}
	if len(token) > maxTokenLength {
		return pkgerrors.New(pkgerrors.CodeValidation, "token is too long")
	}

	expires := r.now().Add(r.ttl)
	if err := r.store.ZAddWithExpiry(ctx, r.store.PushTokensKey(), token, expires); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "register delivery token")
	}
	if userID != "" {
		if err := r.store.Set(ctx, r.store.PushOwnerKey(token), userID, r.ttl); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record token owner")
		}
	}
	return nil
}

// Tokens returns every unexpired token.
func (r *Registry) Tokens(ctx context.Context) ([]string, error) {
	tokens, err := r.store.ZLive(ctx, r.store.PushTokensKey(), r.now())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list delivery tokens")
	}
	return tokens, nil
}

// Remove forgets the given tokens.
func (r *Registry) Remove(ctx context.Context, tokens ...string) error {
	clean := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if t = strings.TrimSpace(t); t != "" {
			clean = append(clean, t)
		}
	}
	if len(clean) == 0 {
		return nil
	}
	if err := r.store.ZRem(ctx, r.store.PushTokensKey(), clean...); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove delivery tokens")
	}
	owners := make([]string, len(clean))
	for i, t := range clean {
		owners[i] = r.store.PushOwnerKey(t)
	}
	if err := r.store.Del(ctx, owners...); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove token owners")
	}
	return nil
}
