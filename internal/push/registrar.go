package push

import (
	"context"

	"github.com/angelmondragon/studyhub-backend/pkg/apiclient"
)

const tokensPath = "/api/notifications/tokens"

// HTTPRegistrar registers delivery tokens with the StudyHub API.
type HTTPRegistrar struct {
	api *apiclient.Client
}

func NewHTTPRegistrar(api *apiclient.Client) *HTTPRegistrar {
	return &HTTPRegistrar{api: api}
}

type tokenBody struct {
	Token string `json:"token"`
}

func (r *HTTPRegistrar) RegisterToken(ctx context.Context, token string) error {
	return r.api.Post(ctx, tokensPath, tokenBody{Token: token}, nil)
}

// UnregisterToken drops token, e.g. on sign-out.
func (r *HTTPRegistrar) UnregisterToken(ctx context.Context, token string) error {
	return r.api.Delete(ctx, tokensPath, tokenBody{Token: token})
}
