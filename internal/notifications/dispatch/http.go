package dispatch

import (
	"context"
	"fmt"

	"github.com/angelmondragon/studyhub-backend/pkg/apiclient"
)

const sendPath = "/api/notifications/send"

// HTTPBroadcaster calls POST /api/notifications/send.
type HTTPBroadcaster struct {
	api *apiclient.Client
}

func NewHTTPBroadcaster(api *apiclient.Client) *HTTPBroadcaster {
	return &HTTPBroadcaster{api: api}
}

type sendResponse struct {
	Notification struct {
		ID string `json:"id"`
	} `json:"notification"`
	EmailQueued bool `json:"emailQueued"`
}

func (b *HTTPBroadcaster) Broadcast(ctx context.Context, req Request) (Broadcast, error) {
	var resp sendResponse
	if err := b.api.Post(ctx, sendPath, req, &resp); err != nil {
		return Broadcast{}, err
	}
	if resp.Notification.ID == "" {
		return Broadcast{}, fmt.Errorf("%w: response has no notification id", apiclient.ErrMalformedResponse)
	}
	return Broadcast{NotificationID: resp.Notification.ID, EmailQueued: resp.EmailQueued}, nil
}
