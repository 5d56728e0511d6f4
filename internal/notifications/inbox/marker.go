package inbox

import (
	"context"
	"net/url"

	"github.com/angelmondragon/studyhub-backend/pkg/apiclient"
)

// HTTPReadMarker persists read state through the notifications API.
type HTTPReadMarker struct {
	api *apiclient.Client
}

func NewHTTPReadMarker(api *apiclient.Client) *HTTPReadMarker {
	return &HTTPReadMarker{api: api}
}

func (m *HTTPReadMarker) MarkRead(ctx context.Context, notificationID string) error {
	return m.api.Post(ctx, "/api/notifications/"+url.PathEscape(notificationID)+"/read", nil, nil)
}

func (m *HTTPReadMarker) MarkAllRead(ctx context.Context) error {
	return m.api.Post(ctx, "/api/notifications/read-all", nil, nil)
}
