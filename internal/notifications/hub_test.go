package notifications

import (
	"context"
	"fmt"
	"testing"

	"github.com/angelmondragon/studyhub-backend/pkg/db/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubDeliversOncePerID(t *testing.T) {
	hub := NewHub(4, nil)
	ch, cancel := hub.Subscribe()
	defer cancel()

	assert.True(t, hub.Publish(context.Background(), models.Notification{ID: "n1"}))
	assert.False(t, hub.Publish(context.Background(), models.Notification{ID: "n1"}))

	require.Len(t, ch, 1)
	assert.Equal(t, "n1", (<-ch).ID)
}

func TestHubDropsForSlowSubscriber(t *testing.T) {
	hub := NewHub(1, nil)
	slow, cancelSlow := hub.Subscribe()
	defer cancelSlow()

	hub.Publish(context.Background(), models.Notification{ID: "a"})
	hub.Publish(context.Background(), models.Notification{ID: "b"})

	assert.Equal(t, "a", (<-slow).ID)
	assert.Len(t, slow, 0)
}

func TestHubForgetsOldIDs(t *testing.T) {
	hub := NewHub(1, nil)
	for i := 0; i < recentIDs; i++ {
		hub.Publish(context.Background(), models.Notification{ID: fmt.Sprintf("n%d", i)})
	}
	assert.False(t, hub.Publish(context.Background(), models.Notification{ID: "n255"}))
	hub.Publish(context.Background(), models.Notification{ID: "overflow"})
	assert.True(t, hub.Publish(context.Background(), models.Notification{ID: "n0"}))
}

func TestHubCancelAndClose(t *testing.T) {
	hub := NewHub(1, nil)
	ch, cancel := hub.Subscribe()
	assert.Equal(t, 1, hub.Subscribers())

	cancel()
	cancel()
	_, open := <-ch
	assert.False(t, open)
	assert.Zero(t, hub.Subscribers())

	other, _ := hub.Subscribe()
	hub.Close()
	_, open = <-other
	assert.False(t, open)

	late, _ := hub.Subscribe()
	_, open = <-late
	assert.False(t, open)
	assert.False(t, hub.Publish(context.Background(), models.Notification{ID: "x"}))
}
