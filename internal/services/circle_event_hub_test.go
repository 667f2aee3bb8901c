package services

import (
	"context"
	"testing"
	"time"

	"github.com/savings-circle/backend/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircleEventHubFansOut(t *testing.T) {
	rdb, _ := testutil.NewRedis(t)
	hub := NewCircleEventHub(rdb, CircleUpdateChannel)
	defer hub.Close()

	first, unsubFirst := hub.Subscribe()
	defer unsubFirst()
	second, unsubSecond := hub.Subscribe()
	defer unsubSecond()

	// The hub subscribes asynchronously; publish until someone hears it
	require.Eventually(t, func() bool {
		n, err := rdb.Publish(context.Background(), CircleUpdateChannel, "ping").Result()
		return err == nil && n > 0
	}, 2*time.Second, 20*time.Millisecond)

	for _, ch := range []<-chan []byte{first, second} {
		select {
		case msg := <-ch:
			assert.Equal(t, "ping", string(msg))
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for broadcast")
		}
	}
}

func TestCircleEventHubCloseClosesSubscribers(t *testing.T) {
	rdb, _ := testutil.NewRedis(t)
	hub := NewCircleEventHub(rdb, CircleUpdateChannel)

	ch, unsubscribe := hub.Subscribe()
	hub.Close()

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber channel not closed")
	}

	// Safe after Close
	unsubscribe()
}
