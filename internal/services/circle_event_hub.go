package services

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/savings-circle/backend/internal/logger"
)

const (
	hubChannelSize        = 1024
	subscriberChannelSize = 64
)

// CircleEventHub fans Redis pub/sub messages out to SSE clients so each HTTP
// stream does not open its own Redis subscription.
type CircleEventHub struct {
	redis   *redis.Client
	channel string

	mu          sync.RWMutex
	subscribers map[chan []byte]struct{}

	cancel context.CancelFunc
	done   chan struct{}
}

// NewCircleEventHub subscribes to channel until Close is called
func NewCircleEventHub(rdb *redis.Client, channel string) *CircleEventHub {
	ctx, cancel := context.WithCancel(context.Background())
	hub := &CircleEventHub{
		redis:       rdb,
		channel:     channel,
		subscribers: make(map[chan []byte]struct{}),
		cancel:      cancel,
		done:        make(chan struct{}),
	}

	go hub.run(ctx)

	return hub
}

func (h *CircleEventHub) run(ctx context.Context) {
	defer close(h.done)

	for {
		pubsub := h.redis.Subscribe(ctx, h.channel)
		ch := pubsub.Channel(redis.WithChannelSize(hubChannelSize))

	receive:
		for {
			select {
			case <-ctx.Done():
				_ = pubsub.Close()
				return
			case msg, ok := <-ch:
				if !ok {
					break receive
				}
				h.broadcast([]byte(msg.Payload))
			}
		}

		_ = pubsub.Close()
		logger.Warn("CircleEventHub: Subscription to %s dropped, resubscribing", h.channel)

		// Avoid a tight loop while Redis is down
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second):
		}
	}
}

func (h *CircleEventHub) broadcast(payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subscribers {
		select {
		case sub <- payload:
		default:
			// Slow subscriber: drop its oldest message to make room
			select {
			case <-sub:
			default:
			}
			select {
			case sub <- payload:
			default:
			}
		}
	}
}

// Subscribe registers a listener and returns its channel plus a cleanup function
func (h *CircleEventHub) Subscribe() (<-chan []byte, func()) {
	ch := make(chan []byte, subscriberChannelSize)

	h.mu.Lock()
	h.subscribers[ch] = struct{}{}
	h.mu.Unlock()

	unsubscribe := func() {
		h.mu.Lock()
		if _, ok := h.subscribers[ch]; ok {
			delete(h.subscribers, ch)
			close(ch)
		}
		h.mu.Unlock()
	}

	return ch, unsubscribe
}

// Close stops the Redis subscription and closes every subscriber channel
func (h *CircleEventHub) Close() {
	h.cancel()
	<-h.done

	h.mu.Lock()
	for ch := range h.subscribers {
		delete(h.subscribers, ch)
		close(ch)
	}
	h.mu.Unlock()
}
