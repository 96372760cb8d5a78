package notifications

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const writeWait = 10 * time.Second

// Hub pushes notifications to connected WebSocket clients. Delivery is
// best-effort: a slow or dead subscriber is dropped, and hub failures never
// propagate to the notification write path.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]map[*subscriber]struct{} // userID -> connections
	log         zerolog.Logger
}

type subscriber struct {
	ch chan Notification
}

// subscriberBuffer bounds per-connection queueing before a client is
// considered too slow and dropped
const subscriberBuffer = 16

// NewHub creates a new notification hub
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		subscribers: make(map[string]map[*subscriber]struct{}),
		log:         log.With().Str("component", "notification_hub").Logger(),
	}
}

// Publish fans a notification out to the user's live connections
func (h *Hub) Publish(n Notification) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subscribers[n.UserID] {
		select {
		case sub.ch <- n:
		default:
			// Subscriber queue full; the read loop will drop it
		}
	}
}

func (h *Hub) subscribe(userID string) *subscriber {
	sub := &subscriber{ch: make(chan Notification, subscriberBuffer)}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subscribers[userID] == nil {
		h.subscribers[userID] = make(map[*subscriber]struct{})
	}
	h.subscribers[userID][sub] = struct{}{}
	return sub
}

func (h *Hub) unsubscribe(userID string, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs := h.subscribers[userID]; subs != nil {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(h.subscribers, userID)
		}
	}
}

// ServeStream upgrades the request to a WebSocket and streams the user's
// notifications until the client disconnects.
func (h *Hub) ServeStream(w http.ResponseWriter, r *http.Request, userID string) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// Same-origin policy is enforced upstream at the gateway
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	sub := h.subscribe(userID)
	defer h.unsubscribe(userID, sub)

	h.log.Debug().Str("user_id", userID).Msg("Notification stream opened")

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case n := <-sub.ch:
			writeCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := wsjson.Write(writeCtx, conn, n)
			cancel()
			if err != nil {
				h.log.Debug().Err(err).Str("user_id", userID).Msg("Notification stream closed")
				return
			}
		}
	}
}
