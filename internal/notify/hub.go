package notify

import (
	"sync"

	"github.com/mnemohq/mnemo/internal/domain"
	"go.uber.org/zap"
)

// subscriberBuffer is the per-subscriber channel capacity. Events beyond a
// full buffer are dropped; delivery is best-effort by contract.
const subscriberBuffer = 16

// Subscription is one live subscriber stream. The channel is owned by the
// receiving connection and closed by Close.
type Subscription struct {
	Events chan domain.ChangeEvent
	hub    *Hub
	userID string
}

// Close detaches the subscription from the hub and closes its channel.
func (s *Subscription) Close() {
	s.hub.remove(s)
}

// Hub fans change events out to live subscribers keyed by tenant. Publish
// never blocks on a slow subscriber.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[*Subscription]struct{}
	logger *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		subs:   make(map[string]map[*Subscription]struct{}),
		logger: logger,
	}
}

// Subscribe registers a new subscriber for the given tenant.
func (h *Hub) Subscribe(userID string) *Subscription {
	sub := &Subscription{
		Events: make(chan domain.ChangeEvent, subscriberBuffer),
		hub:    h,
		userID: userID,
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[userID] == nil {
		h.subs[userID] = make(map[*Subscription]struct{})
	}
	h.subs[userID][sub] = struct{}{}
	return sub
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[sub.userID]
	if !ok {
		return
	}
	if _, ok := set[sub]; !ok {
		return
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(h.subs, sub.userID)
	}
	close(sub.Events)
}

// Publish delivers the event to every live subscriber of its tenant,
// dropping on full buffers.
func (h *Hub) Publish(event domain.ChangeEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subs[event.UserID] {
		select {
		case sub.Events <- event:
		default:
			h.logger.Warn("dropping change event for slow subscriber",
				zap.String("user_id", event.UserID),
				zap.String("type", event.Type))
		}
	}
}

// SubscriberCount reports live subscribers for a tenant.
func (h *Hub) SubscriberCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[userID])
}

// Shutdown sends a terminal shutdown record to every subscriber and closes
// all channels.
func (h *Hub) Shutdown(event domain.ChangeEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for userID, set := range h.subs {
		for sub := range set {
			ev := event
			ev.UserID = userID
			select {
			case sub.Events <- ev:
			default:
			}
			close(sub.Events)
		}
		delete(h.subs, userID)
	}
}
