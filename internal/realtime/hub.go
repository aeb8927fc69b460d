package realtime

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/class-schedule/internal/models"
)

const subscriberBuffer = 16

// Subscription receives class events until it is closed.
type Subscription struct {
	ID     string
	Events <-chan models.ClassEvent

	ch chan models.ClassEvent
}

// Hub fans class events out to subscribers. Publishing never blocks: a
// subscriber whose buffer is full misses the event.
type Hub struct {
	mu       sync.RWMutex
	subs     map[string]*Subscription
	onChange func(int)
	logger   *zap.Logger
}

// NewHub constructs a hub. onChange, when non-nil, is called with the
// subscriber count after every subscribe and unsubscribe.
func NewHub(logger *zap.Logger, onChange func(int)) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{subs: make(map[string]*Subscription), onChange: onChange, logger: logger}
}

// Subscribe registers a new subscriber.
func (h *Hub) Subscribe() *Subscription {
	ch := make(chan models.ClassEvent, subscriberBuffer)
	sub := &Subscription{ID: uuid.NewString(), Events: ch, ch: ch}

	h.mu.Lock()
	h.subs[sub.ID] = sub
	n := len(h.subs)
	h.mu.Unlock()

	h.notify(n)
	return sub
}

// Unsubscribe removes the subscriber and closes its channel. It is safe to
// call more than once.
func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	if _, ok := h.subs[sub.ID]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.subs, sub.ID)
	close(sub.ch)
	n := len(h.subs)
	h.mu.Unlock()

	h.notify(n)
}

// Publish delivers the event to every subscriber with buffer space.
func (h *Hub) Publish(event models.ClassEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, sub := range h.subs {
		select {
		case sub.ch <- event:
		default:
			h.logger.Warn("dropping class event for slow subscriber", zap.String("subscriber", id), zap.String("event", string(event.Event)))
		}
	}
}

// Count returns the number of subscribers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) notify(n int) {
	if h.onChange != nil {
		h.onChange(n)
	}
}
