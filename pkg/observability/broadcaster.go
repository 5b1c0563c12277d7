package observability

import (
	"log/slog"
	"sync"

	"github.com/aretw0/wflow/internal/logging"
	"github.com/aretw0/wflow/pkg/domain"
)

// AllSessions subscribes to the events of every session.
const AllSessions = ""

const subscriberBuffer = 16

// Notification is a committed event of a session.
type Notification struct {
	SessionID string       `json:"session_id"`
	Event     domain.Event `json:"event"`
}

// Broadcaster fans committed events out to live subscribers.
// Publishing never blocks: a subscriber whose buffer is full misses the event.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan Notification]struct{} // SessionID -> set of channels
	logger      *slog.Logger
}

func NewBroadcaster(logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Broadcaster{
		subscribers: make(map[string]map[chan Notification]struct{}),
		logger:      logger,
	}
}

// Subscribe registers a channel for sessionID (AllSessions for every session).
// The returned function unsubscribes and closes the channel.
func (b *Broadcaster) Subscribe(sessionID string) (<-chan Notification, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Notification, subscriberBuffer)
	if _, ok := b.subscribers[sessionID]; !ok {
		b.subscribers[sessionID] = make(map[chan Notification]struct{})
	}
	b.subscribers[sessionID][ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if subs, ok := b.subscribers[sessionID]; ok {
				delete(subs, ch)
				close(ch)
				if len(subs) == 0 {
					delete(b.subscribers, sessionID)
				}
			}
		})
	}
}

// Publish sends the events of sessionID to its subscribers and to AllSessions.
func (b *Broadcaster) Publish(sessionID string, events []domain.Event) {
	if b == nil || len(events) == 0 {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, key := range []string{sessionID, AllSessions} {
		for ch := range b.subscribers[key] {
			for _, ev := range events {
				select {
				case ch <- Notification{SessionID: sessionID, Event: ev}:
				default:
					b.logger.Warn("Subscriber buffer full, dropping event", "session_id", sessionID, "event", ev.Type())
				}
			}
		}
	}
}
