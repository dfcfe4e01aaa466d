package notify

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/noteflux/ai-router/internal/types"
)

// maxRecentEvents bounds the retained event history.
const maxRecentEvents = 50

// Hub is the fire-and-forget notification boundary. Publish never blocks:
// events land in a bounded ring of the most recent entries, and subscriber
// channels receive on a send-or-drop basis.
type Hub struct {
	logger  *logrus.Logger
	enabled func() bool

	mu          sync.Mutex
	recent      []types.Event
	subscribers []chan types.Event
}

// NewHub creates a notification hub. The enabled function is consulted per
// publish, so an operator toggling notifications takes effect on the next
// event without re-wiring. A nil function means always enabled.
func NewHub(enabled func() bool, logger *logrus.Logger) *Hub {
	if enabled == nil {
		enabled = func() bool { return true }
	}
	return &Hub{
		logger:  logger,
		enabled: enabled,
	}
}

// Publish records the event and offers it to every subscriber without
// blocking. When the hub is disabled only error-severity events are kept.
func (h *Hub) Publish(event types.Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.enabled() && event.Severity != types.SeverityError {
		return
	}

	h.recent = append(h.recent, event)
	if len(h.recent) > maxRecentEvents {
		h.recent = h.recent[len(h.recent)-maxRecentEvents:]
	}

	for _, ch := range h.subscribers {
		select {
		case ch <- event:
		default:
			// Slow observer; drop rather than stall the pipeline.
		}
	}

	h.logger.WithFields(logrus.Fields{
		"type":     event.Type,
		"severity": event.Severity,
	}).Debug("Event published")
}

// Subscribe returns a buffered channel of future events. Observers that fall
// behind miss events instead of applying backpressure.
func (h *Hub) Subscribe() <-chan types.Event {
	ch := make(chan types.Event, maxRecentEvents)

	h.mu.Lock()
	defer h.mu.Unlock()
	h.subscribers = append(h.subscribers, ch)
	return ch
}

// Recent returns a copy of the retained event history, oldest first.
func (h *Hub) Recent() []types.Event {
	h.mu.Lock()
	defer h.mu.Unlock()

	events := make([]types.Event, len(h.recent))
	copy(events, h.recent)
	return events
}
