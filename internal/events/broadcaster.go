// Package events implements the Event Broadcaster (§5, §6.2): a multicast
// of typed agent events to any number of subscribers, each with its own
// bounded backlog. A slow subscriber is dropped rather than allowed to
// block the scheduler — producers never wait on a consumer.
package events

import (
	"sync"
	"time"
)

// Type is one of the required WebSocket event types (§6.2).
type Type string

const (
	StateChanged       Type = "state_changed"
	ChatStreaming      Type = "chat_streaming"
	ApprovalRequest    Type = "approval_request"
	CycleStart         Type = "cycle_start"
	OrientationUpdate  Type = "orientation_update"
	JournalWritten     Type = "journal_written"
	AttentionNeeded    Type = "attention_needed"
	DreamCycleStarted  Type = "dream_cycle_started"
	DreamCycleFinished Type = "dream_cycle_completed"
	ErrorEvent         Type = "error"
)

// Event is one message pushed to every subscriber. Payload is whatever
// event-specific data the type carries (an orientation snapshot, a chat
// token, an anomaly description, ...); it is marshaled as the `payload`
// field alongside `event_type` and `emitted_at`.
type Event struct {
	EventType Type      `json:"event_type"`
	Payload   any       `json:"payload,omitempty"`
	EmittedAt time.Time `json:"emitted_at"`
}

// backlogSize bounds each subscriber's channel; beyond this, the
// subscriber is dropped rather than the producer blocking (§5: "bounded
// backlog dropping slow subscribers rather than blocking producers").
const backlogSize = 64

// Broadcaster fans a single stream of Events out to many subscribers.
type Broadcaster struct {
	mu          sync.Mutex
	subscribers map[int]chan Event
	nextID      int
}

// New constructs an empty Broadcaster.
func New() *Broadcaster {
	return &Broadcaster{subscribers: make(map[int]chan Event)}
}

// Subscribe registers a new subscriber and returns its event channel plus
// an unsubscribe function the caller must call when done listening.
func (b *Broadcaster) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	ch := make(chan Event, backlogSize)
	b.subscribers[id] = ch
	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if existing, ok := b.subscribers[id]; ok {
			delete(b.subscribers, id)
			close(existing)
		}
	}
	return ch, unsubscribe
}

// Publish pushes an event to every current subscriber. A subscriber whose
// backlog is full is dropped (its channel closed and removed) rather than
// blocking this call.
func (b *Broadcaster) Publish(eventType Type, payload any) {
	ev := Event{EventType: eventType, Payload: payload, EmittedAt: time.Now()}

	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subscribers {
		select {
		case ch <- ev:
		default:
			delete(b.subscribers, id)
			close(ch)
		}
	}
}

// SubscriberCount reports how many subscribers are currently attached.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers)
}
