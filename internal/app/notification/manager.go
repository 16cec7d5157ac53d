// Package notification broadcasts reader events to subscribed streams.
package notification

import (
	"sync"
	"time"

	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"
)

// Type represents a notification type.
type Type string

const (
	TypeStatus          Type = "status"
	TypeWordShown       Type = "word_shown"
	TypeStateChanged    Type = "state_changed"
	TypeCompleted       Type = "completed"
	TypeCleared         Type = "cleared"
	TypeValidationError Type = "validation_error"
	TypeDocumentLoaded  Type = "document_loaded"
)

// Notification is a single event delivered to subscribers.
type Notification struct {
	SequenceNo uint64
	Type       Type
	Word       string // TypeWordShown
	Index      int    // TypeWordShown
	Total      int    // Number of words in the document
	State      string // Playback state after the event
	Message    string // TypeValidationError, TypeDocumentLoaded
	Time       time.Time
}

// Stream represents a notification stream for a subscriber.
type Stream interface {
	Send(*Notification) error
}

// queueSize is the number of notifications a subscriber may fall behind
// before it is evicted.
const queueSize = 256

// subscription represents a subscriber's subscription.
// A single writer goroutine drains queue into stream.
type subscription struct {
	id     string
	stream Stream
	queue  chan Notification
	done   chan struct{}
	once   sync.Once
}

func newSubscription(stream Stream) *subscription {
	return &subscription{
		id:     uuid.New().String(),
		stream: stream,
		queue:  make(chan Notification, queueSize),
		done:   make(chan struct{}),
	}
}

func (s *subscription) close() {
	s.once.Do(func() { close(s.done) })
}

// Manager manages notification subscriptions and broadcasting.
type Manager struct {
	mu            sync.Mutex
	subscriptions map[string]*subscription
	sequenceNo    uint64
	sequenceNoMu  sync.Mutex
	sendTimeout   time.Duration
}

// NewManager creates a new notification manager.
// A subscriber whose send takes longer than sendTimeout (500ms if zero) is evicted.
func NewManager(sendTimeout time.Duration) *Manager {
	if sendTimeout <= 0 {
		sendTimeout = 500 * time.Millisecond
	}
	return &Manager{
		subscriptions: make(map[string]*subscription),
		sendTimeout:   sendTimeout,
	}
}

// Subscribe adds a new subscription and returns the subscription ID.
func (m *Manager) Subscribe(stream Stream) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	sub := newSubscription(stream)
	m.addLocked(sub)
	return sub.id
}

// SubscribeWithInitial adds a subscription whose first notification is the
// one built by initial. Broadcasts wait while initial runs, so nothing can be
// queued ahead of it.
func (m *Manager) SubscribeWithInitial(stream Stream, initial func() Notification) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := initial()
	m.stampLocked(&n)

	sub := newSubscription(stream)
	sub.queue <- n
	m.addLocked(sub)
	return sub.id
}

// NextSequenceNo returns the next sequence number and increments the counter.
func (m *Manager) NextSequenceNo() uint64 {
	m.sequenceNoMu.Lock()
	defer m.sequenceNoMu.Unlock()
	m.sequenceNo++
	return m.sequenceNo
}

// Unsubscribe removes a subscription.
func (m *Manager) Unsubscribe(subscriptionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sub, ok := m.subscriptions[subscriptionID]; ok {
		delete(m.subscriptions, subscriptionID)
		sub.close()
	}
}

// Done returns a channel closed when the subscription ends, either through
// Unsubscribe, Close or eviction. Unknown IDs get a closed channel.
func (m *Manager) Done(subscriptionID string) <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sub, ok := m.subscriptions[subscriptionID]; ok {
		return sub.done
	}
	closed := make(chan struct{})
	close(closed)
	return closed
}

// Broadcast queues a notification for every subscriber and returns without
// waiting for delivery. A subscriber whose queue is full is evicted.
func (m *Manager) Broadcast(n Notification) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stampLocked(&n)

	for id, sub := range m.subscriptions {
		select {
		case sub.queue <- n:
		default:
			zlog.Warn().Msgf("notification: subscriber fell behind, evicting: subscription=%s", id)
			m.evictLocked(sub)
		}
	}
}

// SubscriberCount returns the number of active subscribers.
func (m *Manager) SubscriberCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subscriptions)
}

// Close closes the manager and removes all subscriptions.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, sub := range m.subscriptions {
		sub.close()
	}
	m.subscriptions = make(map[string]*subscription)
}

// stampLocked assigns the sequence number and time.
// Must be called with lock held so queues see increasing sequence numbers.
func (m *Manager) stampLocked(n *Notification) {
	n.SequenceNo = m.NextSequenceNo()
	if n.Time.IsZero() {
		n.Time = time.Now()
	}
}

// addLocked registers sub and starts its writer.
// Must be called with lock held.
func (m *Manager) addLocked(sub *subscription) {
	m.subscriptions[sub.id] = sub
	go m.write(sub)
}

// evictLocked removes sub if it is still registered.
// Must be called with lock held.
func (m *Manager) evictLocked(sub *subscription) {
	if m.subscriptions[sub.id] == sub {
		delete(m.subscriptions, sub.id)
	}
	sub.close()
}

func (m *Manager) evict(sub *subscription, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	zlog.Warn().Msgf("notification: evicting subscriber: subscription=%s reason=%s", sub.id, reason)
	m.evictLocked(sub)
}

// write delivers queued notifications to one subscriber in order.
func (m *Manager) write(sub *subscription) {
	for {
		select {
		case <-sub.done:
			return
		default:
		}

		select {
		case <-sub.done:
			return
		case n := <-sub.queue:
			timer := time.AfterFunc(m.sendTimeout, func() {
				m.evict(sub, "send timed out")
			})
			err := sub.stream.Send(&n)
			timer.Stop()
			if err != nil {
				m.evict(sub, err.Error())
				return
			}
		}
	}
}
