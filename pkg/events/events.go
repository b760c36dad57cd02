package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of event
type EventType string

const (
	EventFailover          EventType = "failover.transition"
	EventFailback          EventType = "failback.transition"
	EventNoTargets         EventType = "failover.no_targets"
	EventTargetsRestored   EventType = "failover.restored"
	EventContainerRestart  EventType = "container.restarted"
	EventRestartFailed     EventType = "container.restart_failed"
	EventRestartRefused    EventType = "container.restart_refused"
	EventContainerMissing  EventType = "container.missing"
	EventNetworkRecreated  EventType = "network.recreated"
	EventNetworkFailed     EventType = "network.recreate_failed"
	EventPrediction        EventType = "prediction.fired"
	EventPreventiveRestart EventType = "prediction.restarted"
	EventPreventiveRefused EventType = "prediction.restart_refused"
	EventPreventiveFailed  EventType = "prediction.restart_failed"
	EventRuntimeDegraded   EventType = "runtime.degraded"
)

// Severity ranks how urgently a human should look at an event
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityDegraded Severity = "degraded"
	SeverityCritical Severity = "critical"
)

// Event is an alert-worthy occurrence in one of the control loops
type Event struct {
	ID        string            `json:"id"`
	Type      EventType         `json:"type"`
	Severity  Severity          `json:"severity"`
	Source    string            `json:"source"`
	Timestamp time.Time         `json:"timestamp"`
	Message   string            `json:"message"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// New builds an event with a fresh ID
func New(typ EventType, severity Severity, source, message string) *Event {
	return &Event{
		ID:       uuid.NewString(),
		Type:     typ,
		Severity: severity,
		Source:   source,
		Message:  message,
	}
}

// With attaches a metadata pair and returns the event for chaining
func (e *Event) With(key, value string) *Event {
	if e.Metadata == nil {
		e.Metadata = make(map[string]string)
	}
	e.Metadata[key] = value
	return e
}

// Publisher is what the control loops depend on to raise alerts
type Publisher interface {
	Publish(event *Event)
}

// Subscriber is a channel that receives events
type Subscriber chan *Event

// Broker manages event subscriptions and distribution
type Broker struct {
	subscribers map[Subscriber]bool
	mu          sync.RWMutex
	eventCh     chan *Event
	stopCh      chan struct{}
	stopOnce    sync.Once
	dropped     uint64
}

// NewBroker creates a new event broker
func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[Subscriber]bool),
		eventCh:     make(chan *Event, 100),
		stopCh:      make(chan struct{}),
	}
}

// Start begins the broker's event distribution loop
func (b *Broker) Start() {
	go b.run()
}

// Stop stops the broker
func (b *Broker) Stop() {
	b.stopOnce.Do(func() { close(b.stopCh) })
}

// Subscribe creates a new subscription and returns a channel
func (b *Broker) Subscribe(buffer int) Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	if buffer <= 0 {
		buffer = 50
	}
	sub := make(Subscriber, buffer)
	b.subscribers[sub] = true
	return sub
}

// Unsubscribe removes a subscription
func (b *Broker) Unsubscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subscribers[sub] {
		delete(b.subscribers, sub)
		close(sub)
	}
}

// Publish hands an event to the broker. It never blocks the caller: when the
// distribution buffer is full the event is dropped.
func (b *Broker) Publish(event *Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case b.eventCh <- event:
	case <-b.stopCh:
	default:
		b.mu.Lock()
		b.dropped++
		b.mu.Unlock()
	}
}

// Dropped returns how many events were discarded because the broker was full
func (b *Broker) Dropped() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.dropped
}

func (b *Broker) run() {
	for {
		select {
		case event := <-b.eventCh:
			b.broadcast(event)
		case <-b.stopCh:
			return
		}
	}
}

func (b *Broker) broadcast(event *Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subscribers {
		select {
		case sub <- event:
		default:
			// Subscriber buffer full, skip
		}
	}
}

// SubscriberCount returns the number of active subscribers
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
