// internal/bridge/bus.go
package bridge

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Event is a message delivered on a bus topic. Result-delivery events
// carry the decoded payload in Payload; outbound command events carry
// framed bytes in Data.
type Event struct {
	Topic     string    `json:"topic"`
	Kind      string    `json:"kind,omitempty"`
	Payload   string    `json:"payload,omitempty"`
	Data      []byte    `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Subscription is a handle to a topic subscription. Its channel is
// closed when the subscription is removed from the bus.
type Subscription struct {
	topic string
	ch    chan Event
}

// Topic returns the topic this subscription is attached to
func (s *Subscription) Topic() string {
	return s.topic
}

// C returns the event delivery channel
func (s *Subscription) C() <-chan Event {
	return s.ch
}

// Bus is an in-process publish/subscribe bus. Delivery is non-blocking:
// events for a subscriber whose buffer is full are dropped rather than
// stalling the publisher.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string][]*Subscription
	logger      *zap.Logger
}

// NewBus creates a new event bus
func NewBus(logger *zap.Logger) *Bus {
	return &Bus{
		subscribers: make(map[string][]*Subscription),
		logger:      logger,
	}
}

// Subscribe registers a new subscription on a topic
func (b *Bus) Subscribe(topic string) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &Subscription{
		topic: topic,
		ch:    make(chan Event, 64),
	}
	b.subscribers[topic] = append(b.subscribers[topic], sub)
	return sub
}

// Unsubscribe removes a subscription and closes its channel. Safe to
// call more than once for the same handle.
func (b *Bus) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subscribers[sub.topic]
	for i, existing := range subs {
		if existing == sub {
			b.subscribers[sub.topic] = append(subs[:i], subs[i+1:]...)
			close(sub.ch)
			return
		}
	}
}

// Publish delivers an event to every subscriber of its topic
func (b *Bus) Publish(topic string, ev Event) {
	ev.Topic = topic
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subscribers[topic] {
		select {
		case sub.ch <- ev:
		default:
			if b.logger != nil {
				b.logger.Warn("Subscriber buffer full, dropping event",
					zap.String("topic", topic),
				)
			}
		}
	}
}

// Send publishes raw bytes on a topic. It is the outbound command
// primitive consumed by the scan session.
func (b *Bus) Send(topic string, data []byte) error {
	b.Publish(topic, Event{Data: data})
	return nil
}
