package bridge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestBus_PublishReachesSubscriber(t *testing.T) {
	bus := NewBus(zap.NewNop())
	sub := bus.Subscribe("test.topic")
	defer bus.Unsubscribe(sub)

	bus.Publish("test.topic", Event{Kind: "hello", Payload: "world"})

	select {
	case ev := <-sub.C():
		assert.Equal(t, "test.topic", ev.Topic)
		assert.Equal(t, "hello", ev.Kind)
		assert.Equal(t, "world", ev.Payload)
		assert.False(t, ev.Timestamp.IsZero())
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestBus_TopicsAreIsolated(t *testing.T) {
	bus := NewBus(zap.NewNop())
	a := bus.Subscribe("topic.a")
	b := bus.Subscribe("topic.b")
	defer bus.Unsubscribe(a)
	defer bus.Unsubscribe(b)

	bus.Publish("topic.a", Event{Payload: "only-a"})

	select {
	case ev := <-a.C():
		assert.Equal(t, "only-a", ev.Payload)
	case <-time.After(time.Second):
		t.Fatal("event not delivered to topic.a")
	}

	select {
	case ev := <-b.C():
		t.Fatalf("topic.b received foreign event: %+v", ev)
	default:
	}
}

func TestBus_MultipleSubscribersEachReceive(t *testing.T) {
	bus := NewBus(zap.NewNop())
	first := bus.Subscribe("fanout")
	second := bus.Subscribe("fanout")
	defer bus.Unsubscribe(first)
	defer bus.Unsubscribe(second)

	bus.Publish("fanout", Event{Payload: "broadcast"})

	for _, sub := range []*Subscription{first, second} {
		select {
		case ev := <-sub.C():
			assert.Equal(t, "broadcast", ev.Payload)
		case <-time.After(time.Second):
			t.Fatal("subscriber missed broadcast")
		}
	}
}

func TestBus_UnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus(zap.NewNop())
	sub := bus.Subscribe("closing")

	bus.Unsubscribe(sub)

	_, open := <-sub.C()
	assert.False(t, open, "channel must be closed after unsubscribe")

	// Repeat unsubscribe and nil handles are tolerated
	bus.Unsubscribe(sub)
	bus.Unsubscribe(nil)

	// Publishing after removal must not panic or deliver
	bus.Publish("closing", Event{Payload: "late"})
}

func TestBus_FullBufferDropsInsteadOfBlocking(t *testing.T) {
	bus := NewBus(zap.NewNop())
	sub := bus.Subscribe("flood")
	defer bus.Unsubscribe(sub)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			bus.Publish("flood", Event{Payload: "x"})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publisher blocked on a full subscriber buffer")
	}

	// The buffer holds exactly its capacity; the rest were dropped
	assert.Len(t, sub.ch, 64)
}

func TestBus_SendWrapsData(t *testing.T) {
	bus := NewBus(zap.NewNop())
	sub := bus.Subscribe("commands")
	defer bus.Unsubscribe(sub)

	require.NoError(t, bus.Send("commands", []byte{0x41, 0x42, 0xFF}))

	select {
	case ev := <-sub.C():
		assert.Equal(t, []byte{0x41, 0x42, 0xFF}, ev.Data)
		assert.Equal(t, "commands", ev.Topic)
	case <-time.After(time.Second):
		t.Fatal("command event not delivered")
	}
}
