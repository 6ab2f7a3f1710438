package events

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusSubscribe(t *testing.T) {
	t.Run("handlers run in subscription order", func(t *testing.T) {
		bus := NewBus[string]()
		order := make([]string, 0)

		bus.Subscribe("cases", func(string) { order = append(order, "first") })
		bus.Subscribe("cases", func(string) { order = append(order, "second") })
		bus.Subscribe("cases", func(string) { order = append(order, "third") })

		bus.Publish("cases", "hello")

		assert.Equal(t, []string{"first", "second", "third"}, order)
	})

	t.Run("topics are isolated", func(t *testing.T) {
		bus := NewBus[int]()
		var got []int

		bus.Subscribe("a", func(v int) { got = append(got, v) })

		bus.Publish("b", 1)
		bus.Publish("a", 2)

		assert.Equal(t, []int{2}, got)
	})

	t.Run("wildcard receives every topic after topic handlers", func(t *testing.T) {
		bus := NewBus[int]()
		order := make([]string, 0)

		bus.Subscribe(TopicAll, func(int) { order = append(order, "wildcard") })
		bus.Subscribe("a", func(int) { order = append(order, "topic") })

		bus.Publish("a", 1)
		bus.Publish("b", 2)

		assert.Equal(t, []string{"topic", "wildcard", "wildcard"}, order)
	})

	t.Run("publishing on the wildcard topic delivers once", func(t *testing.T) {
		bus := NewBus[int]()
		count := 0

		bus.Subscribe(TopicAll, func(int) { count++ })

		bus.Publish(TopicAll, 1)

		assert.Equal(t, 1, count)
	})
}

func TestBusUnsubscribe(t *testing.T) {
	bus := NewBus[int]()
	count := 0

	sub := bus.Subscribe("a", func(int) { count++ })
	keep := bus.Subscribe("a", func(int) { count += 10 })

	bus.Publish("a", 1)
	require.Equal(t, 11, count)

	bus.Unsubscribe(sub)
	bus.Publish("a", 2)
	assert.Equal(t, 21, count)

	// Removing the same subscription again is a no-op
	bus.Unsubscribe(sub)
	bus.Publish("a", 3)
	assert.Equal(t, 31, count)

	bus.Unsubscribe(keep)
	bus.Publish("a", 4)
	assert.Equal(t, 31, count)
}

func TestBusSubscriberCount(t *testing.T) {
	bus := NewBus[int]()

	assert.Zero(t, bus.SubscriberCount("a"))

	sub := bus.Subscribe("a", func(int) {})
	bus.Subscribe("a", func(int) {})
	bus.Subscribe(TopicAll, func(int) {})

	assert.Equal(t, 2, bus.SubscriberCount("a"))
	assert.Equal(t, 1, bus.SubscriberCount(TopicAll))

	bus.Unsubscribe(sub)
	assert.Equal(t, 1, bus.SubscriberCount("a"))
}

func TestBusConcurrentPublish(t *testing.T) {
	bus := NewBus[int]()
	total := 0

	// deliverMu serializes handler runs, so the bare increment is safe
	bus.Subscribe("counter", func(v int) { total += v })

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				bus.Publish("counter", 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 200, total)
}
