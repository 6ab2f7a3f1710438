// Package events provides a small in-process publish/subscribe bus,
// typed by payload. Components announce results on it instead of
// holding references to their consumers.
package events

import (
	"sort"
	"sync"
)

// TopicAll subscribes a handler to every topic on the bus
const TopicAll = "*"

// Subscription identifies a registered handler so it can be removed
type Subscription struct {
	topic string
	id    int
}

// Bus delivers published values to subscribed handlers. Delivery is
// synchronous and serialized: handlers for one Publish finish before
// the next Publish starts delivering, so subscribers observe events in
// publication order.
type Bus[T any] struct {
	mu        sync.RWMutex
	deliverMu sync.Mutex
	subs      map[string]map[int]func(T)
	nextID    int
}

// NewBus creates an empty bus
func NewBus[T any]() *Bus[T] {
	return &Bus[T]{subs: make(map[string]map[int]func(T))}
}

// Subscribe registers fn for the topic. Use TopicAll to receive every
// publication regardless of topic.
func (b *Bus[T]) Subscribe(topic string, fn func(T)) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subs[topic] == nil {
		b.subs[topic] = make(map[int]func(T))
	}
	b.nextID++
	b.subs[topic][b.nextID] = fn
	return Subscription{topic: topic, id: b.nextID}
}

// Unsubscribe removes a handler. Unsubscribing twice is harmless.
func (b *Bus[T]) Unsubscribe(sub Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if handlers := b.subs[sub.topic]; handlers != nil {
		delete(handlers, sub.id)
		if len(handlers) == 0 {
			delete(b.subs, sub.topic)
		}
	}
}

// Publish delivers the value to the topic's handlers and to TopicAll
// handlers, in subscription order. It returns after every handler ran.
func (b *Bus[T]) Publish(topic string, value T) {
	topics := []string{topic}
	if topic != TopicAll {
		topics = append(topics, TopicAll)
	}

	b.mu.RLock()
	handlers := make([]func(T), 0)
	for _, t := range topics {
		ids := make([]int, 0, len(b.subs[t]))
		for id := range b.subs[t] {
			ids = append(ids, id)
		}
		sort.Ints(ids)
		for _, id := range ids {
			handlers = append(handlers, b.subs[t][id])
		}
	}
	b.mu.RUnlock()

	b.deliverMu.Lock()
	defer b.deliverMu.Unlock()
	for _, fn := range handlers {
		fn(value)
	}
}

// SubscriberCount reports how many handlers a topic has, TopicAll not
// included
func (b *Bus[T]) SubscriberCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}
