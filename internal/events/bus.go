// Package events provides the typed event bus used for cross-component
// signaling. Frontend tool calls publish here; page surfaces subscribe.
package events

import (
	"log/slog"
	"sync"
	"time"
)

// Event is a cross-component signal.
type Event interface {
	isEvent()
}

// Navigate asks the hosting surface to switch to a page.
type Navigate struct {
	Page string
}

func (Navigate) isEvent() {}

// RecalculateChart asks the chart surface to re-request a chart from the
// backend.
type RecalculateChart struct {
	ChartID string
}

func (RecalculateChart) isEvent() {}

// SetTransitDate asks the transit surface to move to a new date.
type SetTransitDate struct {
	Date time.Time
}

func (SetTransitDate) isEvent() {}

// Bus delivers events synchronously to all subscribers. A panicking
// subscriber is contained and logged; it never takes down the publisher.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]func(Event)
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]func(Event))}
}

// Subscribe registers a handler and returns its unsubscribe function.
func (b *Bus) Subscribe(fn func(Event)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	b.subs[id] = fn

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs, id)
	}
}

// Publish delivers the event to every current subscriber in turn.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	handlers := make([]func(Event), 0, len(b.subs))
	for _, fn := range b.subs {
		handlers = append(handlers, fn)
	}
	b.mu.RUnlock()

	for _, fn := range handlers {
		deliver(fn, event)
	}
}

func deliver(fn func(Event), event Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Event subscriber panicked", "event", event, "panic", r)
		}
	}()
	fn(event)
}
