// Package notify fans scenario change events out to in-process subscribers
// and, through publishers attached to the bus, to MQTT and websocket peers.
package notify

import (
	"log/slog"
	"slices"
	"sync"
	"time"
)

// Event types
const (
	EventScriptSelected  = "script_selected"
	EventArgumentChanged = "argument_changed"
	EventScenarioSaved   = "scenario_saved"
	EventScenarioLoaded  = "scenario_loaded"
)

// Event is a scenario change notification.
type Event struct {
	Type     string    `json:"type"`
	Scenario string    `json:"scenario"`
	Data     any       `json:"data,omitempty"`
	Time     time.Time `json:"time"`
}

type Handler func(Event)

// Filter selects events for a subscription. Empty fields match anything.
type Filter struct {
	Types    []string
	Scenario string
}

// Match reports whether e passes the filter.
func (f Filter) Match(e Event) bool {
	if len(f.Types) > 0 && !slices.Contains(f.Types, e.Type) {
		return false
	}
	return f.Scenario == "" || f.Scenario == e.Scenario
}

type subscription struct {
	id     uint64
	filter Filter
	h      Handler
}

// Bus delivers events to subscribers synchronously, in subscription order.
type Bus struct {
	mu     sync.RWMutex
	subs   []subscription
	nextID uint64
	logger *slog.Logger
}

func NewBus(logger *slog.Logger) *Bus {
	return &Bus{logger: logger.With("component", "notify")}
}

// Subscribe registers h for events matching f and returns its unsubscribe
// func. Unsubscribing twice is a no-op.
func (b *Bus) Subscribe(f Filter, h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, filter: f, h: h})
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.subs = slices.DeleteFunc(b.subs, func(s subscription) bool { return s.id == id })
	}
}

// On subscribes h to one event type.
func (b *Bus) On(eventType string, h Handler) func() {
	return b.Subscribe(Filter{Types: []string{eventType}}, h)
}

// OnAll subscribes h to every event.
func (b *Bus) OnAll(h Handler) func() {
	return b.Subscribe(Filter{}, h)
}

// Emit stamps a zero Time with now and delivers event to every matching
// subscriber, returning how many handled it without panicking.
func (b *Bus) Emit(event Event) int {
	if event.Time.IsZero() {
		event.Time = time.Now()
	}

	b.mu.RLock()
	var matched []Handler
	for _, s := range b.subs {
		if s.filter.Match(event) {
			matched = append(matched, s.h)
		}
	}
	b.mu.RUnlock()

	delivered := 0
	for _, h := range matched {
		if b.deliver(h, event) {
			delivered++
		}
	}
	b.logger.Debug("event emitted", "type", event.Type, "scenario", event.Scenario, "delivered", delivered)
	return delivered
}

func (b *Bus) deliver(h Handler, event Event) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panic", "type", event.Type, "scenario", event.Scenario, "panic", r)
			ok = false
		}
	}()
	h(event)
	return true
}
