// Package hooks fans synthesis, routing and snapshot events out to
// subscribers such as the gateway's WebSocket broadcaster.
package hooks

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/UltravioletaDAO/karmakadabra-sub003/internal/logging"
)

const (
	EventSynthesisComplete = "synthesis_complete"
	EventSynthesisFailed   = "synthesis_failed"
	EventAgentSkipped      = "agent_skipped"
	EventTaskRouted        = "task_routed"
	EventSnapshotSaved     = "snapshot_saved"
	EventSnapshotFailed    = "snapshot_failed"
	EventGatewayStart      = "gateway_start"
	EventGatewayStop       = "gateway_stop"
)

// AllEvents is every event the process emits.
var AllEvents = []string{
	EventSynthesisComplete,
	EventSynthesisFailed,
	EventAgentSkipped,
	EventTaskRouted,
	EventSnapshotSaved,
	EventSnapshotFailed,
	EventGatewayStart,
	EventGatewayStop,
}

// Payload is what a subscriber receives.
type Payload struct {
	Event string         `json:"event"`
	Time  time.Time      `json:"time"`
	Data  map[string]any `json:"data,omitempty"`
}

// Handler receives events. A returned error is logged and does not stop
// delivery to later subscribers.
type Handler func(ctx context.Context, p Payload) error

type subscription struct {
	id      uint64
	name    string
	handler Handler
}

// Manager keeps subscriptions per event. A nil *Manager accepts Emit and
// drops the event.
type Manager struct {
	mu     sync.RWMutex
	subs   map[string][]subscription
	nextID uint64
	log    *logging.Logger
	now    func() time.Time
}

func NewManager(log *logging.Logger) *Manager {
	return &Manager{
		subs: make(map[string][]subscription),
		log:  log.Sub("hooks"),
		now:  time.Now,
	}
}

// On subscribes handler to events, or to AllEvents when none are given. The
// name labels log lines. Calling the returned func removes the subscription
// from every event it was added to.
func (m *Manager) On(name string, handler Handler, events ...string) (cancel func()) {
	if len(events) == 0 {
		events = AllEvents
	}
	m.mu.Lock()
	m.nextID++
	sub := subscription{id: m.nextID, name: name, handler: handler}
	for _, ev := range events {
		m.subs[ev] = append(m.subs[ev], sub)
	}
	m.mu.Unlock()
	m.log.Debug().Str("handler", name).Strs("events", events).Msg("subscribed")

	var once sync.Once
	return func() { once.Do(func() { m.remove(sub.id) }) }
}

func (m *Manager) remove(id uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for ev, subs := range m.subs {
		subs = slices.DeleteFunc(subs, func(s subscription) bool { return s.id == id })
		if len(subs) == 0 {
			delete(m.subs, ev)
		} else {
			m.subs[ev] = subs
		}
	}
}

// Emit delivers event to its subscribers in subscription order on the
// calling goroutine.
func (m *Manager) Emit(ctx context.Context, event string, data map[string]any) {
	if m == nil {
		return
	}
	m.mu.RLock()
	subs := slices.Clone(m.subs[event])
	m.mu.RUnlock()

	p := Payload{Event: event, Time: m.now().UTC(), Data: data}
	for _, s := range subs {
		if err := s.handler(ctx, p); err != nil {
			m.log.Warn().Err(err).Str("event", event).Str("handler", s.name).Msg("hook failed")
		}
	}
}

// Count returns the number of subscribers to event.
func (m *Manager) Count(event string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subs[event])
}

// Events returns the sorted events that have subscribers.
func (m *Manager) Events() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	events := make([]string, 0, len(m.subs))
	for ev := range m.subs {
		events = append(events, ev)
	}
	slices.Sort(events)
	return events
}
