// Package events provides the single-threaded pub/sub bus that republishes
// component-level changes as typed events, with optional batching and a
// bounded history for inspection.
package events

import (
	"log/slog"

	"github.com/pthm-cable/cultivar/config"
)

// Type identifies an event category.
type Type uint8

const (
	StageChanged Type = iota
	HealthChanged
	ResourceLevelChanged
	CriticalResource
	GrowthProgressChanged
	GrowthAnomaly
	HarvestCompleted
	ValidationFailed
	ValueCorrected
)

var typeNames = [...]string{
	"stage_changed",
	"health_changed",
	"resource_level_changed",
	"critical_resource",
	"growth_progress_changed",
	"growth_anomaly",
	"harvest_completed",
	"validation_failed",
	"value_corrected",
}

func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "unknown"
}

// Event is one raised notification. Field/Old/New describe value changes;
// Message carries free-form detail for the rest.
type Event struct {
	Type    Type
	Day     float64 // sim-day at which the event was raised
	Source  string  // raising component
	Field   string
	Old     float64
	New     float64
	Message string
}

// Subscription is the handle returned by Subscribe, used to unsubscribe.
type Subscription struct {
	id int
	t  Type
}

type subscriber struct {
	id int
	fn func(Event)
}

// Bus queues raised events and dispatches them on Update. Everything runs on
// the host's single logical thread; the queue and batch buffer are the only
// deferred-execution mechanisms in the core.
type Bus struct {
	cfg config.EventsConfig

	clock   float64
	nextSub int
	subs    map[Type][]subscriber

	queue   []Event
	history []Event

	batch      []Event
	batchStart float64 // sim-day the oldest batched event arrived
	onBatch    func([]Event)

	callbackFailures int
}

// NewBus creates an event bus.
func NewBus(cfg config.EventsConfig) *Bus {
	return &Bus{
		cfg:  cfg,
		subs: make(map[Type][]subscriber),
	}
}

// Subscribe registers a callback for one event type and returns its handle.
// Dispatch order follows subscription order.
func (b *Bus) Subscribe(t Type, fn func(Event)) Subscription {
	b.nextSub++
	b.subs[t] = append(b.subs[t], subscriber{id: b.nextSub, fn: fn})
	return Subscription{id: b.nextSub, t: t}
}

// Unsubscribe removes a subscription. Unknown handles are ignored.
func (b *Bus) Unsubscribe(s Subscription) {
	list := b.subs[s.t]
	for i, sub := range list {
		if sub.id == s.id {
			b.subs[s.t] = append(list[:i], list[i+1:]...)
			return
		}
	}
}

// Raise enqueues an event for the next dispatch pass, stamping it with the
// current sim-day.
func (b *Bus) Raise(ev Event) {
	ev.Day = b.clock
	b.queue = append(b.queue, ev)
}

// OnBatch registers the aggregate callback invoked on each batch flush.
func (b *Bus) OnBatch(fn func([]Event)) { b.onBatch = fn }

// Update advances the bus clock, drains the queue, and flushes the batch
// buffer when its delay window elapses.
func (b *Bus) Update(deltaDays float64) {
	b.clock += deltaDays

	// Drain the queue. Callbacks may raise further events; those wait for
	// the next pass, so a misbehaving subscriber cannot livelock a tick.
	pending := b.queue
	b.queue = nil
	for _, ev := range pending {
		b.dispatch(ev)
		b.remember(ev)
		if b.cfg.BatchEnabled {
			if len(b.batch) == 0 {
				b.batchStart = b.clock
			}
			b.batch = append(b.batch, ev)
			if b.cfg.BatchMaxSize > 0 && len(b.batch) >= b.cfg.BatchMaxSize {
				b.FlushBatch()
			}
		}
	}

	if b.cfg.BatchEnabled && len(b.batch) > 0 && b.clock-b.batchStart >= b.cfg.BatchDelayDays {
		b.FlushBatch()
	}
}

// FlushBatch delivers the accumulated batch to the aggregate callback and
// clears the buffer.
func (b *Bus) FlushBatch() {
	if len(b.batch) == 0 {
		return
	}
	batch := b.batch
	b.batch = nil
	if b.onBatch != nil {
		b.safeBatch(batch)
	}
}

// dispatch delivers one event to every active subscriber of its type. A
// panicking callback is caught and counted; remaining subscribers still run.
func (b *Bus) dispatch(ev Event) {
	for _, sub := range b.subs[ev.Type] {
		b.safeCall(sub.fn, ev)
	}
}

func (b *Bus) safeCall(fn func(Event), ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.callbackFailures++
			slog.Warn("event callback failed", "type", ev.Type.String(), "panic", r)
		}
	}()
	fn(ev)
}

func (b *Bus) safeBatch(batch []Event) {
	defer func() {
		if r := recover(); r != nil {
			b.callbackFailures++
			slog.Warn("batch callback failed", "size", len(batch), "panic", r)
		}
	}()
	b.onBatch(batch)
}

func (b *Bus) remember(ev Event) {
	if b.cfg.HistorySize <= 0 {
		return
	}
	b.history = append(b.history, ev)
	if len(b.history) > b.cfg.HistorySize {
		b.history = b.history[len(b.history)-b.cfg.HistorySize:]
	}
}

// History returns dispatched events, oldest first.
func (b *Bus) History() []Event {
	out := make([]Event, len(b.history))
	copy(out, b.history)
	return out
}

// HistoryByType filters the history to one event type.
func (b *Bus) HistoryByType(t Type) []Event {
	var out []Event
	for _, ev := range b.history {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

// Pending returns the number of events queued for the next dispatch pass.
func (b *Bus) Pending() int { return len(b.queue) }

// CallbackFailures returns the count of recovered subscriber failures.
func (b *Bus) CallbackFailures() int { return b.callbackFailures }
