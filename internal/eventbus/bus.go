// Package eventbus is an in-process fanout of small notifications between
// the bridge and its observers (metrics, debug logs).
package eventbus

import (
	"sync"
	"sync/atomic"
	"time"
)

// Topics published by the bridge.
const (
	// LinkProduced carries a LinkData; a deep link entered the queue.
	LinkProduced = "link.produced"
	// LinkDelivered carries a LinkData; the stream consumer accepted a link.
	LinkDelivered = "link.delivered"
	// EventLogged carries an EventData; an app event reached the SDK.
	EventLogged = "event.logged"
)

type LinkData struct {
	URL    string `json:"url"`
	Source string `json:"source"`
}

type EventData struct {
	Method string `json:"method"`
	Kind   string `json:"kind"`
}

// Event is a lightweight signal. Data should be small.
type Event struct {
	Type string
	Time time.Time
	Data any
}

// Bus never blocks publishers. A subscriber whose buffer is full misses
// the event; Dropped counts those misses.
type Bus interface {
	Publish(e Event)
	Subscribe(buffer int) (ch <-chan Event, unsubscribe func())
	Dropped() uint64
}

func New() Bus {
	return &memBus{subs: map[uint64]chan Event{}}
}

type memBus struct {
	mu      sync.RWMutex
	subs    map[uint64]chan Event
	seq     atomic.Uint64
	dropped atomic.Uint64
}

func (b *memBus) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	// Sends are non-blocking, so holding the read lock keeps close() out
	// without stalling publishers.
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
			b.dropped.Add(1)
		}
	}
}

func (b *memBus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 8
	}
	ch := make(chan Event, buffer)
	id := b.seq.Add(1)

	b.mu.Lock()
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			close(ch)
			b.mu.Unlock()
		})
	}
}

func (b *memBus) Dropped() uint64 { return b.dropped.Load() }
