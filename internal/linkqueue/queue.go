// Package linkqueue buffers deep-link payloads until a consumer is attached.
//
// A Queue has two states:
//   - no consumer (initial): Produce appends to the pending buffer.
//   - consumer attached: Produce delivers synchronously.
//
// Attach drains the pending buffer to the new consumer, in production order,
// before it returns. Every payload is delivered at most once; it is delivered
// exactly once as long as some consumer attaches after it was produced.
//
// All operations are serialized by the queue. Delivery happens while the
// queue lock is held, so a Consumer must not call back into the Queue.
package linkqueue

import (
	"sync"

	logx "sdkbridge/pkg/logx"
)

// Consumer receives one payload at a time.
//
// A non-nil error means the payload was not accepted: the queue keeps it
// (and everything after it) buffered and detaches the consumer.
type Consumer interface {
	Deliver(payload string) error
}

// ConsumerFunc adapts a function to Consumer.
type ConsumerFunc func(payload string) error

func (f ConsumerFunc) Deliver(payload string) error { return f(payload) }

// Stats is a point-in-time view of the queue.
type Stats struct {
	Attached  bool   `json:"attached"`
	Pending   int    `json:"pending"`
	Produced  uint64 `json:"produced"`
	Delivered uint64 `json:"delivered"`
	Attaches  uint64 `json:"attaches"`
	Failures  uint64 `json:"failures"`
}

// Queue is a single-consumer deferred delivery buffer.
// The zero value is ready to use.
type Queue struct {
	mu      sync.Mutex
	cur     *Subscription
	pending []string

	produced  uint64
	delivered uint64
	attaches  uint64
	failures  uint64

	log      logx.Logger
	observer func(Stats)
}

type Option func(*Queue)

func WithLogger(log logx.Logger) Option { return func(q *Queue) { q.log = log } }

// WithObserver installs a hook called (under the queue lock) after every
// state change. It must not block or call back into the queue.
func WithObserver(fn func(Stats)) Option { return func(q *Queue) { q.observer = fn } }

func New(opts ...Option) *Queue {
	q := &Queue{}
	for _, o := range opts {
		o(q)
	}
	return q
}

// Subscription is the handle returned by Attach.
type Subscription struct {
	q        *Queue
	consumer Consumer
	done     chan struct{}
	once     sync.Once
}

// Done is closed once the subscription stops receiving payloads
// (released, detached, replaced, or failed).
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Release detaches the subscription if it is still the active one.
// It reports whether a detach happened.
func (s *Subscription) Release() bool {
	if s == nil || s.q == nil {
		return false
	}
	q := s.q
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.cur != s {
		return false
	}
	q.detachLocked()
	return true
}

func (s *Subscription) end() { s.once.Do(func() { close(s.done) }) }

// Attach makes c the active consumer, replacing any previous one, and
// delivers every pending payload to it before returning.
func (q *Queue) Attach(c Consumer) *Subscription {
	sub := &Subscription{q: q, consumer: c, done: make(chan struct{})}
	if c == nil {
		q.Detach()
		sub.end()
		return sub
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.cur != nil {
		q.cur.end()
		q.log.Debug("consumer replaced", logx.Int("pending", len(q.pending)))
	}
	q.cur = sub
	q.attaches++

	if n := len(q.pending); n > 0 {
		batch := q.pending
		q.pending = nil
		q.log.Debug("draining pending links", logx.Int("count", n))
		for i, p := range batch {
			if !q.deliverLocked(p) {
				// put back what was not delivered, in order
				q.pending = append(append([]string(nil), batch[i:]...), q.pending...)
				break
			}
		}
	}
	q.notifyLocked()
	return sub
}

// Detach clears the active consumer. It is a no-op if none is attached.
func (q *Queue) Detach() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.cur == nil {
		return
	}
	q.detachLocked()
}

// Produce delivers payload to the active consumer, or buffers it.
func (q *Queue) Produce(payload string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.produced++
	if q.cur == nil {
		q.pending = append(q.pending, payload)
		q.notifyLocked()
		return
	}
	if !q.deliverLocked(payload) {
		q.pending = append(q.pending, payload)
	}
	q.notifyLocked()
}

// Pending returns the number of buffered payloads.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Attached reports whether a consumer is attached.
func (q *Queue) Attached() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.cur != nil
}

func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.statsLocked()
}

func (q *Queue) statsLocked() Stats {
	return Stats{
		Attached:  q.cur != nil,
		Pending:   len(q.pending),
		Produced:  q.produced,
		Delivered: q.delivered,
		Attaches:  q.attaches,
		Failures:  q.failures,
	}
}

// deliverLocked hands p to the active consumer. On failure the consumer is
// detached and false is returned; the caller owns re-buffering p.
func (q *Queue) deliverLocked(p string) bool {
	if err := q.cur.consumer.Deliver(p); err != nil {
		q.failures++
		q.log.Warn("link delivery failed; consumer detached", logx.Err(err))
		q.detachLocked()
		return false
	}
	q.delivered++
	return true
}

func (q *Queue) detachLocked() {
	q.cur.end()
	q.cur = nil
	q.notifyLocked()
}

func (q *Queue) notifyLocked() {
	if q.observer != nil {
		q.observer(q.statsLocked())
	}
}
