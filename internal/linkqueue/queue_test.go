package linkqueue

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu   sync.Mutex
	got  []string
	fail map[string]bool
}

func (r *recorder) Deliver(p string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail[p] {
		return errors.New("sink closed")
	}
	r.got = append(r.got, p)
	return nil
}

func (r *recorder) received() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.got...)
}

func TestAttachDrainsInProductionOrder(t *testing.T) {
	t.Parallel()
	q := New()
	q.Produce("https://a/1")
	q.Produce("https://a/2")
	require.Equal(t, 2, q.Pending())

	c := &recorder{}
	q.Attach(c)

	assert.Equal(t, []string{"https://a/1", "https://a/2"}, c.received())
	assert.Equal(t, 0, q.Pending())
	assert.True(t, q.Attached())
}

func TestProduceWhileAttachedDeliversImmediately(t *testing.T) {
	t.Parallel()
	q := New()
	c := &recorder{}
	q.Attach(c)

	q.Produce("https://b/1")

	assert.Equal(t, []string{"https://b/1"}, c.received())
	assert.Equal(t, 0, q.Pending())
}

func TestAttachWithEmptyBufferDeliversNothing(t *testing.T) {
	t.Parallel()
	q := New()
	c := &recorder{}
	q.Attach(c)
	assert.Empty(t, c.received())
	assert.Equal(t, uint64(0), q.Stats().Delivered)
}

func TestDetachStopsDelivery(t *testing.T) {
	t.Parallel()
	q := New()
	c := &recorder{}
	q.Attach(c)
	q.Detach()

	q.Produce("https://c/1")

	assert.Empty(t, c.received())
	assert.Equal(t, 1, q.Pending())
	assert.False(t, q.Attached())
}

func TestDetachWithoutConsumerIsNoop(t *testing.T) {
	t.Parallel()
	q := New()
	q.Detach()
	q.Detach()
	assert.False(t, q.Attached())
}

func TestReattachNeverReplays(t *testing.T) {
	t.Parallel()
	q := New()
	q.Produce("p1")

	first := &recorder{}
	q.Attach(first)
	q.Produce("p2")
	q.Detach()
	q.Produce("p3")
	q.Produce("p4")

	second := &recorder{}
	q.Attach(second)

	assert.Equal(t, []string{"p1", "p2"}, first.received())
	assert.Equal(t, []string{"p3", "p4"}, second.received())

	st := q.Stats()
	assert.Equal(t, uint64(4), st.Produced)
	assert.Equal(t, uint64(4), st.Delivered)
}

func TestAttachReplacesPreviousConsumer(t *testing.T) {
	t.Parallel()
	q := New()
	old := &recorder{}
	oldSub := q.Attach(old)

	next := &recorder{}
	q.Attach(next)
	q.Produce("x")

	assert.Empty(t, old.received())
	assert.Equal(t, []string{"x"}, next.received())

	select {
	case <-oldSub.Done():
	default:
		t.Fatal("replaced subscription should be done")
	}
}

func TestReleaseOfStaleSubscriptionKeepsSuccessor(t *testing.T) {
	t.Parallel()
	q := New()
	oldSub := q.Attach(&recorder{})
	next := &recorder{}
	newSub := q.Attach(next)

	assert.False(t, oldSub.Release())
	assert.True(t, q.Attached())

	q.Produce("y")
	assert.Equal(t, []string{"y"}, next.received())

	assert.True(t, newSub.Release())
	assert.False(t, q.Attached())
	assert.False(t, newSub.Release())
}

func TestDeliveryFailureRebuffersInOrder(t *testing.T) {
	t.Parallel()
	q := New()
	q.Produce("l1")
	q.Produce("l2")
	q.Produce("l3")

	flaky := &recorder{fail: map[string]bool{"l2": true}}
	sub := q.Attach(flaky)

	assert.Equal(t, []string{"l1"}, flaky.received())
	assert.False(t, q.Attached())
	assert.Equal(t, 2, q.Pending())
	<-sub.Done()

	q.Produce("l4")
	good := &recorder{}
	q.Attach(good)
	assert.Equal(t, []string{"l2", "l3", "l4"}, good.received())

	st := q.Stats()
	assert.Equal(t, uint64(1), st.Failures)
	assert.Equal(t, uint64(4), st.Delivered)
}

func TestProduceFailureWhileAttachedBuffers(t *testing.T) {
	t.Parallel()
	q := New()
	flaky := &recorder{fail: map[string]bool{"z": true}}
	q.Attach(flaky)

	q.Produce("z")

	assert.False(t, q.Attached())
	assert.Equal(t, 1, q.Pending())
}

func TestAttachNilDetaches(t *testing.T) {
	t.Parallel()
	q := New()
	q.Attach(&recorder{})
	sub := q.Attach(nil)
	<-sub.Done()
	assert.False(t, q.Attached())
}

func TestObserverSeesStateChanges(t *testing.T) {
	t.Parallel()
	var last Stats
	q := New(WithObserver(func(s Stats) { last = s }))

	q.Produce("o1")
	assert.Equal(t, 1, last.Pending)
	assert.False(t, last.Attached)

	q.Attach(ConsumerFunc(func(string) error { return nil }))
	assert.Equal(t, 0, last.Pending)
	assert.True(t, last.Attached)
	assert.Equal(t, uint64(1), last.Delivered)
}

func TestConcurrentProducersDeliverEachOnce(t *testing.T) {
	t.Parallel()
	q := New()
	c := &recorder{}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				q.Produce("p")
			}
		}()
		if i == 3 {
			q.Attach(c)
		}
	}
	wg.Wait()

	assert.Len(t, c.received(), 400)
	assert.Equal(t, 0, q.Pending())
}
