// Package bridge connects the host's command surface and notification stream
// to an sdk.Client.
//
// One Bridge exists per process. It owns the deep-link queue and the last
// observed deep link, and is safe for concurrent use.
package bridge

import (
	"context"
	"errors"
	"sync"
	"time"

	"sdkbridge/internal/eventbus"
	"sdkbridge/internal/linkqueue"
	"sdkbridge/internal/sdk"
	"sdkbridge/internal/storage"
	logx "sdkbridge/pkg/logx"
)

// Link sources, as persisted and reported on the bus.
const (
	SourceDeferred = "deferred"
	SourceOpen     = "open"
)

// ErrClosed is returned by lifecycle calls after Close.
var ErrClosed = errors.New("bridge closed")

// Spawner starts a named goroutine. *supervisor.Supervisor satisfies it.
type Spawner interface {
	Go(name string, fn func(ctx context.Context) error)
}

type Option func(*Bridge)

func WithLogger(log logx.Logger) Option { return func(b *Bridge) { b.log = log } }

// WithStore persists observed links. A nil store is ignored.
func WithStore(st storage.Store) Option { return func(b *Bridge) { b.store = st } }

func WithBus(bus eventbus.Bus) Option { return func(b *Bridge) { b.bus = bus } }

// WithSpawner runs the deferred-link lookup under s instead of a bare goroutine.
func WithSpawner(s Spawner) Option { return func(b *Bridge) { b.spawn = s } }

// WithSettings are applied to the SDK on every DidFinishLaunching.
func WithSettings(s sdk.Settings) Option { return func(b *Bridge) { b.settings = s } }

// WithDeferredTimeout bounds a single deferred-link lookup. 0 means no bound.
func WithDeferredTimeout(d time.Duration) Option { return func(b *Bridge) { b.deferredTimeout = d } }

// WithQueueObserver forwards queue state changes (see linkqueue.WithObserver).
func WithQueueObserver(fn func(linkqueue.Stats)) Option {
	return func(b *Bridge) { b.observer = fn }
}

type Bridge struct {
	client sdk.Client
	queue  *linkqueue.Queue

	log             logx.Logger
	store           storage.Store
	bus             eventbus.Bus
	spawn           Spawner
	settings        sdk.Settings
	deferredTimeout time.Duration
	observer        func(linkqueue.Stats)

	// launchMu serializes DidFinishLaunching; observeMu orders lastLink
	// updates with the links pushed to the queue.
	launchMu  sync.Mutex
	observeMu sync.Mutex

	mu       sync.Mutex
	lastLink string
	lookup   *lookup
	closed   bool

	wg sync.WaitGroup
}

// lookup is one in-flight deferred-link task.
type lookup struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func New(client sdk.Client, opts ...Option) *Bridge {
	b := &Bridge{client: client}
	for _, o := range opts {
		o(b)
	}
	b.log = b.log.With(logx.String("comp", "bridge"))
	qopts := []linkqueue.Option{linkqueue.WithLogger(b.log)}
	if b.observer != nil {
		qopts = append(qopts, linkqueue.WithObserver(b.observer))
	}
	b.queue = linkqueue.New(qopts...)
	return b
}

// Queue exposes the link queue for inspection.
func (b *Bridge) Queue() *linkqueue.Queue { return b.queue }

// LastDeepLink is the most recently observed deep link, or "".
func (b *Bridge) LastDeepLink() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastLink
}

// RestoreLastLink seeds LastDeepLink from storage. Nothing is sent to the
// stream. It reports whether a link was restored.
func (b *Bridge) RestoreLastLink(ctx context.Context) (bool, error) {
	if b.store == nil {
		return false, nil
	}
	rec, ok, err := b.store.LastLink(ctx)
	if err != nil || !ok {
		return false, err
	}
	b.mu.Lock()
	if b.lastLink == "" {
		b.lastLink = rec.URL
	}
	b.mu.Unlock()
	b.log.Info("last deep link restored", logx.String("url", rec.URL), logx.String("source", rec.Source), logx.Time("at", rec.At))
	return true, nil
}

// Listen attaches c as the notification stream consumer. Links produced
// while no consumer was attached are delivered to c before Listen returns.
func (b *Bridge) Listen(c linkqueue.Consumer) *linkqueue.Subscription {
	if c == nil {
		b.Cancel()
		return b.queue.Attach(nil)
	}
	wrapped := linkqueue.ConsumerFunc(func(url string) error {
		if err := c.Deliver(url); err != nil {
			return err
		}
		b.publish(eventbus.LinkDelivered, eventbus.LinkData{URL: url})
		return nil
	})
	sub := b.queue.Attach(wrapped)
	b.log.Debug("stream consumer attached")
	return sub
}

// Cancel detaches the current stream consumer. Later links are buffered.
func (b *Bridge) Cancel() {
	if !b.queue.Attached() {
		return
	}
	b.queue.Detach()
	b.log.Debug("stream consumer detached")
}

// DidFinishLaunching applies the SDK settings and starts the deferred-link
// lookup. A previous lookup still in flight is canceled first.
func (b *Bridge) DidFinishLaunching(ctx context.Context) error {
	b.launchMu.Lock()
	defer b.launchMu.Unlock()

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	prev := b.lookup
	b.lookup = nil
	b.mu.Unlock()
	if prev != nil {
		prev.cancel()
		<-prev.done
	}

	if err := b.client.Initialize(ctx, b.settings); err != nil {
		return err
	}

	lctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	if b.deferredTimeout > 0 {
		lctx, cancel = withTimeout(lctx, cancel, b.deferredTimeout)
	}
	l := &lookup{cancel: cancel, done: make(chan struct{})}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		cancel()
		return ErrClosed
	}
	b.lookup = l
	b.wg.Add(1)
	b.mu.Unlock()

	run := func(sctx context.Context) error {
		defer b.wg.Done()
		defer close(l.done)
		defer cancel()
		stop := context.AfterFunc(sctx, cancel)
		defer stop()
		b.awaitDeferred(lctx)
		return nil
	}
	if b.spawn != nil {
		b.spawn.Go("bridge.deferred_link", run)
	} else {
		go func() { _ = run(lctx) }()
	}
	return nil
}

func withTimeout(parent context.Context, cancelParent context.CancelFunc, d time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(parent, d)
	return ctx, func() {
		cancel()
		cancelParent()
	}
}

func (b *Bridge) awaitDeferred(ctx context.Context) {
	res := <-sdk.Resolve(ctx, b.client)
	switch {
	case errors.Is(res.Err, context.Canceled):
		b.log.Debug("deferred link lookup canceled")
	case res.Err != nil:
		b.log.Warn("deferred link lookup failed", logx.Err(res.Err))
	case res.URL == "":
		b.log.Debug("no deferred link")
	default:
		b.observe(ctx, res.URL, SourceDeferred)
	}
}

// OpenURL records url as the last deep link, forwards it to the stream and
// hands it to the SDK. The result is the SDK's.
func (b *Bridge) OpenURL(ctx context.Context, url string) bool {
	b.observe(ctx, url, SourceOpen)
	return b.client.OpenURL(ctx, url)
}

// DidBecomeActive reports an app activation to the SDK.
func (b *Bridge) DidBecomeActive(ctx context.Context) error {
	return b.client.ActivateApp(ctx)
}

func (b *Bridge) observe(ctx context.Context, url, source string) {
	b.observeMu.Lock()
	defer b.observeMu.Unlock()

	b.mu.Lock()
	b.lastLink = url
	b.mu.Unlock()

	if b.store != nil {
		// persistence must not hold the link back
		if err := b.store.AppendLink(context.WithoutCancel(ctx), storage.LinkRecord{URL: url, Source: source}); err != nil {
			b.log.Warn("persist deep link failed", logx.Err(err))
		}
	}
	b.queue.Produce(url)
	b.publish(eventbus.LinkProduced, eventbus.LinkData{URL: url, Source: source})
	b.log.Info("deep link observed", logx.String("url", url), logx.String("source", source))
}

func (b *Bridge) publish(topic string, data any) {
	if b.bus != nil {
		b.bus.Publish(eventbus.Event{Type: topic, Data: data})
	}
}

// Close cancels the deferred lookup, waits for it and detaches the stream
// consumer. Buffered links are kept. Close is idempotent.
func (b *Bridge) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	l := b.lookup
	b.lookup = nil
	b.mu.Unlock()

	if l != nil {
		l.cancel()
	}
	b.wg.Wait()
	b.Cancel()
	return nil
}
