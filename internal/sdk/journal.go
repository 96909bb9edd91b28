package sdk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"runtime"
	"strings"
	"sync"
	"time"

	"sdkbridge/internal/buildinfo"
	"sdkbridge/internal/storage"
	logx "sdkbridge/pkg/logx"
)

// JournalConfig configures Journal.
type JournalConfig struct {
	// Platform overrides PlatformVersion.
	Platform string
	// DeferredLink is handed out by the first FetchDeferredAppLink after
	// DeferredDelay. Empty means the install has no deferred link.
	DeferredLink  string
	DeferredDelay time.Duration
}

// Journal is the Client used by the standalone daemon. It has no network
// side: events are logged and, when a store is configured, persisted.
type Journal struct {
	cfg   JournalConfig
	store storage.Store
	log   logx.Logger

	mu          sync.Mutex
	settings    Settings
	initialized bool
	activations int
	deferredHit bool
}

var _ Client = (*Journal)(nil)

// NewJournal returns a journal client. store may be nil.
func NewJournal(cfg JournalConfig, store storage.Store, log logx.Logger) *Journal {
	return &Journal{cfg: cfg, store: store, log: log.With(logx.String("comp", "sdk.journal"))}
}

func (j *Journal) PlatformVersion() string {
	if p := strings.TrimSpace(j.cfg.Platform); p != "" {
		return p
	}
	return fmt.Sprintf("%s %s (%s)", buildinfo.Platform(), buildinfo.Version(), runtime.Version())
}

func (j *Journal) Initialize(ctx context.Context, s Settings) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	j.mu.Lock()
	j.settings = s
	first := !j.initialized
	j.initialized = true
	j.mu.Unlock()

	j.log.Info("sdk initialized",
		logx.Bool("first", first),
		logx.Bool("app_id_set", s.AppID != ""),
		logx.Bool("advertiser_tracking", s.AdvertiserTrackingEnabled),
	)
	return nil
}

func (j *Journal) ActivateApp(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	j.mu.Lock()
	j.activations++
	n := j.activations
	j.mu.Unlock()
	j.log.Debug("app activated", logx.Int("activations", n))
	return nil
}

// Activations reports how many times ActivateApp ran.
func (j *Journal) Activations() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.activations
}

// Settings returns what the last Initialize applied.
func (j *Journal) Settings() (Settings, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.settings, j.initialized
}

func (j *Journal) LogEvent(ctx context.Context, e Event) error {
	if strings.TrimSpace(string(e.Kind)) == "" {
		return errors.New("event kind is required")
	}
	fields := []logx.Field{logx.String("kind", string(e.Kind)), logx.Int("params", len(e.Parameters))}
	if e.ValueToSum != nil {
		fields = append(fields, logx.Float64("value_to_sum", *e.ValueToSum))
	}
	j.log.Info("app event", fields...)
	return j.persist(ctx, string(e.Kind), e.ValueToSum, e.Parameters)
}

func (j *Journal) LogPurchase(ctx context.Context, p Purchase) error {
	if p.Amount < 0 {
		return fmt.Errorf("purchase amount must be >= 0, got %v", p.Amount)
	}
	j.log.Info("purchase", logx.Float64("amount", p.Amount), logx.String("currency", p.Currency))

	params := make(map[string]any, len(p.Parameters)+1)
	for k, v := range p.Parameters {
		params[k] = v
	}
	params[ParamCurrency] = p.Currency
	return j.persist(ctx, string(KindPurchased), &p.Amount, params)
}

func (j *Journal) persist(ctx context.Context, kind string, value *float64, params map[string]any) error {
	if j.store == nil {
		return nil
	}
	rec := storage.EventRecord{Kind: kind, ValueToSum: value}
	if len(params) > 0 {
		b, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("encode event parameters: %w", err)
		}
		rec.ParamsJSON = string(b)
	}
	if err := j.store.AppendEvent(ctx, rec); err != nil {
		return fmt.Errorf("persist event: %w", err)
	}
	return nil
}

// OpenURL reports absolute URLs as handled.
func (j *Journal) OpenURL(_ context.Context, raw string) bool {
	u, err := url.Parse(raw)
	handled := err == nil && u.Scheme != ""
	j.log.Debug("url opened", logx.String("url", raw), logx.Bool("handled", handled))
	return handled
}

// FetchDeferredAppLink returns the configured link once per process; later
// calls find nothing, like an install-time link that was already claimed.
func (j *Journal) FetchDeferredAppLink(ctx context.Context) (string, error) {
	j.mu.Lock()
	link := j.cfg.DeferredLink
	if j.deferredHit {
		link = ""
	}
	j.mu.Unlock()
	if link == "" {
		return "", nil
	}

	if d := j.cfg.DeferredDelay; d > 0 {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-t.C:
		}
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.deferredHit {
		return "", nil
	}
	j.deferredHit = true
	return link, nil
}
