// Package app wires the daemon: config, logging, storage, the SDK journal,
// the bridge and its HTTP surface, metrics and the retention pruner.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"sdkbridge/internal/bridge"
	"sdkbridge/internal/buildinfo"
	"sdkbridge/internal/config"
	"sdkbridge/internal/eventbus"
	"sdkbridge/internal/metrics"
	"sdkbridge/internal/observability/pprof"
	"sdkbridge/internal/runtime/supervisor"
	"sdkbridge/internal/sdk"
	"sdkbridge/internal/storage"
	"sdkbridge/internal/transport/httpapi"
	logx "sdkbridge/pkg/logx"
)

type App struct {
	cfgm *config.Manager
	sup  *supervisor.Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.Store

	srvCfg config.Server
	sdkCfg config.SDK
	stCfg  config.Storage

	restoreLast bool

	journal *sdk.Journal
	bridge  *bridge.Bridge
	metrics *metrics.Metrics
	http    *httpapi.Server
	pruner  *Pruner

	addr net.Addr
}

// New loads the config at cfgPath and builds every component. Nothing runs
// until Start.
func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	return build(cfgm, cfg)
}

func build(cfgm *config.Manager, cfg *config.Config) (*App, error) {
	srvCfg, err := cfg.Server.Resolve()
	if err != nil {
		return nil, err
	}
	sdkCfg, err := cfg.SDK.Resolve()
	if err != nil {
		return nil, err
	}
	stCfg, err := cfg.Storage.Resolve()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(cfg.Logging.Logx())
	a := &App{
		cfgm:        cfgm,
		log:         log.With(logx.String("comp", "app")),
		logs:        logSvc,
		bus:         eventbus.New(),
		srvCfg:      srvCfg,
		sdkCfg:      sdkCfg,
		stCfg:       stCfg,
		restoreLast: cfg.Bridge.RestoreLastLink,
	}

	// Storage (optional)
	if stCfg.Driver != "" {
		st, err := storage.Open(storage.Config{
			Driver:      stCfg.Driver,
			Path:        stCfg.Path,
			BusyTimeout: stCfg.BusyTimeout,
		}, log.With(logx.String("comp", "storage")))
		if err != nil {
			_ = logSvc.Close()
			return nil, err
		}
		a.store = st
		a.log.Info("storage enabled", logx.String("driver", stCfg.Driver), logx.String("path", stCfg.Path))
		if stCfg.Retention > 0 {
			p, err := NewPruner(stCfg.PruneSchedule, stCfg.Retention, st, log.With(logx.String("comp", "prune")))
			if err != nil {
				a.closeEarly()
				return nil, err
			}
			a.pruner = p
		}
	}

	if cfg.Metrics.Enabled {
		a.metrics = metrics.New(a.bus)
	}

	a.journal = sdk.NewJournal(sdk.JournalConfig{
		Platform:      sdkCfg.Platform,
		DeferredLink:  sdkCfg.DeferredLink,
		DeferredDelay: sdkCfg.DeferredDelay,
	}, a.store, log)

	opts := []bridge.Option{
		bridge.WithLogger(log),
		bridge.WithBus(a.bus),
		bridge.WithSpawner(spawner{a}),
		bridge.WithSettings(sdk.Settings{
			AppID:                     sdkCfg.AppID,
			AdvertiserTrackingEnabled: sdkCfg.AdvertiserTrackingEnabled,
		}),
		bridge.WithDeferredTimeout(sdkCfg.DeferredTimeout),
	}
	if a.store != nil {
		opts = append(opts, bridge.WithStore(a.store))
	}
	if a.metrics != nil {
		opts = append(opts, bridge.WithQueueObserver(a.metrics.ObserveQueue))
	}
	a.bridge = bridge.New(a.journal, opts...)

	pprofLog := log.With(logx.String("comp", "pprof"))
	a.http = httpapi.New(srvCfg, httpapi.Deps{
		Bridge:      a.bridge,
		Metrics:     a.metrics,
		MetricsPath: cfg.Metrics.ResolvedPath(),
		Health:      a.health,
		Mount: func(r chi.Router) {
			pprof.Mount(r, pprof.Config{
				Enabled: srvCfg.Pprof.Enabled,
				Prefix:  srvCfg.Pprof.Prefix,
				Token:   srvCfg.Pprof.Token,
			}, pprofLog)
		},
		Log: log,
	})
	return a, nil
}

func (a *App) closeEarly() {
	if a.store != nil {
		_ = a.store.Close()
	}
	if a.logs != nil {
		_ = a.logs.Close()
	}
}

// spawner hands the bridge's deferred lookups to the supervisor once it
// exists.
type spawner struct{ a *App }

func (s spawner) Go(name string, fn func(context.Context) error) {
	if s.a.sup == nil {
		go func() { _ = fn(context.Background()) }()
		return
	}
	s.a.sup.Go(name, fn)
}

func (a *App) Bridge() *bridge.Bridge { return a.bridge }

// Addr is the bound HTTP address; nil before Start.
func (a *App) Addr() net.Addr { return a.addr }

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) health() map[string]any {
	out := map[string]any{
		"version":  buildinfo.Version(),
		"platform": a.journal.PlatformVersion(),
		"storage":  a.stCfg.Driver != "",
		"eventbus": map[string]any{"dropped": a.bus.Dropped()},
	}
	if a.sup != nil {
		out["goroutines"] = a.sup.Counters()
	}
	if a.pruner != nil {
		out["next_prune"] = a.pruner.Next()
	}
	return out
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))
	a.cfgm.SetLogger(a.logs.Logger().With(logx.String("comp", "config")))

	if a.restoreLast && a.store != nil {
		ok, err := a.bridge.RestoreLastLink(ctx)
		switch {
		case err != nil:
			a.log.Warn("restore last deep link failed", logx.Err(err))
		case ok:
			a.log.Info("last deep link restored", logx.String("url", a.bridge.LastDeepLink()))
		}
	}

	addr, err := a.http.Listen()
	if err != nil {
		a.sup.Cancel()
		return fmt.Errorf("http listen %s: %w", a.srvCfg.Addr, err)
	}
	a.addr = addr
	a.sup.Go("http.serve", a.http.Serve)

	if a.metrics != nil {
		events, unsub := a.bus.Subscribe(256)
		a.sup.Go0("metrics.consume", func(c context.Context) {
			defer unsub()
			a.metrics.Consume(c, events)
		})
	}

	// Optional: log events for observability/debug.
	events, unsub := a.bus.Subscribe(128)
	a.sup.Go0("eventbus.log", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
			}
		}
	})

	if a.pruner != nil {
		a.pruner.Start()
		a.log.Info("journal pruning scheduled",
			logx.String("schedule", a.stCfg.PruneSchedule),
			logx.Duration("retention", a.stCfg.Retention),
			logx.Time("next", a.pruner.Next()))
	}

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		lastApplied := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts: keep only the latest config in the channel.
				for drained := false; !drained; {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						drained = true
					}
				}
				a.applyConfig(lastApplied, newCfg)
				lastApplied = newCfg
			}
		}
	})

	a.sup.Go("config.watch", a.cfgm.Watch)

	if a.sdkCfg.LaunchOnStart {
		if err := a.bridge.DidFinishLaunching(a.sup.Context()); err != nil {
			a.log.Warn("launch on start failed", logx.Err(err))
		}
	}

	a.log.Info("app started",
		logx.String("addr", addr.String()),
		logx.String("version", buildinfo.Version()))
	return nil
}

// applyConfig applies the hot-reloadable part of a new config. Only logging
// is live; other sections are reported and wait for a restart.
func (a *App) applyConfig(prev, next *config.Config) {
	sections := config.ChangedSections(prev, next)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	a.logs.Apply(next.Logging.Logx())
	if pending := config.RequiresRestart(prev, next); len(pending) > 0 {
		a.log.Warn("config changed; restart required for changes to take effect",
			logx.String("sections", strings.Join(pending, ",")))
	}
	a.log.Info("config reloaded", logx.String("changed", strings.Join(sections, ",")))
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		a.closeEarly()
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))

	// Cancel first: http.serve and the loops start unwinding immediately.
	a.sup.Cancel()

	var errs []error
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		if err := runStep(ctx, a.log, name, max, fn); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}

	step("bridge", 2*time.Second, func(context.Context) error { return a.bridge.Close() })
	step("pruner", 2*time.Second, func(c context.Context) error {
		if a.pruner != nil {
			return a.pruner.Stop(c)
		}
		return nil
	})
	// Waits for http.serve, which owns the graceful shutdown.
	step("supervisor", a.srvCfg.ShutdownTimeout+2*time.Second, func(c context.Context) error {
		err := a.sup.Wait(c)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	step("storage", 1*time.Second, func(context.Context) error {
		if a.store != nil {
			return a.store.Close()
		}
		return nil
	})

	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return errors.Join(errs...)
}
