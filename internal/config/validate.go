package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	logx "sdkbridge/pkg/logx"
)

const (
	DefaultAddr          = "127.0.0.1:8787"
	DefaultMetricsPath   = "/metrics"
	DefaultPruneSchedule = "@daily"
)

// Server is ServerConfig with defaults applied and durations parsed.
type Server struct {
	Addr               string
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	IdleTimeout        time.Duration
	ShutdownTimeout    time.Duration
	CORSOrigins        []string
	RatePerSec         int
	Burst              int
	StreamWriteTimeout time.Duration
	PingInterval       time.Duration
	Pprof              PprofConfig
}

type SDK struct {
	AppID                     string
	Platform                  string
	AdvertiserTrackingEnabled bool
	DeferredLink              string
	DeferredDelay             time.Duration
	DeferredTimeout           time.Duration
	LaunchOnStart             bool
}

type Storage struct {
	Driver        string
	Path          string
	BusyTimeout   time.Duration
	Retention     time.Duration
	PruneSchedule string
}

func (c ServerConfig) Resolve() (Server, error) {
	s := Server{
		Addr:        strings.TrimSpace(c.Addr),
		CORSOrigins: c.CORSOrigins,
		RatePerSec:  c.RatePerSec,
		Burst:       c.Burst,
		Pprof:       c.Pprof,
	}
	if s.Addr == "" {
		s.Addr = DefaultAddr
	}
	if _, _, err := net.SplitHostPort(s.Addr); err != nil {
		return Server{}, fmt.Errorf("server.addr: %w", err)
	}
	if s.RatePerSec < 0 || s.Burst < 0 {
		return Server{}, errors.New("server.rate_per_sec and server.burst must be >= 0")
	}
	if s.Burst == 0 {
		s.Burst = s.RatePerSec
	}

	var err error
	if s.ReadTimeout, err = ParseDurationOrDefault("server.read_timeout", c.ReadTimeout, 10*time.Second); err != nil {
		return Server{}, err
	}
	if s.WriteTimeout, err = ParseDurationField("server.write_timeout", c.WriteTimeout); err != nil {
		return Server{}, err
	}
	if s.IdleTimeout, err = ParseDurationOrDefault("server.idle_timeout", c.IdleTimeout, 60*time.Second); err != nil {
		return Server{}, err
	}
	if s.ShutdownTimeout, err = ParseDurationOrDefault("server.shutdown_timeout", c.ShutdownTimeout, 10*time.Second); err != nil {
		return Server{}, err
	}
	if s.StreamWriteTimeout, err = ParseDurationOrDefault("server.stream_write_timeout", c.StreamWriteTimeout, 5*time.Second); err != nil {
		return Server{}, err
	}
	if s.PingInterval, err = ParseDurationOrDefault("server.ping_interval", c.PingInterval, 30*time.Second); err != nil {
		return Server{}, err
	}
	return s, nil
}

func (c SDKConfig) Resolve() (SDK, error) {
	s := SDK{
		AppID:                     strings.TrimSpace(c.AppID),
		Platform:                  strings.TrimSpace(c.Platform),
		AdvertiserTrackingEnabled: c.AdvertiserTrackingEnabled,
		DeferredLink:              strings.TrimSpace(c.DeferredLink),
		LaunchOnStart:             c.LaunchOnStart,
	}
	if s.DeferredLink != "" {
		u, err := url.Parse(s.DeferredLink)
		if err != nil || u.Scheme == "" {
			return SDK{}, fmt.Errorf("sdk.deferred_link: not an absolute url: %q", s.DeferredLink)
		}
	}
	var err error
	if s.DeferredDelay, err = ParseDurationField("sdk.deferred_delay", c.DeferredDelay); err != nil {
		return SDK{}, err
	}
	if s.DeferredTimeout, err = ParseDurationOrDefault("sdk.deferred_timeout", c.DeferredTimeout, 30*time.Second); err != nil {
		return SDK{}, err
	}
	return s, nil
}

func (c StorageConfig) Resolve() (Storage, error) {
	s := Storage{
		Driver:        strings.ToLower(strings.TrimSpace(c.Driver)),
		Path:          strings.TrimSpace(c.Path),
		PruneSchedule: strings.TrimSpace(c.PruneSchedule),
	}
	switch s.Driver {
	case "", "none":
		return Storage{}, nil
	case "file", "sqlite", "sqlite3":
	default:
		return Storage{}, fmt.Errorf("storage.driver: unknown driver %q", c.Driver)
	}
	if s.Path == "" {
		return Storage{}, errors.New("storage.path is required")
	}
	var err error
	if s.BusyTimeout, err = ParseDurationField("storage.busy_timeout", c.BusyTimeout); err != nil {
		return Storage{}, err
	}
	if s.Retention, err = ParseDurationField("storage.retention", c.Retention); err != nil {
		return Storage{}, err
	}
	if s.PruneSchedule == "" {
		s.PruneSchedule = DefaultPruneSchedule
	}
	if _, err := cron.ParseStandard(s.PruneSchedule); err != nil {
		return Storage{}, fmt.Errorf("storage.prune_schedule: %w", err)
	}
	return s, nil
}

// Logx converts the section into the logger configuration. An unset level
// means info.
func (c LoggingConfig) Logx() logx.Config {
	return logx.Config{
		Level:   c.Level,
		Console: c.Console,
		File:    logx.FileConfig{Enabled: c.File.Enabled, Path: c.File.Path},
	}
}

func (c MetricsConfig) ResolvedPath() string {
	p := strings.TrimSpace(c.Path)
	if p == "" {
		return DefaultMetricsPath
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}

// Validate checks every section and returns all problems joined.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error
	if _, err := cfg.Server.Resolve(); err != nil {
		errs = append(errs, err)
	}
	if _, err := cfg.SDK.Resolve(); err != nil {
		errs = append(errs, err)
	}
	if _, err := cfg.Storage.Resolve(); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Logging.Level)) {
	case "", "trace", "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level: unknown level %q", cfg.Logging.Level))
	}
	if cfg.Logging.File.Enabled && strings.TrimSpace(cfg.Logging.File.Path) == "" {
		errs = append(errs, errors.New("logging.file.path is required when logging.file.enabled"))
	}
	return errors.Join(errs...)
}
