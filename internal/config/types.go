package config

// Config is the daemon configuration file (JSON or YAML).
//
// All durations are Go duration strings ("500ms", "10s", "1m").
// Unknown keys are rejected so typos surface at load time.
type Config struct {
	Server  ServerConfig  `json:"server"`
	Logging LoggingConfig `json:"logging"`
	SDK     SDKConfig     `json:"sdk"`
	Bridge  BridgeConfig  `json:"bridge,omitempty"`
	Storage StorageConfig `json:"storage,omitempty"`
	Metrics MetricsConfig `json:"metrics,omitempty"`
}

// ServerConfig controls the HTTP command surface and notification stream.
//
// Defaults (when fields are omitted/zero):
//   - addr: "127.0.0.1:8787"
//   - read_timeout: "10s", write_timeout: "0s" (streams stay open), idle_timeout: "60s"
//   - shutdown_timeout: "10s"
//   - rate_per_sec: 0 (disabled), burst: rate_per_sec
//   - stream_write_timeout: "5s", ping_interval: "30s"
type ServerConfig struct {
	Addr            string   `json:"addr,omitempty"`
	ReadTimeout     string   `json:"read_timeout,omitempty"`
	WriteTimeout    string   `json:"write_timeout,omitempty"`
	IdleTimeout     string   `json:"idle_timeout,omitempty"`
	ShutdownTimeout string   `json:"shutdown_timeout,omitempty"`
	CORSOrigins     []string `json:"cors_origins,omitempty"`

	// RatePerSec limits the command surface (all clients together).
	RatePerSec int `json:"rate_per_sec,omitempty"`
	Burst      int `json:"burst,omitempty"`

	StreamWriteTimeout string `json:"stream_write_timeout,omitempty"`
	PingInterval       string `json:"ping_interval,omitempty"`

	Pprof PprofConfig `json:"pprof,omitempty"`
}

// PprofConfig mounts net/http/pprof under Prefix (default "/debug/pprof").
type PprofConfig struct {
	Enabled bool   `json:"enabled"`
	Prefix  string `json:"prefix,omitempty"`
	Token   string `json:"token,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// SDKConfig configures the journal SDK client used by the daemon.
//
// DeferredLink simulates the install-time deferred deep link: when set, it
// is resolved DeferredDelay after launch. DeferredTimeout bounds the lookup.
type SDKConfig struct {
	AppID                     string `json:"app_id,omitempty"`
	Platform                  string `json:"platform,omitempty"`
	AdvertiserTrackingEnabled bool   `json:"advertiser_tracking_enabled,omitempty"`
	DeferredLink              string `json:"deferred_link,omitempty"`
	DeferredDelay             string `json:"deferred_delay,omitempty"`
	DeferredTimeout           string `json:"deferred_timeout,omitempty"`
	// LaunchOnStart triggers the launch lifecycle once the daemon is up.
	LaunchOnStart bool `json:"launch_on_start,omitempty"`
}

type BridgeConfig struct {
	// RestoreLastLink seeds getDeepLinkUrl from storage at startup.
	// The restored link is not re-sent to the notification stream.
	RestoreLastLink bool `json:"restore_last_link,omitempty"`
}

// StorageConfig controls the optional journal.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./data/journal.db", "retention": "720h" }
type StorageConfig struct {
	Driver        string `json:"driver,omitempty"`
	Path          string `json:"path,omitempty"`
	BusyTimeout   string `json:"busy_timeout,omitempty"`   // sqlite only
	Retention     string `json:"retention,omitempty"`      // "0s" keeps everything
	PruneSchedule string `json:"prune_schedule,omitempty"` // cron spec, default "@daily"
}

type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"` // default "/metrics"
}
