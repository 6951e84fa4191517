// Package config loads the coordinator's tunables, as a
// functional-options layer over a defaulted Config, with file-based
// loading via github.com/BurntSushi/toml.
package config

import (
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds the coordinator's tunable settings.
type Config struct {
	// HeartbeatInterval is how often a ready transaction pings its
	// status tablet. Wire name: transaction_heartbeat_usec.
	HeartbeatInterval time.Duration
	// DisableHeartbeatInTests short-circuits every heartbeat after the
	// initial CREATED round trip. Wire name:
	// transaction_disable_heartbeat_in_tests.
	DisableHeartbeatInTests bool
	// MaxClockSkew is consumed indirectly via the clock.
	MaxClockSkew time.Duration
	// RPCTimeout bounds every outgoing heartbeat/commit/abort RPC.
	RPCTimeout time.Duration

	// LogLevel is the minimum level the default logger emits:
	// debug/info/warn/error/fatal.
	LogLevel string
	// LogFileName is the rotated log file's path.
	LogFileName string
	// LogMaxAgeDays is the number of days a rotated log file is kept.
	LogMaxAgeDays int
	// LogMaxSizeMB is the size, in megabytes, a log file reaches before
	// it is rotated.
	LogMaxSizeMB int
	// LogMaxBackups is the number of rotated log files retained.
	LogMaxBackups int
	// LogCompress gzips rotated log files once they age out.
	LogCompress bool
}

// Option mutates a Config away from its defaults.
type Option func(*Config)

// WithHeartbeatInterval overrides the heartbeat period.
func WithHeartbeatInterval(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.HeartbeatInterval = d
		}
	}
}

// WithDisableHeartbeatInTests short-circuits heartbeats after CREATED.
func WithDisableHeartbeatInTests(disabled bool) Option {
	return func(c *Config) {
		c.DisableHeartbeatInTests = disabled
	}
}

// WithMaxClockSkew overrides the tolerated clock skew.
func WithMaxClockSkew(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.MaxClockSkew = d
		}
	}
}

// WithRPCTimeout overrides the per-RPC deadline.
func WithRPCTimeout(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.RPCTimeout = d
		}
	}
}

// WithLogLevel overrides the default logger's minimum level.
func WithLogLevel(level string) Option {
	return func(c *Config) {
		if level != "" {
			c.LogLevel = level
		}
	}
}

// WithLogFileName overrides the default logger's rotated file path.
func WithLogFileName(filename string) Option {
	return func(c *Config) {
		if filename != "" {
			c.LogFileName = filename
		}
	}
}

// WithLogRotation overrides the default logger's rotation policy.
func WithLogRotation(maxAgeDays, maxSizeMB, maxBackups int, compress bool) Option {
	return func(c *Config) {
		c.LogMaxAgeDays = maxAgeDays
		c.LogMaxSizeMB = maxSizeMB
		c.LogMaxBackups = maxBackups
		c.LogCompress = compress
	}
}

// Default returns the documented defaults: a 500ms heartbeat interval
// (transaction_heartbeat_usec = 500000) and matching clock skew bound,
// plus an info-level log rotated at 100MB/10 days with 3 backups kept.
func Default() Config {
	return Config{
		HeartbeatInterval: 500 * time.Millisecond,
		MaxClockSkew:      500 * time.Millisecond,
		RPCTimeout:        5 * time.Second,

		LogLevel:      "info",
		LogFileName:   "txncoord.log",
		LogMaxAgeDays: 10,
		LogMaxSizeMB:  100,
		LogMaxBackups: 3,
		LogCompress:   true,
	}
}

// New builds a Config starting from Default and layering opts on top.
func New(opts ...Option) Config {
	cfg := Default()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// fileConfig mirrors Config's fields in their TOML wire names.
type fileConfig struct {
	TransactionHeartbeatUsec          int64 `toml:"transaction_heartbeat_usec"`
	TransactionDisableHeartbeatInTest bool  `toml:"transaction_disable_heartbeat_in_tests"`
	MaxClockSkewUsec                  int64 `toml:"max_clock_skew_usec"`
	RPCTimeoutUsec                    int64 `toml:"rpc_timeout_usec"`

	LogLevel      string `toml:"log_level"`
	LogFileName   string `toml:"log_file_name"`
	LogMaxAgeDays int    `toml:"log_max_age_days"`
	LogMaxSizeMB  int    `toml:"log_max_size_mb"`
	LogMaxBackups int    `toml:"log_max_backups"`
	LogCompress   bool   `toml:"log_compress"`
}

// LoadFile reads a TOML file and layers any further opts on top of
// the values it contains (opts win, so callers can still override a
// loaded file at the call site, e.g. in tests).
func LoadFile(path string, opts ...Option) (Config, error) {
	var fc fileConfig
	if _, err := toml.DecodeFile(path, &fc); err != nil {
		return Config{}, err
	}

	cfg := Default()
	if fc.TransactionHeartbeatUsec > 0 {
		cfg.HeartbeatInterval = time.Duration(fc.TransactionHeartbeatUsec) * time.Microsecond
	}
	cfg.DisableHeartbeatInTests = fc.TransactionDisableHeartbeatInTest
	if fc.MaxClockSkewUsec > 0 {
		cfg.MaxClockSkew = time.Duration(fc.MaxClockSkewUsec) * time.Microsecond
	}
	if fc.RPCTimeoutUsec > 0 {
		cfg.RPCTimeout = time.Duration(fc.RPCTimeoutUsec) * time.Microsecond
	}
	if fc.LogLevel != "" {
		cfg.LogLevel = fc.LogLevel
	}
	if fc.LogFileName != "" {
		cfg.LogFileName = fc.LogFileName
	}
	if fc.LogMaxAgeDays > 0 {
		cfg.LogMaxAgeDays = fc.LogMaxAgeDays
	}
	if fc.LogMaxSizeMB > 0 {
		cfg.LogMaxSizeMB = fc.LogMaxSizeMB
	}
	if fc.LogMaxBackups > 0 {
		cfg.LogMaxBackups = fc.LogMaxBackups
	}
	cfg.LogCompress = fc.LogCompress

	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg, nil
}
