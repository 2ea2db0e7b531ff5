// Package config loads engine configuration from a YAML file, QUILL_*
// environment variables, and built-in defaults, in ascending precedence of
// defaults < file < environment.
package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/quillforge/quill/internal/sync"
)

// Config is the full process configuration.
type Config struct {
	// DBPath is the local SQLite database file.
	DBPath string

	Remote RemoteConfig
	Sync   SyncConfig
	Log    LogConfig
}

// RemoteConfig locates the shared networked store.
type RemoteConfig struct {
	// URL is the libsql database URL, e.g. libsql://mydb.turso.io.
	URL string
	// AuthToken is attached to the connection when non-empty.
	AuthToken string
}

// SyncConfig carries the engine tuning knobs; see sync.Config for semantics.
type SyncConfig struct {
	Interval          time.Duration
	Debounce          time.Duration
	ProbeTimeout      time.Duration
	PullWindow        int
	QueueBatch        int
	RetryCeiling      int
	FailureLogCeiling int
}

// LogConfig configures the rotating log file used in daemon mode.
// An empty File means stderr.
type LogConfig struct {
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Load reads configuration. If path is non-empty that exact file is
// required; otherwise quill.yaml is searched for in the working directory
// and $HOME/.config/quill, and it is fine for no file to exist.
func Load(path string) (*Config, error) {
	v := viper.New()

	defaults := sync.DefaultConfig()
	v.SetDefault("db_path", ".quill/quill.db")
	v.SetDefault("remote.url", "")
	v.SetDefault("remote.auth_token", "")
	v.SetDefault("sync.interval", defaults.Interval)
	v.SetDefault("sync.debounce", defaults.Debounce)
	v.SetDefault("sync.probe_timeout", defaults.ProbeTimeout)
	v.SetDefault("sync.pull_window", defaults.PullWindow)
	v.SetDefault("sync.queue_batch", defaults.QueueBatch)
	v.SetDefault("sync.retry_ceiling", defaults.RetryCeiling)
	v.SetDefault("sync.failure_log_ceiling", defaults.FailureLogCeiling)
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)

	v.SetEnvPrefix("QUILL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("quill")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/quill")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	cfg := &Config{
		DBPath: v.GetString("db_path"),
		Remote: RemoteConfig{
			URL:       v.GetString("remote.url"),
			AuthToken: v.GetString("remote.auth_token"),
		},
		Sync: SyncConfig{
			Interval:          v.GetDuration("sync.interval"),
			Debounce:          v.GetDuration("sync.debounce"),
			ProbeTimeout:      v.GetDuration("sync.probe_timeout"),
			PullWindow:        v.GetInt("sync.pull_window"),
			QueueBatch:        v.GetInt("sync.queue_batch"),
			RetryCeiling:      v.GetInt("sync.retry_ceiling"),
			FailureLogCeiling: v.GetInt("sync.failure_log_ceiling"),
		},
		Log: LogConfig{
			File:       v.GetString("log.file"),
			MaxSizeMB:  v.GetInt("log.max_size_mb"),
			MaxBackups: v.GetInt("log.max_backups"),
			MaxAgeDays: v.GetInt("log.max_age_days"),
		},
	}

	return cfg, nil
}

// EngineConfig translates the loaded settings into a sync.Config.
func (c *Config) EngineConfig(logger *log.Logger) *sync.Config {
	return &sync.Config{
		Interval:          c.Sync.Interval,
		Debounce:          c.Sync.Debounce,
		ProbeTimeout:      c.Sync.ProbeTimeout,
		PullWindow:        c.Sync.PullWindow,
		QueueBatch:        c.Sync.QueueBatch,
		RetryCeiling:      c.Sync.RetryCeiling,
		FailureLogCeiling: c.Sync.FailureLogCeiling,
		Logger:            logger,
	}
}
