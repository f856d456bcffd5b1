// Package config resolves jobdeck settings from viper.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Veraticus/jobdeck/internal/backend"
	"github.com/Veraticus/jobdeck/internal/common"
	"github.com/Veraticus/jobdeck/internal/job"
	"github.com/Veraticus/jobdeck/internal/model"
	"github.com/Veraticus/jobdeck/internal/quota"
	"github.com/Veraticus/jobdeck/internal/refresh"
)

// Defaults.
const (
	DefaultBackendURL = "http://127.0.0.1:5011"
	DefaultDir        = "~/.config/jobdeck"
	EnvPrefix         = "JOBDECK"
)

// Settings is the resolved runtime configuration.
type Settings struct {
	Jobs            map[model.JobKind]job.Config
	BackendURL      string
	HistoryPath     string
	MetricsAddr     string
	Theme           string
	LogLevel        string
	LogFormat       string
	LogFile         string
	BackendTimeout  time.Duration
	RefreshInterval time.Duration
	QuotaDebounce   time.Duration
	QuotaTTL        time.Duration
}

// SetDefaults registers every key's default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("backend.url", DefaultBackendURL)
	v.SetDefault("backend.timeout", backend.DefaultTimeout)
	v.SetDefault("jobs.max_poll_failures", job.DefaultMaxPollFailures)
	v.SetDefault("jobs.reset_delay", time.Duration(0))
	for _, kind := range model.AllKinds {
		def := job.DefaultConfig(kind)
		v.SetDefault(jobKey(kind, "interval"), def.Interval)
		v.SetDefault(jobKey(kind, "messages"), def.Messages.String())
	}
	v.SetDefault("refresh.interval", refresh.DefaultInterval)
	v.SetDefault("quota.debounce", quota.DefaultDebounce)
	v.SetDefault("quota.ttl", quota.DefaultTTL)
	v.SetDefault("history.path", filepath.Join(DefaultDir, "history.db"))
	v.SetDefault("metrics.addr", "")
	v.SetDefault("tui.theme", "default")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.file", filepath.Join(DefaultDir, "jobdeck.log"))
}

// Load resolves the settings from v. Paths are expanded.
func Load(v *viper.Viper) (Settings, error) {
	s := Settings{
		BackendURL:      v.GetString("backend.url"),
		BackendTimeout:  v.GetDuration("backend.timeout"),
		RefreshInterval: v.GetDuration("refresh.interval"),
		QuotaDebounce:   v.GetDuration("quota.debounce"),
		QuotaTTL:        v.GetDuration("quota.ttl"),
		HistoryPath:     ExpandPath(v.GetString("history.path")),
		MetricsAddr:     v.GetString("metrics.addr"),
		Theme:           v.GetString("tui.theme"),
		LogLevel:        v.GetString("logging.level"),
		LogFormat:       v.GetString("logging.format"),
		LogFile:         ExpandPath(v.GetString("logging.file")),
		Jobs:            make(map[model.JobKind]job.Config, len(model.AllKinds)),
	}

	maxFailures := v.GetInt("jobs.max_poll_failures")
	resetDelay := v.GetDuration("jobs.reset_delay")
	for _, kind := range model.AllKinds {
		cfg := job.DefaultConfig(kind)
		cfg.Interval = v.GetDuration(jobKey(kind, "interval"))
		mode, err := job.ParseMessageMode(v.GetString(jobKey(kind, "messages")))
		if err != nil {
			return Settings{}, fmt.Errorf("jobs.%s.messages: %w", kind, err)
		}
		cfg.Messages = mode
		cfg.MaxPollFailures = maxFailures
		cfg.ResetDelay = resetDelay
		if err := cfg.Validate(); err != nil {
			return Settings{}, err
		}
		s.Jobs[kind] = cfg
	}

	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Validate checks settings that are not covered by the per-job validation.
func (s Settings) Validate() error {
	if _, err := backend.NewClient(s.BackendURL); err != nil {
		return err
	}
	if s.BackendTimeout <= 0 {
		return fmt.Errorf("%w: backend.timeout must be positive", common.ErrInvalidConfig)
	}
	if s.RefreshInterval <= 0 {
		return fmt.Errorf("%w: refresh.interval must be positive", common.ErrInvalidConfig)
	}
	if s.QuotaDebounce < 0 || s.QuotaTTL <= 0 {
		return fmt.Errorf("%w: quota timings out of range", common.ErrInvalidConfig)
	}
	return nil
}

// ExpandPath expands a leading ~ and environment variables in path.
func ExpandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = home + strings.TrimPrefix(path, "~")
		}
	}
	return os.ExpandEnv(path)
}

// EnsureDir creates the parent directory of path.
func EnsureDir(path string) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	return nil
}

func jobKey(kind model.JobKind, field string) string {
	return "jobs." + string(kind) + "." + field
}
