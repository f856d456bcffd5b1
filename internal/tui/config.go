package tui

import (
	"context"
	"errors"
	"time"

	"github.com/atotto/clipboard"

	"github.com/Veraticus/jobdeck/internal/console"
	"github.com/Veraticus/jobdeck/internal/job"
	"github.com/Veraticus/jobdeck/internal/model"
	"github.com/Veraticus/jobdeck/internal/quota"
	"github.com/Veraticus/jobdeck/internal/table"
	"github.com/Veraticus/jobdeck/internal/tui/themes"
)

// Backend is the subset of the backend client the console reads and writes
// outside of job control.
type Backend interface {
	Locations(ctx context.Context) (model.LocationInfo, error)
	PaymentStats(ctx context.Context) (model.PaymentStats, error)
	Sessions(ctx context.Context) ([]model.SessionRecord, error)
	Merchandise(ctx context.Context) ([]model.Merchandise, error)
	AddMerchandise(ctx context.Context, item model.Merchandise) error
	SetCardAlias(ctx context.Context, email, alias string) error
}

// Deps are the components the console drives.
type Deps struct {
	Registry *job.Registry
	Console  *console.Console
	Accounts *table.Source
	Quota    *quota.Guard
	Backend  Backend
	Notifier *Notifier
}

func (d Deps) validate() error {
	switch {
	case d.Registry == nil:
		return errors.New("tui: registry is required")
	case d.Console == nil:
		return errors.New("tui: console is required")
	case d.Accounts == nil:
		return errors.New("tui: account source is required")
	case d.Quota == nil:
		return errors.New("tui: quota guard is required")
	case d.Backend == nil:
		return errors.New("tui: backend is required")
	case d.Notifier == nil:
		return errors.New("tui: notifier is required")
	}
	return nil
}

// Config holds TUI configuration.
type Config struct {
	Theme      themes.Theme
	Clipboard  func(string) error
	BackendURL string
	Timeout    time.Duration
	Width      int
	Height     int
}

// Option is a functional option for configuring the TUI.
type Option func(*Config)

func defaultConfig() Config {
	return Config{
		Theme:     themes.Default,
		Clipboard: clipboard.WriteAll,
		Timeout:   30 * time.Second,
		Width:     120,
		Height:    40,
	}
}

// WithTheme sets the visual theme.
func WithTheme(theme themes.Theme) Option {
	return func(c *Config) {
		c.Theme = theme
	}
}

// WithSize sets the initial terminal size.
func WithSize(width, height int) Option {
	return func(c *Config) {
		c.Width = width
		c.Height = height
	}
}

// WithClipboard replaces the system clipboard writer.
func WithClipboard(write func(string) error) Option {
	return func(c *Config) {
		if write != nil {
			c.Clipboard = write
		}
	}
}

// WithBackendURL shows the backend address in the header.
func WithBackendURL(url string) Option {
	return func(c *Config) {
		c.BackendURL = url
	}
}

// WithTimeout bounds every backend action issued from the console.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.Timeout = d
		}
	}
}
