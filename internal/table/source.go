package table

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Veraticus/jobdeck/internal/model"
)

// AccountLoader fetches the full account set.
type AccountLoader interface {
	Accounts(ctx context.Context) ([]model.AccountRow, error)
}

// Snapshot is the result of the most recent refresh.
type Snapshot struct {
	LoadedAt time.Time
	Err      error
	Rows     []model.AccountRow
	Stats    model.AccountStats
	Seq      uint64
}

// Source reloads the account set on demand. Refreshes are serialized so a
// job-driven refresh never overlaps a periodic one.
type Source struct {
	loader   AccountLoader
	onUpdate func(Snapshot)
	now      func() time.Time
	timeout  time.Duration

	snap Snapshot

	refreshMu sync.Mutex
	mu        sync.RWMutex
}

// NewSource creates a source. onUpdate, if set, is called after every refresh.
func NewSource(loader AccountLoader, onUpdate func(Snapshot)) *Source {
	return &Source{
		loader:   loader,
		onUpdate: onUpdate,
		now:      time.Now,
		timeout:  15 * time.Second,
	}
}

// Refresh reloads the account set and replaces the snapshot wholesale. A
// failed load keeps the previous rows and records the error.
func (s *Source) Refresh(ctx context.Context) error {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	rows, err := s.loader.Accounts(ctx)

	s.mu.Lock()
	s.snap.Seq++
	s.snap.Err = err
	if err == nil {
		s.snap.Rows = rows
		s.snap.Stats = model.SummarizeAccounts(rows)
		s.snap.LoadedAt = s.now()
	}
	snap := s.snap
	s.mu.Unlock()

	if err != nil {
		slog.Warn("Failed to refresh accounts", "error", err)
	}
	if s.onUpdate != nil {
		s.onUpdate(snap)
	}
	return err
}

// RefreshAsync starts a refresh in the background. It never blocks the caller.
func (s *Source) RefreshAsync() {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		_ = s.Refresh(ctx)
	}()
}

// Snapshot returns the latest snapshot.
func (s *Source) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}
