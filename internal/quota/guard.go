// Package quota computes how many generation submissions an email identity
// can still validly request.
package quota

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/sync/singleflight"

	"github.com/Veraticus/jobdeck/internal/common"
	"github.com/Veraticus/jobdeck/internal/job"
	"github.com/Veraticus/jobdeck/internal/model"
)

const (
	// DefaultDebounce is the pause after the last input change before computing.
	DefaultDebounce = 500 * time.Millisecond
	// DefaultTTL is how long a computed result is reused for the same identity.
	DefaultTTL = 30 * time.Second
	// MaxOptions caps the submission count choices offered to the operator.
	MaxOptions = 100

	failureTTL  = time.Second
	loadTimeout = 15 * time.Second
)

// Calculator is the remote max computation.
type Calculator interface {
	CalculateMax(ctx context.Context, email string) (model.QuotaResult, error)
}

// Status is the guard's view of the current identity.
type Status int

// Guard statuses.
const (
	NeedsIdentity Status = iota
	Calculating
	Ready
	Exhausted
	Failed
)

func (s Status) String() string {
	switch s {
	case NeedsIdentity:
		return "needs_identity"
	case Calculating:
		return "calculating"
	case Ready:
		return "ready"
	case Exhausted:
		return "exhausted"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// State is a snapshot of the guard.
type State struct {
	Err       error
	Email     string
	Result    model.QuotaResult
	Status    Status
	Aliasable bool
}

// Hint renders the operator-facing hint for the state.
func (s State) Hint() string {
	switch s.Status {
	case NeedsIdentity:
		return "Enter email first"
	case Calculating:
		return "Calculating..."
	case Exhausted:
		return "All variations already used!"
	case Failed:
		return "Error calculating"
	}
	if s.Result.DuplicatesFiltered > 0 {
		return fmt.Sprintf("Max: %d (%d already used)", s.Result.Max, s.Result.DuplicatesFiltered)
	}
	return fmt.Sprintf("Max: %d", s.Result.Max)
}

// Options returns the selectable counts 1..min(max, MaxOptions).
func (s State) Options() []int {
	if s.Status != Ready {
		return nil
	}
	n := min(s.Result.Max, MaxOptions)
	opts := make([]int, 0, n)
	for i := 1; i <= n; i++ {
		opts = append(opts, i)
	}
	return opts
}

// IsAliasable reports whether the address belongs to a domain that ignores
// dots in the local part.
func IsAliasable(email string) bool {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(email[at+1:])) {
	case "gmail.com", "googlemail.com":
		return true
	}
	return false
}

type cacheItem struct {
	err    error
	result model.QuotaResult
}

// Option configures a Guard.
type Option func(*Guard)

// WithDebounce sets the input debounce delay.
func WithDebounce(d time.Duration) Option {
	return func(g *Guard) {
		if d >= 0 {
			g.debounce = d
		}
	}
}

// WithTTL sets how long results are cached per identity.
func WithTTL(d time.Duration) Option {
	return func(g *Guard) {
		if d > 0 {
			g.ttl = d
		}
	}
}

// WithOnChange registers a callback invoked after every state change, outside the guard's lock.
func WithOnChange(fn func(State)) Option {
	return func(g *Guard) {
		g.onChange = fn
	}
}

// Guard tracks the quota for the identity currently entered by the operator.
type Guard struct {
	calc     Calculator
	cache    *ttlcache.Cache[string, cacheItem]
	group    *singleflight.Group
	onChange func(State)
	timer    *time.Timer

	state    State
	debounce time.Duration
	ttl      time.Duration
	// gen increments on every identity change so stale computations are discarded.
	gen uint64

	mu sync.Mutex
}

// NewGuard creates a guard. Call Close to stop its cache janitor.
func NewGuard(calc Calculator, opts ...Option) *Guard {
	g := &Guard{
		calc:     calc,
		debounce: DefaultDebounce,
		ttl:      DefaultTTL,
		group:    new(singleflight.Group),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.cache = ttlcache.New(
		ttlcache.WithTTL[string, cacheItem](g.ttl),
		ttlcache.WithDisableTouchOnHit[string, cacheItem](),
	)
	go g.cache.Start()
	return g
}

// Close stops the cache janitor and any pending computation.
func (g *Guard) Close() {
	g.mu.Lock()
	if g.timer != nil {
		g.timer.Stop()
	}
	g.mu.Unlock()
	g.cache.Stop()
}

// State returns the current state.
func (g *Guard) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Input records an identity change. Aliasable identities are computed after the
// debounce delay; anything else resolves immediately.
func (g *Guard) Input(email string, aliasable bool) {
	email = strings.TrimSpace(email)

	g.mu.Lock()
	if email == g.state.Email && aliasable == g.state.Aliasable && g.state.Status != NeedsIdentity {
		g.mu.Unlock()
		return
	}
	gen := g.resetLocked(email, aliasable)
	pending := g.state.Status == Calculating
	if pending {
		g.timer = time.AfterFunc(g.debounce, func() { g.compute(gen) })
	}
	state := g.state
	g.mu.Unlock()

	g.notify(state)
}

// Blur computes a pending identity immediately instead of waiting for the debounce.
func (g *Guard) Blur() {
	g.mu.Lock()
	if g.state.Status != Calculating || g.timer == nil {
		g.mu.Unlock()
		return
	}
	if !g.timer.Stop() {
		// Already fired.
		g.mu.Unlock()
		return
	}
	gen := g.gen
	g.mu.Unlock()

	go g.compute(gen)
}

// Resolve sets the identity and computes its quota synchronously.
func (g *Guard) Resolve(ctx context.Context, email string, aliasable bool) (State, error) {
	email = strings.TrimSpace(email)

	g.mu.Lock()
	gen := g.gen
	if email != g.state.Email || aliasable != g.state.Aliasable || g.state.Status == NeedsIdentity {
		gen = g.resetLocked(email, aliasable)
	}
	state := g.state
	g.mu.Unlock()

	if state.Status != Calculating && state.Status != Failed {
		g.notify(state)
		return state, nil
	}

	item := g.load(ctx, email)
	state = g.apply(gen, item)
	return state, state.Err
}

// Invalidate purges cached results and recomputes the current identity. It is
// called after a generation run because the run consumed variations.
func (g *Guard) Invalidate() {
	g.cache.DeleteAll()

	g.mu.Lock()
	if !g.state.Aliasable || g.state.Status == NeedsIdentity {
		g.mu.Unlock()
		return
	}
	g.gen++
	gen := g.gen
	g.state.Status = Calculating
	g.state.Err = nil
	state := g.state
	g.mu.Unlock()

	g.notify(state)
	go g.compute(gen)
}

// OnJobEvent invalidates the quota when a generation run ends.
func (g *Guard) OnJobEvent(e job.Event) {
	if e.Kind == model.KindGeneration && e.Type == job.EventTransition && e.To.Terminal() {
		g.Invalidate()
	}
}

// Allow checks a submission count against the quota computed for the same
// identity and aliasing setting.
func (g *Guard) Allow(email string, aliasable bool, count int) error {
	state := g.State()
	if strings.TrimSpace(email) != state.Email {
		return fmt.Errorf("%w: identity changed", common.ErrQuotaNotReady)
	}
	if aliasable != state.Aliasable {
		return fmt.Errorf("%w: aliasing changed", common.ErrQuotaNotReady)
	}
	switch state.Status {
	case Ready:
	case Exhausted:
		return common.ErrQuotaExhausted
	case Failed:
		return fmt.Errorf("%w: %w", common.ErrQuotaNotReady, state.Err)
	default:
		return fmt.Errorf("%w: %s", common.ErrQuotaNotReady, state.Status)
	}
	if count < 1 {
		return common.NewUserError("count must be at least 1", nil)
	}
	if count > state.Result.Max {
		return fmt.Errorf("%w: requested %d, max %d", common.ErrQuotaExceeded, count, state.Result.Max)
	}
	return nil
}

// Clamp limits count to [1, max] for the current identity.
func (g *Guard) Clamp(count int) int {
	state := g.State()
	if state.Status != Ready {
		return 0
	}
	return max(1, min(count, state.Result.Max))
}

// resetLocked switches to a new identity and returns its generation.
func (g *Guard) resetLocked(email string, aliasable bool) uint64 {
	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
	g.gen++
	g.state = State{Email: email, Aliasable: aliasable}

	switch {
	case email == "" || !strings.Contains(email, "@"):
		g.state.Status = NeedsIdentity
	case !aliasable:
		g.state.Status = Ready
		g.state.Result = model.QuotaResult{Max: 1}
	default:
		g.state.Status = Calculating
	}
	return g.gen
}

func (g *Guard) compute(gen uint64) {
	g.mu.Lock()
	if gen != g.gen {
		g.mu.Unlock()
		return
	}
	email := g.state.Email
	g.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
	defer cancel()
	g.apply(gen, g.load(ctx, email))
}

func (g *Guard) load(ctx context.Context, email string) cacheItem {
	loader := ttlcache.LoaderFunc[string, cacheItem](
		func(c *ttlcache.Cache[string, cacheItem], key string) *ttlcache.Item[string, cacheItem] {
			result, err := g.calc.CalculateMax(ctx, key)
			if err != nil {
				return c.Set(key, cacheItem{err: err}, failureTTL)
			}
			return c.Set(key, cacheItem{result: result}, ttlcache.DefaultTTL)
		},
	)
	item := g.cache.Get(strings.ToLower(email),
		ttlcache.WithLoader[string, cacheItem](ttlcache.NewSuppressedLoader[string, cacheItem](loader, g.group)))
	if item == nil {
		return cacheItem{err: errors.New("quota calculation returned no result")}
	}
	return item.Value()
}

// apply stores a computation result if it still belongs to the current identity.
func (g *Guard) apply(gen uint64, item cacheItem) State {
	g.mu.Lock()
	if gen != g.gen {
		state := g.state
		g.mu.Unlock()
		slog.Debug("Discarding stale quota result", "email", state.Email)
		return state
	}
	if item.err != nil {
		g.state.Status = Failed
		g.state.Err = item.err
		slog.Warn("Quota calculation failed", "email", g.state.Email, "error", item.err)
	} else {
		g.state.Result = item.result
		g.state.Err = nil
		g.state.Status = Ready
		if item.result.Max <= 0 {
			g.state.Status = Exhausted
		}
	}
	state := g.state
	g.mu.Unlock()

	g.notify(state)
	return state
}

func (g *Guard) notify(state State) {
	if g.onChange != nil {
		g.onChange(state)
	}
}
