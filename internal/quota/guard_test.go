package quota

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/jobdeck/internal/common"
	"github.com/Veraticus/jobdeck/internal/job"
	"github.com/Veraticus/jobdeck/internal/model"
)

type fakeCalculator struct {
	err     error
	results map[string]model.QuotaResult
	delay   time.Duration
	calls   int
	mu      sync.Mutex
}

func (f *fakeCalculator) CalculateMax(_ context.Context, email string) (model.QuotaResult, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return model.QuotaResult{}, f.err
	}
	return f.results[email], nil
}

func (f *fakeCalculator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newGuard(t *testing.T, calc Calculator, opts ...Option) *Guard {
	t.Helper()
	g := NewGuard(calc, opts...)
	t.Cleanup(g.Close)
	return g
}

func TestIsAliasable(t *testing.T) {
	assert.True(t, IsAliasable("a.b@gmail.com"))
	assert.True(t, IsAliasable("ab@GoogleMail.com"))
	assert.False(t, IsAliasable("ab@example.com"))
	assert.False(t, IsAliasable("not-an-email"))
}

func TestGuard_NonAliasableIsAlwaysOne(t *testing.T) {
	calc := &fakeCalculator{results: map[string]model.QuotaResult{"ab@example.com": {Max: 50}}}
	g := newGuard(t, calc)

	state, err := g.Resolve(context.Background(), "ab@example.com", false)
	require.NoError(t, err)
	assert.Equal(t, Ready, state.Status)
	assert.Equal(t, model.QuotaResult{Max: 1}, state.Result)
	assert.Equal(t, []int{1}, state.Options())
	assert.Zero(t, calc.callCount(), "non-aliasable identities never hit the backend")
}

func TestGuard_CapsCountAtMax(t *testing.T) {
	calc := &fakeCalculator{results: map[string]model.QuotaResult{
		"a.b@gmail.com": {Max: 2, DuplicatesFiltered: 3},
	}}
	g := newGuard(t, calc)

	state, err := g.Resolve(context.Background(), "a.b@gmail.com", true)
	require.NoError(t, err)
	assert.Equal(t, "Max: 2 (3 already used)", state.Hint())
	assert.Equal(t, []int{1, 2}, state.Options())

	assert.NoError(t, g.Allow("a.b@gmail.com", true, 2))
	assert.ErrorIs(t, g.Allow("a.b@gmail.com", true, 3), common.ErrQuotaExceeded)
	assert.Equal(t, 2, g.Clamp(3))
}

func TestGuard_Exhausted(t *testing.T) {
	calc := &fakeCalculator{results: map[string]model.QuotaResult{"ab@gmail.com": {Max: 0, DuplicatesFiltered: 2}}}
	g := newGuard(t, calc)

	state, err := g.Resolve(context.Background(), "ab@gmail.com", true)
	require.NoError(t, err)
	assert.Equal(t, Exhausted, state.Status)
	assert.Equal(t, "All variations already used!", state.Hint())
	assert.Empty(t, state.Options())
	assert.ErrorIs(t, g.Allow("ab@gmail.com", true, 1), common.ErrQuotaExhausted)
}

func TestGuard_IdentityChangeBlocksSubmission(t *testing.T) {
	calc := &fakeCalculator{results: map[string]model.QuotaResult{"ab@gmail.com": {Max: 4}}}
	g := newGuard(t, calc, WithDebounce(time.Hour))

	_, err := g.Resolve(context.Background(), "ab@gmail.com", true)
	require.NoError(t, err)

	g.Input("other@gmail.com", true)
	assert.Equal(t, "Calculating...", g.State().Hint())
	assert.ErrorIs(t, g.Allow("ab@gmail.com", true, 1), common.ErrQuotaNotReady)
	assert.ErrorIs(t, g.Allow("other@gmail.com", true, 1), common.ErrQuotaNotReady)
}

func TestGuard_AliasingChangeBlocksSubmission(t *testing.T) {
	calc := &fakeCalculator{results: map[string]model.QuotaResult{"a.b@gmail.com": {Max: 4}}}
	g := newGuard(t, calc, WithDebounce(time.Hour))

	_, err := g.Resolve(context.Background(), "a.b@gmail.com", true)
	require.NoError(t, err)
	require.NoError(t, g.Allow("a.b@gmail.com", true, 3))

	err = g.Allow("a.b@gmail.com", false, 1)
	assert.ErrorIs(t, err, common.ErrQuotaNotReady)
	assert.Contains(t, err.Error(), "aliasing changed")

	g.Input("a.b@gmail.com", false)
	assert.NoError(t, g.Allow("a.b@gmail.com", false, 1))
	assert.ErrorIs(t, g.Allow("a.b@gmail.com", false, 2), common.ErrQuotaExceeded)
	assert.ErrorIs(t, g.Allow("a.b@gmail.com", true, 1), common.ErrQuotaNotReady)
}

func TestGuard_DebounceAndBlur(t *testing.T) {
	calc := &fakeCalculator{results: map[string]model.QuotaResult{"ab@gmail.com": {Max: 6}}}
	g := newGuard(t, calc, WithDebounce(time.Hour))

	g.Input("a", true)
	assert.Equal(t, "Enter email first", g.State().Hint())

	g.Input("ab@gmail.com", true)
	assert.Equal(t, Calculating, g.State().Status)
	assert.Zero(t, calc.callCount())

	g.Blur()
	assert.Eventually(t, func() bool { return g.State().Status == Ready }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "Max: 6", g.State().Hint())
}

func TestGuard_DebounceFires(t *testing.T) {
	var mu sync.Mutex
	var seen []Status
	calc := &fakeCalculator{results: map[string]model.QuotaResult{"ab@gmail.com": {Max: 6}}}
	g := newGuard(t, calc, WithDebounce(10*time.Millisecond), WithOnChange(func(s State) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, s.Status)
	}))

	g.Input("ab@gmail.co", true)
	g.Input("ab@gmail.com", true)

	assert.Eventually(t, func() bool { return g.State().Status == Ready }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, calc.callCount(), "superseded input is never computed")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, Ready, seen[len(seen)-1])
}

func TestGuard_StaleResultDiscarded(t *testing.T) {
	calc := &fakeCalculator{
		delay: 20 * time.Millisecond,
		results: map[string]model.QuotaResult{
			"first@gmail.com":  {Max: 9},
			"second@gmail.com": {Max: 1},
		},
	}
	g := newGuard(t, calc, WithDebounce(0))

	g.Input("first@gmail.com", true)
	time.Sleep(5 * time.Millisecond)
	g.Input("second@gmail.com", false)

	time.Sleep(50 * time.Millisecond)
	state := g.State()
	assert.Equal(t, "second@gmail.com", state.Email)
	assert.Equal(t, 1, state.Result.Max)
}

func TestGuard_Failure(t *testing.T) {
	calc := &fakeCalculator{err: errors.New("backend down")}
	g := newGuard(t, calc)

	state, err := g.Resolve(context.Background(), "ab@gmail.com", true)
	require.Error(t, err)
	assert.Equal(t, Failed, state.Status)
	assert.Equal(t, "Error calculating", state.Hint())
	assert.ErrorIs(t, g.Allow("ab@gmail.com", true, 1), common.ErrQuotaNotReady)
}

func TestGuard_CacheAndInvalidate(t *testing.T) {
	calc := &fakeCalculator{results: map[string]model.QuotaResult{"ab@gmail.com": {Max: 5}}}
	g := newGuard(t, calc, WithTTL(time.Minute))
	ctx := context.Background()

	_, err := g.Resolve(ctx, "ab@gmail.com", true)
	require.NoError(t, err)
	_, err = g.Resolve(ctx, "cd@gmail.com", true)
	require.NoError(t, err)
	_, err = g.Resolve(ctx, "ab@gmail.com", true)
	require.NoError(t, err)
	assert.Equal(t, 2, calc.callCount(), "repeat identity is served from cache")

	calc.mu.Lock()
	calc.results["ab@gmail.com"] = model.QuotaResult{Max: 2, DuplicatesFiltered: 3}
	calc.mu.Unlock()

	g.Invalidate()
	assert.Eventually(t, func() bool {
		s := g.State()
		return s.Status == Ready && s.Result.Max == 2
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 3, calc.callCount())
}

func TestGuard_GenerationRunEndRecomputes(t *testing.T) {
	calc := &fakeCalculator{results: map[string]model.QuotaResult{"ab@gmail.com": {Max: 5}}}
	g := newGuard(t, calc, WithTTL(time.Minute))

	_, err := g.Resolve(context.Background(), "ab@gmail.com", true)
	require.NoError(t, err)
	require.Equal(t, 1, calc.callCount())

	// Other kinds and non-terminal transitions leave the cache alone.
	g.OnJobEvent(job.Event{Kind: model.KindCreditRefresh, Type: job.EventTransition, To: job.StateComplete})
	g.OnJobEvent(job.Event{Kind: model.KindGeneration, Type: job.EventTransition, To: job.StateRunning})
	g.OnJobEvent(job.Event{Kind: model.KindGeneration, Type: job.EventPoll, To: job.StateRunning})
	assert.Equal(t, Ready, g.State().Status)

	calc.mu.Lock()
	calc.results["ab@gmail.com"] = model.QuotaResult{Max: 0, DuplicatesFiltered: 5}
	calc.mu.Unlock()

	g.OnJobEvent(job.Event{Kind: model.KindGeneration, Type: job.EventTransition, To: job.StateComplete})
	assert.Eventually(t, func() bool {
		return g.State().Status == Exhausted
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 2, calc.callCount())
}
