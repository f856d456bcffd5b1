package job

import (
	"context"
	"sync"
	"time"

	"go.uber.org/atomic"
)

// Poller repeatedly runs a probe at a fixed interval until stopped. Probes are
// strictly sequential: the next interval starts only after the previous probe
// returned.
type Poller struct {
	probe    func(context.Context)
	stopCh   chan struct{}
	done     chan struct{}
	probes   *atomic.Int64
	stopped  *atomic.Bool
	started  *atomic.Bool
	interval time.Duration

	// gate orders probe issue against Stop so that no probe starts after Stop returns.
	gate     sync.Mutex
	stopOnce sync.Once
}

// NewPoller creates a poller. It does nothing until Start is called.
func NewPoller(interval time.Duration, probe func(context.Context)) *Poller {
	return &Poller{
		interval: interval,
		probe:    probe,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
		probes:   atomic.NewInt64(0),
		stopped:  atomic.NewBool(false),
		started:  atomic.NewBool(false),
	}
}

// Start launches the polling loop. The first probe runs one interval after Start.
// Calling Start more than once has no effect.
func (p *Poller) Start(ctx context.Context) {
	if !p.started.CompareAndSwap(false, true) {
		return
	}
	go p.loop(ctx)
}

func (p *Poller) loop(ctx context.Context) {
	defer close(p.done)

	timer := time.NewTimer(p.interval)
	defer timer.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		p.gate.Lock()
		if p.stopped.Load() {
			p.gate.Unlock()
			return
		}
		p.probes.Inc()
		p.gate.Unlock()

		p.probe(ctx)

		timer.Reset(p.interval)
	}
}

// Stop ends the loop. It is idempotent and does not wait for an in-flight probe.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() {
		p.gate.Lock()
		p.stopped.Store(true)
		p.gate.Unlock()
		close(p.stopCh)
	})
}

// Stopped reports whether Stop was called.
func (p *Poller) Stopped() bool {
	return p.stopped.Load()
}

// Probes returns how many probes have been issued.
func (p *Poller) Probes() int64 {
	return p.probes.Load()
}

// Done is closed when the loop has exited. It never closes for a poller that was not started.
func (p *Poller) Done() <-chan struct{} {
	return p.done
}
