package job

import (
	"fmt"
	"sort"
	"sync"

	"github.com/Veraticus/jobdeck/internal/common"
	"github.com/Veraticus/jobdeck/internal/model"
)

// Registry holds one controller per job kind.
type Registry struct {
	controllers map[model.JobKind]*Controller
	mu          sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{controllers: make(map[model.JobKind]*Controller)}
}

// Register adds a controller. A second controller for the same kind is refused.
func (r *Registry) Register(c *Controller) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.controllers[c.Kind()]; ok {
		return fmt.Errorf("%w: duplicate controller for %s", common.ErrInvalidConfig, c.Kind())
	}
	r.controllers[c.Kind()] = c
	return nil
}

// Get returns the controller for kind.
func (r *Registry) Get(kind model.JobKind) (*Controller, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.controllers[kind]
	if !ok {
		return nil, fmt.Errorf("%w: no controller for %s", common.ErrNotFound, kind)
	}
	return c, nil
}

// Kinds returns the registered kinds in stable order.
func (r *Registry) Kinds() []model.JobKind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]model.JobKind, 0, len(r.controllers))
	for k := range r.controllers {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Running reports whether a job of kind is active.
func (r *Registry) Running(kind model.JobKind) bool {
	c, err := r.Get(kind)
	if err != nil {
		return false
	}
	return c.Running()
}

// AnyRunning reports whether any of the given kinds is active. With no kinds
// it checks every registered controller.
func (r *Registry) AnyRunning(kinds ...model.JobKind) bool {
	if len(kinds) == 0 {
		kinds = r.Kinds()
	}
	for _, k := range kinds {
		if r.Running(k) {
			return true
		}
	}
	return false
}

// Observe registers o with every controller.
func (r *Registry) Observe(o Observer) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.controllers {
		c.AddObserver(o)
	}
}

// Close stops every controller's poller.
func (r *Registry) Close() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.controllers {
		c.Close()
	}
}
