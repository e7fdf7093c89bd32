package federation

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/absmach/dronefl/pkg/errors"
	"github.com/absmach/dronefl/pkg/netsim"
)

// Registry holds the network profiles of registered drones. Profiles are
// immutable once registered.
type Registry struct {
	mu       sync.RWMutex
	profiles map[string]netsim.Profile
	changed  chan struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		profiles: make(map[string]netsim.Profile),
		changed:  make(chan struct{}),
	}
}

func (r *Registry) Register(p netsim.Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.profiles[p.DroneID]; ok {
		if existing == p {
			return nil
		}

		return errors.ErrEntityExists
	}
	r.profiles[p.DroneID] = p
	r.notify()

	return nil
}

func (r *Registry) Deregister(droneID string) error {
	if droneID == "" {
		return errors.ErrEmptyKey
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.profiles[droneID]; !ok {
		return errors.ErrNotFound
	}
	delete(r.profiles, droneID)
	r.notify()

	return nil
}

// notify wakes every waiter. Callers hold the write lock.
func (r *Registry) notify() {
	close(r.changed)
	r.changed = make(chan struct{})
}

func (r *Registry) Profile(droneID string) (netsim.Profile, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.profiles[droneID]

	return p, ok
}

// IDs returns the registered drone ids in ascending order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return slices.Sorted(maps.Keys(r.profiles))
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.profiles)
}

// WaitFor blocks until at least n drones are registered or ctx is done.
func (r *Registry) WaitFor(ctx context.Context, n int) error {
	for {
		r.mu.RLock()
		count, changed := len(r.profiles), r.changed
		r.mu.RUnlock()

		if count >= n {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changed:
		}
	}
}
