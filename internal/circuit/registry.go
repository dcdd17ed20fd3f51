package circuit

import (
	"sync"
	"time"
)

// Registry holds one Breaker per vendor name, created lazily on
// first use and retained for the process lifetime.
type Registry struct {
	threshold int
	cooldown  time.Duration

	mu       sync.Mutex
	breakers map[string]*Breaker
}

// NewRegistry returns a Registry whose breakers all share the given
// threshold and cooldown.
func NewRegistry(threshold int, cooldown time.Duration) *Registry {
	return &Registry{
		threshold: threshold,
		cooldown:  cooldown,
		breakers:  make(map[string]*Breaker),
	}
}

// Get returns the Breaker for name, creating it (CLOSED) if absent.
func (r *Registry) Get(name string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.breakers[name]
	if !ok {
		b = New(r.threshold, r.cooldown)
		r.breakers[name] = b
	}
	return b
}

// Status reports every known vendor's current state, for the admin
// introspection endpoint.
func (r *Registry) Status() map[string]string {
	r.mu.Lock()
	names := make([]string, 0, len(r.breakers))
	breakers := make([]*Breaker, 0, len(r.breakers))
	for name, b := range r.breakers {
		names = append(names, name)
		breakers = append(breakers, b)
	}
	r.mu.Unlock()

	status := make(map[string]string, len(names))
	for i, name := range names {
		status[name] = breakers[i].State().String()
	}
	return status
}

// Reset forces the named vendor's breaker back to CLOSED. Returns
// false if no breaker has been created for that vendor yet.
func (r *Registry) Reset(name string) bool {
	r.mu.Lock()
	b, ok := r.breakers[name]
	r.mu.Unlock()
	if !ok {
		return false
	}
	b.Reset()
	return true
}
