package getter

import "sync"

// Registration pairs a getter with its selection priority.
type Registration struct {
	Getter   Getter
	Priority int
}

// Registry resolves locators to getters. Selection walks registrations
// in priority order, higher first, with insertion order breaking ties,
// and the first getter whose Matches reports true wins. A Registry is
// safe for concurrent use.
type Registry struct {
	mu   sync.RWMutex
	regs []Registration
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds g at the given priority. A getter registered later at
// the same priority is consulted after earlier ones. Nil getters are
// ignored.
func (r *Registry) Register(g Getter, priority int) {
	if g == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	// Insert after the last registration of equal or higher priority so
	// ties keep insertion order.
	i := len(r.regs)
	for ; i > 0; i-- {
		if r.regs[i-1].Priority >= priority {
			break
		}
	}
	r.regs = append(r.regs, Registration{})
	copy(r.regs[i+1:], r.regs[i:])
	r.regs[i] = Registration{Getter: g, Priority: priority}
}

// Select returns the first registered getter that matches loc.
func (r *Registry) Select(loc *Locator) (Getter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, reg := range r.regs {
		if reg.Getter.Matches(loc) {
			return reg.Getter, true
		}
	}
	return nil, false
}

// Len reports the number of registrations.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.regs)
}

var (
	defaultRegistryOnce sync.Once
	defaultRegistry     *Registry
)

// DefaultRegistry returns the process-wide registry, lazily seeded with
// every built-in getter at priority zero.
func DefaultRegistry() *Registry {
	defaultRegistryOnce.Do(func() {
		r := NewRegistry()
		r.Register(NewFileGetter(), 0)
		r.Register(NewGitGetter(), 0)
		r.Register(NewHTTPGetter(), 0)
		r.Register(NewS3Getter(), 0)
		r.Register(NewGCSGetter(), 0)
		r.Register(NewAzBlobGetter(), 0)
		r.Register(NewOCIGetter(), 0)
		defaultRegistry = r
	})
	return defaultRegistry
}

// Register adds g to the default registry.
func Register(g Getter, priority int) {
	DefaultRegistry().Register(g, priority)
}
