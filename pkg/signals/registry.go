package signals

import (
	"fmt"
	"sync"
)

// Registry is the set of named signals a device exposes, matching spec
// §6.4's ephemeral `signals/<name> -> value_bytes` namespace. Unlike the
// journal/tree/keys namespaces, signals are never persisted across
// restarts — the Registry simply holds live *Signal values in memory.
type Registry struct {
	mu      sync.Mutex
	signals map[string]*Signal
	writers map[string]*Writer
}

func NewRegistry() *Registry {
	return &Registry{
		signals: make(map[string]*Signal),
		writers: make(map[string]*Writer),
	}
}

// Declare registers a new named signal with its initial value, returning
// the Writer the owning component keeps for itself. Declaring the same
// name twice is a programmer error — one owning component per signal.
func (r *Registry) Declare(name string, initial any) (*Signal, *Writer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.signals[name]; exists {
		return nil, nil, fmt.Errorf("signals: %q already declared", name)
	}
	s, w := New(initial)
	r.signals[name] = s
	r.writers[name] = w
	return s, w, nil
}

// Lookup returns the read-only Signal registered under name, for any
// component that wants to read or subscribe without owning it.
func (r *Registry) Lookup(name string) (*Signal, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.signals[name]
	return s, ok
}
