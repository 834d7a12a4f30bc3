// Package modes resolves game-mode identifiers to rule sets and their role
// distribution tables.
package modes

import (
	"fmt"
	"sort"
	"sync"

	"kingdoms-lite/engine"
)

// Entry couples a rule-set factory with the distribution table its mode
// plays under.
type Entry struct {
	New   func() engine.Rules
	Table engine.DistributionTable
}

// Registry holds all registered game modes.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Entry)}
}

// Register adds a mode. Registering a duplicate identifier is a programming
// error.
func (r *Registry) Register(mode string, e Entry) error {
	if mode == "" || e.New == nil || e.Table == nil {
		return fmt.Errorf("incomplete mode registration %q", mode)
	}
	if err := e.Table.Validate(); err != nil {
		return fmt.Errorf("mode %s: %w", mode, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[mode]; exists {
		return fmt.Errorf("mode %s already registered", mode)
	}
	r.entries[mode] = e
	return nil
}

// Resolve returns a fresh rule set and the table for a mode identifier.
func (r *Registry) Resolve(mode string) (engine.Rules, engine.DistributionTable, error) {
	r.mu.RLock()
	e, ok := r.entries[mode]
	r.mu.RUnlock()
	if !ok {
		return nil, nil, fmt.Errorf("unknown game mode %q", mode)
	}
	return e.New(), e.Table, nil
}

// Modes lists registered identifiers in stable order.
func (r *Registry) Modes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.entries))
	for mode := range r.entries {
		out = append(out, mode)
	}
	sort.Strings(out)
	return out
}
