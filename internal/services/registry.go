package services

import (
	"fmt"
	"sort"
	"sync"

	shelferrors "github.com/randalmurphal/shelf/internal/errors"
)

// Constructor builds a Source for one account.
type Constructor func(acct Account) (Source, error)

// Registry maps service kinds to source constructors.
type Registry struct {
	mu           sync.RWMutex
	constructors map[Kind]Constructor
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{constructors: make(map[Kind]Constructor)}
}

// Register adds or replaces the constructor for kind.
func (r *Registry) Register(kind Kind, c Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.constructors[kind] = c
}

// Open builds the source for acct.
func (r *Registry) Open(acct Account) (Source, error) {
	r.mu.RLock()
	c, ok := r.constructors[acct.Kind]
	r.mu.RUnlock()
	if !ok {
		return nil, shelferrors.Validation(
			fmt.Sprintf("no source registered for service kind %q", acct.Kind),
			fmt.Sprintf("registered kinds: %v", r.Kinds()),
		)
	}
	src, err := c(acct)
	if err != nil {
		return nil, fmt.Errorf("open %s source %s: %w", acct.Kind, acct.Name, err)
	}
	return src, nil
}

// Supports reports whether kind has a constructor.
func (r *Registry) Supports(kind Kind) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.constructors[kind]
	return ok
}

// Kinds returns the registered kinds, sorted.
func (r *Registry) Kinds() []Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]Kind, 0, len(r.constructors))
	for k := range r.constructors {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}
