package fn

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// Registry holds the descriptors of every callable function for a single
// engine instance, preserving registration order. The order is observable:
// snapshots handed to embedding hosts list functions exactly as registered.
type Registry struct {
	ordered []Descriptor
	byName  map[string]int
	byID    map[uuid.UUID]int
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]int),
		byID:   make(map[uuid.UUID]int),
	}
}

// Add validates and appends a descriptor. Name and ID collisions are errors
// rather than panics because colliding definitions can come from user-authored
// scripts, not only from compiled-in packs.
func (r *Registry) Add(d Descriptor) error {
	if err := d.Validate(); err != nil {
		return err
	}
	if d.ID == uuid.Nil {
		return fmt.Errorf("function %q has no ID", d.Name)
	}
	if _, exists := r.byName[d.Name]; exists {
		return fmt.Errorf("function name %q already registered", d.Name)
	}
	if _, exists := r.byID[d.ID]; exists {
		return fmt.Errorf("function ID %s already registered", d.ID)
	}
	slog.Debug("Registering function.", "name", d.Name, "id", d.ID)
	r.ordered = append(r.ordered, d)
	r.byName[d.Name] = len(r.ordered) - 1
	r.byID[d.ID] = len(r.ordered) - 1
	return nil
}

// ByName looks a descriptor up by function name.
func (r *Registry) ByName(name string) (Descriptor, bool) {
	i, ok := r.byName[name]
	if !ok {
		return Descriptor{}, false
	}
	return r.ordered[i], true
}

// ByID looks a descriptor up by function ID.
func (r *Registry) ByID(id uuid.UUID) (Descriptor, bool) {
	i, ok := r.byID[id]
	if !ok {
		return Descriptor{}, false
	}
	return r.ordered[i], true
}

// Len reports how many functions are registered.
func (r *Registry) Len() int {
	return len(r.ordered)
}

// Snapshot returns the descriptors in registration order. The slice is a
// copy; callers own it outright.
func (r *Registry) Snapshot() []Descriptor {
	out := make([]Descriptor, len(r.ordered))
	copy(out, r.ordered)
	return out
}
