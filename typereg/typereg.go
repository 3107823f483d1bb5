// Package typereg is a process-wide registry of named, versioned types.
//
// A UI or embedding layer asks it what types exist under a namespace and
// constructs the creatable ones through their factories. Types registered as
// uncreatable can be inspected but never constructed; asking anyway returns
// an error carrying the reason the registrant gave.
//
// Registration happens during startup. Registering the same
// (namespace, version, name) twice is a programmer error and panics.
package typereg

import (
	"fmt"
	"log/slog"
	"reflect"
	"sync"
)

// Entry describes one registered type.
type Entry struct {
	Namespace string
	Major     int
	Minor     int
	Name      string

	// Reason, for uncreatable types, says why construction is refused.
	Reason string

	// GoType is the concrete Go type behind the entry.
	GoType reflect.Type

	factory func() any
}

// Creatable reports whether New can construct this entry.
func (e Entry) Creatable() bool {
	return e.factory != nil
}

// Version renders the entry's version as "major.minor".
func (e Entry) Version() string {
	return fmt.Sprintf("%d.%d", e.Major, e.Minor)
}

type key struct {
	ns    string
	major int
	minor int
	name  string
}

// Registry maps (namespace, version, name) to type entries. Use NewRegistry;
// most callers want the package-level Default.
type Registry struct {
	mu      sync.RWMutex
	entries []Entry
	index   map[key]int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{index: make(map[key]int)}
}

// Default is the process-wide registry the package-level functions use.
var Default = NewRegistry()

// Register adds a creatable type. The factory is invoked once here to record
// the concrete Go type it produces.
func (r *Registry) Register(ns string, major, minor int, name string, factory func() any) {
	if factory == nil {
		panic(fmt.Sprintf("type '%s' registered with nil factory", name))
	}
	r.add(Entry{
		Namespace: ns,
		Major:     major,
		Minor:     minor,
		Name:      name,
		GoType:    indirectType(factory()),
		factory:   factory,
	})
}

// RegisterUncreatable adds a type that can be looked up but never constructed
// through the registry. The prototype value only supplies the Go type.
func (r *Registry) RegisterUncreatable(ns string, major, minor int, name, reason string, prototype any) {
	r.add(Entry{
		Namespace: ns,
		Major:     major,
		Minor:     minor,
		Name:      name,
		Reason:    reason,
		GoType:    indirectType(prototype),
	})
}

func (r *Registry) add(e Entry) {
	if e.Namespace == "" || e.Name == "" {
		panic("typereg: namespace and name are required")
	}
	k := key{e.Namespace, e.Major, e.Minor, e.Name}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.index[k]; exists {
		panic(fmt.Sprintf("type '%s' (%s %d.%d) already registered", e.Name, e.Namespace, e.Major, e.Minor))
	}
	slog.Debug("Registering type.", "namespace", e.Namespace, "name", e.Name, "version", e.Version(), "creatable", e.Creatable())
	r.entries = append(r.entries, e)
	r.index[k] = len(r.entries) - 1
}

// New constructs an instance of the newest registered version of the named
// type. Uncreatable types refuse with their registered reason.
func (r *Registry) New(ns, name string) (any, error) {
	e, ok := r.newest(ns, name)
	if !ok {
		return nil, fmt.Errorf("type '%s' is not registered in namespace '%s'", name, ns)
	}
	if e.factory == nil {
		if e.Reason != "" {
			return nil, fmt.Errorf("type '%s' (%s %s) cannot be instantiated: %s", name, ns, e.Version(), e.Reason)
		}
		return nil, fmt.Errorf("type '%s' (%s %s) cannot be instantiated", name, ns, e.Version())
	}
	return e.factory(), nil
}

// Lookup finds the entry registered under the exact namespace, version, and
// name.
func (r *Registry) Lookup(ns string, major, minor int, name string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.index[key{ns, major, minor, name}]
	if !ok {
		return Entry{}, false
	}
	return r.entries[i], true
}

// List returns every entry in registration order.
func (r *Registry) List() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

func (r *Registry) newest(ns, name string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var best Entry
	found := false
	for _, e := range r.entries {
		if e.Namespace != ns || e.Name != name {
			continue
		}
		if !found || e.Major > best.Major || (e.Major == best.Major && e.Minor > best.Minor) {
			best = e
			found = true
		}
	}
	return best, found
}

func indirectType(v any) reflect.Type {
	t := reflect.TypeOf(v)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}

// Register adds a creatable type to the Default registry.
func Register(ns string, major, minor int, name string, factory func() any) {
	Default.Register(ns, major, minor, name, factory)
}

// RegisterUncreatable adds an uncreatable type to the Default registry.
func RegisterUncreatable(ns string, major, minor int, name, reason string, prototype any) {
	Default.RegisterUncreatable(ns, major, minor, name, reason, prototype)
}

// New constructs a type from the Default registry.
func New(ns, name string) (any, error) {
	return Default.New(ns, name)
}

// Lookup finds an entry in the Default registry.
func Lookup(ns string, major, minor int, name string) (Entry, bool) {
	return Default.Lookup(ns, major, minor, name)
}

// List returns the Default registry's entries in registration order.
func List() []Entry {
	return Default.List()
}
