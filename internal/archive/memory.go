package archive

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/csso/fngraph/internal/graph"
)

type memoryEntry struct {
	data    []byte
	nodes   int
	savedAt time.Time
}

// Memory is an in-process Archive. Graphs are stored in their encoded form,
// so a caller mutating a graph after Save cannot reach back into the store.
type Memory struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

// NewMemory creates an empty in-memory archive.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]memoryEntry)}
}

// Save validates and stores the graph under name.
func (m *Memory) Save(ctx context.Context, name string, g *graph.Graph) error {
	if name == "" {
		return fmt.Errorf("archive: graph name is empty")
	}
	if err := g.Validate(); err != nil {
		return err
	}
	data, err := graph.Encode(g)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[name] = memoryEntry{data: data, nodes: len(g.Nodes), savedAt: time.Now().UTC()}
	return nil
}

// Load returns a fresh copy of the graph stored under name.
func (m *Memory) Load(ctx context.Context, name string) (*graph.Graph, error) {
	m.mu.Lock()
	e, ok := m.entries[name]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("archive: graph '%s': %w", name, ErrNotFound)
	}
	return graph.Decode(e.data)
}

// List returns the archived entries sorted by name.
func (m *Memory) List(ctx context.Context) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Entry, 0, len(m.entries))
	for name, e := range m.entries {
		out = append(out, Entry{Name: name, Nodes: e.nodes, SavedAt: e.savedAt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Delete removes the graph stored under name.
func (m *Memory) Delete(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.entries[name]; !ok {
		return fmt.Errorf("archive: graph '%s': %w", name, ErrNotFound)
	}
	delete(m.entries, name)
	return nil
}

// Close implements Archive; there is nothing to release.
func (m *Memory) Close(ctx context.Context) error {
	return nil
}
