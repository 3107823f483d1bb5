// Package archive stores graph documents under a name, so editors can push
// work to a shared store and pull it back later. Save overwrites whatever the
// name held before; the name is the unit of ownership.
package archive

import (
	"context"
	"errors"
	"time"

	"github.com/csso/fngraph/internal/graph"
)

// ErrNotFound is returned by Load and Delete when no archived graph carries
// the requested name.
var ErrNotFound = errors.New("graph not found in archive")

// Entry describes one archived graph.
type Entry struct {
	Name    string
	Nodes   int
	SavedAt time.Time
}

// Archive stores validated graph documents by name.
type Archive interface {
	Save(ctx context.Context, name string, g *graph.Graph) error
	Load(ctx context.Context, name string) (*graph.Graph, error)
	List(ctx context.Context) ([]Entry, error)
	Delete(ctx context.Context, name string) error
	Close(ctx context.Context) error
}
