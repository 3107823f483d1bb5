package engine

import (
	"context"
	"fmt"

	"github.com/csso/fngraph/internal/graph"
	"github.com/csso/fngraph/internal/plan"
	"github.com/csso/fngraph/internal/run"
)

// Session pairs one graph with one runtime. Sessions from the same engine
// share its registry and invokers but nothing else; each carries its own
// cross-run state.
type Session struct {
	engine  *Engine
	graph   *graph.Graph
	runtime *run.Runtime
}

// NewSession creates a session on an initialized engine.
func (e *Engine) NewSession() (*Session, error) {
	if e.closed {
		panic("engine: NewSession after Close")
	}
	if !e.initialized {
		return nil, fmt.Errorf("engine is not initialized")
	}
	return &Session{engine: e, runtime: run.New(e.cfg.Metrics)}, nil
}

// Runtime exposes the session's runtime, e.g. to attach an event listener.
func (s *Session) Runtime() *run.Runtime {
	return s.runtime
}

// Graph returns the currently loaded graph, nil before any load.
func (s *Session) Graph() *graph.Graph {
	return s.graph
}

// SetGraph replaces the session's graph. State from earlier runs is kept;
// nodes that survive under the same ID keep their caches.
func (s *Session) SetGraph(g *graph.Graph) {
	s.graph = g
}

// LoadGraph reads and validates a graph file into the session.
func (s *Session) LoadGraph(ctx context.Context, path string) error {
	g, err := graph.LoadFile(ctx, path)
	if err != nil {
		return err
	}
	s.graph = g
	return nil
}

// Plan computes the plan the next Run would execute.
func (s *Session) Plan(ctx context.Context) (*plan.Plan, error) {
	if s.graph == nil {
		return nil, fmt.Errorf("session has no graph loaded")
	}
	return s.runtime.Plan(ctx, s.graph, s.engine.registry)
}

// Run executes the session's graph through the engine's invokers.
func (s *Session) Run(ctx context.Context) (*run.Result, error) {
	if s.graph == nil {
		return nil, fmt.Errorf("session has no graph loaded")
	}
	return s.runtime.Run(ctx, s.graph, s.engine.registry, s.engine)
}
