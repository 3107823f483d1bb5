package engine

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/csso/fngraph/internal/ctxlog"
	"github.com/csso/fngraph/internal/fn"
	"github.com/csso/fngraph/internal/graph"
	"github.com/csso/fngraph/internal/invoke"
	"github.com/csso/fngraph/internal/run"
	"github.com/csso/fngraph/internal/script"
)

// Config captures everything an engine needs before Init.
type Config struct {
	// ModulesPath is the directory walked for HCL manifests describing the
	// Go packs. Required whenever Modules register any functions; manifests
	// and handlers are validated against each other.
	ModulesPath string

	// Scripts lists script files to load. Scripts describe their own
	// functions and need no manifests.
	Scripts []string

	// Modules are the compiled-in Go packs to register.
	Modules []invoke.Module

	// Metrics, when set, is handed to every session's runtime. May be nil.
	Metrics *run.Metrics
}

// Engine loads function packs and routes invocations to whichever invoker
// implements each function. It satisfies the subsystem contract the app
// model builds on: Init, Functions, Close.
type Engine struct {
	cfg Config

	registry    *fn.Registry
	goInv       *invoke.GoInvoker
	scripts     []*script.Invoker
	routes      map[uuid.UUID]invoke.Invoker
	initialized bool
	closed      bool
}

// New captures the configuration. Nothing is loaded until Init.
func New(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Init registers the Go packs, loads and validates their manifests, loads the
// scripts, and builds the function registry. On error nothing stays
// half-built; a fixed configuration can Init again.
func (e *Engine) Init(ctx context.Context) error {
	if e.closed {
		panic("engine: Init after Close")
	}
	if e.initialized {
		return fmt.Errorf("engine is already initialized")
	}
	logger := ctxlog.FromContext(ctx)

	e.registry = fn.NewRegistry()
	e.goInv = invoke.NewGoInvoker()
	e.routes = make(map[uuid.UUID]invoke.Invoker)

	for _, m := range e.cfg.Modules {
		m.Register(e.goInv)
	}
	logger.Debug("Go packs registered.", "modules", len(e.cfg.Modules), "functions", len(e.goInv.Functions()))

	var manifests []fn.Descriptor
	if e.cfg.ModulesPath != "" {
		var err error
		manifests, err = fn.LoadManifests(ctx, e.cfg.ModulesPath)
		if err != nil {
			return e.abortInit(fmt.Errorf("loading manifests: %w", err))
		}
	}
	resolved, err := fn.BindManifests(ctx, manifests, e.goInv.Functions())
	if err != nil {
		return e.abortInit(err)
	}
	for _, d := range resolved {
		if err := e.registry.Add(d); err != nil {
			return e.abortInit(err)
		}
		e.routes[d.ID] = e.goInv
	}

	for _, path := range e.cfg.Scripts {
		inv, err := script.Load(path)
		if err != nil {
			return e.abortInit(err)
		}
		e.scripts = append(e.scripts, inv)
		for _, d := range inv.Functions() {
			d.ID = fn.DeriveID(d.Name)
			if err := e.registry.Add(d); err != nil {
				return e.abortInit(fmt.Errorf("script %s: %w", inv.Name(), err))
			}
			e.routes[d.ID] = inv
		}
	}

	e.initialized = true
	logger.Info("Engine initialized.", "functions", e.registry.Len(), "scripts", len(e.scripts))
	return nil
}

// abortInit unwinds a failed Init so the engine holds nothing.
func (e *Engine) abortInit(err error) error {
	for _, s := range e.scripts {
		_ = s.Close()
	}
	e.scripts = nil
	e.registry = nil
	e.goInv = nil
	e.routes = nil
	return err
}

// Functions returns the registered descriptors in registration order: Go
// packs first, then each script's functions in declaration order. Before
// Init the snapshot is empty.
func (e *Engine) Functions() []fn.Descriptor {
	if e.closed {
		panic("engine: Functions after Close")
	}
	if !e.initialized {
		return nil
	}
	return e.registry.Snapshot()
}

// Registry exposes the function registry to the layers that plan and serve.
func (e *Engine) Registry() *fn.Registry {
	return e.registry
}

// Invoke routes the call to the invoker that owns d's function.
func (e *Engine) Invoke(ctx context.Context, call *invoke.Call, d fn.Descriptor, in invoke.Args, out invoke.Args) error {
	inv, ok := e.routes[d.ID]
	if !ok {
		return fmt.Errorf("no invoker for function '%s' (%s)", d.Name, d.ID)
	}
	return inv.Invoke(ctx, call, d, in, out)
}

// Output drains the console output of every loaded script, in load order.
func (e *Engine) Output() []string {
	var lines []string
	for _, s := range e.scripts {
		lines = append(lines, s.Output()...)
	}
	return lines
}

// Trace replays the graph() function of the named script against the full
// registry. An empty name is allowed when exactly one script is loaded.
func (e *Engine) Trace(ctx context.Context, name string) (*graph.Graph, error) {
	if !e.initialized {
		return nil, fmt.Errorf("engine is not initialized")
	}
	if name == "" {
		if len(e.scripts) != 1 {
			return nil, fmt.Errorf("%d scripts loaded; name the one to trace", len(e.scripts))
		}
		return e.scripts[0].Trace(ctx, e.registry)
	}
	for _, s := range e.scripts {
		if s.Name() == name || filepath.Base(s.Name()) == name {
			return s.Trace(ctx, e.registry)
		}
	}
	return nil, fmt.Errorf("no script named '%s' is loaded", name)
}

// Close tears down every invoker. Calling Close twice is a programmer error
// and panics; everything after a Close is unsafe.
func (e *Engine) Close() error {
	if e.closed {
		panic("engine: Close called twice")
	}
	e.closed = true

	var firstErr error
	for _, s := range e.scripts {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if e.goInv != nil {
		if err := e.goInv.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	e.scripts = nil
	e.routes = nil
	return firstErr
}
