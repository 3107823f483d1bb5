package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/csso/fngraph/appmodel"
	"github.com/csso/fngraph/internal/ctxlog"
	"github.com/csso/fngraph/internal/engine"
	"github.com/csso/fngraph/internal/run"
	"github.com/csso/fngraph/internal/workspace"
)

// App owns the assembled pieces of one fngraph process: the workspace, the
// initialized engine and its catalog model, the metrics registry, and an
// isolated logger.
type App struct {
	logger  *slog.Logger
	cfg     *Config
	ws      *workspace.Config
	engine  *engine.Engine
	model   *appmodel.Model
	metrics *run.Metrics

	closed bool
}

// New loads the workspace and initializes the engine over it. Logs go to
// logW; print output is the caller's concern. The engine registers the core
// Go packs only when the workspace declares a modules_path; a script-only
// workspace runs without them.
//
// The catalog model, not the app, drives engine initialization: New hands
// the engine to appmodel.New, which runs Init and snapshots the functions.
func New(ctx context.Context, logW io.Writer, cfg *Config) (*App, error) {
	logger := newLogger(*cfg, logW)
	ctx = ctxlog.WithLogger(ctx, logger)
	logger.Debug("Logger configured successfully.")

	ws, err := workspace.Load(ctx, cfg.WorkspacePath)
	if err != nil {
		return nil, fmt.Errorf("failed to load workspace: %w", err)
	}
	logger.Debug("Workspace loaded.", "dir", ws.Dir, "scripts", len(ws.Scripts), "graphs", len(ws.Graphs))

	metrics := run.NewMetrics()
	engCfg := engine.Config{
		ModulesPath: ws.ModulesDir(),
		Scripts:     ws.ScriptPaths(),
		Metrics:     metrics,
	}
	if ws.ModulesPath != "" {
		engCfg.Modules = coreModules
	}

	eng := engine.New(engCfg)
	model, err := appmodel.New(ctx, eng)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize engine: %w", err)
	}
	logger.Debug("Engine initialized.", "functions", model.Len())

	return &App{
		logger:  logger,
		cfg:     cfg,
		ws:      ws,
		engine:  eng,
		model:   model,
		metrics: metrics,
	}, nil
}

// Logger returns the app's isolated logger.
func (a *App) Logger() *slog.Logger {
	return a.logger
}

// Workspace returns the loaded workspace config.
func (a *App) Workspace() *workspace.Config {
	return a.ws
}

// Engine returns the initialized engine.
func (a *App) Engine() *engine.Engine {
	return a.engine
}

// Model returns the function catalog snapshotted at startup.
func (a *App) Model() *appmodel.Model {
	return a.model
}

// Metrics returns the runtime metrics registry.
func (a *App) Metrics() *run.Metrics {
	return a.metrics
}

// Close releases the engine through its model. Safe to call more than once,
// so deferred cleanup on error paths cannot trip the engine's close-once
// guard.
func (a *App) Close() {
	if a.closed {
		return
	}
	a.closed = true
	a.model.Close()
}
