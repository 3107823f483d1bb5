// Package schedule runs workspace graphs on cron expressions. Each schedule
// entry owns a persistent session, so periodic runs reuse cached node
// outputs the same way an editor session does.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/csso/fngraph/internal/engine"
	"github.com/csso/fngraph/internal/run"
	"github.com/csso/fngraph/internal/workspace"
)

// Config wires a Scheduler to an initialized engine and its workspace.
type Config struct {
	Engine    *engine.Engine
	Workspace *workspace.Config
	Logger    *slog.Logger

	// Notify, when set, receives every run event in addition to the log.
	// The serve layer uses it to feed the WebSocket hub.
	Notify run.EventFunc
}

// Scheduler drives the workspace's schedule blocks.
type Scheduler struct {
	cron    *cron.Cron
	logger  *slog.Logger
	engine  *engine.Engine
	entries []entry

	// runMu serializes runs across entries; the runtime does not allow
	// concurrent Run calls and the script console is shared.
	runMu sync.Mutex
}

type entry struct {
	name    string
	graph   string
	session *engine.Session
}

// New loads one session per schedule entry and registers its cron job. The
// workspace has already validated the expressions, so a parse failure here
// still aborts rather than being skipped.
func New(ctx context.Context, cfg Config) (*Scheduler, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Scheduler{
		cron:   cron.New(),
		logger: logger,
		engine: cfg.Engine,
	}

	for _, sched := range cfg.Workspace.Schedules {
		file, ok := cfg.Workspace.GraphFile(sched.Graph)
		if !ok {
			return nil, fmt.Errorf("schedule '%s': graph '%s' is not declared in the workspace", sched.Name, sched.Graph)
		}

		sess, err := cfg.Engine.NewSession()
		if err != nil {
			return nil, fmt.Errorf("schedule '%s': %w", sched.Name, err)
		}
		if err := sess.LoadGraph(ctx, file); err != nil {
			return nil, fmt.Errorf("schedule '%s': %w", sched.Name, err)
		}
		sess.Runtime().Notify = cfg.Notify

		e := entry{name: sched.Name, graph: sched.Graph, session: sess}
		if _, err := s.cron.AddFunc(sched.Cron, func() { s.runEntry(ctx, e) }); err != nil {
			return nil, fmt.Errorf("schedule '%s': %w", sched.Name, err)
		}
		s.entries = append(s.entries, e)
		logger.Info("Schedule registered.", "schedule", sched.Name, "graph", sched.Graph, "cron", sched.Cron)
	}
	return s, nil
}

// Entries reports how many schedules are registered.
func (s *Scheduler) Entries() int {
	return len(s.entries)
}

// Start launches the cron loop in its own goroutine.
func (s *Scheduler) Start() {
	s.logger.Info("Scheduler starting.", "entries", s.Entries())
	s.cron.Start()
}

// Stop halts the cron loop and waits for an in-flight run to finish, or for
// the context to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.logger.Info("Scheduler stopping.")
	done := s.cron.Stop().Done()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce triggers every entry immediately, in declaration order, without
// waiting for a cron tick. Outcomes are logged and fanned out through
// Notify just like timed runs.
func (s *Scheduler) RunOnce(ctx context.Context) {
	for _, e := range s.entries {
		s.runEntry(ctx, e)
	}
}

func (s *Scheduler) runEntry(ctx context.Context, e entry) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	result, err := e.session.Run(ctx)
	if err != nil {
		s.logger.Error("Scheduled run failed.", "schedule", e.name, "graph", e.graph, "error", err)
		return
	}
	for _, line := range s.engine.Output() {
		s.logger.Info("Graph output.", "schedule", e.name, "line", line)
	}
	s.logger.Info("Scheduled run finished.",
		"schedule", e.name,
		"graph", e.graph,
		"executed", result.Executed,
		"skipped", result.Skipped,
		"duration", result.Duration,
	)
}
