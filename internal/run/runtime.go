package run

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/zclconf/go-cty/cty"

	"github.com/csso/fngraph/internal/ctxlog"
	"github.com/csso/fngraph/internal/fn"
	"github.com/csso/fngraph/internal/graph"
	"github.com/csso/fngraph/internal/invoke"
	"github.com/csso/fngraph/internal/plan"
)

// Event is one observable moment of a run. The serving layer fans these out
// to editor clients.
type Event struct {
	Type     string // run_started, node_executed, node_skipped, node_failed, run_finished
	Node     string
	NodeID   uuid.UUID
	Reason   string // for skips: "cache" or "missing_inputs"
	Error    string
	Duration time.Duration
}

// EventFunc receives events synchronously; implementations must not block.
type EventFunc func(Event)

// Result summarizes a finished run.
type Result struct {
	Planned  int
	Executed int
	Skipped  int
	Duration time.Duration
}

// Runtime executes graphs and owns the state carried between runs. One
// Runtime serves one session; it is not safe for concurrent Run calls.
type Runtime struct {
	state   *State
	metrics *Metrics

	// Notify, when set, receives run events as they happen.
	Notify EventFunc
}

// New creates a Runtime. metrics may be nil.
func New(metrics *Metrics) *Runtime {
	return &Runtime{state: NewState(), metrics: metrics}
}

// State exposes the cross-run state, mainly to tests and diagnostics.
func (r *Runtime) State() *State {
	return r.state
}

// Plan builds the execution plan the next Run would use.
func (r *Runtime) Plan(ctx context.Context, g *graph.Graph, reg *fn.Registry) (*plan.Plan, error) {
	return plan.Build(ctx, g, reg, r.state)
}

// Run plans and executes the graph. Node handler errors abort the run; state
// written by nodes that already executed is kept, so a fixed graph resumes
// from their caches.
func (r *Runtime) Run(ctx context.Context, g *graph.Graph, reg *fn.Registry, inv invoke.Invoker) (*Result, error) {
	logger := ctxlog.FromContext(ctx)
	started := time.Now()

	p, err := plan.Build(ctx, g, reg, r.state)
	if err != nil {
		r.metrics.observeRun("plan_failed", 0, time.Since(started))
		return nil, err
	}

	r.notify(Event{Type: "run_started"})
	res := &Result{Planned: p.Len()}

	for _, pn := range p.Nodes {
		if err := ctx.Err(); err != nil {
			r.metrics.observeRun("canceled", p.Len(), time.Since(started))
			return nil, fmt.Errorf("run canceled before node '%s': %w", pn.Name, err)
		}

		if !pn.ShouldExecute {
			res.Skipped++
			r.metrics.countNode("skipped_cache")
			r.notify(Event{Type: "node_skipped", Node: pn.Name, NodeID: pn.NodeID, Reason: "cache"})
			continue
		}
		if pn.HasMissingInputs {
			logger.Warn("Skipping node with missing required inputs.", "node", pn.Name, "function", pn.Descriptor.Name)
			res.Skipped++
			r.metrics.countNode("skipped_missing")
			r.notify(Event{Type: "node_skipped", Node: pn.Name, NodeID: pn.NodeID, Reason: "missing_inputs"})
			continue
		}

		in, err := r.gatherInputs(pn)
		if err != nil {
			r.failNode(pn, err, p, started)
			return nil, err
		}

		out := make(invoke.Args, len(pn.GraphNode.Outputs))
		nodeStart := time.Now()
		if err := inv.Invoke(ctx, r.state.Call(pn.GraphNode), pn.Descriptor, in, out); err != nil {
			err = fmt.Errorf("node '%s' (%s): %w", pn.Name, pn.Descriptor.Name, err)
			r.failNode(pn, err, p, started)
			return nil, err
		}

		r.state.setOutputs(pn.NodeID, out)
		res.Executed++
		r.metrics.countNode("executed")
		r.notify(Event{Type: "node_executed", Node: pn.Name, NodeID: pn.NodeID, Duration: time.Since(nodeStart)})
		logger.Debug("Node executed.", "node", pn.Name, "function", pn.Descriptor.Name)
	}

	keep := make(map[uuid.UUID]struct{}, p.Len())
	for _, pn := range p.Nodes {
		keep[pn.NodeID] = struct{}{}
	}
	r.state.retain(keep)

	res.Duration = time.Since(started)
	r.metrics.observeRun("ok", p.Len(), res.Duration)
	r.notify(Event{Type: "run_finished", Duration: res.Duration})
	logger.Info("Graph run finished.", "planned", res.Planned, "executed", res.Executed, "skipped", res.Skipped, "duration", res.Duration)
	return res, nil
}

// gatherInputs assembles the argument list from cached producer outputs.
// Unbound optional pins pass null; the planner already diverted nodes with
// unbound required pins.
func (r *Runtime) gatherInputs(pn *plan.Node) (invoke.Args, error) {
	gn := pn.GraphNode
	in := make(invoke.Args, len(gn.Inputs))
	for i, input := range gn.Inputs {
		b := input.Binding
		if b == nil {
			in[i] = cty.NullVal(input.Type.Cty())
			continue
		}
		vals, ok := r.state.Outputs(b.OutputNodeID)
		if !ok || b.OutputIndex >= len(vals) {
			return nil, fmt.Errorf("node '%s': input '%s' has no value available from its producer", gn.Name, input.Name)
		}
		v, err := input.Type.ConvertValue(vals[b.OutputIndex])
		if err != nil {
			return nil, fmt.Errorf("node '%s': input '%s': %w", gn.Name, input.Name, err)
		}
		in[i] = v
	}
	return in, nil
}

func (r *Runtime) failNode(pn *plan.Node, err error, p *plan.Plan, started time.Time) {
	r.metrics.countNode("failed")
	r.metrics.observeRun("failed", p.Len(), time.Since(started))
	r.notify(Event{Type: "node_failed", Node: pn.Name, NodeID: pn.NodeID, Error: err.Error()})
}

func (r *Runtime) notify(e Event) {
	if r.Notify != nil {
		r.Notify(e)
	}
}
