package script

import (
	"context"
	"errors"
	"fmt"

	"github.com/dop251/goja"
	"github.com/google/uuid"

	"github.com/csso/fngraph/internal/fn"
	"github.com/csso/fngraph/internal/graph"
)

// tracer accumulates the nodes and bindings a graph() replay produces.
type tracer struct {
	vm        *goja.Runtime
	g         *graph.Graph
	nameCount map[string]int
	consumed  map[uuid.UUID]bool
	err       error
}

// Trace replays the script's graph() function with every registered function
// replaced by a recording stub, and returns the graph those calls describe.
// Passing a stub's return value into another call becomes a binding; repeated
// calls of the same function get numbered node names. Nodes whose results are
// never consumed become the graph's outputs.
func (s *Invoker) Trace(ctx context.Context, reg *fn.Registry) (*graph.Graph, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, fmt.Errorf("script %s: invoker is closed", s.name)
	}
	gfn, ok := goja.AssertFunction(s.vm.Get("graph"))
	if !ok {
		return nil, fmt.Errorf("script %s does not define a graph() function", s.name)
	}

	t := &tracer{
		vm:        s.vm,
		g:         &graph.Graph{},
		nameCount: make(map[string]int),
		consumed:  make(map[uuid.UUID]bool),
	}

	// Swap the globals for stubs, replay, then put the script's own globals
	// back so later Invoke calls behave normally.
	saved := make(map[string]goja.Value)
	for _, d := range reg.Snapshot() {
		saved[d.Name] = s.vm.Get(d.Name)
		s.vm.Set(d.Name, t.recorder(d))
	}
	defer func() {
		for name, v := range saved {
			if v == nil {
				v = goja.Undefined()
			}
			s.vm.Set(name, v)
		}
	}()

	stop := s.interruptOnCancel(ctx)
	defer stop()

	if _, err := gfn(goja.Undefined()); err != nil {
		if t.err != nil {
			return nil, fmt.Errorf("script %s: %w", s.name, t.err)
		}
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) && ctx.Err() != nil {
			return nil, fmt.Errorf("script %s: graph(): %w", s.name, ctx.Err())
		}
		return nil, fmt.Errorf("script %s: graph(): %w", s.name, err)
	}

	for _, n := range t.g.Nodes {
		if !t.consumed[n.ID] {
			n.IsOutput = true
		}
	}
	if err := t.g.Validate(); err != nil {
		return nil, fmt.Errorf("script %s: traced graph: %w", s.name, err)
	}
	return t.g, nil
}

// recorder returns the stub installed in place of one function. Each call
// adds a node, binds its inputs to the handles passed in, and returns a new
// handle for the node's outputs.
func (t *tracer) recorder(d fn.Descriptor) func(goja.FunctionCall) goja.Value {
	return func(fc goja.FunctionCall) goja.Value {
		if len(fc.Arguments) > len(d.Inputs) {
			t.fail(fmt.Errorf("graph(): function '%s' takes %d inputs, got %d", d.Name, len(d.Inputs), len(fc.Arguments)))
		}
		n := graph.NewNode(d, t.nodeName(d.Name))
		t.g.AddNode(n)
		for i, arg := range fc.Arguments {
			id, idx, ok := handleFrom(arg)
			if !ok {
				t.fail(fmt.Errorf("graph(): argument %d of '%s' must be the result of another traced call", i+1, d.Name))
			}
			producer, found := t.g.Node(id)
			if !found {
				t.fail(fmt.Errorf("graph(): argument %d of '%s' references an unknown node", i+1, d.Name))
			}
			if err := n.BindInput(n.Inputs[i].Name, producer, idx, graph.Always); err != nil {
				t.fail(fmt.Errorf("graph(): %w", err))
			}
			t.consumed[id] = true
		}
		return t.handle(n)
	}
}

// fail records the first error and aborts the replay by throwing into the
// script.
func (t *tracer) fail(err error) {
	if t.err == nil {
		t.err = err
	}
	panic(t.vm.NewGoError(err))
}

// handle builds the stub return value for a node: the bare handle stands for
// output 0, and each output pin is reachable by name for multi-output
// functions.
func (t *tracer) handle(n *graph.Node) goja.Value {
	h := t.vm.NewObject()
	h.Set("__node_id", n.ID.String())
	h.Set("__output_index", 0)
	for i, out := range n.Outputs {
		sub := t.vm.NewObject()
		sub.Set("__node_id", n.ID.String())
		sub.Set("__output_index", i)
		h.Set(out.Name, sub)
	}
	return h
}

func handleFrom(v goja.Value) (uuid.UUID, int, bool) {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return uuid.Nil, 0, false
	}
	obj, ok := v.(*goja.Object)
	if !ok {
		return uuid.Nil, 0, false
	}
	idv := obj.Get("__node_id")
	if idv == nil || goja.IsUndefined(idv) {
		return uuid.Nil, 0, false
	}
	id, err := uuid.Parse(idv.String())
	if err != nil {
		return uuid.Nil, 0, false
	}
	return id, int(obj.Get("__output_index").ToInteger()), true
}

// nodeName hands out graph-unique node names: the first sum call becomes
// "sum", the second "sum_2".
func (t *tracer) nodeName(fnName string) string {
	t.nameCount[fnName]++
	if c := t.nameCount[fnName]; c > 1 {
		return fmt.Sprintf("%s_%d", fnName, c)
	}
	return fnName
}
