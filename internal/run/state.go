package run

import (
	"github.com/google/uuid"
	"github.com/zclconf/go-cty/cty"

	"github.com/csso/fngraph/internal/graph"
	"github.com/csso/fngraph/internal/invoke"
)

// State is what a session keeps between runs: the output values nodes
// produced and the call contexts handlers park state in. It implements
// plan.Cache.
type State struct {
	outputs map[uuid.UUID][]cty.Value
	calls   map[uuid.UUID]*invoke.Call
}

// NewState creates empty cross-run state.
func NewState() *State {
	return &State{
		outputs: make(map[uuid.UUID][]cty.Value),
		calls:   make(map[uuid.UUID]*invoke.Call),
	}
}

// HasOutputs reports whether the node produced outputs in an earlier run.
func (s *State) HasOutputs(nodeID uuid.UUID) bool {
	_, ok := s.outputs[nodeID]
	return ok
}

// Outputs returns the cached output values of a node.
func (s *State) Outputs(nodeID uuid.UUID) ([]cty.Value, bool) {
	vals, ok := s.outputs[nodeID]
	return vals, ok
}

func (s *State) setOutputs(nodeID uuid.UUID, vals []cty.Value) {
	s.outputs[nodeID] = vals
}

// Call returns the node's persistent call context, creating it on first use.
// Editors seed emitter nodes through it before a run.
func (s *State) Call(n *graph.Node) *invoke.Call {
	if c, ok := s.calls[n.ID]; ok {
		return c
	}
	c := invoke.NewCall(n.ID, n.Name)
	s.calls[n.ID] = c
	return c
}

// retain drops state for every node not in keep. Runs leave behind exactly
// the planned nodes' state, so a node that falls out of the plan starts cold
// when it comes back.
func (s *State) retain(keep map[uuid.UUID]struct{}) {
	for id := range s.outputs {
		if _, ok := keep[id]; !ok {
			delete(s.outputs, id)
		}
	}
	for id := range s.calls {
		if _, ok := keep[id]; !ok {
			delete(s.calls, id)
		}
	}
}
