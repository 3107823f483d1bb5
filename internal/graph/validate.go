package graph

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/csso/fngraph/internal/dtype"
)

// Validate checks the document's local consistency: identity rules, binding
// targets, and subgraph wiring. Function existence and cycles are the
// planner's concern because they depend on the live registry and on which
// nodes are actually reachable.
func (g *Graph) Validate() error {
	var errs []string

	ids := make(map[uuid.UUID]*Node, len(g.Nodes))
	names := make(map[string]struct{}, len(g.Nodes))
	for _, n := range g.Nodes {
		if n.ID == uuid.Nil {
			errs = append(errs, fmt.Sprintf("node '%s': missing id", n.Name))
			continue
		}
		if _, dup := ids[n.ID]; dup {
			errs = append(errs, fmt.Sprintf("node id %s is used twice", n.ID))
		}
		ids[n.ID] = n

		if n.Name == "" {
			errs = append(errs, fmt.Sprintf("node %s: missing name", n.ID))
		} else if _, dup := names[n.Name]; dup {
			errs = append(errs, fmt.Sprintf("node name '%s' is used twice", n.Name))
		}
		names[n.Name] = struct{}{}

		if n.FunctionID == uuid.Nil {
			errs = append(errs, fmt.Sprintf("node '%s': missing function id", n.Name))
		}
	}

	sgIDs := make(map[uuid.UUID]*Subgraph, len(g.Subgraphs))
	for _, sg := range g.Subgraphs {
		if sg.ID == uuid.Nil {
			errs = append(errs, fmt.Sprintf("subgraph '%s': missing id", sg.Name))
			continue
		}
		if _, dup := sgIDs[sg.ID]; dup {
			errs = append(errs, fmt.Sprintf("subgraph id %s is used twice", sg.ID))
		}
		sgIDs[sg.ID] = sg
	}

	for _, n := range g.Nodes {
		errs = append(errs, validateBindings(n, ids)...)
		if n.SubgraphID != nil {
			if _, ok := sgIDs[*n.SubgraphID]; !ok {
				errs = append(errs, fmt.Sprintf("node '%s': subgraph %s does not exist", n.Name, *n.SubgraphID))
			}
		}
	}

	for _, sg := range g.Subgraphs {
		errs = append(errs, validateSubgraphPins(g, sg)...)
	}

	if len(errs) > 0 {
		return fmt.Errorf("graph validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}

func validateBindings(n *Node, ids map[uuid.UUID]*Node) []string {
	var errs []string
	for _, in := range n.Inputs {
		b := in.Binding
		if b == nil {
			continue
		}
		if b.OutputNodeID == n.ID {
			errs = append(errs, fmt.Sprintf("node '%s': input '%s' is bound to the node itself", n.Name, in.Name))
			continue
		}
		producer, ok := ids[b.OutputNodeID]
		if !ok {
			errs = append(errs, fmt.Sprintf("node '%s': input '%s' is bound to missing node %s", n.Name, in.Name, b.OutputNodeID))
			continue
		}
		if b.OutputIndex < 0 || b.OutputIndex >= len(producer.Outputs) {
			errs = append(errs, fmt.Sprintf("node '%s': input '%s' is bound to output %d of '%s', which has %d outputs",
				n.Name, in.Name, b.OutputIndex, producer.Name, len(producer.Outputs)))
			continue
		}
		src := producer.Outputs[b.OutputIndex]
		if !dtype.CanAssign(in.Type, src.Type) {
			errs = append(errs, fmt.Sprintf("node '%s': input '%s' (%s) cannot accept output '%s' (%s) of '%s'",
				n.Name, in.Name, in.Type, src.Name, src.Type, producer.Name))
		}
	}
	return errs
}

func validateSubgraphPins(g *Graph, sg *Subgraph) []string {
	var errs []string

	member := func(id uuid.UUID) (*Node, bool) {
		n, ok := g.Node(id)
		if !ok || n.SubgraphID == nil || *n.SubgraphID != sg.ID {
			return nil, false
		}
		return n, true
	}

	for _, pin := range sg.Inputs {
		n, ok := member(pin.NodeID)
		if !ok {
			errs = append(errs, fmt.Sprintf("subgraph '%s': input pin '%s' targets a node outside the subgraph", sg.Name, pin.Name))
			continue
		}
		if pin.Index < 0 || pin.Index >= len(n.Inputs) {
			errs = append(errs, fmt.Sprintf("subgraph '%s': input pin '%s' targets input %d of '%s', which has %d inputs",
				sg.Name, pin.Name, pin.Index, n.Name, len(n.Inputs)))
			continue
		}
		if !dtype.CanAssign(n.Inputs[pin.Index].Type, pin.Type) {
			errs = append(errs, fmt.Sprintf("subgraph '%s': input pin '%s' (%s) cannot feed input '%s' (%s) of '%s'",
				sg.Name, pin.Name, pin.Type, n.Inputs[pin.Index].Name, n.Inputs[pin.Index].Type, n.Name))
		}
	}

	for _, pin := range sg.Outputs {
		n, ok := member(pin.NodeID)
		if !ok {
			errs = append(errs, fmt.Sprintf("subgraph '%s': output pin '%s' targets a node outside the subgraph", sg.Name, pin.Name))
			continue
		}
		if pin.Index < 0 || pin.Index >= len(n.Outputs) {
			errs = append(errs, fmt.Sprintf("subgraph '%s': output pin '%s' targets output %d of '%s', which has %d outputs",
				sg.Name, pin.Name, pin.Index, n.Name, len(n.Outputs)))
			continue
		}
		if !dtype.CanAssign(pin.Type, n.Outputs[pin.Index].Type) {
			errs = append(errs, fmt.Sprintf("subgraph '%s': output pin '%s' (%s) cannot carry output '%s' (%s) of '%s'",
				sg.Name, pin.Name, pin.Type, n.Outputs[pin.Index].Name, n.Outputs[pin.Index].Type, n.Name))
		}
	}

	return errs
}
