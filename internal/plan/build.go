package plan

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/csso/fngraph/internal/ctxlog"
	"github.com/csso/fngraph/internal/fn"
	"github.com/csso/fngraph/internal/graph"
)

// Cache reports which nodes still hold outputs from an earlier run. The
// runtime's state implements it; a nil cache plans a cold run.
type Cache interface {
	HasOutputs(nodeID uuid.UUID) bool
}

type coldCache struct{}

func (coldCache) HasOutputs(uuid.UUID) bool { return false }

// Build computes the execution plan for g against the function registry and
// the caches of earlier runs.
//
// Membership is the backward closure from the output nodes. A node's resolved
// edge behavior is Always only when some consumer already resolved to Always
// reaches it through an Always binding; that demand decides whether cached
// nodes run again. Nodes missing required inputs stay in the plan but are
// flagged, and the flag follows bindings downstream.
func Build(ctx context.Context, g *graph.Graph, reg *fn.Registry, cache Cache) (*Plan, error) {
	logger := ctxlog.FromContext(ctx)
	if cache == nil {
		cache = coldCache{}
	}

	byID := make(map[uuid.UUID]*Node)
	var discovered []*Node

	adopt := func(gn *graph.Node, output bool) (*Node, error) {
		d, ok := reg.ByID(gn.FunctionID)
		if !ok {
			return nil, fmt.Errorf("node '%s': function %s is not registered", gn.Name, gn.FunctionID)
		}
		pn := &Node{
			NodeID:           gn.ID,
			Name:             gn.Name,
			Behavior:         gn.Behavior,
			EdgeBehavior:     graph.Once,
			HasCachedOutputs: cache.HasOutputs(gn.ID),
			Descriptor:       d,
			GraphNode:        gn,
		}
		if output {
			pn.Behavior = graph.Active
			pn.EdgeBehavior = graph.Always
		}
		byID[gn.ID] = pn
		discovered = append(discovered, pn)
		return pn, nil
	}

	var queue []*graph.Node
	for _, gn := range g.Nodes {
		if gn.IsOutput {
			if _, err := adopt(gn, true); err != nil {
				return nil, err
			}
			queue = append(queue, gn)
		}
	}
	if len(discovered) == 0 {
		logger.Debug("Graph has no output nodes; plan is empty.")
		return &Plan{byID: byID, byName: map[string]*Node{}}, nil
	}

	// Backward closure. A node whose resolved edge behavior upgrades to
	// Always goes back on the queue so the demand reaches its own producers.
	for len(queue) > 0 {
		gn := queue[0]
		queue = queue[1:]
		consumer := byID[gn.ID]

		for i := range gn.Inputs {
			b := gn.Inputs[i].Binding
			if b == nil {
				continue
			}
			pgn, ok := g.Node(b.OutputNodeID)
			if !ok {
				return nil, fmt.Errorf("node '%s': input '%s' is bound to missing node %s", gn.Name, gn.Inputs[i].Name, b.OutputNodeID)
			}
			producer, seen := byID[pgn.ID]
			if !seen {
				var err error
				if producer, err = adopt(pgn, false); err != nil {
					return nil, err
				}
				queue = append(queue, pgn)
			}
			if consumer.EdgeBehavior == graph.Always && b.Behavior == graph.Always && producer.EdgeBehavior != graph.Always {
				producer.EdgeBehavior = graph.Always
				if seen {
					queue = append(queue, pgn)
				}
			}
		}
	}

	ordered, err := topoOrder(discovered, byID)
	if err != nil {
		return nil, err
	}

	// Flags and execute decisions, producers first so both propagations are
	// single passes.
	for _, pn := range ordered {
		for _, in := range pn.GraphNode.Inputs {
			if in.Binding == nil {
				if in.Required {
					pn.HasMissingInputs = true
				}
				continue
			}
			if byID[in.Binding.OutputNodeID].HasMissingInputs {
				pn.HasMissingInputs = true
			}
		}

		switch {
		case !pn.HasCachedOutputs:
			pn.ShouldExecute = true
		case pn.EdgeBehavior == graph.Once:
			// Cache satisfies every consumer; leave it alone.
		case pn.Behavior == graph.Active:
			pn.ShouldExecute = true
		default:
			for _, in := range pn.GraphNode.Inputs {
				b := in.Binding
				if b == nil || b.Behavior != graph.Always {
					continue
				}
				if byID[b.OutputNodeID].ShouldExecute {
					pn.ShouldExecute = true
					break
				}
			}
		}
	}

	p := &Plan{Nodes: ordered, byID: byID, byName: make(map[string]*Node, len(ordered))}
	for _, pn := range ordered {
		p.byName[pn.Name] = pn
	}
	logger.Debug("Execution plan built.", "planned", len(ordered), "graph_nodes", len(g.Nodes))
	return p, nil
}

// topoOrder runs Kahn's algorithm over the planned nodes so producers come
// before consumers, and counts consumer bindings per node along the way.
func topoOrder(discovered []*Node, byID map[uuid.UUID]*Node) ([]*Node, error) {
	indegree := make(map[uuid.UUID]int, len(discovered))
	dependents := make(map[uuid.UUID][]uuid.UUID, len(discovered))

	for _, pn := range discovered {
		for _, in := range pn.GraphNode.Inputs {
			if in.Binding == nil {
				continue
			}
			producer := in.Binding.OutputNodeID
			byID[producer].TotalBindingCount++
			indegree[pn.NodeID]++
			dependents[producer] = append(dependents[producer], pn.NodeID)
		}
	}

	var ready []*Node
	for _, pn := range discovered {
		if indegree[pn.NodeID] == 0 {
			ready = append(ready, pn)
		}
	}

	ordered := make([]*Node, 0, len(discovered))
	for len(ready) > 0 {
		pn := ready[0]
		ready = ready[1:]
		ordered = append(ordered, pn)
		for _, dep := range dependents[pn.NodeID] {
			indegree[dep]--
			if indegree[dep] == 0 {
				ready = append(ready, byID[dep])
			}
		}
	}

	if len(ordered) != len(discovered) {
		for _, pn := range discovered {
			if indegree[pn.NodeID] > 0 {
				return nil, fmt.Errorf("graph has a cycle; node '%s' cannot be scheduled", pn.Name)
			}
		}
	}
	return ordered, nil
}
