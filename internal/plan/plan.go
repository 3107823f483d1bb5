package plan

import (
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/csso/fngraph/internal/fn"
	"github.com/csso/fngraph/internal/graph"
)

// Node is one planned node. Behavior and EdgeBehavior are the resolved
// values: output nodes are forced Active/Always regardless of what the
// document says, and EdgeBehavior reflects the demand of the consumers that
// pulled the node into the plan.
type Node struct {
	NodeID            uuid.UUID
	Name              string
	Behavior          graph.Behavior
	EdgeBehavior      graph.EdgeBehavior
	ShouldExecute     bool
	HasMissingInputs  bool
	HasCachedOutputs  bool
	TotalBindingCount int

	// Descriptor is the registered function the node instantiates.
	Descriptor fn.Descriptor
	// GraphNode points back into the document for input gathering.
	GraphNode *graph.Node
}

// Plan lists the planned nodes with producers ordered before consumers.
type Plan struct {
	Nodes []*Node

	byID   map[uuid.UUID]*Node
	byName map[string]*Node
}

// Node returns the planned node for a graph node ID.
func (p *Plan) Node(id uuid.UUID) (*Node, bool) {
	n, ok := p.byID[id]
	return n, ok
}

// NodeByName returns the planned node with the given name.
func (p *Plan) NodeByName(name string) (*Node, bool) {
	n, ok := p.byName[name]
	return n, ok
}

// Len reports how many nodes the plan touches.
func (p *Plan) Len() int {
	return len(p.Nodes)
}

type planNodeYAML struct {
	NodeID            string `yaml:"node_id"`
	Name              string `yaml:"name"`
	Function          string `yaml:"function"`
	Behavior          string `yaml:"behavior"`
	EdgeBehavior      string `yaml:"edge_behavior"`
	ShouldExecute     bool   `yaml:"should_execute"`
	HasMissingInputs  bool   `yaml:"has_missing_inputs"`
	HasCachedOutputs  bool   `yaml:"has_cached_outputs"`
	TotalBindingCount int    `yaml:"total_binding_count"`
}

// Encode renders the plan as YAML for diagnostics; the plan command prints
// exactly this.
func (p *Plan) Encode() ([]byte, error) {
	doc := struct {
		Nodes []planNodeYAML `yaml:"nodes"`
	}{}
	for _, n := range p.Nodes {
		doc.Nodes = append(doc.Nodes, planNodeYAML{
			NodeID:            n.NodeID.String(),
			Name:              n.Name,
			Function:          n.Descriptor.Name,
			Behavior:          n.Behavior.String(),
			EdgeBehavior:      n.EdgeBehavior.String(),
			ShouldExecute:     n.ShouldExecute,
			HasMissingInputs:  n.HasMissingInputs,
			HasCachedOutputs:  n.HasCachedOutputs,
			TotalBindingCount: n.TotalBindingCount,
		})
	}
	return yaml.Marshal(doc)
}
