package graph

import (
	"github.com/google/uuid"

	"github.com/csso/fngraph/internal/dtype"
)

// SubgraphPin exposes one member-node pin on a subgraph boundary.
type SubgraphPin struct {
	Name   string
	Type   dtype.Type
	NodeID uuid.UUID
	Index  int
}

// Subgraph groups nodes behind named boundary pins.
type Subgraph struct {
	ID      uuid.UUID
	Name    string
	Inputs  []SubgraphPin
	Outputs []SubgraphPin
}

// Graph is the complete document: all nodes plus subgraph groupings. The
// zero value is an empty, valid graph.
type Graph struct {
	Nodes     []*Node
	Subgraphs []*Subgraph
}

// AddNode inserts n, replacing any node with the same ID.
func (g *Graph) AddNode(n *Node) {
	for i, existing := range g.Nodes {
		if existing.ID == n.ID {
			g.Nodes[i] = n
			return
		}
	}
	g.Nodes = append(g.Nodes, n)
}

// RemoveNode deletes the node with the given ID and clears every binding that
// referenced it, so survivors never point at a missing producer.
func (g *Graph) RemoveNode(id uuid.UUID) {
	kept := g.Nodes[:0]
	for _, n := range g.Nodes {
		if n.ID != id {
			kept = append(kept, n)
		}
	}
	g.Nodes = kept

	for _, n := range g.Nodes {
		for i := range n.Inputs {
			if b := n.Inputs[i].Binding; b != nil && b.OutputNodeID == id {
				n.Inputs[i].Binding = nil
			}
		}
	}
}

// Node returns the node with the given ID.
func (g *Graph) Node(id uuid.UUID) (*Node, bool) {
	for _, n := range g.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return nil, false
}

// NodeByName returns the node with the given name. Validate enforces name
// uniqueness, so the first match is the only match in a valid graph.
func (g *Graph) NodeByName(name string) (*Node, bool) {
	for _, n := range g.Nodes {
		if n.Name == name {
			return n, true
		}
	}
	return nil, false
}

// NodesBySubgraph returns the member nodes of a subgraph.
func (g *Graph) NodesBySubgraph(id uuid.UUID) []*Node {
	var out []*Node
	for _, n := range g.Nodes {
		if n.SubgraphID != nil && *n.SubgraphID == id {
			out = append(out, n)
		}
	}
	return out
}

// AddSubgraph inserts sg, replacing any subgraph with the same ID.
func (g *Graph) AddSubgraph(sg *Subgraph) {
	for i, existing := range g.Subgraphs {
		if existing.ID == sg.ID {
			g.Subgraphs[i] = sg
			return
		}
	}
	g.Subgraphs = append(g.Subgraphs, sg)
}

// Subgraph returns the subgraph with the given ID.
func (g *Graph) Subgraph(id uuid.UUID) (*Subgraph, bool) {
	for _, sg := range g.Subgraphs {
		if sg.ID == id {
			return sg, true
		}
	}
	return nil, false
}

// RemoveSubgraph deletes a subgraph and all of its member nodes, cascading
// binding cleanup through RemoveNode.
func (g *Graph) RemoveSubgraph(id uuid.UUID) {
	kept := g.Subgraphs[:0]
	for _, sg := range g.Subgraphs {
		if sg.ID != id {
			kept = append(kept, sg)
		}
	}
	g.Subgraphs = kept

	for _, n := range g.NodesBySubgraph(id) {
		g.RemoveNode(n.ID)
	}
}
