package graph

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/csso/fngraph/internal/ctxlog"
	"github.com/csso/fngraph/internal/dtype"
)

// Wire mirrors of the model. UUIDs travel as strings; yaml.v3 cannot decode
// into uuid.UUID directly, and keeping the wire shape separate also fixes the
// file format independently of the Go model.

type graphYAML struct {
	Nodes     []nodeYAML     `yaml:"nodes"`
	Subgraphs []subgraphYAML `yaml:"subgraphs,omitempty"`
}

type nodeYAML struct {
	ID         string       `yaml:"id"`
	FunctionID string       `yaml:"function_id"`
	Name       string       `yaml:"name"`
	Behavior   Behavior     `yaml:"behavior"`
	IsOutput   bool         `yaml:"is_output"`
	Inputs     []inputYAML  `yaml:"inputs,omitempty"`
	Outputs    []outputYAML `yaml:"outputs,omitempty"`
	SubgraphID string       `yaml:"subgraph_id,omitempty"`
}

type inputYAML struct {
	Name     string       `yaml:"name"`
	Type     dtype.Type   `yaml:"data_type"`
	Required bool         `yaml:"is_required"`
	Binding  *bindingYAML `yaml:"binding,omitempty"`
}

type bindingYAML struct {
	OutputNodeID string       `yaml:"output_node_id"`
	OutputIndex  int          `yaml:"output_index"`
	Behavior     EdgeBehavior `yaml:"behavior"`
}

type outputYAML struct {
	Name string     `yaml:"name"`
	Type dtype.Type `yaml:"data_type"`
}

type subgraphYAML struct {
	ID      string            `yaml:"id"`
	Name    string            `yaml:"name"`
	Inputs  []subgraphPinYAML `yaml:"inputs,omitempty"`
	Outputs []subgraphPinYAML `yaml:"outputs,omitempty"`
}

type subgraphPinYAML struct {
	Name   string     `yaml:"name"`
	Type   dtype.Type `yaml:"data_type"`
	NodeID string     `yaml:"node_id"`
	Index  int        `yaml:"index"`
}

// Encode renders the graph as YAML.
func Encode(g *Graph) ([]byte, error) {
	doc := graphYAML{}
	for _, n := range g.Nodes {
		wn := nodeYAML{
			ID:         n.ID.String(),
			FunctionID: n.FunctionID.String(),
			Name:       n.Name,
			Behavior:   n.Behavior,
			IsOutput:   n.IsOutput,
		}
		if n.SubgraphID != nil {
			wn.SubgraphID = n.SubgraphID.String()
		}
		for _, in := range n.Inputs {
			wi := inputYAML{Name: in.Name, Type: in.Type, Required: in.Required}
			if in.Binding != nil {
				wi.Binding = &bindingYAML{
					OutputNodeID: in.Binding.OutputNodeID.String(),
					OutputIndex:  in.Binding.OutputIndex,
					Behavior:     in.Binding.Behavior,
				}
			}
			wn.Inputs = append(wn.Inputs, wi)
		}
		for _, out := range n.Outputs {
			wn.Outputs = append(wn.Outputs, outputYAML{Name: out.Name, Type: out.Type})
		}
		doc.Nodes = append(doc.Nodes, wn)
	}
	for _, sg := range g.Subgraphs {
		ws := subgraphYAML{ID: sg.ID.String(), Name: sg.Name}
		for _, pin := range sg.Inputs {
			ws.Inputs = append(ws.Inputs, subgraphPinYAML{Name: pin.Name, Type: pin.Type, NodeID: pin.NodeID.String(), Index: pin.Index})
		}
		for _, pin := range sg.Outputs {
			ws.Outputs = append(ws.Outputs, subgraphPinYAML{Name: pin.Name, Type: pin.Type, NodeID: pin.NodeID.String(), Index: pin.Index})
		}
		doc.Subgraphs = append(doc.Subgraphs, ws)
	}
	return yaml.Marshal(doc)
}

// Decode parses YAML into a graph without validating it; callers that accept
// files from outside the process should follow up with Validate.
func Decode(data []byte) (*Graph, error) {
	var doc graphYAML
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse graph document: %w", err)
	}

	g := &Graph{}
	for _, wn := range doc.Nodes {
		n := &Node{
			Name:     wn.Name,
			Behavior: wn.Behavior,
			IsOutput: wn.IsOutput,
		}
		var err error
		if n.ID, err = parseID(wn.ID, "node", wn.Name, "id"); err != nil {
			return nil, err
		}
		if n.FunctionID, err = parseID(wn.FunctionID, "node", wn.Name, "function_id"); err != nil {
			return nil, err
		}
		if wn.SubgraphID != "" {
			id, err := parseID(wn.SubgraphID, "node", wn.Name, "subgraph_id")
			if err != nil {
				return nil, err
			}
			n.SubgraphID = &id
		}
		for _, wi := range wn.Inputs {
			in := Input{Name: wi.Name, Type: wi.Type, Required: wi.Required}
			if wi.Binding != nil {
				src, err := parseID(wi.Binding.OutputNodeID, "node", wn.Name, "binding")
				if err != nil {
					return nil, err
				}
				in.Binding = &Binding{
					OutputNodeID: src,
					OutputIndex:  wi.Binding.OutputIndex,
					Behavior:     wi.Binding.Behavior,
				}
			}
			n.Inputs = append(n.Inputs, in)
		}
		for _, wo := range wn.Outputs {
			n.Outputs = append(n.Outputs, Output{Name: wo.Name, Type: wo.Type})
		}
		g.Nodes = append(g.Nodes, n)
	}

	for _, ws := range doc.Subgraphs {
		sg := &Subgraph{Name: ws.Name}
		var err error
		if sg.ID, err = parseID(ws.ID, "subgraph", ws.Name, "id"); err != nil {
			return nil, err
		}
		if sg.Inputs, err = decodePins(ws.Inputs, ws.Name); err != nil {
			return nil, err
		}
		if sg.Outputs, err = decodePins(ws.Outputs, ws.Name); err != nil {
			return nil, err
		}
		g.Subgraphs = append(g.Subgraphs, sg)
	}

	return g, nil
}

func decodePins(pins []subgraphPinYAML, sgName string) ([]SubgraphPin, error) {
	var out []SubgraphPin
	for _, wp := range pins {
		id, err := parseID(wp.NodeID, "subgraph", sgName, "pin node_id")
		if err != nil {
			return nil, err
		}
		out = append(out, SubgraphPin{Name: wp.Name, Type: wp.Type, NodeID: id, Index: wp.Index})
	}
	return out, nil
}

func parseID(s, kind, name, field string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%s '%s': %s is not a UUID: %w", kind, name, field, err)
	}
	return id, nil
}

// LoadFile reads, decodes, and validates a graph document.
func LoadFile(ctx context.Context, path string) (*Graph, error) {
	logger := ctxlog.FromContext(ctx)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read graph file: %w", err)
	}
	g, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("graph file %s: %w", path, err)
	}
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("graph file %s: %w", path, err)
	}
	logger.Debug("Graph file loaded.", "path", path, "nodes", len(g.Nodes), "subgraphs", len(g.Subgraphs))
	return g, nil
}

// SaveFile validates and writes the graph document.
func (g *Graph) SaveFile(path string) error {
	if err := g.Validate(); err != nil {
		return err
	}
	data, err := Encode(g)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write graph file: %w", err)
	}
	return nil
}
