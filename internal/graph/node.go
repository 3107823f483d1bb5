package graph

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/csso/fngraph/internal/dtype"
	"github.com/csso/fngraph/internal/fn"
)

// Binding wires an input pin to one output pin of another node.
type Binding struct {
	OutputNodeID uuid.UUID
	OutputIndex  int
	Behavior     EdgeBehavior
}

// Input is a typed input pin. A nil Binding means the pin is unbound; whether
// that is a problem depends on Required.
type Input struct {
	Name     string
	Type     dtype.Type
	Required bool
	Binding  *Binding
}

// Output is a typed output pin.
type Output struct {
	Name string
	Type dtype.Type
}

// Node instantiates a function inside a graph. Pins mirror the function's
// signature at the time the node was created; the planner re-checks them
// against the live registry.
type Node struct {
	ID         uuid.UUID
	FunctionID uuid.UUID
	Name       string
	Behavior   Behavior
	IsOutput   bool
	Inputs     []Input
	Outputs    []Output
	SubgraphID *uuid.UUID
}

// NewNode creates a node for the given function descriptor. Pins are copied
// from the signature; every input starts unbound and required.
func NewNode(d fn.Descriptor, name string) *Node {
	n := &Node{
		ID:         uuid.New(),
		FunctionID: d.ID,
		Name:       name,
	}
	for _, a := range d.Inputs {
		n.Inputs = append(n.Inputs, Input{Name: a.Name, Type: a.Type, Required: true})
	}
	for _, a := range d.Outputs {
		n.Outputs = append(n.Outputs, Output{Name: a.Name, Type: a.Type})
	}
	return n
}

// Input returns the pin with the given name.
func (n *Node) Input(name string) (*Input, bool) {
	for i := range n.Inputs {
		if n.Inputs[i].Name == name {
			return &n.Inputs[i], true
		}
	}
	return nil, false
}

// BindInput wires the named input pin to producer's output pin at outputIdx.
// Pin existence and type assignability are checked immediately so editor
// operations fail at the point of the mistake.
func (n *Node) BindInput(inputName string, producer *Node, outputIdx int, behavior EdgeBehavior) error {
	in, ok := n.Input(inputName)
	if !ok {
		return fmt.Errorf("node %q has no input %q", n.Name, inputName)
	}
	if outputIdx < 0 || outputIdx >= len(producer.Outputs) {
		return fmt.Errorf("node %q has no output index %d", producer.Name, outputIdx)
	}
	src := producer.Outputs[outputIdx]
	if !dtype.CanAssign(in.Type, src.Type) {
		return fmt.Errorf("cannot bind %s output %q (%s) to input %q (%s) of node %q",
			producer.Name, src.Name, src.Type, in.Name, in.Type, n.Name)
	}
	in.Binding = &Binding{OutputNodeID: producer.ID, OutputIndex: outputIdx, Behavior: behavior}
	return nil
}

// UnbindInput clears the named input pin's binding.
func (n *Node) UnbindInput(inputName string) error {
	in, ok := n.Input(inputName)
	if !ok {
		return fmt.Errorf("node %q has no input %q", n.Name, inputName)
	}
	in.Binding = nil
	return nil
}
