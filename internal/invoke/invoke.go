package invoke

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/zclconf/go-cty/cty"

	"github.com/csso/fngraph/internal/fn"
)

// Args is a positional argument list. The runtime sizes input lists from the
// producer bindings and output lists from the function signature; handlers
// fill outputs in place.
type Args []cty.Value

// Int reads argument i as an int64.
func (a Args) Int(i int) (int64, error) {
	v, err := a.at(i, cty.Number)
	if err != nil {
		return 0, err
	}
	n, _ := v.AsBigFloat().Int64()
	return n, nil
}

// Float reads argument i as a float64.
func (a Args) Float(i int) (float64, error) {
	v, err := a.at(i, cty.Number)
	if err != nil {
		return 0, err
	}
	f, _ := v.AsBigFloat().Float64()
	return f, nil
}

// String reads argument i as a string.
func (a Args) String(i int) (string, error) {
	v, err := a.at(i, cty.String)
	if err != nil {
		return "", err
	}
	return v.AsString(), nil
}

// Bool reads argument i as a bool.
func (a Args) Bool(i int) (bool, error) {
	v, err := a.at(i, cty.Bool)
	if err != nil {
		return false, err
	}
	return v.True(), nil
}

func (a Args) at(i int, want cty.Type) (cty.Value, error) {
	if i < 0 || i >= len(a) {
		return cty.NilVal, fmt.Errorf("argument %d out of range (have %d)", i, len(a))
	}
	v := a[i]
	if v.IsNull() {
		return cty.NilVal, fmt.Errorf("argument %d is null", i)
	}
	if v.Type() != want {
		return cty.NilVal, fmt.Errorf("argument %d is %s, not %s", i, v.Type().FriendlyName(), want.FriendlyName())
	}
	return v, nil
}

// Call identifies the node an invocation runs for and carries its state bag.
// The runtime keeps one Call per node for the life of a session, so handlers
// can park state between runs.
type Call struct {
	NodeID   uuid.UUID
	NodeName string
	state    map[string]any
}

// NewCall creates the call context for a node.
func NewCall(nodeID uuid.UUID, nodeName string) *Call {
	return &Call{NodeID: nodeID, NodeName: nodeName, state: make(map[string]any)}
}

// State reads a value parked by an earlier run.
func (c *Call) State(key string) (any, bool) {
	v, ok := c.state[key]
	return v, ok
}

// SetState parks a value for later runs of the same node.
func (c *Call) SetState(key string, v any) {
	c.state[key] = v
}

// Invoker executes functions. Implementations self-describe through
// Functions; descriptors returned there carry no IDs yet, the engine assigns
// those when it builds the registry.
type Invoker interface {
	Functions() []fn.Descriptor
	Invoke(ctx context.Context, call *Call, d fn.Descriptor, in Args, out Args) error
	Close() error
}
