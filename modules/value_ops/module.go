// Package value_ops provides the constant emitters and arithmetic functions
// graphs are usually built from.
package value_ops

import (
	"context"
	"fmt"

	"github.com/zclconf/go-cty/cty"

	"github.com/csso/fngraph/internal/dtype"
	"github.com/csso/fngraph/internal/fn"
	"github.com/csso/fngraph/internal/invoke"
)

// Module implements the invoke.Module interface for this package.
type Module struct{}

// onRunValInt is the handler for the 'val_int' function. The emitted value
// lives in the node's call state under "value"; an unseeded node emits 0.
func onRunValInt(ctx context.Context, call *invoke.Call, in invoke.Args, out invoke.Args) error {
	v, ok := call.State("value")
	if !ok {
		out[0] = cty.NumberIntVal(0)
		return nil
	}
	switch x := v.(type) {
	case int:
		out[0] = cty.NumberIntVal(int64(x))
	case int64:
		out[0] = cty.NumberIntVal(x)
	default:
		return fmt.Errorf("val_int state 'value' is %T, not an integer", v)
	}
	return nil
}

// onRunValFloat is the handler for the 'val_float' function.
func onRunValFloat(ctx context.Context, call *invoke.Call, in invoke.Args, out invoke.Args) error {
	v, ok := call.State("value")
	if !ok {
		out[0] = cty.NumberFloatVal(0)
		return nil
	}
	switch x := v.(type) {
	case float64:
		out[0] = cty.NumberFloatVal(x)
	case int:
		out[0] = cty.NumberFloatVal(float64(x))
	case int64:
		out[0] = cty.NumberFloatVal(float64(x))
	default:
		return fmt.Errorf("val_float state 'value' is %T, not a number", v)
	}
	return nil
}

// onRunValString is the handler for the 'val_string' function.
func onRunValString(ctx context.Context, call *invoke.Call, in invoke.Args, out invoke.Args) error {
	v, ok := call.State("value")
	if !ok {
		out[0] = cty.StringVal("")
		return nil
	}
	s, ok := v.(string)
	if !ok {
		return fmt.Errorf("val_string state 'value' is %T, not a string", v)
	}
	out[0] = cty.StringVal(s)
	return nil
}

// onRunSum is the handler for the 'sum' function.
func onRunSum(ctx context.Context, call *invoke.Call, in invoke.Args, out invoke.Args) error {
	a, err := in.Int(0)
	if err != nil {
		return err
	}
	b, err := in.Int(1)
	if err != nil {
		return err
	}
	out[0] = cty.NumberIntVal(a + b)
	return nil
}

// onRunMult is the handler for the 'mult' function.
func onRunMult(ctx context.Context, call *invoke.Call, in invoke.Args, out invoke.Args) error {
	a, err := in.Int(0)
	if err != nil {
		return err
	}
	b, err := in.Int(1)
	if err != nil {
		return err
	}
	out[0] = cty.NumberIntVal(a * b)
	return nil
}

// onRunPrint is the handler for the 'print' function.
func onRunPrint(ctx context.Context, call *invoke.Call, in invoke.Args, out invoke.Args) error {
	fmt.Println(Render(in[0]))
	return nil
}

// Render formats a pin value the way 'print' shows it.
func Render(v cty.Value) string {
	if v.IsNull() {
		return "(null)"
	}
	switch v.Type() {
	case cty.Number:
		return v.AsBigFloat().Text('f', -1)
	case cty.String:
		return v.AsString()
	case cty.Bool:
		if v.True() {
			return "true"
		}
		return "false"
	default:
		return v.GoString()
	}
}

// Register registers the pack's handlers with the invoker.
func (m *Module) Register(inv *invoke.GoInvoker) {
	inv.Register(fn.Descriptor{
		Name:    "val_int",
		Outputs: []fn.Arg{{Name: "value", Type: dtype.Int}},
	}, onRunValInt)
	inv.Register(fn.Descriptor{
		Name:    "val_float",
		Outputs: []fn.Arg{{Name: "value", Type: dtype.Float}},
	}, onRunValFloat)
	inv.Register(fn.Descriptor{
		Name:    "val_string",
		Outputs: []fn.Arg{{Name: "value", Type: dtype.String}},
	}, onRunValString)
	inv.Register(fn.Descriptor{
		Name:    "sum",
		Inputs:  []fn.Arg{{Name: "a", Type: dtype.Int}, {Name: "b", Type: dtype.Int}},
		Outputs: []fn.Arg{{Name: "result", Type: dtype.Int}},
	}, onRunSum)
	inv.Register(fn.Descriptor{
		Name:    "mult",
		Inputs:  []fn.Arg{{Name: "a", Type: dtype.Int}, {Name: "b", Type: dtype.Int}},
		Outputs: []fn.Arg{{Name: "result", Type: dtype.Int}},
	}, onRunMult)
	inv.Register(fn.Descriptor{
		Name:   "print",
		Inputs: []fn.Arg{{Name: "message", Type: dtype.Any}},
	}, onRunPrint)
}
