package testutil

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/csso/fngraph/internal/dtype"
	"github.com/csso/fngraph/internal/fn"
	"github.com/csso/fngraph/internal/graph"
	"github.com/csso/fngraph/internal/invoke"
)

// ArithFixture is the reference five-node graph the planner and runtime tests
// drive: two value sources feeding a sum, the sum and one source feeding a
// mult, and a print sink marked as the output node.
//
//	val0 --Once--> sum --Always--> mult --Always--> print
//	val1 --Once--> sum
//	val1 --------Always----------> mult
//
// A and B are the values the sources emit; tests mutate them between runs to
// observe caching behavior. Printed collects everything the sink saw.
type ArithFixture struct {
	Graph    *graph.Graph
	Invoker  *invoke.GoInvoker
	Registry *fn.Registry

	A, B    int64
	Printed []string
}

// NewArithFixture builds the graph with A=2 and B=5, matching the reference
// results: sum=7, mult=35.
func NewArithFixture(t *testing.T) *ArithFixture {
	t.Helper()

	f := &ArithFixture{A: 2, B: 5}

	val0 := fn.Descriptor{ID: fn.DeriveID("val0"), Name: "val0", Outputs: []fn.Arg{{Name: "value", Type: dtype.Int}}}
	val1 := fn.Descriptor{ID: fn.DeriveID("val1"), Name: "val1", Outputs: []fn.Arg{{Name: "value", Type: dtype.Int}}}
	sum := fn.Descriptor{
		ID: fn.DeriveID("sum"), Name: "sum",
		Inputs:  []fn.Arg{{Name: "a", Type: dtype.Int}, {Name: "b", Type: dtype.Int}},
		Outputs: []fn.Arg{{Name: "result", Type: dtype.Int}},
	}
	mult := fn.Descriptor{
		ID: fn.DeriveID("mult"), Name: "mult",
		Inputs:  []fn.Arg{{Name: "a", Type: dtype.Int}, {Name: "b", Type: dtype.Int}},
		Outputs: []fn.Arg{{Name: "result", Type: dtype.Int}},
	}
	print := fn.Descriptor{ID: fn.DeriveID("print"), Name: "print", Inputs: []fn.Arg{{Name: "message", Type: dtype.Any}}}

	f.Invoker = invoke.NewGoInvoker()
	f.Invoker.Register(val0, func(ctx context.Context, call *invoke.Call, in invoke.Args, out invoke.Args) error {
		out[0] = cty.NumberIntVal(f.A)
		return nil
	})
	f.Invoker.Register(val1, func(ctx context.Context, call *invoke.Call, in invoke.Args, out invoke.Args) error {
		out[0] = cty.NumberIntVal(f.B)
		return nil
	})
	f.Invoker.Register(sum, func(ctx context.Context, call *invoke.Call, in invoke.Args, out invoke.Args) error {
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
	})
	f.Invoker.Register(mult, func(ctx context.Context, call *invoke.Call, in invoke.Args, out invoke.Args) error {
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
	})
	f.Invoker.Register(print, func(ctx context.Context, call *invoke.Call, in invoke.Args, out invoke.Args) error {
		f.Printed = append(f.Printed, renderValue(in[0]))
		return nil
	})

	f.Registry = fn.NewRegistry()
	for _, d := range f.Invoker.Functions() {
		require.NoError(t, f.Registry.Add(d))
	}

	nVal0 := graph.NewNode(val0, "val0")
	nVal1 := graph.NewNode(val1, "val1")
	nSum := graph.NewNode(sum, "sum")
	nMult := graph.NewNode(mult, "mult")
	nPrint := graph.NewNode(print, "print")
	nPrint.IsOutput = true

	require.NoError(t, nSum.BindInput("a", nVal0, 0, graph.Once))
	require.NoError(t, nSum.BindInput("b", nVal1, 0, graph.Once))
	require.NoError(t, nMult.BindInput("a", nSum, 0, graph.Always))
	require.NoError(t, nMult.BindInput("b", nVal1, 0, graph.Always))
	require.NoError(t, nPrint.BindInput("message", nMult, 0, graph.Always))

	f.Graph = &graph.Graph{}
	for _, n := range []*graph.Node{nVal0, nVal1, nSum, nMult, nPrint} {
		f.Graph.AddNode(n)
	}
	require.NoError(t, f.Graph.Validate())

	return f
}

// Node fetches a graph node by name, failing the test if it is missing.
func (f *ArithFixture) Node(t *testing.T, name string) *graph.Node {
	t.Helper()
	n, ok := f.Graph.NodeByName(name)
	require.True(t, ok, "fixture graph has no node named %q", name)
	return n
}

func renderValue(v cty.Value) string {
	if v.IsNull() {
		return "(null)"
	}
	switch v.Type() {
	case cty.Number:
		return v.AsBigFloat().Text('f', -1)
	case cty.String:
		return v.AsString()
	case cty.Bool:
		return fmt.Sprintf("%t", v.True())
	default:
		return v.GoString()
	}
}
