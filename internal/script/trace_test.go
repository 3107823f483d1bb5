package script_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/csso/fngraph/internal/fn"
	"github.com/csso/fngraph/internal/graph"
	"github.com/csso/fngraph/internal/invoke"
	"github.com/csso/fngraph/internal/run"
	"github.com/csso/fngraph/internal/script"
)

const graphSource = `
functions.push({ name: "val0", outputs: [["value", "int"]], func: function() { return 2; } });
functions.push({ name: "val1", outputs: [["value", "int"]], func: function() { return 5; } });
functions.push({
	name: "sum",
	inputs: [["a", "int"], ["b", "int"]],
	outputs: [["result", "int"]],
	func: function(a, b) { return a + b; },
});
functions.push({
	name: "mult",
	inputs: [["a", "int"], ["b", "int"]],
	outputs: [["result", "int"]],
	func: function(a, b) { return a * b; },
});
functions.push({
	name: "print",
	inputs: [["message", "any"]],
	outputs: [],
	func: function(m) { console.log(m); },
});

function graph() {
	var b = val1();
	print(mult(sum(val0(), b), b));
}
`

// registryFor registers the script's own functions with derived IDs, the way
// the engine does for a loaded pack.
func registryFor(t *testing.T, s *script.Invoker) *fn.Registry {
	t.Helper()
	reg := fn.NewRegistry()
	for _, d := range s.Functions() {
		d.ID = fn.DeriveID(d.Name)
		require.NoError(t, reg.Add(d))
	}
	return reg
}

func node(t *testing.T, g *graph.Graph, name string) *graph.Node {
	t.Helper()
	n, ok := g.NodeByName(name)
	require.True(t, ok, "node %q missing", name)
	return n
}

func binding(t *testing.T, g *graph.Graph, consumer, pin string) *graph.Binding {
	t.Helper()
	in, ok := node(t, g, consumer).Input(pin)
	require.True(t, ok, "pin %q missing on %q", pin, consumer)
	require.NotNil(t, in.Binding, "pin %q of %q is unbound", pin, consumer)
	return in.Binding
}

func TestTraceBuildsTheDescribedGraph(t *testing.T) {
	s := load(t, graphSource)
	g, err := s.Trace(context.Background(), registryFor(t, s))
	require.NoError(t, err)

	require.Len(t, g.Nodes, 5)
	val0 := node(t, g, "val0")
	val1 := node(t, g, "val1")
	sum := node(t, g, "sum")
	mult := node(t, g, "mult")
	printNode := node(t, g, "print")

	assert.Equal(t, fn.DeriveID("sum"), sum.FunctionID)

	a := binding(t, g, "sum", "a")
	assert.Equal(t, val0.ID, a.OutputNodeID)
	assert.Equal(t, 0, a.OutputIndex)
	assert.Equal(t, graph.Always, a.Behavior)

	assert.Equal(t, val1.ID, binding(t, g, "sum", "b").OutputNodeID)
	assert.Equal(t, sum.ID, binding(t, g, "mult", "a").OutputNodeID)
	assert.Equal(t, val1.ID, binding(t, g, "mult", "b").OutputNodeID)
	assert.Equal(t, mult.ID, binding(t, g, "print", "message").OutputNodeID)

	assert.True(t, printNode.IsOutput)
	for _, n := range []*graph.Node{val0, val1, sum, mult} {
		assert.False(t, n.IsOutput, n.Name)
	}
}

func TestTraceNumbersRepeatedCalls(t *testing.T) {
	s := load(t, graphSource+`
function graph() { print(sum(val1(), val1())); }
`)
	g, err := s.Trace(context.Background(), registryFor(t, s))
	require.NoError(t, err)

	require.Len(t, g.Nodes, 4)
	first := node(t, g, "val1")
	second := node(t, g, "val1_2")
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, first.FunctionID, second.FunctionID)

	assert.Equal(t, first.ID, binding(t, g, "sum", "a").OutputNodeID)
	assert.Equal(t, second.ID, binding(t, g, "sum", "b").OutputNodeID)
}

func TestTraceRoutesMultiOutputHandles(t *testing.T) {
	s := load(t, graphSource+`
functions.push({
	name: "minmax",
	inputs: [["a", "int"], ["b", "int"]],
	outputs: [["min", "int"], ["max", "int"]],
	func: function(a, b) { return [Math.min(a, b), Math.max(a, b)]; },
});
function graph() {
	var h = minmax(val0(), val1());
	print(h.max);
	print(h);
}
`)
	g, err := s.Trace(context.Background(), registryFor(t, s))
	require.NoError(t, err)

	require.Len(t, g.Nodes, 5)
	minmax := node(t, g, "minmax")

	named := binding(t, g, "print", "message")
	assert.Equal(t, minmax.ID, named.OutputNodeID)
	assert.Equal(t, 1, named.OutputIndex)

	bare := binding(t, g, "print_2", "message")
	assert.Equal(t, minmax.ID, bare.OutputNodeID)
	assert.Equal(t, 0, bare.OutputIndex)

	assert.False(t, minmax.IsOutput)
	assert.True(t, node(t, g, "print").IsOutput)
	assert.True(t, node(t, g, "print_2").IsOutput)
}

func TestTraceRejectsLiteralArguments(t *testing.T) {
	s := load(t, graphSource+`
function graph() { sum(1, 2); }
`)
	_, err := s.Trace(context.Background(), registryFor(t, s))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be the result of another traced call")
}

func TestTraceRequiresGraphFunction(t *testing.T) {
	s := load(t, arithSource)
	_, err := s.Trace(context.Background(), registryFor(t, s))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not define a graph() function")
}

func TestTraceRestoresScriptGlobals(t *testing.T) {
	s := load(t, `
function double(x) { return helper(x); }
function helper(x) { return x * 2; }
functions.push({
	name: "double",
	inputs: [["x", "int"]],
	outputs: [["value", "int"]],
	func: double,
});
functions.push({
	name: "helper",
	inputs: [["x", "int"]],
	outputs: [["value", "int"]],
	func: helper,
});
functions.push({ name: "val0", outputs: [["value", "int"]], func: function() { return 2; } });
function graph() { double(val0()); }
`)
	reg := registryFor(t, s)
	_, err := s.Trace(context.Background(), reg)
	require.NoError(t, err)

	// helper was swapped for a stub during the replay; double must reach the
	// real helper again afterwards.
	out := make(invoke.Args, 1)
	err = s.Invoke(context.Background(), invoke.NewCall(uuid.New(), "double"),
		descriptor(t, s, "double"), invoke.Args{cty.NumberIntVal(21)}, out)
	require.NoError(t, err)
	n, err := out.Int(0)
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)

	// Tracing again yields the same shape.
	g, err := s.Trace(context.Background(), reg)
	require.NoError(t, err)
	assert.Len(t, g.Nodes, 2)
}

func TestTracedGraphRunsEndToEnd(t *testing.T) {
	s := load(t, graphSource)
	reg := registryFor(t, s)
	g, err := s.Trace(context.Background(), reg)
	require.NoError(t, err)

	rt := run.New(nil)
	res, err := rt.Run(context.Background(), g, reg, s)
	require.NoError(t, err)
	assert.Equal(t, 5, res.Executed)
	assert.Equal(t, []string{"35"}, s.Output())
}
