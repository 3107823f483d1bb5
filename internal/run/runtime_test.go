package run_test

import (
	"context"
	"errors"
	"testing"

	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/csso/fngraph/internal/dtype"
	"github.com/csso/fngraph/internal/fn"
	"github.com/csso/fngraph/internal/graph"
	"github.com/csso/fngraph/internal/invoke"
	"github.com/csso/fngraph/internal/run"
	"github.com/csso/fngraph/internal/testutil"
)

func TestComputeAcrossRuns(t *testing.T) {
	f := testutil.NewArithFixture(t)
	rt := run.New(nil)
	ctx := context.Background()

	// Cold run computes the whole chain: (2+5)*5 = 35.
	res, err := rt.Run(ctx, f.Graph, f.Registry, f.Invoker)
	require.NoError(t, err)
	assert.Equal(t, 5, res.Planned)
	assert.Equal(t, 5, res.Executed)
	require.Equal(t, []string{"35"}, f.Printed)

	// Nothing changed: only the output node reruns, against cached inputs.
	res, err = rt.Run(ctx, f.Graph, f.Registry, f.Invoker)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Executed)
	assert.Equal(t, 4, res.Skipped)
	require.Equal(t, []string{"35", "35"}, f.Printed)

	// val1 turns Active and emits 7. sum keeps its cached 7 (its bindings are
	// Once), mult recomputes: 7*7 = 49.
	f.B = 7
	f.Node(t, "val1").Behavior = graph.Active
	res, err = rt.Run(ctx, f.Graph, f.Registry, f.Invoker)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Executed)
	require.Equal(t, []string{"35", "35", "49"}, f.Printed)

	// Upgrading sum's b-binding to Always lets val1's freshness pull sum back
	// in: (2+7)*7 = 63.
	sum := f.Node(t, "sum")
	in, ok := sum.Input("b")
	require.True(t, ok)
	in.Binding.Behavior = graph.Always
	res, err = rt.Run(ctx, f.Graph, f.Registry, f.Invoker)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Executed)
	require.Equal(t, []string{"35", "35", "49", "63"}, f.Printed)
}

func TestMissingInputsSkipQuietly(t *testing.T) {
	f := testutil.NewArithFixture(t)
	require.NoError(t, f.Node(t, "sum").UnbindInput("a"))
	rt := run.New(nil)

	res, err := rt.Run(context.Background(), f.Graph, f.Registry, f.Invoker)
	require.NoError(t, err)

	// Only val1 is executable; sum, mult, and print inherit the gap.
	assert.Equal(t, 4, res.Planned)
	assert.Equal(t, 1, res.Executed)
	assert.Equal(t, 3, res.Skipped)
	assert.Empty(t, f.Printed)

	val1 := f.Node(t, "val1")
	assert.True(t, rt.State().HasOutputs(val1.ID))
	assert.False(t, rt.State().HasOutputs(f.Node(t, "sum").ID))
}

func TestUnboundOptionalInputPassesNull(t *testing.T) {
	f := testutil.NewArithFixture(t)
	pr := f.Node(t, "print")
	in, ok := pr.Input("message")
	require.True(t, ok)
	in.Required = false
	in.Binding = nil

	rt := run.New(nil)
	_, err := rt.Run(context.Background(), f.Graph, f.Registry, f.Invoker)
	require.NoError(t, err)
	require.Equal(t, []string{"(null)"}, f.Printed)
}

func TestNodeErrorAbortsTheRun(t *testing.T) {
	boom := fn.Descriptor{ID: fn.DeriveID("boom"), Name: "boom", Inputs: []fn.Arg{{Name: "seed", Type: dtype.Int}}}
	seed := fn.Descriptor{ID: fn.DeriveID("seed"), Name: "seed", Outputs: []fn.Arg{{Name: "value", Type: dtype.Int}}}

	inv := invoke.NewGoInvoker()
	inv.Register(seed, func(ctx context.Context, call *invoke.Call, in invoke.Args, out invoke.Args) error {
		out[0] = cty.NumberIntVal(1)
		return nil
	})
	inv.Register(boom, func(ctx context.Context, call *invoke.Call, in invoke.Args, out invoke.Args) error {
		return errors.New("kaboom")
	})

	reg := fn.NewRegistry()
	for _, d := range inv.Functions() {
		require.NoError(t, reg.Add(d))
	}

	nSeed := graph.NewNode(seed, "seed")
	nBoom := graph.NewNode(boom, "boom")
	nBoom.IsOutput = true
	require.NoError(t, nBoom.BindInput("seed", nSeed, 0, graph.Always))
	g := &graph.Graph{}
	g.AddNode(nSeed)
	g.AddNode(nBoom)

	rt := run.New(nil)
	_, err := rt.Run(context.Background(), g, reg, inv)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "node 'boom'")
	assert.Contains(t, err.Error(), "kaboom")

	// The producer that already ran keeps its cache for the next attempt.
	assert.True(t, rt.State().HasOutputs(nSeed.ID))
}

func TestCanceledContextAbortsBeforeExecuting(t *testing.T) {
	f := testutil.NewArithFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rt := run.New(nil)
	_, err := rt.Run(ctx, f.Graph, f.Registry, f.Invoker)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, f.Printed)
}

func TestStateIsPrunedToThePlan(t *testing.T) {
	f := testutil.NewArithFixture(t)
	rt := run.New(nil)
	ctx := context.Background()

	_, err := rt.Run(ctx, f.Graph, f.Registry, f.Invoker)
	require.NoError(t, err)
	val0 := f.Node(t, "val0")
	require.True(t, rt.State().HasOutputs(val0.ID))

	// val0 falls out of the plan once sum's a-pin is unbound; its cache must
	// go with it so a later rebind starts cold.
	require.NoError(t, f.Node(t, "sum").UnbindInput("a"))
	_, err = rt.Run(ctx, f.Graph, f.Registry, f.Invoker)
	require.NoError(t, err)
	assert.False(t, rt.State().HasOutputs(val0.ID))
}

func TestRunEmitsEvents(t *testing.T) {
	f := testutil.NewArithFixture(t)
	rt := run.New(nil)

	var types []string
	rt.Notify = func(e run.Event) { types = append(types, e.Type) }

	_, err := rt.Run(context.Background(), f.Graph, f.Registry, f.Invoker)
	require.NoError(t, err)

	require.Len(t, types, 7)
	assert.Equal(t, "run_started", types[0])
	assert.Equal(t, "run_finished", types[6])
	for _, typ := range types[1:6] {
		assert.Equal(t, "node_executed", typ)
	}

	// Cached rerun: four cache skips and one execution.
	types = nil
	_, err = rt.Run(context.Background(), f.Graph, f.Registry, f.Invoker)
	require.NoError(t, err)
	counts := map[string]int{}
	for _, typ := range types {
		counts[typ]++
	}
	assert.Equal(t, 4, counts["node_skipped"])
	assert.Equal(t, 1, counts["node_executed"])
}

func TestMetricsCountNodeOutcomes(t *testing.T) {
	f := testutil.NewArithFixture(t)
	m := run.NewMetrics()
	rt := run.New(m)

	_, err := rt.Run(context.Background(), f.Graph, f.Registry, f.Invoker)
	require.NoError(t, err)
	_, err = rt.Run(context.Background(), f.Graph, f.Registry, f.Invoker)
	require.NoError(t, err)

	assert.Equal(t, float64(6), promtestutil.ToFloat64(m.NodeRuns.WithLabelValues("executed")))
	assert.Equal(t, float64(4), promtestutil.ToFloat64(m.NodeRuns.WithLabelValues("skipped_cache")))
	assert.Equal(t, float64(2), promtestutil.ToFloat64(m.RunsTotal.WithLabelValues("ok")))
	assert.Equal(t, float64(5), promtestutil.ToFloat64(m.PlanSize))
}
