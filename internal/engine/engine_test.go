package engine_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/csso/fngraph/internal/dtype"
	"github.com/csso/fngraph/internal/engine"
	"github.com/csso/fngraph/internal/fn"
	"github.com/csso/fngraph/internal/graph"
	"github.com/csso/fngraph/internal/invoke"
)

// calcModule is a minimal Go pack for exercising the engine lifecycle.
type calcModule struct{}

func (calcModule) Register(inv *invoke.GoInvoker) {
	inv.Register(fn.Descriptor{
		Name:    "base",
		Outputs: []fn.Arg{{Name: "value", Type: dtype.Int}},
	}, func(ctx context.Context, call *invoke.Call, in invoke.Args, out invoke.Args) error {
		out[0] = cty.NumberIntVal(40)
		return nil
	})
	inv.Register(fn.Descriptor{
		Name:    "add_two",
		Inputs:  []fn.Arg{{Name: "a", Type: dtype.Int}},
		Outputs: []fn.Arg{{Name: "result", Type: dtype.Int}},
	}, func(ctx context.Context, call *invoke.Call, in invoke.Args, out invoke.Args) error {
		a, err := in.Int(0)
		if err != nil {
			return err
		}
		out[0] = cty.NumberIntVal(a + 2)
		return nil
	})
}

const calcManifest = `
function "base" {
  description = "Emits the base value."
  output "value" {
    type = int
  }
}

function "add_two" {
  input "a" {
    type = int
  }
  output "result" {
    type = int
  }
}
`

const doubleScript = `
functions.push({
	name: "double",
	inputs: [["x", "int"]],
	outputs: [["value", "int"]],
	func: function(x) { console.log("doubling", x); return x * 2; },
});

function graph() {
	double(base());
}
`

// newEngine lays out a workspace with the calc manifest and the double script
// and returns an unopened engine over it.
func newEngine(t *testing.T) *engine.Engine {
	t.Helper()
	dir := t.TempDir()
	modules := filepath.Join(dir, "modules")
	require.NoError(t, os.MkdirAll(modules, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(modules, "calc.hcl"), []byte(calcManifest), 0o644))
	scriptPath := filepath.Join(dir, "double.js")
	require.NoError(t, os.WriteFile(scriptPath, []byte(doubleScript), 0o644))
	return engine.New(engine.Config{
		ModulesPath: modules,
		Scripts:     []string{scriptPath},
		Modules:     []invoke.Module{calcModule{}},
	})
}

func descriptorByName(t *testing.T, e *engine.Engine, name string) fn.Descriptor {
	t.Helper()
	for _, d := range e.Functions() {
		if d.Name == name {
			return d
		}
	}
	t.Fatalf("function %q not registered", name)
	return fn.Descriptor{}
}

func TestInitBuildsTheRegistry(t *testing.T) {
	e := newEngine(t)
	require.NoError(t, e.Init(context.Background()))

	fns := e.Functions()
	require.Len(t, fns, 3)
	assert.Equal(t, "base", fns[0].Name)
	assert.Equal(t, "Emits the base value.", fns[0].Description)
	assert.Equal(t, fn.DeriveID("base"), fns[0].ID)
	assert.Equal(t, "add_two", fns[1].Name)
	assert.Equal(t, "double", fns[2].Name)
	assert.Equal(t, fn.DeriveID("double"), fns[2].ID)

	require.NoError(t, e.Close())
}

func TestFunctionsBeforeInitIsEmpty(t *testing.T) {
	e := engine.New(engine.Config{})
	assert.Empty(t, e.Functions())
}

func TestInitTwiceFails(t *testing.T) {
	e := newEngine(t)
	require.NoError(t, e.Init(context.Background()))
	err := e.Init(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already initialized")
	require.NoError(t, e.Close())
}

func TestInitFailsOnManifestMismatch(t *testing.T) {
	dir := t.TempDir()
	// Manifest covers base only; add_two stays undeclared.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "calc.hcl"), []byte(`
function "base" {
  output "value" {
    type = int
  }
}
`), 0o644))
	e := engine.New(engine.Config{
		ModulesPath: dir,
		Modules:     []invoke.Module{calcModule{}},
	})

	err := e.Init(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no manifest declares it")
	assert.Empty(t, e.Functions())
}

func TestInitFailsOnScriptNameCollision(t *testing.T) {
	dir := t.TempDir()
	modules := filepath.Join(dir, "modules")
	require.NoError(t, os.MkdirAll(modules, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(modules, "calc.hcl"), []byte(calcManifest), 0o644))
	scriptPath := filepath.Join(dir, "clash.js")
	require.NoError(t, os.WriteFile(scriptPath, []byte(`
functions.push({ name: "base", outputs: [["value", "int"]], func: function() { return 1; } });
`), 0o644))
	e := engine.New(engine.Config{
		ModulesPath: modules,
		Scripts:     []string{scriptPath},
		Modules:     []invoke.Module{calcModule{}},
	})

	err := e.Init(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestSessionRunsAcrossInvokers(t *testing.T) {
	e := newEngine(t)
	require.NoError(t, e.Init(context.Background()))

	sess, err := e.NewSession()
	require.NoError(t, err)

	g := &graph.Graph{}
	base := graph.NewNode(descriptorByName(t, e, "base"), "base")
	double := graph.NewNode(descriptorByName(t, e, "double"), "double")
	double.IsOutput = true
	require.NoError(t, double.BindInput("x", base, 0, graph.Always))
	g.AddNode(base)
	g.AddNode(double)
	sess.SetGraph(g)

	res, err := sess.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Executed)

	vals, ok := sess.Runtime().State().Outputs(double.ID)
	require.True(t, ok)
	n, err := invoke.Args(vals).Int(0)
	require.NoError(t, err)
	assert.Equal(t, int64(80), n)

	assert.Equal(t, []string{"doubling 40"}, e.Output())
	assert.Empty(t, e.Output())

	require.NoError(t, e.Close())
}

func TestSessionLoadsSavedGraphs(t *testing.T) {
	e := newEngine(t)
	require.NoError(t, e.Init(context.Background()))

	g := &graph.Graph{}
	base := graph.NewNode(descriptorByName(t, e, "base"), "base")
	addTwo := graph.NewNode(descriptorByName(t, e, "add_two"), "add_two")
	addTwo.IsOutput = true
	require.NoError(t, addTwo.BindInput("a", base, 0, graph.Always))
	g.AddNode(base)
	g.AddNode(addTwo)

	path := filepath.Join(t.TempDir(), "calc.yaml")
	require.NoError(t, g.SaveFile(path))

	sess, err := e.NewSession()
	require.NoError(t, err)
	require.NoError(t, sess.LoadGraph(context.Background(), path))

	res, err := sess.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Executed)

	loaded, ok := sess.Graph().NodeByName("add_two")
	require.True(t, ok)
	vals, ok := sess.Runtime().State().Outputs(loaded.ID)
	require.True(t, ok)
	n, err := invoke.Args(vals).Int(0)
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)

	require.NoError(t, e.Close())
}

func TestSessionRequiresGraph(t *testing.T) {
	e := newEngine(t)
	require.NoError(t, e.Init(context.Background()))

	sess, err := e.NewSession()
	require.NoError(t, err)

	_, err = sess.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no graph loaded")
	_, err = sess.Plan(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no graph loaded")

	require.NoError(t, e.Close())
}

func TestTraceFindsTheScript(t *testing.T) {
	e := newEngine(t)
	require.NoError(t, e.Init(context.Background()))

	// The script's graph() wires its own double to the Go pack's base.
	g, err := e.Trace(context.Background(), "double.js")
	require.NoError(t, err)
	require.Len(t, g.Nodes, 2)
	double, ok := g.NodeByName("double")
	require.True(t, ok)
	base, ok := g.NodeByName("base")
	require.True(t, ok)
	in, ok := double.Input("x")
	require.True(t, ok)
	require.NotNil(t, in.Binding)
	assert.Equal(t, base.ID, in.Binding.OutputNodeID)
	assert.True(t, double.IsOutput)

	// A single loaded script needs no name.
	_, err = e.Trace(context.Background(), "")
	require.NoError(t, err)

	_, err = e.Trace(context.Background(), "missing.js")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no script named 'missing.js'")

	require.NoError(t, e.Close())
}

func TestNewSessionRequiresInit(t *testing.T) {
	e := engine.New(engine.Config{})
	_, err := e.NewSession()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not initialized")
}

func TestEmptyEngineRunsEmptyGraph(t *testing.T) {
	e := engine.New(engine.Config{})
	require.NoError(t, e.Init(context.Background()))

	sess, err := e.NewSession()
	require.NoError(t, err)
	sess.SetGraph(&graph.Graph{})
	res, err := sess.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Planned)

	require.NoError(t, e.Close())
}

func TestUseAfterCloseIsStrict(t *testing.T) {
	e := newEngine(t)
	require.NoError(t, e.Init(context.Background()))
	require.NoError(t, e.Close())

	assert.Panics(t, func() { _ = e.Close() })
	assert.Panics(t, func() { _ = e.Init(context.Background()) })
	assert.Panics(t, func() { _, _ = e.NewSession() })
	assert.Panics(t, func() { _ = e.Functions() })
}
