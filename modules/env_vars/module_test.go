package env_vars

import (
	"context"
	"encoding/json"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/csso/fngraph/internal/fn"
	"github.com/csso/fngraph/internal/invoke"
)

func newInvoker(t *testing.T) *invoke.GoInvoker {
	t.Helper()
	inv := invoke.NewGoInvoker()
	(&Module{}).Register(inv)
	return inv
}

func descriptorByName(t *testing.T, inv *invoke.GoInvoker, name string) fn.Descriptor {
	t.Helper()
	for _, d := range inv.Functions() {
		if d.Name == name {
			return d
		}
	}
	t.Fatalf("function %q is not registered", name)
	return fn.Descriptor{}
}

func TestEnvGetReadsVariable(t *testing.T) {
	t.Setenv("FNGRAPH_TEST_VALUE", "hello")

	inv := newInvoker(t)
	d := descriptorByName(t, inv, "env_get")
	out := make(invoke.Args, 1)
	in := invoke.Args{cty.StringVal("FNGRAPH_TEST_VALUE")}
	require.NoError(t, inv.Invoke(context.Background(), invoke.NewCall(uuid.New(), "env_get"), d, in, out))

	assert.Equal(t, cty.StringVal("hello"), out[0])
}

func TestEnvGetUnsetVariableIsEmpty(t *testing.T) {
	inv := newInvoker(t)
	d := descriptorByName(t, inv, "env_get")
	out := make(invoke.Args, 1)
	in := invoke.Args{cty.StringVal("FNGRAPH_TEST_DOES_NOT_EXIST")}
	require.NoError(t, inv.Invoke(context.Background(), invoke.NewCall(uuid.New(), "env_get"), d, in, out))

	assert.Equal(t, cty.StringVal(""), out[0])
}

func TestEnvAllSnapshotsEnvironmentAsJSON(t *testing.T) {
	t.Setenv("FNGRAPH_TEST_SNAPSHOT", "present")

	inv := newInvoker(t)
	d := descriptorByName(t, inv, "env_all")
	out := make(invoke.Args, 1)
	require.NoError(t, inv.Invoke(context.Background(), invoke.NewCall(uuid.New(), "env_all"), d, nil, out))

	var envMap map[string]string
	require.NoError(t, json.Unmarshal([]byte(out[0].AsString()), &envMap))
	assert.Equal(t, "present", envMap["FNGRAPH_TEST_SNAPSHOT"])
}

func TestManifestMatchesRegisteredHandlers(t *testing.T) {
	src, err := os.ReadFile("manifest.hcl")
	require.NoError(t, err)

	manifests, err := fn.ParseManifest(context.Background(), src, "manifest.hcl")
	require.NoError(t, err)

	resolved, err := fn.BindManifests(context.Background(), manifests, newInvoker(t).Functions())
	require.NoError(t, err)
	assert.Len(t, resolved, 2)
}
