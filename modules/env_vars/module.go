// Package env_vars exposes the process environment to graphs.
package env_vars

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/zclconf/go-cty/cty"

	"github.com/csso/fngraph/internal/dtype"
	"github.com/csso/fngraph/internal/fn"
	"github.com/csso/fngraph/internal/invoke"
)

// Module implements the invoke.Module interface for this package.
type Module struct{}

// onRunEnvGet is the handler for the 'env_get' function. An unset variable
// yields an empty string, not an error.
func onRunEnvGet(ctx context.Context, call *invoke.Call, in invoke.Args, out invoke.Args) error {
	name, err := in.String(0)
	if err != nil {
		return err
	}
	out[0] = cty.StringVal(os.Getenv(name))
	return nil
}

// onRunEnvAll is the handler for the 'env_all' function. The snapshot is a
// JSON object string so it can flow straight into json_query.
func onRunEnvAll(ctx context.Context, call *invoke.Call, in invoke.Args, out invoke.Args) error {
	envMap := make(map[string]string)
	for _, e := range os.Environ() {
		pair := strings.SplitN(e, "=", 2)
		if len(pair) == 2 {
			envMap[pair[0]] = pair[1]
		}
	}
	data, err := json.Marshal(envMap)
	if err != nil {
		return fmt.Errorf("encoding environment: %w", err)
	}
	out[0] = cty.StringVal(string(data))
	return nil
}

// Register registers the pack's handlers with the invoker.
func (m *Module) Register(inv *invoke.GoInvoker) {
	inv.Register(fn.Descriptor{
		Name:        "env_get",
		Description: "Reads a single environment variable by name.",
		Inputs:      []fn.Arg{{Name: "name", Type: dtype.String}},
		Outputs:     []fn.Arg{{Name: "value", Type: dtype.String}},
	}, onRunEnvGet)
	inv.Register(fn.Descriptor{
		Name:        "env_all",
		Description: "Snapshots the whole environment as a JSON object.",
		Outputs:     []fn.Arg{{Name: "json", Type: dtype.String}},
	}, onRunEnvAll)
}
