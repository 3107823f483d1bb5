// Package json_query extracts values from JSON documents with gjson path
// expressions, so graphs can pick fields out of http_request or env_all
// results without a script.
package json_query

import (
	"context"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/zclconf/go-cty/cty"

	"github.com/csso/fngraph/internal/dtype"
	"github.com/csso/fngraph/internal/fn"
	"github.com/csso/fngraph/internal/invoke"
)

// Module implements the invoke.Module interface for this package.
type Module struct{}

// onRunJSONQuery is the handler for the 'json_query' function. A path that
// matches nothing is an error so broken graphs fail loudly instead of
// threading empty strings through.
func onRunJSONQuery(ctx context.Context, call *invoke.Call, in invoke.Args, out invoke.Args) error {
	doc, err := in.String(0)
	if err != nil {
		return err
	}
	path, err := in.String(1)
	if err != nil {
		return err
	}

	if !gjson.Valid(doc) {
		return fmt.Errorf("json_query: document is not valid JSON")
	}
	result := gjson.Get(doc, path)
	if !result.Exists() {
		return fmt.Errorf("json_query: path '%s' matches nothing", path)
	}
	out[0] = cty.StringVal(result.String())
	return nil
}

// Register registers the pack's handlers with the invoker.
func (m *Module) Register(inv *invoke.GoInvoker) {
	inv.Register(fn.Descriptor{
		Name: "json_query",
		Inputs: []fn.Arg{
			{Name: "json", Type: dtype.String},
			{Name: "path", Type: dtype.String},
		},
		Outputs: []fn.Arg{{Name: "value", Type: dtype.String}},
	}, onRunJSONQuery)
}
