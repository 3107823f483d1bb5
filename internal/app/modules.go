package app

import (
	"github.com/csso/fngraph/internal/invoke"
	"github.com/csso/fngraph/modules/env_vars"
	"github.com/csso/fngraph/modules/http_request"
	"github.com/csso/fngraph/modules/json_query"
	"github.com/csso/fngraph/modules/value_ops"
)

// coreModules is the definitive list of Go packs compiled into the fngraph
// binary. They register only when the workspace declares a modules_path,
// because every registered handler must be declared by a manifest there.
var coreModules = []invoke.Module{
	&value_ops.Module{},
	&env_vars.Module{},
	&http_request.Module{},
	&json_query.Module{},
}
