package fn

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"

	"github.com/csso/fngraph/internal/ctxlog"
	"github.com/csso/fngraph/internal/dtype"
	"github.com/csso/fngraph/internal/fsutil"
)

// Manifest grammar:
//
//	function "sum" {
//	  description = "Adds two numbers."
//	  id          = "optional-pinned-uuid"
//	  input "a"  { type = int }
//	  input "b"  { type = int }
//	  output "result" { type = int }
//	}
//
// IDs left unpinned are derived from the name (DeriveID), so pinning is only
// needed when a function was renamed after graphs referencing it were saved.

var manifestFileSchema = &hcl.BodySchema{
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "function", LabelNames: []string{"name"}},
	},
}

var functionBlockSchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "description"},
		{Name: "id"},
	},
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "input", LabelNames: []string{"name"}},
		{Type: "output", LabelNames: []string{"name"}},
	},
}

var pinBlockSchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "type", Required: true},
	},
}

// LoadManifests parses every .hcl manifest under modulesPath and returns the
// declared descriptors in file walk order. Descriptors carry a pinned ID when
// the manifest sets one and uuid.Nil otherwise.
func LoadManifests(ctx context.Context, modulesPath string) ([]Descriptor, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Loading function manifests...", "path", modulesPath)

	filePaths, err := fsutil.FindFilesByExtension(modulesPath, ".hcl")
	if err != nil {
		logger.Error("Failed to walk modules directory", "path", modulesPath, "error", err)
		return nil, err
	}
	if len(filePaths) == 0 {
		logger.Warn("No .hcl manifest files found in path", "path", modulesPath)
		return nil, nil
	}

	parser := hclparse.NewParser()
	var out []Descriptor
	seen := make(map[string]string)

	for _, filePath := range filePaths {
		file, diags := parser.ParseHCLFile(filePath)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse manifest %s: %w", filePath, diags)
		}
		descs, err := decodeManifestBody(ctx, file.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to decode manifest %s: %w", filePath, err)
		}
		for _, d := range descs {
			if prev, dup := seen[d.Name]; dup {
				return nil, fmt.Errorf("function %q declared in both %s and %s", d.Name, prev, filePath)
			}
			seen[d.Name] = filePath
		}
		out = append(out, descs...)
		logger.Debug("Loaded manifest file.", "file", filePath, "functions", len(descs))
	}

	logger.Info("Function manifests loaded.", "files", len(filePaths), "functions", len(out))
	return out, nil
}

// ParseManifest decodes manifest source held in memory. Tests and the
// validate command use it to avoid touching the file system.
func ParseManifest(ctx context.Context, src []byte, filename string) ([]Descriptor, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", filename, diags)
	}
	return decodeManifestBody(ctx, file.Body)
}

func decodeManifestBody(ctx context.Context, body hcl.Body) ([]Descriptor, error) {
	content, diags := body.Content(manifestFileSchema)
	if diags.HasErrors() {
		return nil, diags
	}

	var out []Descriptor
	for _, block := range content.Blocks {
		d, err := decodeFunctionBlock(ctx, block)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func decodeFunctionBlock(ctx context.Context, block *hcl.Block) (Descriptor, error) {
	name := block.Labels[0]
	content, diags := block.Body.Content(functionBlockSchema)
	if diags.HasErrors() {
		return Descriptor{}, fmt.Errorf("function %q: %w", name, diags)
	}

	d := Descriptor{Name: name}

	if attr, ok := content.Attributes["description"]; ok {
		s, err := stringAttr(attr)
		if err != nil {
			return Descriptor{}, fmt.Errorf("function %q: description: %w", name, err)
		}
		d.Description = s
	}
	if attr, ok := content.Attributes["id"]; ok {
		s, err := stringAttr(attr)
		if err != nil {
			return Descriptor{}, fmt.Errorf("function %q: id: %w", name, err)
		}
		id, err := uuid.Parse(s)
		if err != nil {
			return Descriptor{}, fmt.Errorf("function %q: pinned id is not a UUID: %w", name, err)
		}
		d.ID = id
	}

	// Blocks arrive in source order, which fixes the pin order.
	for _, pin := range content.Blocks {
		arg, err := decodePinBlock(ctx, pin)
		if err != nil {
			return Descriptor{}, fmt.Errorf("function %q: %w", name, err)
		}
		switch pin.Type {
		case "input":
			d.Inputs = append(d.Inputs, arg)
		case "output":
			d.Outputs = append(d.Outputs, arg)
		}
	}

	if err := d.Validate(); err != nil {
		return Descriptor{}, err
	}
	return d, nil
}

func decodePinBlock(ctx context.Context, block *hcl.Block) (Arg, error) {
	content, diags := block.Body.Content(pinBlockSchema)
	if diags.HasErrors() {
		return Arg{}, fmt.Errorf("%s %q: %w", block.Type, block.Labels[0], diags)
	}
	typ, err := typeExprToType(ctx, content.Attributes["type"].Expr)
	if err != nil {
		return Arg{}, fmt.Errorf("%s %q: %w", block.Type, block.Labels[0], err)
	}
	return Arg{Name: block.Labels[0], Type: typ}, nil
}

// typeExprToType converts a manifest type expression into a pin type. Types
// are written as bare keywords (`type = int`), which HCL parses as a scope
// traversal.
func typeExprToType(ctx context.Context, expr hcl.Expression) (dtype.Type, error) {
	logger := ctxlog.FromContext(ctx)

	if expr == nil {
		logger.Debug("Type expression is nil, defaulting to any.")
		return dtype.Any, nil
	}

	switch v := expr.(type) {
	case *hclsyntax.ScopeTraversalExpr:
		if len(v.Traversal) != 1 {
			return dtype.Invalid, fmt.Errorf("invalid type keyword: traversal path is not a single identifier")
		}
		return dtype.Parse(v.Traversal.RootName())
	default:
		return dtype.Invalid, fmt.Errorf("unsupported expression for pin type: %T", v)
	}
}

func stringAttr(attr *hcl.Attribute) (string, error) {
	val, diags := attr.Expr.Value(nil)
	if diags.HasErrors() {
		return "", diags
	}
	if val.Type() != cty.String {
		return "", fmt.Errorf("expected a string, got %s", val.Type().FriendlyName())
	}
	return val.AsString(), nil
}
