package fn

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/csso/fngraph/internal/ctxlog"
	"github.com/csso/fngraph/internal/dtype"
)

// BindManifests performs a strict parity check between manifest-declared
// functions and compiled-in handlers, then returns the resolved descriptors:
// compiled signatures, manifest-pinned IDs where present and derived IDs
// otherwise, manifest descriptions filling in where the compiled pack gave
// none. Order follows the compiled registration order.
func BindManifests(ctx context.Context, manifests, compiled []Descriptor) ([]Descriptor, error) {
	logger := ctxlog.FromContext(ctx)
	var errs []string

	declared := make(map[string]Descriptor, len(manifests))
	for _, m := range manifests {
		declared[m.Name] = m
	}
	implemented := make(map[string]struct{}, len(compiled))
	for _, c := range compiled {
		implemented[c.Name] = struct{}{}
	}

	for _, m := range manifests {
		if _, ok := implemented[m.Name]; !ok {
			errs = append(errs, fmt.Sprintf("function '%s': manifest declares it, but no Go handler is registered", m.Name))
		}
	}

	resolved := make([]Descriptor, 0, len(compiled))
	for _, c := range compiled {
		m, ok := declared[c.Name]
		if !ok {
			errs = append(errs, fmt.Sprintf("function '%s': Go handler is registered, but no manifest declares it", c.Name))
			continue
		}
		errs = append(errs, comparePins(ctx, c.Name, "input", m.Inputs, c.Inputs)...)
		errs = append(errs, comparePins(ctx, c.Name, "output", m.Outputs, c.Outputs)...)

		d := c
		if m.ID != uuid.Nil {
			d.ID = m.ID
		} else {
			d.ID = DeriveID(c.Name)
		}
		if d.Description == "" {
			d.Description = m.Description
		}
		resolved = append(resolved, d)
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("manifest validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	logger.Debug("Manifest parity check passed.", "functions", len(resolved))
	return resolved, nil
}

// comparePins checks pin lists positionally: count, names, and types must all
// agree between the manifest and the compiled handler.
func comparePins(ctx context.Context, fnName, side string, manifest, compiled []Arg) []string {
	logger := ctxlog.FromContext(ctx)
	var errs []string

	if len(manifest) != len(compiled) {
		return []string{fmt.Sprintf("function '%s': manifest declares %d %s pins, Go handler has %d", fnName, len(manifest), side, len(compiled))}
	}
	for i := range manifest {
		if manifest[i].Name != compiled[i].Name {
			errs = append(errs, fmt.Sprintf("function '%s', %s %d: manifest names it '%s', Go handler names it '%s'", fnName, side, i, manifest[i].Name, compiled[i].Name))
			continue
		}
		if manifest[i].Type == dtype.Any || compiled[i].Type == dtype.Any {
			if manifest[i].Type != compiled[i].Type {
				logger.Warn("Pin typed 'any' on one side only, which disables static type checking for it. Consider using a specific type.", "function", fnName, "pin", manifest[i].Name)
			}
			continue
		}
		if manifest[i].Type != compiled[i].Type {
			errs = append(errs, fmt.Sprintf("function '%s', %s '%s': type mismatch. Manifest requires '%s' but Go handler provides '%s'",
				fnName, side, manifest[i].Name, manifest[i].Type, compiled[i].Type))
		}
	}
	return errs
}
