package appmodel

import "github.com/csso/fngraph/internal/fn"

// ArgInfo is the read-only view of one typed pin.
type ArgInfo struct {
	name string
	typ  string
}

func newArgInfo(a fn.Arg) *ArgInfo {
	return &ArgInfo{name: a.Name, typ: a.Type.String()}
}

// Name returns the pin name.
func (a *ArgInfo) Name() string {
	return a.name
}

// Type returns the pin type keyword, e.g. "int".
func (a *ArgInfo) Type() string {
	return a.typ
}

// FunctionInfo is the read-only view of one function descriptor. Views are
// owned by the model that created them and live exactly as long as it does.
type FunctionInfo struct {
	id          string
	name        string
	description string
	signature   string
	inputs      []*ArgInfo
	outputs     []*ArgInfo
}

func newFunctionInfo(d fn.Descriptor) *FunctionInfo {
	f := &FunctionInfo{
		id:          d.ID.String(),
		name:        d.Name,
		description: d.Description,
		signature:   d.Signature(),
	}
	for _, a := range d.Inputs {
		f.inputs = append(f.inputs, newArgInfo(a))
	}
	for _, a := range d.Outputs {
		f.outputs = append(f.outputs, newArgInfo(a))
	}
	return f
}

// ID returns the function's stable ID as a string.
func (f *FunctionInfo) ID() string {
	return f.id
}

// Name returns the function name.
func (f *FunctionInfo) Name() string {
	return f.name
}

// Description returns the human-readable description, possibly empty.
func (f *FunctionInfo) Description() string {
	return f.description
}

// Signature renders the function in compact form, e.g.
// "sum(a int, b int) (result int)".
func (f *FunctionInfo) Signature() string {
	return f.signature
}

// Inputs returns the input pin views in signature order.
func (f *FunctionInfo) Inputs() []*ArgInfo {
	out := make([]*ArgInfo, len(f.inputs))
	copy(out, f.inputs)
	return out
}

// Outputs returns the output pin views in signature order.
func (f *FunctionInfo) Outputs() []*ArgInfo {
	out := make([]*ArgInfo, len(f.outputs))
	copy(out, f.outputs)
	return out
}
