// Package dtype defines the closed set of value types a pin can carry and the
// assignability rules between them. Values on the wire are cty values; the
// pin types here are the engine's own vocabulary layered on top.
package dtype

import (
	"fmt"
	"strings"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"gopkg.in/yaml.v3"
)

// Type identifies a pin's value type.
type Type int

const (
	Invalid Type = iota
	Bool
	Int
	Float
	String
	Any
)

var names = map[Type]string{
	Bool:   "bool",
	Int:    "int",
	Float:  "float",
	String: "string",
	Any:    "any",
}

// Parse converts a type keyword into a Type. Keywords are matched
// case-insensitively so hand-edited graph files stay forgiving.
func Parse(name string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "bool":
		return Bool, nil
	case "int":
		return Int, nil
	case "float":
		return Float, nil
	case "string":
		return String, nil
	case "any":
		return Any, nil
	default:
		return Invalid, fmt.Errorf("unknown pin type %q (expected one of bool, int, float, string, any)", name)
	}
}

func (t Type) String() string {
	if s, ok := names[t]; ok {
		return s
	}
	return "invalid"
}

// Cty returns the cty type used to carry values of this pin type.
func (t Type) Cty() cty.Type {
	switch t {
	case Bool:
		return cty.Bool
	case Int, Float:
		return cty.Number
	case String:
		return cty.String
	default:
		return cty.DynamicPseudoType
	}
}

// CanAssign reports whether a value of type src may flow into a pin of type
// dst. Equal types always flow; int promotes to float; any accepts and
// provides everything.
func CanAssign(dst, src Type) bool {
	if dst == Invalid || src == Invalid {
		return false
	}
	if dst == src || dst == Any || src == Any {
		return true
	}
	return dst == Float && src == Int
}

// ConvertValue coerces v for a pin of type dst. Assignability must already
// hold; the conversion only reshapes the carrier value.
func (t Type) ConvertValue(v cty.Value) (cty.Value, error) {
	if t == Any || v.IsNull() {
		return v, nil
	}
	out, err := convert.Convert(v, t.Cty())
	if err != nil {
		return cty.NilVal, fmt.Errorf("cannot carry %s as %s: %w", v.Type().FriendlyName(), t, err)
	}
	return out, nil
}

// MarshalYAML writes the type keyword.
func (t Type) MarshalYAML() (any, error) {
	if t == Invalid {
		return nil, fmt.Errorf("cannot marshal invalid pin type")
	}
	return t.String(), nil
}

// UnmarshalYAML reads a type keyword.
func (t *Type) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
