package fn

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/csso/fngraph/internal/dtype"
)

// Namespace is the UUID namespace for derived function IDs. Deriving IDs from
// names keeps them stable across processes, which matters because saved graph
// files reference functions by ID.
var Namespace = uuid.MustParse("7b0c1a52-9f6e-4f3c-8b11-d2a40cf5e0a9")

// DeriveID returns the stable ID for a function name.
func DeriveID(name string) uuid.UUID {
	return uuid.NewSHA1(Namespace, []byte(name))
}

// Arg is one typed input or output pin of a function.
type Arg struct {
	Name string     `yaml:"name"`
	Type dtype.Type `yaml:"data_type"`
}

// Descriptor describes a callable function: its identity and its typed
// signature. Descriptors are immutable once registered.
type Descriptor struct {
	ID          uuid.UUID
	Name        string
	Description string
	Inputs      []Arg
	Outputs     []Arg
}

// Validate checks the descriptor for structural problems: a missing name,
// unnamed or untyped pins, duplicate pin names on the same side.
func (d Descriptor) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("function has no name")
	}
	if err := validateArgs(d.Inputs); err != nil {
		return fmt.Errorf("function %q inputs: %w", d.Name, err)
	}
	if err := validateArgs(d.Outputs); err != nil {
		return fmt.Errorf("function %q outputs: %w", d.Name, err)
	}
	return nil
}

func validateArgs(args []Arg) error {
	seen := make(map[string]struct{}, len(args))
	for i, a := range args {
		if a.Name == "" {
			return fmt.Errorf("pin %d has no name", i)
		}
		if a.Type == dtype.Invalid {
			return fmt.Errorf("pin %q has no type", a.Name)
		}
		if _, dup := seen[a.Name]; dup {
			return fmt.Errorf("pin name %q is used twice", a.Name)
		}
		seen[a.Name] = struct{}{}
	}
	return nil
}

// Signature renders the descriptor in a compact human-readable form, e.g.
// "sum(a int, b int) (result int)".
func (d Descriptor) Signature() string {
	var b strings.Builder
	b.WriteString(d.Name)
	b.WriteByte('(')
	writeArgs(&b, d.Inputs)
	b.WriteByte(')')
	if len(d.Outputs) > 0 {
		b.WriteString(" (")
		writeArgs(&b, d.Outputs)
		b.WriteByte(')')
	}
	return b.String()
}

func writeArgs(b *strings.Builder, args []Arg) {
	for i, a := range args {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(b, "%s %s", a.Name, a.Type)
	}
}
