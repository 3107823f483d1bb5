package invoke

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/csso/fngraph/internal/fn"
)

// HandlerFunc is the Go implementation of one function. in is sized to the
// signature's inputs, out to its outputs.
type HandlerFunc func(ctx context.Context, call *Call, in Args, out Args) error

// Module is implemented by the built-in function packs; each pack registers
// its descriptors and handlers in one place.
type Module interface {
	Register(inv *GoInvoker)
}

// GoInvoker executes compiled-in Go functions. Registration happens during
// startup only, so lookups run lock-free afterwards.
type GoInvoker struct {
	descriptors []fn.Descriptor
	handlers    map[string]HandlerFunc
}

// NewGoInvoker creates an empty GoInvoker.
func NewGoInvoker() *GoInvoker {
	return &GoInvoker{handlers: make(map[string]HandlerFunc)}
}

// Register adds a function. Registering the same name twice is a programmer
// error in a pack, not a runtime condition, hence the panic.
func (g *GoInvoker) Register(d fn.Descriptor, h HandlerFunc) {
	if err := d.Validate(); err != nil {
		panic(fmt.Sprintf("invalid function descriptor: %v", err))
	}
	if h == nil {
		panic(fmt.Sprintf("function '%s' registered with nil handler", d.Name))
	}
	if _, exists := g.handlers[d.Name]; exists {
		panic(fmt.Sprintf("function handler with name '%s' already registered", d.Name))
	}
	slog.Debug("Registering function handler.", "name", d.Name)
	g.handlers[d.Name] = h
	g.descriptors = append(g.descriptors, d)
}

// Functions returns the registered descriptors in registration order.
func (g *GoInvoker) Functions() []fn.Descriptor {
	out := make([]fn.Descriptor, len(g.descriptors))
	copy(out, g.descriptors)
	return out
}

// Invoke runs the handler registered for d's name.
func (g *GoInvoker) Invoke(ctx context.Context, call *Call, d fn.Descriptor, in Args, out Args) error {
	h, ok := g.handlers[d.Name]
	if !ok {
		return fmt.Errorf("no handler for function '%s'", d.Name)
	}
	if len(in) != len(d.Inputs) {
		return fmt.Errorf("function '%s' expects %d inputs, got %d", d.Name, len(d.Inputs), len(in))
	}
	if len(out) != len(d.Outputs) {
		return fmt.Errorf("function '%s' produces %d outputs, got buffer for %d", d.Name, len(d.Outputs), len(out))
	}
	return h(ctx, call, in, out)
}

// Close implements Invoker; Go packs hold no external resources.
func (g *GoInvoker) Close() error {
	return nil
}
