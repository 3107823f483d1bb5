// Package appmodel exposes the engine's function catalog to a UI or
// data-binding layer.
//
// A Model is built over a Subsystem, snapshots its functions once, and wraps
// each descriptor in an owned view object. The sequence is write-once: views
// are appended at construction in the order the subsystem reported them and
// never updated, inserted, or removed afterwards. A fresh snapshot means a
// fresh model.
//
// The view types are registered with the process-wide type registry under
// the "com.csso" namespace, version 1.0, as non-instantiable: consumers
// receive views from the model, they never construct them.
package appmodel

import (
	"context"
	"fmt"
	"sync"

	"github.com/csso/fngraph/internal/fn"
	"github.com/csso/fngraph/typereg"
)

const (
	// Namespace is the type-registry namespace the view types live under.
	Namespace = "com.csso"

	// MajorVersion and MinorVersion version the registered view types.
	MajorVersion = 1
	MinorVersion = 0
)

// Subsystem is the engine-side contract the model builds on. Init must
// succeed before Functions is read; Close must be called exactly once, and
// any use after Close is unsafe.
type Subsystem interface {
	Init(ctx context.Context) error
	Functions() []fn.Descriptor
	Close() error
}

var registerTypes sync.Once

// registerViewTypes runs once per process. The registry panics on duplicate
// registration, and models are rebuilt freely (watch mode tears them down
// and constructs new ones), so registration cannot ride every construction.
func registerViewTypes() {
	registerTypes.Do(func() {
		typereg.RegisterUncreatable(Namespace, MajorVersion, MinorVersion, "FunctionInfo",
			"FunctionInfo views are created by the app model", FunctionInfo{})
		typereg.RegisterUncreatable(Namespace, MajorVersion, MinorVersion, "ArgInfo",
			"ArgInfo views belong to their FunctionInfo", ArgInfo{})
	})
}

// Model is the write-once view sequence over one subsystem snapshot.
type Model struct {
	subsystem Subsystem
	functions []*FunctionInfo

	closeOnce sync.Once
	closeErr  error
}

// New registers the view types, initializes the subsystem, and snapshots its
// functions. An Init failure propagates and nothing is half-built; the
// subsystem is not closed on that path because it never finished opening.
func New(ctx context.Context, sub Subsystem) (*Model, error) {
	registerViewTypes()
	if err := sub.Init(ctx); err != nil {
		return nil, fmt.Errorf("initializing subsystem: %w", err)
	}
	snapshot := sub.Functions()
	functions := make([]*FunctionInfo, 0, len(snapshot))
	for _, d := range snapshot {
		functions = append(functions, newFunctionInfo(d))
	}
	return &Model{subsystem: sub, functions: functions}, nil
}

// Len reports how many functions the subsystem had at construction.
func (m *Model) Len() int {
	return len(m.functions)
}

// At returns the view at position i, in subsystem order.
func (m *Model) At(i int) *FunctionInfo {
	return m.functions[i]
}

// Functions returns the views in subsystem order. The returned slice is the
// caller's to reorder; the model's sequence never changes.
func (m *Model) Functions() []*FunctionInfo {
	out := make([]*FunctionInfo, len(m.functions))
	copy(out, m.functions)
	return out
}

// Close deinitializes the subsystem exactly once, no matter how many times
// it is called, so deferred cleanup on every exit path stays safe. Repeated
// calls return the first result.
func (m *Model) Close() error {
	m.closeOnce.Do(func() {
		m.closeErr = m.subsystem.Close()
	})
	return m.closeErr
}
