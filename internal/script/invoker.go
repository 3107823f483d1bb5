package script

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/dop251/goja"
	"github.com/zclconf/go-cty/cty"

	"github.com/csso/fngraph/internal/dtype"
	"github.com/csso/fngraph/internal/fn"
	"github.com/csso/fngraph/internal/invoke"
)

type scriptFunc struct {
	descriptor fn.Descriptor
	call       goja.Callable
}

// Invoker executes the functions declared by one script. The VM is not
// goroutine-safe, so all entry points serialize on an internal mutex.
type Invoker struct {
	name string

	mu      sync.Mutex
	vm      *goja.Runtime
	fns     map[string]scriptFunc
	ordered []fn.Descriptor
	console []string
	closed  bool
}

// Load reads a script file and prepares its functions.
func Load(path string) (*Invoker, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading script: %w", err)
	}
	return New(path, string(src))
}

// New evaluates source and collects the functions it declares. The name is
// used in diagnostics only.
func New(name, source string) (*Invoker, error) {
	s := &Invoker{
		name: name,
		vm:   goja.New(),
		fns:  make(map[string]scriptFunc),
	}
	s.installConsole()
	if _, err := s.vm.RunString("var functions = [];"); err != nil {
		return nil, fmt.Errorf("script %s: %w", name, err)
	}
	if _, err := s.vm.RunString(source); err != nil {
		return nil, fmt.Errorf("script %s: %w", name, err)
	}
	if err := s.readFunctions(); err != nil {
		return nil, fmt.Errorf("script %s: %w", name, err)
	}
	slog.Debug("Script loaded.", "script", name, "functions", len(s.ordered))
	return s, nil
}

// Name returns the diagnostic name the invoker was created with.
func (s *Invoker) Name() string {
	return s.name
}

// Functions returns the declared descriptors in declaration order. They carry
// no IDs; the engine assigns those when it builds its registry.
func (s *Invoker) Functions() []fn.Descriptor {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]fn.Descriptor, len(s.ordered))
	copy(out, s.ordered)
	return out
}

// Output drains the console.log lines captured since the previous drain.
func (s *Invoker) Output() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	lines := s.console
	s.console = nil
	return lines
}

// Invoke runs the script function declared under d's name. Input values are
// converted to JavaScript values, the return value back to the declared
// output types; a multi-output function returns an array.
func (s *Invoker) Invoke(ctx context.Context, call *invoke.Call, d fn.Descriptor, in invoke.Args, out invoke.Args) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("script %s: invoker is closed", s.name)
	}
	sf, ok := s.fns[d.Name]
	if !ok {
		return fmt.Errorf("script %s has no function '%s'", s.name, d.Name)
	}
	if len(in) != len(sf.descriptor.Inputs) {
		return fmt.Errorf("function '%s' expects %d inputs, got %d", d.Name, len(sf.descriptor.Inputs), len(in))
	}
	if len(out) != len(sf.descriptor.Outputs) {
		return fmt.Errorf("function '%s' produces %d outputs, got buffer for %d", d.Name, len(sf.descriptor.Outputs), len(out))
	}

	jsArgs := make([]goja.Value, len(in))
	for i, v := range in {
		pin := sf.descriptor.Inputs[i]
		jv, err := s.jsValue(pin.Type, v)
		if err != nil {
			return fmt.Errorf("function '%s' input '%s': %w", d.Name, pin.Name, err)
		}
		jsArgs[i] = jv
	}

	s.setCallContext(call)
	stop := s.interruptOnCancel(ctx)
	defer stop()

	rv, err := sf.call(goja.Undefined(), jsArgs...)
	if err != nil {
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) && ctx.Err() != nil {
			return fmt.Errorf("function '%s': %w", d.Name, ctx.Err())
		}
		return fmt.Errorf("function '%s': %w", d.Name, err)
	}
	return s.readResults(sf.descriptor, rv, out)
}

// Close releases the VM. Calls after Close fail.
func (s *Invoker) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.vm = nil
	s.fns = nil
	return nil
}

func (s *Invoker) installConsole() {
	console := s.vm.NewObject()
	console.Set("log", func(fc goja.FunctionCall) goja.Value {
		parts := make([]string, len(fc.Arguments))
		for i, arg := range fc.Arguments {
			parts[i] = arg.String()
		}
		s.console = append(s.console, strings.Join(parts, " "))
		return goja.Undefined()
	})
	s.vm.Set("console", console)
}

// setCallContext publishes the node identity and its state bag as the global
// `context`, so scripts can park values between runs of the same node.
func (s *Invoker) setCallContext(call *invoke.Call) {
	obj := s.vm.NewObject()
	obj.Set("node_id", call.NodeID.String())
	obj.Set("node_name", call.NodeName)
	obj.Set("get", func(fc goja.FunctionCall) goja.Value {
		if len(fc.Arguments) == 0 {
			return goja.Undefined()
		}
		v, ok := call.State(fc.Arguments[0].String())
		if !ok {
			return goja.Undefined()
		}
		return s.vm.ToValue(v)
	})
	obj.Set("set", func(fc goja.FunctionCall) goja.Value {
		if len(fc.Arguments) < 2 {
			return goja.Undefined()
		}
		call.SetState(fc.Arguments[0].String(), fc.Arguments[1].Export())
		return goja.Undefined()
	})
	s.vm.Set("context", obj)
}

// interruptOnCancel aborts the running script when ctx ends. Any stale
// interrupt flag from a previous call is cleared before the new watch starts.
func (s *Invoker) interruptOnCancel(ctx context.Context) (stop func()) {
	s.vm.ClearInterrupt()
	done := make(chan struct{})
	vm := s.vm
	go func() {
		select {
		case <-ctx.Done():
			vm.Interrupt(ctx.Err())
		case <-done:
		}
	}()
	return func() { close(done) }
}

func (s *Invoker) readFunctions() error {
	arrVal := s.vm.Get("functions")
	if arrVal == nil || goja.IsUndefined(arrVal) || goja.IsNull(arrVal) {
		return fmt.Errorf("global 'functions' array is missing")
	}
	arr := arrVal.ToObject(s.vm)
	length := int(arr.Get("length").ToInteger())
	for i := 0; i < length; i++ {
		entry := arr.Get(strconv.Itoa(i))
		if entry == nil || goja.IsUndefined(entry) || goja.IsNull(entry) {
			return fmt.Errorf("functions[%d] is not an object", i)
		}
		d, c, err := s.readFunction(entry.ToObject(s.vm))
		if err != nil {
			return fmt.Errorf("functions[%d]: %w", i, err)
		}
		if _, dup := s.fns[d.Name]; dup {
			return fmt.Errorf("function '%s' is declared twice", d.Name)
		}
		s.fns[d.Name] = scriptFunc{descriptor: d, call: c}
		s.ordered = append(s.ordered, d)
	}
	return nil
}

func (s *Invoker) readFunction(obj *goja.Object) (fn.Descriptor, goja.Callable, error) {
	var d fn.Descriptor
	if v := obj.Get("name"); v != nil && !goja.IsUndefined(v) {
		d.Name = v.String()
	}
	if v := obj.Get("description"); v != nil && !goja.IsUndefined(v) {
		d.Description = v.String()
	}
	var err error
	if d.Inputs, err = readArgs(obj.Get("inputs")); err != nil {
		return d, nil, fmt.Errorf("function '%s' inputs: %w", d.Name, err)
	}
	if d.Outputs, err = readArgs(obj.Get("outputs")); err != nil {
		return d, nil, fmt.Errorf("function '%s' outputs: %w", d.Name, err)
	}
	if err := d.Validate(); err != nil {
		return d, nil, err
	}
	c, ok := goja.AssertFunction(obj.Get("func"))
	if !ok {
		return d, nil, fmt.Errorf("function '%s' has no callable 'func'", d.Name)
	}
	return d, c, nil
}

func readArgs(v goja.Value) ([]fn.Arg, error) {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil, nil
	}
	raw, ok := v.Export().([]any)
	if !ok {
		return nil, fmt.Errorf("pin list must be an array of [name, type] pairs")
	}
	args := make([]fn.Arg, 0, len(raw))
	for i, el := range raw {
		pair, ok := el.([]any)
		if !ok || len(pair) != 2 {
			return nil, fmt.Errorf("pin %d must be a [name, type] pair", i)
		}
		name, nameOK := pair[0].(string)
		keyword, typeOK := pair[1].(string)
		if !nameOK || !typeOK {
			return nil, fmt.Errorf("pin %d must name both the pin and its type", i)
		}
		t, err := dtype.Parse(keyword)
		if err != nil {
			return nil, fmt.Errorf("pin '%s': %w", name, err)
		}
		args = append(args, fn.Arg{Name: name, Type: t})
	}
	return args, nil
}

// jsValue converts a pin value into what the script sees. Ints stay integral
// so JavaScript arithmetic on them behaves as the script author expects.
func (s *Invoker) jsValue(t dtype.Type, v cty.Value) (goja.Value, error) {
	if v.IsNull() {
		return goja.Null(), nil
	}
	switch v.Type() {
	case cty.Bool:
		return s.vm.ToValue(v.True()), nil
	case cty.String:
		return s.vm.ToValue(v.AsString()), nil
	case cty.Number:
		bf := v.AsBigFloat()
		if t == dtype.Float {
			f, _ := bf.Float64()
			return s.vm.ToValue(f), nil
		}
		if t == dtype.Int || bf.IsInt() {
			n, _ := bf.Int64()
			return s.vm.ToValue(n), nil
		}
		f, _ := bf.Float64()
		return s.vm.ToValue(f), nil
	default:
		return nil, fmt.Errorf("cannot pass %s value to a script", v.Type().FriendlyName())
	}
}

func (s *Invoker) readResults(d fn.Descriptor, rv goja.Value, out invoke.Args) error {
	switch len(d.Outputs) {
	case 0:
		return nil
	case 1:
		v, err := ctyResult(d.Outputs[0].Type, rv, d.Outputs[0].Name)
		if err != nil {
			return fmt.Errorf("function '%s': %w", d.Name, err)
		}
		out[0] = v
		return nil
	}
	if rv == nil || goja.IsUndefined(rv) || goja.IsNull(rv) {
		return fmt.Errorf("function '%s' must return an array of %d values", d.Name, len(d.Outputs))
	}
	obj := rv.ToObject(s.vm)
	if obj.ClassName() != "Array" {
		return fmt.Errorf("function '%s' must return an array of %d values", d.Name, len(d.Outputs))
	}
	if n := int(obj.Get("length").ToInteger()); n != len(d.Outputs) {
		return fmt.Errorf("function '%s' returned %d values, want %d", d.Name, n, len(d.Outputs))
	}
	for i, pin := range d.Outputs {
		v, err := ctyResult(pin.Type, obj.Get(strconv.Itoa(i)), pin.Name)
		if err != nil {
			return fmt.Errorf("function '%s': %w", d.Name, err)
		}
		out[i] = v
	}
	return nil
}

// ctyResult converts one returned JavaScript value to the declared pin type.
// Conversion is strict; a script returning the wrong shape is a script bug
// the author should see immediately.
func ctyResult(t dtype.Type, v goja.Value, pin string) (cty.Value, error) {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return cty.NullVal(t.Cty()), nil
	}
	switch x := v.Export().(type) {
	case int64:
		switch t {
		case dtype.Int, dtype.Any:
			return cty.NumberIntVal(x), nil
		case dtype.Float:
			return cty.NumberFloatVal(float64(x)), nil
		}
	case float64:
		switch t {
		case dtype.Float, dtype.Any:
			return cty.NumberFloatVal(x), nil
		case dtype.Int:
			if x == math.Trunc(x) {
				return cty.NumberIntVal(int64(x)), nil
			}
			return cty.NilVal, fmt.Errorf("output '%s': %v is not an integer", pin, x)
		}
	case string:
		if t == dtype.String || t == dtype.Any {
			return cty.StringVal(x), nil
		}
	case bool:
		if t == dtype.Bool || t == dtype.Any {
			return cty.BoolVal(x), nil
		}
	}
	return cty.NilVal, fmt.Errorf("output '%s': script returned %s, want %s", pin, v.ExportType(), t)
}
