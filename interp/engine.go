// Package interp executes llir modules directly, without producing native
// code. It is the interpreting execution engine behind the IR builder's
// RunViaInterpreter: functions are invoked by handle with GenericValue
// arguments, external declarations resolve to a small host runtime
// (printf, puts, putchar), and faults come back as errors rather than
// crashing the process.
package interp

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/arc-language/core-irgen/logging"
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/types"
)

// DefaultMaxCallDepth bounds recursion in interpreted code.
const DefaultMaxCallDepth = 1024

// Engine is an interpreter bound to one module.
type Engine struct {
	module   *ir.Module
	stdout   io.Writer
	logger   *logging.Logger
	maxDepth int
	globals  map[*ir.Global]*object
}

// Option configures an Engine.
type Option func(*Engine)

// WithStdout redirects output of the host runtime.
func WithStdout(w io.Writer) Option {
	return func(e *Engine) { e.stdout = w }
}

// WithLogger sets the logger used for execution traces.
func WithLogger(l *logging.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithMaxCallDepth overrides DefaultMaxCallDepth.
func WithMaxCallDepth(n int) Option {
	return func(e *Engine) { e.maxDepth = n }
}

// NewInterpreter creates an engine for m. Every declared-only function must
// resolve to a host function and every block must be terminated; otherwise
// an *EngineError with the diagnostic is returned.
func NewInterpreter(m *ir.Module, opts ...Option) (*Engine, error) {
	const op = "create interpreter"
	if !isLinked() {
		return nil, &EngineError{Op: op, Diagnostic: ErrNotLinked.Error(), Err: ErrNotLinked}
	}
	if m == nil {
		return nil, &EngineError{Op: op, Diagnostic: "no module"}
	}

	e := &Engine{
		module:   m,
		stdout:   os.Stdout,
		logger:   logging.Default().WithPrefix("[interp]"),
		maxDepth: DefaultMaxCallDepth,
		globals:  make(map[*ir.Global]*object),
	}
	for _, opt := range opts {
		opt(e)
	}

	if problems := checkModule(m); len(problems) > 0 {
		return nil, &EngineError{Op: op, Diagnostic: strings.Join(problems, "; ")}
	}

	e.logger.Debug("engine created for module with %d function(s), %d global(s)", len(m.Funcs), len(m.Globals))
	return e, nil
}

// Validate repeats the checks of NewInterpreter against the module as it
// is now. Callers that keep building the module after creating the engine
// run it before each execution.
func (e *Engine) Validate() error {
	if problems := checkModule(e.module); len(problems) > 0 {
		return &EngineError{Op: "validate module", Diagnostic: strings.Join(problems, "; ")}
	}
	return nil
}

func checkModule(m *ir.Module) []string {
	var problems []string
	for _, fn := range m.Funcs {
		if len(fn.Blocks) == 0 {
			if _, ok := lookupHost(fn.Name()); !ok {
				problems = append(problems, fmt.Sprintf("unresolved external function '%s'", fn.Name()))
			}
			continue
		}
		for _, block := range fn.Blocks {
			if block.Term == nil {
				problems = append(problems, fmt.Sprintf("block '%s' in function '%s' has no terminator", blockName(block), fn.Name()))
			}
		}
	}
	return problems
}

// Module returns the module the engine is bound to.
func (e *Engine) Module() *ir.Module {
	return e.module
}

// RunFunction invokes fn with args and returns its result.
func (e *Engine) RunFunction(fn *ir.Func, args []GenericValue) (GenericValue, error) {
	if fn == nil {
		return Void, &RuntimeError{Function: "<nil>", Err: fmt.Errorf("no function")}
	}
	if !e.owns(fn) {
		return Void, &RuntimeError{Function: fn.Name(), Err: fmt.Errorf("function does not belong to the engine's module")}
	}
	if err := checkGenericArgs(fn.Sig, args); err != nil {
		return Void, &RuntimeError{Function: fn.Name(), Err: err}
	}
	e.logger.Debug("run @%s with %d argument(s)", fn.Name(), len(args))
	return e.call(fn, args, 0)
}

// RunFunctionByName looks fn up by name and runs it.
func (e *Engine) RunFunctionByName(name string, args []GenericValue) (GenericValue, error) {
	for _, fn := range e.module.Funcs {
		if fn.Name() == name {
			return e.RunFunction(fn, args)
		}
	}
	return Void, &RuntimeError{Function: name, Err: fmt.Errorf("no such function")}
}

func (e *Engine) owns(fn *ir.Func) bool {
	for _, f := range e.module.Funcs {
		if f == fn {
			return true
		}
	}
	return false
}

// checkGenericArgs compares boxed arguments against a signature. Arguments
// past the fixed parameters of a variadic function are not checked.
func checkGenericArgs(sig *types.FuncType, args []GenericValue) error {
	if len(args) < len(sig.Params) || (!sig.Variadic && len(args) != len(sig.Params)) {
		return fmt.Errorf("%w: expected %d, got %d", ErrArgCount, len(sig.Params), len(args))
	}
	for i, param := range sig.Params {
		switch p := param.(type) {
		case *types.IntType:
			if !args[i].IsInt() || args[i].Bits() != p.BitSize {
				return fmt.Errorf("%w: argument %d is %s, expected %s", ErrArgType, i, args[i], p)
			}
		case *types.PointerType:
			if !args[i].IsPointer() {
				return fmt.Errorf("%w: argument %d is %s, expected %s", ErrArgType, i, args[i], p)
			}
		}
	}
	return nil
}

func blockName(b *ir.Block) string {
	if name := b.Name(); name != "" {
		return name
	}
	return fmt.Sprintf("%d", b.LocalID)
}
