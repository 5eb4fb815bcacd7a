package compiler

import (
	"errors"
	"fmt"

	"github.com/llir/llvm/ir"

	"github.com/arc-language/core-irgen/interp"
)

// RunViaInterpreter runs fn in the interpreter with args and returns its
// integer result, sign-extended. The engine is created on first use and
// reused afterwards, revalidated against the module on every call. A module
// the engine cannot run is reported as an *interp.EngineError carrying the
// diagnostic text.
func (c *Compiler) RunViaInterpreter(fn *ir.Func, args ...interp.GenericValue) (int64, error) {
	if c.disposed {
		return 0, ErrDisposed
	}
	if c.engine == nil {
		engine, err := interp.NewInterpreter(c.module,
			interp.WithStdout(c.stdout),
			interp.WithLogger(c.logger.WithPrefix("[interp]")),
		)
		if err != nil {
			var ee *interp.EngineError
			if errors.As(err, &ee) {
				c.diag.Error(ee.Op, ee.Diagnostic)
			}
			c.logger.Error("Failed to create interpreter: %v", err)
			return 0, err
		}
		c.engine = engine
	} else if err := c.engine.Validate(); err != nil {
		var ee *interp.EngineError
		if errors.As(err, &ee) {
			c.diag.Error(ee.Op, ee.Diagnostic)
		}
		c.logger.Error("Module no longer runs in the interpreter: %v", err)
		return 0, err
	}

	name := "<nil>"
	if fn != nil {
		name = fn.Name()
	}
	c.logger.Info("Running '%s' in the interpreter", name)
	res, err := c.engine.RunFunction(fn, args)
	if err != nil {
		c.logger.Error("Interpreting '%s' failed: %v", name, err)
		return 0, fmt.Errorf("run '%s': %w", name, err)
	}
	if !res.IsInt() {
		return 0, nil
	}
	return res.Int(true), nil
}
