package compiler

import (
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
)

// DeclareVariadicHostFunction declares (or retrieves) a function with the
// given fixed leading parameters followed by "...". The body is expected
// from the host runtime.
func (c *Compiler) DeclareVariadicHostFunction(name string, fixed []types.Type, ret types.Type) (*ir.Func, error) {
	if c.disposed {
		return nil, ErrDisposed
	}
	if len(fixed) == 0 {
		return nil, fmt.Errorf("declare variadic function '%s': %w", name, ErrNoFixedParams)
	}
	c.mustRegistered(ret)
	for _, p := range fixed {
		c.mustParamType(p)
	}
	return c.declareOrGet(name, ret, fixed, true), nil
}

// DeclarePrintf declares `i32 printf(i8*, ...)`.
func (c *Compiler) DeclarePrintf() (*ir.Func, error) {
	return c.DeclareVariadicHostFunction("printf", []types.Type{c.ctx.Type(KindBytePtr)}, c.ctx.Type(KindInt32))
}

// BuildCall calls callee with args. The fixed parameters are checked for
// count and type; arguments in a variadic tail are passed as given. Calls
// returning void are left unnamed.
func (c *Compiler) BuildCall(callee *ir.Func, args []value.Value, name string) (value.Value, error) {
	const op = "build call"
	st, b, err := c.active(op)
	if err != nil {
		return nil, err
	}
	if callee == nil {
		return nil, fmt.Errorf("%s: %w: nil callee", op, ErrUndeclaredFunction)
	}
	if fn, ok := c.Function(callee.Name()); !ok || fn != callee {
		return nil, fmt.Errorf("%s: %w: function %s", op, ErrForeignValue, callee.Ident())
	}

	sig := callee.Sig
	if len(args) < len(sig.Params) || (!sig.Variadic && len(args) > len(sig.Params)) {
		c.diag.ErrorIn(c.cursor.Func.Name(), c.cursor.Block.Name(), op,
			fmt.Sprintf("call to '%s' with %d argument(s), expected %d", callee.Name(), len(args), len(sig.Params)))
		return nil, fmt.Errorf("%s '%s': %w: expected %d, got %d", op, callee.Name(), ErrArgCount, len(sig.Params), len(args))
	}
	for i, arg := range args {
		if err := c.checkOperand(st, arg); err != nil {
			return nil, fmt.Errorf("%s '%s': argument %d: %w", op, callee.Name(), i, err)
		}
		if _, void := arg.Type().(*types.VoidType); void {
			return nil, fmt.Errorf("%s '%s': %w: argument %d is void", op, callee.Name(), ErrArgType, i)
		}
		if i < len(sig.Params) && !arg.Type().Equal(sig.Params[i]) {
			c.diag.ErrorIn(c.cursor.Func.Name(), c.cursor.Block.Name(), op,
				fmt.Sprintf("argument %d to '%s' is %s, expected %s", i, callee.Name(), arg.Type(), sig.Params[i]))
			return nil, fmt.Errorf("%s '%s': %w: argument %d is %s, expected %s", op, callee.Name(), ErrArgType, i, arg.Type(), sig.Params[i])
		}
	}

	call := b.NewCall(callee, args...)
	if _, void := sig.RetType.(*types.VoidType); !void {
		st.bind(call, name)
	}
	c.logger.Debug("Built call to '%s' with %d argument(s) in %s", callee.Name(), len(args), c.cursor)
	return call, nil
}

// PrintInt emits printf("%d\n", v), or "%ld\n" for 64-bit v.
func (c *Compiler) PrintInt(v value.Value) error {
	const op = "print int"
	if _, _, err := c.active(op); err != nil {
		return err
	}
	if v == nil {
		return fmt.Errorf("%s: %w: nil operand", op, ErrForeignValue)
	}
	it, ok := v.Type().(*types.IntType)
	if !ok {
		return fmt.Errorf("%s: %w: %s", op, ErrNotScalar, v.Type())
	}
	format := "%d\n"
	if it.BitSize == 64 {
		format = "%ld\n"
	}

	printf, err := c.DeclarePrintf()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	str, ok := c.formats[format]
	if !ok {
		if str, err = c.MaterializeConstantString(format); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		c.formats[format] = str
	}
	if _, err := c.BuildCall(printf, []value.Value{str, v}, ""); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
