package compiler

import (
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
)

// active returns the state of the function and the block the cursor is at,
// or the reason no instruction may be built there.
func (c *Compiler) active(op string) (*funcState, *ir.Block, error) {
	if c.disposed {
		return nil, nil, ErrDisposed
	}
	if !c.cursor.IsSet() {
		return nil, nil, fmt.Errorf("%s: %w", op, ErrNotPositioned)
	}
	if c.cursor.Terminated() {
		return nil, nil, fmt.Errorf("%s: %w: %s", op, ErrBlockTerminated, c.cursor)
	}
	return c.owners[c.cursor.Block], c.cursor.Block, nil
}

// checkOperand accepts constants, module-level values of this compiler and
// values produced inside st.
func (c *Compiler) checkOperand(st *funcState, v value.Value) error {
	switch v := v.(type) {
	case nil:
		return fmt.Errorf("%w: nil operand", ErrForeignValue)
	case *ir.Func, *ir.Global:
		if !st.scope.Visible(v) {
			return fmt.Errorf("%w: %s", ErrForeignValue, v.Ident())
		}
		return nil
	case *constant.ExprGetElementPtr:
		return c.checkOperand(st, v.Src)
	case constant.Constant:
		return nil
	}
	if !st.scope.Owns(v) {
		return fmt.Errorf("%w: %s", ErrForeignValue, v.Ident())
	}
	return nil
}

// DeclareScalarVariable allocates a stack slot of integer type t, stores
// literal into it and loads it back. The load is returned; the slot is
// named <name>.addr and the load <name>.
func (c *Compiler) DeclareScalarVariable(name string, literal int64, t types.Type) (value.Value, error) {
	const op = "declare scalar variable"
	st, b, err := c.active(op)
	if err != nil {
		return nil, err
	}
	c.mustRegistered(t)
	it, ok := t.(*types.IntType)
	if !ok {
		return nil, fmt.Errorf("%s %q: %w: %s", op, name, ErrNotScalar, t)
	}

	slot := b.NewAlloca(it)
	slotName := ""
	if name != "" {
		slotName = name + ".addr"
	}
	st.bind(slot, slotName)
	b.NewStore(c.ctx.ConstInt(it, literal), slot)
	load := b.NewLoad(it, slot)
	st.bind(load, name)

	c.logger.Debug("Declared variable '%s' of type %s = %d in %s", name, it, literal, c.cursor)
	return load, nil
}

// Multiply builds lhs * rhs.
func (c *Compiler) Multiply(lhs, rhs value.Value, name string) (value.Value, error) {
	return c.binary("multiply", lhs, rhs, name, func(b *ir.Block, x, y value.Value) value.Named {
		return b.NewMul(x, y)
	})
}

// Add builds lhs + rhs.
func (c *Compiler) Add(lhs, rhs value.Value, name string) (value.Value, error) {
	return c.binary("add", lhs, rhs, name, func(b *ir.Block, x, y value.Value) value.Named {
		return b.NewAdd(x, y)
	})
}

// Sub builds lhs - rhs.
func (c *Compiler) Sub(lhs, rhs value.Value, name string) (value.Value, error) {
	return c.binary("subtract", lhs, rhs, name, func(b *ir.Block, x, y value.Value) value.Named {
		return b.NewSub(x, y)
	})
}

func (c *Compiler) binary(op string, lhs, rhs value.Value, name string, build func(b *ir.Block, x, y value.Value) value.Named) (value.Value, error) {
	st, b, err := c.active(op)
	if err != nil {
		return nil, err
	}
	for _, v := range []value.Value{lhs, rhs} {
		if err := c.checkOperand(st, v); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}
	if _, ok := lhs.Type().(*types.IntType); !ok || !lhs.Type().Equal(rhs.Type()) {
		return nil, fmt.Errorf("%s: %w: %s and %s", op, ErrTypeMismatch, lhs.Type(), rhs.Type())
	}

	inst := build(b, lhs, rhs)
	st.bind(inst, name)
	c.logger.Debug("Built %s %s in %s", op, inst.Ident(), c.cursor)
	return inst, nil
}

// ReturnValue terminates the current block with `ret v`. A nil v returns
// void. Nothing more can be built into the block afterwards.
func (c *Compiler) ReturnValue(v value.Value) error {
	const op = "return value"
	st, b, err := c.active(op)
	if err != nil {
		return err
	}
	ret := st.fn.Sig.RetType
	if v == nil {
		if _, ok := ret.(*types.VoidType); !ok {
			return fmt.Errorf("%s: %w: void returned from function returning %s", op, ErrTypeMismatch, ret)
		}
		b.NewRet(nil)
		c.logger.Debug("Terminated %s with ret void", c.cursor)
		return nil
	}
	if err := c.checkOperand(st, v); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !v.Type().Equal(ret) {
		return fmt.Errorf("%s: %w: %s returned from function returning %s", op, ErrTypeMismatch, v.Type(), ret)
	}
	b.NewRet(v)
	c.logger.Debug("Terminated %s with ret %s", c.cursor, v.Ident())
	return nil
}
