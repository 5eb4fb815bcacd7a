package compiler

import (
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/types"
)

// DeclareFunction returns the function called name, declaring it with the
// given signature if the module has none yet. Redeclaring a name returns
// the first handle; a differing signature is reported as a warning.
//
// Types must come from the compiler's Context. A nil or foreign type, an
// empty name or a disposed compiler is a caller error and panics.
func (c *Compiler) DeclareFunction(ret types.Type, params []types.Type, name string) *ir.Func {
	if c.disposed {
		panic(ErrDisposed)
	}
	c.mustRegistered(ret)
	for _, p := range params {
		c.mustParamType(p)
	}
	return c.declareOrGet(name, ret, params, false)
}

// declareOrGet is the name-keyed function table shared by every
// declaration entry point.
func (c *Compiler) declareOrGet(name string, ret types.Type, params []types.Type, variadic bool) *ir.Func {
	if name == "" {
		panic("compiler: function name must not be empty")
	}
	if st, ok := c.lookupFunction(name); ok {
		if !sameSignature(st.fn.Sig, ret, params, variadic) {
			c.logger.Warning("Function '%s' redeclared with a different signature; keeping %s", name, st.fn.Sig)
			c.diag.WarningIn(name, "declare function", "redeclared with a different signature")
		} else {
			c.logger.Debug("Function '%s' already declared", name)
		}
		return st.fn
	}

	st := &funcState{
		scope:  NewScope(c.moduleScope),
		blocks: make(map[string]*ir.Block),
	}
	irParams := make([]*ir.Param, len(params))
	for i, p := range params {
		irParams[i] = ir.NewParam(st.scope.Unique(fmt.Sprintf("arg%d", i)), p)
		st.scope.Define(irParams[i].Name(), irParams[i])
	}
	fn := c.module.NewFunc(name, ret, irParams...)
	fn.Sig.Variadic = variadic
	st.fn = fn

	c.moduleScope.Define(name, fn)
	c.funcs[fn] = st
	c.logger.Debug("Declared function '%s' with signature %s", name, fn.Sig)
	return fn
}

func sameSignature(sig *types.FuncType, ret types.Type, params []types.Type, variadic bool) bool {
	if sig.Variadic != variadic || !sig.RetType.Equal(ret) || len(sig.Params) != len(params) {
		return false
	}
	for i, p := range params {
		if !sig.Params[i].Equal(p) {
			return false
		}
	}
	return true
}

func (c *Compiler) mustRegistered(t types.Type) {
	if t == nil {
		panic("compiler: nil type")
	}
	if !c.ctx.Registered(t) {
		panic(fmt.Sprintf("compiler: type %s was not obtained from the context", t))
	}
}

func (c *Compiler) mustParamType(t types.Type) {
	c.mustRegistered(t)
	if _, ok := t.(*types.VoidType); ok {
		panic("compiler: void is not a parameter type")
	}
}

func (c *Compiler) lookupFunction(name string) (*funcState, bool) {
	sym, ok := c.moduleScope.LookupLocal(name)
	if !ok {
		return nil, false
	}
	fn, ok := sym.Value.(*ir.Func)
	if !ok {
		return nil, false
	}
	st, ok := c.funcs[fn]
	return st, ok
}

// Function returns the declared function called name.
func (c *Compiler) Function(name string) (*ir.Func, bool) {
	st, ok := c.lookupFunction(name)
	if !ok {
		return nil, false
	}
	return st.fn, true
}

// AppendBlock appends a block labelled label to the declared function
// fnName. It never declares the function itself.
func (c *Compiler) AppendBlock(fnName, label string) (*ir.Block, error) {
	if c.disposed {
		return nil, ErrDisposed
	}
	st, ok := c.lookupFunction(fnName)
	if !ok {
		c.logger.Error("Cannot append block '%s': function '%s' has not been declared", label, fnName)
		c.diag.ErrorIn(fnName, label, "append block", ErrUndeclaredFunction.Error())
		return nil, fmt.Errorf("append block %q: %w: '%s'", label, ErrUndeclaredFunction, fnName)
	}
	if label != "" {
		if _, dup := st.blocks[label]; dup {
			c.logger.Error("Block '%s' already exists in function '%s'", label, fnName)
			c.diag.ErrorIn(fnName, label, "append block", ErrDuplicateBlock.Error())
			return nil, fmt.Errorf("append block: %w: '%s' in '%s'", ErrDuplicateBlock, label, fnName)
		}
		if st.scope.IsTaken(label) {
			c.logger.Error("Block label '%s' is already used by a value in function '%s'", label, fnName)
			c.diag.ErrorIn(fnName, label, "append block", "label is already used by a value")
			return nil, fmt.Errorf("append block: %w: '%s' names a value in '%s'", ErrDuplicateBlock, label, fnName)
		}
	}

	b := st.fn.NewBlock(label)
	if label != "" {
		st.blocks[label] = b
		st.scope.Reserve(label)
	}
	c.owners[b] = st
	c.logger.Debug("Appended block '%s' to function '%s'", label, fnName)
	return b, nil
}

// PositionAt moves the cursor to the end of b and returns the new
// insertion point.
func (c *Compiler) PositionAt(b *ir.Block) (InsertPoint, error) {
	if c.disposed {
		return InsertPoint{}, ErrDisposed
	}
	st, ok := c.owners[b]
	if b == nil || !ok {
		return InsertPoint{}, fmt.Errorf("position at block: %w", ErrForeignBlock)
	}
	c.cursor = InsertPoint{Func: st.fn, Block: b}
	c.logger.Debug("Positioned at %s", c.cursor)
	return c.cursor, nil
}
