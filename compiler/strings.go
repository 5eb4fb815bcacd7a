package compiler

import (
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
)

// MaterializeConstantString stores text plus a terminating NUL in a new
// anonymous private global and returns an i8* to its first byte, usable
// directly as a call argument.
func (c *Compiler) MaterializeConstantString(text string) (constant.Constant, error) {
	if c.disposed {
		return nil, ErrDisposed
	}
	data := constant.NewCharArrayFromString(text + "\x00")
	g := c.module.NewGlobalDef("", data)
	g.Linkage = enum.LinkagePrivate
	g.UnnamedAddr = enum.UnnamedAddrUnnamedAddr
	g.Immutable = true
	c.moduleScope.Define("", g)

	zero := c.ctx.ConstInt(types.I32, 0)
	ptr := constant.NewGetElementPtr(data.Typ, g, zero, zero)
	ptr.InBounds = true

	c.logger.Debug("Materialized %d-byte string constant %q", len(text)+1, text)
	return ptr, nil
}
