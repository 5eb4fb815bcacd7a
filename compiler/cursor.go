package compiler

import (
	"fmt"

	"github.com/llir/llvm/ir"
)

// InsertPoint is where the next instruction will be appended: the end of
// Block, inside Func. The zero value is unpositioned.
type InsertPoint struct {
	Func  *ir.Func
	Block *ir.Block
}

// IsSet reports whether the insertion point names a block.
func (p InsertPoint) IsSet() bool {
	return p.Block != nil
}

// Terminated reports whether the block already ends in a terminator.
func (p InsertPoint) Terminated() bool {
	return p.Block != nil && p.Block.Term != nil
}

func (p InsertPoint) String() string {
	if !p.IsSet() {
		return "<unpositioned>"
	}
	return fmt.Sprintf("@%s:%%%s", p.Func.Name(), p.Block.Name())
}
