package compiler

import (
	"fmt"
	"strings"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/value"
)

// Verify checks that every block ends in a terminator and that every
// operand is a constant, a parameter or a value defined earlier in the same
// function. Each violation is recorded in Diagnostics.
func (c *Compiler) Verify() error {
	var problems []string
	report := func(fn *ir.Func, b *ir.Block, format string, args ...interface{}) {
		msg := fmt.Sprintf(format, args...)
		c.diag.ErrorIn(fn.Name(), blockLabel(b), "verify", msg)
		problems = append(problems, fmt.Sprintf("@%s:%%%s: %s", fn.Name(), blockLabel(b), msg))
	}

	for _, fn := range c.module.Funcs {
		defined := make(map[value.Value]bool)
		for _, p := range fn.Params {
			defined[p] = true
		}
		local := make(map[value.Value]bool)
		for _, b := range fn.Blocks {
			for _, inst := range b.Insts {
				if v, ok := inst.(value.Value); ok {
					local[v] = true
				}
			}
		}

		check := func(b *ir.Block, op value.Value) {
			switch op.(type) {
			case ir.Instruction:
				if !local[op] {
					report(fn, b, "%s is defined in another function", op.Ident())
				} else if !defined[op] {
					report(fn, b, "%s is used before it is defined", op.Ident())
				}
			case *ir.Param:
				if !defined[op] {
					report(fn, b, "parameter %s belongs to another function", op.Ident())
				}
			}
		}

		for _, b := range fn.Blocks {
			for _, inst := range b.Insts {
				for _, op := range operands(inst) {
					check(b, op)
				}
				if v, ok := inst.(value.Value); ok {
					defined[v] = true
				}
			}
			switch term := b.Term.(type) {
			case nil:
				report(fn, b, "block has no terminator")
			case *ir.TermRet:
				if term.X != nil {
					check(b, term.X)
				}
			}
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidModule, strings.Join(problems, "; "))
	}
	return nil
}

// operands lists the value operands of the instructions the compiler builds.
func operands(inst ir.Instruction) []value.Value {
	switch inst := inst.(type) {
	case *ir.InstStore:
		return []value.Value{inst.Src, inst.Dst}
	case *ir.InstLoad:
		return []value.Value{inst.Src}
	case *ir.InstMul:
		return []value.Value{inst.X, inst.Y}
	case *ir.InstAdd:
		return []value.Value{inst.X, inst.Y}
	case *ir.InstSub:
		return []value.Value{inst.X, inst.Y}
	case *ir.InstCall:
		return append([]value.Value{inst.Callee}, inst.Args...)
	}
	return nil
}

func blockLabel(b *ir.Block) string {
	if name := b.Name(); name != "" {
		return name
	}
	return fmt.Sprintf("%d", b.LocalID)
}
