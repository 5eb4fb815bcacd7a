package compiler

import (
	"fmt"

	"github.com/arc-language/core-builder/builder"
	bir "github.com/arc-language/core-builder/ir"
	btypes "github.com/arc-language/core-builder/types"
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
)

// lowering rebuilds a verified module with the native code generator's
// builder. Declarations are lowered first; defined functions follow in
// module order, so a call must not precede its callee's definition.
type lowering struct {
	b       *builder.Builder
	funcs   map[*ir.Func]*bir.Function
	globals map[*ir.Global]bir.Value
	blocks  map[*ir.Block]*bir.BasicBlock
	values  map[value.Value]bir.Value
	phis    []func() error
}

func lowerModule(m *ir.Module, name string) (*bir.Module, error) {
	l := &lowering{
		b:       builder.New(),
		funcs:   make(map[*ir.Func]*bir.Function),
		globals: make(map[*ir.Global]bir.Value),
		blocks:  make(map[*ir.Block]*bir.BasicBlock),
		values:  make(map[value.Value]bir.Value),
	}
	mod := l.b.CreateModule(name)

	for i, g := range m.Globals {
		if err := l.lowerGlobal(i, g); err != nil {
			return nil, err
		}
	}
	for _, fn := range m.Funcs {
		if len(fn.Blocks) == 0 {
			if _, err := l.declare(fn); err != nil {
				return nil, err
			}
		}
	}
	for _, fn := range m.Funcs {
		if len(fn.Blocks) > 0 {
			if err := l.define(fn); err != nil {
				return nil, err
			}
		}
	}
	for _, fix := range l.phis {
		if err := fix(); err != nil {
			return nil, err
		}
	}
	return mod, nil
}

func lowerIntType(t *types.IntType) (*btypes.IntType, error) {
	switch t.BitSize {
	case 1:
		return btypes.I1, nil
	case 8:
		return btypes.I8, nil
	case 16:
		return btypes.I16, nil
	case 32:
		return btypes.I32, nil
	case 64:
		return btypes.I64, nil
	}
	return nil, fmt.Errorf("%w: type %s", ErrUnsupported, t)
}

func lowerType(t types.Type) (btypes.Type, error) {
	switch t := t.(type) {
	case *types.VoidType:
		return btypes.Void, nil
	case *types.IntType:
		return lowerIntType(t)
	case *types.PointerType:
		elem, err := lowerType(t.ElemType)
		if err != nil {
			return nil, err
		}
		return btypes.NewPointer(elem), nil
	case *types.ArrayType:
		elem, err := lowerType(t.ElemType)
		if err != nil {
			return nil, err
		}
		return btypes.NewArray(elem, int64(t.Len)), nil
	}
	return nil, fmt.Errorf("%w: type %s", ErrUnsupported, t)
}

func (l *lowering) lowerGlobal(i int, g *ir.Global) error {
	data, ok := g.Init.(*constant.CharArray)
	if !ok || !g.Immutable {
		return fmt.Errorf("%w: global %s", ErrUnsupported, g.Ident())
	}
	elements := make([]bir.Constant, len(data.X))
	for j, ch := range data.X {
		elements[j] = l.b.ConstInt(btypes.I8, int64(ch))
	}
	arrType := btypes.NewArray(btypes.I8, int64(len(data.X)))
	arr := &bir.ConstantArray{
		BaseValue: bir.BaseValue{ValType: arrType},
		Elements:  elements,
	}
	l.globals[g] = l.b.CreateGlobalConstant(fmt.Sprintf(".str.%d", i), arr)
	return nil
}

func (l *lowering) declare(fn *ir.Func) (*bir.Function, error) {
	ret, err := lowerType(fn.Sig.RetType)
	if err != nil {
		return nil, fmt.Errorf("function %s: %w", fn.Ident(), err)
	}
	params := make([]btypes.Type, len(fn.Sig.Params))
	for i, p := range fn.Sig.Params {
		if params[i], err = lowerType(p); err != nil {
			return nil, fmt.Errorf("function %s: %w", fn.Ident(), err)
		}
	}
	f := l.b.CreateFunction(fn.Name(), ret, params, fn.Sig.Variadic)
	for i, p := range fn.Params {
		if p.LocalName != "" {
			f.Arguments[i].SetName(p.LocalName)
		}
	}
	l.funcs[fn] = f
	return f, nil
}

func (l *lowering) define(fn *ir.Func) error {
	f, err := l.declare(fn)
	if err != nil {
		return err
	}
	for i, p := range fn.Params {
		l.values[p] = f.Arguments[i]
	}
	for _, b := range fn.Blocks {
		l.blocks[b] = l.b.CreateBlock(blockLabel(b))
	}
	for _, b := range fn.Blocks {
		l.b.SetInsertPoint(l.blocks[b])
		for _, inst := range b.Insts {
			if err := l.lowerInst(inst); err != nil {
				return fmt.Errorf("function %s, block %s: %w", fn.Ident(), blockLabel(b), err)
			}
		}
		if err := l.lowerTerm(b.Term); err != nil {
			return fmt.Errorf("function %s, block %s: %w", fn.Ident(), blockLabel(b), err)
		}
	}
	return nil
}

func (l *lowering) operand(v value.Value) (bir.Value, error) {
	switch v := v.(type) {
	case *constant.Int:
		t, err := lowerIntType(v.Typ)
		if err != nil {
			return nil, err
		}
		return l.b.ConstInt(t, v.X.Int64()), nil
	case *ir.Global:
		if g, ok := l.globals[v]; ok {
			return g, nil
		}
	case *constant.ExprGetElementPtr:
		base, err := l.operand(v.Src)
		if err != nil {
			return nil, err
		}
		indices, err := l.operands(constantValues(v.Indices))
		if err != nil {
			return nil, err
		}
		elem, err := lowerType(v.ElemType)
		if err != nil {
			return nil, err
		}
		if v.InBounds {
			return l.b.CreateInBoundsGEP(elem, base, indices, ""), nil
		}
		return l.b.CreateGEP(elem, base, indices, ""), nil
	}
	if lv, ok := l.values[v]; ok {
		return lv, nil
	}
	return nil, fmt.Errorf("%w: operand %s", ErrUnsupported, v.Ident())
}

func (l *lowering) operands(vs []value.Value) ([]bir.Value, error) {
	out := make([]bir.Value, len(vs))
	for i, v := range vs {
		lv, err := l.operand(v)
		if err != nil {
			return nil, err
		}
		out[i] = lv
	}
	return out, nil
}

func constantValues(cs []constant.Constant) []value.Value {
	vs := make([]value.Value, len(cs))
	for i, c := range cs {
		vs[i] = c
	}
	return vs
}

type binaryBuilder func(x, y bir.Value, name string) bir.Value

func (l *lowering) binary(dst *ir.LocalIdent, key value.Value, x, y value.Value, build binaryBuilder) error {
	lx, err := l.operand(x)
	if err != nil {
		return err
	}
	ly, err := l.operand(y)
	if err != nil {
		return err
	}
	l.values[key] = build(lx, ly, dst.LocalName)
	return nil
}

func (l *lowering) lowerInst(inst ir.Instruction) error {
	b := l.b
	switch inst := inst.(type) {
	case *ir.InstAlloca:
		if inst.NElems != nil {
			return fmt.Errorf("%w: counted alloca", ErrUnsupported)
		}
		t, err := lowerType(inst.ElemType)
		if err != nil {
			return err
		}
		l.values[inst] = b.CreateAlloca(t, inst.LocalName)
	case *ir.InstStore:
		src, err := l.operand(inst.Src)
		if err != nil {
			return err
		}
		dst, err := l.operand(inst.Dst)
		if err != nil {
			return err
		}
		b.CreateStore(src, dst)
	case *ir.InstLoad:
		t, err := lowerType(inst.ElemType)
		if err != nil {
			return err
		}
		src, err := l.operand(inst.Src)
		if err != nil {
			return err
		}
		l.values[inst] = b.CreateLoad(t, src, inst.LocalName)
	case *ir.InstGetElementPtr:
		elem, err := lowerType(inst.ElemType)
		if err != nil {
			return err
		}
		base, err := l.operand(inst.Src)
		if err != nil {
			return err
		}
		indices, err := l.operands(inst.Indices)
		if err != nil {
			return err
		}
		if inst.InBounds {
			l.values[inst] = b.CreateInBoundsGEP(elem, base, indices, inst.LocalName)
		} else {
			l.values[inst] = b.CreateGEP(elem, base, indices, inst.LocalName)
		}
	case *ir.InstAdd:
		return l.binary(&inst.LocalIdent, inst, inst.X, inst.Y, func(x, y bir.Value, n string) bir.Value { return b.CreateAdd(x, y, n) })
	case *ir.InstSub:
		return l.binary(&inst.LocalIdent, inst, inst.X, inst.Y, func(x, y bir.Value, n string) bir.Value { return b.CreateSub(x, y, n) })
	case *ir.InstMul:
		return l.binary(&inst.LocalIdent, inst, inst.X, inst.Y, func(x, y bir.Value, n string) bir.Value { return b.CreateMul(x, y, n) })
	case *ir.InstSDiv:
		return l.binary(&inst.LocalIdent, inst, inst.X, inst.Y, func(x, y bir.Value, n string) bir.Value { return b.CreateSDiv(x, y, n) })
	case *ir.InstSRem:
		return l.binary(&inst.LocalIdent, inst, inst.X, inst.Y, func(x, y bir.Value, n string) bir.Value { return b.CreateSRem(x, y, n) })
	case *ir.InstAnd:
		return l.binary(&inst.LocalIdent, inst, inst.X, inst.Y, func(x, y bir.Value, n string) bir.Value { return b.CreateAnd(x, y, n) })
	case *ir.InstOr:
		return l.binary(&inst.LocalIdent, inst, inst.X, inst.Y, func(x, y bir.Value, n string) bir.Value { return b.CreateOr(x, y, n) })
	case *ir.InstXor:
		return l.binary(&inst.LocalIdent, inst, inst.X, inst.Y, func(x, y bir.Value, n string) bir.Value { return b.CreateXor(x, y, n) })
	case *ir.InstShl:
		return l.binary(&inst.LocalIdent, inst, inst.X, inst.Y, func(x, y bir.Value, n string) bir.Value { return b.CreateShl(x, y, n) })
	case *ir.InstLShr:
		return l.binary(&inst.LocalIdent, inst, inst.X, inst.Y, func(x, y bir.Value, n string) bir.Value { return b.CreateLShr(x, y, n) })
	case *ir.InstICmp:
		var build binaryBuilder
		switch inst.Pred {
		case enum.IPredEQ:
			build = func(x, y bir.Value, n string) bir.Value { return b.CreateICmpEQ(x, y, n) }
		case enum.IPredNE:
			build = func(x, y bir.Value, n string) bir.Value { return b.CreateICmpNE(x, y, n) }
		case enum.IPredSLT:
			build = func(x, y bir.Value, n string) bir.Value { return b.CreateICmpSLT(x, y, n) }
		case enum.IPredSLE:
			build = func(x, y bir.Value, n string) bir.Value { return b.CreateICmpSLE(x, y, n) }
		case enum.IPredSGT:
			build = func(x, y bir.Value, n string) bir.Value { return b.CreateICmpSGT(x, y, n) }
		case enum.IPredSGE:
			build = func(x, y bir.Value, n string) bir.Value { return b.CreateICmpSGE(x, y, n) }
		default:
			return fmt.Errorf("%w: icmp %s", ErrUnsupported, inst.Pred)
		}
		return l.binary(&inst.LocalIdent, inst, inst.X, inst.Y, build)
	case *ir.InstZExt:
		return l.cast(&inst.LocalIdent, inst, inst.From, inst.To, func(v bir.Value, t btypes.Type, n string) bir.Value { return b.CreateZExt(v, t, n) })
	case *ir.InstSExt:
		return l.cast(&inst.LocalIdent, inst, inst.From, inst.To, func(v bir.Value, t btypes.Type, n string) bir.Value { return b.CreateSExt(v, t, n) })
	case *ir.InstTrunc:
		return l.cast(&inst.LocalIdent, inst, inst.From, inst.To, func(v bir.Value, t btypes.Type, n string) bir.Value { return b.CreateTrunc(v, t, n) })
	case *ir.InstSelect:
		vs, err := l.operands([]value.Value{inst.Cond, inst.ValueTrue, inst.ValueFalse})
		if err != nil {
			return err
		}
		l.values[inst] = b.CreateSelect(vs[0], vs[1], vs[2], inst.LocalName)
	case *ir.InstPhi:
		t, err := lowerType(inst.Type())
		if err != nil {
			return err
		}
		phi := b.CreatePhi(t, inst.LocalName)
		l.values[inst] = phi
		l.phis = append(l.phis, func() error {
			for _, inc := range inst.Incs {
				pred, err := asBlock(inc.Pred)
				if err != nil {
					return err
				}
				v, err := l.operand(inc.X)
				if err != nil {
					return err
				}
				phi.AddIncoming(v, l.blocks[pred])
			}
			return nil
		})
	case *ir.InstCall:
		callee, ok := inst.Callee.(*ir.Func)
		if !ok {
			return fmt.Errorf("%w: indirect call", ErrUnsupported)
		}
		f, ok := l.funcs[callee]
		if !ok {
			return fmt.Errorf("%w: call to %s before its definition", ErrUnsupported, callee.Ident())
		}
		args, err := l.operands(inst.Args)
		if err != nil {
			return err
		}
		call := b.CreateCall(f, args, inst.LocalName)
		if _, void := callee.Sig.RetType.(*types.VoidType); !void {
			l.values[inst] = call
		}
	default:
		return fmt.Errorf("%w: instruction %T", ErrUnsupported, inst)
	}
	return nil
}

func (l *lowering) cast(dst *ir.LocalIdent, key value.Value, from value.Value, to types.Type, build func(v bir.Value, t btypes.Type, name string) bir.Value) error {
	v, err := l.operand(from)
	if err != nil {
		return err
	}
	t, err := lowerType(to)
	if err != nil {
		return err
	}
	l.values[key] = build(v, t, dst.LocalName)
	return nil
}

func (l *lowering) lowerTerm(term ir.Terminator) error {
	switch term := term.(type) {
	case *ir.TermRet:
		if term.X == nil {
			l.b.CreateRetVoid()
			return nil
		}
		v, err := l.operand(term.X)
		if err != nil {
			return err
		}
		l.b.CreateRet(v)
	case *ir.TermBr:
		target, err := asBlock(term.Target)
		if err != nil {
			return err
		}
		l.b.CreateBr(l.blocks[target])
	case *ir.TermCondBr:
		cond, err := l.operand(term.Cond)
		if err != nil {
			return err
		}
		t, err := asBlock(term.TargetTrue)
		if err != nil {
			return err
		}
		f, err := asBlock(term.TargetFalse)
		if err != nil {
			return err
		}
		l.b.CreateCondBr(cond, l.blocks[t], l.blocks[f])
	default:
		return fmt.Errorf("%w: terminator %T", ErrUnsupported, term)
	}
	return nil
}

func asBlock(v interface{}) (*ir.Block, error) {
	if b, ok := v.(*ir.Block); ok {
		return b, nil
	}
	return nil, fmt.Errorf("branch target %v is not a basic block", v)
}
