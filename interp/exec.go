package interp

import (
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
)

// frame is the activation record of one interpreted call.
type frame struct {
	fn     *ir.Func
	values map[value.Value]GenericValue
	block  *ir.Block
	prev   *ir.Block
}

func (e *Engine) call(fn *ir.Func, args []GenericValue, depth int) (GenericValue, error) {
	if depth >= e.maxDepth {
		return Void, &RuntimeError{Function: fn.Name(), Err: ErrStackOverflow}
	}
	if len(fn.Blocks) == 0 {
		host, ok := lookupHost(fn.Name())
		if !ok {
			return Void, &RuntimeError{Function: fn.Name(), Err: fmt.Errorf("unresolved external function")}
		}
		res, err := host(e, args)
		if err != nil {
			return Void, &RuntimeError{Function: fn.Name(), Err: err}
		}
		return res, nil
	}

	fr := &frame{
		fn:     fn,
		values: make(map[value.Value]GenericValue, len(fn.Params)),
		block:  fn.Blocks[0],
	}
	for i, param := range fn.Params {
		fr.values[param] = args[i]
	}

	for {
		if err := e.runPhis(fr); err != nil {
			return Void, err
		}
		for _, inst := range fr.block.Insts {
			if _, ok := inst.(*ir.InstPhi); ok {
				continue
			}
			if err := e.exec(fr, inst, depth); err != nil {
				return Void, fr.fault(inst, err)
			}
		}

		next, ret, done, err := e.terminate(fr)
		if err != nil {
			return Void, fr.fault(fr.block.Term, err)
		}
		if done {
			return ret, nil
		}
		fr.prev, fr.block = fr.block, next
	}
}

func (fr *frame) fault(inst interface{}, err error) error {
	if _, ok := err.(*RuntimeError); ok {
		return err
	}
	desc := ""
	if s, ok := inst.(fmt.Stringer); ok {
		desc = s.String()
	}
	if ll, ok := inst.(interface{ LLString() string }); ok {
		desc = ll.LLString()
	}
	return &RuntimeError{
		Function: fr.fn.Name(),
		Block:    blockName(fr.block),
		Inst:     desc,
		Err:      err,
	}
}

// runPhis evaluates the leading phi instructions of the current block
// against the predecessor, all reading their inputs before any is written.
func (e *Engine) runPhis(fr *frame) error {
	pending := make(map[value.Value]GenericValue)
	for _, inst := range fr.block.Insts {
		phi, ok := inst.(*ir.InstPhi)
		if !ok {
			break
		}
		found := false
		for _, inc := range phi.Incs {
			pred, err := asBlock(inc.Pred)
			if err != nil {
				return fr.fault(phi, err)
			}
			if pred != fr.prev {
				continue
			}
			v, err := e.eval(fr, inc.X)
			if err != nil {
				return fr.fault(phi, err)
			}
			pending[phi] = v
			found = true
			break
		}
		if !found {
			return fr.fault(phi, fmt.Errorf("no incoming value for predecessor"))
		}
	}
	for k, v := range pending {
		fr.values[k] = v
	}
	return nil
}

func asBlock(v interface{}) (*ir.Block, error) {
	if b, ok := v.(*ir.Block); ok {
		return b, nil
	}
	return nil, fmt.Errorf("branch target %v is not a basic block", v)
}

func (e *Engine) terminate(fr *frame) (next *ir.Block, ret GenericValue, done bool, err error) {
	switch term := fr.block.Term.(type) {
	case *ir.TermRet:
		if term.X == nil {
			return nil, Void, true, nil
		}
		v, err := e.eval(fr, term.X)
		return nil, v, true, err
	case *ir.TermBr:
		next, err := asBlock(term.Target)
		return next, Void, false, err
	case *ir.TermCondBr:
		cond, err := e.eval(fr, term.Cond)
		if err != nil {
			return nil, Void, false, err
		}
		if cond.Uint() != 0 {
			next, err = asBlock(term.TargetTrue)
		} else {
			next, err = asBlock(term.TargetFalse)
		}
		return next, Void, false, err
	case *ir.TermUnreachable:
		return nil, Void, false, ErrUnreachable
	case nil:
		return nil, Void, false, fmt.Errorf("block has no terminator")
	}
	return nil, Void, false, fmt.Errorf("unsupported terminator %T", fr.block.Term)
}

func (e *Engine) exec(fr *frame, inst ir.Instruction, depth int) error {
	switch inst := inst.(type) {
	case *ir.InstAlloca:
		size, err := sizeOf(inst.ElemType)
		if err != nil {
			return err
		}
		if inst.NElems != nil {
			n, err := e.eval(fr, inst.NElems)
			if err != nil {
				return err
			}
			count := n.Int(true)
			if count < 0 || (size > 0 && count > maxObjectSize/size) {
				return fmt.Errorf("%w: %d element(s) of %s", ErrAllocationSize, count, inst.ElemType)
			}
			size *= count
		}
		if size > maxObjectSize {
			return fmt.Errorf("%w: %d bytes", ErrAllocationSize, size)
		}
		obj := newObject(inst.Name(), size)
		fr.values[inst] = PointerValue(Pointer{obj: obj})
	case *ir.InstStore:
		v, err := e.eval(fr, inst.Src)
		if err != nil {
			return err
		}
		dst, err := e.eval(fr, inst.Dst)
		if err != nil {
			return err
		}
		return store(dst.Pointer(), v, inst.Src.Type())
	case *ir.InstLoad:
		src, err := e.eval(fr, inst.Src)
		if err != nil {
			return err
		}
		v, err := load(src.Pointer(), inst.ElemType)
		if err != nil {
			return err
		}
		fr.values[inst] = v
	case *ir.InstGetElementPtr:
		base, err := e.eval(fr, inst.Src)
		if err != nil {
			return err
		}
		indices, err := e.evalAll(fr, inst.Indices)
		if err != nil {
			return err
		}
		p, err := elementPtr(inst.ElemType, base.Pointer(), indices)
		if err != nil {
			return err
		}
		fr.values[inst] = PointerValue(p)
	case *ir.InstAdd:
		return e.binary(fr, inst, inst.X, inst.Y, opAdd)
	case *ir.InstSub:
		return e.binary(fr, inst, inst.X, inst.Y, opSub)
	case *ir.InstMul:
		return e.binary(fr, inst, inst.X, inst.Y, opMul)
	case *ir.InstSDiv:
		return e.binary(fr, inst, inst.X, inst.Y, opSDiv)
	case *ir.InstUDiv:
		return e.binary(fr, inst, inst.X, inst.Y, opUDiv)
	case *ir.InstSRem:
		return e.binary(fr, inst, inst.X, inst.Y, opSRem)
	case *ir.InstURem:
		return e.binary(fr, inst, inst.X, inst.Y, opURem)
	case *ir.InstAnd:
		return e.binary(fr, inst, inst.X, inst.Y, opAnd)
	case *ir.InstOr:
		return e.binary(fr, inst, inst.X, inst.Y, opOr)
	case *ir.InstXor:
		return e.binary(fr, inst, inst.X, inst.Y, opXor)
	case *ir.InstShl:
		return e.binary(fr, inst, inst.X, inst.Y, opShl)
	case *ir.InstLShr:
		return e.binary(fr, inst, inst.X, inst.Y, opLShr)
	case *ir.InstAShr:
		return e.binary(fr, inst, inst.X, inst.Y, opAShr)
	case *ir.InstICmp:
		x, err := e.eval(fr, inst.X)
		if err != nil {
			return err
		}
		y, err := e.eval(fr, inst.Y)
		if err != nil {
			return err
		}
		ok, err := compare(inst.Pred, x, y)
		if err != nil {
			return err
		}
		var bit int64
		if ok {
			bit = 1
		}
		fr.values[inst] = IntValue(1, bit)
	case *ir.InstZExt:
		v, err := e.eval(fr, inst.From)
		if err != nil {
			return err
		}
		fr.values[inst] = UintValue(intBits(inst.To), v.Uint())
	case *ir.InstSExt:
		v, err := e.eval(fr, inst.From)
		if err != nil {
			return err
		}
		fr.values[inst] = IntValue(intBits(inst.To), v.Int(true))
	case *ir.InstTrunc:
		v, err := e.eval(fr, inst.From)
		if err != nil {
			return err
		}
		fr.values[inst] = UintValue(intBits(inst.To), v.Uint())
	case *ir.InstBitCast:
		v, err := e.eval(fr, inst.From)
		if err != nil {
			return err
		}
		fr.values[inst] = v
	case *ir.InstSelect:
		cond, err := e.eval(fr, inst.Cond)
		if err != nil {
			return err
		}
		pick := inst.ValueFalse
		if cond.Uint()&1 == 1 {
			pick = inst.ValueTrue
		}
		v, err := e.eval(fr, pick)
		if err != nil {
			return err
		}
		fr.values[inst] = v
	case *ir.InstCall:
		return e.execCall(fr, inst, depth)
	default:
		return fmt.Errorf("unsupported instruction %T", inst)
	}
	return nil
}

func (e *Engine) execCall(fr *frame, inst *ir.InstCall, depth int) error {
	var callee *ir.Func
	switch c := inst.Callee.(type) {
	case *ir.Func:
		callee = c
	default:
		target, err := e.eval(fr, inst.Callee)
		if err != nil {
			return err
		}
		callee = target.Pointer().Func()
		if callee == nil {
			return fmt.Errorf("indirect call through non-function pointer %s", target)
		}
	}

	if err := checkCallArgs(callee.Sig, inst.Args); err != nil {
		return fmt.Errorf("call to '%s': %w", callee.Name(), err)
	}
	args, err := e.evalAll(fr, inst.Args)
	if err != nil {
		return err
	}
	res, err := e.call(callee, args, depth+1)
	if err != nil {
		return err
	}
	if _, isVoid := callee.Sig.RetType.(*types.VoidType); !isVoid {
		fr.values[inst] = res
	}
	return nil
}

// checkCallArgs verifies the fixed parameters of sig against the IR types of
// args. The variadic tail is the caller's responsibility.
func checkCallArgs(sig *types.FuncType, args []value.Value) error {
	if len(args) < len(sig.Params) || (!sig.Variadic && len(args) != len(sig.Params)) {
		return fmt.Errorf("%w: expected %d, got %d", ErrArgCount, len(sig.Params), len(args))
	}
	for i, param := range sig.Params {
		if !args[i].Type().Equal(param) {
			return fmt.Errorf("%w: argument %d has type %s, expected %s", ErrArgType, i, args[i].Type(), param)
		}
	}
	return nil
}

func (e *Engine) evalAll(fr *frame, vs []value.Value) ([]GenericValue, error) {
	out := make([]GenericValue, len(vs))
	for i, v := range vs {
		g, err := e.eval(fr, v)
		if err != nil {
			return nil, err
		}
		out[i] = g
	}
	return out, nil
}

func (e *Engine) eval(fr *frame, v value.Value) (GenericValue, error) {
	if g, ok := fr.values[v]; ok {
		return g, nil
	}
	if c, ok := v.(constant.Constant); ok {
		return e.evalConstant(c)
	}
	return Void, fmt.Errorf("use of %s before its definition", v.Ident())
}

func (e *Engine) evalConstant(c constant.Constant) (GenericValue, error) {
	switch c := c.(type) {
	case *constant.Int:
		return UintValue(c.Typ.BitSize, bigToUint64(c.X)), nil
	case *constant.Null:
		return PointerValue(Pointer{}), nil
	case *constant.Undef:
		if t, ok := c.Typ.(*types.IntType); ok {
			return IntValue(t.BitSize, 0), nil
		}
		return PointerValue(Pointer{}), nil
	case *constant.ZeroInitializer:
		if t, ok := c.Typ.(*types.IntType); ok {
			return IntValue(t.BitSize, 0), nil
		}
		return PointerValue(Pointer{}), nil
	case *ir.Global:
		obj, err := e.global(c)
		if err != nil {
			return Void, err
		}
		return PointerValue(Pointer{obj: obj}), nil
	case *ir.Func:
		return PointerValue(Pointer{fn: c}), nil
	case *constant.ExprGetElementPtr:
		base, err := e.evalConstant(c.Src)
		if err != nil {
			return Void, err
		}
		indices := make([]GenericValue, len(c.Indices))
		for i, idx := range c.Indices {
			g, err := e.evalConstant(idx)
			if err != nil {
				return Void, err
			}
			indices[i] = g
		}
		p, err := elementPtr(c.ElemType, base.Pointer(), indices)
		if err != nil {
			return Void, err
		}
		return PointerValue(p), nil
	case *constant.ExprBitCast:
		return e.evalConstant(c.From)
	case *constant.Index:
		return e.evalConstant(c.Constant)
	}
	return Void, fmt.Errorf("unsupported constant %s", c.Ident())
}

// global returns the memory of g, allocating and initialising it on first use.
func (e *Engine) global(g *ir.Global) (*object, error) {
	if obj, ok := e.globals[g]; ok {
		return obj, nil
	}
	size, err := sizeOf(g.ContentType)
	if err != nil {
		return nil, fmt.Errorf("global %s: %w", g.Ident(), err)
	}
	obj := newObject(g.Name(), size)
	e.globals[g] = obj
	if g.Init != nil {
		if err := e.initialize(Pointer{obj: obj}, g.Init); err != nil {
			return nil, fmt.Errorf("global %s: %w", g.Ident(), err)
		}
	}
	return obj, nil
}

func (e *Engine) initialize(p Pointer, c constant.Constant) error {
	switch c := c.(type) {
	case *constant.CharArray:
		if err := p.check(int64(len(c.X))); err != nil {
			return err
		}
		copy(p.obj.data[p.off:], c.X)
		return nil
	case *constant.Array:
		for _, elem := range c.Elems {
			if err := e.initialize(p, elem); err != nil {
				return err
			}
			n, err := sizeOf(elem.Type())
			if err != nil {
				return err
			}
			p = p.add(n)
		}
		return nil
	case *constant.Struct:
		for _, field := range c.Fields {
			if err := e.initialize(p, field); err != nil {
				return err
			}
			n, err := sizeOf(field.Type())
			if err != nil {
				return err
			}
			p = p.add(n)
		}
		return nil
	case *constant.ZeroInitializer:
		return nil
	}
	v, err := e.evalConstant(c)
	if err != nil {
		return err
	}
	return store(p, v, c.Type())
}

func intBits(t types.Type) uint64 {
	if it, ok := t.(*types.IntType); ok {
		return it.BitSize
	}
	return pointerBits
}

type binaryOp func(x, y GenericValue, bits uint64) (uint64, error)

func (e *Engine) binary(fr *frame, dst value.Value, xv, yv value.Value, op binaryOp) error {
	x, err := e.eval(fr, xv)
	if err != nil {
		return err
	}
	y, err := e.eval(fr, yv)
	if err != nil {
		return err
	}
	bits := intBits(xv.Type())
	r, err := op(x, y, bits)
	if err != nil {
		return err
	}
	fr.values[dst] = UintValue(bits, r)
	return nil
}

func opAdd(x, y GenericValue, _ uint64) (uint64, error) { return x.Uint() + y.Uint(), nil }
func opSub(x, y GenericValue, _ uint64) (uint64, error) { return x.Uint() - y.Uint(), nil }
func opMul(x, y GenericValue, _ uint64) (uint64, error) { return x.Uint() * y.Uint(), nil }
func opAnd(x, y GenericValue, _ uint64) (uint64, error) { return x.Uint() & y.Uint(), nil }
func opOr(x, y GenericValue, _ uint64) (uint64, error)  { return x.Uint() | y.Uint(), nil }
func opXor(x, y GenericValue, _ uint64) (uint64, error) { return x.Uint() ^ y.Uint(), nil }

func opSDiv(x, y GenericValue, bits uint64) (uint64, error) {
	if y.Uint() == 0 {
		return 0, ErrDivisionByZero
	}
	a, b := x.Int(true), y.Int(true)
	if b == -1 && a == signExtend(1<<(bits-1), bits) {
		return 0, fmt.Errorf("signed division overflow")
	}
	return uint64(a / b), nil
}

func opUDiv(x, y GenericValue, _ uint64) (uint64, error) {
	if y.Uint() == 0 {
		return 0, ErrDivisionByZero
	}
	return x.Uint() / y.Uint(), nil
}

func opSRem(x, y GenericValue, bits uint64) (uint64, error) {
	if y.Uint() == 0 {
		return 0, ErrDivisionByZero
	}
	a, b := x.Int(true), y.Int(true)
	if b == -1 {
		return 0, nil
	}
	return uint64(a % b), nil
}

func opURem(x, y GenericValue, _ uint64) (uint64, error) {
	if y.Uint() == 0 {
		return 0, ErrDivisionByZero
	}
	return x.Uint() % y.Uint(), nil
}

func opShl(x, y GenericValue, bits uint64) (uint64, error) {
	if y.Uint() >= bits {
		return 0, fmt.Errorf("shift amount %d out of range for i%d", y.Uint(), bits)
	}
	return x.Uint() << y.Uint(), nil
}

func opLShr(x, y GenericValue, bits uint64) (uint64, error) {
	if y.Uint() >= bits {
		return 0, fmt.Errorf("shift amount %d out of range for i%d", y.Uint(), bits)
	}
	return x.Uint() >> y.Uint(), nil
}

func opAShr(x, y GenericValue, bits uint64) (uint64, error) {
	if y.Uint() >= bits {
		return 0, fmt.Errorf("shift amount %d out of range for i%d", y.Uint(), bits)
	}
	return uint64(x.Int(true) >> y.Uint()), nil
}

func compare(pred enum.IPred, x, y GenericValue) (bool, error) {
	if x.IsPointer() || y.IsPointer() {
		switch pred {
		case enum.IPredEQ:
			return x.Pointer() == y.Pointer(), nil
		case enum.IPredNE:
			return x.Pointer() != y.Pointer(), nil
		}
		return false, fmt.Errorf("unsupported pointer comparison %s", pred)
	}
	switch pred {
	case enum.IPredEQ:
		return x.Uint() == y.Uint(), nil
	case enum.IPredNE:
		return x.Uint() != y.Uint(), nil
	case enum.IPredUGT:
		return x.Uint() > y.Uint(), nil
	case enum.IPredUGE:
		return x.Uint() >= y.Uint(), nil
	case enum.IPredULT:
		return x.Uint() < y.Uint(), nil
	case enum.IPredULE:
		return x.Uint() <= y.Uint(), nil
	case enum.IPredSGT:
		return x.Int(true) > y.Int(true), nil
	case enum.IPredSGE:
		return x.Int(true) >= y.Int(true), nil
	case enum.IPredSLT:
		return x.Int(true) < y.Int(true), nil
	case enum.IPredSLE:
		return x.Int(true) <= y.Int(true), nil
	}
	return false, fmt.Errorf("unsupported predicate %s", pred)
}
