// Package compiler builds LLVM IR modules in memory through a small,
// order-checked construction API and hands the result to a text emitter, a
// native object emitter or the interpreter.
package compiler

import (
	"fmt"
	"sync"

	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"
)

// Kind names a scalar type the registry hands out.
type Kind int

const (
	KindVoid Kind = iota
	KindInt1
	KindInt8
	KindInt16
	KindInt32
	KindInt64
	KindBytePtr
	KindInt32Ptr
)

func (k Kind) String() string {
	switch k {
	case KindVoid:
		return "void"
	case KindInt1:
		return "i1"
	case KindInt8:
		return "i8"
	case KindInt16:
		return "i16"
	case KindInt32:
		return "i32"
	case KindInt64:
		return "i64"
	case KindBytePtr:
		return "i8*"
	case KindInt32Ptr:
		return "i32*"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Context owns type and constant uniquing. It is shared by every Compiler
// built on it and is never disposed by one.
type Context struct {
	mu         sync.Mutex
	kinds      map[Kind]types.Type
	namedTypes map[string]types.Type
	ints       map[intKey]*constant.Int
}

type intKey struct {
	typ *types.IntType
	val int64
}

var (
	globalOnce sync.Once
	globalCtx  *Context
)

// GlobalContext returns the process-wide context, creating it on first use.
func GlobalContext() *Context {
	globalOnce.Do(func() {
		globalCtx = NewContext()
	})
	return globalCtx
}

// NewContext creates an independent context.
func NewContext() *Context {
	ctx := &Context{
		kinds:      make(map[Kind]types.Type),
		namedTypes: make(map[string]types.Type),
		ints:       make(map[intKey]*constant.Int),
	}
	ctx.registerBuiltinTypes()
	return ctx
}

func (c *Context) registerBuiltinTypes() {
	bytePtr := types.NewPointer(types.I8)
	int32Ptr := types.NewPointer(types.I32)

	c.kinds[KindVoid] = types.Void
	c.kinds[KindInt1] = types.I1
	c.kinds[KindInt8] = types.I8
	c.kinds[KindInt16] = types.I16
	c.kinds[KindInt32] = types.I32
	c.kinds[KindInt64] = types.I64
	c.kinds[KindBytePtr] = bytePtr
	c.kinds[KindInt32Ptr] = int32Ptr

	// IR spellings
	c.namedTypes["void"] = types.Void
	c.namedTypes["i1"] = types.I1
	c.namedTypes["i8"] = types.I8
	c.namedTypes["i16"] = types.I16
	c.namedTypes["i32"] = types.I32
	c.namedTypes["i64"] = types.I64
	c.namedTypes["i8*"] = bytePtr
	c.namedTypes["i32*"] = int32Ptr

	// Go-style spellings. IR integers carry no sign.
	c.namedTypes["bool"] = types.I1
	c.namedTypes["int8"] = types.I8
	c.namedTypes["int16"] = types.I16
	c.namedTypes["int32"] = types.I32
	c.namedTypes["int64"] = types.I64
	c.namedTypes["int"] = types.I64
	c.namedTypes["uint8"] = types.I8
	c.namedTypes["uint16"] = types.I16
	c.namedTypes["uint32"] = types.I32
	c.namedTypes["uint64"] = types.I64
	c.namedTypes["uint"] = types.I64
	c.namedTypes["byte"] = types.I8
	c.namedTypes["rune"] = types.I32
	c.namedTypes["string"] = bytePtr
}

// Type returns the registered type for kind. An unknown kind panics.
func (c *Context) Type(kind Kind) types.Type {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.kinds[kind]
	if !ok {
		panic(fmt.Sprintf("compiler: no type registered for %s", kind))
	}
	return t
}

// GetType resolves a type name such as "i32", "int32" or "i8*".
func (c *Context) GetType(name string) (types.Type, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.namedTypes[name]
	return t, ok
}

// Registered reports whether t is a handle this context handed out.
func (c *Context) Registered(t types.Type) bool {
	if t == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range c.kinds {
		if r == t {
			return true
		}
	}
	return false
}

// ConstInt returns the uniqued constant of type t with value v. The value
// is wrapped to the width of t first.
func (c *Context) ConstInt(t *types.IntType, v int64) *constant.Int {
	v = wrapInt(v, t.BitSize)
	c.mu.Lock()
	defer c.mu.Unlock()
	key := intKey{typ: t, val: v}
	if k, ok := c.ints[key]; ok {
		return k
	}
	k := constant.NewInt(t, v)
	c.ints[key] = k
	return k
}

func wrapInt(v int64, bits uint64) int64 {
	switch {
	case bits == 1:
		return v & 1
	case bits >= 64:
		return v
	}
	shift := 64 - bits
	return v << shift >> shift
}
