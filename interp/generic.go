package interp

import (
	"fmt"
	"math/big"
)

type valueKind uint8

const (
	kindVoid valueKind = iota
	kindInt
	kindPointer
)

// GenericValue is the boxed representation used to pass arguments into and
// results out of the interpreter. It holds either an integer of a fixed bit
// width or a pointer.
type GenericValue struct {
	kind valueKind
	bits uint64
	val  uint64
	ptr  Pointer
}

// Void is the result of a function returning void.
var Void = GenericValue{}

// IntValue boxes v truncated to the given bit width.
func IntValue(bits uint64, v int64) GenericValue {
	return GenericValue{kind: kindInt, bits: bits, val: mask(uint64(v), bits)}
}

// UintValue boxes v truncated to the given bit width.
func UintValue(bits uint64, v uint64) GenericValue {
	return GenericValue{kind: kindInt, bits: bits, val: mask(v, bits)}
}

// PointerValue boxes a pointer.
func PointerValue(p Pointer) GenericValue {
	return GenericValue{kind: kindPointer, bits: pointerBits, ptr: p}
}

// Int returns the integer held by g. With signed set the value is sign
// extended from its bit width, otherwise zero extended.
func (g GenericValue) Int(signed bool) int64 {
	if signed {
		return signExtend(g.val, g.bits)
	}
	return int64(g.val)
}

// Uint returns the zero-extended integer held by g.
func (g GenericValue) Uint() uint64 {
	return g.val
}

// Bits returns the integer width of g, or the pointer width for pointers.
func (g GenericValue) Bits() uint64 {
	return g.bits
}

// Pointer returns the pointer held by g.
func (g GenericValue) Pointer() Pointer {
	return g.ptr
}

func (g GenericValue) IsPointer() bool { return g.kind == kindPointer }
func (g GenericValue) IsInt() bool     { return g.kind == kindInt }
func (g GenericValue) IsVoid() bool    { return g.kind == kindVoid }

func (g GenericValue) String() string {
	switch g.kind {
	case kindInt:
		return fmt.Sprintf("i%d %d", g.bits, g.Int(true))
	case kindPointer:
		return "ptr " + g.ptr.String()
	}
	return "void"
}

func mask(v, bits uint64) uint64 {
	if bits == 0 || bits >= 64 {
		return v
	}
	return v & (1<<bits - 1)
}

func signExtend(v, bits uint64) int64 {
	if bits == 0 || bits >= 64 {
		return int64(v)
	}
	shift := 64 - bits
	return int64(v<<shift) >> shift
}

// bigToUint64 reinterprets x as two's complement in 64 bits.
func bigToUint64(x *big.Int) uint64 {
	if x.IsInt64() {
		return uint64(x.Int64())
	}
	if x.IsUint64() {
		return x.Uint64()
	}
	// Wider than 64 bits: keep the low word.
	low := new(big.Int).And(x, new(big.Int).SetUint64(^uint64(0)))
	return low.Uint64()
}
