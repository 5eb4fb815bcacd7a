package interp

import (
	"encoding/binary"
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/types"
)

const (
	pointerBits  = 64
	pointerBytes = pointerBits / 8

	// maxIntBits is the widest integer a GenericValue holds.
	maxIntBits = 64
	// maxObjectSize bounds a single stack or global allocation.
	maxObjectSize = 1 << 30
)

// object is one allocation: a stack slot or a global. Pointers stored into
// it live in ptrs keyed by offset; the bytes underneath are zeroed.
type object struct {
	name string
	data []byte
	ptrs map[int64]Pointer
}

func newObject(name string, size int64) *object {
	return &object{
		name: name,
		data: make([]byte, size),
		ptrs: make(map[int64]Pointer),
	}
}

// Pointer addresses a byte offset inside an allocation, or a function.
// The zero Pointer is null.
type Pointer struct {
	obj *object
	off int64
	fn  *ir.Func
}

func (p Pointer) IsNull() bool {
	return p.obj == nil && p.fn == nil
}

// Func returns the function p points to, if any.
func (p Pointer) Func() *ir.Func {
	return p.fn
}

func (p Pointer) String() string {
	switch {
	case p.fn != nil:
		return "@" + p.fn.Name()
	case p.obj == nil:
		return "null"
	case p.off == 0:
		return "&" + p.obj.name
	}
	return fmt.Sprintf("&%s+%d", p.obj.name, p.off)
}

func (p Pointer) add(delta int64) Pointer {
	p.off += delta
	return p
}

func (p Pointer) check(n int64) error {
	if p.obj == nil {
		return fmt.Errorf("null pointer dereference")
	}
	if p.off < 0 || p.off+n > int64(len(p.obj.data)) {
		return fmt.Errorf("access of %d bytes at %s is out of bounds (object size %d)", n, p, len(p.obj.data))
	}
	return nil
}

// intBytes returns the storage size of an integer of the given width.
func intBytes(bits uint64) (int64, error) {
	if bits == 0 || bits > maxIntBits {
		return 0, fmt.Errorf("%w: i%d", ErrIntWidth, bits)
	}
	return int64((bits + 7) / 8), nil
}

// sizeOf returns the allocation size of t. Aggregates are packed.
func sizeOf(t types.Type) (int64, error) {
	switch t := t.(type) {
	case *types.IntType:
		return intBytes(t.BitSize)
	case *types.PointerType:
		return pointerBytes, nil
	case *types.ArrayType:
		elem, err := sizeOf(t.ElemType)
		if err != nil {
			return 0, err
		}
		if t.Len > 0 && elem > maxObjectSize/int64(t.Len) {
			return 0, fmt.Errorf("%w: %s", ErrAllocationSize, t)
		}
		return elem * int64(t.Len), nil
	case *types.StructType:
		var total int64
		for _, field := range t.Fields {
			n, err := sizeOf(field)
			if err != nil {
				return 0, err
			}
			total += n
		}
		return total, nil
	}
	return 0, fmt.Errorf("type %s has no size", t)
}

func load(p Pointer, t types.Type) (GenericValue, error) {
	switch t := t.(type) {
	case *types.IntType:
		n, err := intBytes(t.BitSize)
		if err != nil {
			return Void, err
		}
		if err := p.check(n); err != nil {
			return Void, err
		}
		var buf [8]byte
		copy(buf[:], p.obj.data[p.off:p.off+n])
		return UintValue(t.BitSize, binary.LittleEndian.Uint64(buf[:])), nil
	case *types.PointerType:
		if err := p.check(pointerBytes); err != nil {
			return Void, err
		}
		return PointerValue(p.obj.ptrs[p.off]), nil
	}
	return Void, fmt.Errorf("cannot load value of type %s", t)
}

func store(p Pointer, v GenericValue, t types.Type) error {
	switch t := t.(type) {
	case *types.IntType:
		n, err := intBytes(t.BitSize)
		if err != nil {
			return err
		}
		if err := p.check(n); err != nil {
			return err
		}
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], mask(v.val, t.BitSize))
		copy(p.obj.data[p.off:p.off+n], buf[:n])
		delete(p.obj.ptrs, p.off)
		return nil
	case *types.PointerType:
		if err := p.check(pointerBytes); err != nil {
			return err
		}
		for i := int64(0); i < pointerBytes; i++ {
			p.obj.data[p.off+i] = 0
		}
		if v.ptr.IsNull() {
			delete(p.obj.ptrs, p.off)
		} else {
			p.obj.ptrs[p.off] = v.ptr
		}
		return nil
	}
	return fmt.Errorf("cannot store value of type %s", t)
}

// readCString reads bytes from p up to a NUL or the end of the object.
func readCString(p Pointer) (string, error) {
	if err := p.check(0); err != nil {
		return "", err
	}
	data := p.obj.data[p.off:]
	for i, b := range data {
		if b == 0 {
			return string(data[:i]), nil
		}
	}
	return string(data), nil
}

// elementPtr applies getelementptr indices to base.
func elementPtr(elemType types.Type, base Pointer, indices []GenericValue) (Pointer, error) {
	if len(indices) == 0 {
		return base, nil
	}
	size, err := sizeOf(elemType)
	if err != nil {
		return Pointer{}, err
	}
	p := base.add(indices[0].Int(true) * size)
	t := elemType
	for _, idx := range indices[1:] {
		switch tt := t.(type) {
		case *types.ArrayType:
			es, err := sizeOf(tt.ElemType)
			if err != nil {
				return Pointer{}, err
			}
			p = p.add(idx.Int(true) * es)
			t = tt.ElemType
		case *types.StructType:
			field := idx.Int(false)
			if field >= int64(len(tt.Fields)) {
				return Pointer{}, fmt.Errorf("struct field index %d out of range", field)
			}
			for _, f := range tt.Fields[:field] {
				n, err := sizeOf(f)
				if err != nil {
					return Pointer{}, err
				}
				p = p.add(n)
			}
			t = tt.Fields[field]
		default:
			return Pointer{}, fmt.Errorf("cannot index into type %s", t)
		}
	}
	return p, nil
}
