package interp

import (
	"fmt"
	"strings"
	"sync"
)

// HostFunc implements an external function the interpreted module declares
// but does not define. The int result of the C runtime routines is returned
// as an i32 GenericValue.
type HostFunc func(e *Engine, args []GenericValue) (GenericValue, error)

var (
	hostMu    sync.RWMutex
	hostFuncs = make(map[string]HostFunc)
	linked    bool
	linkOnce  sync.Once
)

// LinkInInterpreter registers the host runtime (printf, puts, putchar). It
// is safe to call more than once.
func LinkInInterpreter() error {
	linkOnce.Do(func() {
		hostMu.Lock()
		defer hostMu.Unlock()
		hostFuncs["printf"] = hostPrintf
		hostFuncs["puts"] = hostPuts
		hostFuncs["putchar"] = hostPutchar
		linked = true
	})
	return nil
}

func isLinked() bool {
	hostMu.RLock()
	defer hostMu.RUnlock()
	return linked
}

// RegisterHostFunction makes fn callable from interpreted code under name.
func RegisterHostFunction(name string, fn HostFunc) error {
	if name == "" || fn == nil {
		return fmt.Errorf("interpreter: invalid host function registration %q", name)
	}
	hostMu.Lock()
	defer hostMu.Unlock()
	if _, ok := hostFuncs[name]; ok {
		return fmt.Errorf("interpreter: host function %q already registered", name)
	}
	hostFuncs[name] = fn
	return nil
}

func lookupHost(name string) (HostFunc, bool) {
	hostMu.RLock()
	defer hostMu.RUnlock()
	fn, ok := hostFuncs[name]
	return fn, ok
}

func hostPrintf(e *Engine, args []GenericValue) (GenericValue, error) {
	if len(args) == 0 || !args[0].IsPointer() {
		return Void, fmt.Errorf("printf: %w: missing format string", ErrArgCount)
	}
	format, err := readCString(args[0].Pointer())
	if err != nil {
		return Void, fmt.Errorf("printf: format: %v", err)
	}
	out, err := formatC(format, args[1:])
	if err != nil {
		return Void, fmt.Errorf("printf: %w", err)
	}
	n, err := e.stdout.Write([]byte(out))
	if err != nil {
		return Void, fmt.Errorf("printf: %v", err)
	}
	return IntValue(32, int64(n)), nil
}

func hostPuts(e *Engine, args []GenericValue) (GenericValue, error) {
	if len(args) != 1 || !args[0].IsPointer() {
		return Void, fmt.Errorf("puts: %w", ErrArgCount)
	}
	s, err := readCString(args[0].Pointer())
	if err != nil {
		return Void, fmt.Errorf("puts: %v", err)
	}
	if _, err := e.stdout.Write([]byte(s + "\n")); err != nil {
		return Void, fmt.Errorf("puts: %v", err)
	}
	return IntValue(32, 0), nil
}

func hostPutchar(e *Engine, args []GenericValue) (GenericValue, error) {
	if len(args) != 1 || !args[0].IsInt() {
		return Void, fmt.Errorf("putchar: %w", ErrArgCount)
	}
	c := byte(args[0].Uint())
	if _, err := e.stdout.Write([]byte{c}); err != nil {
		return Void, fmt.Errorf("putchar: %v", err)
	}
	return IntValue(32, int64(c)), nil
}

// formatC renders a C printf format with the given variadic arguments.
func formatC(format string, args []GenericValue) (string, error) {
	var sb strings.Builder
	next := 0
	arg := func() (GenericValue, error) {
		if next >= len(args) {
			return Void, fmt.Errorf("%w: too few arguments for format %q", ErrArgCount, format)
		}
		a := args[next]
		next++
		return a, nil
	}

	for i := 0; i < len(format); i++ {
		c := format[i]
		if c != '%' {
			sb.WriteByte(c)
			continue
		}
		i++
		if i >= len(format) {
			return "", fmt.Errorf("format %q ends with a lone %%", format)
		}
		if format[i] == '%' {
			sb.WriteByte('%')
			continue
		}

		spec := []byte{'%'}
		for i < len(format) && strings.IndexByte("-+ #0", format[i]) >= 0 {
			spec = append(spec, format[i])
			i++
		}
		for part := 0; part < 2; part++ {
			if part == 1 {
				if i >= len(format) || format[i] != '.' {
					break
				}
				spec = append(spec, '.')
				i++
			}
			if i < len(format) && format[i] == '*' {
				w, err := arg()
				if err != nil {
					return "", err
				}
				spec = append(spec, fmt.Sprint(w.Int(true))...)
				i++
				continue
			}
			for i < len(format) && format[i] >= '0' && format[i] <= '9' {
				spec = append(spec, format[i])
				i++
			}
		}

		width := uint64(32)
		for i < len(format) && strings.IndexByte("hlzjt", format[i]) >= 0 {
			switch format[i] {
			case 'h':
				if width == 16 {
					width = 8
				} else {
					width = 16
				}
			default:
				width = 64
			}
			i++
		}
		if i >= len(format) {
			return "", fmt.Errorf("format %q has an incomplete conversion", format)
		}

		a, err := arg()
		if err != nil {
			return "", err
		}
		switch verb := format[i]; verb {
		case 'd', 'i':
			sb.WriteString(fmt.Sprintf(string(append(spec, 'd')), signExtend(mask(a.Uint(), width), width)))
		case 'u':
			sb.WriteString(fmt.Sprintf(string(append(spec, 'd')), mask(a.Uint(), width)))
		case 'x', 'X', 'o':
			sb.WriteString(fmt.Sprintf(string(append(spec, verb)), mask(a.Uint(), width)))
		case 'c':
			sb.WriteString(fmt.Sprintf(string(append(spec, 's')), string([]byte{byte(a.Uint())})))
		case 's':
			if !a.IsPointer() {
				return "", fmt.Errorf("%w: %%s expects a pointer, got %s", ErrArgType, a)
			}
			s, err := readCString(a.Pointer())
			if err != nil {
				return "", err
			}
			sb.WriteString(fmt.Sprintf(string(append(spec, 's')), s))
		case 'p':
			sb.WriteString(fmt.Sprintf(string(append(spec, 's')), a.Pointer().String()))
		default:
			return "", fmt.Errorf("unsupported conversion %%%c in format %q", verb, format)
		}
	}
	return sb.String(), nil
}
