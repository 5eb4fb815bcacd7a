package compiler

import (
	"strconv"

	"github.com/llir/llvm/ir/value"
)

// Symbol represents a named value in a scope.
type Symbol struct {
	Name  string
	Value value.Value
}

// Scope is a symbol table. The module scope keys functions by name and
// tracks the string globals; each function gets a child scope for its
// locals and block labels.
type Scope struct {
	parent  *Scope
	symbols map[string]*Symbol
	values  map[value.Value]*Symbol
	taken   map[string]bool
}

// NewScope creates a new scope
func NewScope(parent *Scope) *Scope {
	return &Scope{
		parent:  parent,
		symbols: make(map[string]*Symbol),
		values:  make(map[value.Value]*Symbol),
		taken:   make(map[string]bool),
	}
}

// Define adds a symbol to the scope. Unnamed values are tracked but cannot
// be looked up by name.
func (s *Scope) Define(name string, v value.Value) *Symbol {
	sym := &Symbol{Name: name, Value: v}
	if name != "" {
		s.symbols[name] = sym
		s.taken[name] = true
	}
	s.values[v] = sym
	return sym
}

// Visible reports whether v was defined in this scope or an enclosing one.
func (s *Scope) Visible(v value.Value) bool {
	for sc := s; sc != nil; sc = sc.parent {
		if _, ok := sc.values[v]; ok {
			return true
		}
	}
	return false
}

// LookupLocal searches only the current scope (not parents)
func (s *Scope) LookupLocal(name string) (*Symbol, bool) {
	sym, ok := s.symbols[name]
	return sym, ok
}

// Owns reports whether v was defined in this scope.
func (s *Scope) Owns(v value.Value) bool {
	_, ok := s.values[v]
	return ok
}

// Reserve marks name as used without binding a value.
func (s *Scope) Reserve(name string) {
	if name != "" {
		s.taken[name] = true
	}
}

// IsTaken reports whether name is already used in this scope.
func (s *Scope) IsTaken(name string) bool {
	return s.taken[name]
}

// Unique returns name, or name with the smallest numeric suffix that is not
// yet used in this scope. All-digit names are prefixed so they cannot clash
// with the numbering of unnamed values.
func (s *Scope) Unique(name string) string {
	if name == "" {
		return ""
	}
	if isDigits(name) {
		name = "v" + name
	}
	if !s.taken[name] {
		return name
	}
	for i := 1; ; i++ {
		candidate := name + strconv.Itoa(i)
		if !s.taken[candidate] {
			return candidate
		}
	}
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
