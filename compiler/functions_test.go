package compiler

import (
	"errors"
	"testing"

	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"github.com/arc-language/core-irgen/diagnostics"
)

func TestAppendBlockNeedsDeclaredFunction(t *testing.T) {
	c, _ := newTestCompiler(t, "undeclared")

	b, err := c.AppendBlock("helper", "entry")
	if !errors.Is(err, ErrUndeclaredFunction) {
		t.Fatalf("expected ErrUndeclaredFunction, got %v", err)
	}
	if b != nil {
		t.Error("block returned for undeclared function")
	}
	if len(c.Module().Funcs) != 0 {
		t.Errorf("module gained %d function(s)", len(c.Module().Funcs))
	}
	if _, ok := c.Function("helper"); ok {
		t.Error("helper was declared implicitly")
	}
	if !c.Diagnostics().HasErrors() {
		t.Error("missing diagnostic for undeclared function")
	}
}

func TestDeclareFunctionReturnsSameHandle(t *testing.T) {
	c, _ := newTestCompiler(t, "redeclare")
	i32 := c.Context().Type(KindInt32)
	i64 := c.Context().Type(KindInt64)

	first := c.DeclareFunction(i32, []types.Type{i32, i32}, "mul")
	second := c.DeclareFunction(i32, []types.Type{i32, i32}, "mul")
	if first != second {
		t.Fatal("redeclaring with the same signature returned a new function")
	}
	if c.Diagnostics().WarningCount() != 0 {
		t.Errorf("unexpected warnings: %v", c.Diagnostics().Diagnostics())
	}

	third := c.DeclareFunction(i64, nil, "mul")
	if third != first {
		t.Fatal("redeclaring with another signature returned a new function")
	}
	if !third.Sig.RetType.Equal(i32) {
		t.Errorf("signature changed to %s", third.Sig)
	}
	diags := c.Diagnostics().Diagnostics()
	if len(diags) != 1 || diags[0].Severity != diagnostics.SeverityWarning {
		t.Errorf("expected one warning, got %v", diags)
	}
	if len(c.Module().Funcs) != 1 {
		t.Errorf("module has %d functions, want 1", len(c.Module().Funcs))
	}
}

func TestDeclareFunctionNamesParams(t *testing.T) {
	c, _ := newTestCompiler(t, "params")
	i32 := c.Context().Type(KindInt32)
	fn := c.DeclareFunction(i32, []types.Type{i32, i32}, "add")
	for i, want := range []string{"arg0", "arg1"} {
		if got := fn.Params[i].Name(); got != want {
			t.Errorf("param %d = %q, want %q", i, got, want)
		}
	}
}

func TestDeclareFunctionPanicsOnForeignType(t *testing.T) {
	tests := []struct {
		name   string
		ret    types.Type
		params []types.Type
	}{
		{"unregistered return", types.NewPointer(types.I64), nil},
		{"nil return", nil, nil},
		{"void param", types.Void, []types.Type{types.Void}},
		{"unregistered param", types.Void, []types.Type{types.Double}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestCompiler(t, "panics")
			defer func() {
				if recover() == nil {
					t.Error("expected panic")
				}
			}()
			c.DeclareFunction(tt.ret, tt.params, "f")
		})
	}
}

func TestAppendBlockDuplicateLabel(t *testing.T) {
	c, _ := newTestCompiler(t, "dup")
	i32 := c.Context().Type(KindInt32)
	c.DeclareFunction(i32, nil, "f")

	if _, err := c.AppendBlock("f", "loop"); err != nil {
		t.Fatal(err)
	}
	if _, err := c.AppendBlock("f", "loop"); !errors.Is(err, ErrDuplicateBlock) {
		t.Errorf("duplicate label: %v", err)
	}

	entry, err := c.AppendBlock("f", "body")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.PositionAt(entry); err != nil {
		t.Fatal(err)
	}
	if _, err := c.DeclareScalarVariable("x", 1, i32); err != nil {
		t.Fatal(err)
	}
	if _, err := c.AppendBlock("f", "x"); !errors.Is(err, ErrDuplicateBlock) {
		t.Errorf("label shadowing a value: %v", err)
	}

	// Unnamed blocks never clash.
	for i := 0; i < 2; i++ {
		if _, err := c.AppendBlock("f", ""); err != nil {
			t.Errorf("unnamed block %d: %v", i, err)
		}
	}
}

func TestPositionAtForeignBlock(t *testing.T) {
	other, _ := newTestCompiler(t, "other")
	entry, err := other.SetupEntryPoint()
	if err != nil {
		t.Fatal(err)
	}

	c, _ := newTestCompiler(t, "mine")
	if _, err := c.PositionAt(entry.Block); !errors.Is(err, ErrForeignBlock) {
		t.Errorf("foreign block: %v", err)
	}
	if _, err := c.PositionAt(nil); !errors.Is(err, ErrForeignBlock) {
		t.Errorf("nil block: %v", err)
	}
	if c.InsertPoint().IsSet() {
		t.Error("cursor moved")
	}
}

func TestPositionAtMovesBetweenFunctions(t *testing.T) {
	c, _ := newTestCompiler(t, "two")
	i32 := c.Context().Type(KindInt32)

	c.DeclareFunction(i32, []types.Type{i32}, "double")
	body, err := c.AppendBlock("double", "entry")
	if err != nil {
		t.Fatal(err)
	}
	main, err := c.SetupEntryPoint()
	if err != nil {
		t.Fatal(err)
	}

	ip, err := c.PositionAt(body)
	if err != nil {
		t.Fatal(err)
	}
	if ip.Func.Name() != "double" || c.InsertPoint() != ip {
		t.Fatalf("cursor at %s", c.InsertPoint())
	}
	double, _ := c.Function("double")
	twice, err := c.Add(double.Params[0], double.Params[0], "twice")
	if err != nil {
		t.Fatal(err)
	}
	if err := c.ReturnValue(twice); err != nil {
		t.Fatal(err)
	}

	if _, err := c.PositionAt(main.Block); err != nil {
		t.Fatal(err)
	}
	// A parameter of another function is not an operand here.
	if _, err := c.Add(double.Params[0], c.Context().ConstInt(types.I32, 1), "bad"); !errors.Is(err, ErrForeignValue) {
		t.Errorf("foreign param: %v", err)
	}
	v, err := c.BuildCall(double, []value.Value{c.Context().ConstInt(types.I32, 21)}, "r")
	if err != nil {
		t.Fatal(err)
	}
	if err := c.ReturnValue(v); err != nil {
		t.Fatal(err)
	}

	got, err := c.RunViaInterpreter(main.Func)
	if err != nil {
		t.Fatal(err)
	}
	if got != 42 {
		t.Errorf("double(21) = %d", got)
	}
}
