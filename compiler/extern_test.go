package compiler

import (
	"errors"
	"strings"
	"testing"

	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
)

func TestPrintIntWritesProduct(t *testing.T) {
	c, out := newTestCompiler(t, "print")
	entry, err := c.SetupEntryPoint()
	if err != nil {
		t.Fatal(err)
	}
	i32 := c.Context().Type(KindInt32)
	a, _ := c.DeclareScalarVariable("a", 35, i32)
	b, _ := c.DeclareScalarVariable("b", 16, i32)
	ab, err := c.Multiply(a, b, "ab_val")
	if err != nil {
		t.Fatal(err)
	}
	if err := c.PrintInt(ab); err != nil {
		t.Fatal(err)
	}
	if err := c.PrintInt(ab); err != nil {
		t.Fatal(err)
	}
	if err := c.ReturnValue(ab); err != nil {
		t.Fatal(err)
	}

	got, err := c.RunViaInterpreter(entry.Func)
	if err != nil {
		t.Fatal(err)
	}
	if got != 560 {
		t.Errorf("main() = %d", got)
	}
	if out.String() != "560\n560\n" {
		t.Errorf("stdout = %q", out.String())
	}
	if n := len(c.Module().Globals); n != 1 {
		t.Errorf("format string materialized %d times, want once", n)
	}
	if n := len(c.Module().Funcs); n != 2 {
		t.Errorf("module has %d functions, want main and printf", n)
	}
}

func TestPrintIntWide(t *testing.T) {
	c, out := newTestCompiler(t, "wide")
	entry, err := c.SetupEntryPoint()
	if err != nil {
		t.Fatal(err)
	}
	big, err := c.DeclareScalarVariable("big", 1<<40, c.Context().Type(KindInt64))
	if err != nil {
		t.Fatal(err)
	}
	if err := c.PrintInt(big); err != nil {
		t.Fatal(err)
	}
	if err := c.ReturnValue(c.Context().ConstInt(types.I32, 0)); err != nil {
		t.Fatal(err)
	}
	if _, err := c.RunViaInterpreter(entry.Func); err != nil {
		t.Fatal(err)
	}
	if out.String() != "1099511627776\n" {
		t.Errorf("stdout = %q", out.String())
	}
	if !strings.Contains(c.String(), `c"%ld\0A\00"`) {
		t.Error("64-bit format string not used")
	}
}

func TestDeclareVariadicNeedsFixedParam(t *testing.T) {
	c, _ := newTestCompiler(t, "variadic")
	_, err := c.DeclareVariadicHostFunction("vararg_only", nil, c.Context().Type(KindInt32))
	if !errors.Is(err, ErrNoFixedParams) {
		t.Fatalf("expected ErrNoFixedParams, got %v", err)
	}
	if _, ok := c.Function("vararg_only"); ok {
		t.Error("function declared despite error")
	}
}

func TestDeclarePrintfSignature(t *testing.T) {
	c, _ := newTestCompiler(t, "printf")
	printf, err := c.DeclarePrintf()
	if err != nil {
		t.Fatal(err)
	}
	if got := printf.Sig.String(); got != "i32 (i8*, ...)" {
		t.Errorf("printf signature = %s", got)
	}
	again, err := c.DeclarePrintf()
	if err != nil || again != printf {
		t.Errorf("DeclarePrintf is not idempotent: %v", err)
	}
}

func TestBuildCallChecksFixedParams(t *testing.T) {
	c, _ := newTestCompiler(t, "calls")
	if _, err := c.SetupEntryPoint(); err != nil {
		t.Fatal(err)
	}
	printf, err := c.DeclarePrintf()
	if err != nil {
		t.Fatal(err)
	}
	i32 := c.Context().Type(KindInt32)
	n, err := c.DeclareScalarVariable("n", 7, i32)
	if err != nil {
		t.Fatal(err)
	}
	format, err := c.MaterializeConstantString("%d %d\n")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		args []value.Value
		want error
	}{
		{"no arguments", nil, ErrArgCount},
		{"int as format", []value.Value{n}, ErrArgType},
		{"format only", []value.Value{format}, nil},
		{"variadic tail", []value.Value{format, n, c.Context().ConstInt(types.I64, 9)}, nil},
	}
	for _, tt := range tests {
		_, err := c.BuildCall(printf, tt.args, "")
		if tt.want == nil {
			if err != nil {
				t.Errorf("%s: %v", tt.name, err)
			}
			continue
		}
		if !errors.Is(err, tt.want) {
			t.Errorf("%s: expected %v, got %v", tt.name, tt.want, err)
		}
	}

	add := c.DeclareFunction(i32, []types.Type{i32, i32}, "add")
	if _, err := c.BuildCall(add, []value.Value{n, n, n}, "sum"); !errors.Is(err, ErrArgCount) {
		t.Errorf("too many arguments to non-variadic: %v", err)
	}
}

func TestBuildCallRejectsForeignCallee(t *testing.T) {
	other, _ := newTestCompiler(t, "other")
	foreign, err := other.DeclarePrintf()
	if err != nil {
		t.Fatal(err)
	}

	c, _ := newTestCompiler(t, "mine")
	if _, err := c.SetupEntryPoint(); err != nil {
		t.Fatal(err)
	}
	str, err := c.MaterializeConstantString("hi")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.BuildCall(foreign, []value.Value{str}, ""); !errors.Is(err, ErrForeignValue) {
		t.Errorf("foreign callee: %v", err)
	}
	foreignStr, err := other.MaterializeConstantString("theirs")
	if err != nil {
		t.Fatal(err)
	}
	printf, err := c.DeclarePrintf()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.BuildCall(printf, []value.Value{foreignStr}, ""); !errors.Is(err, ErrForeignValue) {
		t.Errorf("foreign string: %v", err)
	}
	if _, err := c.BuildCall(printf, []value.Value{str}, ""); err != nil {
		t.Errorf("own string: %v", err)
	}
	if _, err := c.BuildCall(nil, nil, ""); !errors.Is(err, ErrUndeclaredFunction) {
		t.Errorf("nil callee: %v", err)
	}
}

func TestMaterializeConstantString(t *testing.T) {
	c, _ := newTestCompiler(t, "strings")
	if _, err := c.MaterializeConstantString("%d\n"); err != nil {
		t.Fatal(err)
	}
	text := c.String()
	if !strings.Contains(text, `private unnamed_addr constant [4 x i8] c"%d\0A\00"`) {
		t.Errorf("string global missing from:\n%s", text)
	}

	p, err := c.MaterializeConstantString("")
	if err != nil {
		t.Fatal(err)
	}
	if got := p.Type().String(); got != "i8*" {
		t.Errorf("string pointer type = %s", got)
	}
	if len(c.Module().Globals) != 2 {
		t.Errorf("got %d globals", len(c.Module().Globals))
	}
}
