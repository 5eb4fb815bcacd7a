package compiler

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"github.com/arc-language/core-irgen/interp"
	"github.com/arc-language/core-irgen/logging"
)

func newTestCompiler(t *testing.T, name string) (*Compiler, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	c := NewCompiler(NewContext(), name,
		WithLogger(logging.Discard("[test]")),
		WithStdout(&out),
		WithDumpWriter(io.Discard),
	)
	t.Cleanup(c.Dispose)
	return c, &out
}

// buildProduct builds main() { a = x; b = y; return a * b; }.
func buildProduct(t *testing.T, c *Compiler, x, y int64) *ir.Func {
	t.Helper()
	entry, err := c.SetupEntryPoint()
	if err != nil {
		t.Fatalf("SetupEntryPoint: %v", err)
	}
	i32 := c.Context().Type(KindInt32)
	a, err := c.DeclareScalarVariable("a", x, i32)
	if err != nil {
		t.Fatalf("DeclareScalarVariable(a): %v", err)
	}
	b, err := c.DeclareScalarVariable("b", y, i32)
	if err != nil {
		t.Fatalf("DeclareScalarVariable(b): %v", err)
	}
	ab, err := c.Multiply(a, b, "ab_val")
	if err != nil {
		t.Fatalf("Multiply: %v", err)
	}
	if err := c.ReturnValue(ab); err != nil {
		t.Fatalf("ReturnValue: %v", err)
	}
	return entry.Func
}

func TestNativeTargetTriple(t *testing.T) {
	tests := []struct {
		goos, goarch string
		want         string
	}{
		{"linux", "amd64", "x86_64-unknown-linux-gnu"},
		{"darwin", "arm64", "aarch64-apple-darwin"},
		{"windows", "386", "i686-pc-windows-msvc"},
		{"freebsd", "riscv64", "riscv64-unknown-freebsd"},
	}
	for _, tt := range tests {
		got, err := nativeTargetTriple(tt.goos, tt.goarch)
		if err != nil {
			t.Errorf("nativeTargetTriple(%s, %s): %v", tt.goos, tt.goarch, err)
			continue
		}
		if got != tt.want {
			t.Errorf("nativeTargetTriple(%s, %s) = %q, want %q", tt.goos, tt.goarch, got, tt.want)
		}
	}
	if _, err := nativeTargetTriple("linux", "sparc"); err == nil {
		t.Error("expected error for unknown architecture")
	}
}

func TestEnsureInitializedIsFatalOnFailure(t *testing.T) {
	origInit, origExit := initBackend, exitFunc
	t.Cleanup(func() {
		initBackend, exitFunc = origInit, origExit
		initOnce = sync.Once{}
		initErr = nil
		EnsureInitialized()
	})

	initOnce = sync.Once{}
	calls := 0
	initBackend = func() (string, error) {
		calls++
		return "", errors.New("no native target")
	}
	code := -1
	exitFunc = func(c int) { code = c }

	EnsureInitialized()
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	code = -1
	EnsureInitialized()
	if calls != 1 {
		t.Errorf("backend initialized %d times, want once", calls)
	}
	if code != 1 {
		t.Errorf("second call did not report the failure again")
	}
}

func TestNewCompilerRecordsModuleIdentity(t *testing.T) {
	c := NewCompiler(NewContext(), "demo",
		WithLogger(logging.Discard("[test]")),
		WithTargetTriple("x86_64-unknown-linux-gnu"),
	)
	defer c.Dispose()

	if c.Name() != "demo" || c.Module().SourceFilename != "demo" {
		t.Errorf("module name not recorded: %q / %q", c.Name(), c.Module().SourceFilename)
	}
	if c.Module().TargetTriple != "x86_64-unknown-linux-gnu" {
		t.Errorf("target triple = %q", c.Module().TargetTriple)
	}
	if c.InsertPoint().IsSet() {
		t.Error("fresh compiler is positioned")
	}
}

func TestSetupEntryPointTwice(t *testing.T) {
	c, _ := newTestCompiler(t, "twice")

	first, err := c.SetupEntryPoint()
	if err != nil {
		t.Fatalf("SetupEntryPoint: %v", err)
	}
	if first.Func.Name() != EntryPointName || first.Block.Name() != EntryBlockLabel {
		t.Errorf("entry point = %s", first)
	}

	if _, err := c.SetupEntryPoint(); !errors.Is(err, ErrDuplicateBlock) {
		t.Fatalf("second SetupEntryPoint: expected ErrDuplicateBlock, got %v", err)
	}
	if n := len(first.Func.Blocks); n != 1 {
		t.Errorf("main has %d blocks, want 1", n)
	}
	if c.InsertPoint() != first {
		t.Errorf("cursor moved to %s", c.InsertPoint())
	}
}

func TestDisposeRejectsFurtherConstruction(t *testing.T) {
	c, _ := newTestCompiler(t, "disposed")
	fn := buildProduct(t, c, 2, 3)
	c.Dispose()

	if _, err := c.SetupEntryPoint(); !errors.Is(err, ErrDisposed) {
		t.Errorf("SetupEntryPoint after Dispose: %v", err)
	}
	if _, err := c.AppendBlock("main", "more"); !errors.Is(err, ErrDisposed) {
		t.Errorf("AppendBlock after Dispose: %v", err)
	}
	if _, err := c.RunViaInterpreter(fn); !errors.Is(err, ErrDisposed) {
		t.Errorf("RunViaInterpreter after Dispose: %v", err)
	}
	if c.Module() == nil || len(c.Module().Funcs) != 1 {
		t.Error("module should stay readable after Dispose")
	}
	c.Dispose()
}

func TestRunViaInterpreterReportsEngineDiagnostic(t *testing.T) {
	c, _ := newTestCompiler(t, "unresolved")
	entry, err := c.SetupEntryPoint()
	if err != nil {
		t.Fatal(err)
	}
	i8p := c.Context().Type(KindBytePtr)
	host, err := c.DeclareVariadicHostFunction("no_such_host_routine", []types.Type{i8p}, c.Context().Type(KindInt32))
	if err != nil {
		t.Fatal(err)
	}
	str, err := c.MaterializeConstantString("x")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.BuildCall(host, []value.Value{str}, "r"); err != nil {
		t.Fatal(err)
	}
	if err := c.ReturnValue(c.Context().ConstInt(types.I32, 0)); err != nil {
		t.Fatal(err)
	}

	_, err = c.RunViaInterpreter(entry.Func)
	var ee *interp.EngineError
	if !errors.As(err, &ee) {
		t.Fatalf("expected *interp.EngineError, got %v", err)
	}
	if ee.Diagnostic == "" || !strings.Contains(ee.Diagnostic, "no_such_host_routine") {
		t.Errorf("diagnostic = %q", ee.Diagnostic)
	}
	if !c.Diagnostics().HasErrors() {
		t.Error("engine failure not recorded in diagnostics")
	}
}

func TestRunViaInterpreterReusesEngine(t *testing.T) {
	c, _ := newTestCompiler(t, "reuse")
	fn := buildProduct(t, c, 6, 7)

	for i := 0; i < 2; i++ {
		got, err := c.RunViaInterpreter(fn)
		if err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
		if got != 42 {
			t.Errorf("run %d = %d, want 42", i, got)
		}
	}
	first := c.engine
	if _, err := c.RunViaInterpreter(fn); err != nil {
		t.Fatal(err)
	}
	if c.engine != first {
		t.Error("engine was recreated")
	}
}

func TestRunViaInterpreterRevalidatesModule(t *testing.T) {
	c, _ := newTestCompiler(t, "revalidate")
	fn := buildProduct(t, c, 6, 7)
	if _, err := c.RunViaInterpreter(fn); err != nil {
		t.Fatal(err)
	}

	if _, err := c.AppendBlock(EntryPointName, "dangling"); err != nil {
		t.Fatal(err)
	}
	_, err := c.RunViaInterpreter(fn)
	var ee *interp.EngineError
	if !errors.As(err, &ee) {
		t.Fatalf("expected *interp.EngineError, got %v", err)
	}
	if !strings.Contains(ee.Diagnostic, "dangling") {
		t.Errorf("diagnostic = %q", ee.Diagnostic)
	}
	if !c.Diagnostics().HasErrors() {
		t.Error("validation failure not recorded in diagnostics")
	}
}
