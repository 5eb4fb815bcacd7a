package compiler

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"sync"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/value"

	"github.com/arc-language/core-irgen/diagnostics"
	"github.com/arc-language/core-irgen/interp"
	"github.com/arc-language/core-irgen/logging"
)

const (
	// EntryPointName is the function SetupEntryPoint declares.
	EntryPointName = "main"
	// EntryBlockLabel labels the first block of the entry point.
	EntryBlockLabel = "entry"
)

var (
	initOnce   sync.Once
	initErr    error
	hostTriple string

	// initBackend and exitFunc are replaced in tests.
	initBackend = defaultInitBackend
	exitFunc    = os.Exit
)

// EnsureInitialized performs the one-time backend setup: it resolves the
// native target and links the interpreter runtime. Failure is fatal and
// terminates the process with status 1.
func EnsureInitialized() {
	initOnce.Do(func() {
		hostTriple, initErr = initBackend()
		if initErr == nil {
			logging.Debug("Backend initialized for target %s", hostTriple)
		}
	})
	if initErr != nil {
		logging.Error("Backend initialization failed: %v", initErr)
		exitFunc(1)
	}
}

func defaultInitBackend() (string, error) {
	triple, err := nativeTargetTriple(runtime.GOOS, runtime.GOARCH)
	if err != nil {
		return "", err
	}
	if err := interp.LinkInInterpreter(); err != nil {
		return "", fmt.Errorf("link interpreter: %w", err)
	}
	return triple, nil
}

func nativeTargetTriple(goos, goarch string) (string, error) {
	var arch string
	switch goarch {
	case "amd64":
		arch = "x86_64"
	case "arm64":
		arch = "aarch64"
	case "386":
		arch = "i686"
	case "arm":
		arch = "armv7"
	case "riscv64", "s390x", "ppc64":
		arch = goarch
	case "ppc64le":
		arch = "powerpc64le"
	case "mips64le":
		arch = "mips64el"
	case "loong64":
		arch = "loongarch64"
	case "wasm":
		arch = "wasm32"
	default:
		return "", fmt.Errorf("no native target for architecture %q", goarch)
	}

	var rest string
	switch goos {
	case "linux":
		rest = "unknown-linux-gnu"
	case "android":
		rest = "unknown-linux-android"
	case "darwin", "ios":
		rest = "apple-" + goos
	case "windows":
		rest = "pc-windows-msvc"
	case "wasip1":
		rest = "unknown-wasi"
	default:
		rest = "unknown-" + goos
	}
	return arch + "-" + rest, nil
}

// funcState tracks what the compiler built inside one function.
type funcState struct {
	fn     *ir.Func
	scope  *Scope
	blocks map[string]*ir.Block
}

// bind names v uniquely within the function and records it as produced here.
func (st *funcState) bind(v value.Named, name string) {
	name = st.scope.Unique(name)
	if name != "" {
		v.SetName(name)
	}
	st.scope.Define(name, v)
}

// Compiler owns one module and the single insertion cursor into it.
type Compiler struct {
	ctx    *Context
	name   string
	module *ir.Module
	logger *logging.Logger
	diag   *diagnostics.DiagnosticEngine

	dumpOut io.Writer
	stdout  io.Writer
	triple  string

	moduleScope *Scope
	funcs       map[*ir.Func]*funcState
	owners      map[*ir.Block]*funcState
	cursor      InsertPoint
	formats     map[string]constant.Constant

	engine   *interp.Engine
	disposed bool
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithLogger sets the logger for construction and emission messages.
func WithLogger(l *logging.Logger) Option {
	return func(c *Compiler) { c.logger = l }
}

// WithDumpWriter redirects DumpText. The default is os.Stderr.
func WithDumpWriter(w io.Writer) Option {
	return func(c *Compiler) { c.dumpOut = w }
}

// WithStdout redirects the output of interpreted programs.
func WithStdout(w io.Writer) Option {
	return func(c *Compiler) { c.stdout = w }
}

// WithTargetTriple overrides the native target triple recorded in the module.
func WithTargetTriple(triple string) Option {
	return func(c *Compiler) { c.triple = triple }
}

// NewCompiler initializes the backend if needed and creates an empty module
// named moduleName bound to ctx. A nil ctx selects GlobalContext.
func NewCompiler(ctx *Context, moduleName string, opts ...Option) *Compiler {
	EnsureInitialized()
	if ctx == nil {
		ctx = GlobalContext()
	}

	c := &Compiler{
		ctx:         ctx,
		name:        moduleName,
		module:      ir.NewModule(),
		logger:      logging.Default().WithPrefix(fmt.Sprintf("[Compiler:%s]", moduleName)),
		diag:        diagnostics.NewDiagnosticEngine(),
		dumpOut:     os.Stderr,
		stdout:      os.Stdout,
		triple:      hostTriple,
		moduleScope: NewScope(nil),
		funcs:       make(map[*ir.Func]*funcState),
		owners:      make(map[*ir.Block]*funcState),
		formats:     make(map[string]constant.Constant),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.module.SourceFilename = moduleName
	c.module.TargetTriple = c.triple

	c.logger.Info("Created module '%s' for target %s", moduleName, c.triple)
	return c
}

// SetupEntryPoint declares `i32 main()`, appends its entry block and
// positions the cursor there. A second call fails with ErrDuplicateBlock.
func (c *Compiler) SetupEntryPoint() (InsertPoint, error) {
	if c.disposed {
		return InsertPoint{}, ErrDisposed
	}
	fn := c.DeclareFunction(c.ctx.Type(KindInt32), nil, EntryPointName)
	entry, err := c.AppendBlock(fn.Name(), EntryBlockLabel)
	if err != nil {
		return InsertPoint{}, fmt.Errorf("setup entry point: %w", err)
	}
	return c.PositionAt(entry)
}

// Context returns the context the compiler was created with.
func (c *Compiler) Context() *Context {
	return c.ctx
}

// Name returns the module name.
func (c *Compiler) Name() string {
	return c.name
}

// Module returns the module under construction.
func (c *Compiler) Module() *ir.Module {
	return c.module
}

// Diagnostics returns the declaration and verification problems recorded so far.
func (c *Compiler) Diagnostics() *diagnostics.DiagnosticEngine {
	return c.diag
}

// InsertPoint returns the current cursor position.
func (c *Compiler) InsertPoint() InsertPoint {
	return c.cursor
}

// Dispose releases the cursor, the symbol tables and any interpreter. The
// module stays readable; further construction fails with ErrDisposed. The
// context is not touched.
func (c *Compiler) Dispose() {
	if c.disposed {
		return
	}
	c.cursor = InsertPoint{}
	c.moduleScope = NewScope(nil)
	c.funcs = make(map[*ir.Func]*funcState)
	c.owners = make(map[*ir.Block]*funcState)
	c.formats = make(map[string]constant.Constant)
	c.engine = nil
	c.disposed = true
	c.logger.Debug("Disposed compiler for module '%s'", c.name)
}
