package compiler

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/arc-language/core-codegen/codegen"
	"github.com/llir/llvm/asm"
	"github.com/llir/llvm/ir"
)

// DumpText writes the textual module to the dump writer. It never fails:
// unterminated blocks are shown with a placeholder terminator.
func (c *Compiler) DumpText() {
	if _, err := io.WriteString(c.dumpOut, c.String()); err != nil {
		c.logger.Warning("Failed to dump module '%s': %v", c.name, err)
	}
}

// String renders the module as LLVM IR text.
func (c *Compiler) String() (text string) {
	var open []*ir.Block
	for _, fn := range c.module.Funcs {
		for _, b := range fn.Blocks {
			if b.Term == nil {
				b.Term = ir.NewUnreachable()
				open = append(open, b)
			}
		}
	}
	defer func() {
		for _, b := range open {
			b.Term = nil
		}
		if r := recover(); r != nil {
			text = fmt.Sprintf("; module '%s' could not be rendered: %v\n", c.name, r)
		}
	}()

	var sb strings.Builder
	fmt.Fprintf(&sb, "; ModuleID = '%s'\n", c.name)
	if len(open) > 0 {
		fmt.Fprintf(&sb, "; %d unterminated block(s) shown ending in 'unreachable'\n", len(open))
	}
	sb.WriteString(c.module.String())
	return sb.String()
}

// EmitToFile verifies the module and writes its textual IR to path.
func (c *Compiler) EmitToFile(path string) error {
	const op = "emit ir"
	c.logger.Info("Generating textual IR to: %s", path)
	if c.disposed {
		return &EmitError{Op: op, Path: path, Err: ErrDisposed}
	}
	if err := c.Verify(); err != nil {
		c.logger.Error("Refusing to emit invalid module: %v", err)
		return &EmitError{Op: op, Path: path, Err: err}
	}

	f, err := os.Create(path)
	if err != nil {
		c.logger.Error("Failed to create IR file '%s': %v", path, err)
		return &EmitError{Op: op, Path: path, Err: err}
	}
	w := bufio.NewWriter(f)
	n, err := c.module.WriteTo(w)
	if err == nil {
		err = w.Flush()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		c.logger.Error("Failed to write IR file '%s': %v", path, err)
		return &EmitError{Op: op, Path: path, Err: err}
	}

	c.logger.Info("Successfully wrote %d bytes of IR to: %s", n, path)
	return nil
}

// EmitObject verifies the module, lowers it for the native code generator
// and writes the resulting object file to path.
func (c *Compiler) EmitObject(path string) error {
	const op = "emit object"
	c.logger.Info("Generating object file to: %s", path)
	if c.disposed {
		return &EmitError{Op: op, Path: path, Err: ErrDisposed}
	}
	if err := c.Verify(); err != nil {
		c.logger.Error("Refusing to emit invalid module: %v", err)
		return &EmitError{Op: op, Path: path, Err: err}
	}

	native, err := lowerModule(c.module, c.name)
	if err != nil {
		c.logger.Error("Native lowering failed: %v", err)
		return &EmitError{Op: op, Path: path, Err: err}
	}
	c.logger.Debug("Calling code generator for module '%s'", c.name)
	objData, err := codegen.GenerateObject(native)
	if err != nil {
		c.logger.Error("Code generation failed: %v", err)
		return &EmitError{Op: op, Path: path, Err: fmt.Errorf("code generation: %w", err)}
	}
	c.logger.Debug("Generated %d bytes of object code", len(objData))

	if err := os.WriteFile(path, objData, 0644); err != nil {
		c.logger.Error("Failed to write object file '%s': %v", path, err)
		return &EmitError{Op: op, Path: path, Err: err}
	}
	c.logger.Info("Successfully wrote object file to: %s", path)
	return nil
}

// ParseText parses LLVM IR text. name is used in error messages.
func ParseText(name, text string) (*ir.Module, error) {
	m, err := asm.ParseString(name, text)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	return m, nil
}

// LoadFile parses the LLVM IR file at path.
func LoadFile(path string) (*ir.Module, error) {
	m, err := asm.ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return m, nil
}
