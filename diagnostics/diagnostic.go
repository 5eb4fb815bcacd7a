package diagnostics

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

// Severity levels for diagnostics
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
	SeverityInfo
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "ERROR"
	case SeverityWarning:
		return "WARNING"
	case SeverityInfo:
		return "INFO"
	}
	return fmt.Sprintf("Severity(%d)", int(s))
}

// Diagnostic is one message about an IR entity. Function and Block locate it
// inside the module; either may be empty for module-level problems.
type Diagnostic struct {
	Severity Severity
	Op       string
	Message  string
	Function string
	Block    string
}

func (d Diagnostic) String() string {
	var loc string
	switch {
	case d.Function != "" && d.Block != "":
		loc = fmt.Sprintf("@%s:%%%s: ", d.Function, d.Block)
	case d.Function != "":
		loc = fmt.Sprintf("@%s: ", d.Function)
	}
	if d.Op != "" {
		return fmt.Sprintf("%s: %s%s: %s", d.Severity, loc, d.Op, d.Message)
	}
	return fmt.Sprintf("%s: %s%s", d.Severity, loc, d.Message)
}

// DiagnosticEngine collects and reports diagnostics
type DiagnosticEngine struct {
	diagnostics []Diagnostic
	errorCount  int
	warnCount   int
}

// NewDiagnosticEngine creates a new diagnostic engine
func NewDiagnosticEngine() *DiagnosticEngine {
	return &DiagnosticEngine{
		diagnostics: make([]Diagnostic, 0),
	}
}

// Report records d and updates the counters.
func (d *DiagnosticEngine) Report(diag Diagnostic) {
	d.diagnostics = append(d.diagnostics, diag)
	switch diag.Severity {
	case SeverityError:
		d.errorCount++
	case SeverityWarning:
		d.warnCount++
	}
}

// Error reports an error
func (d *DiagnosticEngine) Error(op, message string) {
	d.Report(Diagnostic{Severity: SeverityError, Op: op, Message: message})
}

// ErrorIn reports an error located in a function and block
func (d *DiagnosticEngine) ErrorIn(function, block, op, message string) {
	d.Report(Diagnostic{
		Severity: SeverityError,
		Op:       op,
		Message:  message,
		Function: function,
		Block:    block,
	})
}

// Warning reports a warning
func (d *DiagnosticEngine) Warning(op, message string) {
	d.Report(Diagnostic{Severity: SeverityWarning, Op: op, Message: message})
}

// WarningIn reports a warning located in a function
func (d *DiagnosticEngine) WarningIn(function, op, message string) {
	d.Report(Diagnostic{
		Severity: SeverityWarning,
		Op:       op,
		Message:  message,
		Function: function,
	})
}

// HasErrors returns true if any errors were reported
func (d *DiagnosticEngine) HasErrors() bool {
	return d.errorCount > 0
}

// ErrorCount returns the number of errors
func (d *DiagnosticEngine) ErrorCount() int {
	return d.errorCount
}

// WarningCount returns the number of warnings
func (d *DiagnosticEngine) WarningCount() int {
	return d.warnCount
}

// Diagnostics returns a copy of everything reported so far.
func (d *DiagnosticEngine) Diagnostics() []Diagnostic {
	out := make([]Diagnostic, len(d.diagnostics))
	copy(out, d.diagnostics)
	return out
}

// Err joins every error-severity diagnostic into one error, or returns nil.
func (d *DiagnosticEngine) Err() error {
	if d.errorCount == 0 {
		return nil
	}
	var errs []error
	for _, diag := range d.diagnostics {
		if diag.Severity == SeverityError {
			errs = append(errs, errors.New(diag.String()))
		}
	}
	return errors.Join(errs...)
}

// Reset drops every recorded diagnostic.
func (d *DiagnosticEngine) Reset() {
	d.diagnostics = d.diagnostics[:0]
	d.errorCount = 0
	d.warnCount = 0
}

// Print writes all diagnostics to w, one per line
func (d *DiagnosticEngine) Print(w io.Writer) {
	var sb strings.Builder
	for _, diag := range d.diagnostics {
		sb.WriteString(diag.String())
		sb.WriteByte('\n')
	}
	io.WriteString(w, sb.String())
}
