package diagnostics

import (
	"bytes"
	"strings"
	"testing"
)

func TestEngineCountsAndErr(t *testing.T) {
	d := NewDiagnosticEngine()
	if d.Err() != nil {
		t.Fatal("empty engine returned an error")
	}

	d.Warning("declare function", "signature differs")
	if d.HasErrors() {
		t.Fatal("warning counted as error")
	}
	if d.Err() != nil {
		t.Fatal("warnings alone must not produce an error")
	}

	d.ErrorIn("main", "entry", "verify", "block has no terminator")
	d.Error("append block", "function \"nope\" is not declared")

	if d.ErrorCount() != 2 || d.WarningCount() != 1 {
		t.Fatalf("counts = %d errors, %d warnings", d.ErrorCount(), d.WarningCount())
	}

	err := d.Err()
	if err == nil {
		t.Fatal("expected joined error")
	}
	msg := err.Error()
	if !strings.Contains(msg, "@main:%entry: verify: block has no terminator") {
		t.Errorf("located diagnostic missing from %q", msg)
	}
	if !strings.Contains(msg, "append block") {
		t.Errorf("module diagnostic missing from %q", msg)
	}
	if strings.Contains(msg, "signature differs") {
		t.Errorf("warning leaked into error %q", msg)
	}
}

func TestPrintAndReset(t *testing.T) {
	d := NewDiagnosticEngine()
	d.WarningIn("printf", "declare function", "redeclared with a different signature")

	var buf bytes.Buffer
	d.Print(&buf)
	want := "WARNING: @printf: declare function: redeclared with a different signature\n"
	if buf.String() != want {
		t.Errorf("Print = %q, want %q", buf.String(), want)
	}

	d.Reset()
	if len(d.Diagnostics()) != 0 || d.WarningCount() != 0 {
		t.Error("Reset left diagnostics behind")
	}
}
