package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestLoggerFiltersBelowMinimum(t *testing.T) {
	var buf bytes.Buffer
	l := New("[test]")
	l.SetOutput(&buf)
	l.SetLevel(LevelWarning)

	l.Debug("hidden %d", 1)
	l.Info("hidden %d", 2)
	l.Warning("shown %d", 3)
	l.Error("shown %d", 4)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("filtered messages were written: %q", out)
	}
	if !strings.Contains(out, "[test] [WARN] shown 3") {
		t.Errorf("missing warning line in %q", out)
	}
	if !strings.Contains(out, "[test] [ERROR] shown 4") {
		t.Errorf("missing error line in %q", out)
	}

	// Counters track every call, written or not.
	if l.WarningCount() != 1 || l.ErrorCount() != 1 {
		t.Errorf("counts = %d warnings, %d errors", l.WarningCount(), l.ErrorCount())
	}
	l.Reset()
	if l.HasErrors() {
		t.Error("Reset did not clear error count")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{"warning", LevelWarning, false},
		{"error", LevelError, false},
		{"off", LevelSilent, false},
		{"verbose", LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestWithPrefixSharesWriter(t *testing.T) {
	var buf bytes.Buffer
	parent := New("[parent]")
	parent.SetOutput(&buf)
	parent.SetLevel(LevelDebug)

	child := parent.WithPrefix("[child]")
	child.Debug("hello")

	if got := buf.String(); got != "[child] [DEBUG] hello\n" {
		t.Errorf("child output = %q", got)
	}
	if parent.ErrorCount() != 0 {
		t.Error("child counters leaked into parent")
	}
}
