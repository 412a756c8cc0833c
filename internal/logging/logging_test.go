package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestSetup_TextOutput(t *testing.T) {
	var buf bytes.Buffer
	Setup(false, false, &buf)

	Info("test message", "key", "value")

	output := buf.String()
	if !strings.Contains(output, "test message") {
		t.Errorf("Expected 'test message' in output, got: %s", output)
	}
}

func TestSetup_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	Setup(false, true, &buf)

	Info("test message", "key", "value")

	output := buf.String()
	if !strings.Contains(output, "{") {
		t.Errorf("Expected JSON output, got: %s", output)
	}
	if !strings.Contains(output, "test message") {
		t.Errorf("Expected 'test message' in output, got: %s", output)
	}
}

func TestSetup_VerboseToggle(t *testing.T) {
	tests := []struct {
		name      string
		verbose   bool
		wantDebug bool
	}{
		{name: "verbose shows debug", verbose: true, wantDebug: true},
		{name: "non-verbose hides debug", verbose: false, wantDebug: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			Setup(tt.verbose, false, &buf)

			if Verbose != tt.verbose {
				t.Errorf("Verbose = %v, want %v", Verbose, tt.verbose)
			}

			Debug("debug message")

			got := strings.Contains(buf.String(), "debug message")
			if got != tt.wantDebug {
				t.Errorf("debug message present = %v, want %v (output: %s)", got, tt.wantDebug, buf.String())
			}
		})
	}
}

func TestLevels(t *testing.T) {
	tests := []struct {
		name string
		log  func(string, ...any)
		msg  string
	}{
		{name: "debug", log: Debug, msg: "debug test"},
		{name: "info", log: Info, msg: "info test"},
		{name: "warn", log: Warn, msg: "warn test"},
		{name: "error", log: Error, msg: "error test"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			Setup(true, false, &buf)

			tt.log(tt.msg, "key", "value")

			if !strings.Contains(buf.String(), tt.msg) {
				t.Errorf("Expected %q in output, got: %s", tt.msg, buf.String())
			}
		})
	}
}

func TestWith(t *testing.T) {
	var buf bytes.Buffer
	Setup(false, false, &buf)

	logger := With("component", "store")
	if logger == nil {
		t.Fatal("With() returned nil")
	}

	logger.Info("with test")

	output := buf.String()
	if !strings.Contains(output, "with test") {
		t.Errorf("Expected 'with test' in output, got: %s", output)
	}
	if !strings.Contains(output, "component") {
		t.Errorf("Expected 'component' in output, got: %s", output)
	}
}

func TestSetup_NilWriter(t *testing.T) {
	// Must not panic; falls back to stderr.
	Setup(false, false, nil)

	if Logger == nil {
		t.Error("Logger should not be nil after Setup with nil writer")
	}
}

func TestUserOutput(t *testing.T) {
	var out, errOut bytes.Buffer
	oldOut, oldErr := UserOut, UserErr
	UserOut, UserErr = &out, &errOut
	defer func() { UserOut, UserErr = oldOut, oldErr }()

	UserInfo("creating %s", "feature-x")
	UserSuccess("session %s running", "feature-x")
	UserWarning("snapshot skipped")
	UserError("boot failed: %v", "timeout")

	stdout := out.String()
	stderr := errOut.String()

	for _, want := range []string{"ℹ creating feature-x", "✓ session feature-x running"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("stdout missing %q, got: %s", want, stdout)
		}
	}
	for _, want := range []string{"⚠ snapshot skipped", "✗ boot failed: timeout"} {
		if !strings.Contains(stderr, want) {
			t.Errorf("stderr missing %q, got: %s", want, stderr)
		}
	}
}
