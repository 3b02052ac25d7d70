package faults_test

import (
	"errors"
	"strings"
	"testing"

	"framewatch/internal/faults"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := faults.Wrap(faults.ErrExternalTool, "persist", "encode", "archive failed", base)
	if !errors.Is(err, faults.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"persist", "encode", "archive failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsMarker(t *testing.T) {
	err := faults.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, faults.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "pipeline failure") {
		t.Fatalf("expected fallback detail, got %q", err.Error())
	}
}

func TestClassifyAndExitCode(t *testing.T) {
	cases := []struct {
		name  string
		err   error
		class faults.Class
		fatal bool
		code  int
	}{
		{"nil", nil, faults.ClassNone, false, 0},
		{"config", faults.Configuration("sequencer", "rate does not divide base", nil), faults.ClassConfiguration, true, 2},
		{"validation", faults.Wrap(faults.ErrValidation, "config", "", "bad", nil), faults.ClassConfiguration, true, 2},
		{"malformed", faults.Wrap(faults.ErrMalformed, "process", "", "zero width", nil), faults.ClassMalformed, false, 1},
		{"timeout", faults.Wrap(faults.ErrTimeout, "acquire", "", "wait", nil), faults.ClassTimeout, false, 1},
		{"transient", faults.Wrap(faults.ErrTransient, "difference", "", "full", nil), faults.ClassTransient, false, 1},
		{"other", errors.New("plain"), faults.ClassOther, false, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := faults.Classify(tc.err); got != tc.class {
				t.Fatalf("Classify = %q, want %q", got, tc.class)
			}
			if got := faults.IsFatal(tc.err); got != tc.fatal {
				t.Fatalf("IsFatal = %v, want %v", got, tc.fatal)
			}
			if got := faults.ExitCode(tc.err); got != tc.code {
				t.Fatalf("ExitCode = %d, want %d", got, tc.code)
			}
		})
	}
}
