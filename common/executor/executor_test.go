package executor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

func writePayload(t *testing.T, dir, script string) Input {
	t.Helper()

	datasetPath := filepath.Join(dir, "dataset.csv")
	if err := os.WriteFile(datasetPath, []byte("1,2,3\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	payloadPath := filepath.Join(dir, "payload.sh")
	if err := os.WriteFile(payloadPath, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}

	return Input{
		DatasetPath: datasetPath,
		PayloadPath: payloadPath,
		OutputPath:  filepath.Join(dir, "weights.bin"),
	}
}

func requireUnix(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("subprocess tests use /bin/sh")
	}
}

func TestSubprocessExecute(t *testing.T) {
	requireUnix(t)

	input := writePayload(t, t.TempDir(), "#!/bin/sh\ncp \"$DATASET_PATH\" \"$WEIGHTS_PATH\"\n")

	exec, err := NewSubprocess("/bin/sh", time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	if err := exec.Execute(context.Background(), input); err != nil {
		t.Fatal(err)
	}

	weights, err := os.ReadFile(input.OutputPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(weights) != "1,2,3\n" {
		t.Errorf("Expected payload to copy the dataset, got %q", weights)
	}
}

func TestSubprocessFailure(t *testing.T) {
	requireUnix(t)

	input := writePayload(t, t.TempDir(), "#!/bin/sh\necho boom >&2\nexit 1\n")

	exec, err := NewSubprocess("/bin/sh", time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	execErr := exec.Execute(context.Background(), input)
	if execErr == nil {
		t.Fatal("Expected an error from a failing payload")
	}
	// The captured output is part of the diagnostics.
	if got := execErr.Error(); got == "" || !strings.Contains(got, "boom") {
		t.Errorf("Expected payload output in error, got %q", got)
	}
}

func TestSubprocessTimeout(t *testing.T) {
	requireUnix(t)

	input := writePayload(t, t.TempDir(), "#!/bin/sh\nsleep 10\n")

	exec, err := NewSubprocess("/bin/sh", 100*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}

	execErr := exec.Execute(context.Background(), input)
	if !errors.Is(execErr, context.DeadlineExceeded) {
		t.Errorf("Expected context.DeadlineExceeded, got %v", execErr)
	}
}

func TestSubprocessClosedEnvironment(t *testing.T) {
	requireUnix(t)

	// The child must not inherit host environment variables.
	t.Setenv("DISPATCHER_SECRET", "should-not-leak")

	input := writePayload(t, t.TempDir(), "#!/bin/sh\nprintf '%s' \"$DISPATCHER_SECRET\" > \"$WEIGHTS_PATH\"\n")

	exec, err := NewSubprocess("/bin/sh", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if err := exec.Execute(context.Background(), input); err != nil {
		t.Fatal(err)
	}

	weights, err := os.ReadFile(input.OutputPath)
	if err != nil {
		t.Fatal(err)
	}
	if len(weights) != 0 {
		t.Errorf("Host environment leaked into payload: %q", weights)
	}
}

func TestNewSubprocessValidation(t *testing.T) {
	if _, err := NewSubprocess("  ", 0); err == nil {
		t.Error("Expected an error for a blank interpreter")
	}
}
