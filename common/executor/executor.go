// Package executor runs downloaded model payloads behind a narrow,
// capability-scoped contract: the payload receives the staged dataset path
// and an output path, and must write its serialized weights to the output
// path. Nothing else from the host environment is exposed.
package executor

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/p2pml/training-dispatcher/common"
)

// Input names the absolute paths a payload execution operates on. Paths are
// always passed explicitly; payloads must not rely on the host's working
// directory layout.
type Input struct {
	DatasetPath string
	PayloadPath string
	OutputPath  string
}

// Executor executes a staged payload against a staged dataset.
type Executor interface {
	Execute(ctx context.Context, input Input) error
}

// Subprocess executes payloads as a child process of a configured
// interpreter with a closed environment. The dataset and output locations
// are handed over via DATASET_PATH and WEIGHTS_PATH.
type Subprocess struct {
	interpreter string
	timeout     time.Duration
}

// NewSubprocess creates a subprocess executor. timeout bounds a single
// execution; zero means no bound beyond the caller's context.
func NewSubprocess(interpreter string, timeout time.Duration) (*Subprocess, error) {
	if strings.TrimSpace(interpreter) == "" {
		return nil, fmt.Errorf("%w: interpreter is required", common.ErrInvalidConfig)
	}
	return &Subprocess{
		interpreter: interpreter,
		timeout:     timeout,
	}, nil
}

// Execute runs the payload and waits for it to finish. The child sees only
// the injected path variables and a minimal PATH, and its working directory
// is pinned to the staging area so relative writes stay contained.
func (e *Subprocess) Execute(ctx context.Context, input Input) error {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, e.interpreter, input.PayloadPath)
	cmd.Dir = filepath.Dir(input.PayloadPath)
	cmd.Env = []string{
		"PATH=/usr/local/bin:/usr/bin:/bin",
		fmt.Sprintf("DATASET_PATH=%s", input.DatasetPath),
		fmt.Sprintf("WEIGHTS_PATH=%s", input.OutputPath),
	}

	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	start := time.Now()
	err := cmd.Run()
	duration := time.Since(start)

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("payload exited with error: %w: %s", err, tail(output.String(), 512))
	}

	log.Debug().
		Str("payload", input.PayloadPath).
		Dur("duration", duration).
		Msg("Payload execution finished")
	return nil
}

// tail returns at most n trailing bytes of s, for failure diagnostics.
func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
