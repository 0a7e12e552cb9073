// File: internal/evidence/probe.go
// Description: Opaque backend probes. A probe's exit code and output are
// evidence to record, never a reason to abort; only a command that cannot be
// parsed or started at all is marked with an error.

package evidence

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"

	"github.com/xkilldash9x/intentcheck/api/schemas"
	"github.com/xkilldash9x/intentcheck/internal/scenario"
)

// RunProbe executes one shell probe and records the full outcome.
func RunProbe(ctx context.Context, cmdline, cwd string, timeout time.Duration) *schemas.ProbeResult {
	result := &schemas.ProbeResult{
		Command: cmdline,
		Dir:     cwd,
		RanAt:   time.Now().UTC(),
	}

	argv, err := scenario.SplitTokens(cmdline)
	if err != nil {
		result.ExitCode = 2
		result.Err = "command parse error: " + err.Error()
		return result
	}
	if len(argv) == 0 {
		result.ExitCode = 2
		result.Err = "command was empty after parsing"
		return result
	}
	result.Argv = argv

	return RunProbeArgv(ctx, result, timeout)
}

// RunProbeArgvCommand executes an already-tokenized probe command.
func RunProbeArgvCommand(ctx context.Context, argv []string, cwd string, timeout time.Duration) *schemas.ProbeResult {
	result := &schemas.ProbeResult{
		Command: strings.Join(argv, " "),
		Argv:    argv,
		Dir:     cwd,
		RanAt:   time.Now().UTC(),
	}
	if len(argv) == 0 {
		result.ExitCode = 2
		result.Err = "command was empty"
		return result
	}
	return RunProbeArgv(ctx, result, timeout)
}

// RunProbeArgv runs result.Argv and fills in the outcome fields.
func RunProbeArgv(ctx context.Context, result *schemas.ProbeResult, timeout time.Duration) *schemas.ProbeResult {
	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, result.Argv[0], result.Argv[1:]...)
	cmd.Dir = result.Dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result.Stdout = stdout.String()
	result.Stderr = stderr.String()

	switch {
	case err == nil:
		result.ExitCode = 0
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		result.ExitCode = 2
		result.Err = "command timed out"
	case isExitError(err):
		result.ExitCode = cmd.ProcessState.ExitCode()
	default:
		result.ExitCode = 2
		result.Err = "command execution failed: " + err.Error()
	}
	return result
}

func isExitError(err error) bool {
	var exitErr *exec.ExitError
	return errors.As(err, &exitErr)
}
