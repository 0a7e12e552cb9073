// File: internal/evidence/probe_test.go
package evidence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunProbeSuccess(t *testing.T) {
	res := RunProbe(context.Background(), "echo hello", "", 10*time.Second)
	require.NotNil(t, res)
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, "hello\n", res.Stdout)
	assert.Empty(t, res.Err)
	assert.Equal(t, []string{"echo", "hello"}, res.Argv)
}

func TestRunProbeNonzeroExitIsEvidence(t *testing.T) {
	res := RunProbe(context.Background(), "sh -c 'echo oops >&2; exit 7'", "", 10*time.Second)
	assert.Equal(t, 7, res.ExitCode)
	assert.Equal(t, "oops\n", res.Stderr)
	assert.Empty(t, res.Err)
}

func TestRunProbeParseError(t *testing.T) {
	res := RunProbe(context.Background(), `broken "quote`, "", time.Second)
	assert.Equal(t, 2, res.ExitCode)
	assert.Contains(t, res.Err, "parse error")
}

func TestRunProbeMissingBinary(t *testing.T) {
	res := RunProbe(context.Background(), "definitely-not-a-binary-zzz", "", time.Second)
	assert.Equal(t, 2, res.ExitCode)
	assert.Contains(t, res.Err, "execution failed")
}

func TestRunProbeTimeout(t *testing.T) {
	res := RunProbe(context.Background(), "sleep 5", "", 100*time.Millisecond)
	assert.Equal(t, 2, res.ExitCode)
	assert.NotEmpty(t, res.Err)
}

func TestRunProbeArgvCommand(t *testing.T) {
	res := RunProbeArgvCommand(context.Background(), []string{"echo", "a b"}, "", time.Second)
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, "a b\n", res.Stdout)
	assert.Equal(t, "echo a b", res.Command)
}
