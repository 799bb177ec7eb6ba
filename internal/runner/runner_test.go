package runner

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCommand_String(t *testing.T) {
	t.Parallel()

	require.Equal(t, "conda", Command{Name: "conda"}.String())
	require.Equal(t, "conda env create --yes",
		Command{Name: "conda", Args: []string{"env", "create", "--yes"}}.String())
}

func TestExecRunner_CapturesOutput(t *testing.T) {
	t.Parallel()

	result, err := NewExecRunner().Run(context.Background(), Command{
		Name: "sh", Args: []string{"-c", "echo out; echo err >&2"},
	})
	require.NoError(t, err)
	require.Equal(t, "out\n", string(result.Stdout))
	require.Equal(t, "err\n", string(result.Stderr))
	require.Zero(t, result.ExitCode)
}

func TestExecRunner_NonZeroExitCarriesStderr(t *testing.T) {
	t.Parallel()

	result, err := NewExecRunner().Run(context.Background(), Command{
		Name: "sh", Args: []string{"-c", "echo broken manifest >&2; exit 3"},
	})
	require.Error(t, err)
	require.Equal(t, 3, result.ExitCode)
	require.Contains(t, err.Error(), "exited with code 3")
	require.Contains(t, err.Error(), "broken manifest")
}

func TestExecRunner_NoStderrPlaceholder(t *testing.T) {
	t.Parallel()

	_, err := NewExecRunner().Run(context.Background(), Command{
		Name: "sh", Args: []string{"-c", "exit 1"},
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "(no stderr)")
}

func TestExecRunner_MissingBinary(t *testing.T) {
	t.Parallel()

	_, err := NewExecRunner().Run(context.Background(), Command{Name: "definitely-not-a-tool-xyz"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to start")
}

func TestExecRunner_ContextCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := NewExecRunner().Run(ctx, Command{Name: "sleep", Args: []string{"10"}})
	require.Error(t, err)
	require.Contains(t, err.Error(), "interrupted")
}

func TestStderrTail_TruncatesLongTraces(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("x", 5000) + "END"
	tail := stderrTail([]byte(long))
	require.True(t, strings.HasPrefix(tail, "..."))
	require.True(t, strings.HasSuffix(tail, "END"))
	require.LessOrEqual(t, len(tail), 2051)
}
