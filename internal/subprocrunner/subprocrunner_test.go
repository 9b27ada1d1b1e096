package subprocrunner_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ripcoord/ripcoord/internal/subprocrunner"
)

func TestRunDeliversEachLineToOnLineAndReturnsNilOnSuccess(t *testing.T) {
	var lines []string
	err := subprocrunner.Run(context.Background(), subprocrunner.Options{
		Command: "/bin/sh",
		Args:    []string{"-c", "echo one; echo two"},
		OnLine:  func(line string) { lines = append(lines, line) },
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two"}, lines)
}

func TestRunReturnsTheSubprocessExitError(t *testing.T) {
	err := subprocrunner.Run(context.Background(), subprocrunner.Options{
		Command: "/bin/sh",
		Args:    []string{"-c", "exit 3"},
	})

	assert.Error(t, err)
}

func TestRunWritesOutputToTheConfiguredLogFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "run.log")
	err := subprocrunner.Run(context.Background(), subprocrunner.Options{
		Command:     "/bin/sh",
		Args:        []string{"-c", "echo hello"},
		LogFilePath: logPath,
	})

	require.NoError(t, err)
	assert.FileExists(t, logPath)
}

func TestRunReturnsErrStalledWhenNoOutputArrivesInTime(t *testing.T) {
	err := subprocrunner.Run(context.Background(), subprocrunner.Options{
		Command:      "/bin/sh",
		Args:         []string{"-c", "sleep 5"},
		StallTimeout: 50 * time.Millisecond,
	})

	assert.ErrorIs(t, err, subprocrunner.ErrStalled)
}

func TestRunIsCancelledByContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := subprocrunner.Run(ctx, subprocrunner.Options{
		Command: "/bin/sh",
		Args:    []string{"-c", "sleep 5"},
	})

	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
