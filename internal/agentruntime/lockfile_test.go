package agentruntime_test

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ripcoord/ripcoord/internal/agentruntime"
)

func TestAcquireLockfileWritesOwnPID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.pid")

	release, err := agentruntime.AcquireLockfile(path)
	require.NoError(t, err)
	defer release()

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), string(contents))
}

func TestAcquireLockfileReleaseRemovesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.pid")

	release, err := agentruntime.AcquireLockfile(path)
	require.NoError(t, err)

	release()

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestAcquireLockfileRejectsWhenOwnerStillAlive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.pid")

	require.NoError(t, os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644))

	_, err := agentruntime.AcquireLockfile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already running")
}

func TestAcquireLockfileReclaimsStaleLockfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.pid")

	// PID 1 is init/launchd on virtually every host this test runs on, but
	// a PID far outside any plausible live range reliably reads as dead.
	require.NoError(t, os.WriteFile(path, []byte("999999"), 0o644))

	release, err := agentruntime.AcquireLockfile(path)
	require.NoError(t, err)
	defer release()

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), string(contents))
}
