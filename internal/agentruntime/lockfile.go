package agentruntime

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
)

// AcquireLockfile enforces single-instance-per-host (spec §4.5 "single-
// instance on the agent host is enforced by a PID lockfile"): it compares
// any PID already recorded at path against live processes before claiming
// it, so a crashed agent's stale lockfile doesn't block a restart.
func AcquireLockfile(path string) (func(), error) {
	if existing, err := os.ReadFile(path); err == nil {
		if pid, perr := strconv.Atoi(strings.TrimSpace(string(existing))); perr == nil && pid > 0 && processAlive(pid) {
			return nil, fmt.Errorf("another agent instance is already running (pid %d, lockfile %s)", pid, path)
		}
	}

	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		return nil, fmt.Errorf("write lockfile %s: %w", path, err)
	}

	return func() { os.Remove(path) }, nil
}

func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// On Unix, FindProcess always succeeds; signal 0 probes liveness
	// without actually sending a signal.
	return proc.Signal(syscall.Signal(0)) == nil
}
