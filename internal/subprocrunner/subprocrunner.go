// Package subprocrunner is the line-classifying subprocess supervisor
// shared by the ripper and transcoder (spec §4.5/§4.6): launch a child in
// its own process group, append stdout/stderr to a log file (the file is
// opened in append mode and never rotated), hand
// every line to a caller-supplied classifier, and enforce stall/hard
// timeouts by killing the whole group.
package subprocrunner

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/ripcoord/ripcoord/pkg/logger"
)

var log = logger.Get("SubprocRunner")

// LineHandler receives one line of combined stdout/stderr output.
type LineHandler func(line string)

// Options configures one run of a subprocess.
type Options struct {
	Command     string
	Args        []string
	LogFilePath string

	StallTimeout time.Duration
	HardTimeout  time.Duration

	OnLine LineHandler
}

// ErrStalled is returned when no output arrives for StallTimeout.
var ErrStalled = fmt.Errorf("subprocess stalled: no output before timeout")

// ErrHardTimeout is returned when the hard wall-clock timeout elapses.
var ErrHardTimeout = fmt.Errorf("subprocess exceeded hard timeout")

// Run launches the configured command and blocks until it exits, is
// stalled, hits its hard timeout, or ctx is cancelled. Returns the
// subprocess's exit error (if any), one of the sentinel timeout errors, or
// ctx.Err() when ctx is cancelled first.
func Run(ctx context.Context, opts Options) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	cmd := exec.CommandContext(runCtx, opts.Command, opts.Args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("attach stdout: %w", err)
	}
	cmd.Stderr = cmd.Stdout

	var logFile *os.File
	if opts.LogFilePath != "" {
		logFile, err = os.OpenFile(opts.LogFilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open log file %s: %w", opts.LogFilePath, err)
		}
		defer logFile.Close()
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start subprocess: %w", err)
	}

	lastOutput := make(chan struct{}, 1)
	lines := make(chan string)
	go scanLines(stdout, lines)

	var hardTimer, stallTimer *time.Timer
	if opts.HardTimeout > 0 {
		hardTimer = time.NewTimer(opts.HardTimeout)
		defer hardTimer.Stop()
	}
	if opts.StallTimeout > 0 {
		stallTimer = time.NewTimer(opts.StallTimeout)
		defer stallTimer.Stop()
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	var timeoutErr error
	for timeoutErr == nil {
		select {
		case line, ok := <-lines:
			if !ok {
				lines = nil
				continue
			}
			if logFile != nil {
				fmt.Fprintln(logFile, line)
			}
			if opts.OnLine != nil {
				opts.OnLine(line)
			}
			select {
			case lastOutput <- struct{}{}:
			default:
			}
			if stallTimer != nil {
				resetTimer(stallTimer, opts.StallTimeout)
			}

		case err := <-done:
			return err

		case <-timerC(stallTimer):
			timeoutErr = ErrStalled

		case <-timerC(hardTimer):
			timeoutErr = ErrHardTimeout

		case <-ctx.Done():
			timeoutErr = ctx.Err()
		}
	}

	killProcessGroup(cmd)
	<-done
	return timeoutErr
}

func scanLines(r io.Reader, out chan<- string) {
	defer close(out)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		out <- scanner.Text()
	}
}

func timerC(t *time.Timer) <-chan time.Time {
	if t == nil {
		return nil
	}
	return t.C
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}

func killProcessGroup(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	pgid, err := syscall.Getpgid(cmd.Process.Pid)
	if err != nil {
		log.Warnf("lookup process group for pid %d: %s", cmd.Process.Pid, err)
		_ = cmd.Process.Kill()
		return
	}
	if err := syscall.Kill(-pgid, syscall.SIGKILL); err != nil {
		log.Warnf("kill process group %d: %s", pgid, err)
	}
}
