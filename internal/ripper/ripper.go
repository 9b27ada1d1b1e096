// Package ripper drives the disc-ripping subprocess's "robot mode" wire
// protocol and the post-rip housekeeping named in spec §4.5: progress
// streaming every 10% advance, stall/hard timeouts, analyze retry, and
// output location. Thumbnail extraction lives in internal/agentruntime.
package ripper

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/ripcoord/ripcoord/internal/subprocrunner"
	"github.com/ripcoord/ripcoord/pkg/logger"
)

var log = logger.Get("Ripper")

const (
	DefaultStallTimeout  = 5 * time.Minute
	DefaultHardTimeout   = 2 * time.Hour
	DefaultAnalyzeTimeout = 5 * time.Minute
	analyzeMaxRetries    = 3
	analyzeRetryBackoff  = 5 * time.Second
)

var (
	rePRGV  = regexp.MustCompile(`^PRGV:(\d+),(\d+),(\d+)$`)
	reDrive = regexp.MustCompile(`^DRV:(\d+),\d+,\d+,\d+,"([^"]*)","([^"]*)","([^"]*)"`)
)

// ProgressReporter receives progress updates the rip should stream to the
// coordinator every time it advances 10% (spec §4.5 step 2).
type ProgressReporter interface {
	ReportProgress(pct int)
}

// Config carries the subprocess binary path and the timeouts spec §4.5
// names, all with spec defaults.
type Config struct {
	Binary        string
	StallTimeout  time.Duration
	HardTimeout   time.Duration
	AnalyzeTimeout time.Duration
}

func DefaultConfig(binary string) Config {
	return Config{
		Binary:         binary,
		StallTimeout:   DefaultStallTimeout,
		HardTimeout:    DefaultHardTimeout,
		AnalyzeTimeout: DefaultAnalyzeTimeout,
	}
}

// Result is the outcome of a completed rip.
type Result struct {
	OutputFile string
	LogTail    string
}

// Rip runs the ripping subprocess against discIndex/titleIndex, writing
// output under outputDir, streaming progress through reporter, and
// returning the path to the produced .mkv file (spec §4.5 steps 2-5).
func Rip(ctx context.Context, cfg Config, discIndex, titleIndex int, outputDir, logFilePath string, reporter ProgressReporter) (Result, error) {
	if err := os.MkdirAll(outputDir, os.ModePerm); err != nil {
		return Result{}, fmt.Errorf("create output dir %s: %w", outputDir, err)
	}

	lastReportedDecile := -1
	var tail ring
	onLine := func(line string) {
		tail.push(line)
		if pct, ok := parseProgress(line); ok {
			decile := pct / 10
			if decile != lastReportedDecile && reporter != nil {
				lastReportedDecile = decile
				reporter.ReportProgress(pct)
			}
		}
	}

	err := subprocrunner.Run(ctx, subprocrunner.Options{
		Command:      cfg.Binary,
		Args:         []string{"mkv", "--robot", "--progress=-same", fmt.Sprintf("disc:%d", discIndex), strconv.Itoa(titleIndex), outputDir},
		LogFilePath:  logFilePath,
		StallTimeout: cfg.StallTimeout,
		HardTimeout:  cfg.HardTimeout,
		OnLine:       onLine,
	})
	if err != nil {
		return Result{LogTail: tail.string()}, fmt.Errorf("rip subprocess: %w", err)
	}

	output, err := newestMKV(outputDir)
	if err != nil {
		return Result{LogTail: tail.string()}, err
	}
	return Result{OutputFile: output, LogTail: tail.string()}, nil
}

// Analyze probes the drive in robot mode to resolve a drive-letter to disc
// index mapping (spec §6 "a probe query (invalid index) returns a drive
// listing"). A failed probe is retried up to 3 times, 5 s apart, so the
// tool runs at most 4 times.
func Analyze(ctx context.Context, cfg Config, drive string) (discIndex int, err error) {
	operation := func() error {
		found := -1
		onLine := func(line string) {
			if m := reDrive.FindStringSubmatch(line); m != nil {
				if strings.Contains(m[3], drive) || strings.EqualFold(m[2], drive) {
					idx, convErr := strconv.Atoi(m[1])
					if convErr == nil {
						found = idx
					}
				}
			}
		}

		runErr := subprocrunner.Run(ctx, subprocrunner.Options{
			Command:      cfg.Binary,
			Args:         []string{"-r", "info", "disc:9999"},
			StallTimeout: cfg.AnalyzeTimeout,
			HardTimeout:  cfg.AnalyzeTimeout,
			OnLine:       onLine,
		})
		if runErr != nil && found < 0 {
			return runErr
		}
		if found < 0 {
			return fmt.Errorf("drive %s not found in analyze output", drive)
		}
		discIndex = found
		return nil
	}

	policy := backoff.WithMaxRetries(backoff.NewConstantBackOff(analyzeRetryBackoff), analyzeMaxRetries)
	if err := backoff.Retry(operation, policy); err != nil {
		return -1, fmt.Errorf("analyze drive %s: %w", drive, err)
	}
	return discIndex, nil
}

// parseProgress extracts the current/total/max triple from a PRGV line and
// returns an overall percentage (spec §6 "two integers + max").
func parseProgress(line string) (int, bool) {
	m := rePRGV.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	current, _ := strconv.Atoi(m[1])
	max, _ := strconv.Atoi(m[3])
	if max == 0 {
		return 0, false
	}
	return current * 100 / max, true
}

func newestMKV(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("read output dir %s: %w", dir, err)
	}

	var newest string
	var newestTime time.Time
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".mkv") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(newestTime) {
			newest = e.Name()
			newestTime = info.ModTime()
		}
	}
	if newest == "" {
		return "", fmt.Errorf("no .mkv produced in %s", dir)
	}
	return filepath.Join(dir, newest), nil
}

// ring is a small fixed-size tail buffer for captured output (spec §7
// "captured stderr/last stdout lines").
type ring struct {
	lines [50]string
	next  int
	full  bool
}

func (r *ring) push(line string) {
	r.lines[r.next] = line
	r.next = (r.next + 1) % len(r.lines)
	if r.next == 0 {
		r.full = true
	}
}

func (r *ring) string() string {
	n := r.next
	if r.full {
		ordered := make([]string, 0, len(r.lines))
		ordered = append(ordered, r.lines[n:]...)
		ordered = append(ordered, r.lines[:n]...)
		return strings.Join(ordered, "\n")
	}
	return strings.Join(r.lines[:n], "\n")
}
