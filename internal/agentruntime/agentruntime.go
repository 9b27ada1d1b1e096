// Package agentruntime is the agent process's main loop (spec §4.5): disc
// detection, the single-flight rip gate, rip execution, thumbnail
// extraction, and downstream transcode-job creation. Grounded on
// pkg/worker/pool.go's start/wakeup/close shape and internal/transcode/
// run.go's thread-budget poll loop, generalized from an in-process task
// queue down to the coordinator-polled single-flight gate spec §4.5 and
// §5 actually call for ("a single supervisor thread owns the
// rip_in_progress gate").
package agentruntime

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ripcoord/ripcoord/internal/coordclient"
	"github.com/ripcoord/ripcoord/internal/ripper"
	"github.com/ripcoord/ripcoord/internal/store"
	"github.com/ripcoord/ripcoord/pkg/logger"
)

var log = logger.Get("AgentRuntime")

// Config is the agent process's runtime configuration.
type Config struct {
	AgentID string `toml:"agent_id" env:"AGENT_ID" env-required:"true"`
	Name    string `toml:"name" env:"AGENT_NAME"`

	CanRip       bool `toml:"can_rip" env-default:"true"`
	CanTranscode bool `toml:"can_transcode" env-default:"false"`

	Coordinator coordclient.Config `toml:"coordinator"`
	Ripper      ripper.Config      `toml:"ripper"`

	OutputDir     string `toml:"output_dir" env:"AGENT_OUTPUT_DIR" env-default:"/var/lib/ripcoord/rips"`
	LogDir        string `toml:"log_dir" env:"AGENT_LOG_DIR" env-default:"/var/lib/ripcoord/logs"`
	LockfilePath  string `toml:"lockfile_path" env-default:"/tmp/ripcoord-agent.pid"`
	PollInterval  time.Duration `toml:"poll_interval" env-default:"5s"`

	ThumbnailCount  int   `toml:"thumbnail_count" env-default:"4"`
	ThumbnailOffsetsSec []int `toml:"thumbnail_offsets_sec"`

	DeleteLocalAfterUpload bool `toml:"delete_local_after_upload" env-default:"true"`
}

// Runtime owns the single-flight rip gate and the coordinator client;
// Run blocks polling for rip jobs until ctx is cancelled.
type Runtime struct {
	cfg    Config
	client *coordclient.Client

	ripInProgress bool
}

func New(cfg Config, client *coordclient.Client) *Runtime {
	return &Runtime{cfg: cfg, client: client}
}

// Run registers the agent and polls for rip jobs until ctx is cancelled,
// enforcing the single-flight invariant: only one rip job is ever running
// at a time per agent (spec §4.5).
func (r *Runtime) Run(ctx context.Context) error {
	caps := store.AgentCapabilities{CanRip: r.cfg.CanRip, CanTranscode: r.cfg.CanTranscode}
	if _, err := r.client.RegisterAgent(ctx, r.cfg.AgentID, r.cfg.Name, caps); err != nil {
		return fmt.Errorf("register agent: %w", err)
	}
	log.Emit(logger.SUCCESS, "agent %s registered\n", r.cfg.AgentID)

	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := r.client.AgentHeartbeat(ctx, r.cfg.AgentID); err != nil {
				log.Warnf("heartbeat failed: %v\n", err)
			}
			r.pollOnce(ctx)
		}
	}
}

// pollOnce fetches this agent's jobs and, if not already ripping, runs the
// first eligible rip job to completion before returning (spec §4.5 "if
// already busy, skip; else execute it to completion before polling the
// next").
func (r *Runtime) pollOnce(ctx context.Context) {
	if r.ripInProgress {
		return
	}

	jobs, err := r.client.AgentJobs(ctx, r.cfg.AgentID)
	if err != nil {
		log.Warnf("poll jobs failed: %v\n", err)
		return
	}

	for _, job := range jobs {
		if job.Type != store.JobRip || job.Status != store.JobAssigned {
			continue
		}

		r.ripInProgress = true
		r.runRipJob(ctx, job)
		r.ripInProgress = false
		return
	}
}

// runRipJob implements spec §4.5 steps 1-8 for a single assigned rip job.
func (r *Runtime) runRipJob(ctx context.Context, job store.Job) {
	if job.DiscID == nil || job.TitleIndex == nil {
		r.failJob(ctx, job.ID, "rip job missing disc_id or title_index")
		return
	}

	disc, err := r.client.GetDisc(ctx, *job.DiscID)
	if err != nil {
		log.Errorf("fetch disc %s for job %s: %v\n", *job.DiscID, job.ID, err)
		return
	}

	switch disc.PreviewStatus {
	case store.PreviewPending:
		// Redelivered once preview is decided (spec §4.5 step 1).
		progress := 0
		if _, err := r.client.UpdateJob(ctx, job.ID, store.JobPending, &progress, nil, nil, nil); err != nil {
			log.Warnf("demote job %s pending preview decision: %v\n", job.ID, err)
		}
		return
	case store.PreviewRejected:
		r.failJob(ctx, job.ID, "disc preview was rejected")
		return
	}

	discIndex, err := ripper.Analyze(ctx, r.cfg.Ripper, disc.Drive)
	if err != nil {
		r.failJob(ctx, job.ID, fmt.Sprintf("analyze drive: %v", err))
		return
	}

	outputDir := filepath.Join(r.cfg.OutputDir, job.ID)
	logPath := filepath.Join(r.cfg.LogDir, job.ID+".log")
	reporter := progressReporter{ctx: ctx, client: r.client, jobID: job.ID}

	startProgress := 0
	if _, err := r.client.UpdateJob(ctx, job.ID, store.JobRunning, &startProgress, nil, nil, nil); err != nil {
		log.Warnf("mark rip job %s running: %v\n", job.ID, err)
	}

	result, err := ripper.Rip(ctx, r.cfg.Ripper, discIndex, *job.TitleIndex, outputDir, logPath, reporter)
	if err != nil {
		r.failJobWithLog(ctx, job.ID, fmt.Sprintf("rip failed: %v", err), result.LogTail)
		return
	}

	finalName := job.ID + ".mkv"
	if job.OutputName != nil && *job.OutputName != "" {
		finalName = *job.OutputName
	}
	finalPath := filepath.Join(outputDir, finalName)
	if result.OutputFile != finalPath {
		if err := os.Rename(result.OutputFile, finalPath); err != nil {
			r.failJob(ctx, job.ID, fmt.Sprintf("rename ripped output: %v", err))
			return
		}
	}

	thumbnails, offsets := r.extractThumbnails(ctx, finalPath)

	progress := 100
	if _, err := r.client.UpdateJob(ctx, job.ID, store.JobCompleted, &progress, nil, &finalPath, nil); err != nil {
		log.Errorf("mark rip job %s completed: %v\n", job.ID, err)
		return
	}

	if _, err := r.client.CreateTranscodeJob(ctx, finalPath, finalName, disc.Name, 0, thumbnails, offsets); err != nil {
		log.Errorf("create downstream transcode job for rip %s: %v\n", job.ID, err)
	}

	r.checkDiscRipComplete(ctx, *job.DiscID, disc.AgentID)
}

// checkDiscRipComplete implements spec §4.5 step 8: once every rip job for
// a disc has reached a terminal state, the coordinator is told so it can
// fire the optional auto-eject side effect; this runtime's part is simply
// polling the already-computed status.
func (r *Runtime) checkDiscRipComplete(ctx context.Context, discID, agentID string) {
	status, err := r.client.RipStatus(ctx, discID)
	if err != nil {
		log.Warnf("rip-status check for disc %s: %v\n", discID, err)
		return
	}
	if status.AllRipsComplete {
		log.Infof("all rip jobs for disc %s complete (%d/%d, %d failed)\n", discID, status.Completed, status.Total, status.Failed)
	}
}

func (r *Runtime) failJob(ctx context.Context, jobID, reason string) {
	r.failJobWithLog(ctx, jobID, reason, "")
}

func (r *Runtime) failJobWithLog(ctx context.Context, jobID, reason, logTail string) {
	log.Errorf("rip job %s failed: %s\n", jobID, reason)
	var logPtr *string
	if logTail != "" {
		logPtr = &logTail
	}
	if _, err := r.client.UpdateJob(ctx, jobID, store.JobFailed, nil, &reason, nil, logPtr); err != nil {
		log.Errorf("report failure for job %s: %v\n", jobID, err)
	}
}

// progressReporter adapts coordclient.UpdateJob to ripper.ProgressReporter,
// streaming an update on every 10%-advance decile change (spec §4.5 step 2).
type progressReporter struct {
	ctx    context.Context
	client *coordclient.Client
	jobID  string
}

func (p progressReporter) ReportProgress(pct int) {
	if _, err := p.client.UpdateJob(p.ctx, p.jobID, store.JobRunning, &pct, nil, nil, nil); err != nil {
		log.Warnf("report progress for job %s: %v\n", p.jobID, err)
	}
}
