// Package workerruntime is the worker process's transcode loop (spec
// §4.6): concurrent encodes bounded by max_concurrent, progress reporting,
// cooperative cancellation polling, and upload-with-retry. Grounded on
// internal/transcode/run.go's thread-budget startWaitingTasks loop,
// adapted from an in-process task queue to the coordinator-polled model
// this rewrite's worker processes use.
package workerruntime

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/ripcoord/ripcoord/internal/coordclient"
	"github.com/ripcoord/ripcoord/internal/store"
	"github.com/ripcoord/ripcoord/internal/transcoder"
	"github.com/ripcoord/ripcoord/pkg/logger"
)

var log = logger.Get("WorkerRuntime")

const (
	cancelPollEvery  = 10 * time.Second
	uploadMaxRetries = 3
	uploadBackoff    = 5 * time.Second
)

// Config is the worker process's runtime configuration.
type Config struct {
	WorkerID string     `toml:"worker_id" env:"WORKER_ID" env-required:"true"`
	AgentID  string     `toml:"poll_agent_id" env:"WORKER_POLL_AGENT_ID"`
	Hostname string     `toml:"hostname" env:"HOSTNAME"`
	Type     store.WorkerType `toml:"type" env-default:"remote"`

	HWEncoders    []string `toml:"hw_encoders"`
	MaxConcurrent int      `toml:"max_concurrent" env-default:"1"`
	CodecSupport  []string `toml:"codec_support"`
	Priority      int      `toml:"priority" env-default:"0"`

	Coordinator coordclient.Config `toml:"coordinator"`

	StagingDir             string        `toml:"staging_dir" env-default:"/var/lib/ripcoord/transcode"`
	PollInterval           time.Duration `toml:"poll_interval" env-default:"5s"`
	DeleteLocalAfterUpload bool          `toml:"delete_local_after_upload" env-default:"true"`
}

// PollID is the agent-job-table key this worker polls: a colocated
// worker polls its agent's queue, a standalone worker polls its own ID.
func (c Config) PollID() string {
	if c.AgentID != "" {
		return c.AgentID
	}
	return c.WorkerID
}

// Runtime runs up to cfg.MaxConcurrent transcodes at once.
type Runtime struct {
	cfg    Config
	client *coordclient.Client

	mu        sync.Mutex
	inFlight  map[string]struct{}
}

func New(cfg Config, client *coordclient.Client) *Runtime {
	return &Runtime{cfg: cfg, client: client, inFlight: make(map[string]struct{})}
}

func (r *Runtime) Run(ctx context.Context) error {
	worker := store.Worker{
		ID:       r.cfg.WorkerID,
		Type:     r.cfg.Type,
		Hostname: r.cfg.Hostname,
		Priority: r.cfg.Priority,
		Enabled:  true,
		Capabilities: store.WorkerCapabilities{
			HWEncoders:    r.cfg.HWEncoders,
			MaxConcurrent: r.cfg.MaxConcurrent,
			CodecSupport:  r.cfg.CodecSupport,
		},
	}
	if r.cfg.AgentID != "" {
		worker.AgentID = &r.cfg.AgentID
	}
	if _, err := r.client.RegisterWorker(ctx, worker); err != nil {
		return fmt.Errorf("register worker: %w", err)
	}
	log.Emit(logger.SUCCESS, "worker %s registered\n", r.cfg.WorkerID)

	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	wg := &sync.WaitGroup{}
	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			return nil
		case <-ticker.C:
			if err := r.client.WorkerHeartbeat(ctx, r.cfg.WorkerID); err != nil {
				log.Warnf("heartbeat failed: %v\n", err)
			}
			r.pollAndDispatch(ctx, wg)
		}
	}
}

func (r *Runtime) pollAndDispatch(ctx context.Context, wg *sync.WaitGroup) {
	r.mu.Lock()
	budget := r.cfg.MaxConcurrent - len(r.inFlight)
	r.mu.Unlock()
	if budget <= 0 {
		return
	}

	jobs, err := r.client.AgentJobs(ctx, r.cfg.PollID())
	if err != nil {
		log.Warnf("poll jobs failed: %v\n", err)
		return
	}

	for _, job := range jobs {
		if budget == 0 {
			return
		}
		if job.Type != store.JobTranscode || job.Status != store.JobAssigned {
			continue
		}

		r.mu.Lock()
		if _, running := r.inFlight[job.ID]; running {
			r.mu.Unlock()
			continue
		}
		r.inFlight[job.ID] = struct{}{}
		r.mu.Unlock()
		budget--

		wg.Add(1)
		go func(job store.Job) {
			defer wg.Done()
			defer func() {
				r.mu.Lock()
				delete(r.inFlight, job.ID)
				r.mu.Unlock()
			}()
			r.runTranscodeJob(ctx, job)
		}(job)
	}
}

// runTranscodeJob implements spec §4.6 steps 1-4.
func (r *Runtime) runTranscodeJob(ctx context.Context, job store.Job) {
	if job.InputFile == nil || job.Preset == nil {
		r.failJob(ctx, job.ID, "transcode job missing input_file or preset")
		return
	}

	startProgress := 0
	if _, err := r.client.UpdateJob(ctx, job.ID, store.JobRunning, &startProgress, nil, nil, nil); err != nil {
		log.Warnf("mark transcode job %s running: %v\n", job.ID, err)
	}

	preset := transcoder.Preset{Name: *job.Preset, VideoCodec: *job.Preset}
	encoder := transcoder.EncoderFor(preset, r.cfg.HWEncoders)

	outputName := job.ID + ".mp4"
	if job.OutputName != nil && *job.OutputName != "" {
		outputName = *job.OutputName
	}
	outputPath := filepath.Join(r.cfg.StagingDir, outputName)

	cancelled := func() bool {
		isCancelled, err := r.client.IsJobCancelled(ctx, job.ID)
		if err != nil {
			log.Warnf("cancellation poll for job %s: %v\n", job.ID, err)
			return false
		}
		return isCancelled
	}

	onProgress := func(pct float64) {
		progress := int(pct)
		if _, err := r.client.UpdateJob(ctx, job.ID, store.JobRunning, &progress, nil, nil, nil); err != nil {
			log.Warnf("report progress for job %s: %v\n", job.ID, err)
		}
	}

	err := transcoder.Run(ctx, *job.InputFile, outputPath, encoder, onProgress, cancelled)
	switch {
	case errors.Is(err, transcoder.ErrCancelled):
		if _, uerr := r.client.UpdateJob(ctx, job.ID, store.JobCancelled, nil, nil, nil, nil); uerr != nil {
			log.Errorf("report cancellation for job %s: %v\n", job.ID, uerr)
		}
		return
	case err != nil:
		r.failJob(ctx, job.ID, fmt.Sprintf("transcode failed: %v", err))
		return
	}

	r.uploadAndComplete(ctx, job, outputPath)
}

// uploadAndComplete implements spec §4.6 step 3: upload with up to 3
// retries, a constant 5s apart (the delay does not grow with the attempt
// number); a final failure still completes the job with an attached
// warning rather than losing the work.
func (r *Runtime) uploadAndComplete(ctx context.Context, job store.Job, outputPath string) {
	discID := ""
	if job.DiscID != nil {
		discID = *job.DiscID
	}

	attempt := 0
	operation := func() error {
		attempt++
		_, err := r.client.UploadFile(ctx, outputPath, filepath.Base(outputPath), discID, job.ID)
		return err
	}

	policy := backoff.WithMaxRetries(backoff.NewConstantBackOff(uploadBackoff), uploadMaxRetries)
	uploadErr := backoff.Retry(operation, policy)

	progress := 100
	if uploadErr != nil {
		warning := fmt.Sprintf("upload failed after %d attempts, output retained at %s: %v", attempt, outputPath, uploadErr)
		if _, err := r.client.UpdateJob(ctx, job.ID, store.JobCompleted, &progress, &warning, &outputPath, nil); err != nil {
			log.Errorf("report upload-failed completion for job %s: %v\n", job.ID, err)
		}
		return
	}

	if _, err := r.client.UpdateJob(ctx, job.ID, store.JobCompleted, &progress, nil, &outputPath, nil); err != nil {
		log.Errorf("mark transcode job %s completed: %v\n", job.ID, err)
		return
	}

	if r.cfg.DeleteLocalAfterUpload {
		if job.InputFile != nil {
			_ = os.Remove(*job.InputFile)
		}
		_ = os.Remove(outputPath)
	}
}

func (r *Runtime) failJob(ctx context.Context, jobID, reason string) {
	log.Errorf("transcode job %s failed: %s\n", jobID, reason)
	if _, err := r.client.UpdateJob(ctx, jobID, store.JobFailed, nil, &reason, nil, nil); err != nil {
		log.Errorf("report failure for job %s: %v\n", jobID, err)
	}
}
