// Package queue implements job creation, approval, assignment, polling,
// progress reporting and cancellation (spec §4.1), atop internal/store and
// internal/assign. It is the sole mutator of job state reachable from the
// coordinator's HTTP layer, mirroring the teacher's service-owns-its-store
// pattern (internal/ingest.ingestService, internal/transcode.TranscodeService).
package queue

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/ripcoord/ripcoord/internal/assign"
	"github.com/ripcoord/ripcoord/internal/event"
	"github.com/ripcoord/ripcoord/internal/store"
	"github.com/ripcoord/ripcoord/pkg/logger"
)

var log = logger.Get("Queue")

// AssignmentConfig carries the operator-configured strategy and filter
// preferences consulted at transcode approval (spec §4.1).
type AssignmentConfig struct {
	Strategy      string
	PreferGPU     bool
	RequiredCodec string
}

type Service struct {
	db       store.Manager
	jobs     *store.JobStore
	agents   *store.AgentStore
	workers  *store.WorkerStore
	bus      event.Dispatcher
	strategy assign.Strategy
	cfg      AssignmentConfig
}

func New(db store.Manager, bus event.Dispatcher, cfg AssignmentConfig) *Service {
	sqlxDB := db.GetSqlxDB()
	return &Service{
		db:       db,
		jobs:     store.NewJobStore(sqlxDB),
		agents:   store.NewAgentStore(sqlxDB),
		workers:  store.NewWorkerStore(sqlxDB),
		bus:      bus,
		strategy: assign.New(cfg.Strategy),
		cfg:      cfg,
	}
}

// CreateRipJob creates a rip job for a disc title, auto-assigned to the
// agent owning the disc (spec §4.1 "Auto-assignment (non-transcode, e.g.
// rip) picks the agent that owns the target disc").
func (s *Service) CreateRipJob(discID, agentID string, titleIndex int, inputFile string, priority int) (store.Job, error) {
	job, err := s.jobs.Create(store.Job{
		Type:       store.JobRip,
		Priority:   priority,
		DiscID:     &discID,
		TitleIndex: &titleIndex,
		InputFile:  &inputFile,
	})
	if err != nil {
		return store.Job{}, err
	}

	job, err = s.jobs.Assign(job.ID, agentID, nil, nil)
	if err != nil {
		return store.Job{}, fmt.Errorf("auto-assign rip job to owning agent: %w", err)
	}
	if err := s.agents.AssignJob(agentID, job.ID); err != nil {
		log.Warnf("failed to mark agent %s busy with job %s: %v\n", agentID, job.ID, err)
	}

	s.dispatch(event.JobCreated, job.ID)
	return job, nil
}

// CreateTranscodeJob is called by the agent after a successful rip. It
// defaults to requires_approval=true and carries the post-rip metadata
// (spec §4.1 "Creation").
func (s *Service) CreateTranscodeJob(inputFile, outputName, sourceDiscName string, inputFileSize int64, thumbnails []string, thumbnailTimestamps []int) (store.Job, error) {
	job, err := s.jobs.Create(store.Job{
		Type:                store.JobTranscode,
		Priority:            50,
		InputFile:           &inputFile,
		OutputName:          &outputName,
		RequiresApproval:    true,
		SourceDiscName:      &sourceDiscName,
		InputFileSize:       &inputFileSize,
		Thumbnails:          thumbnails,
		ThumbnailTimestamps: thumbnailTimestamps,
	})
	if err != nil {
		return store.Job{}, err
	}
	s.dispatch(event.JobCreated, job.ID)
	return job, nil
}

// Approve resolves a pending+requires_approval transcode job onto a
// worker/agent and transitions it to assigned (spec §4.1 "Approval").
func (s *Service) Approve(jobID, workerID, preset string, outputName *string) (store.Job, error) {
	job, err := s.jobs.Get(jobID)
	if err != nil {
		return store.Job{}, err
	}
	if job.Type != store.JobTranscode || job.Status != store.JobPending || !job.RequiresApproval {
		return store.Job{}, store.ErrNotApprovable
	}

	worker, err := s.workers.Get(workerID)
	if err != nil {
		return store.Job{}, fmt.Errorf("resolve approval worker: %w", err)
	}
	agentID := workerID
	if worker.AgentID != nil {
		agentID = *worker.AgentID
	}

	assigned, err := s.jobs.Assign(jobID, agentID, &preset, outputName)
	if err != nil {
		return store.Job{}, err
	}
	if err := s.workers.AssignJob(workerID, jobID); err != nil {
		log.Warnf("failed to record job %s against worker %s stats: %v\n", jobID, workerID, err)
	}

	s.dispatch(event.JobUpdated, jobID)
	return assigned, nil
}

// PickWorker runs the configured assignment strategy over the available
// worker pool, used by the approval HTTP handler to suggest (or validate) a
// worker_id before calling Approve.
func (s *Service) PickWorker() (store.Worker, error) {
	all, err := s.workers.Available()
	if err != nil {
		return store.Worker{}, err
	}
	return assign.Pick(s.strategy, all, s.cfg.PreferGPU, s.cfg.RequiredCodec)
}

// JobsForAgent implements spec §4.1 "Polling".
func (s *Service) JobsForAgent(agentID string) ([]store.Job, error) {
	return s.jobs.ForAgent(agentID)
}

// Update applies a progress/status report (spec §4.1 "Progress"). On a
// terminal status it releases the agent's current_job_id and, for
// transcode jobs, the worker's slot.
func (s *Service) Update(jobID string, status store.JobStatus, progress *int, errMsg, outputFile, logTail *string) (store.Job, error) {
	job, err := s.jobs.Update(jobID, status, progress, errMsg, outputFile, logTail)
	if err != nil {
		return store.Job{}, err
	}

	if status.Terminal() {
		if job.AssignedAgentID != nil {
			if err := store.ReleaseAgentOnTerminal(s.db.GetSqlxDB(), *job.AssignedAgentID, jobID); err != nil {
				log.Warnf("failed to release agent on job %s terminal: %v\n", jobID, err)
			}
		}
		s.dispatchTerminal(job)
	} else {
		s.dispatch(event.JobUpdated, jobID)
	}

	return job, nil
}

// DemoteIfPreviewPending implements spec §4.5 step 1: a rip job whose
// disc's preview is still pending is sent back to pending for later
// redelivery rather than failed.
func (s *Service) DemoteIfPreviewPending(jobID string, previewStatus store.PreviewStatus) (bool, error) {
	if previewStatus == store.PreviewRejected {
		errMsg := "disc preview was rejected"
		_, err := s.Update(jobID, store.JobFailed, nil, &errMsg, nil, nil)
		return false, err
	}
	if previewStatus != store.PreviewPending {
		return false, nil
	}
	if err := s.jobs.Demote(jobID); err != nil {
		return false, err
	}
	return true, nil
}

// Cancel implements spec §4.1 "Cancellation".
func (s *Service) Cancel(jobID string) (store.Job, error) {
	job, err := s.jobs.Cancel(jobID)
	if err != nil {
		if errors.Is(err, store.ErrIllegalTransition) {
			return store.Job{}, fmt.Errorf("job %s is already terminal: %w", jobID, err)
		}
		return store.Job{}, err
	}
	if job.AssignedAgentID != nil {
		if err := store.ReleaseAgentOnTerminal(s.db.GetSqlxDB(), *job.AssignedAgentID, jobID); err != nil {
			log.Warnf("failed to release agent on cancel of job %s: %v\n", jobID, err)
		}
	}
	s.dispatch(event.JobCancelled, jobID)
	return job, nil
}

func (s *Service) IsCancelled(jobID string) (bool, error) {
	return s.jobs.IsCancelled(jobID)
}

func (s *Service) RipStatusForDisc(discID string) (store.RipStatus, error) {
	return s.jobs.RipStatusForDisc(discID)
}

func (s *Service) Get(jobID string) (store.Job, error) {
	return s.jobs.Get(jobID)
}

func (s *Service) dispatchTerminal(job store.Job) {
	switch job.Status {
	case store.JobCompleted:
		s.dispatch(event.JobCompleted, job.ID)
	case store.JobFailed:
		s.dispatch(event.JobFailed, job.ID)
	case store.JobCancelled:
		s.dispatch(event.JobCancelled, job.ID)
	}
}

func (s *Service) dispatch(e event.Event, jobID string) {
	id, err := uuid.Parse(jobID)
	if err != nil {
		log.Warnf("job id %q is not a uuid, skipping %s dispatch\n", jobID, e)
		return
	}
	s.bus.Dispatch(e, id)
}
