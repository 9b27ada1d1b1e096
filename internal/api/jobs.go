package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ripcoord/ripcoord/internal/store"
)

type createJobRequest struct {
	InputFile           string   `json:"input_file" validate:"required"`
	OutputName          string   `json:"output_name" validate:"required"`
	SourceDiscName      string   `json:"source_disc_name"`
	InputFileSize       int64    `json:"input_file_size"`
	Thumbnails          []string `json:"thumbnails,omitempty"`
	ThumbnailTimestamps []int    `json:"thumbnail_timestamps,omitempty"`
}

// handleCreateJob implements spec §4.1 "Creation": the agent calls this
// after a successful rip to enqueue the downstream transcode job, which
// defaults to requires_approval=true.
func (s *Server) handleCreateJob(c echo.Context) error {
	var req createJobRequest
	if err := bindAndValidate(c, s.validator, &req); err != nil {
		return err
	}

	job, err := s.jobs.CreateTranscodeJob(req.InputFile, req.OutputName, req.SourceDiscName,
		req.InputFileSize, req.Thumbnails, req.ThumbnailTimestamps)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, job)
}

type updateJobRequest struct {
	Status     store.JobStatus `json:"status" validate:"required"`
	Progress   *int            `json:"progress,omitempty"`
	Error      *string         `json:"error,omitempty"`
	OutputFile *string         `json:"output_file,omitempty"`
	LogTail    *string         `json:"log_tail,omitempty"`
}

// handleUpdateJob implements spec §4.1 "Progress" and the terminal-status
// path: a transition to completed/failed/cancelled releases the owning
// agent's current_job_id (and the worker's slot, for transcode jobs).
func (s *Server) handleUpdateJob(c echo.Context) error {
	id := c.Param("id")
	var req updateJobRequest
	if err := bindAndValidate(c, s.validator, &req); err != nil {
		return err
	}

	job, err := s.jobs.Update(id, req.Status, req.Progress, req.Error, req.OutputFile, req.LogTail)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, job)
}

type approveJobRequest struct {
	WorkerID   string  `json:"worker_id,omitempty"`
	Preset     string  `json:"preset" validate:"required"`
	OutputName *string `json:"output_name,omitempty"`
}

// handleApproveJob implements spec §4.1 "Approval": resolves a pending
// transcode job onto a worker+preset. An omitted worker_id lets the
// configured assignment strategy pick one; resource contention (no workers
// available) is surfaced as 503 per spec §7, not 400.
func (s *Server) handleApproveJob(c echo.Context) error {
	id := c.Param("id")
	var req approveJobRequest
	if err := bindAndValidate(c, s.validator, &req); err != nil {
		return err
	}

	workerID := req.WorkerID
	if workerID == "" {
		picked, err := s.jobs.PickWorker()
		if err != nil {
			return httpError(err)
		}
		workerID = picked.ID
	}

	job, err := s.jobs.Approve(id, workerID, req.Preset, req.OutputName)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, job)
}

func (s *Server) handleCancelJob(c echo.Context) error {
	job, err := s.jobs.Cancel(c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, job)
}

func (s *Server) handleIsCancelled(c echo.Context) error {
	cancelled, err := s.jobs.IsCancelled(c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{"cancelled": cancelled})
}
