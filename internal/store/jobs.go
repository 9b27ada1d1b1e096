package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

// ErrIllegalTransition is returned when a job mutation would violate the
// status state machine in spec §3/§4.1 (P2).
var ErrIllegalTransition = errors.New("illegal job status transition")

// ErrNotApprovable is returned by Approve when the job isn't a
// pending+requires_approval transcode job.
var ErrNotApprovable = errors.New("job is not awaiting approval")

// JobStore exposes the persistence operations backing internal/queue.
type JobStore struct {
	q Queryable
}

func NewJobStore(q Queryable) *JobStore { return &JobStore{q: q} }

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

const jobColumns = `id, type, status, priority, disc_id, title_index, input_file, output_name,
	output_file, preset, assigned_agent_id, assigned_at, requires_approval, source_disc_name,
	input_file_size, progress, error, log_tail, created_at, started_at, completed_at,
	thumbnails, thumbnail_timestamps`

type jobRow struct {
	ID                  string      `db:"id"`
	Type                string      `db:"type"`
	Status              string      `db:"status"`
	Priority            int         `db:"priority"`
	DiscID              *string     `db:"disc_id"`
	TitleIndex          *int        `db:"title_index"`
	InputFile           *string     `db:"input_file"`
	OutputName          *string     `db:"output_name"`
	OutputFile          *string     `db:"output_file"`
	Preset              *string     `db:"preset"`
	AssignedAgentID     *string     `db:"assigned_agent_id"`
	AssignedAt          *time.Time  `db:"assigned_at"`
	RequiresApproval    bool        `db:"requires_approval"`
	SourceDiscName      *string     `db:"source_disc_name"`
	InputFileSize       *int64      `db:"input_file_size"`
	Progress            int         `db:"progress"`
	Error               *string     `db:"error"`
	LogTail             *string     `db:"log_tail"`
	CreatedAt           time.Time   `db:"created_at"`
	StartedAt           *time.Time  `db:"started_at"`
	CompletedAt         *time.Time  `db:"completed_at"`
	Thumbnails          StringSlice `db:"thumbnails"`
	ThumbnailTimestamps IntSlice    `db:"thumbnail_timestamps"`
}

func (r jobRow) toJob() Job {
	return Job{
		ID:                  r.ID,
		Type:                JobType(r.Type),
		Status:               JobStatus(r.Status),
		Priority:             r.Priority,
		DiscID:               r.DiscID,
		TitleIndex:           r.TitleIndex,
		InputFile:            r.InputFile,
		OutputName:           r.OutputName,
		OutputFile:           r.OutputFile,
		Preset:               r.Preset,
		AssignedAgentID:      r.AssignedAgentID,
		AssignedAt:           r.AssignedAt,
		RequiresApproval:     r.RequiresApproval,
		SourceDiscName:       r.SourceDiscName,
		InputFileSize:        r.InputFileSize,
		Progress:             r.Progress,
		Error:                r.Error,
		LogTail:              r.LogTail,
		CreatedAt:            r.CreatedAt,
		StartedAt:            r.StartedAt,
		CompletedAt:          r.CompletedAt,
		Thumbnails:           r.Thumbnails,
		ThumbnailTimestamps:  r.ThumbnailTimestamps,
	}
}

// legalTransitions enumerates every allowed status -> status edge (P2).
// assigned -> pending is the single demotion path used when a rip job's
// disc preview is still pending (spec §4.5 step 1).
var legalTransitions = map[JobStatus]map[JobStatus]bool{
	JobPending:   {JobQueued: true, JobAssigned: true, JobCancelled: true},
	JobQueued:    {JobAssigned: true, JobCancelled: true},
	JobAssigned:  {JobRunning: true, JobPending: true, JobCancelled: true, JobFailed: true},
	JobRunning:   {JobCompleted: true, JobFailed: true, JobCancelled: true},
	JobCompleted: {},
	JobFailed:    {},
	JobCancelled: {},
}

// Create inserts a new job in pending status (spec §4.1 "Creation").
func (s *JobStore) Create(j Job) (Job, error) {
	if j.ID == "" {
		j.ID = NewID()
	}
	const q = `
		INSERT INTO jobs (id, type, status, priority, disc_id, title_index, input_file, output_name,
			preset, requires_approval, source_disc_name, input_file_size, thumbnails, thumbnail_timestamps)
		VALUES ($1, $2, 'pending', $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING ` + jobColumns

	var row jobRow
	err := s.q.Get(&row, q, j.ID, j.Type, j.Priority, j.DiscID, j.TitleIndex, j.InputFile, j.OutputName,
		j.Preset, j.RequiresApproval, j.SourceDiscName, j.InputFileSize, orEmptySlice(j.Thumbnails), orEmptyInts(j.ThumbnailTimestamps))
	if err != nil {
		return Job{}, fmt.Errorf("create job: %w", err)
	}
	return row.toJob(), nil
}

func orEmptySlice(s StringSlice) StringSlice {
	if s == nil {
		return StringSlice{}
	}
	return s
}

func orEmptyInts(s IntSlice) IntSlice {
	if s == nil {
		return IntSlice{}
	}
	return s
}

func (s *JobStore) Get(id string) (Job, error) {
	var row jobRow
	err := s.q.Get(&row, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Job{}, ErrNotFound
	}
	if err != nil {
		return Job{}, fmt.Errorf("get job: %w", err)
	}
	return row.toJob(), nil
}

// ForAgent returns jobs assigned to agentID in {assigned, running}, newest
// priority first (spec §4.1 "Polling").
func (s *JobStore) ForAgent(agentID string) ([]Job, error) {
	query, args, err := psql.Select(jobColumns).
		From("jobs").
		Where(sq.Eq{"assigned_agent_id": agentID}).
		Where(sq.Eq{"status": []string{string(JobAssigned), string(JobRunning)}}).
		OrderBy("priority ASC", "created_at ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build jobs_for_agent query: %w", err)
	}

	var rows []jobRow
	if err := s.q.Select(&rows, query, args...); err != nil {
		return nil, fmt.Errorf("jobs_for_agent: %w", err)
	}
	jobs := make([]Job, len(rows))
	for i, r := range rows {
		jobs[i] = r.toJob()
	}
	return jobs, nil
}

// Query lists jobs matching optional status and type filters, used by the
// coordinator's job-queue listing endpoint. Built with
// squirrel so optional filters compose without string concatenation.
func (s *JobStore) Query(statusFilter []JobStatus, typeFilter *JobType) ([]Job, error) {
	b := psql.Select(jobColumns).From("jobs")
	if len(statusFilter) > 0 {
		strs := make([]string, len(statusFilter))
		for i, st := range statusFilter {
			strs[i] = string(st)
		}
		b = b.Where(sq.Eq{"status": strs})
	}
	if typeFilter != nil {
		b = b.Where(sq.Eq{"type": string(*typeFilter)})
	}
	b = b.OrderBy("priority ASC", "created_at ASC")

	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build job query: %w", err)
	}
	var rows []jobRow
	if err := s.q.Select(&rows, query, args...); err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	jobs := make([]Job, len(rows))
	for i, r := range rows {
		jobs[i] = r.toJob()
	}
	return jobs, nil
}

// Transition validates and applies a status change, enforcing P2. Callers
// pass only the fields relevant to the target status; Update below handles
// the richer progress/error/output_file payload.
func (s *JobStore) Transition(id string, from, to JobStatus) error {
	if !legalTransitions[from][to] {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
	}
	res, err := s.q.Exec(`UPDATE jobs SET status = $3 WHERE id = $1 AND status = $2`, id, from, to)
	if err != nil {
		return fmt.Errorf("transition job: %w", err)
	}
	return checkRowsAffected(res, ErrIllegalTransition)
}

// Assign resolves an agent, sets assignment fields and transitions to
// assigned. Used both by rip auto-assignment and transcode approval.
func (s *JobStore) Assign(id, agentID string, preset, outputName *string) (Job, error) {
	const q = `
		UPDATE jobs SET
			status = 'assigned',
			assigned_agent_id = $2,
			assigned_at = now(),
			preset = COALESCE($3, preset),
			output_name = COALESCE($4, output_name),
			requires_approval = false
		WHERE id = $1 AND status = 'pending'
		RETURNING ` + jobColumns

	var row jobRow
	err := s.q.Get(&row, q, id, agentID, preset, outputName)
	if errors.Is(err, sql.ErrNoRows) {
		return Job{}, ErrNotApprovable
	}
	if err != nil {
		return Job{}, fmt.Errorf("assign job: %w", err)
	}
	return row.toJob(), nil
}

// Demote implements the assigned -> pending special case (spec §4.5 step 1):
// the target disc's preview is still pending, so the rip job is returned to
// the queue to be redelivered once a decision is made.
func (s *JobStore) Demote(id string) error {
	res, err := s.q.Exec(`
		UPDATE jobs SET status = 'pending', progress = 0, assigned_agent_id = NULL, assigned_at = NULL
		WHERE id = $1 AND status = 'assigned'`, id)
	if err != nil {
		return fmt.Errorf("demote job: %w", err)
	}
	return checkRowsAffected(res, ErrIllegalTransition)
}

// ResetForManualReassignment implements the worker-failover reset in spec
// §4.2: "resets each job to pending with assigned_agent_id=null,
// requires_approval=true (so a human re-routes)". Any non-terminal job may
// be reset this way regardless of its current status, since a dead worker
// can be discovered mid-assignment or mid-run.
func (s *JobStore) ResetForManualReassignment(id string) error {
	res, err := s.q.Exec(`
		UPDATE jobs SET
			status = 'pending',
			assigned_agent_id = NULL,
			assigned_at = NULL,
			requires_approval = true,
			progress = 0
		WHERE id = $1 AND status NOT IN ('completed', 'failed', 'cancelled')`, id)
	if err != nil {
		return fmt.Errorf("reset job for manual reassignment: %w", err)
	}
	return checkRowsAffected(res, ErrIllegalTransition)
}

// Update applies a progress/status/error/output_file report from an agent
// or worker (spec §4.1 "Progress"). running sets started_at exactly once;
// a terminal status sets completed_at.
func (s *JobStore) Update(id string, status JobStatus, progress *int, errMsg, outputFile, logTail *string) (Job, error) {
	var row jobRow
	q := `
		UPDATE jobs SET
			status = $2,
			progress = COALESCE($3, progress),
			error = COALESCE($4, error),
			output_file = COALESCE($5, output_file),
			log_tail = COALESCE($6, log_tail),
			started_at = CASE WHEN $2 = 'running' AND started_at IS NULL THEN now() ELSE started_at END,
			completed_at = CASE WHEN $2 IN ('completed', 'failed', 'cancelled') THEN now() ELSE completed_at END
		WHERE id = $1
		RETURNING ` + jobColumns

	err := s.q.Get(&row, q, id, status, progress, errMsg, outputFile, logTail)
	if errors.Is(err, sql.ErrNoRows) {
		return Job{}, ErrNotFound
	}
	if err != nil {
		return Job{}, fmt.Errorf("update job: %w", err)
	}
	return row.toJob(), nil
}

// Cancel transitions any non-terminal job to cancelled (spec §4.1
// "Cancellation"); invalid for terminal states per P2.
func (s *JobStore) Cancel(id string) (Job, error) {
	const q = `
		UPDATE jobs SET status = 'cancelled', completed_at = now()
		WHERE id = $1 AND status NOT IN ('completed', 'failed', 'cancelled')
		RETURNING ` + jobColumns

	var row jobRow
	err := s.q.Get(&row, q, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Job{}, ErrIllegalTransition
	}
	if err != nil {
		return Job{}, fmt.Errorf("cancel job: %w", err)
	}
	return row.toJob(), nil
}

func (s *JobStore) IsCancelled(id string) (bool, error) {
	var status string
	if err := s.q.Get(&status, `SELECT status FROM jobs WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, ErrNotFound
		}
		return false, fmt.Errorf("check job cancelled: %w", err)
	}
	return status == string(JobCancelled), nil
}

// RipStatus summarizes completion of every rip job for a disc, used by
// GET /api/discs/{id}/rip-status and the "signal the disc as rip-complete"
// check in spec §4.5 step 8.
type RipStatus struct {
	Total     int `db:"total"`
	Completed int `db:"completed"`
	Failed    int `db:"failed"`
}

func (s RipStatus) AllComplete() bool { return s.Total > 0 && s.Completed+s.Failed == s.Total }

func (s *JobStore) RipStatusForDisc(discID string) (RipStatus, error) {
	var out RipStatus
	err := s.q.Get(&out, `
		SELECT
			count(*) AS total,
			count(*) FILTER (WHERE status = 'completed') AS completed,
			count(*) FILTER (WHERE status = 'failed') AS failed
		FROM jobs WHERE disc_id = $1 AND type = 'rip'`, discID)
	if err != nil {
		return RipStatus{}, fmt.Errorf("rip status for disc: %w", err)
	}
	return out, nil
}

// ReleaseAgentOnTerminal clears agents.current_job_id once a job this
// agent was assigned reaches a terminal state (spec §4.1 "Progress").
func ReleaseAgentOnTerminal(q Queryable, agentID, jobID string) error {
	_, err := q.Exec(`UPDATE agents SET status = 'online', current_job_id = NULL WHERE id = $1 AND current_job_id = $2`, agentID, jobID)
	if err != nil {
		return fmt.Errorf("release agent on terminal job: %w", err)
	}
	return nil
}
