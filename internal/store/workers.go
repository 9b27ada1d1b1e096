package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// WorkerStore exposes the persistence operations backing internal/workermgr
// and internal/assign.
type WorkerStore struct {
	q Queryable
}

func NewWorkerStore(q Queryable) *WorkerStore { return &WorkerStore{q: q} }

const workerColumns = `id, type, hostname, agent_id, capabilities, priority, enabled, status, current_jobs, stats, last_heartbeat`

type workerRow struct {
	ID            string             `db:"id"`
	Type          string             `db:"type"`
	Hostname      string             `db:"hostname"`
	AgentID       *string            `db:"agent_id"`
	Capabilities  WorkerCapabilities `db:"capabilities"`
	Priority      int                `db:"priority"`
	Enabled       bool               `db:"enabled"`
	Status        string             `db:"status"`
	CurrentJobs   StringSlice        `db:"current_jobs"`
	Stats         WorkerStats        `db:"stats"`
	LastHeartbeat time.Time          `db:"last_heartbeat"`
}

func (r workerRow) toWorker() Worker {
	return Worker{
		ID:            r.ID,
		Type:          WorkerType(r.Type),
		Hostname:      r.Hostname,
		AgentID:       r.AgentID,
		Capabilities:  r.Capabilities,
		Priority:      r.Priority,
		Enabled:       r.Enabled,
		Status:        WorkerStatus(r.Status),
		CurrentJobs:   r.CurrentJobs,
		Stats:         r.Stats,
		LastHeartbeat: r.LastHeartbeat,
	}
}

// Register is idempotent by id, per spec §4.2.
func (s *WorkerStore) Register(w Worker) (Worker, error) {
	const q = `
		INSERT INTO workers (id, type, hostname, agent_id, capabilities, priority, enabled, status, last_heartbeat)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'available', now())
		ON CONFLICT (id) DO UPDATE SET
			type = EXCLUDED.type,
			hostname = EXCLUDED.hostname,
			agent_id = EXCLUDED.agent_id,
			capabilities = EXCLUDED.capabilities,
			priority = EXCLUDED.priority,
			enabled = EXCLUDED.enabled,
			status = 'available',
			last_heartbeat = now()
		RETURNING ` + workerColumns

	var row workerRow
	err := s.q.Get(&row, q, w.ID, w.Type, w.Hostname, w.AgentID, w.Capabilities, w.Priority, w.Enabled)
	if err != nil {
		return Worker{}, fmt.Errorf("register worker: %w", err)
	}
	return row.toWorker(), nil
}

func (s *WorkerStore) Heartbeat(id string) error {
	res, err := s.q.Exec(`UPDATE workers SET last_heartbeat = now(), status = CASE WHEN status = 'offline' THEN 'available' ELSE status END WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("worker heartbeat: %w", err)
	}
	return checkRowsAffected(res, ErrNotFound)
}

func (s *WorkerStore) Get(id string) (Worker, error) {
	var row workerRow
	err := s.q.Get(&row, `SELECT `+workerColumns+` FROM workers WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Worker{}, ErrNotFound
	}
	if err != nil {
		return Worker{}, fmt.Errorf("get worker: %w", err)
	}
	return row.toWorker(), nil
}

func (s *WorkerStore) GetAll() ([]Worker, error) {
	var rows []workerRow
	if err := s.q.Select(&rows, `SELECT `+workerColumns+` FROM workers ORDER BY hostname`); err != nil {
		return nil, fmt.Errorf("list workers: %w", err)
	}
	workers := make([]Worker, len(rows))
	for i, r := range rows {
		workers[i] = r.toWorker()
	}
	return workers, nil
}

// Available returns enabled, non-offline workers, the candidate pool every
// assignment strategy filters and picks from.
func (s *WorkerStore) Available() ([]Worker, error) {
	var rows []workerRow
	err := s.q.Select(&rows, `SELECT `+workerColumns+` FROM workers WHERE enabled AND status != 'offline' ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list available workers: %w", err)
	}
	workers := make([]Worker, len(rows))
	for i, r := range rows {
		workers[i] = r.toWorker()
	}
	return workers, nil
}

// AssignJob appends jobID to current_jobs and flips status to busy.
func (s *WorkerStore) AssignJob(workerID, jobID string) error {
	res, err := s.q.Exec(`
		UPDATE workers SET
			current_jobs = current_jobs || to_jsonb($2::text),
			status = 'busy'
		WHERE id = $1`, workerID, jobID)
	if err != nil {
		return fmt.Errorf("assign job to worker: %w", err)
	}
	return checkRowsAffected(res, ErrNotFound)
}

// CompleteJob removes jobID from current_jobs, returning the worker to
// available once no jobs remain.
func (s *WorkerStore) CompleteJob(workerID, jobID string) error {
	res, err := s.q.Exec(`
		UPDATE workers SET
			current_jobs = COALESCE((
				SELECT jsonb_agg(elem) FROM jsonb_array_elements_text(current_jobs) elem WHERE elem != $2
			), '[]'),
			status = CASE WHEN jsonb_array_length(current_jobs) <= 1 THEN 'available' ELSE status END
		WHERE id = $1`, workerID, jobID)
	if err != nil {
		return fmt.Errorf("complete worker job: %w", err)
	}
	return checkRowsAffected(res, ErrNotFound)
}

// RecordCompletion folds a finished job's duration into the worker's
// rolling stats, consulted by the fastest-first assignment strategy.
func (s *WorkerStore) RecordCompletion(workerID string, durationSeconds float64) error {
	res, err := s.q.Exec(`
		UPDATE workers SET stats = jsonb_build_object(
			'total_completed', COALESCE((stats->>'total_completed')::int, 0) + 1,
			'avg_duration_s', (COALESCE((stats->>'avg_duration_s')::float8 * COALESCE((stats->>'total_completed')::int, 0), 0) + $2) / (COALESCE((stats->>'total_completed')::int, 0) + 1)
		)
		WHERE id = $1`, workerID, durationSeconds)
	if err != nil {
		return fmt.Errorf("record worker completion stats: %w", err)
	}
	return checkRowsAffected(res, ErrNotFound)
}

func (s *WorkerStore) Unregister(id string) error {
	res, err := s.q.Exec(`DELETE FROM workers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("unregister worker: %w", err)
	}
	return checkRowsAffected(res, ErrNotFound)
}

// StaleFailoverCandidate is one worker evacuated by a staleness sweep along
// with the job ids that must be reset to pending (spec §4.2).
type StaleFailoverCandidate struct {
	WorkerID    string
	CurrentJobs []string
}

// MarkStaleOffline flips workers whose heartbeat predates cutoff to
// offline and returns their evacuated current_jobs for failover handling.
// Like AgentStore.MarkStaleOffline, the WHERE clause on last_heartbeat is
// the CAS guard: a worker whose heartbeat updated after the sweep read its
// state is left untouched.
func (s *WorkerStore) MarkStaleOffline(cutoff time.Time) ([]StaleFailoverCandidate, error) {
	rows, err := s.q.Query(`
		UPDATE workers SET status = 'offline', current_jobs = '[]'
		WHERE status != 'offline' AND last_heartbeat < $1
		RETURNING id, current_jobs`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("sweep stale workers: %w", err)
	}
	defer rows.Close()

	var out []StaleFailoverCandidate
	for rows.Next() {
		var id string
		var jobs StringSlice
		if err := rows.Scan(&id, &jobs); err != nil {
			return nil, fmt.Errorf("scan stale worker row: %w", err)
		}
		out = append(out, StaleFailoverCandidate{WorkerID: id, CurrentJobs: jobs})
	}
	return out, rows.Err()
}
