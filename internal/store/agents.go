package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned by single-row lookups when no row matches.
var ErrNotFound = errors.New("not found")

// AgentStore exposes the persistence operations backing internal/agentmgr.
type AgentStore struct {
	q Queryable
}

func NewAgentStore(q Queryable) *AgentStore { return &AgentStore{q: q} }

const agentColumns = `id, name, can_rip, can_transcode, status, current_job_id, last_heartbeat, registered_at`

type agentRow struct {
	ID            string    `db:"id"`
	Name          string    `db:"name"`
	CanRip        bool      `db:"can_rip"`
	CanTranscode  bool      `db:"can_transcode"`
	Status        string    `db:"status"`
	CurrentJobID  *string   `db:"current_job_id"`
	LastHeartbeat time.Time `db:"last_heartbeat"`
	RegisteredAt  time.Time `db:"registered_at"`
}

func (r agentRow) toAgent() Agent {
	return Agent{
		ID:   r.ID,
		Name: r.Name,
		Capabilities: AgentCapabilities{
			CanRip:       r.CanRip,
			CanTranscode: r.CanTranscode,
		},
		Status:        AgentStatus(r.Status),
		CurrentJobID:  r.CurrentJobID,
		LastHeartbeat: r.LastHeartbeat,
		RegisteredAt:  r.RegisteredAt,
	}
}

// Register is idempotent by id: a second registration for the same id
// updates its mutable fields and flips status back to online (spec §4.2).
func (s *AgentStore) Register(a Agent) (Agent, error) {
	const q = `
		INSERT INTO agents (id, name, can_rip, can_transcode, status, registered_at, last_heartbeat)
		VALUES ($1, $2, $3, $4, 'online', now(), now())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			can_rip = EXCLUDED.can_rip,
			can_transcode = EXCLUDED.can_transcode,
			status = 'online',
			last_heartbeat = now()
		RETURNING ` + agentColumns

	var row agentRow
	if err := s.q.Get(&row, q, a.ID, a.Name, a.Capabilities.CanRip, a.Capabilities.CanTranscode); err != nil {
		return Agent{}, fmt.Errorf("register agent: %w", err)
	}
	return row.toAgent(), nil
}

// Heartbeat unconditionally bumps last_heartbeat and marks the agent online;
// called on every agent poll regardless of prior status.
func (s *AgentStore) Heartbeat(id string) error {
	res, err := s.q.Exec(`UPDATE agents SET last_heartbeat = now(), status = 'online' WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("agent heartbeat: %w", err)
	}
	return checkRowsAffected(res, ErrNotFound)
}

func (s *AgentStore) Get(id string) (Agent, error) {
	var row agentRow
	err := s.q.Get(&row, `SELECT `+agentColumns+` FROM agents WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Agent{}, ErrNotFound
	}
	if err != nil {
		return Agent{}, fmt.Errorf("get agent: %w", err)
	}
	return row.toAgent(), nil
}

func (s *AgentStore) GetAll() ([]Agent, error) {
	var rows []agentRow
	if err := s.q.Select(&rows, `SELECT `+agentColumns+` FROM agents ORDER BY registered_at`); err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	agents := make([]Agent, len(rows))
	for i, r := range rows {
		agents[i] = r.toAgent()
	}
	return agents, nil
}

// AssignJob marks the agent busy and records its current job; used by rip
// auto-assignment (spec §4.1 "picks the agent that owns the target disc").
func (s *AgentStore) AssignJob(agentID, jobID string) error {
	res, err := s.q.Exec(`UPDATE agents SET status = 'busy', current_job_id = $2 WHERE id = $1`, agentID, jobID)
	if err != nil {
		return fmt.Errorf("assign job to agent: %w", err)
	}
	return checkRowsAffected(res, ErrNotFound)
}

// CompleteJob clears the agent's current job and returns it to online.
func (s *AgentStore) CompleteJob(agentID string) error {
	res, err := s.q.Exec(`UPDATE agents SET status = 'online', current_job_id = NULL WHERE id = $1`, agentID)
	if err != nil {
		return fmt.Errorf("complete agent job: %w", err)
	}
	return checkRowsAffected(res, ErrNotFound)
}

func (s *AgentStore) Unregister(id string) error {
	res, err := s.q.Exec(`DELETE FROM agents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("unregister agent: %w", err)
	}
	return checkRowsAffected(res, ErrNotFound)
}

// MarkStaleOffline flips agents whose last_heartbeat is older than
// cutoff to offline. The WHERE clause doubles as the CAS guard described
// in spec §5: a row is only touched if its heartbeat is still the stale
// value observed by the sweep, so a heartbeat racing in after the read
// is never clobbered.
func (s *AgentStore) MarkStaleOffline(cutoff time.Time) ([]string, error) {
	var ids []string
	err := s.q.Select(&ids, `
		UPDATE agents SET status = 'offline'
		WHERE status != 'offline' AND last_heartbeat < $1
		RETURNING id`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("sweep stale agents: %w", err)
	}
	return ids, nil
}

func checkRowsAffected(res sql.Result, notFoundErr error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFoundErr
	}
	return nil
}
