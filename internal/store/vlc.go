package store

import (
	"fmt"
	"time"
)

// VLCStore persists preview playback requests, a channel independent of
// jobs with single-poll delivery (spec §3, §4.7).
type VLCStore struct {
	q Queryable
}

func NewVLCStore(q Queryable) *VLCStore { return &VLCStore{q: q} }

const vlcColumns = `id, agent_id, file_path, fullscreen, status, error, created_at, sent_at, completed_at`

type vlcRow struct {
	ID          string           `db:"id"`
	AgentID     string           `db:"agent_id"`
	FilePath    string           `db:"file_path"`
	Fullscreen  bool             `db:"fullscreen"`
	Status      string           `db:"status"`
	Error       *string          `db:"error"`
	CreatedAt   time.Time        `db:"created_at"`
	SentAt      *time.Time       `db:"sent_at"`
	CompletedAt *time.Time       `db:"completed_at"`
}

func (r vlcRow) toCommand() VLCCommand {
	return VLCCommand{
		ID:          r.ID,
		AgentID:     r.AgentID,
		FilePath:    r.FilePath,
		Fullscreen:  r.Fullscreen,
		Status:      VLCCommandStatus(r.Status),
		Error:       r.Error,
		CreatedAt:   r.CreatedAt,
		SentAt:      r.SentAt,
		CompletedAt: r.CompletedAt,
	}
}

// Queue creates a pending command (spec §4.7 "queue_preview").
func (s *VLCStore) Queue(agentID, filePath string, fullscreen bool) (VLCCommand, error) {
	const q = `
		INSERT INTO vlc_commands (id, agent_id, file_path, fullscreen, status)
		VALUES ($1, $2, $3, $4, 'pending')
		RETURNING ` + vlcColumns
	var row vlcRow
	err := s.q.Get(&row, q, NewID(), agentID, filePath, fullscreen)
	if err != nil {
		return VLCCommand{}, fmt.Errorf("queue vlc command: %w", err)
	}
	return row.toCommand(), nil
}

// FetchAndMarkSent atomically flips every pending command for an agent to
// sent and returns them — the single-poll-delivery guarantee in spec §3/§4.7.
func (s *VLCStore) FetchAndMarkSent(agentID string) ([]VLCCommand, error) {
	rows, err := s.q.Query(`
		UPDATE vlc_commands SET status = 'sent', sent_at = now()
		WHERE agent_id = $1 AND status = 'pending'
		RETURNING `+vlcColumns, agentID)
	if err != nil {
		return nil, fmt.Errorf("fetch vlc commands: %w", err)
	}
	defer rows.Close()

	var out []VLCCommand
	for rows.Next() {
		var r vlcRow
		if err := rows.Scan(&r.ID, &r.AgentID, &r.FilePath, &r.Fullscreen, &r.Status, &r.Error, &r.CreatedAt, &r.SentAt, &r.CompletedAt); err != nil {
			return nil, fmt.Errorf("scan vlc command: %w", err)
		}
		out = append(out, r.toCommand())
	}
	return out, rows.Err()
}

// Report records the agent's playback outcome.
func (s *VLCStore) Report(id string, status VLCCommandStatus, errMsg *string) error {
	res, err := s.q.Exec(`
		UPDATE vlc_commands SET status = $2, error = $3, completed_at = now()
		WHERE id = $1 AND status = 'sent'`, id, status, errMsg)
	if err != nil {
		return fmt.Errorf("report vlc command: %w", err)
	}
	return checkRowsAffected(res, ErrNotFound)
}
