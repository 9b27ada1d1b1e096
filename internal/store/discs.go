package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/mohae/deepcopy"
)

// DiscStore exposes disc persistence and the title-regeneration transaction
// used by internal/preview.
type DiscStore struct {
	db *manager
	q  Queryable
}

// NewDiscStore binds to the manager so RegeneratePreview can open its own
// transaction; other methods use q directly (which may itself be a *sqlx.Tx
// when called from inside another WrapTx).
func NewDiscStore(db Manager, q Queryable) *DiscStore {
	m, _ := db.(*manager)
	return &DiscStore{db: m, q: q}
}

const discColumns = `id, agent_id, drive, name, type, detected_at, status, media_type, preview_status, tv, movie`

type discRow struct {
	ID            string       `db:"id"`
	AgentID       string       `db:"agent_id"`
	Drive         string       `db:"drive"`
	Name          string       `db:"name"`
	Type          string       `db:"type"`
	DetectedAt    time.Time    `db:"detected_at"`
	Status        string       `db:"status"`
	MediaType     string       `db:"media_type"`
	PreviewStatus string       `db:"preview_status"`
	TV            TVPreview    `db:"tv"`
	Movie         MoviePreview `db:"movie"`
}

func (r discRow) toDisc() Disc {
	return Disc{
		ID:            r.ID,
		AgentID:       r.AgentID,
		Drive:         r.Drive,
		Name:          r.Name,
		Type:          DiscType(r.Type),
		DetectedAt:    r.DetectedAt,
		Status:        DiscStatus(r.Status),
		MediaType:     MediaType(r.MediaType),
		PreviewStatus: PreviewStatus(r.PreviewStatus),
		TV:            r.TV,
		Movie:         r.Movie,
	}
}

// Create inserts a newly detected disc (spec §3 "Life: created on
// detection"); titles are attached separately via TitleStore.ReplaceAll.
func (s *DiscStore) Create(d Disc) (Disc, error) {
	if d.ID == "" {
		d.ID = NewID()
	}
	const q = `
		INSERT INTO discs (id, agent_id, drive, name, type, status, media_type, preview_status, tv, movie)
		VALUES ($1, $2, $3, $4, $5, 'detected', 'unknown', 'pending', $6, $7)
		RETURNING ` + discColumns

	var row discRow
	err := s.q.Get(&row, q, d.ID, d.AgentID, d.Drive, d.Name, d.Type, d.TV, d.Movie)
	if err != nil {
		return Disc{}, fmt.Errorf("create disc: %w", err)
	}
	return row.toDisc(), nil
}

func (s *DiscStore) Get(id string) (Disc, error) {
	var row discRow
	err := s.q.Get(&row, `SELECT `+discColumns+` FROM discs WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Disc{}, ErrNotFound
	}
	if err != nil {
		return Disc{}, fmt.Errorf("get disc: %w", err)
	}
	return row.toDisc(), nil
}

// ByDrive finds the most recent non-ejected disc detected at a given
// agent+drive, used to detect re-insertion of the same disc.
func (s *DiscStore) ByDrive(agentID, drive string) (Disc, error) {
	var row discRow
	err := s.q.Get(&row, `
		SELECT `+discColumns+` FROM discs
		WHERE agent_id = $1 AND drive = $2 AND status != 'ejected'
		ORDER BY detected_at DESC LIMIT 1`, agentID, drive)
	if errors.Is(err, sql.ErrNoRows) {
		return Disc{}, ErrNotFound
	}
	if err != nil {
		return Disc{}, fmt.Errorf("find disc by drive: %w", err)
	}
	return row.toDisc(), nil
}

// SetStatus transitions disc.status (detected -> ripping -> completed ->
// ejected, ejected terminal per spec §3).
func (s *DiscStore) SetStatus(id string, status DiscStatus) error {
	res, err := s.q.Exec(`
		UPDATE discs SET status = $2 WHERE id = $1 AND status != 'ejected'`, id, status)
	if err != nil {
		return fmt.Errorf("set disc status: %w", err)
	}
	return checkRowsAffected(res, fmt.Errorf("disc %s is ejected or missing: %w", id, ErrIllegalTransition))
}

// ApprovePreview is the only route into preview_status=approved; only
// legal from pending (spec §3 "preview status transitions only pending ->
// approved|rejected").
func (s *DiscStore) ApprovePreview(id string) (Disc, error) {
	const q = `
		UPDATE discs SET preview_status = 'approved' WHERE id = $1 AND preview_status = 'pending'
		RETURNING ` + discColumns
	var row discRow
	err := s.q.Get(&row, q, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Disc{}, ErrIllegalTransition
	}
	if err != nil {
		return Disc{}, fmt.Errorf("approve preview: %w", err)
	}
	return row.toDisc(), nil
}

func (s *DiscStore) RejectPreview(id string) (Disc, error) {
	const q = `
		UPDATE discs SET preview_status = 'rejected' WHERE id = $1 AND preview_status = 'pending'
		RETURNING ` + discColumns
	var row discRow
	err := s.q.Get(&row, q, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Disc{}, ErrIllegalTransition
	}
	if err != nil {
		return Disc{}, fmt.Errorf("reject preview: %w", err)
	}
	return row.toDisc(), nil
}

// UpdateClassification persists the preview pipeline's media_type/tv/movie
// classification for a disc, distinct from the title regeneration which
// goes through RegeneratePreview.
func (s *DiscStore) UpdateClassification(id string, mediaType MediaType, tv TVPreview, movie MoviePreview) error {
	res, err := s.q.Exec(`
		UPDATE discs SET media_type = $2, tv = $3, movie = $4 WHERE id = $1`, id, mediaType, tv, movie)
	if err != nil {
		return fmt.Errorf("update disc classification: %w", err)
	}
	return checkRowsAffected(res, ErrNotFound)
}

// RegeneratePreview snapshots the disc's current titles with deepcopy (the
// snapshot is not returned to the caller), then replaces the disc's
// classification and full title set inside a single transaction, satisfying
// spec §5's "replaces titles in one transaction; partial-write states are
// not observable".
func (s *DiscStore) RegeneratePreview(id string, mediaType MediaType, tv TVPreview, movie MoviePreview, titles []Title) (Disc, []Title, error) {
	if s.db == nil {
		return Disc{}, nil, errors.New("RegeneratePreview requires a connected store.Manager")
	}

	existing, err := NewTitleStore(s.q).ForDisc(id)
	if err != nil {
		return Disc{}, nil, err
	}
	// snapshot is the pre-image of the title set, taken before ReplaceAll
	// below overwrites the rows; nothing reads it afterwards.
	snapshot := deepcopy.Copy(existing).([]Title)
	_ = snapshot

	var disc Disc
	var newTitles []Title
	err = s.db.WrapTx(func(tx *sqlx.Tx) error {
		txDiscs := NewDiscStore(s.db, tx)
		if err := txDiscs.UpdateClassification(id, mediaType, tv, movie); err != nil {
			return err
		}

		txTitles := NewTitleStore(tx)
		if err := txTitles.ReplaceAll(id, titles); err != nil {
			return err
		}

		d, err := txDiscs.Get(id)
		if err != nil {
			return err
		}
		disc = d
		newTitles, err = txTitles.ForDisc(id)
		return err
	})
	if err != nil {
		return Disc{}, nil, fmt.Errorf("regenerate disc preview: %w", err)
	}

	return disc, newTitles, nil
}
