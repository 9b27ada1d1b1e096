package store

import "fmt"

// TitleStore exposes per-disc title persistence, always used alongside
// DiscStore since titles have no independent lifecycle (spec §3 "Title
// (child of Disc)").
type TitleStore struct {
	q Queryable
}

func NewTitleStore(q Queryable) *TitleStore { return &TitleStore{q: q} }

const titleColumns = `id, disc_id, index, name, duration_seconds, size_bytes, chapters, selected,
	is_extra, proposed_filename, proposed_path, episode_number, episode_title, confidence,
	thumbnails, thumbnail_timestamps`

type titleRow struct {
	ID                  string      `db:"id"`
	DiscID              string      `db:"disc_id"`
	Index               int         `db:"index"`
	Name                string      `db:"name"`
	DurationSeconds     int         `db:"duration_seconds"`
	SizeBytes           int64       `db:"size_bytes"`
	Chapters            int         `db:"chapters"`
	Selected            bool        `db:"selected"`
	IsExtra             bool        `db:"is_extra"`
	ProposedFilename    *string     `db:"proposed_filename"`
	ProposedPath        *string     `db:"proposed_path"`
	EpisodeNumber       *int        `db:"episode_number"`
	EpisodeTitle        *string     `db:"episode_title"`
	Confidence          float64     `db:"confidence"`
	Thumbnails          StringSlice `db:"thumbnails"`
	ThumbnailTimestamps IntSlice    `db:"thumbnail_timestamps"`
}

func (r titleRow) toTitle() Title {
	return Title{
		ID:                  r.ID,
		DiscID:              r.DiscID,
		Index:               r.Index,
		Name:                r.Name,
		DurationSeconds:     r.DurationSeconds,
		SizeBytes:           r.SizeBytes,
		Chapters:            r.Chapters,
		Selected:            r.Selected,
		IsExtra:             r.IsExtra,
		ProposedFilename:    r.ProposedFilename,
		ProposedPath:        r.ProposedPath,
		EpisodeNumber:       r.EpisodeNumber,
		EpisodeTitle:        r.EpisodeTitle,
		Confidence:          r.Confidence,
		Thumbnails:          r.Thumbnails,
		ThumbnailTimestamps: r.ThumbnailTimestamps,
	}
}

func (s *TitleStore) ForDisc(discID string) ([]Title, error) {
	var rows []titleRow
	if err := s.q.Select(&rows, `SELECT `+titleColumns+` FROM titles WHERE disc_id = $1 ORDER BY index`, discID); err != nil {
		return nil, fmt.Errorf("list titles for disc: %w", err)
	}
	titles := make([]Title, len(rows))
	for i, r := range rows {
		titles[i] = r.toTitle()
	}
	return titles, nil
}

// ReplaceAll deletes and re-inserts every title for a disc. Must be called
// inside a store.WrapTx alongside the owning disc's update so the preview
// regeneration described in spec §5 ("replaces titles in one transaction")
// never exposes a partial title set to a concurrent reader.
func (s *TitleStore) ReplaceAll(discID string, titles []Title) error {
	if _, err := s.q.Exec(`DELETE FROM titles WHERE disc_id = $1`, discID); err != nil {
		return fmt.Errorf("clear titles for disc: %w", err)
	}

	const q = `
		INSERT INTO titles (id, disc_id, index, name, duration_seconds, size_bytes, chapters,
			selected, is_extra, proposed_filename, proposed_path, episode_number, episode_title,
			confidence, thumbnails, thumbnail_timestamps)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	for _, t := range titles {
		id := t.ID
		if id == "" {
			id = NewID()
		}
		_, err := s.q.Exec(q, id, discID, t.Index, t.Name, t.DurationSeconds, t.SizeBytes, t.Chapters,
			t.Selected, t.IsExtra, t.ProposedFilename, t.ProposedPath, t.EpisodeNumber, t.EpisodeTitle,
			t.Confidence, orEmptySlice(t.Thumbnails), orEmptyInts(t.ThumbnailTimestamps))
		if err != nil {
			return fmt.Errorf("insert title %d: %w", t.Index, err)
		}
	}
	return nil
}

// ApplyEdit applies an operator's per-title edit at approval time (spec
// §4.4 "edit individual title"), verbatim, without re-running the matcher.
func (s *TitleStore) ApplyEdit(discID string, index int, edit TitleEdit) error {
	_, err := s.q.Exec(`
		UPDATE titles SET
			proposed_filename = COALESCE($3, proposed_filename),
			proposed_path = COALESCE($4, proposed_path),
			episode_number = COALESCE($5, episode_number),
			episode_title = COALESCE($6, episode_title),
			is_extra = COALESCE($7, is_extra),
			selected = COALESCE($8, selected)
		WHERE disc_id = $1 AND index = $2`,
		discID, index, edit.ProposedFilename, edit.ProposedPath, edit.EpisodeNumber,
		edit.EpisodeTitle, edit.IsExtra, edit.Selected)
	if err != nil {
		return fmt.Errorf("apply title edit: %w", err)
	}
	return nil
}

// TitleEdit carries the operator-supplied fields of a single title edit;
// nil fields are left unchanged.
type TitleEdit struct {
	Index            int
	ProposedFilename *string
	ProposedPath     *string
	EpisodeNumber    *int
	EpisodeTitle     *string
	IsExtra          *bool
	Selected         *bool
}
