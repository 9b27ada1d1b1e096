package store

import (
	"database/sql"
	"errors"
	"fmt"
)

// SeasonStore exposes TVSeason persistence, the single source of truth for
// cross-disc episode numbering (spec §4.4).
type SeasonStore struct {
	q Queryable
}

func NewSeasonStore(q Queryable) *SeasonStore { return &SeasonStore{q: q} }

const seasonColumns = `season_id, show_name, season_number, series_external_id, episodes, last_episode_assigned, disc_ids, last_disc_name`

type seasonRow struct {
	SeasonID            string         `db:"season_id"`
	ShowName             string         `db:"show_name"`
	SeasonNumber         int            `db:"season_number"`
	SeriesExternalID     *string        `db:"series_external_id"`
	Episodes             TVEpisodeSlice `db:"episodes"`
	LastEpisodeAssigned  int            `db:"last_episode_assigned"`
	DiscIDs              StringSlice    `db:"disc_ids"`
	LastDiscName         *string        `db:"last_disc_name"`
}

func (r seasonRow) toSeason() TVSeason {
	return TVSeason{
		SeasonID:            r.SeasonID,
		ShowName:            r.ShowName,
		SeasonNumber:        r.SeasonNumber,
		SeriesExternalID:    r.SeriesExternalID,
		Episodes:            []TVEpisode(r.Episodes),
		LastEpisodeAssigned: r.LastEpisodeAssigned,
		DiscIDs:             r.DiscIDs,
		LastDiscName:        r.LastDiscName,
	}
}

// GetOrCreate fetches the season record for seasonID, creating an empty one
// if it doesn't exist yet (spec §4.3 step 6 "Get/create TVSeason").
func (s *SeasonStore) GetOrCreate(seasonID, showName string, seasonNumber int) (TVSeason, error) {
	existing, err := s.Get(seasonID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return TVSeason{}, err
	}

	const q = `
		INSERT INTO tv_seasons (season_id, show_name, season_number, episodes, last_episode_assigned, disc_ids)
		VALUES ($1, $2, $3, '[]', 0, '[]')
		ON CONFLICT (season_id) DO NOTHING
		RETURNING ` + seasonColumns

	var row seasonRow
	err = s.q.Get(&row, q, seasonID, showName, seasonNumber)
	if errors.Is(err, sql.ErrNoRows) {
		// lost the insert race; another caller created it concurrently
		return s.Get(seasonID)
	}
	if err != nil {
		return TVSeason{}, fmt.Errorf("create season: %w", err)
	}
	return row.toSeason(), nil
}

func (s *SeasonStore) Get(seasonID string) (TVSeason, error) {
	var row seasonRow
	err := s.q.Get(&row, `SELECT `+seasonColumns+` FROM tv_seasons WHERE season_id = $1`, seasonID)
	if errors.Is(err, sql.ErrNoRows) {
		return TVSeason{}, ErrNotFound
	}
	if err != nil {
		return TVSeason{}, fmt.Errorf("get season: %w", err)
	}
	return row.toSeason(), nil
}

// SetEpisodes caches the metadata provider's episode list for the season
// (spec §4.3 step 4 "fetch episodes for the season; cache in the season
// record").
func (s *SeasonStore) SetEpisodes(seasonID string, seriesExternalID *string, episodes []TVEpisode) error {
	res, err := s.q.Exec(`
		UPDATE tv_seasons SET series_external_id = COALESCE($2, series_external_id), episodes = $3
		WHERE season_id = $1`, seasonID, seriesExternalID, TVEpisodeSlice(episodes))
	if err != nil {
		return fmt.Errorf("set season episodes: %w", err)
	}
	return checkRowsAffected(res, ErrNotFound)
}

// AdvanceLastEpisodeAssigned enforces the monotonicity invariant (spec §3
// "never decreases except under explicit operator edit"): the column is
// only updated when the new value is greater, unless force is set for an
// explicit operator edit of the starting episode number.
func (s *SeasonStore) AdvanceLastEpisodeAssigned(seasonID string, newValue int, force bool) error {
	var res sql.Result
	var err error
	if force {
		res, err = s.q.Exec(`UPDATE tv_seasons SET last_episode_assigned = $2 WHERE season_id = $1`, seasonID, newValue)
	} else {
		res, err = s.q.Exec(`
			UPDATE tv_seasons SET last_episode_assigned = $2
			WHERE season_id = $1 AND last_episode_assigned < $2`, seasonID, newValue)
	}
	if err != nil {
		return fmt.Errorf("advance last episode assigned: %w", err)
	}
	if !force {
		return nil // a no-op here just means newValue didn't advance the counter; not an error
	}
	return checkRowsAffected(res, ErrNotFound)
}

// RecordDisc appends discID to the season's disc_ids and records the disc's
// name as last_disc_name, enabling re-insertion detection (spec §3, §4.4).
func (s *SeasonStore) RecordDisc(seasonID, discID, discName string) error {
	res, err := s.q.Exec(`
		UPDATE tv_seasons SET
			disc_ids = CASE WHEN disc_ids @> to_jsonb($2::text) THEN disc_ids ELSE disc_ids || to_jsonb($2::text) END,
			last_disc_name = $3
		WHERE season_id = $1`, seasonID, discID, discName)
	if err != nil {
		return fmt.Errorf("record disc on season: %w", err)
	}
	return checkRowsAffected(res, ErrNotFound)
}
