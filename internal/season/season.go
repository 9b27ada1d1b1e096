// Package season implements the cross-disc episode-numbering state machine
// (spec §4.4): the TVSeason record is the single source of truth, and every
// edit path funnels through here rather than writing tv_seasons directly.
package season

import (
	"context"
	"fmt"
	"strings"

	"github.com/ripcoord/ripcoord/internal/metadata"
	"github.com/ripcoord/ripcoord/internal/store"
)

// Manager mediates all reads/writes against TVSeason records.
type Manager struct {
	seasons *store.SeasonStore
	meta    *metadata.Client
}

func New(seasons *store.SeasonStore, meta *metadata.Client) *Manager {
	return &Manager{seasons: seasons, meta: meta}
}

// NormalizeSeasonID builds the "<normalized_show>:s<n>" identifier spec §4.4
// names, lower-casing and collapsing whitespace so the same show typed two
// different ways still maps to one season record.
func NormalizeSeasonID(show string, seasonNumber int) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(show)), " ")
	return fmt.Sprintf("%s:s%d", normalized, seasonNumber)
}

// GetOrCreate resolves (and creates, if first-seen) the season record a
// disc's classification points at.
func (m *Manager) GetOrCreate(show string, seasonNumber int) (store.TVSeason, error) {
	seasonID := NormalizeSeasonID(show, seasonNumber)
	return m.seasons.GetOrCreate(seasonID, show, seasonNumber)
}

// RefreshEpisodes fetches and caches the metadata provider's episode list
// for a season (spec §4.3 step 4). Called on first sighting of a season and
// whenever an edit changes which season a disc belongs to.
func (m *Manager) RefreshEpisodes(ctx context.Context, seasonID, showName string, seasonNumber int) error {
	series, found, err := m.meta.BestMatchingSeries(ctx, showName)
	if err != nil {
		return fmt.Errorf("lookup series %q: %w", showName, err)
	}
	if !found {
		return nil
	}

	episodes, err := m.meta.SeasonEpisodes(ctx, series.ExternalID, seasonNumber)
	if err != nil {
		return fmt.Errorf("lookup episodes for %q season %d: %w", showName, seasonNumber, err)
	}

	storeEpisodes := make([]store.TVEpisode, len(episodes))
	for i, e := range episodes {
		storeEpisodes[i] = store.TVEpisode{
			EpisodeNumber: e.EpisodeNumber,
			Name:          e.Name,
			SeasonNumber:  e.SeasonNumber,
			RuntimeMin:    e.RuntimeMin,
			Overview:      e.Overview,
		}
	}
	return m.seasons.SetEpisodes(seasonID, &series.ExternalID, storeEpisodes)
}

// ResolveStartingEpisode implements the re-insertion rule in spec §3/§4.4:
// if this disc's starting_episode_number is unset and its name matches the
// season's last_disc_name, treat it as a re-rip and continue right after
// the last assignment instead of restarting numbering.
func ResolveStartingEpisode(season store.TVSeason, discName string, explicitStart *int) int {
	if explicitStart != nil {
		return *explicitStart
	}
	if season.LastDiscName != nil && *season.LastDiscName == discName {
		return season.LastEpisodeAssigned + 1
	}
	return season.LastEpisodeAssigned + 1
}

// Advance persists the new high-water mark after episode matching assigns a
// run of episode numbers, honoring the monotonicity invariant.
func (m *Manager) Advance(seasonID string, newLastAssigned int) error {
	return m.seasons.AdvanceLastEpisodeAssigned(seasonID, newLastAssigned, false)
}

// EditStartingEpisode is the operator "edit season/starting-episode" path
// (spec §4.4): an explicit edit is allowed to move the counter in either
// direction, so it forces the write past the monotonicity guard.
func (m *Manager) EditStartingEpisode(seasonID string, startingEpisode int) error {
	return m.seasons.AdvanceLastEpisodeAssigned(seasonID, startingEpisode-1, true)
}

// RecordDisc appends this disc to the season's history and updates
// last_disc_name, enabling the next disc's re-insertion check.
func (m *Manager) RecordDisc(seasonID, discID, discName string) error {
	return m.seasons.RecordDisc(seasonID, discID, discName)
}

func (m *Manager) Get(seasonID string) (store.TVSeason, error) {
	return m.seasons.Get(seasonID)
}
