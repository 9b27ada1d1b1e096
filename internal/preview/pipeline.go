// Package preview implements the eight-stage disc-preview pipeline (spec
// §4.3): title-duration heuristic, name-pattern detection, reconciliation,
// metadata lookup, extras filter, episode matching, filename synthesis, and
// finalize. It is invoked synchronously on every disc detection and
// re-detection and is deterministic given (disc name, titles, cached
// metadata) modulo the season continuation state.
package preview

import (
	"context"
	"fmt"

	"github.com/ripcoord/ripcoord/internal/metadata"
	"github.com/ripcoord/ripcoord/internal/season"
	"github.com/ripcoord/ripcoord/internal/store"
	"github.com/ripcoord/ripcoord/pkg/logger"
)

var log = logger.Get("Preview")

// Config carries the pipeline's tunables, all with spec-named defaults.
type Config struct {
	Extras                 ExtrasConfig
	AmbiguousSearchEnabled bool
	AutoApprove            bool
}

func DefaultConfig() Config {
	return Config{Extras: DefaultExtrasConfig()}
}

// Pipeline wires the stage functions in this package to the durable store
// and the season continuation state machine.
type Pipeline struct {
	discs   *store.DiscStore
	titles  *store.TitleStore
	seasons *season.Manager
	meta    *metadata.Client
	cfg     Config
}

func New(discs *store.DiscStore, titles *store.TitleStore, seasons *season.Manager, meta *metadata.Client, cfg Config) *Pipeline {
	return &Pipeline{discs: discs, titles: titles, seasons: seasons, meta: meta, cfg: cfg}
}

// Run executes all eight stages against a disc's current name + raw title
// set and persists the result (spec §4.3).
func (p *Pipeline) Run(ctx context.Context, discID string) (store.Disc, error) {
	disc, err := p.discs.Get(discID)
	if err != nil {
		return store.Disc{}, fmt.Errorf("load disc %s: %w", discID, err)
	}
	rawTitles, err := p.titles.ForDisc(discID)
	if err != nil {
		return store.Disc{}, fmt.Errorf("load titles for disc %s: %w", discID, err)
	}

	durations := make([]int, len(rawTitles))
	for i, t := range rawTitles {
		durations[i] = t.DurationSeconds
	}

	// stage 1: title-pattern heuristic
	heuristicResult := classifyByDuration(durations)

	// stage 2: name-pattern detection
	nameResult := detectFromName(disc.Name, p.cfg.AmbiguousSearchEnabled)

	// stage 3: reconciliation
	classification := reconcile(nameResult, heuristicResult)

	var (
		mediaType store.MediaType
		tv        store.TVPreview
		movie     store.MoviePreview
		episodes  []store.TVEpisode
		seasonRec store.TVSeason
	)

	if classification.IsTV {
		mediaType = store.MediaTVShow

		seasonID := season.NormalizeSeasonID(classification.Show, classification.Season)
		seasonRec, err = p.seasons.GetOrCreate(classification.Show, classification.Season)
		if err != nil {
			return store.Disc{}, fmt.Errorf("resolve season for disc %s: %w", discID, err)
		}

		// stage 4: metadata (TV)
		if err := p.seasons.RefreshEpisodes(ctx, seasonID, classification.Show, classification.Season); err != nil {
			log.Warnf("metadata lookup failed for %q season %d: %s", classification.Show, classification.Season, err)
		}
		if refreshed, err := p.seasons.Get(seasonID); err == nil {
			seasonRec = refreshed
		}
		episodes = seasonRec.Episodes

		tv = store.TVPreview{
			ShowName:     &classification.Show,
			SeasonNumber: &classification.Season,
			SeasonID:     &seasonID,
		}
		if seasonRec.SeriesExternalID != nil {
			tv.SeriesExternalID = seasonRec.SeriesExternalID
		}
	} else {
		mediaType = store.MediaMovie

		year := ParseYear(disc.Name)
		// stage 4: metadata (movie)
		if p.meta != nil {
			if match, found, err := p.meta.BestMatchingMovie(ctx, classification.Show, year); err != nil {
				log.Warnf("metadata lookup failed for movie %q: %s", classification.Show, err)
			} else if found {
				movie = store.MoviePreview{Title: &match.Title, Year: match.Year, IMDbID: &match.ExternalID, Confidence: heuristicResult.Confidence}
			}
		}
		if movie.Title == nil {
			movie = store.MoviePreview{Title: &classification.Show, Year: year, Confidence: heuristicResult.Confidence}
		}
	}

	candidates := make([]titleCandidate, len(rawTitles))
	for i, t := range rawTitles {
		candidates[i] = titleCandidate{Index: t.Index, Name: t.Name, DurationS: t.DurationSeconds}
	}

	// stage 5: extras filter
	candidates = markExtras(candidates, p.cfg.Extras)

	var mains []titleCandidate
	for _, c := range candidates {
		if !c.IsExtra {
			mains = append(mains, c)
		}
	}

	assignmentsByIndex := map[int]EpisodeAssignment{}
	startingEpisode := 0
	if classification.IsTV {
		// stage 6: episode matching
		startingEpisode = season.ResolveStartingEpisode(seasonRec, disc.Name, tv.StartingEpisodeNumber)
		assignments := matchEpisodes(mains, episodes, startingEpisode)
		for _, a := range assignments {
			assignmentsByIndex[a.TitleIndex] = a
		}
		if len(assignments) > 0 {
			highest := assignments[len(assignments)-1].EpisodeNumber
			if err := p.seasons.Advance(*tv.SeasonID, highest); err != nil {
				log.Warnf("advance last_episode_assigned for season %s: %s", *tv.SeasonID, err)
			}
			if err := p.seasons.RecordDisc(*tv.SeasonID, discID, disc.Name); err != nil {
				log.Warnf("record disc on season %s: %s", *tv.SeasonID, err)
			}
		}
		startVal := startingEpisode
		tv.StartingEpisodeNumber = &startVal
	}

	newTitles := make([]store.Title, len(rawTitles))
	for i, t := range rawTitles {
		t.IsExtra = titleIsExtra(candidates, t.Index)

		// stage 7: filename synthesis. A sanitize failure (name is nothing
		// but illegal characters) leaves ProposedFilename/Path unset rather
		// than writing a blank filename component; the title still
		// regenerates with the rest of the disc and waits on manual naming.
		var name, path string
		var err error
		if t.IsExtra {
			var extraName string
			extraName, err = Sanitize(t.Name)
			if err == nil {
				if classification.IsTV {
					name, path, err = TVExtraFilename(classification.Show, classification.Season, extraName)
				} else {
					name, path, err = MovieExtraFilename(*movie.Title, movie.Year, extraName)
				}
			}
			if err == nil {
				t.ProposedFilename = &name
				t.ProposedPath = &path
			}
		} else if classification.IsTV {
			if a, ok := assignmentsByIndex[t.Index]; ok {
				episodeNumber := a.EpisodeNumber
				episodeTitle := a.EpisodeTitle
				t.EpisodeNumber = &episodeNumber
				t.EpisodeTitle = &episodeTitle
				t.Confidence = a.Confidence
				name, path, err = TVMainFilename(classification.Show, classification.Season, episodeNumber, episodeTitle)
				if err == nil {
					t.ProposedFilename = &name
					t.ProposedPath = &path
				}
			}
		} else {
			name, path, err = MovieMainFilename(*movie.Title, movie.Year)
			if err == nil {
				t.ProposedFilename = &name
				t.ProposedPath = &path
			}
			t.Confidence = movie.Confidence
		}
		if err != nil {
			log.Warnf("title %d on disc %s: %s, leaving unnamed for manual review", t.Index, discID, err)
		}

		newTitles[i] = t
	}

	// stages 4 (classification persist) + regenerated title set, atomically
	updatedDisc, _, err := p.discs.RegeneratePreview(discID, mediaType, tv, movie, newTitles)
	if err != nil {
		return store.Disc{}, fmt.Errorf("persist preview for disc %s: %w", discID, err)
	}

	// stage 8: finalize
	if p.cfg.AutoApprove {
		if approved, err := p.discs.ApprovePreview(discID); err == nil {
			updatedDisc = approved
		} else {
			log.Warnf("auto-approve failed for disc %s: %s", discID, err)
		}
	}

	return updatedDisc, nil
}

func titleIsExtra(candidates []titleCandidate, index int) bool {
	for _, c := range candidates {
		if c.Index == index {
			return c.IsExtra
		}
	}
	return false
}
