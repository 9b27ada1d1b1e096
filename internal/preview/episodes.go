package preview

import (
	"sort"

	"github.com/ripcoord/ripcoord/internal/store"
)

// Confidence bands from spec §4.3 step 6.
const (
	confidenceHigh     = 0.95
	confidenceMedium   = 0.70
	confidenceLow      = 0.40
	confidenceVeryLow  = 0.30

	confidenceHighSeconds   = 120
	confidenceHighFraction  = 0.10
	confidenceMedSeconds    = 300
	confidenceMedFraction   = 0.20
	confidenceLowFraction   = 0.50
)

// EpisodeAssignment is one title's outcome from stage 6.
type EpisodeAssignment struct {
	TitleIndex    int
	EpisodeNumber int
	EpisodeTitle  string
	Confidence    float64
}

// matchEpisodes implements spec §4.3 step 6: sort surviving main titles by
// disc-authoring order, then walk them assigning sequential episode numbers
// starting at startingEpisode, scoring each pairing against the cached
// episode metadata's runtime.
func matchEpisodes(mains []titleCandidate, episodes []store.TVEpisode, startingEpisode int) []EpisodeAssignment {
	sorted := make([]titleCandidate, len(mains))
	copy(sorted, mains)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Index < sorted[j].Index })

	episodeByNumber := make(map[int]store.TVEpisode, len(episodes))
	for _, e := range episodes {
		episodeByNumber[e.EpisodeNumber] = e
	}

	assignments := make([]EpisodeAssignment, len(sorted))
	for i, title := range sorted {
		episodeNumber := startingEpisode + i
		ep, haveMeta := episodeByNumber[episodeNumber]

		name := ""
		confidence := confidenceVeryLow
		if haveMeta {
			name = ep.Name
			confidence = scoreMatch(title.DurationS, ep.RuntimeMin)
		}

		assignments[i] = EpisodeAssignment{
			TitleIndex:    title.Index,
			EpisodeNumber: episodeNumber,
			EpisodeTitle:  name,
			Confidence:    confidence,
		}
	}
	return assignments
}

// scoreMatch implements spec §4.3 step 6's confidence bands. A nil or
// missing runtime always falls through to "very low" regardless of
// duration.
func scoreMatch(titleDurationS int, runtimeMin *int) float64 {
	if runtimeMin == nil {
		return confidenceVeryLow
	}

	runtimeS := *runtimeMin * 60
	diff := abs(titleDurationS - runtimeS)
	fraction := 1.0
	if runtimeS > 0 {
		fraction = float64(diff) / float64(runtimeS)
	}

	switch {
	case diff <= confidenceHighSeconds || fraction <= confidenceHighFraction:
		return confidenceHigh
	case diff <= confidenceMedSeconds || fraction <= confidenceMedFraction:
		return confidenceMedium
	case fraction <= confidenceLowFraction:
		return confidenceLow
	default:
		return confidenceVeryLow
	}
}
