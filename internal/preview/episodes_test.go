package preview

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ripcoord/ripcoord/internal/store"
)

func TestScoreMatchIsHighConfidenceWithinTwoMinutesOrTenPercent(t *testing.T) {
	runtime := 44
	assert.Equal(t, confidenceHigh, scoreMatch(44*60+90, &runtime))
}

func TestScoreMatchIsMediumConfidenceWithinFiveMinutesOrTwentyPercent(t *testing.T) {
	runtime := 44
	assert.Equal(t, confidenceMedium, scoreMatch(44*60+280, &runtime))
}

func TestScoreMatchIsLowConfidenceWithinFiftyPercent(t *testing.T) {
	runtime := 44
	assert.Equal(t, confidenceLow, scoreMatch(44*60+1200, &runtime))
}

func TestScoreMatchIsVeryLowConfidenceBeyondFiftyPercent(t *testing.T) {
	runtime := 44
	assert.Equal(t, confidenceVeryLow, scoreMatch(1, &runtime))
}

func TestScoreMatchIsVeryLowConfidenceWithNoRuntimeMetadata(t *testing.T) {
	assert.Equal(t, confidenceVeryLow, scoreMatch(44*60, nil))
}

func TestMatchEpisodesAssignsSequentialNumbersFromStartingEpisode(t *testing.T) {
	mains := []titleCandidate{
		{Index: 2, DurationS: 44 * 60},
		{Index: 0, DurationS: 44 * 60},
		{Index: 1, DurationS: 44 * 60},
	}
	episodes := []store.TVEpisode{
		{EpisodeNumber: 1, Name: "Pilot", RuntimeMin: intPtr(44)},
		{EpisodeNumber: 2, Name: "Episode Two", RuntimeMin: intPtr(44)},
		{EpisodeNumber: 3, Name: "Episode Three", RuntimeMin: intPtr(44)},
	}

	assignments := matchEpisodes(mains, episodes, 1)

	assert.Len(t, assignments, 3)
	assert.Equal(t, 0, assignments[0].TitleIndex)
	assert.Equal(t, 1, assignments[0].EpisodeNumber)
	assert.Equal(t, "Pilot", assignments[0].EpisodeTitle)
	assert.Equal(t, 2, assignments[1].EpisodeNumber)
	assert.Equal(t, 3, assignments[2].EpisodeNumber)
}

func TestMatchEpisodesFallsBackToVeryLowConfidenceWithoutMetadata(t *testing.T) {
	mains := []titleCandidate{{Index: 0, DurationS: 44 * 60}}

	assignments := matchEpisodes(mains, nil, 1)

	assert.Equal(t, "", assignments[0].EpisodeTitle)
	assert.Equal(t, confidenceVeryLow, assignments[0].Confidence)
}

func intPtr(v int) *int { return &v }
