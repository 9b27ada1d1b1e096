package preview

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMarkExtrasFlagsTitlesBelowTheMinimumDuration(t *testing.T) {
	cfg := DefaultExtrasConfig()
	titles := []titleCandidate{
		{Index: 0, Name: "Main Feature", DurationS: 6000},
		{Index: 1, Name: "Short Clip", DurationS: 60},
	}

	out := markExtras(titles, cfg)

	assert.False(t, out[0].IsExtra)
	assert.True(t, out[1].IsExtra)
}

func TestMarkExtrasFlagsTitlesMatchingABonusKeyword(t *testing.T) {
	cfg := DefaultExtrasConfig()
	titles := []titleCandidate{
		{Index: 0, Name: "Main Feature", DurationS: 6000},
		{Index: 1, Name: "Director Commentary", DurationS: 6000},
	}

	out := markExtras(titles, cfg)

	assert.False(t, out[0].IsExtra)
	assert.True(t, out[1].IsExtra, "a bonus-keyword title is an extra even at feature-length duration")
}

func TestMarkExtrasFlagsTitlesDeviatingFromTheSurvivingMedian(t *testing.T) {
	cfg := DefaultExtrasConfig()
	titles := []titleCandidate{
		{Index: 0, Name: "Episode 1", DurationS: 1300},
		{Index: 1, Name: "Episode 2", DurationS: 1320},
		{Index: 2, Name: "Episode 3", DurationS: 1310},
		{Index: 3, Name: "Odd One Out", DurationS: 3000},
	}

	out := markExtras(titles, cfg)

	assert.False(t, out[0].IsExtra)
	assert.True(t, out[3].IsExtra, "a duration deviating past the variance threshold from the median should be marked an extra")
}

func TestMarkExtrasLeavesAUniformSetUnflagged(t *testing.T) {
	cfg := DefaultExtrasConfig()
	titles := []titleCandidate{
		{Index: 0, Name: "Episode 1", DurationS: 1300},
		{Index: 1, Name: "Episode 2", DurationS: 1320},
		{Index: 2, Name: "Episode 3", DurationS: 1310},
	}

	out := markExtras(titles, cfg)

	for _, c := range out {
		assert.False(t, c.IsExtra)
	}
}
