package preview

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyByDurationDetectsASingleMovieLengthTitle(t *testing.T) {
	result := classifyByDuration([]int{8100, 120, 90})

	assert.Equal(t, GuessMovie, result.MediaType)
	assert.GreaterOrEqual(t, result.Confidence, 0.7)
}

func TestClassifyByDurationDetectsAUniformTVSeasonDisc(t *testing.T) {
	result := classifyByDuration([]int{1320, 1350, 1310, 1340})

	assert.Equal(t, GuessTVShow, result.MediaType)
	assert.GreaterOrEqual(t, result.Confidence, 0.6)
}

func TestClassifyByDurationFallsBackToUnknownOnAmbiguousDurations(t *testing.T) {
	result := classifyByDuration([]int{600, 700, 800})

	assert.Equal(t, GuessUnknown, result.MediaType)
	assert.Equal(t, 0.3, result.Confidence)
}

func TestClassifyByDurationAcceptsTwoLongTitlesAsALowerConfidenceMovie(t *testing.T) {
	result := classifyByDuration([]int{7500, 7400})

	assert.Equal(t, GuessMovie, result.MediaType)
	assert.Equal(t, 0.6, result.Confidence)
}
