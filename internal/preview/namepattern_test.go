package preview

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectFromNameMatchesExplicitSeasonNumber(t *testing.T) {
	result := detectFromName("Breaking Bad S03", false)

	assert.True(t, result.IsTV)
	assert.Equal(t, "Breaking Bad", result.Show)
	assert.Equal(t, 3, result.Season)
}

func TestDetectFromNameMatchesSeasonWord(t *testing.T) {
	result := detectFromName("The Wire Season 2", false)

	assert.True(t, result.IsTV)
	assert.Equal(t, "The Wire", result.Show)
	assert.Equal(t, 2, result.Season)
}

func TestDetectFromNameDefaultsDiscOnlyNamesToSeasonOne(t *testing.T) {
	result := detectFromName("Archer Disc 4", false)

	assert.True(t, result.IsTV)
	assert.Equal(t, "Archer", result.Show)
	assert.Equal(t, 1, result.Season)
}

func TestDetectFromNameMatchesKeywordTokens(t *testing.T) {
	result := detectFromName("Friends Complete Series", false)

	assert.True(t, result.IsTV)
	assert.Equal(t, "Friends", result.Show)
	assert.Equal(t, 1, result.Season)
}

func TestDetectFromNameLeavesShortAmbiguousNamesAsMovieWhenSearchDisabled(t *testing.T) {
	result := detectFromName("Heat", false)

	assert.False(t, result.IsTV)
	assert.Equal(t, "Heat", result.Show)
}

func TestDetectFromNameFlagsShortAmbiguousNamesAsTVWhenSearchEnabled(t *testing.T) {
	result := detectFromName("Heat", true)

	assert.True(t, result.IsTV)
	assert.True(t, result.Ambiguous)
}

func TestDetectFromNameDoesNotFlagNamesWithAMovieIndicatorAsAmbiguous(t *testing.T) {
	result := detectFromName("Heat (1995)", true)

	assert.False(t, result.IsTV)
}

func TestDetectFromNameDoesNotFlagLongNamesAsAmbiguous(t *testing.T) {
	result := detectFromName("The Lord of the Rings", true)

	assert.False(t, result.IsTV)
}

func TestParseYearExtractsAFourDigitYearInParens(t *testing.T) {
	y := ParseYear("Heat (1995) Blu-Ray")
	require.NotNil(t, y)
	assert.Equal(t, 1995, *y)
}

func TestParseYearReturnsNilWhenNoYearPresent(t *testing.T) {
	assert.Nil(t, ParseYear("Heat Blu-Ray"))
}
