package preview_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ripcoord/ripcoord/internal/preview"
)

func TestSanitizeStripsIllegalCharactersAndCollapsesWhitespace(t *testing.T) {
	got, err := preview.Sanitize(`Who? Cares:   "Really"  /\|*<>`)
	require.NoError(t, err)
	assert.Equal(t, "Who Cares Really", got)
}

func TestSanitizeRejectsAnEmptyResult(t *testing.T) {
	_, err := preview.Sanitize(`<>:"/\|?*`)
	assert.ErrorIs(t, err, preview.ErrEmptySanitizedName)
}

func TestTVMainFilenameBuildsShowSeasonEpisodePath(t *testing.T) {
	name, path, err := preview.TVMainFilename("Breaking Bad", 3, 7, "One Minute")
	require.NoError(t, err)
	assert.Equal(t, "Breaking Bad - S03E07 - One Minute.mkv", name)
	assert.Equal(t, "Breaking Bad/Season 03/Breaking Bad - S03E07 - One Minute.mkv", path)
}

func TestTVMainFilenamePropagatesASanitizeFailure(t *testing.T) {
	_, _, err := preview.TVMainFilename("Breaking Bad", 3, 7, `???`)
	assert.ErrorIs(t, err, preview.ErrEmptySanitizedName)
}

func TestMovieMainFilenameOmitsTheYearWhenUnknown(t *testing.T) {
	name, path, err := preview.MovieMainFilename("Heat", nil)
	require.NoError(t, err)
	assert.Equal(t, "Heat.mkv", name)
	assert.Equal(t, "Heat/Heat.mkv", path)
}

func TestMovieMainFilenameIncludesTheYearWhenKnown(t *testing.T) {
	year := 1995
	name, path, err := preview.MovieMainFilename("Heat", &year)
	require.NoError(t, err)
	assert.Equal(t, "Heat (1995).mkv", name)
	assert.Equal(t, "Heat (1995)/Heat (1995).mkv", path)
}

func TestMovieExtraFilenameNestsUnderExtras(t *testing.T) {
	year := 1995
	name, path, err := preview.MovieExtraFilename("Heat", &year, "Deleted Scene")
	require.NoError(t, err)
	assert.Equal(t, "Deleted Scene.mkv", name)
	assert.Equal(t, "Heat (1995)/Extras/Deleted Scene.mkv", path)
}

func TestTVExtraFilenameNestsUnderSeasonExtras(t *testing.T) {
	name, path, err := preview.TVExtraFilename("Archer", 2, "Gag Reel")
	require.NoError(t, err)
	assert.Equal(t, "Gag Reel.mkv", name)
	assert.Equal(t, "Archer/Season 02/Extras/Gag Reel.mkv", path)
}
