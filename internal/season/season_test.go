package season_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ripcoord/ripcoord/internal/season"
	"github.com/ripcoord/ripcoord/internal/store"
)

func TestNormalizeSeasonIDLowercasesAndCollapsesWhitespace(t *testing.T) {
	a := season.NormalizeSeasonID("  Breaking   Bad ", 3)
	b := season.NormalizeSeasonID("breaking bad", 3)

	assert.Equal(t, "breaking bad:s3", a)
	assert.Equal(t, a, b, "two spellings of the same show should collapse to one season id")
}

func TestResolveStartingEpisodeHonorsAnExplicitOverride(t *testing.T) {
	explicit := 5
	got := season.ResolveStartingEpisode(store.TVSeason{LastEpisodeAssigned: 2}, "Disc 2", &explicit)
	assert.Equal(t, 5, got)
}

func TestResolveStartingEpisodeContinuesAfterTheLastAssignedEpisode(t *testing.T) {
	got := season.ResolveStartingEpisode(store.TVSeason{LastEpisodeAssigned: 4}, "Disc 3", nil)
	assert.Equal(t, 5, got)
}

func TestResolveStartingEpisodeTreatsAMatchingDiscNameAsAReRip(t *testing.T) {
	discName := "Disc 2"
	s := store.TVSeason{LastEpisodeAssigned: 6, LastDiscName: &discName}
	got := season.ResolveStartingEpisode(s, discName, nil)
	assert.Equal(t, 7, got)
}
