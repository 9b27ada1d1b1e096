package preview

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReconcileOverridesNameToTVOnStrongHeuristicDisagreement(t *testing.T) {
	name := NamePatternResult{IsTV: false, Show: "Archer"}
	heuristic := HeuristicResult{MediaType: GuessTVShow, Confidence: 0.75}

	got := reconcile(name, heuristic)

	assert.True(t, got.IsTV)
	assert.Equal(t, 1, got.Season)
}

func TestReconcileOverridesNameToMovieOnStrongHeuristicDisagreement(t *testing.T) {
	name := NamePatternResult{IsTV: true, Show: "Heat", Season: 1}
	heuristic := HeuristicResult{MediaType: GuessMovie, Confidence: 0.85}

	got := reconcile(name, heuristic)

	assert.False(t, got.IsTV)
}

func TestReconcileTrustsNameWhenHeuristicDisagreementIsBelowThreshold(t *testing.T) {
	name := NamePatternResult{IsTV: false, Show: "Heat"}
	heuristic := HeuristicResult{MediaType: GuessTVShow, Confidence: 0.5}

	got := reconcile(name, heuristic)

	assert.False(t, got.IsTV)
}

func TestReconcileDefaultsUnsetSeasonToOne(t *testing.T) {
	name := NamePatternResult{IsTV: true, Show: "Archer", Season: 0}
	heuristic := HeuristicResult{MediaType: GuessUnknown, Confidence: 0.3}

	got := reconcile(name, heuristic)

	assert.Equal(t, 1, got.Season)
}
