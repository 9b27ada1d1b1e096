package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRankByNameSimilaritySortsClosestMatchFirst(t *testing.T) {
	results := []Series{
		{ExternalID: "1", Name: "The Wire (Commentary)"},
		{ExternalID: "2", Name: "The Wire"},
		{ExternalID: "3", Name: "Something Unrelated"},
	}

	rankByNameSimilarity(results, "The Wire", func(s Series) string { return s.Name })

	assert.Equal(t, "2", results[0].ExternalID)
}
