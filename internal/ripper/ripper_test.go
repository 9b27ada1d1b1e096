package ripper

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseProgressComputesAnOverallPercentage(t *testing.T) {
	pct, ok := parseProgress("PRGV:500,0,1000")
	assert.True(t, ok)
	assert.Equal(t, 50, pct)
}

func TestParseProgressRejectsNonMatchingLines(t *testing.T) {
	_, ok := parseProgress("MSG:1234,0,\"hello\"")
	assert.False(t, ok)
}

func TestParseProgressRejectsAZeroMaxToAvoidDivideByZero(t *testing.T) {
	_, ok := parseProgress("PRGV:0,0,0")
	assert.False(t, ok)
}

func TestRingReturnsLinesInInsertionOrderWhenNotFull(t *testing.T) {
	var r ring
	r.push("a")
	r.push("b")
	r.push("c")

	assert.Equal(t, "a\nb\nc", r.string())
}

func TestRingWrapsOnceFullKeepingOnlyTheMostRecentLines(t *testing.T) {
	var r ring
	capacity := len(r.lines)
	for i := 0; i < capacity+3; i++ {
		r.push(fmt.Sprintf("line-%d", i))
	}

	got := r.string()
	assert.Contains(t, got, fmt.Sprintf("line-%d", capacity+2), "the newest line must survive the wrap")
	assert.NotContains(t, got, "line-0", "the oldest lines must be evicted once the ring wraps")
}
