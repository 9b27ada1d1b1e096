package assign_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ripcoord/ripcoord/internal/assign"
	"github.com/ripcoord/ripcoord/internal/store"
)

func floatPtr(v float64) *float64 { return &v }

func TestNewDefaultsUnrecognizedStrategyNamesToPriority(t *testing.T) {
	assert.Equal(t, assign.Priority, assign.New("nonsense").Name())
}

func TestPriorityStrategyPicksTheLowestPriorityNumber(t *testing.T) {
	strategy := assign.New(assign.Priority)
	candidates := []store.Worker{
		{ID: "a", Priority: 50},
		{ID: "b", Priority: 10},
		{ID: "c", Priority: 99},
	}

	got := strategy.Select(candidates)

	assert.Equal(t, "b", got.ID)
}

func TestRoundRobinStrategyCyclesThroughIDSortedCandidates(t *testing.T) {
	strategy := assign.New(assign.RoundRobin)
	candidates := []store.Worker{{ID: "b"}, {ID: "a"}, {ID: "c"}}

	first := strategy.Select(candidates)
	second := strategy.Select(candidates)
	third := strategy.Select(candidates)
	fourth := strategy.Select(candidates)

	assert.Equal(t, "a", first.ID)
	assert.Equal(t, "b", second.ID)
	assert.Equal(t, "c", third.ID)
	assert.Equal(t, "a", fourth.ID, "the cursor should wrap back to the first candidate")
}

func TestLoadBalanceStrategyPicksTheFewestCurrentJobs(t *testing.T) {
	strategy := assign.New(assign.LoadBalance)
	candidates := []store.Worker{
		{ID: "busy", CurrentJobs: []string{"j1", "j2"}},
		{ID: "idle", CurrentJobs: nil},
	}

	got := strategy.Select(candidates)

	assert.Equal(t, "idle", got.ID)
}

func TestFastestFirstStrategyPicksTheLowestAverageDuration(t *testing.T) {
	strategy := assign.New(assign.FastestFirst)
	candidates := []store.Worker{
		{ID: "slow", Stats: store.WorkerStats{AvgDurationS: floatPtr(500)}},
		{ID: "fast", Stats: store.WorkerStats{AvgDurationS: floatPtr(100)}},
		{ID: "unknown", Stats: store.WorkerStats{AvgDurationS: nil}},
	}

	got := strategy.Select(candidates)

	assert.Equal(t, "fast", got.ID)
}

func TestFastestFirstStrategySortsUnknownAverageDurationLast(t *testing.T) {
	strategy := assign.New(assign.FastestFirst)
	candidates := []store.Worker{
		{ID: "unknown", Stats: store.WorkerStats{AvgDurationS: nil}},
		{ID: "known", Stats: store.WorkerStats{AvgDurationS: floatPtr(100)}},
	}

	got := strategy.Select(candidates)

	assert.Equal(t, "known", got.ID)
}

func TestFilterNarrowsToGPUCapableWorkers(t *testing.T) {
	candidates := []store.Worker{
		{ID: "cpu-only", Capabilities: store.WorkerCapabilities{}},
		{ID: "gpu", Capabilities: store.WorkerCapabilities{HWEncoders: []string{"nvenc"}}},
	}

	got := assign.Filter(candidates, true, "")

	require.Len(t, got, 1)
	assert.Equal(t, "gpu", got[0].ID)
}

func TestFilterNarrowsToARequiredCodec(t *testing.T) {
	candidates := []store.Worker{
		{ID: "h264-only", Capabilities: store.WorkerCapabilities{CodecSupport: []string{"h264"}}},
		{ID: "both", Capabilities: store.WorkerCapabilities{CodecSupport: []string{"h264", "hevc"}}},
	}

	got := assign.Filter(candidates, false, "hevc")

	require.Len(t, got, 1)
	assert.Equal(t, "both", got[0].ID)
}

func TestFilterFallsBackToTheUnfilteredSetWhenNothingMatches(t *testing.T) {
	candidates := []store.Worker{{ID: "only", Capabilities: store.WorkerCapabilities{}}}

	got := assign.Filter(candidates, true, "")

	assert.Equal(t, candidates, got)
}

func TestPickReturnsErrNoWorkerAvailableForAnEmptyPool(t *testing.T) {
	_, err := assign.Pick(assign.New(assign.Priority), nil, false, "")
	assert.ErrorIs(t, err, assign.ErrNoWorkerAvailable)
}
