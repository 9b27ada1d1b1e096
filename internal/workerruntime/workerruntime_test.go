package workerruntime_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ripcoord/ripcoord/internal/workerruntime"
)

func TestPollIDPrefersColocatedAgent(t *testing.T) {
	cfg := workerruntime.Config{WorkerID: "worker-1", AgentID: "agent-1"}
	assert.Equal(t, "agent-1", cfg.PollID())
}

func TestPollIDFallsBackToOwnWorkerIDWhenStandalone(t *testing.T) {
	cfg := workerruntime.Config{WorkerID: "worker-1"}
	assert.Equal(t, "worker-1", cfg.PollID())
}
