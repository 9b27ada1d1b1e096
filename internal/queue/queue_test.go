package queue_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ripcoord/ripcoord/internal/event"
	"github.com/ripcoord/ripcoord/internal/queue"
	"github.com/ripcoord/ripcoord/internal/store"
	"github.com/ripcoord/ripcoord/internal/testutil"
)

func newTestService(t *testing.T) (*queue.Service, store.Manager) {
	t.Helper()
	db := testutil.NewStore(t)
	bus := event.New()
	return queue.New(db, bus, queue.AssignmentConfig{Strategy: "round_robin"}), db
}

func seedAgent(t *testing.T, db store.Manager) store.Agent {
	t.Helper()
	agents := store.NewAgentStore(db.GetSqlxDB())
	a, err := agents.Register(store.Agent{
		ID:   store.NewID(),
		Name: "agent-1",
		Capabilities: store.AgentCapabilities{
			CanRip:       true,
			CanTranscode: false,
		},
	})
	require.NoError(t, err)
	return a
}

func seedDisc(t *testing.T, db store.Manager, agentID string) store.Disc {
	t.Helper()
	discs := store.NewDiscStore(db, db.GetSqlxDB())
	d, err := discs.Create(store.Disc{
		AgentID: agentID,
		Drive:   "/dev/sr0",
		Name:    "test disc",
		Type:    store.DiscDVD,
	})
	require.NoError(t, err)
	return d
}

func seedStandaloneWorker(t *testing.T, db store.Manager) store.Worker {
	t.Helper()
	workers := store.NewWorkerStore(db.GetSqlxDB())
	w, err := workers.Register(store.Worker{
		ID:       store.NewID(),
		Type:     store.WorkerTypeServer,
		Hostname: "transcode-box",
		Enabled:  true,
		Capabilities: store.WorkerCapabilities{
			MaxConcurrent: 2,
		},
	})
	require.NoError(t, err)
	return w
}

func TestCreateRipJobAutoAssignsToOwningAgent(t *testing.T) {
	svc, db := newTestService(t)
	agent := seedAgent(t, db)
	disc := seedDisc(t, db, agent.ID)

	job, err := svc.CreateRipJob(disc.ID, agent.ID, 0, "/staging/in.mkv", 10)
	require.NoError(t, err)

	require.Equal(t, store.JobAssigned, job.Status)
	require.NotNil(t, job.AssignedAgentID)
	require.Equal(t, agent.ID, *job.AssignedAgentID)
}

func TestCreateTranscodeJobDefaultsToRequiresApproval(t *testing.T) {
	svc, _ := newTestService(t)

	job, err := svc.CreateTranscodeJob("/staging/in.mkv", "Movie (2020)", "test disc", 1024, nil, nil)
	require.NoError(t, err)

	require.Equal(t, store.JobPending, job.Status)
	require.True(t, job.RequiresApproval)
}

func TestApproveStandaloneWorkerAssignsToItself(t *testing.T) {
	svc, db := newTestService(t)
	worker := seedStandaloneWorker(t, db)

	job, err := svc.CreateTranscodeJob("/staging/in.mkv", "Movie (2020)", "test disc", 1024, nil, nil)
	require.NoError(t, err)

	outputName := "Movie (2020).mkv"
	assigned, err := svc.Approve(job.ID, worker.ID, "h264-1080p", &outputName)
	require.NoError(t, err)

	require.Equal(t, store.JobAssigned, assigned.Status)
	require.NotNil(t, assigned.AssignedAgentID)
	require.Equal(t, worker.ID, *assigned.AssignedAgentID)
}

func TestUpdateReleasesAgentOnTerminalStatus(t *testing.T) {
	svc, db := newTestService(t)
	agent := seedAgent(t, db)
	disc := seedDisc(t, db, agent.ID)

	job, err := svc.CreateRipJob(disc.ID, agent.ID, 0, "/staging/in.mkv", 10)
	require.NoError(t, err)

	_, err = svc.Update(job.ID, store.JobCompleted, nil, nil, nil, nil)
	require.NoError(t, err)

	agents := store.NewAgentStore(db.GetSqlxDB())
	reloaded, err := agents.Get(agent.ID)
	require.NoError(t, err)
	require.Nil(t, reloaded.CurrentJobID, "a completed job should free its owning agent's slot")
}

func TestCancelRejectsAnAlreadyTerminalJob(t *testing.T) {
	svc, db := newTestService(t)
	agent := seedAgent(t, db)
	disc := seedDisc(t, db, agent.ID)

	job, err := svc.CreateRipJob(disc.ID, agent.ID, 0, "/staging/in.mkv", 10)
	require.NoError(t, err)

	_, err = svc.Update(job.ID, store.JobCompleted, nil, nil, nil, nil)
	require.NoError(t, err)

	_, err = svc.Cancel(job.ID)
	require.Error(t, err)
}
