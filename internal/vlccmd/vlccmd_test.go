package vlccmd_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ripcoord/ripcoord/internal/store"
	"github.com/ripcoord/ripcoord/internal/testutil"
	"github.com/ripcoord/ripcoord/internal/vlccmd"
)

func newChannel(t *testing.T) *vlccmd.Channel {
	t.Helper()
	db := testutil.NewStore(t)
	_, err := store.NewAgentStore(db.GetSqlxDB()).Register(store.Agent{ID: "agent-1", Name: "agent-1"})
	require.NoError(t, err)
	return vlccmd.New(store.NewVLCStore(db.GetSqlxDB()))
}

func TestQueuePreviewCreatesAPendingCommand(t *testing.T) {
	ch := newChannel(t)

	cmd, err := ch.QueuePreview("agent-1", "/staging/preview.mkv", true)
	require.NoError(t, err)

	require.Equal(t, "agent-1", cmd.AgentID)
	require.Equal(t, store.VLCPending, cmd.Status)
	require.True(t, cmd.Fullscreen)
}

func TestPollDeliversAndMarksSentExactlyOnce(t *testing.T) {
	ch := newChannel(t)

	_, err := ch.QueuePreview("agent-1", "/staging/preview.mkv", false)
	require.NoError(t, err)

	first, err := ch.Poll("agent-1")
	require.NoError(t, err)
	require.Len(t, first, 1)
	require.Equal(t, store.VLCSent, first[0].Status)

	second, err := ch.Poll("agent-1")
	require.NoError(t, err)
	require.Empty(t, second, "a command already delivered must not be redelivered on the next poll")
}

func TestReportRecordsThePlaybackOutcome(t *testing.T) {
	ch := newChannel(t)

	cmd, err := ch.QueuePreview("agent-1", "/staging/preview.mkv", false)
	require.NoError(t, err)

	_, err = ch.Poll("agent-1")
	require.NoError(t, err)

	errMsg := "player crashed"
	require.NoError(t, ch.Report(cmd.ID, store.VLCFailed, &errMsg))
}
