package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ripcoord/ripcoord/internal/api"
	"github.com/ripcoord/ripcoord/internal/store"
	"github.com/ripcoord/ripcoord/internal/testutil"
	"github.com/ripcoord/ripcoord/internal/vlccmd"
)

func newVLCTestServer(t *testing.T) *api.Server {
	t.Helper()
	db := testutil.NewStore(t)
	channel := vlccmd.New(store.NewVLCStore(db.GetSqlxDB()))
	return api.New(api.Config{}, api.Deps{VLC: channel})
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestVLCQueuePollReportRoundTripsThroughTheHTTPSurface(t *testing.T) {
	srv := newVLCTestServer(t)
	h := srv.Handler()

	queueRec := doJSON(t, h, http.MethodPost, "/api/vlc/commands", map[string]any{
		"agent_id":   "agent-1",
		"file_path":  "/staging/preview.mkv",
		"fullscreen": true,
	})
	require.Equal(t, http.StatusCreated, queueRec.Code)
	var queued store.VLCCommand
	require.NoError(t, json.Unmarshal(queueRec.Body.Bytes(), &queued))
	require.Equal(t, store.VLCPending, queued.Status)

	pollRec := doJSON(t, h, http.MethodGet, "/api/vlc/commands/agent-1", nil)
	require.Equal(t, http.StatusOK, pollRec.Code)
	var polled struct {
		Commands []store.VLCCommand `json:"commands"`
	}
	require.NoError(t, json.Unmarshal(pollRec.Body.Bytes(), &polled))
	require.Len(t, polled.Commands, 1)
	require.Equal(t, queued.ID, polled.Commands[0].ID)

	reportRec := doJSON(t, h, http.MethodPost, "/api/vlc/commands/"+queued.ID+"/report", map[string]any{
		"status": "completed",
	})
	require.Equal(t, http.StatusOK, reportRec.Code)
}

func TestVLCQueueRejectsAMissingFilePath(t *testing.T) {
	srv := newVLCTestServer(t)

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/vlc/commands", map[string]any{
		"agent_id": "agent-1",
	})

	require.Equal(t, http.StatusBadRequest, rec.Code)
}
