package coordclient_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ripcoord/ripcoord/internal/coordclient"
	"github.com/ripcoord/ripcoord/internal/store"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *coordclient.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return coordclient.New(coordclient.Config{BaseURL: srv.URL, RequestTimeout: 5 * time.Second})
}

func TestRegisterAgentRoundTrips(t *testing.T) {
	var gotAuth, gotMethod, gotPath string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotMethod = r.Method
		gotPath = r.URL.Path
		json.NewEncoder(w).Encode(store.Agent{ID: "agent-1", Name: "Bay 1"})
	})

	agent, err := client.RegisterAgent(context.Background(), "agent-1", "Bay 1", store.AgentCapabilities{CanRip: true})
	require.NoError(t, err)
	assert.Equal(t, "agent-1", agent.ID)
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/api/agents/register", gotPath)
	assert.Empty(t, gotAuth, "no bearer token configured, Authorization header should be absent")
}

func TestBearerTokenIsAttachedWhenConfigured(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := coordclient.New(coordclient.Config{BaseURL: srv.URL, BearerToken: "secret", RequestTimeout: 5 * time.Second})
	require.NoError(t, client.AgentHeartbeat(context.Background(), "agent-1"))
}

func TestStatusErrorCarriesCodeAndBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("rip already in progress"))
	})

	_, err := client.GetDisc(context.Background(), "disc-1")
	require.Error(t, err)

	var statusErr *coordclient.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.Code)
	assert.Contains(t, statusErr.Body, "rip already in progress")
}

func TestUpdateJobOmitsNilFields(t *testing.T) {
	var body map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		json.NewEncoder(w).Encode(store.Job{ID: "job-1"})
	})

	_, err := client.UpdateJob(context.Background(), "job-1", store.JobRunning, nil, nil, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, string(store.JobRunning), body["status"])
	assert.NotContains(t, body, "progress")
	assert.NotContains(t, body, "error")
	assert.NotContains(t, body, "output_file")
	assert.NotContains(t, body, "log_tail")
}

func TestUpdateJobIncludesProvidedFields(t *testing.T) {
	var body map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		json.NewEncoder(w).Encode(store.Job{ID: "job-1"})
	})

	progress := 42
	outputFile := "/var/lib/ripcoord/rips/job-1/job-1.mkv"
	_, err := client.UpdateJob(context.Background(), "job-1", store.JobRunning, &progress, nil, &outputFile, nil)
	require.NoError(t, err)

	assert.EqualValues(t, 42, body["progress"])
	assert.Equal(t, outputFile, body["output_file"])
}

func TestUploadFileSendsMultipartFields(t *testing.T) {
	var gotName, gotDiscID, gotJobID, gotContents string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		gotName = r.FormValue("name")
		gotDiscID = r.FormValue("disc_id")
		gotJobID = r.FormValue("job_id")

		file, _, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		buf := make([]byte, 64)
		n, _ := file.Read(buf)
		gotContents = string(buf[:n])

		json.NewEncoder(w).Encode(map[string]any{"path": "/library/movies/Foo/Foo.mkv"})
	})

	tmp, err := os.CreateTemp(t.TempDir(), "upload-*.mkv")
	require.NoError(t, err)
	_, err = tmp.WriteString("fake video bytes")
	require.NoError(t, err)
	require.NoError(t, tmp.Close())

	out, err := client.UploadFile(context.Background(), tmp.Name(), "Foo.mkv", "disc-1", "job-1")
	require.NoError(t, err)

	assert.Equal(t, "Foo.mkv", gotName)
	assert.Equal(t, "disc-1", gotDiscID)
	assert.Equal(t, "job-1", gotJobID)
	assert.Equal(t, "fake video bytes", gotContents)
	assert.Equal(t, "/library/movies/Foo/Foo.mkv", out["path"])
}

func TestIsJobCancelledDecodesBooleanResponse(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"cancelled": true})
	})

	cancelled, err := client.IsJobCancelled(context.Background(), "job-1")
	require.NoError(t, err)
	assert.True(t, cancelled)
}
