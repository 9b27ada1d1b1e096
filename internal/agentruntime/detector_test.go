package agentruntime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ripcoord/ripcoord/internal/coordclient"
	"github.com/ripcoord/ripcoord/internal/ripper"
	"github.com/ripcoord/ripcoord/internal/store"
)

func TestPollDrivesReportsDetectionOnceThenEjectionOnRemoval(t *testing.T) {
	var detected, ejected atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/discs/detected":
			detected.Add(1)
			json.NewEncoder(w).Encode(store.Disc{ID: "disc-1"})
		case "/api/discs/ejected":
			ejected.Add(1)
			w.WriteHeader(http.StatusOK)
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	client := coordclient.New(coordclient.Config{BaseURL: srv.URL, RequestTimeout: 5 * time.Second})
	runtime := New(Config{AgentID: "agent-1"}, client)

	present := true
	probe := TitleProbe(func(ctx context.Context, drive string) (store.DiscType, []coordTitle, error) {
		if present {
			return store.DiscDVD, []coordTitle{{Index: 0, Name: "main feature"}}, nil
		}
		return store.DiscUnknown, nil, nil
	})
	detector := NewDetector(runtime, []string{"/dev/sr0"}, probe)

	detector.pollDrives(context.Background())
	detector.pollDrives(context.Background())
	assert.Equal(t, int32(1), detected.Load(), "a still-present disc should only be reported once")

	present = false
	detector.pollDrives(context.Background())
	assert.Equal(t, int32(1), ejected.Load())

	present = true
	detector.pollDrives(context.Background())
	assert.Equal(t, int32(2), detected.Load(), "re-insertion after ejection is reported again")
}

func TestDefaultTitleProbeReturnsErrorWhenRipperBinaryMissing(t *testing.T) {
	cfg := ripper.DefaultConfig("ripcoord-nonexistent-ripper-binary")
	probe := DefaultTitleProbe(cfg)
	_, _, err := probe(context.Background(), "/dev/does-not-exist")
	require.Error(t, err)
}
