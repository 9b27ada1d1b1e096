package organizer_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ripcoord/ripcoord/internal/notify"
	"github.com/ripcoord/ripcoord/internal/organizer"
	"github.com/ripcoord/ripcoord/internal/store"
)

type recordingSink struct {
	events chan notify.Event
}

func newRecordingSink() *recordingSink { return &recordingSink{events: make(chan notify.Event, 1)} }

func (r *recordingSink) Notify(e notify.Event) { r.events <- e }

func TestPlaceMovesTheUploadUnderTheMoviePrefix(t *testing.T) {
	root := t.TempDir()
	sink := newRecordingSink()
	o := organizer.New(organizer.Config{LibraryRoot: root, TVPrefix: "tv", MoviePrefix: "movies"}, sink)

	src := filepath.Join(t.TempDir(), "upload.mkv")
	require.NoError(t, os.WriteFile(src, []byte("data"), 0o644))

	dest, err := o.Place(context.Background(), src, "Heat (1995)/Heat (1995).mkv", store.MediaMovie, "disc-1", "job-1")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(root, "movies", "Heat (1995)/Heat (1995).mkv"), dest)
	assert.FileExists(t, dest)
	assert.NoFileExists(t, src)

	select {
	case e := <-sink.events:
		assert.Equal(t, "organized", e.Type)
		assert.Equal(t, "disc-1", e.DiscID)
		assert.Equal(t, "job-1", e.JobID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for the organized notification")
	}
}

func TestPlaceMovesTheUploadUnderTheTVPrefix(t *testing.T) {
	root := t.TempDir()
	o := organizer.New(organizer.Config{LibraryRoot: root, TVPrefix: "tv", MoviePrefix: "movies"}, nil)

	src := filepath.Join(t.TempDir(), "upload.mkv")
	require.NoError(t, os.WriteFile(src, []byte("data"), 0o644))

	dest, err := o.Place(context.Background(), src, "Archer/Season 02/Archer - S02E01 - Heart of Archness.mkv", store.MediaTVShow, "disc-1", "job-1")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(root, "tv", "Archer/Season 02/Archer - S02E01 - Heart of Archness.mkv"), dest)
	assert.FileExists(t, dest)
}

func TestPlaceFailureLeavesTheUploadInPlace(t *testing.T) {
	o := organizer.New(organizer.Config{LibraryRoot: t.TempDir(), MoviePrefix: "movies"}, nil)

	src := filepath.Join(t.TempDir(), "missing.mkv")

	_, err := o.Place(context.Background(), src, "Heat (1995)/Heat (1995).mkv", store.MediaMovie, "disc-1", "job-1")
	assert.Error(t, err)
}

func TestPlaceTriggersAScanAgainstTheConfiguredURL(t *testing.T) {
	requested := make(chan string, 1)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requested <- r.URL.Query().Get("path")
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	root := t.TempDir()
	o := organizer.New(organizer.Config{LibraryRoot: root, MoviePrefix: "movies", ScanURL: ts.URL}, nil)

	src := filepath.Join(t.TempDir(), "upload.mkv")
	require.NoError(t, os.WriteFile(src, []byte("data"), 0o644))

	_, err := o.Place(context.Background(), src, "Heat (1995)/Heat (1995).mkv", store.MediaMovie, "disc-1", "job-1")
	require.NoError(t, err)

	select {
	case path := <-requested:
		assert.Equal(t, filepath.Join(root, "movies", "Heat (1995)"), path)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for the scan trigger request")
	}
}
