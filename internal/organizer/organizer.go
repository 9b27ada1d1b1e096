// Package organizer places an uploaded, transcoded file into the media
// library after a successful upload (spec §4.8). Destination derivation
// mirrors the filename templates internal/preview synthesizes; the move
// itself follows the teacher's ffmpeg output-path idiom (MkdirAll the
// parent, then write).
package organizer

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/ripcoord/ripcoord/internal/notify"
	"github.com/ripcoord/ripcoord/internal/store"
	"github.com/ripcoord/ripcoord/pkg/logger"
)

var log = logger.Get("Organizer")

// Config carries the library layout and optional external media-server
// scan trigger (spec §4.8 "trigger a scan ... on the external media server
// (if configured)").
type Config struct {
	LibraryRoot string
	TVPrefix    string
	MoviePrefix string

	ScanURL     string
	SettleDelay time.Duration
}

func DefaultConfig(libraryRoot string) Config {
	return Config{
		LibraryRoot: libraryRoot,
		TVPrefix:    "tv",
		MoviePrefix: "movies",
		SettleDelay: 5 * time.Second,
	}
}

// Organizer resolves the destination path for an uploaded file, moves it
// atomically, and fires the scan/notification side effects on success.
type Organizer struct {
	cfg    Config
	sink   notify.Sink
	client *http.Client
}

func New(cfg Config, sink notify.Sink) *Organizer {
	return &Organizer{cfg: cfg, sink: sink, client: &http.Client{Timeout: 10 * time.Second}}
}

// Place moves uploadedTempPath into the library at relativePath (the
// already-synthesized "<Show>/Season NN/...mkv" or "<Title> (YYYY)/...mkv"
// path from the preview pipeline) under the prefix for mediaType. On
// success it schedules a settle-delayed scan trigger and emits a
// notification; on failure the upload is left exactly where it was (spec
// §4.8 "failure to organize leaves the upload in its temporary location").
func (o *Organizer) Place(ctx context.Context, uploadedTempPath, relativePath string, mediaType store.MediaType, discID, jobID string) (string, error) {
	prefix := o.cfg.MoviePrefix
	if mediaType == store.MediaTVShow {
		prefix = o.cfg.TVPrefix
	}

	dest := filepath.Join(o.cfg.LibraryRoot, prefix, relativePath)
	if err := os.MkdirAll(filepath.Dir(dest), os.ModePerm); err != nil {
		return "", fmt.Errorf("create library directory for %s: %w", dest, err)
	}

	if err := os.Rename(uploadedTempPath, dest); err != nil {
		return "", fmt.Errorf("move %s to %s: %w", uploadedTempPath, dest, err)
	}

	go o.afterPlace(dest, discID, jobID)

	return dest, nil
}

func (o *Organizer) afterPlace(dest, discID, jobID string) {
	if o.cfg.SettleDelay > 0 {
		time.Sleep(o.cfg.SettleDelay)
	}

	if o.cfg.ScanURL != "" {
		if err := o.triggerScan(filepath.Dir(dest)); err != nil {
			log.Warnf("scan trigger for %s failed: %s", dest, err)
		}
	}

	if o.sink != nil {
		o.sink.Notify(notify.Event{
			Type:    "organized",
			Message: fmt.Sprintf("moved to %s", dest),
			DiscID:  discID,
			JobID:   jobID,
		})
	}
}

func (o *Organizer) triggerScan(subtree string) error {
	req, err := http.NewRequest(http.MethodPost, o.cfg.ScanURL, nil)
	if err != nil {
		return err
	}
	q := req.URL.Query()
	q.Set("path", subtree)
	req.URL.RawQuery = q.Encode()

	resp, err := o.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("scan trigger returned status %d", resp.StatusCode)
	}
	return nil
}
