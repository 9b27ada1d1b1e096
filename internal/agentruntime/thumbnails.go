package agentruntime

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

const ffprobeTimeout = 15 * time.Second

// extractThumbnails implements spec §4.5 step 6: 3-5 JPEG frames at
// configured offsets plus the midpoint, base64-encoded for operator
// preview alongside the downstream transcode job.
func (r *Runtime) extractThumbnails(ctx context.Context, videoPath string) ([]string, []int) {
	duration, err := probeDurationSeconds(ctx, videoPath)
	if err != nil {
		log.Warnf("probe duration for thumbnails (%s): %v\n", videoPath, err)
		return nil, nil
	}

	offsets := append([]int{}, r.cfg.ThumbnailOffsetsSec...)
	offsets = append(offsets, duration/2)
	if want := r.cfg.ThumbnailCount; want > 0 && len(offsets) > want {
		offsets = offsets[:want]
	}

	var thumbs []string
	var used []int
	for _, offset := range offsets {
		if offset <= 0 || offset >= duration {
			continue
		}
		data, err := extractFrame(ctx, videoPath, offset)
		if err != nil {
			log.Warnf("extract thumbnail at %ds for %s: %v\n", offset, videoPath, err)
			continue
		}
		thumbs = append(thumbs, base64.StdEncoding.EncodeToString(data))
		used = append(used, offset)
	}
	return thumbs, used
}

func probeDurationSeconds(ctx context.Context, videoPath string) (int, error) {
	runCtx, cancel := context.WithTimeout(ctx, ffprobeTimeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "ffprobe", "-v", "error", "-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1", videoPath)
	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe: %w", err)
	}

	var seconds float64
	if _, err := fmt.Sscanf(string(out), "%f", &seconds); err != nil {
		return 0, fmt.Errorf("parse ffprobe duration %q: %w", string(out), err)
	}
	return int(seconds), nil
}

func extractFrame(ctx context.Context, videoPath string, offsetSec int) ([]byte, error) {
	tmp, err := os.CreateTemp("", "ripcoord-thumb-*.jpg")
	if err != nil {
		return nil, err
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	runCtx, cancel := context.WithTimeout(ctx, ffprobeTimeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "ffmpeg", "-y", "-ss", fmt.Sprintf("%d", offsetSec), "-i", videoPath,
		"-frames:v", "1", "-q:v", "3", tmpPath)
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg snapshot: %w", err)
	}

	return os.ReadFile(filepath.Clean(tmpPath))
}
