// Package transcoder drives the transcoding subprocess for approved jobs
// (spec §4.6): hardware-encoder selection by worker capability, progress
// parsing, and cooperative cancellation polling. Upload retry lives in
// internal/workerruntime.
package transcoder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/floostack/transcoder"
	"github.com/floostack/transcoder/ffmpeg"

	"github.com/ripcoord/ripcoord/pkg/logger"
)

const cancelPollInterval = 10 * time.Second

var log = logger.Get("Transcoder")

// Preset names the encoder/codec combination a job was approved with;
// resolution to a concrete ffmpeg video-codec flag happens in EncoderFor.
type Preset struct {
	Name       string
	VideoCodec string
	Container  string
}

// EncoderFor chooses the hardware-accelerated codec flag when the worker
// advertises support, falling back to the CPU encoder otherwise (spec §4.6
// step 1 "hardware accelerator if available, CPU fallback otherwise").
func EncoderFor(preset Preset, hwEncoders []string) string {
	for _, hw := range hwEncoders {
		if hw == preset.VideoCodec+"_hw" {
			return hw
		}
	}
	return preset.VideoCodec
}

// ProgressFunc receives the transcode's percent-complete as reported by the
// subprocess (spec §6 "Encoding: ... <pct> %").
type ProgressFunc func(pct float64)

// CancelPoll is invoked roughly every 10s of encoding and returns true once
// the job has been cancelled coordinator-side (spec §4.6 step 2).
type CancelPoll func() bool

// Run transcodes inputPath to outputPath using the resolved encoder,
// reporting progress and polling for cancellation.
func Run(ctx context.Context, inputPath, outputPath, encoder string, onProgress ProgressFunc, cancelled CancelPoll) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), os.ModePerm); err != nil {
		return fmt.Errorf("create transcode output dir: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	cmd := ffmpeg.New(&ffmpeg.Config{ProgressEnabled: true}).
		Input(inputPath).
		Output(outputPath).
		WithContext(&runCtx)

	progressChan, err := cmd.Start(transcoder.Options{VideoCodec: &encoder})
	if err != nil {
		return fmt.Errorf("start transcode subprocess: %w", err)
	}

	var ticker *time.Ticker
	var tickC <-chan time.Time
	if cancelled != nil {
		ticker = time.NewTicker(cancelPollInterval)
		defer ticker.Stop()
		tickC = ticker.C
	}

	for {
		select {
		case prog, ok := <-progressChan:
			if !ok {
				return nil
			}
			if onProgress != nil {
				onProgress(prog.GetProgress())
			}

		case <-tickC:
			if cancelled() {
				log.Infof("transcode of %s cancelled by coordinator", inputPath)
				cancel()
				return ErrCancelled
			}
		}
	}
}

// ErrCancelled is returned when a coordinator-side cancellation request
// terminates an in-flight transcode.
var ErrCancelled = fmt.Errorf("transcode cancelled")
