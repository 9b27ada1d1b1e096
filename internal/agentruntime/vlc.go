package agentruntime

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/ripcoord/ripcoord/internal/store"
)

// VLCConfig configures the agent-side preview playback poll loop (spec
// §4.7/§9's VLC preview channel). Grounded on vlc_launcher.py's
// launch_vlc(vlc_path, file_path, fullscreen): validate the binary and the
// target file both exist, then launch detached rather than supervised like
// a rip/transcode subprocess.
type VLCConfig struct {
	Binary       string        `toml:"binary" env:"AGENT_VLC_BINARY" env-default:"/usr/bin/vlc"`
	PollInterval time.Duration `toml:"poll_interval" env-default:"5s"`
}

// RunVLCPollLoop polls the coordinator for queued preview-playback
// commands and launches VLC against each one until ctx is cancelled. It
// runs independently of the rip single-flight gate: a preview play has no
// bearing on whether a rip job is in progress (spec §4.7).
func (r *Runtime) RunVLCPollLoop(ctx context.Context, cfg VLCConfig) {
	ticker := time.NewTicker(cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.pollVLCOnce(ctx, cfg)
		}
	}
}

func (r *Runtime) pollVLCOnce(ctx context.Context, cfg VLCConfig) {
	commands, err := r.client.VLCCommands(ctx, r.cfg.AgentID)
	if err != nil {
		log.Warnf("poll vlc commands failed: %v\n", err)
		return
	}

	for _, cmd := range commands {
		status, reportErr := launchVLC(cfg.Binary, cmd.FilePath, cmd.Fullscreen)
		var errMsg *string
		if reportErr != nil {
			msg := reportErr.Error()
			errMsg = &msg
			log.Warnf("vlc command %s failed: %v\n", cmd.ID, reportErr)
		}
		if err := r.client.ReportVLCCommand(ctx, cmd.ID, status, errMsg); err != nil {
			log.Warnf("report vlc command %s outcome: %v\n", cmd.ID, err)
		}
	}
}

// launchVLC validates both the player binary and the target file exist,
// then launches VLC detached from the agent process; it does not wait for
// the player to exit, matching vlc_launcher.py's fire-and-forget launch
// (the coordinator only cares whether launch succeeded).
func launchVLC(binary, filePath string, fullscreen bool) (store.VLCCommandStatus, error) {
	if _, err := os.Stat(binary); err != nil {
		return store.VLCFailed, fmt.Errorf("vlc binary %s not found: %w", binary, err)
	}
	if _, err := os.Stat(filePath); err != nil {
		return store.VLCFailed, fmt.Errorf("preview file %s not found: %w", filePath, err)
	}

	args := []string{filePath}
	if fullscreen {
		args = append(args, "--fullscreen")
	}

	cmd := exec.Command(binary, args...)
	if err := cmd.Start(); err != nil {
		return store.VLCFailed, fmt.Errorf("launch vlc: %w", err)
	}
	go cmd.Wait() // detached: reap without blocking the poll loop

	return store.VLCCompleted, nil
}
