// Package devdb optionally spawns a disposable Postgres container for
// single-box coordinator deployments and local development, so an operator
// doesn't need to stand up Postgres themselves. Grounded on the teacher's
// docker-spawned database container, simplified to the single container this
// package ever manages (no generic multi-container broker).
package devdb

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
	"github.com/mitchellh/go-homedir"

	"github.com/ripcoord/ripcoord/internal/store"
	"github.com/ripcoord/ripcoord/pkg/logger"
)

var log = logger.Get("DevDB")

const (
	image         = "postgres:14.1-alpine"
	containerName = "ripcoord_devdb"
	stopTimeout   = 10 * time.Second
)

// Handle controls a spawned dev-database container's lifetime.
type Handle struct {
	cli  *client.Client
	id   string
}

// Spawn starts (or reuses, if already running) a local Postgres container
// matching the given store.Config, and waits for it to accept connections.
func Spawn(ctx context.Context, cfg store.Config) (*Handle, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}

	if existing, err := findExisting(ctx, cli); err == nil && existing != "" {
		log.Infof("reusing existing dev database container %s\n", existing)
		h := &Handle{cli: cli, id: existing}
		if err := h.waitReady(ctx, cfg); err != nil {
			return nil, err
		}
		return h, nil
	}

	dataDir, err := dataVolumePath()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create db data dir: %w", err)
	}

	port := nat.Port(fmt.Sprintf("%s/tcp", "5432"))
	containerCfg := &container.Config{
		Image: image,
		Env: []string{
			fmt.Sprintf("POSTGRES_USER=%s", cfg.User),
			fmt.Sprintf("POSTGRES_PASSWORD=%s", cfg.Password),
			fmt.Sprintf("POSTGRES_DB=%s", cfg.Name),
		},
		ExposedPorts: nat.PortSet{port: struct{}{}},
		Labels:       map[string]string{"ripcoord.devdb": "true"},
	}
	hostCfg := &container.HostConfig{
		PortBindings: nat.PortMap{
			port: []nat.PortBinding{{HostIP: "0.0.0.0", HostPort: cfg.Port}},
		},
		Mounts: []mount.Mount{
			{Type: mount.TypeBind, Source: dataDir, Target: "/var/lib/postgresql/data"},
		},
	}

	resp, err := cli.ContainerCreate(ctx, containerCfg, hostCfg, nil, nil, containerName)
	if err != nil {
		return nil, fmt.Errorf("failed to create dev database container: %w", err)
	}
	if err := cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return nil, fmt.Errorf("failed to start dev database container: %w", err)
	}

	log.Emit(logger.NEW, "spawned dev database container %s\n", resp.ID[:12])

	h := &Handle{cli: cli, id: resp.ID}
	if err := h.waitReady(ctx, cfg); err != nil {
		return nil, err
	}
	return h, nil
}

func findExisting(ctx context.Context, cli *client.Client) (string, error) {
	inspect, err := cli.ContainerInspect(ctx, containerName)
	if err != nil {
		return "", err
	}
	if !inspect.State.Running {
		if err := cli.ContainerStart(ctx, inspect.ID, container.StartOptions{}); err != nil {
			return "", err
		}
	}
	return inspect.ID, nil
}

// waitReady polls until the store.Manager can open a connection, or the
// context expires.
func (h *Handle) waitReady(ctx context.Context, cfg store.Config) error {
	probeCfg := cfg
	probeCfg.Host = "localhost"

	deadline := time.Now().Add(30 * time.Second)
	for time.Now().Before(deadline) {
		mgr := store.New()
		if err := mgr.Connect(probeCfg); err == nil {
			_ = mgr.Close()
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}
	}
	return fmt.Errorf("dev database did not become ready within 30s")
}

// Close stops the container. The underlying volume is left on disk so state
// survives restarts.
func (h *Handle) Close(ctx context.Context) error {
	log.Emit(logger.STOP, "stopping dev database container %s\n", h.id[:12])
	timeoutSec := int(stopTimeout.Seconds())
	if err := h.cli.ContainerStop(ctx, h.id, container.StopOptions{Timeout: &timeoutSec}); err != nil {
		return fmt.Errorf("failed to stop dev database container: %w", err)
	}
	return nil
}

func dataVolumePath() (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", fmt.Errorf("cannot resolve home dir for dev database volume: %w", err)
	}
	return filepath.Join(home, ".ripcoord", "devdb-data"), nil
}
