// Package testutil spins up a disposable Postgres container for package
// integration tests, grounded on tests/helpers/database.go's testcontainers
// + goose-via-Connect pattern but simplified to one container per test
// (no shared master-database template cloning) since this rewrite's test
// suite is far smaller than the teacher's full integration harness.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/ripcoord/ripcoord/internal/store"
)

const (
	testUser     = "ripcoord"
	testPassword = "ripcoord"
	testDBName   = "ripcoord_test"
)

// NewStore spawns a Postgres container, connects a store.Manager to it
// (running every migration via Connect), and registers cleanup with t.
// Skips the test automatically when Docker isn't reachable, the same
// escape hatch the teacher's own container-backed tests rely on in
// environments without a daemon.
func NewStore(t *testing.T) store.Manager {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("docker.io/postgres:14.1-alpine"),
		postgres.WithDatabase(testDBName),
		postgres.WithUsername(testUser),
		postgres.WithPassword(testPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Skipf("skipping: could not start postgres test container: %v", err)
	}
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("resolve test container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("resolve test container port: %v", err)
	}

	mgr := store.New()
	cfg := store.Config{
		Host:     host,
		Port:     port.Port(),
		User:     testUser,
		Password: testPassword,
		Name:     testDBName,
		SSLMode:  "disable",
	}
	if err := mgr.Connect(cfg); err != nil {
		t.Fatalf("connect test store: %v", err)
	}
	t.Cleanup(func() { _ = mgr.Close() })

	return mgr
}
