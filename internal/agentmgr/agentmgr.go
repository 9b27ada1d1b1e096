// Package agentmgr implements registration, heartbeat, and staleness
// detection for field agents (spec §4.2). Grounded on the polling-service
// shape of internal/ingest/service.go: a struct owning its store dependency
// plus a periodic background sweep, started with Run(ctx) and driven by a
// select loop rather than a bare goroutine with no shutdown path.
package agentmgr

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ripcoord/ripcoord/internal/event"
	"github.com/ripcoord/ripcoord/internal/store"
	"github.com/ripcoord/ripcoord/pkg/logger"
)

var log = logger.Get("AgentMgr")

// sweepInterval is the background staleness check cadence (spec §4.2 "A
// background task runs every 30 s").
const sweepInterval = 30 * time.Second

type Manager struct {
	store   *store.AgentStore
	bus     event.Dispatcher
	timeout time.Duration
}

// New constructs a Manager; timeout is the configured agent_timeout after
// which a stale heartbeat marks the agent offline.
func New(db store.Manager, bus event.Dispatcher, timeout time.Duration) *Manager {
	return &Manager{
		store:   store.NewAgentStore(db.GetSqlxDB()),
		bus:     bus,
		timeout: timeout,
	}
}

func (m *Manager) Register(a store.Agent) (store.Agent, error) { return m.store.Register(a) }

func (m *Manager) Heartbeat(id string) error { return m.store.Heartbeat(id) }

func (m *Manager) Get(id string) (store.Agent, error) { return m.store.Get(id) }

func (m *Manager) GetAll() ([]store.Agent, error) { return m.store.GetAll() }

func (m *Manager) AssignJob(agentID, jobID string) error { return m.store.AssignJob(agentID, jobID) }

func (m *Manager) CompleteJob(agentID string) error { return m.store.CompleteJob(agentID) }

func (m *Manager) Unregister(id string) error { return m.store.Unregister(id) }

// Run blocks, sweeping for stale agents every sweepInterval until ctx is
// cancelled.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	log.Infof("agent staleness sweep started (timeout=%s, interval=%s)\n", m.timeout, sweepInterval)
	for {
		select {
		case <-ctx.Done():
			log.Infof("agent staleness sweep stopped\n")
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

func (m *Manager) sweep() {
	cutoff := time.Now().Add(-m.timeout)
	stale, err := m.store.MarkStaleOffline(cutoff)
	if err != nil {
		log.Errorf("agent staleness sweep failed: %v\n", err)
		return
	}
	for _, id := range stale {
		log.Emit(logger.WARNING, "agent %s marked offline (no heartbeat since before %s)\n", id, cutoff.Format(time.RFC3339))
		if parsed, err := uuid.Parse(id); err == nil {
			m.bus.Dispatch(event.AgentOffline, parsed)
		}
	}
}
