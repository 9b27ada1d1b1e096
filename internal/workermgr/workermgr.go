// Package workermgr implements registration, heartbeat, staleness
// detection and orphan-job failover for transcode workers (spec §4.2).
// Structured identically to internal/agentmgr; the failover routine is the
// one piece of extra behavior workers need that agents don't.
package workermgr

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ripcoord/ripcoord/internal/event"
	"github.com/ripcoord/ripcoord/internal/store"
	"github.com/ripcoord/ripcoord/pkg/logger"
)

var log = logger.Get("WorkerMgr")

const sweepInterval = 30 * time.Second

type Manager struct {
	workers *store.WorkerStore
	jobs    *store.JobStore
	bus     event.Dispatcher
	timeout time.Duration
}

func New(db store.Manager, bus event.Dispatcher, timeout time.Duration) *Manager {
	sqlxDB := db.GetSqlxDB()
	return &Manager{
		workers: store.NewWorkerStore(sqlxDB),
		jobs:    store.NewJobStore(sqlxDB),
		bus:     bus,
		timeout: timeout,
	}
}

func (m *Manager) Register(w store.Worker) (store.Worker, error) { return m.workers.Register(w) }

func (m *Manager) Heartbeat(id string) error { return m.workers.Heartbeat(id) }

func (m *Manager) Get(id string) (store.Worker, error) { return m.workers.Get(id) }

func (m *Manager) GetAll() ([]store.Worker, error) { return m.workers.GetAll() }

func (m *Manager) Available() ([]store.Worker, error) { return m.workers.Available() }

func (m *Manager) AssignJob(workerID, jobID string) error { return m.workers.AssignJob(workerID, jobID) }

func (m *Manager) CompleteJob(workerID, jobID string) error {
	return m.workers.CompleteJob(workerID, jobID)
}

func (m *Manager) Unregister(id string) error { return m.workers.Unregister(id) }

// Run blocks, sweeping for stale workers every sweepInterval until ctx is
// cancelled.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	log.Infof("worker staleness sweep started (timeout=%s, interval=%s)\n", m.timeout, sweepInterval)
	for {
		select {
		case <-ctx.Done():
			log.Infof("worker staleness sweep stopped\n")
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

func (m *Manager) sweep() {
	cutoff := time.Now().Add(-m.timeout)
	candidates, err := m.workers.MarkStaleOffline(cutoff)
	if err != nil {
		log.Errorf("worker staleness sweep failed: %v\n", err)
		return
	}

	for _, c := range candidates {
		log.Emit(logger.WARNING, "worker %s marked offline with %d orphaned job(s)\n", c.WorkerID, len(c.CurrentJobs))
		if parsed, err := uuid.Parse(c.WorkerID); err == nil {
			m.bus.Dispatch(event.WorkerOffline, parsed)
		}
		m.failover(c)
	}
}

// failover resets each of a dead worker's in-flight jobs to pending with
// requires_approval=true so a human re-routes them, per spec §4.2: "(i)
// resets each job to pending with assigned_agent_id=null,
// requires_approval=true ..., and (ii) emits a notification."
func (m *Manager) failover(c store.StaleFailoverCandidate) {
	for _, jobID := range c.CurrentJobs {
		if err := m.resetOrphanedJob(jobID); err != nil {
			log.Errorf("failed to fail over orphaned job %s from worker %s: %v\n", jobID, c.WorkerID, err)
			continue
		}
		log.Emit(logger.NEW, "job %s re-queued for manual re-assignment after worker %s went offline\n", jobID, c.WorkerID)
		if parsed, err := uuid.Parse(jobID); err == nil {
			m.bus.Dispatch(event.WorkerFailover, parsed)
		}
	}
}

func (m *Manager) resetOrphanedJob(jobID string) error {
	return m.jobs.ResetForManualReassignment(jobID)
}
