// Package assign implements the four worker-selection strategies used at
// transcode approval time (spec §4.1 "Assignment"). Each strategy narrows
// an already-GPU/codec-filtered candidate list down to one worker; there is
// no teacher analogue for this specific selection logic, so the shape here
// (a small Strategy interface keyed by a config string, same pattern as
// Thea's own `profile`/`workflow` strategy lookups) is the new component,
// built in the teacher's idiom rather than grounded on a single file.
package assign

import (
	"errors"
	"sort"
	"sync"

	"github.com/ripcoord/ripcoord/internal/store"
)

// ErrNoWorkerAvailable is returned by Pick when the candidate pool is
// empty; the approval endpoint surfaces this as 503 per spec §7
// ("Resource contention ... Approval endpoint returns 503").
var ErrNoWorkerAvailable = errors.New("no workers available for assignment")

// Strategy selects one worker from a non-empty candidate slice.
type Strategy interface {
	Name() string
	Select(candidates []store.Worker) store.Worker
}

// Name identifiers accepted by configuration.
const (
	Priority     = "priority"
	RoundRobin   = "round_robin"
	LoadBalance  = "load_balance"
	FastestFirst = "fastest_first"
)

// New returns the configured Strategy, defaulting to priority when name is
// unrecognized.
func New(name string) Strategy {
	switch name {
	case RoundRobin:
		return &roundRobinStrategy{}
	case LoadBalance:
		return loadBalanceStrategy{}
	case FastestFirst:
		return fastestFirstStrategy{}
	default:
		return priorityStrategy{}
	}
}

// priorityStrategy picks the lowest numeric priority (1 is highest
// priority per spec §3 "priority∈[1..99]").
type priorityStrategy struct{}

func (priorityStrategy) Name() string { return Priority }

func (priorityStrategy) Select(candidates []store.Worker) store.Worker {
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.Priority < best.Priority {
			best = c
		}
	}
	return best
}

// roundRobinStrategy advances a cursor among the currently-available
// worker set each time Select is called. The cursor is strategy-local
// state, matching the teacher's preference for small stateful structs
// over package-level globals (see pkg/worker.WorkerPool.started).
type roundRobinStrategy struct {
	mu     sync.Mutex
	cursor int
}

func (*roundRobinStrategy) Name() string { return RoundRobin }

func (s *roundRobinStrategy) Select(candidates []store.Worker) store.Worker {
	sorted := make([]store.Worker, len(candidates))
	copy(sorted, candidates)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	s.mu.Lock()
	defer s.mu.Unlock()
	chosen := sorted[s.cursor%len(sorted)]
	s.cursor++
	return chosen
}

// loadBalanceStrategy picks the worker with the fewest current_jobs.
type loadBalanceStrategy struct{}

func (loadBalanceStrategy) Name() string { return LoadBalance }

func (loadBalanceStrategy) Select(candidates []store.Worker) store.Worker {
	best := candidates[0]
	for _, c := range candidates[1:] {
		if len(c.CurrentJobs) < len(best.CurrentJobs) {
			best = c
		}
	}
	return best
}

// fastestFirstStrategy picks the smallest known avg_duration_s; workers
// with no recorded average sort last (spec §4.1).
type fastestFirstStrategy struct{}

func (fastestFirstStrategy) Name() string { return FastestFirst }

func (fastestFirstStrategy) Select(candidates []store.Worker) store.Worker {
	best := candidates[0]
	for _, c := range candidates[1:] {
		if better(c.Stats.AvgDurationS, best.Stats.AvgDurationS) {
			best = c
		}
	}
	return best
}

func better(a, b *float64) bool {
	switch {
	case a == nil:
		return false
	case b == nil:
		return true
	default:
		return *a < *b
	}
}

// Filter narrows candidates by GPU preference and/or a required codec
// capability (spec §4.1 "Selection is further filtered"). If the filtered
// set is empty, the original unfiltered candidates are returned.
func Filter(candidates []store.Worker, preferGPU bool, requiredCodec string) []store.Worker {
	filtered := make([]store.Worker, 0, len(candidates))
	for _, c := range candidates {
		if preferGPU && len(c.Capabilities.HWEncoders) == 0 {
			continue
		}
		if requiredCodec != "" && !hasCodec(c.Capabilities.CodecSupport, requiredCodec) {
			continue
		}
		filtered = append(filtered, c)
	}
	if len(filtered) == 0 {
		return candidates
	}
	return filtered
}

func hasCodec(supported []string, want string) bool {
	for _, s := range supported {
		if s == want {
			return true
		}
	}
	return false
}

// Pick runs Filter then the given Strategy against every enabled,
// non-offline worker, returning an error if none are available at all.
func Pick(strategy Strategy, all []store.Worker, preferGPU bool, requiredCodec string) (store.Worker, error) {
	if len(all) == 0 {
		return store.Worker{}, ErrNoWorkerAvailable
	}
	filtered := Filter(all, preferGPU, requiredCodec)
	return strategy.Select(filtered), nil
}
