package agentruntime

import (
	"context"
	"fmt"
	"time"

	"github.com/rjeczalik/notify"

	"github.com/ripcoord/ripcoord/internal/coordclient"
	"github.com/ripcoord/ripcoord/internal/ripper"
	"github.com/ripcoord/ripcoord/internal/store"
	"github.com/ripcoord/ripcoord/pkg/logger"
)

const (
	driveProbeTimeout     = 5 * time.Second
	driveDiscoveryTimeout = 10 * time.Second
)

// TitleProbe inspects a mounted disc at drive and returns its selectable
// titles; production wiring calls out to the ripping tool's robot-mode
// title scan, tests can substitute a fake.
type TitleProbe func(ctx context.Context, drive string) (store.DiscType, []coordTitle, error)

type coordTitle struct {
	Index           int
	Name            string
	DurationSeconds int
	SizeBytes       int64
	Chapters        int
}

// Detector polls a fixed set of drives for disc insertion/removal,
// reporting detections/ejections to the coordinator. Drives are probed one
// at a time, each under its own per-drive operation timeout; there is no
// worker pool, so a slow probe delays the drives after it. Grounded on
// rjeczalik/notify as a supplementary filesystem watch backstopping the
// poll loop, same division of labor the dependency inventory assigns it.
type Detector struct {
	runtime *Runtime
	drives  []string
	probe   TitleProbe
	present map[string]bool
}

func NewDetector(runtime *Runtime, drives []string, probe TitleProbe) *Detector {
	return &Detector{runtime: runtime, drives: drives, probe: probe, present: make(map[string]bool)}
}

// Run polls every configured drive every interval and additionally watches
// each mount root for filesystem events, so a disc mounted between polls
// is still picked up promptly.
func (d *Detector) Run(ctx context.Context, interval time.Duration) error {
	events := make(chan notify.EventInfo, 32)
	for _, drive := range d.drives {
		if err := notify.Watch(drive, events, notify.Create, notify.Remove); err != nil {
			log.Warnf("filesystem watch unavailable for drive %s: %v\n", drive, err)
			continue
		}
	}
	defer notify.Stop(events)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-events:
			d.pollDrives(ctx)
		case <-ticker.C:
			d.pollDrives(ctx)
		}
	}
}

func (d *Detector) pollDrives(ctx context.Context) {
	for _, drive := range d.drives {
		probeCtx, cancel := context.WithTimeout(ctx, driveProbeTimeout)
		discType, titles, err := d.probe(probeCtx, drive)
		cancel()

		inserted := err == nil && len(titles) > 0
		wasPresent := d.present[drive]

		switch {
		case inserted && !wasPresent:
			d.present[drive] = true
			d.reportDetected(ctx, drive, discType, titles)
		case !inserted && wasPresent:
			d.present[drive] = false
			d.reportEjected(ctx, drive)
		}
	}
}

func (d *Detector) reportDetected(ctx context.Context, drive string, discType store.DiscType, titles []coordTitle) {
	inputs := make([]coordclient.TitleInput, len(titles))
	for i, t := range titles {
		inputs[i] = coordclient.TitleInput{Index: t.Index, Name: t.Name, DurationSeconds: t.DurationSeconds, SizeBytes: t.SizeBytes, Chapters: t.Chapters}
	}

	disc, err := d.runtime.client.DiscDetected(ctx, d.runtime.cfg.AgentID, drive, fmt.Sprintf("disc-%s", drive), discType, inputs)
	if err != nil {
		log.Errorf("report disc detected on %s: %v\n", drive, err)
		return
	}
	log.Emit(logger.SUCCESS, "disc %s detected on drive %s (%d titles)\n", disc.ID, drive, len(titles))
}

func (d *Detector) reportEjected(ctx context.Context, drive string) {
	if err := d.runtime.client.DiscEjected(ctx, d.runtime.cfg.AgentID, drive); err != nil {
		log.Errorf("report disc ejected on %s: %v\n", drive, err)
	}
}

// DefaultTitleProbe uses the ripping tool's robot-mode analyze step to
// confirm a disc is present at drive; it reports a single synthetic title
// since full per-title scanning is a separate, heavier robot-mode query
// the agent performs lazily once a rip is actually requested.
func DefaultTitleProbe(cfg ripper.Config) TitleProbe {
	return func(ctx context.Context, drive string) (store.DiscType, []coordTitle, error) {
		discoverCtx, cancel := context.WithTimeout(ctx, driveDiscoveryTimeout)
		defer cancel()

		if _, err := ripper.Analyze(discoverCtx, cfg, drive); err != nil {
			return store.DiscUnknown, nil, err
		}
		return store.DiscUnknown, []coordTitle{{Index: 0, Name: "main feature"}}, nil
	}
}
