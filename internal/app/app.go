// Package app is the coordinator's top-level wiring: it owns every
// long-lived dependency and starts each background service exactly once.
// Grounded on internal/thea.go's theaImpl/New/Run/spawnService: a single
// struct assembled in construction order, no global singletons, each
// service run on its own goroutine behind a shared sync.WaitGroup with
// panic recovery so one misbehaving service can't silently kill the
// process.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ripcoord/ripcoord/internal/agentmgr"
	"github.com/ripcoord/ripcoord/internal/api"
	"github.com/ripcoord/ripcoord/internal/event"
	"github.com/ripcoord/ripcoord/internal/metadata"
	"github.com/ripcoord/ripcoord/internal/notify"
	"github.com/ripcoord/ripcoord/internal/organizer"
	"github.com/ripcoord/ripcoord/internal/preview"
	"github.com/ripcoord/ripcoord/internal/queue"
	"github.com/ripcoord/ripcoord/internal/season"
	"github.com/ripcoord/ripcoord/internal/store"
	"github.com/ripcoord/ripcoord/internal/store/devdb"
	"github.com/ripcoord/ripcoord/internal/vlccmd"
	"github.com/ripcoord/ripcoord/internal/workermgr"
	"github.com/ripcoord/ripcoord/pkg/logger"
)

var log = logger.Get("App")

// Config is the coordinator's full runtime configuration, loaded from TOML
// with env overlay (spec's ambient config section).
type Config struct {
	DB         store.Config         `toml:"database"`
	API        api.Config           `toml:"api"`
	Assignment queue.AssignmentConfig `toml:"assignment"`
	Preview    preview.Config       `toml:"preview"`
	Organizer  OrganizerConfig      `toml:"organizer"`

	AgentHeartbeatTimeout  time.Duration `toml:"agent_heartbeat_timeout" env-default:"90s"`
	WorkerHeartbeatTimeout time.Duration `toml:"worker_heartbeat_timeout" env-default:"90s"`
	MetadataCacheTTL       time.Duration `toml:"metadata_cache_ttl" env-default:"1h"`
	MetadataAPIKey         string        `toml:"metadata_api_key" env:"METADATA_API_KEY"`

	StagingDir    string `toml:"staging_dir" env:"STAGING_DIR" env-default:"/var/lib/ripcoord/staging"`
	ThumbnailsDir string `toml:"thumbnails_dir" env:"THUMBNAILS_DIR" env-default:"/var/lib/ripcoord/thumbnails"`

	UseManagedDB bool `toml:"use_managed_db" env:"USE_MANAGED_DB" env-default:"false"`
}

// OrganizerConfig mirrors organizer.Config with TOML/env tags; internal/app
// translates it into organizer.Config once LibraryRoot is known.
type OrganizerConfig struct {
	LibraryRoot string        `toml:"library_root" env:"LIBRARY_ROOT" env-default:"/var/lib/ripcoord/library"`
	TVPrefix    string        `toml:"tv_prefix" env-default:"tv"`
	MoviePrefix string        `toml:"movie_prefix" env-default:"movies"`
	ScanURL     string        `toml:"scan_url" env:"SCAN_URL"`
	SettleDelay time.Duration `toml:"settle_delay" env-default:"5s"`
}

// RunnableService is anything app.Run spawns on its own goroutine.
type RunnableService interface {
	Run(ctx context.Context) error
}

// runnableFunc adapts a plain function to RunnableService, letting app.go
// wrap services whose own Run signature doesn't return an error (agentmgr,
// workermgr) without changing those packages' public APIs.
type runnableFunc func(ctx context.Context) error

func (f runnableFunc) Run(ctx context.Context) error { return f(ctx) }

// App is the coordinator process: every dependency it owns is a field
// here, constructed once by New/Run and never reached via a package-level
// variable.
type App struct {
	cfg Config

	db    store.Manager
	devDB *devdb.Handle
	bus   event.Bus

	meta      *metadata.Client
	agents    *agentmgr.Manager
	workers   *workermgr.Manager
	jobs      *queue.Service
	pipeline  *preview.Pipeline
	seasons   *season.Manager
	vlc       *vlccmd.Channel
	organizer *organizer.Organizer
	notifyHub *notify.Hub
	server    *api.Server
}

// New constructs an unwired App; call Run to connect to the database,
// build every service and block until ctx is cancelled.
func New(cfg Config) *App {
	return &App{cfg: cfg}
}

// Run wires every dependency in construction order and starts the
// long-running services, mirroring theaImpl.Run: docker/db bootstrap,
// then store-backed managers, then the HTTP surface, then the
// WaitGroup-bounded goroutine fan-out.
func (a *App) Run(ctx context.Context) error {
	if a.cfg.UseManagedDB {
		handle, err := devdb.Spawn(ctx, a.cfg.DB)
		if err != nil {
			return fmt.Errorf("spawn managed database: %w", err)
		}
		a.devDB = handle
	}

	a.db = store.New()
	if err := a.db.Connect(a.cfg.DB); err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer a.db.Close() //nolint:errcheck

	a.bus = event.New()
	sqlxDB := a.db.GetSqlxDB()

	a.notifyHub = notify.NewHub()
	wireNotifications(a.bus, a.notifyHub)

	var provider metadata.Provider
	if a.cfg.MetadataAPIKey != "" {
		provider = metadata.NewTMDBProvider(a.cfg.MetadataAPIKey)
	} else {
		log.Warnf("no metadata API key configured, falling back to manual classification only\n")
		provider = metadata.NewNullProvider()
	}
	a.meta = metadata.New(provider, a.cfg.MetadataCacheTTL)

	seasons := store.NewSeasonStore(sqlxDB)
	a.seasons = season.New(seasons, a.meta)

	discs := store.NewDiscStore(a.db, sqlxDB)
	titles := store.NewTitleStore(sqlxDB)
	a.pipeline = preview.New(discs, titles, a.seasons, a.meta, a.cfg.Preview)

	a.agents = agentmgr.New(a.db, a.bus, a.cfg.AgentHeartbeatTimeout)
	a.workers = workermgr.New(a.db, a.bus, a.cfg.WorkerHeartbeatTimeout)
	a.jobs = queue.New(a.db, a.bus, a.cfg.Assignment)

	vlcStore := store.NewVLCStore(sqlxDB)
	a.vlc = vlccmd.New(vlcStore)

	orgCfg := organizer.Config{
		LibraryRoot: a.cfg.Organizer.LibraryRoot,
		TVPrefix:    a.cfg.Organizer.TVPrefix,
		MoviePrefix: a.cfg.Organizer.MoviePrefix,
		ScanURL:     a.cfg.Organizer.ScanURL,
		SettleDelay: a.cfg.Organizer.SettleDelay,
	}
	a.organizer = organizer.New(orgCfg, a.notifyHub)

	a.server = api.New(a.cfg.API, api.Deps{
		Agents:        a.agents,
		Workers:       a.workers,
		Discs:         discs,
		Titles:        titles,
		Jobs:          a.jobs,
		Pipeline:      a.pipeline,
		Seasons:       a.seasons,
		VLC:           a.vlc,
		Organizer:     a.organizer,
		Sink:          a.notifyHub,
		StagingDir:    a.cfg.StagingDir,
		ThumbnailsDir: a.cfg.ThumbnailsDir,
	})

	wg := &sync.WaitGroup{}
	wg.Add(3)

	go a.spawnService(ctx, wg, runnableFunc(func(ctx context.Context) error {
		a.agents.Run(ctx)
		return nil
	}), "AgentManager", a.onServiceCrash)

	go a.spawnService(ctx, wg, runnableFunc(func(ctx context.Context) error {
		a.workers.Run(ctx)
		return nil
	}), "WorkerManager", a.onServiceCrash)

	go a.spawnService(ctx, wg, runnableFunc(a.runServer), "APIServer", a.onServiceCrash)

	<-ctx.Done()
	log.Infof("shutdown requested, stopping services...\n")
	if err := a.server.Shutdown(); err != nil {
		log.Warnf("API server shutdown: %v\n", err)
	}
	if a.devDB != nil {
		if err := a.devDB.Close(context.Background()); err != nil {
			log.Warnf("managed database shutdown: %v\n", err)
		}
	}

	wg.Wait()
	log.Emit(logger.STOP, "coordinator shutdown complete\n")
	return nil
}

// runServer blocks on the echo listener; http.ErrServerClosed is the
// expected return from a deliberate Shutdown and isn't a crash.
func (a *App) runServer(_ context.Context) error {
	if err := a.server.Start(); err != nil && !isServerClosed(err) {
		return err
	}
	return nil
}

// spawnService runs service.Run to completion, recovering a panic into a
// crash report rather than taking the whole coordinator down with it.
func (a *App) spawnService(ctx context.Context, wg *sync.WaitGroup, service RunnableService, label string, crashHandler func(string, error)) {
	defer wg.Done()
	defer func() {
		if r := recover(); r != nil {
			crashHandler(label, fmt.Errorf("panic: %v\n%s", r, debug.Stack()))
		}
	}()

	if err := service.Run(ctx); err != nil {
		crashHandler(label, err)
	}
}

func (a *App) onServiceCrash(label string, err error) {
	log.Errorf("service %s stopped unexpectedly: %v\n", label, err)
}

func isServerClosed(err error) bool {
	return errors.Is(err, http.ErrServerClosed)
}

// notificationMessages gives every forwarded event a fixed operator-facing
// message; the affected entity's id is carried separately on notify.Event.
var notificationMessages = map[event.Event]string{
	event.JobCreated:     "job created",
	event.JobUpdated:     "job updated",
	event.JobCompleted:   "job completed",
	event.JobFailed:      "job failed",
	event.JobCancelled:   "job cancelled",
	event.AgentOffline:   "agent went offline",
	event.WorkerOffline:  "worker went offline",
	event.WorkerFailover: "worker failover reassigned its job",
}

// jobEvents is the subset of notificationMessages whose uuid payload is a
// job id rather than an agent/worker id, so it belongs on notify.Event.JobID.
var jobEvents = map[event.Event]bool{
	event.JobCreated: true, event.JobUpdated: true, event.JobCompleted: true,
	event.JobFailed: true, event.JobCancelled: true,
}

// wireNotifications forwards every bus event into the operator notification
// sink (spec §4.2/§4.8, scenario S5's "notification emitted" requirement for
// worker failover) rather than leaving dispatches with no consumer.
func wireNotifications(bus event.Bus, sink notify.Sink) {
	forward := func(e event.Event, payload event.Payload) {
		id, ok := payload.(uuid.UUID)
		if !ok {
			return
		}
		n := notify.Event{Type: string(e), Message: notificationMessages[e]}
		if jobEvents[e] {
			n.JobID = id.String()
		}
		sink.Notify(n)
	}
	for e := range notificationMessages {
		bus.RegisterHandlerFunction(e, forward)
	}
}
