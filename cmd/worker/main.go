// Command worker runs a ripcoord transcode worker (spec §4.6): it polls
// its owning agent (or its own queue, if standalone) for assigned
// transcode jobs and encodes up to max_concurrent of them at once.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/ripcoord/ripcoord/internal/coordclient"
	"github.com/ripcoord/ripcoord/internal/workerruntime"
	"github.com/ripcoord/ripcoord/pkg/logger"
)

const version = "0.1.0"

var log = logger.Get("Bootstrap")

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: worker <run|version|check> [--config PATH] [--log-level LEVEL]\n")
		flag.PrintDefaults()
	}

	configPath := flag.String("config", "/etc/ripcoord/worker.toml", "Path to the worker config file")
	logLevel := flag.String("log-level", "info", "Logging level: verbose, debug, info, important, warning, error")
	flag.Parse()

	verb := "run"
	if flag.NArg() > 0 {
		verb = flag.Arg(0)
	}

	switch verb {
	case "version":
		fmt.Println(version)
	case "check":
		runCheck(*configPath)
	case "run":
		runWorker(*configPath, *logLevel)
	default:
		fmt.Fprintf(os.Stderr, "unknown verb %q\n", verb)
		flag.Usage()
		os.Exit(2)
	}
}

func runCheck(configPath string) {
	var cfg workerruntime.Config
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		fmt.Fprintf(os.Stderr, "config invalid: %v\n", err)
		os.Exit(1)
	}
	if cfg.WorkerID == "" {
		fmt.Fprintln(os.Stderr, "config invalid: worker_id is required")
		os.Exit(1)
	}
	fmt.Println("config OK")
}

func runWorker(configPath, logLevel string) {
	level, err := parseLogLevel(logLevel)
	if err != nil {
		fmt.Println(err.Error())
		os.Exit(2)
	}
	logger.SetMinLoggingLevel(level)

	var cfg workerruntime.Config
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Fatalf("failed to load configuration from %q: %v\n", configPath, err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go waitForInterrupt(cancel)

	client := coordclient.New(cfg.Coordinator)
	runtime := workerruntime.New(cfg, client)

	log.Emit(logger.INFO, " --- Starting ripcoord worker %s (version %s) ---\n", cfg.WorkerID, version)
	if err := runtime.Run(ctx); err != nil {
		log.Fatalf("worker exited with error: %v\n", err)
		os.Exit(1)
	}
	log.Emit(logger.STOP, "worker shutdown complete\n")
}

func waitForInterrupt(cancel context.CancelFunc) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	<-ch
	cancel()
}

func parseLogLevel(l string) (logger.LogLevel, error) {
	switch strings.ToLower(l) {
	case "verbose":
		return logger.VERBOSE.Level(), nil
	case "debug":
		return logger.DEBUG.Level(), nil
	case "info":
		return logger.INFO.Level(), nil
	case "important":
		return logger.SUCCESS.Level(), nil
	case "warning":
		return logger.WARNING.Level(), nil
	case "error":
		return logger.ERROR.Level(), nil
	default:
		return logger.INFO.Level(), fmt.Errorf("logging level %q is not recognized", l)
	}
}
