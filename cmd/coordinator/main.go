// Command coordinator runs the ripcoord coordinator: the durable store,
// HTTP API, agent/worker managers, preview pipeline and organizer (spec
// §2's coordinator role). Grounded on the teacher's root main.go bootstrap
// shape: flag parsing, config load, signal-driven context cancellation,
// internal.New(config).Run(ctx).
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

	"github.com/ripcoord/ripcoord/internal/app"
	"github.com/ripcoord/ripcoord/pkg/logger"
)

const version = "0.1.0"

var (
	log = logger.Get("Bootstrap")

	logLevelFlag = flag.String("log-level", "info", "Logging level: verbose, debug, info, important, warning, error")
	configFlag   = flag.String("config", "/etc/ripcoord/coordinator.toml", "Path to the coordinator config file")
	versionFlag  = flag.Bool("version", false, "Print the coordinator version and exit")
)

func main() {
	flag.Parse()

	if *versionFlag {
		fmt.Println(version)
		return
	}

	level, err := parseLogLevel(*logLevelFlag)
	if err != nil {
		fmt.Println(err.Error())
		flag.Usage()
		os.Exit(2)
	}
	logger.SetMinLoggingLevel(level)

	var cfg app.Config
	if err := cleanenv.ReadConfig(*configFlag, &cfg); err != nil {
		log.Fatalf("failed to load configuration from %q: %v\n", *configFlag, err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go waitForInterrupt(cancel)

	log.Emit(logger.INFO, " --- Starting ripcoord coordinator (version %s) ---\n", version)
	if err := app.New(cfg).Run(ctx); err != nil {
		log.Fatalf("coordinator exited with error: %v\n", err)
		os.Exit(1)
	}
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
