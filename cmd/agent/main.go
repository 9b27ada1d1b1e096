// Command agent runs the ripcoord agent: disc detection, single-flight
// rip execution and (optionally) colocated transcoding (spec §4.5). CLI
// surface per spec §6: `run [--config PATH]`, `version`, `check`.
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

	"github.com/ripcoord/ripcoord/internal/agentruntime"
	"github.com/ripcoord/ripcoord/internal/coordclient"
	"github.com/ripcoord/ripcoord/pkg/logger"
)

const version = "0.1.0"

var log = logger.Get("Bootstrap")

type config struct {
	agentruntime.Config
	Drives []string                `toml:"drives" env:"AGENT_DRIVES"`
	VLC    agentruntime.VLCConfig `toml:"vlc"`
}

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: agent <run|version|check> [--config PATH] [--log-level LEVEL]\n")
		flag.PrintDefaults()
	}

	configPath := flag.String("config", "/etc/ripcoord/agent.toml", "Path to the agent config file")
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
		runAgent(*configPath, *logLevel)
	default:
		fmt.Fprintf(os.Stderr, "unknown verb %q\n", verb)
		flag.Usage()
		os.Exit(2)
	}
}

func runCheck(configPath string) {
	var cfg config
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		fmt.Fprintf(os.Stderr, "config invalid: %v\n", err)
		os.Exit(1)
	}
	if cfg.AgentID == "" {
		fmt.Fprintln(os.Stderr, "config invalid: agent_id is required")
		os.Exit(1)
	}
	fmt.Println("config OK")
}

func runAgent(configPath, logLevel string) {
	level, err := parseLogLevel(logLevel)
	if err != nil {
		fmt.Println(err.Error())
		os.Exit(2)
	}
	logger.SetMinLoggingLevel(level)

	var cfg config
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Fatalf("failed to load configuration from %q: %v\n", configPath, err)
		os.Exit(1)
	}

	release, err := agentruntime.AcquireLockfile(cfg.LockfilePath)
	if err != nil {
		log.Fatalf("%v\n", err)
		os.Exit(1)
	}
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	go waitForInterrupt(cancel)

	client := coordclient.New(cfg.Coordinator)
	runtime := agentruntime.New(cfg.Config, client)

	log.Emit(logger.INFO, " --- Starting ripcoord agent %s (version %s) ---\n", cfg.AgentID, version)

	if len(cfg.Drives) > 0 {
		detector := agentruntime.NewDetector(runtime, cfg.Drives, agentruntime.DefaultTitleProbe(cfg.Ripper))
		go func() {
			if err := detector.Run(ctx, cfg.PollInterval); err != nil {
				log.Errorf("disc detector exited: %v\n", err)
			}
		}()
	}

	go runtime.RunVLCPollLoop(ctx, cfg.VLC)

	if err := runtime.Run(ctx); err != nil {
		log.Fatalf("agent exited with error: %v\n", err)
		os.Exit(1)
	}
	log.Emit(logger.STOP, "agent shutdown complete\n")
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
