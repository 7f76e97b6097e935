// secinit is a minimal init: it runs as process 1, starts the initial
// unit, reaps every orphan and routes a few signals to system actions.
package main

//go:generate go tool go-md2man -in ../../doc/secinit.8.md -out ../../doc/secinit.8

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/sunlightlinux/secinit/pkg/config"
	"github.com/sunlightlinux/secinit/pkg/eventloop"
	"github.com/sunlightlinux/secinit/pkg/logging"
	"github.com/sunlightlinux/secinit/pkg/service"
	"github.com/sunlightlinux/secinit/pkg/shutdown"
)

const (
	version = "0.1.0"

	initUnitName = "init"
)

func main() {
	var (
		configPath  string
		logLevel    string
		showVersion bool
	)

	flags := pflag.NewFlagSet("secinit", pflag.ContinueOnError)
	flags.StringVarP(&configPath, "config", "c", config.DefaultPath, "settings file")
	flags.StringVar(&logLevel, "log-level", "", "log level (debug, info, notice, warn, error)")
	flags.BoolVar(&showVersion, "version", false, "show version and exit")
	// The kernel may pass arguments we do not know; process 1 must not stop over them.
	flags.ParseErrorsWhitelist.UnknownFlags = true
	flagErr := flags.Parse(os.Args[1:])

	if showVersion {
		fmt.Printf("secinit version %s\n", version)
		os.Exit(0)
	}

	logger := logging.New(logging.LevelInfo)
	if flagErr != nil {
		logger.Warn("Ignoring command line: %v", flagErr)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Error("Settings: %v; using defaults", err)
	}

	level := cfg.Logging.Level
	if flags.Changed("log-level") {
		level = logLevel
	}
	logger.SetLevel(logging.ParseLevel(level))

	opts, err := loopOptions(cfg)
	if err != nil {
		logger.Error("Settings: %v; using defaults", err)
		opts, _ = loopOptions(config.Default())
	}

	units := service.NewSet(logger)
	units.Add(newInitUnit(cfg, logger))

	loop, err := eventloop.New(units, opts, logger)
	if err != nil {
		logger.Error("Signal table: %v; using defaults", err)
		opts, _ = loopOptions(config.Default())
		loop, _ = eventloop.New(units, opts, logger)
	}

	logger.Notice("secinit %s starting", version)

	// Run returns only if its context is cancelled, which never happens here.
	err = loop.Run(context.Background())
	logger.Error("Supervisor loop returned: %v", err)
	shutdown.InfiniteHold()
}

func newInitUnit(cfg *config.Config, logger service.Logger) *service.Unit {
	u := service.NewUnit(initUnitName, service.KindBlocking, [][]string{cfg.Supervisor.Init}, logger)
	u.SetEnv(cfg.Supervisor.Env)
	return u
}

func loopOptions(cfg *config.Config) (eventloop.Options, error) {
	watchdog, err := cfg.WatchdogTimeout()
	if err != nil {
		return eventloop.Options{}, err
	}
	poweroff, err := cfg.PoweroffSignal()
	if err != nil {
		return eventloop.Options{}, err
	}
	reboot, err := cfg.RebootSignal()
	if err != nil {
		return eventloop.Options{}, err
	}
	return eventloop.Options{
		InitUnit:        initUnitName,
		Watchdog:        watchdog,
		PoweroffSignal:  poweroff,
		RebootSignal:    reboot,
		MetricsTextfile: cfg.Metrics.Textfile,
	}, nil
}
