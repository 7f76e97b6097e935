// Package config loads the secinit settings file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"golang.org/x/sys/unix"

	"github.com/sunlightlinux/secinit/internal/util"
)

// DefaultPath is where secinit looks for its settings.
const DefaultPath = "/etc/secinit.toml"

const (
	defaultWatchdog = "30"
	defaultInit     = "/bin/secinit.init"
	defaultPoweroff = "SIGUSR1"
	defaultReboot   = "SIGINT"
)

// Config holds the supervisor settings.
type Config struct {
	Supervisor SupervisorConfig `toml:"supervisor"`
	Logging    LoggingConfig    `toml:"logging"`
	Metrics    MetricsConfig    `toml:"metrics"`
	Signals    SignalsConfig    `toml:"signals"`
}

// SupervisorConfig configures the process-1 loop.
type SupervisorConfig struct {
	// Watchdog is the alarm period in seconds (decimal).
	Watchdog string `toml:"watchdog"`
	// Init is the command run as the initial unit.
	Init []string `toml:"init"`
	// Env lists KEY=VALUE variables added to the initial unit's environment.
	Env []string `toml:"env"`
}

// LoggingConfig configures the console logger.
type LoggingConfig struct {
	Level string `toml:"level"`
}

// MetricsConfig configures the metrics textfile. An empty path disables it.
type MetricsConfig struct {
	Textfile string `toml:"textfile"`
}

// SignalsConfig names the signals bound to system actions.
type SignalsConfig struct {
	Poweroff string `toml:"poweroff"`
	Reboot   string `toml:"reboot"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Supervisor: SupervisorConfig{
			Watchdog: defaultWatchdog,
			Init:     []string{defaultInit},
		},
		Logging: LoggingConfig{Level: "info"},
		Signals: SignalsConfig{
			Poweroff: defaultPoweroff,
			Reboot:   defaultReboot,
		},
	}
}

// Load reads settings from path on top of the defaults. A missing file is
// not an error. On any error the defaults are returned alongside it, so
// the caller always has usable settings.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return Default(), fmt.Errorf("reading %s: %w", path, err)
	}

	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return Default(), fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Default(), fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks that every setting can be used.
func (c *Config) Validate() error {
	d, err := c.WatchdogTimeout()
	if err != nil {
		return fmt.Errorf("supervisor.watchdog: %w", err)
	}
	if d <= 0 {
		return errors.New("supervisor.watchdog: must be positive")
	}
	if len(c.Supervisor.Init) == 0 || c.Supervisor.Init[0] == "" {
		return errors.New("supervisor.init: command is empty")
	}
	for _, kv := range c.Supervisor.Env {
		if k, _, ok := strings.Cut(kv, "="); !ok || k == "" {
			return fmt.Errorf("supervisor.env: %q is not KEY=VALUE", kv)
		}
	}

	poweroff, err := c.PoweroffSignal()
	if err != nil {
		return fmt.Errorf("signals.poweroff: %w", err)
	}
	reboot, err := c.RebootSignal()
	if err != nil {
		return fmt.Errorf("signals.reboot: %w", err)
	}
	for _, sig := range []unix.Signal{poweroff, reboot} {
		switch sig {
		case unix.SIGCHLD, unix.SIGALRM, unix.SIGKILL, unix.SIGSTOP:
			return fmt.Errorf("signals: %s cannot be bound to a system action", unix.SignalName(sig))
		}
	}
	if poweroff == reboot {
		return fmt.Errorf("signals: poweroff and reboot both use %s", unix.SignalName(reboot))
	}
	return nil
}

// WatchdogTimeout returns the parsed watchdog period.
func (c *Config) WatchdogTimeout() (time.Duration, error) {
	return util.ParseDuration(c.Supervisor.Watchdog)
}

// PoweroffSignal returns the signal that powers the machine off.
func (c *Config) PoweroffSignal() (unix.Signal, error) {
	return util.ParseSignal(c.Signals.Poweroff)
}

// RebootSignal returns the signal that reboots the machine.
func (c *Config) RebootSignal() (unix.Signal, error) {
	return util.ParseSignal(c.Signals.Reboot)
}
