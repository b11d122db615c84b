// Package config loads the engine's runtime configuration: PTY geometry,
// the exit-coordinator's timer tuning, and the one environment variable the
// core recognizes. Defaults are overridden, in order, by an optional YAML
// document, then command-line flags, then environment variables.
package config

import (
	"flag"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/htrunner/htrunner/internal/broker"
)

// TestShellEnvVar names the one environment variable the core consumes: a
// test-only override pointing at a specific program to launch under the
// PTY, in place of whatever argv the caller supplied.
const TestShellEnvVar = "HTRUNNER_TEST_SHELL"

// Timing mirrors broker.Config with YAML tags, since the engine's internal
// timer type isn't itself YAML-addressable from outside the module.
type Timing struct {
	StartOnOutput           bool          `yaml:"startOnOutput"`
	FifoPollInterval        time.Duration `yaml:"fifoPollInterval"`
	QuiescenceCheckInterval time.Duration `yaml:"quiescenceCheckInterval"`
	QuiescenceWindow        time.Duration `yaml:"quiescenceWindow"`
	Heartbeat               time.Duration `yaml:"heartbeat"`
	ForcedExitInitialWait   time.Duration `yaml:"forcedExitInitialWait"`
	GracefulTimeout         time.Duration `yaml:"gracefulTimeout"`
	SnapshotTimeout         time.Duration `yaml:"snapshotTimeout"`
	ExitTimeout             time.Duration `yaml:"exitTimeout"`
	ExpectTimeout           time.Duration `yaml:"expectTimeout"`
	SubprocessWait          time.Duration `yaml:"subprocessWait"`
}

// ToBroker converts to the internal broker.Config the engine actually runs
// with.
func (t Timing) ToBroker() broker.Config { return broker.Config(t) }

func timingFromBroker(c broker.Config) Timing { return Timing(c) }

// Config is the engine's fully-resolved runtime configuration.
type Config struct {
	Cols      int    `yaml:"cols"`
	Rows      int    `yaml:"rows"`
	Verbose   bool   `yaml:"verbose"`
	Timing    Timing `yaml:"timing"`
	TestShell string `yaml:"-"`
}

// Default returns the engine's baseline configuration before any file,
// flag, or environment overrides are applied.
func Default() Config {
	return Config{
		Cols:   80,
		Rows:   24,
		Timing: timingFromBroker(broker.DefaultConfig()),
	}
}

// Load resolves a Config from a YAML file (if configPath is non-empty),
// then the given flag set's parsed arguments, then the environment.
// fs should not have been parsed yet; Load calls fs.Parse(args).
func Load(fs *flag.FlagSet, args []string, configPath string) (Config, error) {
	cfg := Default()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", configPath, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", configPath, err)
		}
	}

	fs.IntVar(&cfg.Cols, "cols", cfg.Cols, "PTY column count")
	fs.IntVar(&cfg.Rows, "rows", cfg.Rows, "PTY row count")
	fs.BoolVar(&cfg.Verbose, "v", cfg.Verbose, "mirror debug events to stderr")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if cfg.Cols < 1 || cfg.Cols > 1024 {
		return Config{}, fmt.Errorf("config: cols %d out of range [1,1024]", cfg.Cols)
	}
	if cfg.Rows < 1 || cfg.Rows > 1024 {
		return Config{}, fmt.Errorf("config: rows %d out of range [1,1024]", cfg.Rows)
	}

	cfg.TestShell = os.Getenv(TestShellEnvVar)
	return cfg, nil
}
