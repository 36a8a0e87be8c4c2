// Package config loads the driftwatch daemon configuration from YAML.
// Every setting has a default, and a missing config file is not an error:
// the daemon runs with defaults against the current working directory.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the config file name looked up in the project root.
const DefaultConfigFile = "driftwatch.yaml"

// Config is the root driftwatch configuration.
type Config struct {
	// Daemon holds daemon-wide settings
	Daemon DaemonConfig `yaml:"daemon"`

	// Governance lists the governance document paths, relative to the
	// project root. Changes to these files carry WARN severity and are
	// correlated against the decision log.
	Governance GovernanceConfig `yaml:"governance"`

	// FileWatcher configures the file-change monitor
	FileWatcher FileWatcherConfig `yaml:"file_watcher"`

	// GitMonitor configures the git-activity monitor
	GitMonitor GitMonitorConfig `yaml:"git_monitor"`

	// Validation configures the validation-run monitor
	Validation ValidationConfig `yaml:"validation"`

	// Detector configures the governance decision detector
	Detector DetectorConfig `yaml:"detector"`

	// Storage configures the sqlite event archive
	Storage StorageConfig `yaml:"storage"`

	// Rules configures the rule graph engine
	Rules RulesConfig `yaml:"rules"`
}

// DaemonConfig holds daemon-wide settings.
type DaemonConfig struct {
	// Enabled controls whether the daemon starts at all
	Enabled bool `yaml:"enabled"`

	// EventHistorySize bounds the in-memory event bus history
	// Default: 1000
	EventHistorySize int `yaml:"event_history_size"`

	// StopTimeout bounds how long stop() waits for each component to exit
	// before abandoning it. Default: 5s
	StopTimeout time.Duration `yaml:"stop_timeout"`
}

// GovernanceConfig names the governed documents.
type GovernanceConfig struct {
	// Files are the governance document paths whose changes require
	// decision log coverage
	Files []string `yaml:"files"`

	// DecisionLog is the path to the decision log document
	DecisionLog string `yaml:"decision_log"`
}

// FileWatcherConfig configures the file-change monitor.
type FileWatcherConfig struct {
	// Enabled controls whether the file watcher runs
	Enabled bool `yaml:"enabled"`

	// WatchPaths are the files and directories to watch. Defaults to the
	// governance document locations.
	WatchPaths []string `yaml:"watch_paths"`

	// PollInterval is the tick interval for the hash-polling fallback
	// Default: 2s
	PollInterval time.Duration `yaml:"poll_interval"`

	// ForcePolling skips OS-level notification and always uses the
	// hash-polling strategy
	ForcePolling bool `yaml:"force_polling"`

	// DebounceWindow collapses repeated change signals for one path
	// Default: 1s
	DebounceWindow time.Duration `yaml:"debounce_window"`
}

// GitMonitorConfig configures the git-activity monitor.
type GitMonitorConfig struct {
	// Enabled controls whether the git monitor runs
	Enabled bool `yaml:"enabled"`

	// PollInterval is the tick interval. Default: 2s
	PollInterval time.Duration `yaml:"poll_interval"`

	// DetectAIAgents enables AI_AGENT_ACTION events for commits matching
	// the agent patterns
	DetectAIAgents bool `yaml:"detect_ai_agents"`

	// AgentPatterns are case-insensitive substrings matched against commit
	// author and message. Empty uses the built-in set.
	AgentPatterns []string `yaml:"agent_patterns"`
}

// ValidationConfig configures the validation-run monitor.
type ValidationConfig struct {
	// Enabled controls whether the validation monitor runs
	Enabled bool `yaml:"enabled"`

	// Scripts are validation commands runnable via `driftwatch validate`
	Scripts []string `yaml:"scripts"`

	// Concurrency bounds how many scripts run at once. Default: 4
	Concurrency int `yaml:"concurrency"`
}

// DetectorConfig configures the governance decision detector.
type DetectorConfig struct {
	// Enabled controls whether the detector runs
	Enabled bool `yaml:"enabled"`

	// WindowDays is the +/- window, in days, within which a decision log
	// entry counts as covering a governance change. The window is a
	// heuristic and deliberately tunable. Default: 7
	WindowDays int `yaml:"window_days"`

	// BackscanDays is how far back the start-time commit scan looks for
	// unlogged governance changes. Default: 30
	BackscanDays int `yaml:"backscan_days"`
}

// StorageConfig configures the sqlite event archive.
type StorageConfig struct {
	// Enabled controls whether events are archived to sqlite
	Enabled bool `yaml:"enabled"`

	// Path is the sqlite database path. Default: .driftwatch/events.db
	Path string `yaml:"path"`
}

// RulesConfig configures the rule graph engine.
type RulesConfig struct {
	// Files are the documents scanned for rules. Empty means the
	// governance file set.
	Files []string `yaml:"files"`

	// ImpactMediumThreshold: affected-rule counts at or above this are at
	// least medium impact. Default: 1
	ImpactMediumThreshold int `yaml:"impact_medium_threshold"`

	// ImpactHighThreshold: affected-rule counts at or above this are high
	// impact. Default: 5
	ImpactHighThreshold int `yaml:"impact_high_threshold"`
}

// Default returns the configuration used when no config file exists.
func Default() *Config {
	govFiles := []string{
		"docs/MASTER_RULES.md",
		"docs/GOVERNANCE.md",
		"docs/RESET_TRIGGERS.md",
		"docs/CONTEXT_BUDGET.md",
		".cursorrules",
	}
	return &Config{
		Daemon: DaemonConfig{
			Enabled:          true,
			EventHistorySize: 1000,
			StopTimeout:      5 * time.Second,
		},
		Governance: GovernanceConfig{
			Files:       govFiles,
			DecisionLog: "docs/DECISION_LOG.md",
		},
		FileWatcher: FileWatcherConfig{
			Enabled:        true,
			WatchPaths:     append([]string{"docs"}, ".cursorrules"),
			PollInterval:   2 * time.Second,
			DebounceWindow: time.Second,
		},
		GitMonitor: GitMonitorConfig{
			Enabled:        true,
			PollInterval:   2 * time.Second,
			DetectAIAgents: true,
		},
		Validation: ValidationConfig{
			Enabled:     true,
			Concurrency: 4,
		},
		Detector: DetectorConfig{
			Enabled:      true,
			WindowDays:   7,
			BackscanDays: 30,
		},
		Storage: StorageConfig{
			Enabled: true,
			Path:    ".driftwatch/events.db",
		},
		Rules: RulesConfig{
			ImpactMediumThreshold: 1,
			ImpactHighThreshold:   5,
		},
	}
}

// Load reads the configuration from path. A missing file returns defaults;
// a malformed file is an error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}
	config.applyFallbacks()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// applyFallbacks restores defaults for values the file zeroed out.
func (c *Config) applyFallbacks() {
	d := Default()
	if c.Daemon.EventHistorySize <= 0 {
		c.Daemon.EventHistorySize = d.Daemon.EventHistorySize
	}
	if c.Daemon.StopTimeout <= 0 {
		c.Daemon.StopTimeout = d.Daemon.StopTimeout
	}
	if len(c.Governance.Files) == 0 {
		c.Governance.Files = d.Governance.Files
	}
	if c.Governance.DecisionLog == "" {
		c.Governance.DecisionLog = d.Governance.DecisionLog
	}
	if len(c.FileWatcher.WatchPaths) == 0 {
		c.FileWatcher.WatchPaths = d.FileWatcher.WatchPaths
	}
	if c.FileWatcher.PollInterval <= 0 {
		c.FileWatcher.PollInterval = d.FileWatcher.PollInterval
	}
	if c.FileWatcher.DebounceWindow <= 0 {
		c.FileWatcher.DebounceWindow = d.FileWatcher.DebounceWindow
	}
	if c.GitMonitor.PollInterval <= 0 {
		c.GitMonitor.PollInterval = d.GitMonitor.PollInterval
	}
	if c.Validation.Concurrency <= 0 {
		c.Validation.Concurrency = d.Validation.Concurrency
	}
	if c.Detector.WindowDays <= 0 {
		c.Detector.WindowDays = d.Detector.WindowDays
	}
	if c.Detector.BackscanDays <= 0 {
		c.Detector.BackscanDays = d.Detector.BackscanDays
	}
	if c.Storage.Path == "" {
		c.Storage.Path = d.Storage.Path
	}
	if c.Rules.ImpactMediumThreshold <= 0 {
		c.Rules.ImpactMediumThreshold = d.Rules.ImpactMediumThreshold
	}
	if c.Rules.ImpactHighThreshold <= 0 {
		c.Rules.ImpactHighThreshold = d.Rules.ImpactHighThreshold
	}
	if len(c.Rules.Files) == 0 {
		c.Rules.Files = c.Governance.Files
	}
}

// Validate rejects configs that cannot produce a working daemon.
func (c *Config) Validate() error {
	if c.Rules.ImpactHighThreshold <= c.Rules.ImpactMediumThreshold {
		return fmt.Errorf("rules.impact_high_threshold (%d) must exceed impact_medium_threshold (%d)",
			c.Rules.ImpactHighThreshold, c.Rules.ImpactMediumThreshold)
	}
	if c.FileWatcher.PollInterval < 100*time.Millisecond {
		return fmt.Errorf("file_watcher.poll_interval %v too small (min 100ms)", c.FileWatcher.PollInterval)
	}
	if c.GitMonitor.PollInterval < 100*time.Millisecond {
		return fmt.Errorf("git_monitor.poll_interval %v too small (min 100ms)", c.GitMonitor.PollInterval)
	}
	return nil
}

// IsGovernanceFile reports whether path names one of the governed documents,
// matched on exact path or basename suffix so that both relative and
// absolute forms hit.
func (c *Config) IsGovernanceFile(path string) bool {
	for _, gov := range c.Governance.Files {
		if path == gov || hasPathSuffix(path, gov) {
			return true
		}
	}
	return path == c.Governance.DecisionLog || hasPathSuffix(path, c.Governance.DecisionLog)
}

func hasPathSuffix(path, suffix string) bool {
	if len(path) <= len(suffix) {
		return false
	}
	tail := path[len(path)-len(suffix):]
	return tail == suffix && (path[len(path)-len(suffix)-1] == '/' || path[len(path)-len(suffix)-1] == '\\')
}
