// Package daemon assembles the driftwatch components around a shared event
// bus and manages their lifecycle. Component start is best-effort: a monitor
// that fails to come up is reported on the bus and skipped, never fatal.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"driftwatch/internal/config"
	"driftwatch/internal/detector"
	"driftwatch/internal/events"
	"driftwatch/internal/gitmon"
	"driftwatch/internal/rules"
	"driftwatch/internal/storage"
	"driftwatch/internal/validation"
	"driftwatch/internal/watcher"
)

const sourceName = "daemon"

// State is the daemon lifecycle state.
type State string

const (
	StateStopped  State = "stopped"
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateStopping State = "stopping"
)

// ErrDisabled is returned when the config disables the daemon outright.
var ErrDisabled = errors.New("daemon: disabled by configuration")

// ErrStopTimeout is returned when components fail to stop within the
// configured stop timeout. Remaining components are abandoned.
var ErrStopTimeout = errors.New("daemon: components did not stop within timeout")

// component pairs a name with lifecycle hooks so start and stop can iterate
// uniformly over monitors with differing concrete types.
type component struct {
	name    string
	start   func(context.Context) error
	stop    func() error
	running func() bool
}

// Daemon owns the bus and every monitor.
type Daemon struct {
	cfg *config.Config

	bus    *events.Bus
	engine *rules.Engine

	mu         sync.Mutex
	state      State
	components []component

	archive    *storage.Archive
	archiveSub events.Subscription

	det *detector.Detector
}

// Status is a point-in-time snapshot of the daemon.
type Status struct {
	// State is the lifecycle state
	State State
	// Components maps component name to whether it is running
	Components map[string]bool
	// EventCount is the number of events retained on the bus
	EventCount int
	// RuleCount is the number of rules in the current rule graph
	RuleCount int
	// Outstanding lists governance files with an unresolved decision prompt
	Outstanding []string
}

// New creates a daemon from config. Nothing starts until Start.
func New(cfg *config.Config) *Daemon {
	return &Daemon{
		cfg:    cfg,
		bus:    events.NewBus(cfg.Daemon.EventHistorySize),
		engine: rules.NewEngine(cfg.Rules.Files, rules.Thresholds{Medium: cfg.Rules.ImpactMediumThreshold, High: cfg.Rules.ImpactHighThreshold}),
		state:  StateStopped,
	}
}

// Bus returns the shared event bus.
func (d *Daemon) Bus() *events.Bus { return d.bus }

// Engine returns the rule graph engine.
func (d *Daemon) Engine() *rules.Engine { return d.engine }

// Archive returns the event archive, or nil when storage is disabled or
// failed to open.
func (d *Daemon) Archive() *storage.Archive {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.archive
}

// State returns the current lifecycle state.
func (d *Daemon) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Start brings up storage, the rule engine, and every enabled monitor.
// Calling Start on a running daemon is a no-op.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.state != StateStopped {
		d.mu.Unlock()
		return nil
	}
	if !d.cfg.Daemon.Enabled {
		d.mu.Unlock()
		return ErrDisabled
	}
	d.state = StateStarting
	d.mu.Unlock()

	// Archive first so it captures every startup event.
	if d.cfg.Storage.Enabled {
		archive, err := storage.Open(d.cfg.Storage.Path)
		if err != nil {
			d.warn(fmt.Sprintf("Event archive unavailable: %v", err), "storage")
		} else {
			d.mu.Lock()
			d.archive = archive
			d.archiveSub = archive.Attach(d.bus)
			d.mu.Unlock()
		}
	}

	// The rule graph is loaded once at startup; `driftwatch rules` and the
	// repl refresh on demand. Duplicate rule IDs fail the refresh but not
	// the daemon: the previous (empty) generation stays in effect.
	if err := d.engine.Refresh(); err != nil {
		d.warn(fmt.Sprintf("Rule graph refresh failed: %v", err), "rules")
	}

	git, err := gitmon.NewGit(ctx, ".")
	if err != nil {
		d.warn(fmt.Sprintf("Git unavailable: %v", err), "git_monitor")
		git = nil
	}

	var comps []component
	if d.cfg.FileWatcher.Enabled {
		w := watcher.New(d.bus, d.cfg.FileWatcher, d.cfg.IsGovernanceFile, d.cfg.Governance.DecisionLog)
		comps = append(comps, component{
			name:    "file_watcher",
			start:   func(context.Context) error { return w.Start() },
			stop:    w.Stop,
			running: w.Running,
		})
	}
	if d.cfg.GitMonitor.Enabled {
		g := gitmon.New(d.bus, d.cfg.GitMonitor, git)
		comps = append(comps, component{
			name:    "git_monitor",
			start:   g.Start,
			stop:    g.Stop,
			running: g.Running,
		})
	}
	if d.cfg.Validation.Enabled {
		v := validation.New(d.bus, d.cfg.Validation)
		comps = append(comps, component{
			name:    "validation_monitor",
			start:   func(context.Context) error { return v.Start() },
			stop:    v.Stop,
			running: v.Running,
		})
	}
	if d.cfg.Detector.Enabled {
		det := detector.New(d.bus, d.cfg, git)
		d.mu.Lock()
		d.det = det
		d.mu.Unlock()
		comps = append(comps, component{
			name:    "decision_detector",
			start:   det.Start,
			stop:    det.Stop,
			running: det.Running,
		})
	}

	started := make(map[string]bool, len(comps))
	for _, c := range comps {
		if err := c.start(ctx); err != nil {
			d.warn(fmt.Sprintf("Component %s failed to start: %v", c.name, err), c.name)
			started[c.name] = false
			continue
		}
		started[c.name] = c.running()
	}

	d.mu.Lock()
	d.components = comps
	d.state = StateRunning
	d.mu.Unlock()

	data := map[string]interface{}{}
	for name, ok := range started {
		data[name] = ok
	}
	d.bus.Publish(events.New(events.EventTypeDaemonStarted, sourceName, events.SeverityInfo,
		"driftwatch daemon started", data))
	return nil
}

// Stop shuts components down in reverse start order, bounded by the
// configured stop timeout. A second Stop is a no-op and publishes nothing.
func (d *Daemon) Stop() error {
	d.mu.Lock()
	if d.state != StateRunning {
		d.mu.Unlock()
		return nil
	}
	d.state = StateStopping
	comps := d.components
	archive := d.archive
	archiveSub := d.archiveSub
	d.mu.Unlock()

	// Published before teardown so the archive still records it.
	d.bus.Publish(events.New(events.EventTypeDaemonStopped, sourceName, events.SeverityInfo,
		"driftwatch daemon stopping", nil))

	var g errgroup.Group
	g.Go(func() error {
		var firstErr error
		for i := len(comps) - 1; i >= 0; i-- {
			if err := comps[i].stop(); err != nil && firstErr == nil {
				firstErr = fmt.Errorf("stopping %s: %w", comps[i].name, err)
			}
		}
		return firstErr
	})

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	var stopErr error
	select {
	case err := <-done:
		stopErr = err
	case <-time.After(d.cfg.Daemon.StopTimeout):
		stopErr = ErrStopTimeout
	}

	d.mu.Lock()
	if archive != nil {
		d.bus.Unsubscribe(archiveSub)
		archive.Close()
		d.archive = nil
	}
	d.components = nil
	d.det = nil
	d.state = StateStopped
	d.mu.Unlock()

	return stopErr
}

// Status reports the daemon, its components, and the rule graph.
func (d *Daemon) Status() Status {
	d.mu.Lock()
	comps := d.components
	state := d.state
	det := d.det
	d.mu.Unlock()

	st := Status{
		State:      state,
		Components: make(map[string]bool, len(comps)),
		EventCount: d.bus.Count(""),
		RuleCount:  d.engine.Snapshot().Len(),
	}
	for _, c := range comps {
		st.Components[c.name] = c.running()
	}
	if det != nil {
		st.Outstanding = det.Outstanding()
	}
	return st
}

// Run starts the daemon and blocks until the context is cancelled or an
// interrupt arrives, then stops it.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.Start(ctx); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case <-ctx.Done():
	case <-sigCh:
	}
	return d.Stop()
}

// warn publishes a WARN event on behalf of a component.
func (d *Daemon) warn(msg, componentName string) {
	d.bus.Publish(events.New(events.EventTypeDaemonStarted, sourceName, events.SeverityWarn,
		msg, map[string]interface{}{"component": componentName}))
}
