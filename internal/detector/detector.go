// Package detector implements the governance decision detector: it watches
// the bus for governance changes and flags the ones that have no matching
// decision log entry.
package detector

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"driftwatch/internal/config"
	"driftwatch/internal/decisions"
	"driftwatch/internal/events"
	"driftwatch/internal/gitmon"
)

const sourceName = "decision_detector"

// Detector flags governance changes that lack a decision log entry. It keeps
// at most one outstanding prompt per governance file: once a file has been
// flagged, further changes to it stay quiet until a qualifying decision log
// entry resolves the prompt.
type Detector struct {
	bus *events.Bus
	cfg *config.Config
	git *gitmon.Git // nil outside a git repository

	mu          sync.Mutex
	running     bool
	subs        []events.Subscription
	outstanding map[string]time.Time // lowercased base name -> change time
}

// New creates a detector. git may be nil, in which case the start-time
// back-scan is skipped.
func New(bus *events.Bus, cfg *config.Config, git *gitmon.Git) *Detector {
	return &Detector{
		bus:         bus,
		cfg:         cfg,
		git:         git,
		outstanding: make(map[string]time.Time),
	}
}

// window is the +/- duration within which a decision log entry counts as
// covering a change.
func (d *Detector) window() time.Duration {
	return time.Duration(d.cfg.Detector.WindowDays) * 24 * time.Hour
}

// Start subscribes to the bus and runs the back-scan for recent unlogged
// governance commits.
func (d *Detector) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return nil
	}
	d.running = true
	d.subs = []events.Subscription{
		d.bus.Subscribe(events.EventTypeGovernanceFileChanged, d.onGovernanceChange),
		d.bus.Subscribe(events.EventTypeValidationFailed, d.onValidationFailed),
		d.bus.Subscribe(events.EventTypeDecisionLogCreated, d.onDecisionLogChange),
	}
	d.mu.Unlock()

	d.bus.Publish(events.New(events.EventTypeDaemonStarted, sourceName, events.SeverityInfo,
		"Governance decision detector started",
		map[string]interface{}{"component": sourceName}))

	d.backscan(ctx)
	return nil
}

// Stop removes the bus subscriptions. Idempotent.
func (d *Detector) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running {
		return nil
	}
	for _, sub := range d.subs {
		d.bus.Unsubscribe(sub)
	}
	d.subs = nil
	d.running = false
	return nil
}

// Running reports whether the detector is subscribed.
func (d *Detector) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

// Outstanding returns the governance files with an unresolved prompt.
func (d *Detector) Outstanding() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	names := make([]string, 0, len(d.outstanding))
	for name := range d.outstanding {
		names = append(names, name)
	}
	return names
}

// loadLog reads the decision log fresh. Unreadable or missing logs behave as
// empty: every change then looks unlogged, which is the safe direction.
func (d *Detector) loadLog() *decisions.Log {
	log, err := decisions.Load(d.cfg.Governance.DecisionLog)
	if err != nil || log == nil {
		return decisions.Parse("")
	}
	return log
}

func fileKey(path string) string {
	return strings.ToLower(filepath.Base(path))
}

// onGovernanceChange checks the changed file against the decision log and
// flags it when uncovered. Changes to the decision log itself never flag.
func (d *Detector) onGovernanceChange(e *events.Event) {
	path := e.DataString("path")
	if path == "" {
		return
	}
	if fileKey(path) == fileKey(d.cfg.Governance.DecisionLog) {
		return
	}

	log := d.loadLog()
	if log.Covers(path, "", e.Timestamp, d.window()) {
		d.mu.Lock()
		delete(d.outstanding, fileKey(path))
		d.mu.Unlock()
		return
	}

	d.flag(path, e.Timestamp, "file_changed", "")
}

// onValidationFailed escalates governance-related validation failures.
func (d *Detector) onValidationFailed(e *events.Event) {
	text := strings.ToLower(e.Message + " " + e.DataString("output") + " " + e.DataString("script"))
	if !strings.Contains(text, "governance") {
		return
	}
	d.bus.Publish(events.New(events.EventTypeGovernanceDecisionNeeded, sourceName, events.SeverityError,
		"Governance validation failed: "+e.Message,
		map[string]interface{}{
			"reason": "validation_failed",
			"script": e.DataString("script"),
		}))
}

// onDecisionLogChange re-reads the log and resolves any outstanding prompts
// that are now covered.
func (d *Detector) onDecisionLogChange(e *events.Event) {
	log := d.loadLog()

	d.mu.Lock()
	defer d.mu.Unlock()
	for name, changed := range d.outstanding {
		if log.Covers(name, "", changed, d.window()) {
			delete(d.outstanding, name)
		}
	}
}

// flag publishes a GOVERNANCE_DECISION_NEEDED prompt for path unless one is
// already outstanding. hash is the triggering commit when known.
func (d *Detector) flag(path string, changed time.Time, reason, hash string) {
	key := fileKey(path)

	d.mu.Lock()
	if _, dup := d.outstanding[key]; dup {
		d.mu.Unlock()
		return
	}
	d.outstanding[key] = changed
	d.mu.Unlock()

	data := map[string]interface{}{
		"path":   path,
		"reason": reason,
	}
	if hash != "" {
		data["hash"] = hash
	}
	d.bus.Publish(events.New(events.EventTypeGovernanceDecisionNeeded, sourceName, events.SeverityWarn,
		fmt.Sprintf("Governance file %s changed without a decision log entry", filepath.Base(path)),
		data))
}

// backscan walks recent commit history for each governance file and flags
// changes the decision log never recorded.
func (d *Detector) backscan(ctx context.Context) {
	if d.git == nil || d.cfg.Detector.BackscanDays <= 0 {
		return
	}
	since := time.Now().AddDate(0, 0, -d.cfg.Detector.BackscanDays)
	log := d.loadLog()

	for _, file := range d.cfg.Governance.Files {
		if fileKey(file) == fileKey(d.cfg.Governance.DecisionLog) {
			continue
		}
		touches, err := d.git.LogSince(ctx, since, file)
		if err != nil || len(touches) == 0 {
			continue
		}
		// Newest touch first; one uncovered commit is enough to prompt.
		touch := touches[0]
		if log.Covers(file, touch.Hash, touch.Date, d.window()) {
			continue
		}
		d.flag(file, touch.Date, "backscan", touch.Hash)
	}
}
