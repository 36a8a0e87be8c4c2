// Package watcher implements the file-change monitor. Two strategies sit
// behind one Monitor: an event-driven mode backed by OS-level notification
// (fsnotify) and a hash-polling fallback. Both obey the same debounce rule
// and publish the same event shapes, so subscribers cannot tell them apart.
package watcher

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/time/rate"

	"driftwatch/internal/config"
	"driftwatch/internal/events"
)

const sourceName = "file_watcher"

// Mode identifies the active watch strategy.
type Mode string

const (
	// ModeNotify uses OS-level file notification
	ModeNotify Mode = "notify"
	// ModePolling hashes watched files on a fixed interval
	ModePolling Mode = "polling"
)

// ErrStopTimeout is returned when the watch loop fails to exit within the
// stop timeout. The loop is abandoned, not joined.
var ErrStopTimeout = errors.New("watcher: loop did not stop within timeout")

// Monitor watches configured paths and publishes FILE_CHANGED /
// GOVERNANCE_FILE_CHANGED events onto the bus.
type Monitor struct {
	bus         *events.Bus
	cfg         config.FileWatcherConfig
	govCheck    func(string) bool
	decisionLog string

	mode Mode

	mu       sync.Mutex
	running  bool
	done     chan struct{}
	loopDone chan struct{}
	fsw      *fsnotify.Watcher

	// limiters holds one rate limiter per path; a path's limiter admits
	// one event per debounce window, collapsing rapid repeats.
	limitersMu sync.Mutex
	limiters   map[string]*rate.Limiter
}

// New creates a file-change monitor. govCheck classifies a path as part of
// the governance document set; decisionLog is the decision log path whose
// changes additionally publish DECISION_LOG_CREATED.
func New(bus *events.Bus, cfg config.FileWatcherConfig, govCheck func(string) bool, decisionLog string) *Monitor {
	if govCheck == nil {
		govCheck = func(string) bool { return false }
	}
	return &Monitor{
		bus:         bus,
		cfg:         cfg,
		govCheck:    govCheck,
		decisionLog: decisionLog,
		limiters:    make(map[string]*rate.Limiter),
	}
}

// Mode returns the strategy selected at Start. Empty before Start.
func (m *Monitor) Mode() Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mode
}

// Running reports whether the watch loop is active.
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Start selects a strategy and launches the watch loop. Starting an already
// running monitor is a no-op.
func (m *Monitor) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return nil
	}

	m.done = make(chan struct{})
	m.loopDone = make(chan struct{})

	if !m.cfg.ForcePolling {
		fsw, err := fsnotify.NewWatcher()
		if err == nil {
			if err := m.addNotifyPaths(fsw); err != nil {
				fsw.Close()
				return err
			}
			m.fsw = fsw
			m.mode = ModeNotify
			m.running = true
			go m.notifyLoop(fsw, m.done, m.loopDone)
			m.publishStarted()
			return nil
		}
		// fsnotify unavailable on this platform: fall through to polling.
		fmt.Fprintf(os.Stderr, "driftwatch: os notification unavailable (%v), falling back to polling\n", err)
	}

	m.mode = ModePolling
	m.running = true
	go m.pollLoop(m.done, m.loopDone)
	m.publishStarted()
	return nil
}

// Stop terminates the watch loop and releases OS watch handles. It is
// idempotent and safe to call from any goroutine; the loop exits within one
// poll interval or the call returns ErrStopTimeout and abandons it.
func (m *Monitor) Stop() error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = false
	close(m.done)
	fsw := m.fsw
	m.fsw = nil
	loopDone := m.loopDone
	m.mu.Unlock()

	if fsw != nil {
		fsw.Close()
	}

	timeout := m.cfg.PollInterval + time.Second
	select {
	case <-loopDone:
		return nil
	case <-time.After(timeout):
		return ErrStopTimeout
	}
}

// emit publishes a change event for path unless the per-path debounce
// suppresses it.
func (m *Monitor) emit(path, operation string) {
	if !m.allow(path) {
		return
	}

	governance := m.govCheck(path)
	m.bus.Publish(events.NewFileChanged(sourceName, path, operation, governance))

	if m.decisionLog != "" && samePath(path, m.decisionLog) {
		m.bus.Publish(events.New(events.EventTypeDecisionLogCreated, sourceName, events.SeverityInfo,
			"Decision log updated: "+filepath.Base(path),
			map[string]interface{}{"path": path}))
	}
}

// allow applies the debounce rule: one event per path per debounce window.
func (m *Monitor) allow(path string) bool {
	m.limitersMu.Lock()
	limiter, ok := m.limiters[path]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(m.cfg.DebounceWindow), 1)
		m.limiters[path] = limiter
	}
	m.limitersMu.Unlock()
	return limiter.Allow()
}

func (m *Monitor) publishStarted() {
	m.bus.Publish(events.New(events.EventTypeDaemonStarted, sourceName, events.SeverityInfo,
		fmt.Sprintf("File watcher started (%s mode)", m.mode),
		map[string]interface{}{"component": sourceName, "mode": string(m.mode)}))
}

// watchedFiles expands the configured watch paths to the concrete file set:
// files directly, directories by listing their immediate regular files.
func (m *Monitor) watchedFiles() []string {
	var files []string
	for _, p := range m.cfg.WatchPaths {
		info, err := os.Stat(p)
		if err != nil {
			continue
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		entries, err := os.ReadDir(p)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if !entry.IsDir() {
				files = append(files, filepath.Join(p, entry.Name()))
			}
		}
	}
	return files
}

func samePath(a, b string) bool {
	if a == b {
		return true
	}
	aa, err1 := filepath.Abs(a)
	bb, err2 := filepath.Abs(b)
	return err1 == nil && err2 == nil && aa == bb
}
