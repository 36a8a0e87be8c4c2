package gitmon

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"time"

	"driftwatch/internal/config"
	"driftwatch/internal/events"
)

const sourceName = "git_monitor"

// ErrStopTimeout is returned when the poll loop fails to exit within one
// polling interval plus grace.
var ErrStopTimeout = errors.New("gitmon: loop did not stop within timeout")

// Monitor polls the repository on a fixed interval, diffing the staged file
// set and watching HEAD for new commits.
type Monitor struct {
	bus     *events.Bus
	cfg     config.GitMonitorConfig
	git     *Git
	matcher *AgentMatcher

	mu       sync.Mutex
	running  bool
	done     chan struct{}
	loopDone chan struct{}

	lastStaged map[string]bool
	lastHash   string
}

// New creates a git-activity monitor. git may be nil when the binary is
// unavailable; Start then publishes a WARN and idles disabled.
func New(bus *events.Bus, cfg config.GitMonitorConfig, git *Git) *Monitor {
	return &Monitor{
		bus:     bus,
		cfg:     cfg,
		git:     git,
		matcher: NewAgentMatcher(cfg.AgentPatterns),
	}
}

// Running reports whether the poll loop is active.
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Start launches the poll loop. Outside a git repository the monitor
// publishes a one-time WARN and stays stopped; that is not an error.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return nil
	}

	if m.git == nil || !m.git.IsRepo(ctx) {
		m.bus.Publish(events.New(events.EventTypeDaemonStarted, sourceName, events.SeverityWarn,
			"Git monitor disabled: not a git repository",
			map[string]interface{}{"component": sourceName, "status": "disabled", "reason": "not_git_repo"}))
		return nil
	}

	// Seed state so the first tick only reports activity that happens
	// after start.
	staged, err := m.git.StagedFiles(ctx)
	if err != nil {
		staged = make(map[string]bool)
	}
	m.lastStaged = staged
	if head, err := m.git.Head(ctx); err == nil {
		m.lastHash = head
	}

	m.done = make(chan struct{})
	m.loopDone = make(chan struct{})
	m.running = true
	go m.loop(m.done, m.loopDone)

	m.bus.Publish(events.New(events.EventTypeDaemonStarted, sourceName, events.SeverityInfo,
		"Git monitor started",
		map[string]interface{}{"component": sourceName}))
	return nil
}

// Stop terminates the poll loop. Idempotent; safe cross-goroutine.
func (m *Monitor) Stop() error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = false
	close(m.done)
	loopDone := m.loopDone
	m.mu.Unlock()

	select {
	case <-loopDone:
		return nil
	case <-time.After(m.cfg.PollInterval + time.Second):
		return ErrStopTimeout
	}
}

func (m *Monitor) loop(done <-chan struct{}, loopDone chan<- struct{}) {
	defer close(loopDone)

	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			m.tick(context.Background())
		}
	}
}

// tick runs one poll. Errors are reported as events and never stop the loop.
func (m *Monitor) tick(ctx context.Context) {
	if err := m.checkStaged(ctx); err != nil {
		m.reportTickError(err)
	}
	if err := m.checkCommits(ctx); err != nil {
		m.reportTickError(err)
	}
}

// checkStaged publishes GIT_STAGE for files staged since the previous tick.
func (m *Monitor) checkStaged(ctx context.Context) error {
	current, err := m.git.StagedFiles(ctx)
	if err != nil {
		return err
	}
	for path := range current {
		if !m.lastStaged[path] {
			m.bus.Publish(events.New(events.EventTypeGitStage, sourceName, events.SeverityInfo,
				"File staged: "+filepath.Base(path),
				map[string]interface{}{"path": path}))
		}
	}
	m.lastStaged = current
	return nil
}

// checkCommits publishes GIT_COMMIT when HEAD has advanced, plus
// AI_AGENT_ACTION when the commit matches automation indicators.
func (m *Monitor) checkCommits(ctx context.Context) error {
	head, err := m.git.Head(ctx)
	if err != nil {
		return err
	}
	if head == "" || head == m.lastHash {
		return nil
	}

	commit, err := m.git.CommitInfo(ctx, head)
	if err != nil {
		return err
	}
	m.lastHash = head

	m.bus.Publish(events.NewGitCommit(sourceName, commit))

	if m.cfg.DetectAIAgents && m.matcher.Match(commit.Author, commit.Message) {
		subject := commit.Message
		if len(subject) > 50 {
			subject = subject[:50]
		}
		m.bus.Publish(events.New(events.EventTypeAIAgentAction, sourceName, events.SeverityInfo,
			"AI agent action detected: "+subject,
			map[string]interface{}{
				"commit_hash": commit.Hash,
				"author":      commit.Author,
				"message":     commit.Message,
			}))
	}
	return nil
}

func (m *Monitor) reportTickError(err error) {
	m.bus.Publish(events.New(events.EventTypeValidationFailed, sourceName, events.SeverityError,
		"Git monitor error: "+err.Error(),
		map[string]interface{}{"error": err.Error()}))
}
