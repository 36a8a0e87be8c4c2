package repl

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"driftwatch/internal/config"
	"driftwatch/internal/daemon"
	"driftwatch/internal/events"
)

func newTestShell(t *testing.T) (*REPL, *daemon.Daemon, *bytes.Buffer) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "docs"), 0o755))

	rulesFile := filepath.Join(dir, "docs", "MASTER_RULES.md")
	require.NoError(t, os.WriteFile(rulesFile, []byte(
		"- [CORE-0001] Agents MUST log every governance change.\n"+
			"- [CORE-0002] Reviews MUST cite [CORE-0001] before merging.\n"), 0o644))

	cfg := config.Default()
	cfg.Governance.Files = []string{rulesFile}
	cfg.Governance.DecisionLog = filepath.Join(dir, "docs", "DECISION_LOG.md")
	cfg.Rules.Files = cfg.Governance.Files
	cfg.FileWatcher.Enabled = false
	cfg.GitMonitor.Enabled = false
	cfg.Storage.Enabled = false
	cfg.Detector.BackscanDays = 0

	d := daemon.New(cfg)
	require.NoError(t, d.Start(context.Background()))
	t.Cleanup(func() { _ = d.Stop() })

	var buf bytes.Buffer
	r, err := New(&Config{Daemon: d, DecisionLog: cfg.Governance.DecisionLog, Out: &buf})
	require.NoError(t, err)
	return r, d, &buf
}

func TestNewRequiresDaemon(t *testing.T) {
	_, err := New(&Config{})
	require.Error(t, err)
}

func TestStatusCommand(t *testing.T) {
	r, _, buf := newTestShell(t)

	require.NoError(t, r.processInput("status"))
	out := buf.String()
	assert.Contains(t, out, "running")
	assert.Contains(t, out, "decision_detector")
	assert.Contains(t, out, "2 rules loaded")
}

func TestEventsCommand(t *testing.T) {
	r, d, buf := newTestShell(t)
	d.Bus().Publish(events.New(events.EventTypeGitCommit, "git_monitor", events.SeverityInfo, "Commit: test", nil))

	require.NoError(t, r.processInput("events 5 git_commit"))
	out := buf.String()
	assert.Contains(t, out, "GIT_COMMIT")
	assert.Contains(t, out, "Commit: test")
}

func TestRulesAndImpactCommands(t *testing.T) {
	r, _, buf := newTestShell(t)

	require.NoError(t, r.processInput("rules"))
	assert.Contains(t, buf.String(), "[CORE-0001]")

	buf.Reset()
	require.NoError(t, r.processInput("impact CORE-0001"))
	out := buf.String()
	assert.Contains(t, out, "CORE-0001")
	assert.Contains(t, out, "CORE-0002")

	buf.Reset()
	err := r.processInput("impact NOPE-9999")
	require.Error(t, err)
}

func TestContradictionsCommandClean(t *testing.T) {
	r, _, buf := newTestShell(t)

	require.NoError(t, r.processInput("contradictions"))
	assert.Contains(t, buf.String(), "no contradictions")
}

func TestDecisionsCommand(t *testing.T) {
	r, _, buf := newTestShell(t)
	logPath := r.decisionLog
	require.NoError(t, os.WriteFile(logPath, []byte(
		"## 2026-08-01: Adopt stricter merge policy\n\n- Decision: Two approvals required\n"), 0o644))

	require.NoError(t, r.processInput("decisions merge"))
	assert.Contains(t, buf.String(), "Adopt stricter merge policy")

	buf.Reset()
	require.NoError(t, r.processInput("decisions nomatch"))
	assert.Contains(t, buf.String(), "no decision log entries")
}

func TestWatchToggle(t *testing.T) {
	r, d, buf := newTestShell(t)

	require.NoError(t, r.processInput("watch"))
	d.Bus().Publish(events.New(events.EventTypeFileChanged, "file_watcher", events.SeverityInfo, "live one", nil))
	assert.Contains(t, buf.String(), "live one")

	require.NoError(t, r.processInput("watch"))
	buf.Reset()
	d.Bus().Publish(events.New(events.EventTypeFileChanged, "file_watcher", events.SeverityInfo, "live two", nil))
	time.Sleep(10 * time.Millisecond)
	assert.NotContains(t, buf.String(), "live two")
}

func TestUnknownCommand(t *testing.T) {
	r, _, _ := newTestShell(t)
	require.Error(t, r.processInput("frobnicate"))
}
