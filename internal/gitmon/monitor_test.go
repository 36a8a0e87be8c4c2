package gitmon

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"driftwatch/internal/config"
	"driftwatch/internal/events"
)

// initTestRepo creates a git repository with one initial commit and returns
// its path. Tests are skipped when git is unavailable.
func initTestRepo(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}

	dir := t.TempDir()
	runGit(t, dir, "init")
	runGit(t, dir, "config", "user.email", "test@example.com")
	runGit(t, dir, "config", "user.name", "Test User")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("hello"), 0o644))
	runGit(t, dir, "add", "README.md")
	runGit(t, dir, "commit", "-m", "initial commit")
	return dir
}

func runGit(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", append([]string{"-C", dir}, args...)...)
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "git %v: %s", args, out)
}

func testGitConfig() config.GitMonitorConfig {
	return config.GitMonitorConfig{
		Enabled:        true,
		PollInterval:   25 * time.Millisecond,
		DetectAIAgents: true,
	}
}

func TestGitWrapper(t *testing.T) {
	ctx := context.Background()
	dir := initTestRepo(t)

	git, err := NewGit(ctx, dir)
	require.NoError(t, err)

	assert.True(t, git.IsRepo(ctx))

	head, err := git.Head(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, head)

	info, err := git.CommitInfo(ctx, head)
	require.NoError(t, err)
	assert.Equal(t, head, info.Hash)
	assert.Equal(t, "Test User", info.Author)
	assert.Equal(t, "initial commit", info.Message)

	// Stage a file and observe it in the staged set.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "NEW.md"), []byte("x"), 0o644))
	runGit(t, dir, "add", "NEW.md")
	staged, err := git.StagedFiles(ctx)
	require.NoError(t, err)
	assert.True(t, staged["NEW.md"])
}

func TestGitWrapperNotARepo(t *testing.T) {
	ctx := context.Background()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
	git, err := NewGit(ctx, t.TempDir())
	require.NoError(t, err)
	assert.False(t, git.IsRepo(ctx))
}

func TestLogSince(t *testing.T) {
	ctx := context.Background()
	dir := initTestRepo(t)

	git, err := NewGit(ctx, dir)
	require.NoError(t, err)

	touches, err := git.LogSince(ctx, time.Now().AddDate(0, 0, -1), "README.md")
	require.NoError(t, err)
	require.Len(t, touches, 1)
	assert.NotEmpty(t, touches[0].Hash)

	touches, err = git.LogSince(ctx, time.Now().AddDate(0, 0, -1), "ABSENT.md")
	require.NoError(t, err)
	assert.Empty(t, touches)
}

func TestMonitorNotARepoWarnsOnce(t *testing.T) {
	ctx := context.Background()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}

	bus := events.NewBus(100)
	git, err := NewGit(ctx, t.TempDir())
	require.NoError(t, err)

	m := New(bus, testGitConfig(), git)
	require.NoError(t, m.Start(ctx))

	assert.False(t, m.Running())
	warns := bus.Recent(10, events.EventTypeDaemonStarted)
	require.Len(t, warns, 1)
	assert.Equal(t, events.SeverityWarn, warns[0].Severity)
	assert.Equal(t, "not_git_repo", warns[0].DataString("reason"))
}

func TestMonitorDetectsNewCommit(t *testing.T) {
	ctx := context.Background()
	dir := initTestRepo(t)

	bus := events.NewBus(100)
	git, err := NewGit(ctx, dir)
	require.NoError(t, err)

	m := New(bus, testGitConfig(), git)
	require.NoError(t, m.Start(ctx))
	defer m.Stop()
	require.True(t, m.Running())

	// The seeded HEAD must not be re-announced.
	assert.Equal(t, 0, bus.Count(events.EventTypeGitCommit))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "CHANGE.md"), []byte("x"), 0o644))
	runGit(t, dir, "add", "CHANGE.md")
	runGit(t, dir, "commit", "-m", "feat(docs): generated change")

	require.Eventually(t, func() bool {
		return bus.Count(events.EventTypeGitCommit) == 1
	}, 3*time.Second, 20*time.Millisecond)

	commits := bus.Recent(1, events.EventTypeGitCommit)
	assert.Contains(t, commits[0].Message, "feat(docs)")

	// Conventional-commit scope plus "generated" marks it as agent work.
	require.Eventually(t, func() bool {
		return bus.Count(events.EventTypeAIAgentAction) == 1
	}, 3*time.Second, 20*time.Millisecond)
}

func TestMonitorDetectsStagedFile(t *testing.T) {
	ctx := context.Background()
	dir := initTestRepo(t)

	bus := events.NewBus(100)
	git, err := NewGit(ctx, dir)
	require.NoError(t, err)

	m := New(bus, testGitConfig(), git)
	require.NoError(t, m.Start(ctx))
	defer m.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "STAGED.md"), []byte("x"), 0o644))
	runGit(t, dir, "add", "STAGED.md")

	require.Eventually(t, func() bool {
		recent := bus.Recent(10, events.EventTypeGitStage)
		return len(recent) == 1 && recent[0].DataString("path") == "STAGED.md"
	}, 3*time.Second, 20*time.Millisecond)

	// The same staged file is not re-announced on later ticks.
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, bus.Count(events.EventTypeGitStage))
}

func TestMonitorStopIdempotent(t *testing.T) {
	ctx := context.Background()
	dir := initTestRepo(t)

	bus := events.NewBus(100)
	git, err := NewGit(ctx, dir)
	require.NoError(t, err)

	m := New(bus, testGitConfig(), git)
	require.NoError(t, m.Start(ctx))

	require.NoError(t, m.Stop())
	require.NoError(t, m.Stop())
	assert.False(t, m.Running())
}
