package detector

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"driftwatch/internal/config"
	"driftwatch/internal/events"
	"driftwatch/internal/gitmon"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Governance.DecisionLog = filepath.Join(t.TempDir(), "DECISION_LOG.md")
	cfg.Detector.WindowDays = 7
	cfg.Detector.BackscanDays = 0
	return cfg
}

func writeLog(t *testing.T, cfg *config.Config, text string) {
	t.Helper()
	require.NoError(t, os.WriteFile(cfg.Governance.DecisionLog, []byte(text), 0o644))
}

func startDetector(t *testing.T, bus *events.Bus, cfg *config.Config) *Detector {
	t.Helper()
	d := New(bus, cfg, nil)
	require.NoError(t, d.Start(context.Background()))
	t.Cleanup(func() { _ = d.Stop() })
	return d
}

func govChange(path string) *events.Event {
	return events.NewFileChanged("file_watcher", path, "modified", true)
}

func TestUncoveredChangeFlagsOnce(t *testing.T) {
	bus := events.NewBus(100)
	cfg := testConfig(t)
	d := startDetector(t, bus, cfg)

	bus.Publish(govChange("docs/MASTER_RULES.md"))
	bus.Publish(govChange("docs/MASTER_RULES.md"))
	bus.Publish(govChange("docs/MASTER_RULES.md"))

	prompts := bus.Recent(0, events.EventTypeGovernanceDecisionNeeded)
	require.Len(t, prompts, 1)
	assert.Equal(t, "docs/MASTER_RULES.md", prompts[0].DataString("path"))
	assert.Equal(t, events.SeverityWarn, prompts[0].Severity)
	assert.Equal(t, []string{"master_rules.md"}, d.Outstanding())
}

func TestDistinctFilesFlagIndependently(t *testing.T) {
	bus := events.NewBus(100)
	cfg := testConfig(t)
	startDetector(t, bus, cfg)

	bus.Publish(govChange("docs/MASTER_RULES.md"))
	bus.Publish(govChange("docs/GOVERNANCE.md"))

	assert.Equal(t, 2, bus.Count(events.EventTypeGovernanceDecisionNeeded))
}

func TestCoveredChangeDoesNotFlag(t *testing.T) {
	bus := events.NewBus(100)
	cfg := testConfig(t)
	writeLog(t, cfg, fmt.Sprintf(`## %s: Tighten review rules

- Decision: Updated MASTER_RULES.md review requirements
- Rationale: Too many unreviewed merges
`, time.Now().Format("2006-01-02")))
	startDetector(t, bus, cfg)

	bus.Publish(govChange("docs/MASTER_RULES.md"))

	assert.Equal(t, 0, bus.Count(events.EventTypeGovernanceDecisionNeeded))
}

func TestDecisionLogEntryResolvesPrompt(t *testing.T) {
	bus := events.NewBus(100)
	cfg := testConfig(t)
	d := startDetector(t, bus, cfg)

	bus.Publish(govChange("docs/MASTER_RULES.md"))
	require.Len(t, d.Outstanding(), 1)

	writeLog(t, cfg, fmt.Sprintf(`## %s: Document the rules change

- Decision: Logged the MASTER_RULES.md update
`, time.Now().Format("2006-01-02")))
	bus.Publish(events.New(events.EventTypeDecisionLogCreated, "file_watcher", events.SeverityInfo,
		"Decision log updated", nil))

	assert.Empty(t, d.Outstanding())

	// The file may be flagged again for later uncovered changes... but a
	// change still covered by the fresh entry stays quiet.
	bus.Publish(govChange("docs/MASTER_RULES.md"))
	assert.Equal(t, 1, bus.Count(events.EventTypeGovernanceDecisionNeeded))
}

func TestUnrelatedLogEntryDoesNotResolve(t *testing.T) {
	bus := events.NewBus(100)
	cfg := testConfig(t)
	d := startDetector(t, bus, cfg)

	bus.Publish(govChange("docs/MASTER_RULES.md"))

	writeLog(t, cfg, fmt.Sprintf(`## %s: Unrelated choice

- Decision: Switched CI providers
`, time.Now().Format("2006-01-02")))
	bus.Publish(events.New(events.EventTypeDecisionLogCreated, "file_watcher", events.SeverityInfo,
		"Decision log updated", nil))

	assert.Len(t, d.Outstanding(), 1)
}

func TestDecisionLogChangeNeverFlags(t *testing.T) {
	bus := events.NewBus(100)
	cfg := testConfig(t)
	startDetector(t, bus, cfg)

	bus.Publish(govChange(cfg.Governance.DecisionLog))

	assert.Equal(t, 0, bus.Count(events.EventTypeGovernanceDecisionNeeded))
}

func TestGovernanceValidationFailureEscalates(t *testing.T) {
	bus := events.NewBus(100)
	cfg := testConfig(t)
	startDetector(t, bus, cfg)

	bus.Publish(events.NewValidationResult("validation_monitor", events.ValidationRunData{
		Script:   "scripts/check_governance.sh",
		ExitCode: 1,
		Output:   "governance check failed",
	}))
	bus.Publish(events.NewValidationResult("validation_monitor", events.ValidationRunData{
		Script:   "scripts/lint.sh",
		ExitCode: 1,
		Output:   "style errors",
	}))

	prompts := bus.Recent(0, events.EventTypeGovernanceDecisionNeeded)
	require.Len(t, prompts, 1)
	assert.Equal(t, events.SeverityError, prompts[0].Severity)
	assert.Equal(t, "validation_failed", prompts[0].DataString("reason"))
}

func TestStartStopIdempotent(t *testing.T) {
	bus := events.NewBus(100)
	cfg := testConfig(t)
	d := New(bus, cfg, nil)

	require.NoError(t, d.Start(context.Background()))
	require.NoError(t, d.Start(context.Background()))
	require.NoError(t, d.Stop())
	require.NoError(t, d.Stop())

	// After Stop the handlers are gone.
	bus.Publish(govChange("docs/MASTER_RULES.md"))
	assert.Equal(t, 0, bus.Count(events.EventTypeGovernanceDecisionNeeded))
}

func TestBackscanFlagsUnloggedCommit(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
	ctx := context.Background()
	dir := t.TempDir()

	gitRun := func(args ...string) {
		cmd := exec.Command("git", append([]string{"-C", dir}, args...)...)
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, string(out))
	}
	gitRun("init")
	gitRun("config", "user.email", "dev@example.com")
	gitRun("config", "user.name", "Dev")

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "docs"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "docs", "MASTER_RULES.md"), []byte("# rules\n"), 0o644))
	gitRun("add", ".")
	gitRun("commit", "-m", "update master rules")

	git, err := gitmon.NewGit(ctx, dir)
	require.NoError(t, err)

	bus := events.NewBus(100)
	cfg := testConfig(t)
	cfg.Governance.Files = []string{"docs/MASTER_RULES.md"}
	cfg.Detector.BackscanDays = 30

	d := New(bus, cfg, git)
	require.NoError(t, d.Start(ctx))
	defer d.Stop()

	prompts := bus.Recent(0, events.EventTypeGovernanceDecisionNeeded)
	require.Len(t, prompts, 1)
	assert.Equal(t, "backscan", prompts[0].DataString("reason"))
}
