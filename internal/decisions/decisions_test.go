package decisions

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleLog = `# Decision Log

## Purpose
Records intent-level decisions. Prevents silent drift.

## Entries

### 2026-02-10: Tighten review requirements

Date: 2026-02-10
Decision: Require two approvals on GOVERNANCE.md edits
Trigger: Unreviewed governance change in commit 3f2a91c
Rationale: Single-approver edits caused drift
Tradeoffs: Slower merges
Expected Impact: Fewer unlogged edits
Review Date: 2026-03-10
Related Rules: [DW-GOV-0001], [DW-GOV-0002]
Tags: governance, review

---

### 2026-02-20: Adopt validation gating

Date: 2026-02-20
Decision: Block merges on validation failures
Trigger: Repeated MASTER_RULES.md regressions
Rationale: Catch drift mechanically
Tradeoffs: CI time
Expected Impact: Earlier detection
Review Date: N/A
Tags: validation

not-a-header 2026-99-99: bogus
`

func TestParseEntries(t *testing.T) {
	log := Parse(sampleLog)
	require.Len(t, log.Entries, 2)

	first := log.Entries[0]
	assert.Equal(t, 1, first.Number)
	assert.Equal(t, time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC), first.Date)
	assert.Equal(t, "Require two approvals on GOVERNANCE.md edits", first.Decision)
	assert.Equal(t, "Single-approver edits caused drift", first.Rationale)
	assert.Equal(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), first.ReviewDate)
	assert.Equal(t, []string{"[DW-GOV-0001]", "[DW-GOV-0002]"}, first.RelatedRules)
	assert.Equal(t, []string{"governance", "review"}, first.Tags)

	second := log.Entries[1]
	assert.Equal(t, 2, second.Number)
	assert.True(t, second.ReviewDate.IsZero(), "N/A review date stays zero")
}

func TestParseNumberingStableUnderUnrelatedEdits(t *testing.T) {
	before := Parse(sampleLog)
	after := Parse("## New preamble section\n\nSome more prose.\n\n" + sampleLog)

	require.Len(t, after.Entries, len(before.Entries))
	for i := range before.Entries {
		assert.Equal(t, before.Entries[i].Number, after.Entries[i].Number)
		assert.Equal(t, before.Entries[i].Decision, after.Entries[i].Decision)
	}
}

func TestLoadMissingFile(t *testing.T) {
	log, err := Load(filepath.Join(t.TempDir(), "DECISION_LOG.md"))
	require.NoError(t, err)
	assert.Empty(t, log.Entries)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "DECISION_LOG.md")
	require.NoError(t, os.WriteFile(path, []byte(sampleLog), 0o644))

	log, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, log.Entries, 2)
	assert.Equal(t, path, log.Path)
}

func TestCoversByFileName(t *testing.T) {
	log := Parse(sampleLog)
	window := 7 * 24 * time.Hour

	// GOVERNANCE.md is mentioned in the 2026-02-10 entry.
	change := time.Date(2026, 2, 12, 10, 0, 0, 0, time.UTC)
	assert.True(t, log.Covers("docs/GOVERNANCE.md", "", change, window))

	// Same file, but the change is far outside the window.
	change = time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	assert.False(t, log.Covers("docs/GOVERNANCE.md", "", change, window))

	// A file never mentioned.
	change = time.Date(2026, 2, 12, 0, 0, 0, 0, time.UTC)
	assert.False(t, log.Covers("docs/RESET_TRIGGERS.md", "", change, window))
}

func TestCoversByCommitHash(t *testing.T) {
	log := Parse(sampleLog)
	window := 7 * 24 * time.Hour
	change := time.Date(2026, 2, 11, 0, 0, 0, 0, time.UTC)

	// The entry records the short hash; a full hash sharing the prefix
	// still matches.
	full := "3f2a91c0deadbeefcafef00d12345678deadbeef"
	assert.True(t, log.Covers("docs/OTHER.md", full, change, window))
	assert.False(t, log.Covers("docs/OTHER.md", "aaaaaaaa", change, window))
}

func TestCoversWindowIsSymmetric(t *testing.T) {
	log := Parse(sampleLog)
	window := 7 * 24 * time.Hour

	// Change before the entry date still counts when within the window.
	change := time.Date(2026, 2, 5, 0, 0, 0, 0, time.UTC)
	assert.True(t, log.Covers("GOVERNANCE.md", "", change, window))
}

func TestSearchAndFilters(t *testing.T) {
	log := Parse(sampleLog)

	assert.Len(t, log.Search("drift"), 2)
	assert.Len(t, log.Search("approvals"), 1)
	assert.Empty(t, log.Search("nonexistent"))

	assert.Len(t, log.ByRule("[DW-GOV-0001]"), 1)
	assert.Empty(t, log.ByRule("[DW-GOV-0099]"))

	assert.Len(t, log.ByTag("validation"), 1)
	assert.Len(t, log.ByTag("GOVERNANCE"), 1, "tag match is case-insensitive")
}

func TestNeedingReview(t *testing.T) {
	log := Parse(sampleLog)

	// Before the review date nothing is due.
	due := log.NeedingReview(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	assert.Empty(t, due)

	// After it, the first entry is due; the second has no review date.
	due = log.NeedingReview(time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC))
	require.Len(t, due, 1)
	assert.Equal(t, 1, due[0].Number)
}
