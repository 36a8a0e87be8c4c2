package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"driftwatch/internal/events"
)

func openTestArchive(t *testing.T) *Archive {
	t.Helper()
	a, err := Open(filepath.Join(t.TempDir(), ".driftwatch", "events.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestArchiveRoundTrip(t *testing.T) {
	a := openTestArchive(t)

	original := events.New(events.EventTypeGitCommit, "git_monitor", events.SeverityInfo,
		"Commit: fix typo", map[string]interface{}{"hash": "abc1234"})
	require.NoError(t, a.Record(original))

	got, err := a.Recent(10, "")
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.Equal(t, original.ID, got[0].ID)
	assert.Equal(t, original.Type, got[0].Type)
	assert.Equal(t, original.Severity, got[0].Severity)
	assert.Equal(t, original.Message, got[0].Message)
	assert.Equal(t, "abc1234", got[0].DataString("hash"))
	assert.True(t, original.Timestamp.Equal(got[0].Timestamp))
}

func TestArchiveRecordIsIdempotentPerID(t *testing.T) {
	a := openTestArchive(t)

	e := events.New(events.EventTypeFileChanged, "file_watcher", events.SeverityInfo, "change", nil)
	require.NoError(t, a.Record(e))
	require.NoError(t, a.Record(e))

	got, err := a.Recent(0, "")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestArchiveRecentOrderAndFilter(t *testing.T) {
	a := openTestArchive(t)

	base := time.Now().Add(-time.Minute)
	for i := 0; i < 5; i++ {
		e := events.New(events.EventTypeFileChanged, "file_watcher", events.SeverityInfo, "change", nil)
		e.Timestamp = base.Add(time.Duration(i) * time.Second)
		require.NoError(t, a.Record(e))
	}
	commit := events.New(events.EventTypeGitCommit, "git_monitor", events.SeverityInfo, "commit", nil)
	commit.Timestamp = base.Add(10 * time.Second)
	require.NoError(t, a.Record(commit))

	recent, err := a.Recent(3, "")
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, events.EventTypeGitCommit, recent[0].Type)

	commits, err := a.Recent(0, events.EventTypeGitCommit)
	require.NoError(t, err)
	require.Len(t, commits, 1)
}

func TestArchiveSince(t *testing.T) {
	a := openTestArchive(t)

	old := events.New(events.EventTypeFileChanged, "file_watcher", events.SeverityInfo, "old", nil)
	old.Timestamp = time.Now().Add(-2 * time.Hour)
	require.NoError(t, a.Record(old))

	recent := events.New(events.EventTypeFileChanged, "file_watcher", events.SeverityInfo, "recent", nil)
	require.NoError(t, a.Record(recent))

	got, err := a.Since(time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "recent", got[0].Message)
}

func TestArchiveCountByType(t *testing.T) {
	a := openTestArchive(t)

	for i := 0; i < 3; i++ {
		require.NoError(t, a.Record(events.New(events.EventTypeFileChanged, "file_watcher", events.SeverityInfo, "c", nil)))
	}
	require.NoError(t, a.Record(events.New(events.EventTypeGitCommit, "git_monitor", events.SeverityInfo, "c", nil)))

	counts, err := a.CountByType()
	require.NoError(t, err)
	assert.Equal(t, 3, counts[events.EventTypeFileChanged])
	assert.Equal(t, 1, counts[events.EventTypeGitCommit])
}

func TestArchivePrune(t *testing.T) {
	a := openTestArchive(t)

	old := events.New(events.EventTypeFileChanged, "file_watcher", events.SeverityInfo, "old", nil)
	old.Timestamp = time.Now().AddDate(0, 0, -60)
	require.NoError(t, a.Record(old))
	require.NoError(t, a.Record(events.New(events.EventTypeFileChanged, "file_watcher", events.SeverityInfo, "new", nil)))

	deleted, err := a.Prune(time.Now().AddDate(0, 0, -30))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	remaining, err := a.Recent(0, "")
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "new", remaining[0].Message)
}

func TestArchiveAttachPersistsBusEvents(t *testing.T) {
	a := openTestArchive(t)
	bus := events.NewBus(100)
	sub := a.Attach(bus)
	defer bus.Unsubscribe(sub)

	bus.Publish(events.NewFileChanged("file_watcher", "docs/GOVERNANCE.md", "modified", true))

	got, err := a.Recent(0, events.EventTypeGovernanceFileChanged)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "docs/GOVERNANCE.md", got[0].DataString("path"))
}
