// Package gitmon implements the git-activity monitor: a fixed-interval
// poller that turns staging and commit activity in the local repository into
// bus events, with automation-indicator matching for AI-agent commits.
package gitmon

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"driftwatch/internal/events"
)

// Git wraps the git CLI for the read-only queries the monitor needs.
type Git struct {
	gitPath  string
	repoPath string
}

// NewGit creates a Git instance rooted at repoPath, verifying the git binary
// is available.
func NewGit(ctx context.Context, repoPath string) (*Git, error) {
	gitPath, err := exec.LookPath("git")
	if err != nil {
		return nil, fmt.Errorf("git not found in PATH: %w", err)
	}
	cmd := exec.CommandContext(ctx, gitPath, "version")
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("git command failed: %w", err)
	}
	return &Git{gitPath: gitPath, repoPath: repoPath}, nil
}

// run executes a git subcommand in the repository and returns trimmed output.
func (g *Git) run(ctx context.Context, args ...string) (string, error) {
	full := append([]string{"-C", g.repoPath}, args...)
	out, err := exec.CommandContext(ctx, g.gitPath, full...).Output()
	if err != nil {
		return "", fmt.Errorf("git %s: %w", strings.Join(args, " "), err)
	}
	return strings.TrimSpace(string(out)), nil
}

// IsRepo reports whether repoPath is inside a git repository.
func (g *Git) IsRepo(ctx context.Context) bool {
	_, err := g.run(ctx, "rev-parse", "--git-dir")
	return err == nil
}

// StagedFiles returns the set of files currently staged in the index.
func (g *Git) StagedFiles(ctx context.Context) (map[string]bool, error) {
	out, err := g.run(ctx, "diff", "--cached", "--name-only", "--diff-filter=ACM")
	if err != nil {
		return nil, err
	}
	staged := make(map[string]bool)
	for _, line := range strings.Split(out, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			staged[line] = true
		}
	}
	return staged, nil
}

// Head returns the current HEAD commit hash, or "" in an empty repository.
func (g *Git) Head(ctx context.Context) (string, error) {
	out, err := g.run(ctx, "rev-parse", "HEAD")
	if err != nil {
		// An unborn branch has no HEAD yet; treat it as "no commit".
		if strings.Contains(err.Error(), "exit status 128") {
			return "", nil
		}
		return "", err
	}
	return out, nil
}

// CommitInfo returns metadata for a commit hash.
func (g *Git) CommitInfo(ctx context.Context, hash string) (events.GitCommitData, error) {
	out, err := g.run(ctx, "log", "-1", "--format=%H|%an|%ae|%aI|%s", hash)
	if err != nil {
		return events.GitCommitData{}, err
	}
	parts := strings.SplitN(out, "|", 5)
	if len(parts) < 5 {
		return events.GitCommitData{}, fmt.Errorf("unexpected git log output: %q", out)
	}
	return events.GitCommitData{
		Hash:    parts[0],
		Author:  parts[1],
		Email:   parts[2],
		Date:    parts[3],
		Message: parts[4],
	}, nil
}

// CommitTouch is one commit returned by LogSince.
type CommitTouch struct {
	Hash string
	Date time.Time
}

// LogSince lists commits since the given time that touched path, newest
// first. Used by the governance decision detector's start-time back-scan.
func (g *Git) LogSince(ctx context.Context, since time.Time, path string) ([]CommitTouch, error) {
	out, err := g.run(ctx, "log", "--since="+since.Format("2006-01-02"), "--format=%H|%aI", "--", path)
	if err != nil {
		return nil, err
	}
	var touches []CommitTouch
	for _, line := range strings.Split(out, "\n") {
		parts := strings.SplitN(strings.TrimSpace(line), "|", 2)
		if len(parts) != 2 {
			continue
		}
		date, err := time.Parse(time.RFC3339, parts[1])
		if err != nil {
			continue
		}
		touches = append(touches, CommitTouch{Hash: parts[0], Date: date})
	}
	return touches, nil
}
