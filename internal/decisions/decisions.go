// Package decisions parses the project decision log: an append-oriented
// markdown document recording intent-level decisions. The log is reparsed
// fresh on every query; entry numbering is positional, so unrelated edits
// elsewhere in the document never renumber existing entries relative to each
// other.
package decisions

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"
)

// Entry is one decision log entry.
type Entry struct {
	// Number is the 1-based position of the entry in the document
	Number int
	// Date is the decision date
	Date time.Time
	// Decision is what was decided
	Decision string
	// Trigger is what prompted the decision
	Trigger string
	// Rationale is why the decision was made
	Rationale string
	// Tradeoffs are the considered alternatives and costs
	Tradeoffs string
	// ExpectedImpact is the anticipated effect
	ExpectedImpact string
	// ReviewDate is when the decision should be revisited (zero if N/A)
	ReviewDate time.Time
	// ActualImpact is filled in after review (empty until then)
	ActualImpact string
	// RelatedRules are rule identifiers named by the entry
	RelatedRules []string
	// Tags are free-form labels
	Tags []string
	// Raw is the full entry block as written, used for mention matching
	Raw string
}

// Log is one parse of the decision log document.
type Log struct {
	// Path is where the log was read from (empty for in-memory parses)
	Path    string
	Entries []Entry
}

var (
	entryHeaderPattern = regexp.MustCompile(`(?m)^#{2,4} (\d{4}-\d{2}-\d{2}):`)
	ruleIDPattern      = regexp.MustCompile(`\[[A-Z][A-Z0-9]*(?:-[A-Z][A-Z0-9]*)*-\d{4}\]`)
)

// Load reads and parses the decision log at path. A missing file is not an
// error: it parses as an empty log.
func Load(path string) (*Log, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Log{Path: path}, nil
		}
		return nil, fmt.Errorf("reading decision log: %w", err)
	}
	log := Parse(string(data))
	log.Path = path
	return log, nil
}

// Parse extracts entries from decision log text. Entries are blocks starting
// at a dated heading and running to the next dated heading. Blocks whose
// date fails to parse are skipped; they never abort the scan.
func Parse(text string) *Log {
	log := &Log{}
	matches := entryHeaderPattern.FindAllStringSubmatchIndex(text, -1)

	for i, m := range matches {
		start := m[0]
		end := len(text)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		block := text[start:end]
		dateStr := text[m[2]:m[3]]

		date, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			continue
		}

		entry := Entry{
			Number:         len(log.Entries) + 1,
			Date:           date,
			Decision:       extractField(block, "Decision:"),
			Trigger:        extractField(block, "Trigger:"),
			Rationale:      extractField(block, "Rationale:"),
			Tradeoffs:      extractField(block, "Tradeoffs:"),
			ExpectedImpact: extractField(block, "Expected Impact:"),
			ActualImpact:   extractField(block, "Actual Impact:"),
			Raw:            block,
		}

		if review := extractField(block, "Review Date:"); review != "" && review != "N/A" {
			if d, err := time.Parse("2006-01-02", review); err == nil {
				entry.ReviewDate = d
			}
		}
		if related := extractField(block, "Related Rules:"); related != "" {
			entry.RelatedRules = ruleIDPattern.FindAllString(related, -1)
		}
		if tags := extractField(block, "Tags:"); tags != "" {
			for _, tag := range strings.Split(tags, ",") {
				if t := strings.TrimSpace(tag); t != "" {
					entry.Tags = append(entry.Tags, t)
				}
			}
		}

		log.Entries = append(log.Entries, entry)
	}
	return log
}

// extractField returns the value of a labeled line like "Decision: ..." in a
// block, or "".
func extractField(block, label string) string {
	for _, line := range strings.Split(block, "\n") {
		trimmed := strings.TrimSpace(strings.TrimLeft(line, "-* "))
		if strings.HasPrefix(trimmed, label) {
			return strings.TrimSpace(trimmed[len(label):])
		}
	}
	return ""
}

// Covers reports whether some entry mentions the file's base name or the
// commit hash (short or full) and is dated within the window of changeTime.
// The window is a correlation heuristic, deliberately tunable by the caller.
func (l *Log) Covers(fileName, commitHash string, changeTime time.Time, window time.Duration) bool {
	return l.CoveringEntry(fileName, commitHash, changeTime, window) != nil
}

// CoveringEntry returns the first entry satisfying Covers, or nil.
func (l *Log) CoveringEntry(fileName, commitHash string, changeTime time.Time, window time.Duration) *Entry {
	base := strings.ToLower(baseName(fileName))
	var short string
	if len(commitHash) >= 7 {
		short = commitHash[:7]
	}

	for i := range l.Entries {
		entry := &l.Entries[i]

		mentioned := false
		raw := strings.ToLower(entry.Raw)
		if base != "" && strings.Contains(raw, base) {
			mentioned = true
		}
		if commitHash != "" && (strings.Contains(entry.Raw, commitHash) || (short != "" && strings.Contains(entry.Raw, short))) {
			mentioned = true
		}
		if !mentioned {
			continue
		}

		diff := changeTime.Sub(entry.Date)
		if diff < 0 {
			diff = -diff
		}
		if diff <= window {
			return entry
		}
	}
	return nil
}

// Search returns entries whose textual fields contain the query,
// case-insensitively.
func (l *Log) Search(query string) []Entry {
	query = strings.ToLower(query)
	var out []Entry
	for _, e := range l.Entries {
		haystack := strings.ToLower(strings.Join([]string{
			e.Decision, e.Trigger, e.Rationale, e.Tradeoffs, e.ExpectedImpact,
		}, " "))
		if strings.Contains(haystack, query) {
			out = append(out, e)
		}
	}
	return out
}

// ByRule returns entries that name the given rule identifier.
func (l *Log) ByRule(ruleID string) []Entry {
	var out []Entry
	for _, e := range l.Entries {
		for _, id := range e.RelatedRules {
			if id == ruleID {
				out = append(out, e)
				break
			}
		}
	}
	return out
}

// ByTag returns entries carrying the given tag.
func (l *Log) ByTag(tag string) []Entry {
	var out []Entry
	for _, e := range l.Entries {
		for _, t := range e.Tags {
			if strings.EqualFold(t, tag) {
				out = append(out, e)
				break
			}
		}
	}
	return out
}

// NeedingReview returns entries whose review date has arrived and whose
// actual impact has not been recorded.
func (l *Log) NeedingReview(now time.Time) []Entry {
	var out []Entry
	for _, e := range l.Entries {
		if !e.ReviewDate.IsZero() && !e.ReviewDate.After(now) && e.ActualImpact == "" {
			out = append(out, e)
		}
	}
	return out
}

func baseName(path string) string {
	if idx := strings.LastIndexAny(path, "/\\"); idx >= 0 {
		return path[idx+1:]
	}
	return path
}
