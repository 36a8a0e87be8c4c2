package rules

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync/atomic"
)

// DuplicateRuleError reports rule identifiers defined more than once across
// the scanned documents. Duplicates indicate a correctness problem in the
// governed documents and are never silently resolved.
type DuplicateRuleError struct {
	// IDs maps each duplicated identifier to every file:line defining it
	IDs map[string][]string
}

func (e *DuplicateRuleError) Error() string {
	ids := make([]string, 0, len(e.IDs))
	for id := range e.IDs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	var b strings.Builder
	b.WriteString("duplicate rule identifiers: ")
	for i, id := range ids {
		if i > 0 {
			b.WriteString("; ")
		}
		fmt.Fprintf(&b, "%s (%s)", id, strings.Join(e.IDs[id], ", "))
	}
	return b.String()
}

// Snapshot is one immutable generation of parsed rules. Concurrent readers
// always see a complete generation; Engine.Refresh swaps in a new one
// atomically.
type Snapshot struct {
	rules map[string]*Rule
	order []string // IDs in first-appearance order
}

// Thresholds classifies impact query results. Counts below Medium are low
// impact, counts below High are medium, everything else is high.
type Thresholds struct {
	Medium int
	High   int
}

// DefaultThresholds mirrors the documented defaults: any dependent at all is
// at least medium impact, five or more is high.
func DefaultThresholds() Thresholds {
	return Thresholds{Medium: 1, High: 5}
}

// Engine owns the current rule snapshot and the impact thresholds.
type Engine struct {
	files      []string
	thresholds Thresholds
	current    atomic.Pointer[Snapshot]
}

// NewEngine creates an engine scanning the given documents. The engine holds
// an empty snapshot until the first Refresh.
func NewEngine(files []string, thresholds Thresholds) *Engine {
	if thresholds.Medium <= 0 {
		thresholds = DefaultThresholds()
	}
	e := &Engine{files: files, thresholds: thresholds}
	e.current.Store(&Snapshot{rules: make(map[string]*Rule)})
	return e
}

// Refresh rescans every document and atomically swaps in the new generation.
// On error (unreadable file, duplicate identifiers) the previous generation
// stays in place.
func (e *Engine) Refresh() error {
	snap, err := ParseFiles(e.files)
	if err != nil {
		return err
	}
	e.current.Store(snap)
	return nil
}

// Snapshot returns the current rule generation.
func (e *Engine) Snapshot() *Snapshot {
	return e.current.Load()
}

// ParseFiles scans documents line by line and builds a snapshot. Files that
// do not exist are skipped; unreadable files are an error. Duplicate rule
// identifiers fail the whole scan with a DuplicateRuleError listing every
// duplicate.
func ParseFiles(paths []string) (*Snapshot, error) {
	snap := &Snapshot{rules: make(map[string]*Rule)}
	locations := make(map[string][]string)

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		for i, line := range strings.Split(string(data), "\n") {
			rule := parseRuleLine(line, path, i+1)
			if rule == nil {
				continue
			}
			locations[rule.ID] = append(locations[rule.ID], fmt.Sprintf("%s:%d", rule.FilePath, rule.Line))
			if _, exists := snap.rules[rule.ID]; exists {
				continue // collected for the duplicate report below
			}
			snap.rules[rule.ID] = rule
			snap.order = append(snap.order, rule.ID)
		}
	}

	dups := make(map[string][]string)
	for id, locs := range locations {
		if len(locs) > 1 {
			dups[id] = locs
		}
	}
	if len(dups) > 0 {
		return nil, &DuplicateRuleError{IDs: dups}
	}

	snap.buildGraph()
	return snap, nil
}

// ParseText scans a single in-memory document. Used by tests and callers
// holding unsaved content.
func ParseText(text, name string) (*Snapshot, error) {
	snap := &Snapshot{rules: make(map[string]*Rule)}
	dups := make(map[string][]string)

	for i, line := range strings.Split(text, "\n") {
		rule := parseRuleLine(line, name, i+1)
		if rule == nil {
			continue
		}
		if prev, exists := snap.rules[rule.ID]; exists {
			dups[rule.ID] = append(dups[rule.ID],
				fmt.Sprintf("%s:%d", prev.FilePath, prev.Line),
				fmt.Sprintf("%s:%d", rule.FilePath, rule.Line))
			continue
		}
		snap.rules[rule.ID] = rule
		snap.order = append(snap.order, rule.ID)
	}
	if len(dups) > 0 {
		return nil, &DuplicateRuleError{IDs: dups}
	}

	snap.buildGraph()
	return snap, nil
}

// buildGraph wires dependency edges from in-text rule references and keeps
// the dependents relation as the exact inverse.
func (s *Snapshot) buildGraph() {
	for _, id := range s.order {
		rule := s.rules[id]
		for _, ref := range rule.referencedIDs() {
			target, ok := s.rules[ref]
			if !ok {
				continue
			}
			rule.Dependencies[ref] = true
			target.Dependents[id] = true
		}
	}
}

// Rule returns a rule by identifier.
func (s *Snapshot) Rule(id string) (*Rule, bool) {
	r, ok := s.rules[id]
	return r, ok
}

// Rules returns every rule in first-appearance order.
func (s *Snapshot) Rules() []*Rule {
	out := make([]*Rule, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.rules[id])
	}
	return out
}

// Len returns the number of rules in the snapshot.
func (s *Snapshot) Len() int {
	return len(s.rules)
}
