package rules

import "sort"

// ImpactLevel classifies how widely a rule change propagates.
type ImpactLevel string

const (
	// ImpactLow means no other rule depends on the changed rule
	ImpactLow ImpactLevel = "low"
	// ImpactMedium means a small set of rules is affected
	ImpactMedium ImpactLevel = "medium"
	// ImpactHigh means the change ripples through a large part of the graph
	ImpactHigh ImpactLevel = "high"
)

// Impact is the result of an impact query for one rule.
type Impact struct {
	// RuleID is the queried rule
	RuleID string
	// Direct are the rules depending on it directly
	Direct []string
	// Transitive are the rules reachable through further dependents,
	// excluding the direct set
	Transitive []string
	// AffectedFiles are the documents containing any affected rule
	AffectedFiles []string
	// Level is the thresholded classification
	Level ImpactLevel
	// Total is len(Direct) + len(Transitive)
	Total int
}

// Impact computes the full transitive-dependent set of a rule by
// breadth-first traversal over dependents edges. A visited set guarantees
// termination and deduplication even when the graph contains cycles.
// Returns false when the rule does not exist in the current snapshot.
func (e *Engine) Impact(id string) (*Impact, bool) {
	return e.Snapshot().Impact(id, e.thresholds)
}

// Impact answers the impact query against this snapshot.
func (s *Snapshot) Impact(id string, thresholds Thresholds) (*Impact, bool) {
	rule, ok := s.rules[id]
	if !ok {
		return nil, false
	}

	direct := sortedKeys(rule.Dependents)

	visited := map[string]bool{id: true}
	for _, d := range direct {
		visited[d] = true
	}

	var transitive []string
	queue := append([]string(nil), direct...)
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		curRule, ok := s.rules[cur]
		if !ok {
			continue
		}
		for dep := range curRule.Dependents {
			if visited[dep] {
				continue
			}
			visited[dep] = true
			transitive = append(transitive, dep)
			queue = append(queue, dep)
		}
	}
	sort.Strings(transitive)

	files := map[string]bool{rule.FilePath: true}
	for _, affected := range append(append([]string(nil), direct...), transitive...) {
		if r, ok := s.rules[affected]; ok {
			files[r.FilePath] = true
		}
	}

	total := len(direct) + len(transitive)
	level := ImpactLow
	switch {
	case total >= thresholds.High:
		level = ImpactHigh
	case total >= thresholds.Medium:
		level = ImpactMedium
	}

	return &Impact{
		RuleID:        id,
		Direct:        direct,
		Transitive:    transitive,
		AffectedFiles: sortedKeys(files),
		Level:         level,
		Total:         total,
	}, true
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
