package rules

import (
	"regexp"
	"strings"
)

// ContradictionSeverity distinguishes hard MUST conflicts from softer
// SHOULD-level tension.
type ContradictionSeverity string

const (
	// ContradictionHard is MUST vs MUST NOT on a matching subject
	ContradictionHard ContradictionSeverity = "hard"
	// ContradictionSoft is SHOULD vs SHOULD NOT on a matching subject
	ContradictionSoft ContradictionSeverity = "soft"
)

// Contradiction is a single finding between two rules.
type Contradiction struct {
	RuleA    string
	RuleB    string
	Severity ContradictionSeverity
	// Explicit marks findings produced by an in-text "contradicts [ID]"
	// annotation rather than subject matching
	Explicit bool
	// SharedStems are the normalized subject tokens common to both rules
	SharedStems []string
}

var contradictsPattern = regexp.MustCompile(`(?i)contradicts\s+(\[[A-Z][A-Z0-9]*(?:-[A-Z][A-Z0-9]*)*-\d{4}\])`)

// stopWords are dropped during subject normalization. The list is small and
// deterministic on purpose: matching stays auditable, not semantic.
var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "this": true, "that": true,
	"all": true, "any": true, "and": true, "or": true, "of": true,
	"to": true, "in": true, "on": true, "for": true, "with": true,
	"be": true, "is": true, "are": true, "it": true, "its": true,
	"by": true, "at": true, "as": true, "when": true, "system": true,
}

// Contradictions checks every rule pair in the current snapshot.
func (e *Engine) Contradictions() []Contradiction {
	return e.Snapshot().Contradictions()
}

// Contradictions returns all findings for this snapshot. Two rules are a
// hard contradiction when their normalized subjects match and their keywords
// are MUST vs MUST NOT; SHOULD vs SHOULD NOT is reported as soft. An
// explicit "contradicts [ID]" annotation always produces a finding.
func (s *Snapshot) Contradictions() []Contradiction {
	var findings []Contradiction
	seen := make(map[string]bool)

	record := func(f Contradiction) {
		key := f.RuleA + "|" + f.RuleB
		if f.RuleA > f.RuleB {
			key = f.RuleB + "|" + f.RuleA
		}
		if seen[key] {
			return
		}
		seen[key] = true
		findings = append(findings, f)
	}

	// Explicit annotations first: they hold regardless of similarity.
	for _, id := range s.order {
		rule := s.rules[id]
		for _, m := range contradictsPattern.FindAllStringSubmatch(rule.Text, -1) {
			target := m[1]
			if target == id {
				continue
			}
			sev := ContradictionSoft
			if rule.Keyword == "MUST" || rule.Keyword == "MUST NOT" {
				sev = ContradictionHard
			}
			record(Contradiction{RuleA: id, RuleB: target, Severity: sev, Explicit: true})
		}
	}

	subjects := make(map[string][]string, len(s.order))
	for _, id := range s.order {
		subjects[id] = s.rules[id].subjectStems()
	}

	for i, idA := range s.order {
		for _, idB := range s.order[i+1:] {
			a, b := s.rules[idA], s.rules[idB]
			sev, conflicting := keywordConflict(a.Keyword, b.Keyword)
			if !conflicting {
				continue
			}
			shared, match := subjectsMatch(subjects[idA], subjects[idB])
			if !match {
				continue
			}
			record(Contradiction{
				RuleA:       idA,
				RuleB:       idB,
				Severity:    sev,
				SharedStems: shared,
			})
		}
	}
	return findings
}

// keywordConflict reports whether two normative keywords oppose each other.
func keywordConflict(a, b string) (ContradictionSeverity, bool) {
	switch {
	case a == "MUST" && b == "MUST NOT", a == "MUST NOT" && b == "MUST":
		return ContradictionHard, true
	case a == "SHOULD" && b == "SHOULD NOT", a == "SHOULD NOT" && b == "SHOULD":
		return ContradictionSoft, true
	}
	return "", false
}

// subjectsMatch applies the overlap test: matched when the shared stem count
// is at least two, or the overlap ratio against the smaller subject is at
// least 40%.
func subjectsMatch(a, b []string) ([]string, bool) {
	if len(a) == 0 || len(b) == 0 {
		return nil, false
	}
	setB := make(map[string]bool, len(b))
	for _, t := range b {
		setB[t] = true
	}
	var shared []string
	for _, t := range a {
		if setB[t] {
			shared = append(shared, t)
		}
	}
	smaller := len(a)
	if len(b) < smaller {
		smaller = len(b)
	}
	if len(shared) >= 2 {
		return shared, true
	}
	if float64(len(shared))/float64(smaller) >= 0.4 {
		return shared, true
	}
	return shared, false
}

// subjectStems normalizes the rule text to its subject: identifier stripped,
// normative keyword stripped, punctuation dropped, stop-words removed, and a
// simple suffix stemmer applied to the remaining tokens.
func (r *Rule) subjectStems() []string {
	text := ruleIDPattern.ReplaceAllString(r.Text, " ")
	upper := strings.ToUpper(text)
	for _, kw := range normativeKeywords {
		for {
			idx := strings.Index(upper, kw)
			if idx < 0 {
				break
			}
			text = text[:idx] + " " + text[idx+len(kw):]
			upper = upper[:idx] + " " + upper[idx+len(kw):]
		}
	}

	var tokens []string
	seen := make(map[string]bool)
	for _, field := range strings.Fields(strings.ToLower(text)) {
		token := strings.Trim(field, ".,;:!?\"'()[]{}")
		if token == "" || stopWords[token] {
			continue
		}
		token = stem(token)
		if token == "" || seen[token] {
			continue
		}
		seen[token] = true
		tokens = append(tokens, token)
	}
	return tokens
}

// stem strips a few common suffixes. Deliberately crude: enough to make
// "logs"/"log" and "persisting"/"persist" agree without semantic machinery.
func stem(token string) string {
	switch {
	case len(token) > 5 && strings.HasSuffix(token, "ing"):
		return token[:len(token)-3]
	case len(token) > 4 && strings.HasSuffix(token, "ed"):
		return token[:len(token)-2]
	case len(token) > 4 && strings.HasSuffix(token, "es"):
		return token[:len(token)-2]
	case len(token) > 3 && strings.HasSuffix(token, "s"):
		return token[:len(token)-1]
	}
	return token
}
