// Package rules parses individually identified, normatively worded rules out
// of governance documents, maintains their dependency graph, and answers
// impact and contradiction queries.
package rules

import (
	"regexp"
	"strings"
)

// Lifecycle represents a rule's lifecycle state.
type Lifecycle string

const (
	// LifecycleDraft marks rules under discussion
	LifecycleDraft Lifecycle = "draft"
	// LifecycleActive marks rules currently in force
	LifecycleActive Lifecycle = "active"
	// LifecycleDeprecated marks rules slated for removal
	LifecycleDeprecated Lifecycle = "deprecated"
	// LifecycleRemoved marks rules no longer in force
	LifecycleRemoved Lifecycle = "removed"
)

// ruleIDPattern matches bracketed structured identifiers: one or more
// uppercase category segments followed by a four-digit sequence, e.g.
// [DW-GOV-SCOPE-0001] or [X-0001].
var ruleIDPattern = regexp.MustCompile(`\[([A-Z][A-Z0-9]*(?:-[A-Z][A-Z0-9]*)*-\d{4})\]`)

// normativeKeywords in longest-first match order, so "MUST NOT" wins over
// "MUST" and "SHOULD NOT" over "SHOULD".
var normativeKeywords = []string{"MUST NOT", "SHOULD NOT", "MUST", "SHOULD", "MAY"}

// Rule is one parsed governance rule. Rules are built during a scan and
// never mutated afterwards; a refresh produces a whole new generation.
type Rule struct {
	// ID is the bracketed identifier, e.g. "[DW-GOV-SCOPE-0001]"
	ID string
	// Text is the full rule line as written
	Text string
	// FilePath is the document the rule came from
	FilePath string
	// Line is the 1-based line number within the document
	Line int
	// Keyword is the normative keyword classifying rule strength
	Keyword string
	// Lifecycle is the rule's lifecycle state
	Lifecycle Lifecycle
	// Dependencies are rule IDs referenced in this rule's text
	Dependencies map[string]bool
	// Dependents are rule IDs whose text references this rule
	Dependents map[string]bool
}

// parseRuleLine returns the rule encoded on a line, or nil when the line is
// not a rule. A line is a rule when it carries a structured identifier and a
// normative keyword.
func parseRuleLine(line, filePath string, lineNum int) *Rule {
	id := ruleIDPattern.FindString(line)
	if id == "" {
		return nil
	}

	keyword := ""
	upper := strings.ToUpper(line)
	for _, kw := range normativeKeywords {
		if containsWord(upper, kw) {
			keyword = kw
			break
		}
	}
	if keyword == "" {
		return nil
	}

	lifecycle := LifecycleActive
	if strings.Contains(upper, "(DEPRECATED)") || strings.Contains(upper, "[DEPRECATED]") {
		lifecycle = LifecycleDeprecated
	} else if strings.Contains(upper, "(DRAFT)") || strings.Contains(upper, "[DRAFT]") {
		lifecycle = LifecycleDraft
	}

	return &Rule{
		ID:           id,
		Text:         strings.TrimSpace(line),
		FilePath:     filePath,
		Line:         lineNum,
		Keyword:      keyword,
		Lifecycle:    lifecycle,
		Dependencies: make(map[string]bool),
		Dependents:   make(map[string]bool),
	}
}

// containsWord reports whether text contains kw bounded by non-letter
// characters, so that "MUSTARD" does not register a MUST.
func containsWord(text, kw string) bool {
	for start := 0; ; {
		idx := strings.Index(text[start:], kw)
		if idx < 0 {
			return false
		}
		idx += start
		leftOK := idx == 0 || !isLetter(text[idx-1])
		end := idx + len(kw)
		rightOK := end == len(text) || !isLetter(text[end])
		if leftOK && rightOK {
			return true
		}
		start = idx + 1
	}
}

func isLetter(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}

// referencedIDs returns every rule identifier appearing in the rule text,
// excluding the rule's own ID.
func (r *Rule) referencedIDs() []string {
	var refs []string
	for _, match := range ruleIDPattern.FindAllString(r.Text, -1) {
		if match != r.ID {
			refs = append(refs, match)
		}
	}
	return refs
}
