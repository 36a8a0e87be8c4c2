package gitmon

import (
	"regexp"
	"strings"
)

// defaultAgentPatterns are the built-in automation indicators. Matched
// case-insensitively as substrings against commit author and message.
var defaultAgentPatterns = []string{
	"ai", "agent", "assistant", "claude", "cursor", "gpt", "copilot",
	"generated", "automated", "bot",
}

// conventionalPrefix matches conventional-commit style subjects with a
// scope, a shape automated tooling produces far more often than humans do.
var conventionalPrefix = regexp.MustCompile(`(?i)^(feat|fix|refactor|chore)\([^)]*\):`)

// AgentMatcher classifies commits as likely automation-authored.
type AgentMatcher struct {
	patterns []string
}

// NewAgentMatcher builds a matcher from configured patterns, falling back to
// the built-in set when none are given.
func NewAgentMatcher(patterns []string) *AgentMatcher {
	if len(patterns) == 0 {
		patterns = defaultAgentPatterns
	}
	lowered := make([]string, len(patterns))
	for i, p := range patterns {
		lowered[i] = strings.ToLower(p)
	}
	return &AgentMatcher{patterns: lowered}
}

// Match reports whether the commit author or message carries an automation
// indicator. Substring matches are word-bounded so "maintain" does not
// register as "ai".
func (am *AgentMatcher) Match(author, message string) bool {
	if conventionalPrefix.MatchString(message) {
		return true
	}
	for _, field := range []string{strings.ToLower(author), strings.ToLower(message)} {
		for _, pattern := range am.patterns {
			if containsToken(field, pattern) {
				return true
			}
		}
	}
	return false
}

// containsToken reports whether s contains pattern bounded by non-alphanumeric
// characters.
func containsToken(s, pattern string) bool {
	for start := 0; ; {
		idx := strings.Index(s[start:], pattern)
		if idx < 0 {
			return false
		}
		idx += start
		leftOK := idx == 0 || !isAlnum(s[idx-1])
		end := idx + len(pattern)
		rightOK := end == len(s) || !isAlnum(s[end])
		if leftOK && rightOK {
			return true
		}
		start = idx + 1
	}
}

func isAlnum(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
