package gitmon

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAgentMatcher(t *testing.T) {
	m := NewAgentMatcher(nil)

	tests := []struct {
		name    string
		author  string
		message string
		want    bool
	}{
		{"claude author", "Claude", "Update parser", true},
		{"bot author", "dependabot", "Bump deps", false}, // "dependabot" is not the bare token "bot"
		{"bare bot token", "release bot", "cut release", true},
		{"agent in message", "Jordan Smith", "Apply agent suggested fix", true},
		{"generated keyword", "Jordan Smith", "Regenerate: generated client code", true},
		{"conventional commit with scope", "Jordan Smith", "feat(rules): add impact query", true},
		{"conventional commit no scope", "Jordan Smith", "feat: add impact query", false},
		{"plain human commit", "Jordan Smith", "Fix off-by-one in parser", false},
		{"ai not matched inside words", "Alain Maintainer", "maintain chain of custody", false},
		{"case insensitive", "jordan", "GENERATED by tooling", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, m.Match(tt.author, tt.message))
		})
	}
}

func TestAgentMatcherCustomPatterns(t *testing.T) {
	m := NewAgentMatcher([]string{"roomba"})

	assert.True(t, m.Match("roomba", "sweep the floor"))
	assert.False(t, m.Match("Claude", "Update parser"), "custom patterns replace the defaults")
	assert.True(t, m.Match("Jordan", "fix(core): x"), "conventional prefix always applies")
}
