package events

import (
	"fmt"
	"time"
)

// EventType represents the type of event observed by a monitor.
type EventType string

const (
	// EventTypeFileChanged indicates a watched, non-governance file was created or modified
	EventTypeFileChanged EventType = "FILE_CHANGED"
	// EventTypeGovernanceFileChanged indicates a governance document was created or modified
	EventTypeGovernanceFileChanged EventType = "GOVERNANCE_FILE_CHANGED"
	// EventTypeGitCommit indicates HEAD advanced to a new commit
	EventTypeGitCommit EventType = "GIT_COMMIT"
	// EventTypeGitStage indicates a file was newly staged in the index
	EventTypeGitStage EventType = "GIT_STAGE"
	// EventTypeValidationRun indicates a validation script was executed
	EventTypeValidationRun EventType = "VALIDATION_RUN"
	// EventTypeValidationPassed indicates a validation script exited cleanly
	EventTypeValidationPassed EventType = "VALIDATION_PASSED"
	// EventTypeValidationFailed indicates a validation script exited non-zero
	EventTypeValidationFailed EventType = "VALIDATION_FAILED"
	// EventTypeGovernanceDecisionNeeded indicates a governance change lacks a decision log entry
	EventTypeGovernanceDecisionNeeded EventType = "GOVERNANCE_DECISION_NEEDED"
	// EventTypeAIAgentAction indicates a commit matched automation-indicator patterns
	EventTypeAIAgentAction EventType = "AI_AGENT_ACTION"
	// EventTypeDecisionLogCreated indicates the decision log gained a new entry
	EventTypeDecisionLogCreated EventType = "DECISION_LOG_CREATED"
	// EventTypeDaemonStarted indicates the daemon or one of its components started
	EventTypeDaemonStarted EventType = "DAEMON_STARTED"
	// EventTypeDaemonStopped indicates the daemon stopped
	EventTypeDaemonStopped EventType = "DAEMON_STOPPED"
)

// EventSeverity represents the severity level of an event.
type EventSeverity string

const (
	// SeverityInfo indicates informational events
	SeverityInfo EventSeverity = "INFO"
	// SeverityWarn indicates potentially problematic events
	SeverityWarn EventSeverity = "WARN"
	// SeverityError indicates error events
	SeverityError EventSeverity = "ERROR"
	// SeverityCritical indicates events requiring immediate attention
	SeverityCritical EventSeverity = "CRITICAL"
)

// Event is a single observation published on the bus. Events are immutable
// after publication: producers build one, publish it, and never touch it again.
type Event struct {
	// ID is the unique identifier for this event
	ID string `json:"id"`
	// Type is the type of event
	Type EventType `json:"type"`
	// Timestamp is when the event was detected
	Timestamp time.Time `json:"timestamp"`
	// Source is the component that published the event (e.g. "git_monitor")
	Source string `json:"source"`
	// Severity is the severity level of this event
	Severity EventSeverity `json:"severity"`
	// Message is a human-readable description of the event
	Message string `json:"message"`
	// Data contains structured, type-specific data (must be JSON-serializable)
	Data map[string]interface{} `json:"data"`
}

// String renders the event the way the activity feed displays it.
func (e *Event) String() string {
	msg := e.Message
	if msg == "" {
		msg = "no message"
	}
	return fmt.Sprintf("[%s] [%s] %s: %s", e.Timestamp.Format("15:04:05"), e.Severity, e.Type, msg)
}

// FileChangedData contains structured data for file change events.
type FileChangedData struct {
	// Path is the path to the file that changed
	Path string `json:"path"`
	// Operation is the kind of change: "created" or "modified"
	Operation string `json:"operation"`
}

// GitCommitData contains structured data for commit events.
type GitCommitData struct {
	// Hash is the full commit hash
	Hash string `json:"hash"`
	// Author is the commit author name
	Author string `json:"author"`
	// Email is the commit author email
	Email string `json:"email"`
	// Date is the author date as reported by git
	Date string `json:"date"`
	// Message is the commit subject line
	Message string `json:"message"`
}

// ValidationRunData contains structured data for validation run events.
type ValidationRunData struct {
	// Script is the name of the validation script
	Script string `json:"script"`
	// ExitCode is the exit code from the script
	ExitCode int `json:"exit_code"`
	// Output is the (possibly truncated) script output
	Output string `json:"output,omitempty"`
	// Duration is how long the script ran
	Duration time.Duration `json:"duration"`
}
