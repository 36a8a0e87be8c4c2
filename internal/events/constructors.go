package events

import (
	"time"

	"github.com/google/uuid"
)

// New creates an event with a fresh ID and the current timestamp.
func New(eventType EventType, source string, severity EventSeverity, message string, data map[string]interface{}) *Event {
	if data == nil {
		data = make(map[string]interface{})
	}
	return &Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now(),
		Source:    source,
		Severity:  severity,
		Message:   message,
		Data:      data,
	}
}

// NewFileChanged creates a FILE_CHANGED or GOVERNANCE_FILE_CHANGED event
// depending on whether the path belongs to the governance document set.
func NewFileChanged(source, path, operation string, governance bool) *Event {
	data := map[string]interface{}{
		"path":      path,
		"operation": operation,
	}
	if governance {
		return New(EventTypeGovernanceFileChanged, source, SeverityWarn,
			"Governance file "+operation+": "+path, data)
	}
	return New(EventTypeFileChanged, source, SeverityInfo,
		"File "+operation+": "+path, data)
}

// NewGitCommit creates a GIT_COMMIT event from commit metadata.
func NewGitCommit(source string, commit GitCommitData) *Event {
	subject := commit.Message
	if len(subject) > 50 {
		subject = subject[:50]
	}
	return New(EventTypeGitCommit, source, SeverityInfo, "Commit: "+subject, map[string]interface{}{
		"hash":    commit.Hash,
		"author":  commit.Author,
		"email":   commit.Email,
		"date":    commit.Date,
		"message": commit.Message,
	})
}

// NewValidationResult creates a VALIDATION_PASSED or VALIDATION_FAILED event
// from a validation run result.
func NewValidationResult(source string, run ValidationRunData) *Event {
	data := map[string]interface{}{
		"script":    run.Script,
		"exit_code": run.ExitCode,
		"duration":  run.Duration.Seconds(),
	}
	if run.ExitCode == 0 {
		return New(EventTypeValidationPassed, source, SeverityInfo,
			"Validation passed: "+run.Script, data)
	}
	if run.Output != "" {
		data["output"] = run.Output
	}
	return New(EventTypeValidationFailed, source, SeverityError,
		"Validation failed: "+run.Script, data)
}

// DataString returns a string field from the event data map, or "" when the
// field is absent or not a string.
func (e *Event) DataString(key string) string {
	if e.Data == nil {
		return ""
	}
	s, _ := e.Data[key].(string)
	return s
}
