// Package validation implements the validation-run monitor: it records
// validation script results as bus events and can execute the configured
// scripts itself.
package validation

import (
	"bytes"
	"context"
	"os/exec"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"driftwatch/internal/config"
	"driftwatch/internal/events"
)

const sourceName = "validation_monitor"

// maxOutputBytes bounds how much script output is carried in an event.
const maxOutputBytes = 500

// Monitor records validation runs onto the bus.
type Monitor struct {
	bus *events.Bus
	cfg config.ValidationConfig

	mu      sync.Mutex
	running bool
}

// New creates a validation monitor.
func New(bus *events.Bus, cfg config.ValidationConfig) *Monitor {
	return &Monitor{bus: bus, cfg: cfg}
}

// Start marks the monitor running and announces it. The monitor has no loop
// of its own; it is fed by Record and Run.
func (m *Monitor) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return nil
	}
	m.running = true
	m.bus.Publish(events.New(events.EventTypeDaemonStarted, sourceName, events.SeverityInfo,
		"Validation monitor started",
		map[string]interface{}{"component": sourceName}))
	return nil
}

// Stop marks the monitor stopped. Idempotent.
func (m *Monitor) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.running = false
	return nil
}

// Running reports whether the monitor is active.
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Record publishes the outcome of one validation run: VALIDATION_PASSED on
// exit 0, VALIDATION_FAILED otherwise, with output truncated.
func (m *Monitor) Record(script string, exitCode int, output string, duration time.Duration) {
	if len(output) > maxOutputBytes {
		output = output[:maxOutputBytes]
	}
	m.bus.Publish(events.NewValidationResult(sourceName, events.ValidationRunData{
		Script:   script,
		ExitCode: exitCode,
		Output:   output,
		Duration: duration,
	}))
}

// Run executes every configured validation script with bounded concurrency
// and records each result. The returned error is only for context
// cancellation; script failures are events, not errors.
func (m *Monitor) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(m.cfg.Concurrency)

	for _, script := range m.cfg.Scripts {
		script := script
		g.Go(func() error {
			m.runOne(ctx, script)
			return ctx.Err()
		})
	}
	return g.Wait()
}

// runOne executes a single script through the shell and records its result.
func (m *Monitor) runOne(ctx context.Context, script string) {
	start := time.Now()

	cmd := exec.CommandContext(ctx, "sh", "-c", script)
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	err := cmd.Run()
	exitCode := 0
	if err != nil {
		exitCode = 1
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		}
	}
	m.Record(script, exitCode, buf.String(), time.Since(start))
}
