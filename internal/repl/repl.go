// Package repl implements the interactive driftwatch shell.
package repl

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/fatih/color"

	"driftwatch/internal/daemon"
	"driftwatch/internal/decisions"
	"driftwatch/internal/events"
	"driftwatch/internal/rules"
)

// REPL is the interactive shell over a running daemon.
type REPL struct {
	daemon      *daemon.Daemon
	decisionLog string
	out         io.Writer
	rl          *readline.Instance

	commands map[string]CommandHandler

	watchSub    events.Subscription
	watchActive bool
}

// CommandHandler handles a specific command.
type CommandHandler func(args []string) error

// Config holds REPL configuration.
type Config struct {
	Daemon *daemon.Daemon
	// DecisionLog is the decision log path for the decisions command
	DecisionLog string
	// Out defaults to os.Stdout
	Out io.Writer
}

// New creates a REPL instance.
func New(cfg *Config) (*REPL, error) {
	if cfg.Daemon == nil {
		return nil, fmt.Errorf("daemon is required")
	}
	out := cfg.Out
	if out == nil {
		out = os.Stdout
	}

	r := &REPL{
		daemon:      cfg.Daemon,
		out:         out,
		decisionLog: cfg.DecisionLog,
		commands:    make(map[string]CommandHandler),
	}
	r.registerCommands()
	return r, nil
}

// Run starts the shell loop. The daemon must already be running.
func (r *REPL) Run(ctx context.Context) error {
	cyan := color.New(color.FgCyan).SprintFunc()
	rl, err := readline.NewEx(&readline.Config{
		Prompt:            cyan("driftwatch> "),
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()
	r.rl = rl

	r.printWelcome()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			if err == io.EOF {
				fmt.Fprintln(r.out, "bye")
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if err := r.processInput(line); err != nil {
			if err == io.EOF {
				return nil
			}
			red := color.New(color.FgRed).SprintFunc()
			fmt.Fprintf(r.out, "%s %v\n", red("Error:"), err)
		}
	}
}

// processInput dispatches a single line of input.
func (r *REPL) processInput(line string) error {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return nil
	}
	if handler, ok := r.commands[parts[0]]; ok {
		return handler(parts[1:])
	}
	return fmt.Errorf("unknown command %q, try 'help'", parts[0])
}

func (r *REPL) registerCommands() {
	r.commands["help"] = r.cmdHelp
	r.commands["?"] = r.cmdHelp
	r.commands["status"] = r.cmdStatus
	r.commands["events"] = r.cmdEvents
	r.commands["rules"] = r.cmdRules
	r.commands["impact"] = r.cmdImpact
	r.commands["contradictions"] = r.cmdContradictions
	r.commands["decisions"] = r.cmdDecisions
	r.commands["watch"] = r.cmdWatch
	r.commands["exit"] = r.cmdExit
	r.commands["quit"] = r.cmdExit
}

func (r *REPL) printWelcome() {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	fmt.Fprintf(r.out, "\n%s\n", cyan("driftwatch"))
	fmt.Fprintln(r.out, "governance drift monitor")
	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, "Type 'help' for available commands, 'exit' to quit")
	fmt.Fprintln(r.out)
}

func (r *REPL) cmdHelp(args []string) error {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	fmt.Fprintf(r.out, "\n%s\n\n", cyan("Available Commands:"))

	commands := []struct {
		name string
		desc string
	}{
		{"status", "Daemon and component status"},
		{"events [n] [type]", "Recent events, newest first"},
		{"rules", "Reload and summarize the rule graph"},
		{"impact <RULE-ID>", "Blast radius of changing a rule"},
		{"contradictions", "Pairwise rule contradiction scan"},
		{"decisions [query]", "Search the decision log"},
		{"watch", "Toggle live event printing"},
		{"help, ?", "Show this help message"},
		{"exit, quit", "Exit the shell"},
	}
	for _, cmd := range commands {
		fmt.Fprintf(r.out, "  %-22s %s\n", green(cmd.name), cmd.desc)
	}
	fmt.Fprintln(r.out)
	return nil
}

func (r *REPL) cmdStatus(args []string) error {
	st := r.daemon.Status()
	bold := color.New(color.Bold).SprintFunc()

	fmt.Fprintf(r.out, "%s %s\n", bold("State:"), string(st.State))
	fmt.Fprintf(r.out, "%s %d retained, %d rules loaded\n", bold("Events:"), st.EventCount, st.RuleCount)

	names := make([]string, 0, len(st.Components))
	for name := range st.Components {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		marker := color.GreenString("●")
		if !st.Components[name] {
			marker = color.RedString("●")
		}
		fmt.Fprintf(r.out, "  %s %s\n", marker, name)
	}

	if len(st.Outstanding) > 0 {
		yellow := color.New(color.FgYellow).SprintFunc()
		sort.Strings(st.Outstanding)
		fmt.Fprintf(r.out, "%s %s\n", yellow("Needs decision:"), strings.Join(st.Outstanding, ", "))
	}
	return nil
}

func (r *REPL) cmdEvents(args []string) error {
	limit := 20
	var typeFilter events.EventType
	for _, arg := range args {
		if n, err := strconv.Atoi(arg); err == nil {
			limit = n
			continue
		}
		typeFilter = events.EventType(strings.ToUpper(arg))
	}

	recent := r.daemon.Bus().Recent(limit, typeFilter)
	if len(recent) == 0 {
		fmt.Fprintln(r.out, "no events")
		return nil
	}
	for _, e := range recent {
		fmt.Fprintln(r.out, formatEvent(e))
	}
	return nil
}

func (r *REPL) cmdRules(args []string) error {
	if err := r.daemon.Engine().Refresh(); err != nil {
		return err
	}
	snap := r.daemon.Engine().Snapshot()
	fmt.Fprintf(r.out, "%d rules loaded\n", snap.Len())
	for _, rule := range snap.Rules() {
		fmt.Fprintf(r.out, "  %s %s %s:%d\n", rule.ID, rule.Keyword, rule.FilePath, rule.Line)
	}
	return nil
}

func (r *REPL) cmdImpact(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: impact <RULE-ID>")
	}
	// Snapshot keys carry the brackets; accept the ID with or without.
	id := "[" + strings.ToUpper(strings.Trim(args[0], "[]")) + "]"

	impact, ok := r.daemon.Engine().Impact(id)
	if !ok {
		return fmt.Errorf("unknown rule %s", id)
	}

	bold := color.New(color.Bold).SprintFunc()
	fmt.Fprintf(r.out, "%s %s (%s, %d affected)\n", bold("Impact of"), impact.RuleID, levelColor(impact.Level), impact.Total)
	if len(impact.Direct) > 0 {
		fmt.Fprintf(r.out, "  direct:     %s\n", strings.Join(impact.Direct, ", "))
	}
	if len(impact.Transitive) > 0 {
		fmt.Fprintf(r.out, "  transitive: %s\n", strings.Join(impact.Transitive, ", "))
	}
	if len(impact.AffectedFiles) > 0 {
		fmt.Fprintf(r.out, "  files:      %s\n", strings.Join(impact.AffectedFiles, ", "))
	}
	return nil
}

func (r *REPL) cmdContradictions(args []string) error {
	findings := r.daemon.Engine().Contradictions()
	if len(findings) == 0 {
		fmt.Fprintf(r.out, "%s no contradictions found\n", color.GreenString("✓"))
		return nil
	}
	for _, f := range findings {
		sev := color.YellowString(string(f.Severity))
		if f.Severity == rules.ContradictionHard {
			sev = color.RedString(string(f.Severity))
		}
		reason := "subjects: " + strings.Join(f.SharedStems, ", ")
		if f.Explicit {
			reason = "explicit annotation"
		}
		fmt.Fprintf(r.out, "  %s %s vs %s (%s)\n", sev, f.RuleA, f.RuleB, reason)
	}
	return nil
}

func (r *REPL) cmdDecisions(args []string) error {
	log, err := decisions.Load(r.decisionLog)
	if err != nil {
		return err
	}

	entries := log.Entries
	if len(args) > 0 {
		entries = log.Search(strings.Join(args, " "))
	}
	if len(entries) == 0 {
		fmt.Fprintln(r.out, "no decision log entries")
		return nil
	}
	for _, e := range entries {
		fmt.Fprintf(r.out, "  #%d %s %s\n", e.Number, e.Date.Format("2006-01-02"), e.Decision)
	}
	return nil
}

// cmdWatch toggles live printing of every bus event.
func (r *REPL) cmdWatch(args []string) error {
	if r.watchActive {
		r.daemon.Bus().Unsubscribe(r.watchSub)
		r.watchActive = false
		fmt.Fprintln(r.out, "live events off")
		return nil
	}

	r.watchSub = r.daemon.Bus().SubscribeAll(func(e *events.Event) {
		fmt.Fprintln(r.out, formatEvent(e))
		if r.rl != nil {
			r.rl.Refresh()
		}
	})
	r.watchActive = true
	fmt.Fprintln(r.out, "live events on")
	return nil
}

func (r *REPL) cmdExit(args []string) error {
	if r.watchActive {
		r.daemon.Bus().Unsubscribe(r.watchSub)
		r.watchActive = false
	}
	fmt.Fprintf(r.out, "%s bye\n", color.GreenString("✓"))
	return io.EOF
}

// formatEvent renders one event line with severity coloring.
func formatEvent(e *events.Event) string {
	sev := string(e.Severity)
	switch e.Severity {
	case events.SeverityWarn:
		sev = color.YellowString(sev)
	case events.SeverityError, events.SeverityCritical:
		sev = color.RedString(sev)
	}
	return fmt.Sprintf("[%s] [%s] %s: %s", e.Timestamp.Format(time.TimeOnly), sev, e.Type, e.Message)
}

// levelColor colors an impact level for terminal output.
func levelColor(level rules.ImpactLevel) string {
	switch level {
	case rules.ImpactHigh:
		return color.RedString(string(level))
	case rules.ImpactMedium:
		return color.YellowString(string(level))
	default:
		return color.GreenString(string(level))
	}
}
