package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/goclaw/holomem/pkg/memory"
)

const (
	defaultTopK       = 5
	defaultContextLen = 10
)

var errQuit = errors.New("quit")

type shellConfig struct {
	HistoryFile string
}

// shell is the interactive chat loop.
type shell struct {
	engine  *memory.Engine
	out     io.Writer
	speaker string
}

func newShell(engine *memory.Engine, out io.Writer, speaker string) *shell {
	if speaker == "" {
		speaker = "user"
	}
	return &shell{engine: engine, out: out, speaker: speaker}
}

// Run reads lines until EOF, /quit or ctx is cancelled.
func (s *shell) Run(ctx context.Context, cfg shellConfig) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "\033[32mholomem>\033[0m ",
		HistoryFile:     cfg.HistoryFile,
		HistoryLimit:    500,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete:    newCompleter(),
	})
	if err != nil {
		fmt.Fprintf(s.out, "Error initializing readline: %v\n", err)
		fmt.Fprintln(s.out, "Falling back to simple input mode...")
		return s.runSimple(ctx, os.Stdin)
	}
	defer rl.Close()

	s.printBanner()
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt || err == io.EOF {
				fmt.Fprintln(s.out, "Goodbye!")
				return nil
			}
			return err
		}
		if err := s.handleLine(ctx, line); err != nil {
			if err == errQuit {
				return nil
			}
			fmt.Fprintf(s.out, "Error: %v\n", err)
		}
	}
}

// runSimple is the line loop used when no terminal is available.
func (s *shell) runSimple(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		if err := s.handleLine(ctx, scanner.Text()); err != nil {
			if err == errQuit {
				return nil
			}
			fmt.Fprintf(s.out, "Error: %v\n", err)
		}
	}
	return scanner.Err()
}

func (s *shell) printBanner() {
	fmt.Fprintln(s.out, "Type a message to store a turn. Each turn runs a maintenance tick.")
	fmt.Fprintln(s.out, "Commands: /query, /role, /global, /recall, /ingest, /context, /stats, /tick, /help, /quit")
	fmt.Fprintln(s.out)
}

func (s *shell) handleLine(ctx context.Context, line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	if strings.HasPrefix(line, "/") {
		return s.handleCommand(ctx, line)
	}
	return s.handleTurn(ctx, line)
}

func (s *shell) handleTurn(ctx context.Context, line string) error {
	if _, err := s.engine.AddConversationalMemory(ctx, line, s.speaker); err != nil {
		return err
	}
	s.printReport(s.engine.Maintenance(ctx))
	return nil
}

func (s *shell) handleCommand(ctx context.Context, line string) error {
	parts := strings.Fields(line)
	cmd, args := parts[0], parts[1:]
	rest := strings.TrimSpace(strings.TrimPrefix(line, cmd))

	switch cmd {
	case "/quit", "/exit", "/q":
		return errQuit

	case "/help", "/h":
		s.printHelp()

	case "/query":
		roles, err := parseRoles(args)
		if err != nil {
			return err
		}
		results, err := s.engine.CompositionalQuery(ctx, roles, defaultTopK)
		if err != nil {
			return err
		}
		s.printResults(results)

	case "/role":
		if len(args) != 1 {
			return fmt.Errorf("usage: /role <name>")
		}
		matches, err := s.engine.QueryRole(ctx, args[0], defaultTopK)
		if err != nil {
			return err
		}
		if len(matches) == 0 {
			fmt.Fprintln(s.out, "no matches")
		}
		for _, m := range matches {
			fmt.Fprintf(s.out, "%.3f  %-16s %s\n", m.Similarity, m.Symbol, m.Content)
		}

	case "/global":
		if len(args) != 1 {
			return fmt.Errorf("usage: /global <role>")
		}
		matches, err := s.engine.GlobalRole(ctx, args[0], defaultTopK)
		if err != nil {
			return err
		}
		if len(matches) == 0 {
			fmt.Fprintln(s.out, "no matches")
		}
		for _, m := range matches {
			fmt.Fprintf(s.out, "%.3f  %s\n", m.Similarity, m.Symbol)
		}

	case "/recall":
		if rest == "" {
			return fmt.Errorf("usage: /recall <text>")
		}
		results, err := s.engine.Recall(ctx, rest, defaultTopK)
		if err != nil {
			return err
		}
		s.printResults(results)

	case "/ingest":
		if rest == "" {
			return fmt.Errorf("usage: /ingest <text>")
		}
		id, err := s.engine.IngestExperience(ctx, rest, nil)
		if err != nil && !errors.Is(err, memory.ErrPersistence) {
			return err
		}
		fmt.Fprintf(s.out, "stored %s\n", shortID(id))
		if err != nil {
			fmt.Fprintf(s.out, "warning: %v\n", err)
		}

	case "/context":
		n := defaultContextLen
		if len(args) > 0 {
			v, err := strconv.Atoi(args[0])
			if err != nil || v <= 0 {
				return fmt.Errorf("usage: /context [n]")
			}
			n = v
		}
		text := s.engine.WorkingMemoryContext(n, true)
		if text == "" {
			text = "(empty)"
		}
		fmt.Fprintln(s.out, text)

	case "/stats":
		return writeStats(ctx, s.out, s.engine)

	case "/tick":
		s.printReport(s.engine.Maintenance(ctx))

	default:
		return fmt.Errorf("unknown command: %s", cmd)
	}

	return nil
}

func (s *shell) printReport(r memory.MaintenanceReport) {
	fmt.Fprintf(s.out, "tick: crystallized=%d evicted=%d retiered=%d pending=%d\n",
		r.Crystallized, r.Evicted, r.Retiered, r.Pending)
	for _, f := range r.Failures {
		fmt.Fprintf(s.out, "warning: %v\n", f)
	}
}

func (s *shell) printResults(results []memory.Result) {
	if len(results) == 0 {
		fmt.Fprintln(s.out, "no results")
		return
	}
	for _, r := range results {
		fmt.Fprintf(s.out, "%.3f  %s  %s\n", r.Score, shortID(r.ID), r.Content)
	}
}

func (s *shell) printHelp() {
	fmt.Fprintln(s.out, "Commands:")
	fmt.Fprintln(s.out, "  /query role=value ...  compositional query over persistent memory")
	fmt.Fprintln(s.out, "  /role <name>           best symbol for a role in each unit")
	fmt.Fprintln(s.out, "  /global <role>         resolve a role against the global memory state")
	fmt.Fprintln(s.out, "  /recall <text>         hybrid text and vector recall")
	fmt.Fprintln(s.out, "  /ingest <text>         store directly in persistent memory")
	fmt.Fprintln(s.out, "  /context [n]           working memory context")
	fmt.Fprintln(s.out, "  /stats                 engine statistics")
	fmt.Fprintln(s.out, "  /tick                  run a maintenance tick")
	fmt.Fprintln(s.out, "  /quit                  leave the session")
}

// parseRoles parses role=value arguments.
func parseRoles(args []string) (map[string]string, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("usage: /query role=value [role=value ...]")
	}
	roles := make(map[string]string, len(args))
	for _, arg := range args {
		k, v, ok := strings.Cut(arg, "=")
		if !ok || k == "" || v == "" {
			return nil, fmt.Errorf("invalid role binding %q, want role=value", arg)
		}
		roles[k] = v
	}
	return roles, nil
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

func newCompleter() *readline.PrefixCompleter {
	return readline.NewPrefixCompleter(
		readline.PcItem("/query"),
		readline.PcItem("/role"),
		readline.PcItem("/global"),
		readline.PcItem("/recall"),
		readline.PcItem("/ingest"),
		readline.PcItem("/context"),
		readline.PcItem("/stats"),
		readline.PcItem("/tick"),
		readline.PcItem("/help"),
		readline.PcItem("/quit"),
	)
}
