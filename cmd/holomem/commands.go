package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/goclaw/holomem/pkg/memory"
	"github.com/spf13/cobra"
)

func newChatCommand(opts *rootOptions) *cobra.Command {
	var (
		speaker string
		history string
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Run an interactive memory session",
		Long: strings.TrimSpace(`Each input line is stored as a conversational turn and followed by a
maintenance tick. Lines starting with / are commands; type /help for the list.`),
		Example: strings.Join([]string{
			"  holomem chat",
			"  holomem chat --config config.yaml --speaker alice",
		}, "\n"),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, *opts)
			if err != nil {
				return err
			}
			defer a.Close()
			a.serve(ctx)

			s := newShell(a.engine, cmd.OutOrStdout(), speaker)
			return s.Run(ctx, shellConfig{HistoryFile: history})
		},
	}

	cmd.Flags().StringVarP(&speaker, "speaker", "s", "user", "Speaker recorded for each turn")
	cmd.Flags().StringVar(&history, "history", filepath.Join(os.TempDir(), ".holomem_history"), "Readline history file")
	return cmd
}

func newIngestCommand(opts *rootOptions) *cobra.Command {
	var (
		metadata   map[string]string
		importance float64
	)

	cmd := &cobra.Command{
		Use:   "ingest <text>",
		Short: "Store an experience in persistent memory",
		Example: strings.Join([]string{
			"  holomem ingest \"met Ana at the library\" --meta where=library --meta who=ana",
			"  holomem ingest \"deploy checklist\" --importance 4",
		}, "\n"),
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *opts)
			if err != nil {
				return err
			}
			defer a.Close()

			var addOpts []memory.AddOption
			if cmd.Flags().Changed("importance") {
				addOpts = append(addOpts, memory.WithImportance(importance))
			}
			id, err := a.engine.IngestExperience(cmd.Context(), strings.Join(args, " "), metadata, addOpts...)
			if err != nil && !errors.Is(err, memory.ErrPersistence) {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return err
		},
	}

	cmd.Flags().StringToStringVarP(&metadata, "meta", "m", nil, "Metadata role=value bound into the capsule")
	cmd.Flags().Float64Var(&importance, "importance", 0, "Explicit base importance instead of the scored one")
	return cmd
}

func newRestoreCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "restore <turns.json>",
		Short:   "Rebuild conversational memory from prior turns",
		Long:    "Load a JSON array of {content, timestamp, speaker} turns and save the session digest.",
		Example: "  holomem restore session.json",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			turns, err := readTurns(args[0])
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), *opts)
			if err != nil {
				return err
			}
			defer a.Close()

			summary, err := a.engine.FreezeFrameLoad(cmd.Context(), turns)
			if err != nil && !errors.Is(err, memory.ErrPersistence) {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "loaded %d turns: %s\n", summary.LoadedUnits, summary.Digest)
			return err
		},
	}
}

func readTurns(path string) ([]memory.Turn, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read turns: %w", err)
	}
	var turns []memory.Turn
	if err := json.Unmarshal(data, &turns); err != nil {
		return nil, fmt.Errorf("parse turns %s: %w", path, err)
	}
	return turns, nil
}

func newStatsCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "stats",
		Short:   "Print memory statistics as JSON",
		Example: "  holomem stats --data ./data",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *opts)
			if err != nil {
				return err
			}
			defer a.Close()
			return writeStats(cmd.Context(), cmd.OutOrStdout(), a.engine)
		},
	}
}

type statsOutput struct {
	memory.Stats
	Session *memory.SessionState `json:"session,omitempty"`
}

func writeStats(ctx context.Context, w io.Writer, e *memory.Engine) error {
	out := statsOutput{Stats: e.Stats()}
	if s, err := e.LastSession(ctx); err == nil {
		out.Session = &s
	} else if !errors.Is(err, memory.ErrNotFound) {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
