package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/goclaw/holomem/config"
	"github.com/goclaw/holomem/pkg/version"
	"github.com/spf13/cobra"
)

// rootOptions are the flags shared by every subcommand.
type rootOptions struct {
	configPath string
	logLevel   string
	dataDir    string
	storage    string
	debug      bool
}

func main() {
	if err := buildRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func buildRootCommand() *cobra.Command {
	var (
		opts        rootOptions
		showVersion bool
	)

	root := &cobra.Command{
		Use:   "holomem",
		Short: "Holographic associative memory engine",
		Long: strings.TrimSpace(`holomem keeps a fast-decaying conversational memory and a durable
content-addressed memory, promotes important turns between them and answers
role-based and compositional queries over HRR embeddings.`),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				printVersion(cmd)
				return nil
			}
			_ = cmd.Help()
			return fmt.Errorf("a subcommand is required")
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.Flags().BoolVarP(&showVersion, "version", "v", false, "Print version information")

	pf := root.PersistentFlags()
	pf.StringVarP(&opts.configPath, "config", "c", "", "Path to configuration file")
	pf.StringVar(&opts.logLevel, "log-level", "", "Override log level (debug, info, warn, error)")
	pf.StringVar(&opts.dataDir, "data", "", "Override the data directory of the record store")
	pf.StringVar(&opts.storage, "storage", "", "Override the record store backend (badger, file, memory)")
	pf.BoolVar(&opts.debug, "debug", false, "Enable debug mode")

	root.AddCommand(newChatCommand(&opts))
	root.AddCommand(newIngestCommand(&opts))
	root.AddCommand(newRestoreCommand(&opts))
	root.AddCommand(newStatsCommand(&opts))
	root.AddCommand(newVersionCommand())

	return root
}

// buildOverrides maps flags onto config keys.
func buildOverrides(opts rootOptions) map[string]interface{} {
	overrides := make(map[string]interface{})

	if opts.logLevel != "" {
		overrides["log.level"] = opts.logLevel
	}
	if opts.debug {
		overrides["app.debug"] = true
	}
	if opts.storage != "" {
		overrides["storage.type"] = opts.storage
	}
	if opts.dataDir != "" {
		for k, v := range config.DataDirKeys(opts.dataDir) {
			overrides[k] = v
		}
	}

	return overrides
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "version",
		Short:   "Print version information",
		Example: "  holomem version",
		RunE: func(cmd *cobra.Command, args []string) error {
			printVersion(cmd)
			return nil
		},
	}
}

func printVersion(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "holomem - Holographic Associative Memory\n")
	fmt.Fprintf(out, "Version:    %s\n", version.Version)
	fmt.Fprintf(out, "Build Time: %s\n", version.BuildTime)
	fmt.Fprintf(out, "Git Commit: %s\n", version.GitCommit)
	fmt.Fprintf(out, "Go Version: %s\n", version.GoVersion)
}
