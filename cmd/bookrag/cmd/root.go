// Package cmd provides the CLI commands for bookrag.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/tutorlib/bookrag/internal/config"
	"github.com/tutorlib/bookrag/internal/logging"
	"github.com/tutorlib/bookrag/pkg/version"
)

// Persistent flags shared by all commands.
var (
	configPath string
	logLevel   string
	logFormat  string
)

// NewRootCmd creates the root command for the bookrag CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bookrag",
		Short: "Hybrid retrieval over textbook chunks",
		Long: `bookrag answers study questions from a corpus of textbook chunks.

It combines BM25 keyword search and semantic embedding search with
Reciprocal Rank Fusion, then applies intent-aware filtering and optional
cross-encoder reranking. Embeddings and generation run locally through
Ollama.`,
		Version: version.Version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		// main prints the error once; cobra would also dump usage.
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	cmd.SetVersionTemplate("bookrag version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default: .bookrag.yaml in the working directory)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	cmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: text, json")

	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// loadConfig loads configuration honoring the --config flag, then
// applies logging flag overrides and installs the default logger.
func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load(".")
	}
	if err != nil {
		return nil, err
	}

	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if logFormat != "" {
		cfg.Logging.Format = logFormat
	}
	logging.SetupDefault(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	return cfg, nil
}
