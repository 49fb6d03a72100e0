package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ricesearch/rice-eval/internal/config"
	apperrors "github.com/ricesearch/rice-eval/internal/pkg/errors"
	"github.com/ricesearch/rice-eval/internal/pkg/logger"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(exitCode(err))
	}
}

// exitCode is 2 for bad input, 3 for missing files and 1 otherwise.
func exitCode(err error) int {
	switch apperrors.CodeOf(err) {
	case apperrors.CodeValidation, apperrors.CodeInvalidRequest:
		return 2
	case apperrors.CodeNotFound:
		return 3
	default:
		return 1
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "rice-eval",
		Short: "Rice Eval - ranked retrieval evaluation",
		Long: `Rice Eval scores retrieval runs against relevance judgments.

Runs and qrels are read from TREC, JSON or Parquet files and scored with
MRR, precision, recall, MAP and nDCG on a shared worker pool.

Run 'rice-eval evaluate --qrels qrels.txt --run run.txt' to score a run.
Run 'rice-eval serve' to start the HTTP API.`,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().String("format", "text", "output format (text, json)")

	rootCmd.AddCommand(
		evaluateCmd(),
		convertCmd(),
		serveCmd(),
		versionCmd(),
	)

	return rootCmd
}

// loadConfig reads the config named by --config and builds a logger from
// it. --verbose forces debug logging.
func loadConfig(cmd *cobra.Command) (*config.Config, *logger.Logger, error) {
	configPath, _ := cmd.Flags().GetString("config")
	verbose, _ := cmd.Flags().GetBool("verbose")

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if verbose {
		cfg.Log.Level = "debug"
	}

	return cfg, logger.New(cfg.Log.Level, cfg.Log.Format), nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "rice-eval %s\n", version)
			fmt.Fprintf(out, "  commit: %s\n", commit)
			fmt.Fprintf(out, "  built:  %s\n", date)
		},
	}
}
