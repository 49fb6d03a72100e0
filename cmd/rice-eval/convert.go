package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func convertCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Convert a run or qrels file between formats",
		Long: `Convert between TREC, JSON and Parquet. Parquet is only available for
runs. Output is written in canonical order: query ids ascending, documents by
descending score.

Examples:
  rice-eval convert --in bm25.txt --out bm25.parquet
  rice-eval convert --kind qrels --in qrels.txt --out qrels.json`,
		Args: cobra.NoArgs,
		RunE: runConvert,
	}

	cmd.Flags().String("kind", "run", "input kind (run, qrels)")
	cmd.Flags().String("in", "", "input file path")
	cmd.Flags().String("in-format", "", "input format (trec, json, parquet)")
	cmd.Flags().String("out", "", "output file path")
	cmd.Flags().String("out-format", "", "output format (trec, json, parquet)")
	cmd.Flags().String("run-name", "", "run tag written to TREC output")
	_ = cmd.MarkFlagRequired("in")
	_ = cmd.MarkFlagRequired("out")

	return cmd
}

func runConvert(cmd *cobra.Command, _ []string) error {
	_, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	kind, _ := cmd.Flags().GetString("kind")
	in, _ := cmd.Flags().GetString("in")
	inFormat, _ := cmd.Flags().GetString("in-format")
	out, _ := cmd.Flags().GetString("out")
	outFormat, _ := cmd.Flags().GetString("out-format")
	runName, _ := cmd.Flags().GetString("run-name")

	switch kind {
	case "run":
		run, err := loadRun(in, inFormat)
		if err != nil {
			return fmt.Errorf("loading run: %w", err)
		}
		if runName != "" {
			run.Name = runName
		}
		if err := saveRun(run, out, outFormat); err != nil {
			return fmt.Errorf("writing run: %w", err)
		}
		log.Info("Run converted", "in", in, "out", out, "queries", run.Len())
	case "qrels":
		qrels, err := loadQrels(in, inFormat)
		if err != nil {
			return fmt.Errorf("loading qrels: %w", err)
		}
		if err := saveQrels(qrels, out, outFormat); err != nil {
			return fmt.Errorf("writing qrels: %w", err)
		}
		log.Info("Qrels converted", "in", in, "out", out, "queries", qrels.Len())
	default:
		return fmt.Errorf("invalid kind %q (must be run or qrels)", kind)
	}
	return nil
}
