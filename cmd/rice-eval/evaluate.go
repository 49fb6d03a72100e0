package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ricesearch/rice-eval/internal/config"
	"github.com/ricesearch/rice-eval/internal/evaluation"
)

func evaluateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Score a run against relevance judgments",
		Long: `Score a run against qrels and print per-metric means.

Metrics are given as name or name@k: mrr, precision, recall, map, ndcg.
Formats are guessed from the file extension unless set explicitly.

Examples:
  rice-eval evaluate --qrels qrels.txt --run bm25.txt
  rice-eval evaluate --qrels qrels.json --run run.parquet -m mrr@10 -m ndcg@10
  rice-eval evaluate --qrels qrels.txt --run bm25.txt --per-query --format json`,
		Args: cobra.NoArgs,
		RunE: runEvaluate,
	}

	cmd.Flags().String("qrels", "", "qrels file path")
	cmd.Flags().String("run", "", "run file path")
	cmd.Flags().String("qrels-format", "", "qrels format (trec, json)")
	cmd.Flags().String("run-format", "", "run format (trec, json, parquet)")
	cmd.Flags().StringArrayP("metric", "m", nil, "metric spec, repeatable (default from config)")
	cmd.Flags().IntP("k", "k", 0, "cutoff applied to metrics given without @k")
	cmd.Flags().IntP("workers", "w", 0, "scoring workers (default from config)")
	cmd.Flags().Bool("per-query", false, "print a row per query")
	_ = cmd.MarkFlagRequired("qrels")
	_ = cmd.MarkFlagRequired("run")

	return cmd
}

func runEvaluate(cmd *cobra.Command, _ []string) error {
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	qrelsPath, _ := cmd.Flags().GetString("qrels")
	runPath, _ := cmd.Flags().GetString("run")
	qrelsFormat, _ := cmd.Flags().GetString("qrels-format")
	runFormat, _ := cmd.Flags().GetString("run-format")
	specs, _ := cmd.Flags().GetStringArray("metric")
	perQuery, _ := cmd.Flags().GetBool("per-query")
	outFormat, _ := cmd.Flags().GetString("format")

	if cmd.Flags().Changed("k") {
		cfg.Eval.K, _ = cmd.Flags().GetInt("k")
	}
	if cmd.Flags().Changed("workers") {
		cfg.Eval.Workers, _ = cmd.Flags().GetInt("workers")
	}
	if outFormat != "text" && outFormat != "json" {
		return fmt.Errorf("invalid output format %q (must be text or json)", outFormat)
	}

	metrics := cfg.DefaultMetrics()
	if len(specs) > 0 {
		metrics = make([]string, len(specs))
		for i, s := range specs {
			metrics[i] = config.WithDefaultCutoff(s, cfg.Eval.K)
		}
	}

	qrels, err := loadQrels(qrelsPath, qrelsFormat)
	if err != nil {
		return fmt.Errorf("loading qrels: %w", err)
	}
	run, err := loadRun(runPath, runFormat)
	if err != nil {
		return fmt.Errorf("loading run: %w", err)
	}
	log.Debug("Inputs loaded", "qrels", qrels.String(), "run", run.String())

	pool, err := evaluation.NewPool(cfg.Eval.Workers)
	if err != nil {
		return err
	}
	defer pool.Release()

	report, err := evaluation.NewEvaluator(log, evaluation.WithPool(pool)).
		Evaluate(cmd.Context(), qrels, run, metrics...)
	if err != nil {
		return err
	}

	if outFormat == "json" {
		return report.WriteJSON(cmd.OutOrStdout())
	}
	return report.WriteText(cmd.OutOrStdout(), perQuery)
}
