package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/meng-ma-biomedical-AI/MedCAT/internal/adapters/driven/dataset"
	"github.com/meng-ma-biomedical-AI/MedCAT/internal/core/domain"
	"github.com/meng-ma-biomedical-AI/MedCAT/internal/logger"
)

var (
	evalProjectFilters bool
	evalOverlaps       bool
	evalDocLimit       bool
	evalGroups         bool
	evalCUIFilter      []string
	evalFormat         string
	evalWatch          bool
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate <export>",
	Short: "Evaluate the model against a trainer export",
	Long: `Compares the model's predictions with the human annotations of a trainer
export (JSON or YAML) and reports precision, recall and F1 overall and per
concept, with the most frequent false positives and false negatives.

With --watch the export is re-evaluated every time the file changes.`,
	Args: cobra.ExactArgs(1),
	RunE: runEvaluate,
}

func init() {
	evaluateCmd.Flags().BoolVar(&evalProjectFilters, "project-filters", false, "restrict each project to its CUI and type filters")
	evaluateCmd.Flags().BoolVar(&evalOverlaps, "overlaps", false, "match nested entities as well as top-level ones")
	evaluateCmd.Flags().BoolVar(&evalDocLimit, "doc-limit", false, "restrict each document to the CUIs annotated in it")
	evaluateCmd.Flags().BoolVar(&evalGroups, "groups", false, "compare CUI groups instead of CUIs")
	evaluateCmd.Flags().StringSliceVar(&evalCUIFilter, "cui-filter", nil, "only evaluate these CUIs")
	evaluateCmd.Flags().StringVarP(&evalFormat, "format", "f", "", "print the full report as json or yaml")
	evaluateCmd.Flags().BoolVarP(&evalWatch, "watch", "w", false, "re-run when the export changes")
	rootCmd.AddCommand(evaluateCmd)
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	if datasetLoader == nil {
		return errors.New("dataset loader not configured")
	}
	settings, err := currentSettings()
	if err != nil {
		return err
	}
	model, err := loadModel(cmd, settings, ModelOptions{})
	if err != nil {
		return err
	}
	defer model.Close()

	opts := domain.EvalOptions{
		UseProjectFilters: evalProjectFilters,
		UseOverlaps:       evalOverlaps,
		UseCUIDocLimit:    evalDocLimit,
		UseGroups:         evalGroups,
		ExtraCUIFilter:    evalCUIFilter,
	}
	path := args[0]

	if err := evaluateOnce(cmd, model, path, opts); err != nil {
		return err
	}
	if !evalWatch {
		return nil
	}

	cmd.PrintErrf("Watching %s for changes (Ctrl+C to stop)\n", path)
	return dataset.Watch(cmd.Context(), path, dataset.DefaultDebounce, func() {
		if err := evaluateOnce(cmd, model, path, opts); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("evaluation failed: %v", err)
		}
	})
}

func evaluateOnce(cmd *cobra.Command, model *Model, path string, opts domain.EvalOptions) error {
	ctx := cmd.Context()
	ds, err := datasetLoader.Load(ctx, path)
	if err != nil {
		return fmt.Errorf("loading export: %w", err)
	}
	report, err := model.Evaluator.Evaluate(ctx, ds, model.Filters, opts)
	if err != nil {
		return fmt.Errorf("evaluation failed: %w", err)
	}
	if evalFormat != "" {
		return writeEncoded(cmd.OutOrStdout(), domain.OutputFormat(evalFormat), report)
	}
	return writeReport(cmd.OutOrStdout(), report)
}
