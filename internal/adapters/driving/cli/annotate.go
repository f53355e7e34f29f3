package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/meng-ma-biomedical-AI/MedCAT/internal/adapters/driven/dataset"
	"github.com/meng-ma-biomedical-AI/MedCAT/internal/adapters/driven/metrics/prometheus"
	"github.com/meng-ma-biomedical-AI/MedCAT/internal/core/domain"
	"github.com/meng-ma-biomedical-AI/MedCAT/internal/logger"
)

// shutdownTimeout bounds the metrics server shutdown.
const shutdownTimeout = 5 * time.Second

var annotateCmd = &cobra.Command{
	Use:   "annotate",
	Short: "Annotate text with medical concepts",
	Long:  `Commands for annotating a single text or a whole corpus.`,
}

var annotateFormat string

var annotateTextCmd = &cobra.Command{
	Use:   "text <text>",
	Short: "Annotate one text",
	Long: `Annotates the given text, or standard input when the text is "-", and
prints the entities found.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAnnotateText,
}

var (
	corpusOut         string
	corpusWorkers     int
	corpusBatchChars  int
	corpusSplitChars  int
	corpusMinFree     float64
	corpusOnlyCUI     bool
	corpusIncludeText bool
	corpusAddlInfo    []string
	corpusMetricsAddr string
	corpusFresh       bool
)

var annotateCorpusCmd = &cobra.Command{
	Use:   "corpus <path>",
	Short: "Annotate a corpus with parallel workers",
	Long: `Annotates every document of a corpus: a directory of notes (.txt, .md or
.html), a JSONL file of {"id","text"} records, or a text file with one
document per line. Markup is stripped from Markdown and HTML notes.

Documents are grouped into batches by character volume and annotated in
parallel. When a checkpoint backend is configured and --split-chars is set,
results are flushed to shards as the run progresses and an interrupted run
resumes where it stopped.`,
	Args: cobra.ExactArgs(1),
	RunE: runAnnotateCorpus,
}

func init() {
	annotateCmd.PersistentFlags().StringVarP(&annotateFormat, "format", "f", "", "output format: json or yaml (default from settings)")

	flags := annotateCorpusCmd.Flags()
	flags.StringVarP(&corpusOut, "out", "o", "", "write results to this file instead of stdout")
	flags.IntVar(&corpusWorkers, "workers", 0, "parallel workers (default from settings)")
	flags.IntVar(&corpusBatchChars, "batch-chars", 0, "characters per batch (default from settings)")
	flags.IntVar(&corpusSplitChars, "split-chars", -1, "characters between checkpoints, 0 disables (default from settings)")
	flags.Float64Var(&corpusMinFree, "min-free-memory", -1, "free memory ratio below which workers stop (default from settings)")
	flags.BoolVar(&corpusOnlyCUI, "only-cui", false, "reduce each entity to its CUI")
	flags.BoolVar(&corpusIncludeText, "include-text", false, "include the source text in each result")
	flags.StringSliceVar(&corpusAddlInfo, "addl-info", nil, "extra concept fields to copy into each entity, e.g. cui2icd10")
	flags.StringVar(&corpusMetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")
	flags.BoolVar(&corpusFresh, "fresh", false, "discard any existing checkpoint before starting")

	annotateCmd.AddCommand(annotateTextCmd)
	annotateCmd.AddCommand(annotateCorpusCmd)
	rootCmd.AddCommand(annotateCmd)
}

func outputFormat(settings *domain.AppSettings) domain.OutputFormat {
	if annotateFormat != "" {
		return domain.OutputFormat(strings.ToLower(annotateFormat))
	}
	return settings.Output.Format
}

func runAnnotateText(cmd *cobra.Command, args []string) error {
	settings, err := currentSettings()
	if err != nil {
		return err
	}

	text := strings.Join(args, " ")
	if text == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("reading stdin: %w", err)
		}
		text = string(data)
	}

	model, err := loadModel(cmd, settings, ModelOptions{})
	if err != nil {
		return err
	}
	defer model.Close()

	out, err := model.Annotator.Annotate(cmd.Context(), text)
	if err != nil {
		return fmt.Errorf("annotation failed: %w", err)
	}
	return writeEncoded(cmd.OutOrStdout(), outputFormat(settings), out)
}

// bulkOptions merges command flags over the inference and output settings.
func bulkOptions(cmd *cobra.Command, settings *domain.AppSettings) domain.BulkOptions {
	opts := domain.BulkOptions{
		Workers:              settings.Inference.Workers,
		BatchSizeChars:       settings.Inference.BatchSizeChars,
		OutSplitSizeChars:    settings.Inference.OutSplitSizeChars,
		MinFreeMemory:        settings.Inference.MinFreeMemory,
		SeparateNNComponents: settings.Inference.SeparateNNComponents,
		OnlyCUI:              settings.Output.OnlyCUI || corpusOnlyCUI,
		IncludeText:          settings.Output.IncludeText || corpusIncludeText,
		AddlInfo:             settings.Output.AddlInfo,
	}
	flags := cmd.Flags()
	if flags.Changed("workers") {
		opts.Workers = corpusWorkers
	}
	if flags.Changed("batch-chars") {
		opts.BatchSizeChars = corpusBatchChars
	}
	if flags.Changed("split-chars") {
		opts.OutSplitSizeChars = corpusSplitChars
	}
	if flags.Changed("min-free-memory") {
		opts.MinFreeMemory = corpusMinFree
	}
	if flags.Changed("addl-info") {
		opts.AddlInfo = corpusAddlInfo
	}
	return opts
}

func runAnnotateCorpus(cmd *cobra.Command, args []string) error {
	settings, err := currentSettings()
	if err != nil {
		return err
	}
	opts := bulkOptions(cmd, settings)

	var modelOpts ModelOptions
	if corpusMetricsAddr != "" {
		stop, err := startMetrics(cmd, &modelOpts)
		if err != nil {
			return err
		}
		defer stop()
	}

	model, err := loadModel(cmd, settings, modelOpts)
	if err != nil {
		return err
	}
	defer model.Close()

	ctx := cmd.Context()
	if corpusFresh && model.Checkpoint != nil {
		if err := model.Checkpoint.Clear(ctx); err != nil {
			return fmt.Errorf("clearing checkpoint: %w", err)
		}
	}

	items, errFn := dataset.Corpus(args[0], corpusOptions()...)
	results, err := model.Bulk.Run(ctx, items, opts)
	if err != nil {
		return fmt.Errorf("annotation failed: %w", err)
	}
	if err := errFn(); err != nil {
		return fmt.Errorf("reading corpus: %w", err)
	}
	if err := ctx.Err(); err != nil {
		cmd.PrintErrln("Interrupted; rerun the same command to resume from the last checkpoint.")
		return err
	}

	// With checkpointing the returned map only holds the tail of the run.
	if model.Checkpoint != nil && opts.Checkpointing() {
		results, err = model.Checkpoint.LoadResults(ctx)
		if err != nil {
			return fmt.Errorf("loading checkpointed results: %w", err)
		}
	}

	w := cmd.OutOrStdout()
	if corpusOut != "" {
		f, err := os.Create(corpusOut)
		if err != nil {
			return fmt.Errorf("creating output: %w", err)
		}
		defer f.Close()
		w = f
	}
	if err := writeEncoded(w, outputFormat(settings), results); err != nil {
		return err
	}
	logger.Info("annotated %d documents", len(results))
	return nil
}

// startMetrics serves Prometheus metrics for the run and returns a function
// that shuts the server down.
func startMetrics(cmd *cobra.Command, opts *ModelOptions) (func(), error) {
	registry := prometheus.NewRegistry()
	recorder, err := prometheus.NewRecorder(registry)
	if err != nil {
		return nil, fmt.Errorf("creating metrics: %w", err)
	}
	exporter := prometheus.NewExporter(corpusMetricsAddr, registry)
	addr, err := exporter.Start()
	if err != nil {
		return nil, fmt.Errorf("starting metrics server: %w", err)
	}
	cmd.PrintErrf("Serving metrics on http://%s/metrics\n", addr)
	opts.Metrics = recorder

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := exporter.Shutdown(ctx); err != nil {
			logger.Warn("metrics server shutdown: %v", err)
		}
	}, nil
}
