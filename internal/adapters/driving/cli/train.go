package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/meng-ma-biomedical-AI/MedCAT/internal/adapters/driven/dataset"
	"github.com/meng-ma-biomedical-AI/MedCAT/internal/core/domain"
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train the model",
	Long:  `Commands for supervised training from a trainer export and self-supervised training from raw text.`,
}

var (
	trainEpochs         int
	trainPrintStats     int
	trainTestSize       float64
	trainSeed           int64
	trainUseFilters     bool
	trainTerminateLast  bool
	trainNeverTerminate bool
	trainDevalueOthers  bool
	trainFromFP         bool
	trainResetCounts    bool
	trainOverlaps       bool
	trainDocLimit       bool
	trainGroups         bool
	trainCUIFilter      []string
	trainFormat         string
)

var trainSupervisedCmd = &cobra.Command{
	Use:   "supervised <export>",
	Short: "Train from the annotations of a trainer export",
	Long: `Runs online supervised training over a trainer export (JSON or YAML).

Each validated annotation trains its concept positively and each killed or
deleted one negatively. With --test-size a fraction of every project is held
out and evaluated every --print-stats epochs.`,
	Args: cobra.ExactArgs(1),
	RunE: runTrainSupervised,
}

var (
	trainFineTune bool
	trainProgress int
)

var trainTextCmd = &cobra.Command{
	Use:   "text <corpus>",
	Short: "Self-supervised training from raw text",
	Long: `Trains context vectors from unannotated text. The corpus is a text file
with one document per line, a JSONL file of {"id","text"} records, or a
directory of .txt files.`,
	Args: cobra.ExactArgs(1),
	RunE: runTrainText,
}

func init() {
	flags := trainSupervisedCmd.Flags()
	flags.IntVar(&trainEpochs, "epochs", 0, "number of epochs (default from settings)")
	flags.IntVar(&trainPrintStats, "print-stats", -1, "evaluate every n epochs, 0 to disable (default from settings)")
	flags.Float64Var(&trainTestSize, "test-size", -1, "fraction of each project held out for evaluation (default from settings)")
	flags.Int64Var(&trainSeed, "seed", 0, "train/test split seed (default from settings)")
	flags.BoolVar(&trainUseFilters, "use-filters", false, "apply project filters while training")
	flags.BoolVar(&trainTerminateLast, "terminate-last", false, "unlink killed names after the last epoch")
	flags.BoolVar(&trainNeverTerminate, "never-terminate", false, "never unlink killed names")
	flags.BoolVar(&trainDevalueOthers, "devalue-others", false, "train other concepts sharing a name negatively")
	flags.BoolVar(&trainFromFP, "train-fp", false, "train predicted false positives negatively")
	flags.BoolVar(&trainResetCounts, "reset-counts", false, "reset training counters of every annotated concept")
	flags.BoolVar(&trainOverlaps, "overlaps", false, "evaluate nested entities as well")
	flags.BoolVar(&trainDocLimit, "doc-limit", false, "restrict each document to the CUIs annotated in it")
	flags.BoolVar(&trainGroups, "groups", false, "evaluate CUI groups instead of CUIs")
	flags.StringSliceVar(&trainCUIFilter, "cui-filter", nil, "only train and evaluate these CUIs")
	flags.StringVarP(&trainFormat, "format", "f", "", "print the final report as json or yaml")

	trainTextCmd.Flags().BoolVar(&trainFineTune, "fine-tune", true, "keep existing training state")
	trainTextCmd.Flags().IntVar(&trainProgress, "progress", 1000, "log progress every n documents, 0 to disable")

	trainCmd.AddCommand(trainSupervisedCmd)
	trainCmd.AddCommand(trainTextCmd)
	rootCmd.AddCommand(trainCmd)
}

// trainOptions merges command flags over the training settings.
func trainOptions(cmd *cobra.Command, s domain.TrainingSettings) domain.TrainOptions {
	opts := domain.TrainOptions{
		NEpochs:                 s.NEpochs,
		PrintStats:              s.PrintStats,
		TestSize:                s.TestSize,
		Seed:                    s.Seed,
		UseFilters:              s.UseFilters || trainUseFilters,
		TerminateLast:           s.TerminateLast || trainTerminateLast,
		NeverTerminate:          trainNeverTerminate,
		DevalueOthers:           s.DevalueOthers || trainDevalueOthers,
		TrainFromFalsePositives: s.TrainFromFalsePositives || trainFromFP,
		ResetCUICount:           s.ResetCUICount || trainResetCounts,
		UseOverlaps:             trainOverlaps,
		UseCUIDocLimit:          trainDocLimit,
		UseGroups:               trainGroups,
		ExtraCUIFilter:          trainCUIFilter,
	}
	flags := cmd.Flags()
	if flags.Changed("epochs") {
		opts.NEpochs = trainEpochs
	}
	if flags.Changed("print-stats") {
		opts.PrintStats = trainPrintStats
	}
	if flags.Changed("test-size") {
		opts.TestSize = trainTestSize
	}
	if flags.Changed("seed") {
		opts.Seed = trainSeed
	}
	return opts
}

func runTrainSupervised(cmd *cobra.Command, args []string) error {
	if datasetLoader == nil {
		return errors.New("dataset loader not configured")
	}
	settings, err := currentSettings()
	if err != nil {
		return err
	}
	opts := trainOptions(cmd, settings.Training)
	if opts.NEpochs < 1 {
		return fmt.Errorf("%w: epochs must be at least 1", domain.ErrInvalidInput)
	}
	if opts.TestSize < 0 || opts.TestSize >= 1 {
		return fmt.Errorf("%w: test size must be in [0,1)", domain.ErrInvalidInput)
	}

	ctx := cmd.Context()
	ds, err := datasetLoader.Load(ctx, args[0])
	if err != nil {
		return fmt.Errorf("loading export: %w", err)
	}

	model, err := loadModel(cmd, settings, ModelOptions{})
	if err != nil {
		return err
	}
	defer model.Close()

	report, err := model.Trainer.TrainSupervised(ctx, ds, model.Filters, opts)
	if err != nil {
		return fmt.Errorf("training failed: %w", err)
	}

	if trainFormat != "" {
		return writeEncoded(cmd.OutOrStdout(), domain.OutputFormat(trainFormat), report)
	}
	if report == nil {
		cmd.Printf("Trained %d epoch(s).\n", opts.NEpochs)
		return nil
	}
	return writeReport(cmd.OutOrStdout(), report)
}

func runTrainText(cmd *cobra.Command, args []string) error {
	settings, err := currentSettings()
	if err != nil {
		return err
	}
	model, err := loadModel(cmd, settings, ModelOptions{})
	if err != nil {
		return err
	}
	defer model.Close()

	lines, errFn := dataset.Lines(args[0], corpusOptions()...)
	opts := domain.UnsupervisedOptions{
		FineTune:      trainFineTune,
		ProgressEvery: trainProgress,
	}
	if err := model.Trainer.Train(cmd.Context(), lines, opts); err != nil {
		return fmt.Errorf("training failed: %w", err)
	}
	if err := errFn(); err != nil {
		return fmt.Errorf("reading corpus: %w", err)
	}

	cmd.Println("Self-supervised training complete.")
	return nil
}
