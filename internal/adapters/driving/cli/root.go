// Package cli provides the medcat command line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/meng-ma-biomedical-AI/MedCAT/internal/adapters/driven/dataset"
	"github.com/meng-ma-biomedical-AI/MedCAT/internal/core/domain"
	"github.com/meng-ma-biomedical-AI/MedCAT/internal/core/ports/driven"
	"github.com/meng-ma-biomedical-AI/MedCAT/internal/core/ports/driving"
	"github.com/meng-ma-biomedical-AI/MedCAT/internal/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

// ModelPaths locates the model artefacts on disk.
type ModelPaths struct {
	// ConceptDB is the concept database CSV.
	ConceptDB string

	// Vocab is the word vector file.
	Vocab string

	// TypeNames maps type ids to names. Optional.
	TypeNames string
}

// ModelOptions adjusts how a model is assembled for one command.
type ModelOptions struct {
	// Metrics records inference progress. Optional.
	Metrics driven.InferenceMetrics
}

// Model bundles the services built over one loaded model.
type Model struct {
	Annotator driving.Annotator
	Bulk      driving.BulkAnnotator
	Evaluator driving.Evaluator
	Trainer   driving.Trainer
	Concepts  driving.ConceptBrowser

	// Filters is the model-wide filter shared by evaluation and training.
	Filters *domain.FilterContext

	// Checkpoint is the configured checkpoint store, nil when disabled.
	Checkpoint driven.CheckpointStore

	// Close releases resources such as database handles.
	Close func() error
}

// ModelLoader assembles a model from its artefacts and the current settings.
type ModelLoader func(ctx context.Context, paths ModelPaths, settings *domain.AppSettings, opts ModelOptions) (*Model, error)

// Dependencies are the constructors the CLI needs. The composition root
// provides them.
type Dependencies struct {
	// Settings returns the settings service. With noConfig the settings
	// live in memory only and nothing is written to disk.
	Settings func(noConfig bool) (driving.SettingsService, error)

	// Datasets reads trainer exports.
	Datasets driven.DatasetLoader

	// Extractors reads note files of corpus directories. Optional; without
	// it only .txt files are read.
	Extractors driven.ExtractorSet

	// LoadModel assembles a model.
	LoadModel ModelLoader
}

var (
	deps            Dependencies
	settingsService driving.SettingsService
	datasetLoader   driven.DatasetLoader

	modelPaths ModelPaths
	noConfig   bool
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:           "medcat",
	Short:         "Medical concept annotation and training",
	SilenceUsage:  true,
	SilenceErrors: false,
	Long: `medcat detects and links medical concepts in free text.

It annotates single texts or whole corpora with resumable, checkpointed
parallel inference, evaluates a model against a trainer export, and trains
it from curated annotations or raw text.`,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if deps.Settings != nil {
			svc, err := deps.Settings(noConfig)
			if err != nil {
				return fmt.Errorf("loading settings: %w", err)
			}
			settingsService = svc
		}
		if deps.Datasets != nil {
			datasetLoader = deps.Datasets
		}

		v := verbose
		if !cmd.Flags().Changed("verbose") && settingsService != nil {
			if s, err := settingsService.Get(); err == nil {
				v = s.General.Verbose
			}
		}
		logger.SetVerbose(v)
		return nil
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	flags.BoolVar(&noConfig, "no-config", false, "ignore the config file and use defaults")
	flags.StringVar(&modelPaths.ConceptDB, "cdb", "", "concept database CSV")
	flags.StringVar(&modelPaths.Vocab, "vocab", "", "vocabulary file with word vectors")
	flags.StringVar(&modelPaths.TypeNames, "types", "", "CSV mapping type ids to names")
}

// Execute runs the root command with the given dependencies.
func Execute(d Dependencies) {
	deps = d
	rootCmd.Version = version

	// Interrupts cancel the running command so bulk runs stop between batches.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		// Error already printed by cobra
		os.Exit(1)
	}
}

// currentSettings returns the stored settings or an error naming the
// missing service.
func currentSettings() (*domain.AppSettings, error) {
	if settingsService == nil {
		return nil, errors.New("settings service not configured")
	}
	s, err := settingsService.Get()
	if err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}
	return s, nil
}

// corpusOptions returns the options for reading a corpus.
func corpusOptions() []dataset.CorpusOption {
	if deps.Extractors == nil {
		return nil
	}
	return []dataset.CorpusOption{dataset.WithExtractors(deps.Extractors)}
}

// loadModel assembles the model named by the persistent flags.
func loadModel(cmd *cobra.Command, settings *domain.AppSettings, opts ModelOptions) (*Model, error) {
	if deps.LoadModel == nil {
		return nil, errors.New("model loader not configured")
	}
	if modelPaths.ConceptDB == "" {
		return nil, fmt.Errorf("%w: --cdb is required", domain.ErrMissingConceptDB)
	}
	if modelPaths.Vocab == "" {
		return nil, fmt.Errorf("%w: --vocab is required", domain.ErrMissingVocab)
	}
	m, err := deps.LoadModel(cmd.Context(), modelPaths, settings, opts)
	if err != nil {
		return nil, err
	}
	if m.Close == nil {
		m.Close = func() error { return nil }
	}
	return m, nil
}
