package main

import (
	"context"
	"fmt"

	"github.com/meng-ma-biomedical-AI/MedCAT/internal/adapters/driven/classifier"
	"github.com/meng-ma-biomedical-AI/MedCAT/internal/adapters/driven/conceptdb"
	"github.com/meng-ma-biomedical-AI/MedCAT/internal/adapters/driven/pipeline/dictionary"
	"github.com/meng-ma-biomedical-AI/MedCAT/internal/adapters/driven/storage/file"
	"github.com/meng-ma-biomedical-AI/MedCAT/internal/adapters/driven/storage/sqlite"
	"github.com/meng-ma-biomedical-AI/MedCAT/internal/adapters/driven/system"
	"github.com/meng-ma-biomedical-AI/MedCAT/internal/adapters/driven/vocab"
	"github.com/meng-ma-biomedical-AI/MedCAT/internal/adapters/driving/cli"
	"github.com/meng-ma-biomedical-AI/MedCAT/internal/core/domain"
	"github.com/meng-ma-biomedical-AI/MedCAT/internal/core/ports/driven"
	"github.com/meng-ma-biomedical-AI/MedCAT/internal/core/services"
	"github.com/meng-ma-biomedical-AI/MedCAT/internal/logger"
)

// loadModel reads the model artefacts and builds every service over them.
func (a *app) loadModel(_ context.Context, paths cli.ModelPaths, settings *domain.AppSettings,
	opts cli.ModelOptions) (*cli.Model, error) {
	normaliser := dictionary.Normaliser{}

	db, err := conceptdb.Load(paths.ConceptDB, normaliser)
	if err != nil {
		return nil, fmt.Errorf("loading concept database: %w", err)
	}
	if paths.TypeNames != "" {
		if err := db.LoadTypeNames(paths.TypeNames); err != nil {
			return nil, fmt.Errorf("loading type names: %w", err)
		}
	}
	concepts, names := db.Len()
	logger.Info("loaded %d concepts with %d names", concepts, names)

	v, err := vocab.Load(paths.Vocab)
	if err != nil {
		return nil, fmt.Errorf("loading vocabulary: %w", err)
	}

	pipeline, err := dictionary.New(db, v, dictionary.SettingsOptions(*settings)...)
	if err != nil {
		return nil, fmt.Errorf("building pipeline: %w", err)
	}

	registry := classifier.NewRegistry()
	classifier.RegisterDefaults(registry)
	var cfgFor func(string) map[string]any
	if a.settingsSvc != nil {
		cfgFor = a.settingsSvc.ClassifierConfig
	}
	metaClassifiers, err := registry.BuildAll(settings.Inference.MetaClassifiers, cfgFor)
	if err != nil {
		return nil, err
	}

	checkpoint, closeFn, err := openCheckpoint(settings.Inference)
	if err != nil {
		return nil, err
	}

	probe := system.MemoryProbe{}
	if free, err := system.FreeRatio(probe); err == nil {
		logger.Debug("free memory ratio %.2f", free)
	}

	filters := domain.NewFilterContext(settings.Linking.Filters...)
	output := services.OutputBuilder{
		Concepts:    db,
		OnlyCUI:     settings.Output.OnlyCUI,
		AddlInfo:    settings.Output.AddlInfo,
		IncludeText: settings.Output.IncludeText,
		Nested:      settings.General.ShowNestedEntities,
	}
	inference := []services.InferenceOption{
		services.WithFilters(filters),
		services.WithMemoryProbe(probe),
		services.WithMetaClassifiers(metaClassifiers...),
		services.WithMaxDocumentLength(settings.Preprocessing.MaxDocumentLength),
		services.WithNestedEntities(settings.General.ShowNestedEntities),
	}
	if opts.Metrics != nil {
		inference = append(inference, services.WithInferenceMetrics(opts.Metrics))
	}
	if checkpoint != nil {
		inference = append(inference, services.WithCheckpointStore(checkpoint))
	}

	stats := services.NewStatsEngine(pipeline, db)
	model := &cli.Model{
		Annotator: services.NewAnnotator(pipeline, output, inference...),
		Bulk:      services.NewBulkAnnotator(pipeline, db, inference...),
		Evaluator: stats,
		Trainer: services.NewTrainingOrchestrator(pipeline, db, normaliser, pipeline,
			services.WithEvaluator(stats),
			services.WithFullUnlink(settings.General.FullUnlink),
			services.WithModelFilters(filters),
		),
		Concepts:   services.NewConceptService(db, normaliser),
		Filters:    filters,
		Checkpoint: checkpoint,
		Close:      closeFn,
	}
	return model, nil
}

// openCheckpoint opens the configured checkpoint backend. The store is nil
// when checkpointing is disabled.
func openCheckpoint(s domain.InferenceSettings) (driven.CheckpointStore, func() error, error) {
	nop := func() error { return nil }
	switch s.Checkpoint {
	case domain.CheckpointFile:
		store, err := file.NewCheckpointStore(s.CheckpointDir)
		if err != nil {
			return nil, nil, fmt.Errorf("opening checkpoint directory: %w", err)
		}
		return store, nop, nil
	case domain.CheckpointSQLite:
		store, err := sqlite.NewStore(s.CheckpointDir)
		if err != nil {
			return nil, nil, fmt.Errorf("opening checkpoint database: %w", err)
		}
		return store, store.Close, nil
	default:
		return nil, nop, nil
	}
}
