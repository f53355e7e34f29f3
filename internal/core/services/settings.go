package services

import (
	"fmt"
	"strings"

	"github.com/meng-ma-biomedical-AI/MedCAT/internal/core/domain"
	"github.com/meng-ma-biomedical-AI/MedCAT/internal/core/ports/driven"
	"github.com/meng-ma-biomedical-AI/MedCAT/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
const (
	keyFullUnlink        = "general.full_unlink"
	keyShowNested        = "general.show_nested_entities"
	keyVerbose           = "general.verbose"
	keyMaxDocLength      = "preprocessing.max_document_length"
	keyMinNameLength     = "preprocessing.min_name_length"
	keyFilters           = "linking.filters"
	keySimilarity        = "linking.similarity_threshold"
	keyContextWindow     = "linking.context_window"
	keyLearningRate      = "linking.learning_rate"
	keyNEpochs           = "training.nepochs"
	keyPrintStats        = "training.print_stats"
	keyTestSize          = "training.test_size"
	keySeed              = "training.seed"
	keyUseFilters        = "training.use_filters"
	keyTerminateLast     = "training.terminate_last"
	keyDevalueOthers     = "training.devalue_others"
	keyTrainFromFP       = "training.train_from_false_positives"
	keyResetCUICount     = "training.reset_cui_count"
	keyWorkers           = "inference.workers"
	keyBatchSizeChars    = "inference.batch_size_chars"
	keyOutSplitSizeChars = "inference.out_split_size_chars"
	keyMinFreeMemory     = "inference.min_free_memory"
	keySeparateNN        = "inference.separate_nn_components"
	keyCheckpoint        = "inference.checkpoint"
	keyCheckpointDir     = "inference.checkpoint_dir"
	keyMetaClassifiers   = "inference.meta_classifiers"
	keyOutputIncludeText = "output.include_text"
	keyOutputOnlyCUI     = "output.only_cui"
	keyOutputAddlInfo    = "output.addl_info"
	keyOutputFormat      = "output.format"
)

// classifierPrefix scopes per-classifier settings.
const classifierPrefix = "classifiers."

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore) *SettingsService {
	return &SettingsService{configStore: configStore}
}

// Get retrieves current application settings. Missing or invalid values
// fall back to their defaults.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	d := domain.DefaultAppSettings()

	settings := &domain.AppSettings{
		General: domain.GeneralSettings{
			FullUnlink:         s.getBool(keyFullUnlink, d.General.FullUnlink),
			ShowNestedEntities: s.getBool(keyShowNested, d.General.ShowNestedEntities),
			Verbose:            s.getBool(keyVerbose, d.General.Verbose),
		},
		Preprocessing: domain.PreprocessingSettings{
			MaxDocumentLength: s.getInt(keyMaxDocLength, d.Preprocessing.MaxDocumentLength),
			MinNameLength:     s.getInt(keyMinNameLength, d.Preprocessing.MinNameLength),
		},
		Linking: domain.LinkingSettings{
			Filters:             s.configStore.GetStringSlice(keyFilters),
			SimilarityThreshold: s.getFloat(keySimilarity, d.Linking.SimilarityThreshold),
			ContextWindow:       s.getInt(keyContextWindow, d.Linking.ContextWindow),
			LearningRate:        s.getFloat(keyLearningRate, d.Linking.LearningRate),
		},
		Training: domain.TrainingSettings{
			NEpochs:                 s.getInt(keyNEpochs, d.Training.NEpochs),
			PrintStats:              s.getInt(keyPrintStats, d.Training.PrintStats),
			TestSize:                s.getFloat(keyTestSize, d.Training.TestSize),
			Seed:                    int64(s.getInt(keySeed, int(d.Training.Seed))),
			UseFilters:              s.getBool(keyUseFilters, d.Training.UseFilters),
			TerminateLast:           s.getBool(keyTerminateLast, d.Training.TerminateLast),
			DevalueOthers:           s.getBool(keyDevalueOthers, d.Training.DevalueOthers),
			TrainFromFalsePositives: s.getBool(keyTrainFromFP, d.Training.TrainFromFalsePositives),
			ResetCUICount:           s.getBool(keyResetCUICount, d.Training.ResetCUICount),
		},
		Inference: domain.InferenceSettings{
			Workers:              s.getInt(keyWorkers, d.Inference.Workers),
			BatchSizeChars:       s.getInt(keyBatchSizeChars, d.Inference.BatchSizeChars),
			OutSplitSizeChars:    s.getInt(keyOutSplitSizeChars, d.Inference.OutSplitSizeChars),
			MinFreeMemory:        s.getFloat(keyMinFreeMemory, d.Inference.MinFreeMemory),
			SeparateNNComponents: s.getBool(keySeparateNN, d.Inference.SeparateNNComponents),
			Checkpoint:           s.getCheckpoint(d.Inference.Checkpoint),
			CheckpointDir:        s.configStore.GetString(keyCheckpointDir),
			MetaClassifiers:      s.configStore.GetStringSlice(keyMetaClassifiers),
		},
		Output: domain.OutputSettings{
			IncludeText: s.getBool(keyOutputIncludeText, d.Output.IncludeText),
			OnlyCUI:     s.getBool(keyOutputOnlyCUI, d.Output.OnlyCUI),
			AddlInfo:    s.configStore.GetStringSlice(keyOutputAddlInfo),
			Format:      s.getFormat(d.Output.Format),
		},
	}

	return settings, nil
}

// Save persists application settings.
func (s *SettingsService) Save(settings *domain.AppSettings) error {
	if settings == nil {
		return fmt.Errorf("%w: nil settings", domain.ErrInvalidInput)
	}

	values := []struct {
		key   string
		value any
	}{
		{keyFullUnlink, settings.General.FullUnlink},
		{keyShowNested, settings.General.ShowNestedEntities},
		{keyVerbose, settings.General.Verbose},
		{keyMaxDocLength, settings.Preprocessing.MaxDocumentLength},
		{keyMinNameLength, settings.Preprocessing.MinNameLength},
		{keyFilters, nonNil(settings.Linking.Filters)},
		{keySimilarity, settings.Linking.SimilarityThreshold},
		{keyContextWindow, settings.Linking.ContextWindow},
		{keyLearningRate, settings.Linking.LearningRate},
		{keyNEpochs, settings.Training.NEpochs},
		{keyPrintStats, settings.Training.PrintStats},
		{keyTestSize, settings.Training.TestSize},
		{keySeed, settings.Training.Seed},
		{keyUseFilters, settings.Training.UseFilters},
		{keyTerminateLast, settings.Training.TerminateLast},
		{keyDevalueOthers, settings.Training.DevalueOthers},
		{keyTrainFromFP, settings.Training.TrainFromFalsePositives},
		{keyResetCUICount, settings.Training.ResetCUICount},
		{keyWorkers, settings.Inference.Workers},
		{keyBatchSizeChars, settings.Inference.BatchSizeChars},
		{keyOutSplitSizeChars, settings.Inference.OutSplitSizeChars},
		{keyMinFreeMemory, settings.Inference.MinFreeMemory},
		{keySeparateNN, settings.Inference.SeparateNNComponents},
		{keyCheckpoint, settings.Inference.Checkpoint.String()},
		{keyCheckpointDir, settings.Inference.CheckpointDir},
		{keyMetaClassifiers, nonNil(settings.Inference.MetaClassifiers)},
		{keyOutputIncludeText, settings.Output.IncludeText},
		{keyOutputOnlyCUI, settings.Output.OnlyCUI},
		{keyOutputAddlInfo, nonNil(settings.Output.AddlInfo)},
		{keyOutputFormat, settings.Output.Format.String()},
	}
	for _, v := range values {
		if err := s.configStore.Set(v.key, v.value); err != nil {
			return fmt.Errorf("save %s: %w", v.key, err)
		}
	}
	return nil
}

// SetCheckpoint selects the checkpoint backend and its directory.
func (s *SettingsService) SetCheckpoint(backend domain.CheckpointBackend, dir string) error {
	if !backend.IsValid() {
		return fmt.Errorf("%w: invalid checkpoint backend: %s", domain.ErrInvalidInput, backend)
	}
	if backend != domain.CheckpointNone && dir == "" {
		return fmt.Errorf("%w: checkpoint directory required for %s", domain.ErrInvalidInput, backend)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}
	settings.Inference.Checkpoint = backend
	settings.Inference.CheckpointDir = dir
	return s.Save(settings)
}

// SetWorkers sets the bulk inference worker count.
func (s *SettingsService) SetWorkers(n int) error {
	if n < 1 {
		return domain.ErrInvalidWorkerCount
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}
	settings.Inference.Workers = n
	return s.Save(settings)
}

// Validate checks the stored settings, including values Get would have
// silently replaced with defaults.
func (s *SettingsService) Validate() error {
	if v := s.configStore.GetString(keyCheckpoint); v != "" && !domain.CheckpointBackend(v).IsValid() {
		return fmt.Errorf("%w: invalid checkpoint backend: %s", domain.ErrInvalidInput, v)
	}
	if v := s.configStore.GetString(keyOutputFormat); v != "" && !domain.OutputFormat(v).IsValid() {
		return fmt.Errorf("%w: invalid output format: %s", domain.ErrInvalidInput, v)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}
	return settings.Validate()
}

// ClassifierConfig returns the classifiers.<name>.* table with the
// prefix stripped, or nil when nothing is configured.
func (s *SettingsService) ClassifierConfig(name string) map[string]any {
	prefix := classifierPrefix + name + "."
	var cfg map[string]any
	for _, key := range s.configStore.Keys() {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		if cfg == nil {
			cfg = make(map[string]any)
		}
		cfg[strings.TrimPrefix(key, prefix)], _ = s.configStore.Get(key)
	}
	return cfg
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

// Helper methods for reading config with defaults.

func (s *SettingsService) getInt(key string, defaultVal int) int {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetInt(key)
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetFloat(key)
}

func (s *SettingsService) getBool(key string, defaultVal bool) bool {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetBool(key)
}

func (s *SettingsService) getCheckpoint(defaultVal domain.CheckpointBackend) domain.CheckpointBackend {
	backend := domain.CheckpointBackend(s.configStore.GetString(keyCheckpoint))
	if !backend.IsValid() {
		return defaultVal
	}
	return backend
}

func (s *SettingsService) getFormat(defaultVal domain.OutputFormat) domain.OutputFormat {
	format := domain.OutputFormat(s.configStore.GetString(keyOutputFormat))
	if !format.IsValid() {
		return defaultVal
	}
	return format
}

// nonNil keeps TOML from dropping an empty list.
func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
