package domain

import (
	"errors"
	"fmt"
	"slices"
)

const unknownDescription = "Unknown"

// CheckpointBackend selects where bulk inference shards and the cursor live.
type CheckpointBackend string

// Available checkpoint backends.
const (
	// CheckpointNone disables checkpointing entirely.
	CheckpointNone CheckpointBackend = "none"

	// CheckpointFile writes numbered shard files and a cursor file to a directory.
	CheckpointFile CheckpointBackend = "file"

	// CheckpointSQLite keeps shards and the cursor in a single SQLite database.
	CheckpointSQLite CheckpointBackend = "sqlite"
)

// IsValid returns true if the backend is recognised.
func (b CheckpointBackend) IsValid() bool {
	switch b {
	case CheckpointNone, CheckpointFile, CheckpointSQLite:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (b CheckpointBackend) String() string {
	return string(b)
}

// Description returns a human-readable description of the backend.
func (b CheckpointBackend) Description() string {
	switch b {
	case CheckpointNone:
		return "None (results kept in memory only)"
	case CheckpointFile:
		return "File (msgpack shards + cursor in a directory)"
	case CheckpointSQLite:
		return "SQLite (shards + cursor in one database)"
	default:
		return unknownDescription
	}
}

// AllCheckpointBackends returns all available checkpoint backends.
func AllCheckpointBackends() []CheckpointBackend {
	return []CheckpointBackend{CheckpointNone, CheckpointFile, CheckpointSQLite}
}

// OutputFormat selects the encoding of annotation output written by the CLI.
type OutputFormat string

// Available output formats.
const (
	OutputJSON OutputFormat = "json"
	OutputYAML OutputFormat = "yaml"
)

// IsValid returns true if the format is recognised.
func (f OutputFormat) IsValid() bool {
	return f == OutputJSON || f == OutputYAML
}

// String returns the string representation.
func (f OutputFormat) String() string {
	return string(f)
}

// GeneralSettings holds model-wide behaviour.
type GeneralSettings struct {
	// FullUnlink removes a name from every concept it links to on unlink.
	FullUnlink bool

	// ShowNestedEntities includes overlapping spans in annotation output.
	ShowNestedEntities bool

	// Verbose enables debug and info logging.
	Verbose bool
}

// PreprocessingSettings holds text preparation limits.
type PreprocessingSettings struct {
	// MaxDocumentLength trims longer texts to this many characters.
	MaxDocumentLength int

	// MinNameLength is the shortest surface form the recogniser will match.
	MinNameLength int
}

// LinkingSettings holds concept linking behaviour.
type LinkingSettings struct {
	// Filters is the model-wide CUI allow-list. Empty allows everything.
	Filters []string

	// SimilarityThreshold is the minimum context similarity to keep an
	// ambiguous link.
	SimilarityThreshold float64

	// ContextWindow is the number of tokens either side used as context.
	ContextWindow int

	// LearningRate scales context vector updates.
	LearningRate float64
}

// TrainingSettings holds supervised training defaults.
type TrainingSettings struct {
	NEpochs                 int
	PrintStats              int
	TestSize                float64
	Seed                    int64
	UseFilters              bool
	TerminateLast           bool
	DevalueOthers           bool
	TrainFromFalsePositives bool
	ResetCUICount           bool
}

// InferenceSettings holds bulk inference behaviour.
type InferenceSettings struct {
	// Workers is the number of parallel annotation workers.
	Workers int

	// BatchSizeChars is the character budget of one outer batch.
	BatchSizeChars int

	// OutSplitSizeChars is the annotated character volume that triggers a
	// checkpoint. Zero disables intermediate shards.
	OutSplitSizeChars int

	// MinFreeMemory is the available memory ratio below which workers stop.
	MinFreeMemory float64

	// SeparateNNComponents runs meta classifiers once over merged results.
	SeparateNNComponents bool

	// Checkpoint selects the checkpoint backend.
	Checkpoint CheckpointBackend

	// CheckpointDir is where file and sqlite checkpoints are kept.
	CheckpointDir string

	// MetaClassifiers names the meta classifiers to attach, e.g. negation.
	MetaClassifiers []string
}

// OutputSettings holds annotation output shape.
type OutputSettings struct {
	// IncludeText adds the source text to each output.
	IncludeText bool

	// OnlyCUI reduces each entity to its CUI.
	OnlyCUI bool

	// AddlInfo lists extra concept fields copied into each entity.
	AddlInfo []string

	// Format is the encoding used when writing output files.
	Format OutputFormat
}

// AppSettings holds all application settings.
type AppSettings struct {
	General       GeneralSettings
	Preprocessing PreprocessingSettings
	Linking       LinkingSettings
	Training      TrainingSettings
	Inference     InferenceSettings
	Output        OutputSettings
}

// DefaultAppSettings returns settings with sensible defaults.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		General: GeneralSettings{},
		Preprocessing: PreprocessingSettings{
			MaxDocumentLength: 1_000_000,
			MinNameLength:     2,
		},
		Linking: LinkingSettings{
			SimilarityThreshold: 0.25,
			ContextWindow:       9,
			LearningRate:        0.1,
		},
		Training: TrainingSettings{
			NEpochs:       1,
			PrintStats:    0,
			TestSize:      0,
			Seed:          42,
			UseFilters:    false,
			ResetCUICount: false,
		},
		Inference: InferenceSettings{
			Workers:              2,
			BatchSizeChars:       1_000_000,
			OutSplitSizeChars:    0,
			MinFreeMemory:        0.1,
			SeparateNNComponents: true,
			Checkpoint:           CheckpointNone,
		},
		Output: OutputSettings{
			Format: OutputJSON,
		},
	}
}

// Validate reports every invalid field at once.
func (s AppSettings) Validate() error {
	var errs []error
	if s.Preprocessing.MaxDocumentLength <= 0 {
		errs = append(errs, fmt.Errorf("%w: preprocessing.max_document_length must be positive", ErrInvalidInput))
	}
	if s.Linking.SimilarityThreshold < 0 || s.Linking.SimilarityThreshold > 1 {
		errs = append(errs, fmt.Errorf("%w: linking.similarity_threshold must be in [0,1]", ErrInvalidInput))
	}
	if s.Training.NEpochs < 1 {
		errs = append(errs, fmt.Errorf("%w: training.nepochs must be at least 1", ErrInvalidInput))
	}
	if s.Training.TestSize < 0 || s.Training.TestSize >= 1 {
		errs = append(errs, fmt.Errorf("%w: training.test_size must be in [0,1)", ErrInvalidInput))
	}
	if s.Inference.Workers < 1 {
		errs = append(errs, ErrInvalidWorkerCount)
	}
	if s.Inference.BatchSizeChars < 1 {
		errs = append(errs, ErrInvalidBatchBudget)
	}
	if s.Inference.MinFreeMemory < 0 || s.Inference.MinFreeMemory > 1 {
		errs = append(errs, fmt.Errorf("%w: inference.min_free_memory must be in [0,1]", ErrInvalidInput))
	}
	if !s.Inference.Checkpoint.IsValid() {
		errs = append(errs, fmt.Errorf("%w: unknown checkpoint backend %q", ErrInvalidInput, s.Inference.Checkpoint))
	}
	if s.Inference.Checkpoint != CheckpointNone && s.Inference.CheckpointDir == "" {
		errs = append(errs, fmt.Errorf("%w: inference.checkpoint_dir required for %s checkpoints",
			ErrInvalidInput, s.Inference.Checkpoint))
	}
	if !s.Output.Format.IsValid() {
		errs = append(errs, fmt.Errorf("%w: unknown output format %q", ErrInvalidInput, s.Output.Format))
	}
	return errors.Join(errs...)
}

// HasAddlInfo reports whether the named extra field was requested.
func (o OutputSettings) HasAddlInfo(field string) bool {
	return slices.Contains(o.AddlInfo, field)
}
