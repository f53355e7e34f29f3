package domain

// ResetTrainCount is the value concept training counters are reset to, so
// subsequent updates behave as if the concept were freshly introduced.
const ResetTrainCount = 10

// EvalOptions controls one evaluation pass.
type EvalOptions struct {
	// Epoch labels the report.
	Epoch int

	// UseProjectFilters restricts each project to its CUI and type-id lists.
	UseProjectFilters bool

	// UseOverlaps matches against nested spans as well as top-level ones.
	UseOverlaps bool

	// UseCUIDocLimit restricts each document to the CUIs annotated in it.
	UseCUIDocLimit bool

	// UseGroups maps CUIs to their group before matching.
	UseGroups bool

	// ExtraCUIFilter is intersected into every project and document filter.
	ExtraCUIFilter []string
}

// TrainOptions controls supervised training.
type TrainOptions struct {
	NEpochs int

	// PrintStats evaluates on the test set every PrintStats epochs, and
	// once before training. Zero disables evaluation.
	PrintStats int

	// UseFilters applies project filters while training.
	UseFilters bool

	// TerminateLast defers unlinking killed names until all epochs finish.
	TerminateLast bool

	// NeverTerminate skips unlinking killed names entirely.
	NeverTerminate bool

	UseOverlaps    bool
	UseCUIDocLimit bool
	UseGroups      bool

	// TestSize is the fraction of each project held out for evaluation.
	// Zero evaluates on the training set.
	TestSize float64

	// Seed makes the train/test split reproducible.
	Seed int64

	// DevalueOthers trains every other CUI sharing a name negatively
	// whenever a positive example is seen.
	DevalueOthers bool

	// TrainFromFalsePositives trains each predicted false positive negatively.
	TrainFromFalsePositives bool

	// ResetCUICount resets training counters of every CUI in the train set.
	ResetCUICount bool

	ExtraCUIFilter []string
}

// EvalOptions returns the evaluation options implied by training options.
func (o TrainOptions) EvalOptions(epoch int) EvalOptions {
	return EvalOptions{
		Epoch:             epoch,
		UseProjectFilters: o.UseFilters,
		UseOverlaps:       o.UseOverlaps,
		UseCUIDocLimit:    o.UseCUIDocLimit,
		UseGroups:         o.UseGroups,
		ExtraCUIFilter:    o.ExtraCUIFilter,
	}
}

// UnsupervisedOptions controls plain self-supervised training over text.
type UnsupervisedOptions struct {
	// FineTune keeps existing training state. When false it is reset first.
	FineTune bool

	// ProgressEvery logs progress after this many lines. Zero disables it.
	ProgressEvery int
}

// ConceptTraining describes one online training update for a concept.
type ConceptTraining struct {
	CUI  string
	Name string

	// Doc and the span locate the mention in the annotated document.
	Doc   *AnnotatedDocument
	Start int
	End   int

	// Negative trains the mention away from the concept.
	Negative bool

	// DevalueOthers trains other concepts sharing the name negatively.
	DevalueOthers bool

	// DoAddConcept creates the concept when it is unknown.
	DoAddConcept bool

	// TypeIDs and PreferredName are applied only when the concept is created.
	TypeIDs       []string
	PreferredName string
}

// BulkOptions controls bulk inference.
type BulkOptions struct {
	Workers              int
	BatchSizeChars       int
	OutSplitSizeChars    int
	MinFreeMemory        float64
	SeparateNNComponents bool

	// OnlyCUI reduces each entity in the output to its CUI.
	OnlyCUI bool

	// AddlInfo names extra concept fields to copy into each entity.
	AddlInfo []string

	// IncludeText adds the source text to each output.
	IncludeText bool
}

// Checkpointing reports whether intermediate shards are written.
func (o BulkOptions) Checkpointing() bool {
	return o.OutSplitSizeChars > 0
}
