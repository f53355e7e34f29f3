// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - Pipeline: Annotates one text with concepts
//   - ConceptStore: Concept database (names, CUIs, groups, train counts)
//   - NameNormaliser: Prepares surface forms into concept database keys
//   - ContextTrainer: Online concept training
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - BulkPipeline: Batched annotation. Without it texts are annotated one by one.
//   - MetaClassifier: Auxiliary entity classifiers. Without them meta_anns stay empty.
//   - CheckpointStore: Resumable bulk inference. Without it results live in memory only.
//   - MemoryProbe: Memory-aware worker admission. Without it workers never stop early.
//   - InferenceMetrics: Bulk inference counters.
//   - DatasetLoader: Trainer export parsing, used by the CLI.
//   - TextExtractor, ExtractorSet: Plain text from note files in corpus directories.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
