// Package domain defines the core business entities for medcat.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Dataset, Project, Document, GoldAnnotation: human-curated trainer exports
//   - Entity, AnnotatedDocument: what the annotation pipeline predicts
//   - AnnotationOutput: the serialisable per-document inference result
//   - FilterContext: the shared CUI allow-set with scoped snapshot/restore
//   - StatsReport: confusion counts and examples from an evaluation
//   - Item, Batch: character-budgeted units of bulk inference
//   - Checkpoint, ResultShard: resumable bulk inference state
//   - AppSettings: typed configuration with defaults
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
