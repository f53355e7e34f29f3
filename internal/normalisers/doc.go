// Package normalisers holds the text extractors used when a corpus is a
// directory of notes. Each extractor turns one file format into the plain
// text that is annotated.
//
// Extractors are registered with a Registry at startup; the registry picks
// the highest-priority extractor for each file extension.
package normalisers
