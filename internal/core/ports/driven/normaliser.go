package driven

// TextExtractor turns the bytes of a corpus file into the plain text that
// is annotated. Entity offsets refer to the extracted text.
type TextExtractor interface {
	// Extensions returns the lower-case file extensions handled, with the
	// leading dot.
	Extensions() []string

	// Priority returns the selection priority (higher = preferred).
	// Format-specific extractors return 50-89, fallbacks 1-9.
	Priority() int

	// Extract returns the plain text of data.
	Extract(data []byte) (string, error)
}

// ExtractorSet selects the extractor for a corpus file.
type ExtractorSet interface {
	// For returns the extractor for path, or false when the file is not
	// part of the corpus.
	For(path string) (TextExtractor, bool)
}
