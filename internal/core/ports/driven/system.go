package driven

// MemoryProbe reports system memory for worker admission.
type MemoryProbe interface {
	// Memory returns available and total bytes.
	Memory() (available, total uint64, err error)
}

// InferenceMetrics records bulk inference progress.
// Implementations must be safe for concurrent use.
type InferenceMetrics interface {
	DocumentAnnotated(chars int)
	DocumentFailed()
	BatchFailed()
	WorkerStopped(reason string)
	ShardWritten(docs int)
}
