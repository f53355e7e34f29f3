package domain

import "time"

// Checkpoint is the resumable cursor of a bulk inference run.
type Checkpoint struct {
	RunID        string    `msgpack:"run_id"`
	AnnotatedIDs []string  `msgpack:"annotated_ids"`
	NextPart     int       `msgpack:"next_part"`
	UpdatedAt    time.Time `msgpack:"updated_at"`
}

// SkipSet returns the annotated ids as a set for the batch scheduler.
func (c *Checkpoint) SkipSet() map[string]struct{} {
	if c == nil {
		return map[string]struct{}{}
	}
	skip := make(map[string]struct{}, len(c.AnnotatedIDs))
	for _, id := range c.AnnotatedIDs {
		skip[id] = struct{}{}
	}
	return skip
}

// ResultShard is one flushed slice of bulk inference output.
type ResultShard struct {
	RunID     string                      `msgpack:"run_id"`
	Part      int                         `msgpack:"part"`
	Results   map[string]AnnotationOutput `msgpack:"results"`
	CreatedAt time.Time                   `msgpack:"created_at"`
}
