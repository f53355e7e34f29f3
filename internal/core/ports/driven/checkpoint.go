package driven

import (
	"context"

	"github.com/meng-ma-biomedical-AI/MedCAT/internal/core/domain"
)

// CheckpointStore persists bulk inference progress so a run can resume.
type CheckpointStore interface {
	// LoadCursor returns the last saved cursor or domain.ErrNotFound.
	LoadCursor(ctx context.Context) (*domain.Checkpoint, error)

	// SaveShard writes one numbered shard. Writing an existing part replaces it.
	SaveShard(ctx context.Context, shard domain.ResultShard) error

	// SaveCursor replaces the cursor atomically.
	SaveCursor(ctx context.Context, cp domain.Checkpoint) error

	// LoadResults merges every saved shard, later parts winning.
	LoadResults(ctx context.Context) (map[string]domain.AnnotationOutput, error)

	// Clear removes the cursor and all shards.
	Clear(ctx context.Context) error
}
