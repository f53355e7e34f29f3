// Package file provides a directory-backed checkpoint store.
//
// Layout:
//
//	<dir>/cursor.msgpack     the resumable cursor
//	<dir>/part_<N>.msgpack   one file per flushed result shard
//
// Every file is written to a temporary sibling and renamed into place, so
// a crash leaves either the previous or the new version, never a torn one.
package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/meng-ma-biomedical-AI/MedCAT/internal/core/domain"
	"github.com/meng-ma-biomedical-AI/MedCAT/internal/core/ports/driven"
)

const (
	cursorFile  = "cursor.msgpack"
	shardPrefix = "part_"
	shardSuffix = ".msgpack"

	filePerm = 0o600
	dirPerm  = 0o700
)

// Ensure CheckpointStore implements the interface.
var _ driven.CheckpointStore = (*CheckpointStore)(nil)

// CheckpointStore keeps a bulk inference checkpoint in a directory.
type CheckpointStore struct {
	dir string
}

// NewCheckpointStore creates the directory if needed and returns a store
// rooted there.
func NewCheckpointStore(dir string) (*CheckpointStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("%w: checkpoint directory is empty", domain.ErrInvalidInput)
	}
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return nil, fmt.Errorf("create checkpoint directory: %w", err)
	}
	return &CheckpointStore{dir: dir}, nil
}

// Dir returns the store's directory.
func (s *CheckpointStore) Dir() string {
	return s.dir
}

// LoadCursor reads the cursor file.
func (s *CheckpointStore) LoadCursor(ctx context.Context) (*domain.Checkpoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.dir, cursorFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read cursor: %w", err)
	}
	var cp domain.Checkpoint
	if err := msgpack.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("%w: cursor: %w", domain.ErrCheckpointCorrupt, err)
	}
	return &cp, nil
}

// SaveShard writes part_<N>.msgpack, replacing an existing file.
func (s *CheckpointStore) SaveShard(ctx context.Context, shard domain.ResultShard) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if shard.Part < 0 {
		return fmt.Errorf("%w: negative shard part %d", domain.ErrInvalidInput, shard.Part)
	}
	data, err := msgpack.Marshal(&shard)
	if err != nil {
		return fmt.Errorf("encode shard %d: %w", shard.Part, err)
	}
	if err := s.writeAtomic(shardName(shard.Part), data); err != nil {
		return fmt.Errorf("write shard %d: %w", shard.Part, err)
	}
	return nil
}

// SaveCursor replaces the cursor file.
func (s *CheckpointStore) SaveCursor(ctx context.Context, cp domain.Checkpoint) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := msgpack.Marshal(&cp)
	if err != nil {
		return fmt.Errorf("encode cursor: %w", err)
	}
	if err := s.writeAtomic(cursorFile, data); err != nil {
		return fmt.Errorf("write cursor: %w", err)
	}
	return nil
}

// LoadResults merges every shard file in ascending part order.
func (s *CheckpointStore) LoadResults(ctx context.Context) (map[string]domain.AnnotationOutput, error) {
	parts, err := s.parts()
	if err != nil {
		return nil, err
	}

	out := make(map[string]domain.AnnotationOutput)
	for _, p := range parts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		shard, err := s.readShard(p)
		if err != nil {
			return nil, err
		}
		maps.Copy(out, shard.Results)
	}
	return out, nil
}

// Clear removes the cursor and all shard files. Other files in the
// directory are left alone.
func (s *CheckpointStore) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	parts, err := s.parts()
	if err != nil {
		return err
	}
	var errs []error
	for _, p := range parts {
		if err := os.Remove(filepath.Join(s.dir, shardName(p))); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	if err := os.Remove(filepath.Join(s.dir, cursorFile)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (s *CheckpointStore) readShard(part int) (*domain.ResultShard, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, shardName(part)))
	if err != nil {
		return nil, fmt.Errorf("read shard %d: %w", part, err)
	}
	var shard domain.ResultShard
	if err := msgpack.Unmarshal(data, &shard); err != nil {
		return nil, fmt.Errorf("%w: shard %d: %w", domain.ErrCheckpointCorrupt, part, err)
	}
	return &shard, nil
}

// parts lists the shard numbers present on disk, ascending.
func (s *CheckpointStore) parts() ([]int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list checkpoint directory: %w", err)
	}
	var parts []int
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if p, ok := parseShardName(e.Name()); ok {
			parts = append(parts, p)
		}
	}
	sort.Ints(parts)
	return parts, nil
}

func (s *CheckpointStore) writeAtomic(name string, data []byte) error {
	tmp, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	_ = os.Chmod(tmpPath, filePerm)
	if err := os.Rename(tmpPath, filepath.Join(s.dir, name)); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}

func shardName(part int) string {
	return shardPrefix + strconv.Itoa(part) + shardSuffix
}

func parseShardName(name string) (int, bool) {
	if !strings.HasPrefix(name, shardPrefix) || !strings.HasSuffix(name, shardSuffix) {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, shardPrefix), shardSuffix))
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
