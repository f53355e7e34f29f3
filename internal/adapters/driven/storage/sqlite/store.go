package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/meng-ma-biomedical-AI/MedCAT/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/meng-ma-biomedical-AI/MedCAT/internal/core/domain"
	"github.com/meng-ma-biomedical-AI/MedCAT/internal/core/ports/driven"
)

// DBName is the database file created inside the checkpoint directory.
const DBName = "checkpoint.db"

// Store is a SQLite-backed checkpoint store.
type Store struct {
	db   *sql.DB
	path string
}

var _ driven.CheckpointStore = (*Store)(nil)

// NewStore opens (creating if needed) the checkpoint database in dataDir.
func NewStore(dataDir string) (*Store, error) {
	if strings.TrimSpace(dataDir) == "" {
		return nil, fmt.Errorf("%w: checkpoint directory is empty", domain.ErrInvalidInput)
	}

	// Ensure directory exists
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, DBName)

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	// Run migrations
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys fs.FS) error {
	// Ensure schema_migrations table exists
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	// Get current version
	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	// Find all up migrations
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	// Sort and run migrations
	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_checkpoints.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue // Skip files that don't match pattern
		}

		if version <= currentVersion {
			continue // Already applied
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		if err := s.apply(version, string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
	}

	return nil
}

// apply runs one migration and records its version in a single transaction.
func (s *Store) apply(version int, script string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.Exec(script); err != nil {
		return err
	}
	if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
		return err
	}
	return tx.Commit()
}

// ==================== Checkpoint Store ====================

// LoadCursor returns the saved cursor or domain.ErrNotFound.
func (s *Store) LoadCursor(ctx context.Context) (*domain.Checkpoint, error) {
	row := s.db.QueryRowContext(ctx, `SELECT payload FROM checkpoint_cursor WHERE id = 1`)

	var payload []byte
	if err := row.Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning cursor: %w", err)
	}

	var cp domain.Checkpoint
	if err := msgpack.Unmarshal(payload, &cp); err != nil {
		return nil, fmt.Errorf("%w: cursor: %w", domain.ErrCheckpointCorrupt, err)
	}
	return &cp, nil
}

// SaveShard stores or replaces a shard.
func (s *Store) SaveShard(ctx context.Context, shard domain.ResultShard) error {
	payload, err := msgpack.Marshal(&shard)
	if err != nil {
		return fmt.Errorf("encoding shard %d: %w", shard.Part, err)
	}
	createdAt := shard.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO checkpoint_shards (part, run_id, documents, payload, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(part) DO UPDATE SET
			run_id = excluded.run_id,
			documents = excluded.documents,
			payload = excluded.payload,
			created_at = excluded.created_at
	`, shard.Part, shard.RunID, len(shard.Results), payload, createdAt.UTC())

	if err != nil {
		return fmt.Errorf("saving shard %d: %w", shard.Part, err)
	}
	return nil
}

// SaveCursor stores or replaces the cursor.
func (s *Store) SaveCursor(ctx context.Context, cp domain.Checkpoint) error {
	payload, err := msgpack.Marshal(&cp)
	if err != nil {
		return fmt.Errorf("encoding cursor: %w", err)
	}
	updatedAt := cp.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO checkpoint_cursor (id, run_id, next_part, payload, updated_at)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			run_id = excluded.run_id,
			next_part = excluded.next_part,
			payload = excluded.payload,
			updated_at = excluded.updated_at
	`, cp.RunID, cp.NextPart, payload, updatedAt.UTC())

	if err != nil {
		return fmt.Errorf("saving cursor: %w", err)
	}
	return nil
}

// LoadResults merges every shard in ascending part order.
func (s *Store) LoadResults(ctx context.Context) (map[string]domain.AnnotationOutput, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT part, payload FROM checkpoint_shards ORDER BY part`)
	if err != nil {
		return nil, fmt.Errorf("querying shards: %w", err)
	}
	defer rows.Close()

	out := make(map[string]domain.AnnotationOutput)
	for rows.Next() {
		var part int
		var payload []byte
		if err := rows.Scan(&part, &payload); err != nil {
			return nil, fmt.Errorf("scanning shard: %w", err)
		}
		var shard domain.ResultShard
		if err := msgpack.Unmarshal(payload, &shard); err != nil {
			return nil, fmt.Errorf("%w: shard %d: %w", domain.ErrCheckpointCorrupt, part, err)
		}
		for id, res := range shard.Results {
			out[id] = res
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating shards: %w", err)
	}

	return out, nil
}

// ShardCount returns the number of stored shards and the documents they hold.
func (s *Store) ShardCount(ctx context.Context) (shards, documents int, err error) {
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(*), COALESCE(SUM(documents), 0) FROM checkpoint_shards`)
	if err := row.Scan(&shards, &documents); err != nil {
		return 0, 0, fmt.Errorf("counting shards: %w", err)
	}
	return shards, documents, nil
}

// Clear removes the cursor and every shard.
func (s *Store) Clear(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning clear: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, "DELETE FROM checkpoint_shards"); err != nil {
		return fmt.Errorf("deleting shards: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM checkpoint_cursor"); err != nil {
		return fmt.Errorf("deleting cursor: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing clear: %w", err)
	}
	return nil
}
