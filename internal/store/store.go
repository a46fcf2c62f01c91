// Package store implements the MBTiles-compatible per-source tile store:
// schema, migrations, WAL discipline, and the tiles/misses/metadata/
// scan_progress tables.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// Generated marks how a stored tile came to exist.
type Generated int

const (
	// GeneratedOrigin is an unmodified upstream fetch.
	GeneratedOrigin Generated = 0
	// GeneratedReconstructed is a pyramid tile composed from children.
	GeneratedReconstructed Generated = 1
	// GeneratedCandidate marks a stale parent that must be regenerated
	// before it may be served as a HIT.
	GeneratedCandidate Generated = 2
)

// CheckpointMode selects a WAL checkpoint strength.
type CheckpointMode string

const (
	CheckpointPassive  CheckpointMode = "PASSIVE"
	CheckpointRestart  CheckpointMode = "RESTART"
	CheckpointTruncate CheckpointMode = "TRUNCATE"
)

// Config controls how a Store opens its backing file.
type Config struct {
	// Path to the MBTiles file. Created if missing.
	Path string
	// CheckpointInterval is how often the background checkpoint task
	// issues a PASSIVE checkpoint. Zero or negative means every 15s; the
	// background task always runs.
	CheckpointInterval time.Duration
	Logger             *slog.Logger
}

// Store owns one source's MBTiles-compatible SQLite database.
type Store struct {
	db     *sql.DB
	path   string
	log    *slog.Logger
	cancel context.CancelFunc
	done   chan struct{}

	mu sync.Mutex // serializes writer-path operations the teacher batches under one lock
}

// Open creates the schema if necessary, applies pending migrations,
// forces a RESTART+TRUNCATE checkpoint to integrate any leftover WAL
// from a previous run, and starts the background checkpoint task.
func Open(cfg Config) (*Store, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", cfg.Path, err)
	}

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: pragmas: %w", err)
	}

	if err := applyMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: migrations: %w", err)
	}

	if _, err := db.Exec("PRAGMA wal_checkpoint(RESTART)"); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: initial restart checkpoint: %w", err)
	}
	if _, err := db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: initial truncate checkpoint: %w", err)
	}

	s := &Store{
		db:   db,
		path: cfg.Path,
		log:  cfg.Logger,
		done: make(chan struct{}),
	}

	interval := cfg.CheckpointInterval
	if interval <= 0 {
		interval = 15 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go s.checkpointLoop(ctx, interval)

	return s, nil
}

// applyPragmas sets the performance/durability pragmas spec.md §4.1
// requires. page_size only takes effect on a fresh database file, so it
// is applied before any table exists.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA page_size = 4096",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA locking_mode = NORMAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA cache_size = -131072",
		"PRAGMA mmap_size = 536870912",
		"PRAGMA wal_autocheckpoint = 1000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("pragma %q: %w", p, err)
		}
	}
	return nil
}

// checkpointLoop issues a PASSIVE checkpoint on a ticker, escalating to
// RESTART when the WAL was not fully reclaimed. It is stopped by
// cancelling ctx and joined with a 2s budget from Close.
func (s *Store) checkpointLoop(ctx context.Context, interval time.Duration) {
	defer close(s.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.tickCheckpoint(); err != nil {
				s.log.Warn("checkpoint failed, will retry next tick", "path", s.path, "err", err)
			}
		}
	}
}

func (s *Store) tickCheckpoint() error {
	busy, log, checkpointed, err := s.walCheckpoint(CheckpointPassive)
	if err != nil {
		return err
	}
	if busy != 0 || log != checkpointed {
		// WAL not fully reclaimed: escalate once.
		if _, _, _, err := s.walCheckpoint(CheckpointRestart); err != nil {
			return fmt.Errorf("escalated restart checkpoint: %w", err)
		}
	}
	return nil
}

// walCheckpoint runs PRAGMA wal_checkpoint(mode) and returns its three
// result columns (busy, log frames, checkpointed frames).
func (s *Store) walCheckpoint(mode CheckpointMode) (busy, log, checkpointed int, err error) {
	row := s.db.QueryRow(fmt.Sprintf("PRAGMA wal_checkpoint(%s)", mode))
	err = row.Scan(&busy, &log, &checkpointed)
	return busy, log, checkpointed, err
}

// Checkpoint runs an explicit checkpoint, e.g. from the admin vacuum path.
func (s *Store) Checkpoint(mode CheckpointMode) error {
	_, _, _, err := s.walCheckpoint(mode)
	return err
}

// Vacuum runs VACUUM, a manual exclusive operation; callers should only
// invoke this from an admin surface, not from a hot path.
func (s *Store) Vacuum() error {
	_, err := s.db.Exec("VACUUM")
	return err
}

// DB exposes the underlying *sql.DB for packages (migrations, tests)
// that need raw access.
func (s *Store) DB() *sql.DB { return s.db }

// Close stops the checkpoint task (joined with a 2s budget) and closes
// the database.
func (s *Store) Close() error {
	if s.cancel != nil {
		s.cancel()
		select {
		case <-s.done:
		case <-time.After(2 * time.Second):
			s.log.Warn("checkpoint task did not stop within budget", "path", s.path)
		}
	}
	return s.db.Close()
}
