// Package history keeps snapshots of the live ruleset in an embedded SQLite
// database so that an activation can be rolled back.
//
// Snapshots store the ruleset in save format, which is what iptables-restore
// consumes, together with a few counters for listing.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"grimm.is/bbfw/internal/logging"
	"grimm.is/bbfw/internal/ruleset"
)

// ErrNotFound is returned when no snapshot matches an id.
var ErrNotFound = errors.New("snapshot not found")

// ErrAmbiguous is returned when an id prefix matches several snapshots.
var ErrAmbiguous = errors.New("ambiguous snapshot id")

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("history store closed")

// Snapshot is a saved copy of a ruleset.
type Snapshot struct {
	ID        string
	CreatedAt time.Time
	Name      string // ruleset name, e.g. "live"
	Operation string // command that triggered the snapshot
	Content   string // save format dump
	Tables    int
	Chains    int
	Rules     int
}

// ShortID returns the first eight characters of the id.
func (s Snapshot) ShortID() string {
	if len(s.ID) > 8 {
		return s.ID[:8]
	}
	return s.ID
}

// NewSnapshot builds a snapshot of rs. content is the save format rendering
// of the same ruleset.
func NewSnapshot(rs *ruleset.Ruleset, operation, content string) Snapshot {
	st := rs.Stats()
	return Snapshot{
		Name:      rs.Name,
		Operation: operation,
		Content:   content,
		Tables:    st.Tables,
		Chains:    st.Chains,
		Rules:     st.Rules,
	}
}

// Options configures the store.
type Options struct {
	// Path is the database file, or ":memory:".
	Path string
	// BusyTimeout bounds waits on a locked database.
	BusyTimeout time.Duration
	// Now overrides the clock.
	Now func() time.Time
}

// DefaultOptions returns options for the database at path.
func DefaultOptions(path string) Options {
	return Options{
		Path:        path,
		BusyTimeout: 5 * time.Second,
		Now:         time.Now,
	}
}

// Store is the snapshot database.
type Store struct {
	mu     sync.Mutex
	db     *sql.DB
	now    func() time.Time
	closed bool
	log    *logging.Logger
}

// Open opens (creating if needed) the snapshot database.
func Open(opts Options) (*Store, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("history: empty database path")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	dsn := opts.Path
	if dsn != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dsn), 0750); err != nil {
			return nil, fmt.Errorf("failed to create history dir: %w", err)
		}
		dsn += fmt.Sprintf("?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)", opts.BusyTimeout.Milliseconds())
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open history db: %w", err)
	}
	// A single connection keeps ":memory:" databases shared across queries.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping history db: %w", err)
	}

	s := &Store{db: db, now: opts.Now, log: logging.WithComponent("history")}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS snapshots (
			id TEXT PRIMARY KEY,
			created_at INTEGER NOT NULL,
			name TEXT NOT NULL,
			operation TEXT NOT NULL,
			content TEXT NOT NULL,
			tables INTEGER NOT NULL DEFAULT 0,
			chains INTEGER NOT NULL DEFAULT 0,
			rules INTEGER NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS idx_snapshots_created ON snapshots(created_at);
	`)
	if err != nil {
		return fmt.Errorf("failed to initialize history schema: %w", err)
	}
	return nil
}

// Record stores snap, assigning its id and creation time.
func (s *Store) Record(ctx context.Context, snap Snapshot) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Snapshot{}, ErrClosed
	}

	snap.ID = uuid.NewString()
	snap.CreatedAt = s.now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO snapshots (id, created_at, name, operation, content, tables, chains, rules)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, snap.ID, snap.CreatedAt.UnixNano(), snap.Name, snap.Operation, snap.Content,
		snap.Tables, snap.Chains, snap.Rules)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to record snapshot: %w", err)
	}

	s.log.Info("snapshot recorded", "id", snap.ShortID(), "operation", snap.Operation, "rules", snap.Rules)
	return snap, nil
}

const selectColumns = `SELECT id, created_at, name, operation, content, tables, chains, rules FROM snapshots`

// List returns snapshots, newest first. A limit of zero or less returns all.
func (s *Store) List(ctx context.Context, limit int) ([]Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	query := selectColumns + ` ORDER BY created_at DESC, rowid DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

// Get returns the snapshot whose id is id or starts with id.
func (s *Store) Get(ctx context.Context, id string) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Snapshot{}, ErrClosed
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return Snapshot{}, ErrNotFound
	}

	rows, err := s.db.QueryContext(ctx, selectColumns+` WHERE id = ? OR id LIKE ? ORDER BY created_at DESC LIMIT 2`,
		id, stripWildcards(id)+"%")
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to get snapshot: %w", err)
	}
	defer rows.Close()

	var found []Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return Snapshot{}, err
		}
		if snap.ID == id {
			return snap, nil
		}
		found = append(found, snap)
	}
	if err := rows.Err(); err != nil {
		return Snapshot{}, err
	}

	switch len(found) {
	case 0:
		return Snapshot{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	case 1:
		return found[0], nil
	default:
		return Snapshot{}, fmt.Errorf("%w: %s", ErrAmbiguous, id)
	}
}

// Latest returns the newest snapshot.
func (s *Store) Latest(ctx context.Context) (Snapshot, error) {
	list, err := s.List(ctx, 1)
	if err != nil {
		return Snapshot{}, err
	}
	if len(list) == 0 {
		return Snapshot{}, ErrNotFound
	}
	return list[0], nil
}

// Prune deletes all but the keep newest snapshots and returns how many were
// removed.
func (s *Store) Prune(ctx context.Context, keep int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	if keep < 0 {
		keep = 0
	}

	result, err := s.db.ExecContext(ctx, `
		DELETE FROM snapshots WHERE id NOT IN (
			SELECT id FROM snapshots ORDER BY created_at DESC, rowid DESC LIMIT ?
		)
	`, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune snapshots: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.Debug("pruned snapshots", "removed", n, "kept", keep)
	}
	return n, nil
}

// Close closes the database. It is safe to call more than once.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row scanner) (Snapshot, error) {
	var snap Snapshot
	var created int64
	if err := row.Scan(&snap.ID, &created, &snap.Name, &snap.Operation, &snap.Content,
		&snap.Tables, &snap.Chains, &snap.Rules); err != nil {
		return Snapshot{}, fmt.Errorf("failed to scan snapshot: %w", err)
	}
	snap.CreatedAt = time.Unix(0, created).UTC()
	return snap, nil
}

func stripWildcards(s string) string {
	r := strings.NewReplacer(`%`, ``, `_`, ``)
	return r.Replace(s)
}
