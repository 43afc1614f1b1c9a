package presencedb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"hexstride.io/internal/presence/model"
	"hexstride.io/internal/presence/tiers"
	"hexstride.io/internal/worldmap"
)

var (
	// ErrUnknownHex is returned by Ensure for a hex the world does not know.
	ErrUnknownHex = errors.New("unknown hex")
	ErrNotFound   = errors.New("presence record not found")
	ErrInvalid    = errors.New("invalid presence record")
)

// Store persists presence records keyed by (player_id, hex_id). Writes are
// upserts, so concurrent writers resolve last-writer-wins.
type Store struct {
	db    *sql.DB
	world worldmap.Lookup
	tiers *tiers.Table
}

// Tx is a store view bound to one transaction.
type Tx struct {
	tx    *sql.Tx
	store *Store
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func OpenSQLite(path string, world worldmap.Lookup, table *tiers.Table) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if world == nil || table == nil {
		return nil, fmt.Errorf("presencedb: world lookup and tier table are required")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One connection: transactions serialize every writer, including the decay batch.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, world: world, tiers: table}, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS presence (
			player_id TEXT NOT NULL,
			hex_id TEXT NOT NULL,
			presence_value INTEGER NOT NULL,
			tier_id INTEGER NOT NULL,
			decay_state TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			last_visited_at INTEGER NOT NULL,
			last_increment_at INTEGER NOT NULL,
			PRIMARY KEY (player_id, hex_id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_presence_player_visited ON presence(player_id, last_visited_at);`,
		`CREATE INDEX IF NOT EXISTS idx_presence_decay ON presence(decay_state, last_visited_at);`,
		`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1');`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// WithTx runs fn inside one transaction. Any error from fn rolls back every
// write fn made.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = sqlTx.Rollback() }()

	if err := fn(&Tx{tx: sqlTx, store: s}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, playerID, hexID string) (model.Record, bool, error) {
	return getRecord(ctx, s.db, playerID, hexID)
}

// List returns the player's records, most recently visited first.
func (s *Store) List(ctx context.Context, playerID string) ([]model.Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+recordColumns+` FROM presence
		WHERE player_id=? ORDER BY last_visited_at DESC, hex_id ASC`, playerID)
	if err != nil {
		return nil, fmt.Errorf("list presence: %w", err)
	}
	return scanRecords(rows)
}

func (s *Store) Save(ctx context.Context, r model.Record) (model.Record, error) {
	return s.save(ctx, s.db, r)
}

// Ensure returns the stored record or creates, persists and returns a new one.
func (s *Store) Ensure(ctx context.Context, playerID, hexID string, create func() model.Record) (model.Record, bool, error) {
	if !worldmap.Known(s.world, hexID) {
		return model.Record{}, false, fmt.Errorf("%w: %s", ErrUnknownHex, hexID)
	}
	var (
		out     model.Record
		created bool
	)
	err := s.WithTx(ctx, func(tx *Tx) error {
		r, ok, err := tx.Get(ctx, playerID, hexID)
		if err != nil {
			return err
		}
		if ok {
			out = r
			return nil
		}
		out, err = tx.Save(ctx, create())
		created = err == nil
		return err
	})
	if err != nil {
		return model.Record{}, false, err
	}
	return out, created, nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM presence`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (t *Tx) Get(ctx context.Context, playerID, hexID string) (model.Record, bool, error) {
	return getRecord(ctx, t.tx, playerID, hexID)
}

func (t *Tx) Save(ctx context.Context, r model.Record) (model.Record, error) {
	return t.store.save(ctx, t.tx, r)
}

// SelectStale returns up to limit decay candidates, oldest visit first.
// Capped records are exempt regardless of their current value.
func (t *Tx) SelectStale(ctx context.Context, cutoff time.Time, floor, limit int) ([]model.Record, error) {
	rows, err := t.tx.QueryContext(ctx, `SELECT `+recordColumns+` FROM presence
		WHERE decay_state != ? AND last_visited_at <= ? AND presence_value > ?
		ORDER BY last_visited_at ASC, player_id ASC, hex_id ASC
		LIMIT ?`,
		string(model.DecayCapped), cutoff.UnixMilli(), floor, limit)
	if err != nil {
		return nil, fmt.Errorf("select stale: %w", err)
	}
	return scanRecords(rows)
}

func (s *Store) save(ctx context.Context, q querier, r model.Record) (model.Record, error) {
	if r.PlayerID == "" || r.HexID == "" {
		return model.Record{}, fmt.Errorf("%w: empty key", ErrInvalid)
	}
	if r.Value < 0 || r.Value > s.tiers.Cap() {
		return model.Record{}, fmt.Errorf("%w: value %d outside [0, %d]", ErrInvalid, r.Value, s.tiers.Cap())
	}
	if !r.DecayState.Valid() {
		return model.Record{}, fmt.Errorf("%w: decay state %q", ErrInvalid, r.DecayState)
	}
	r.TierID = s.tiers.ClassifyValue(r.Value)

	_, err := q.ExecContext(ctx, `INSERT INTO presence(
			player_id,hex_id,presence_value,tier_id,decay_state,
			created_at,updated_at,last_visited_at,last_increment_at
		) VALUES(?,?,?,?,?,?,?,?,?)
		ON CONFLICT(player_id,hex_id) DO UPDATE SET
			presence_value=excluded.presence_value,
			tier_id=excluded.tier_id,
			decay_state=excluded.decay_state,
			updated_at=excluded.updated_at,
			last_visited_at=excluded.last_visited_at,
			last_increment_at=excluded.last_increment_at`,
		r.PlayerID, r.HexID, r.Value, r.TierID, string(r.DecayState),
		r.CreatedAt.UnixMilli(), r.UpdatedAt.UnixMilli(), r.LastVisitedAt.UnixMilli(), toMillis(r.LastIncrementAt),
	)
	if err != nil {
		return model.Record{}, fmt.Errorf("save presence %s/%s: %w", r.PlayerID, r.HexID, err)
	}
	out, ok, err := getRecord(ctx, q, r.PlayerID, r.HexID)
	if err != nil {
		return model.Record{}, err
	}
	if !ok {
		return model.Record{}, fmt.Errorf("%w: %s/%s after save", ErrNotFound, r.PlayerID, r.HexID)
	}
	return out, nil
}

const recordColumns = `player_id,hex_id,presence_value,tier_id,decay_state,created_at,updated_at,last_visited_at,last_increment_at`

type scanner interface {
	Scan(dest ...any) error
}

func getRecord(ctx context.Context, q querier, playerID, hexID string) (model.Record, bool, error) {
	row := q.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM presence WHERE player_id=? AND hex_id=?`, playerID, hexID)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Record{}, false, nil
	}
	if err != nil {
		return model.Record{}, false, fmt.Errorf("get presence %s/%s: %w", playerID, hexID, err)
	}
	return r, true, nil
}

func scanRecords(rows *sql.Rows) ([]model.Record, error) {
	defer rows.Close()
	var out []model.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanRecord(sc scanner) (model.Record, error) {
	var (
		r                                      model.Record
		state                                  string
		created, updated, visited, incremented int64
	)
	if err := sc.Scan(&r.PlayerID, &r.HexID, &r.Value, &r.TierID, &state, &created, &updated, &visited, &incremented); err != nil {
		return model.Record{}, err
	}
	r.DecayState = model.DecayState(state)
	r.CreatedAt = time.UnixMilli(created)
	r.UpdatedAt = time.UnixMilli(updated)
	r.LastVisitedAt = time.UnixMilli(visited)
	r.LastIncrementAt = fromMillis(incremented)
	return r, nil
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
