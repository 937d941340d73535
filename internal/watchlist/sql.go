package watchlist

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	_ "github.com/glebarez/go-sqlite"
	_ "github.com/lib/pq"

	"github.com/onnwee/coin-tracker/internal/logger"
	"github.com/onnwee/coin-tracker/internal/utils"
)

// SQLStore keeps the list JSON-encoded in a key/value settings table.
type SQLStore struct {
	db      *sql.DB
	dialect string
	// serialises read-modify-write cycles from this process
	mu sync.Mutex
}

// Open connects to backend ("postgres" or "sqlite") and prepares the
// settings table.
func Open(ctx context.Context, backend, dsn string) (*SQLStore, error) {
	var driver string
	switch backend {
	case "postgres", "postgresql":
		backend, driver = "postgres", "postgres"
	case "sqlite", "sqlite3":
		backend, driver = "sqlite", "sqlite"
		if dsn == "" {
			dsn = "watchlist.db"
		}
	default:
		return nil, fmt.Errorf("watchlist: unsupported backend %q", backend)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("watchlist: open %s: %w", backend, err)
	}
	if backend == "sqlite" {
		// one writer; also keeps ":memory:" databases on a single connection
		db.SetMaxOpenConns(1)
	}
	s, err := NewSQLStore(ctx, db, backend)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLStore wraps an existing handle. dialect selects placeholder style.
func NewSQLStore(ctx context.Context, db *sql.DB, dialect string) (*SQLStore, error) {
	s := &SQLStore{db: db, dialect: dialect}
	if err := s.ensureTable(ctx); err != nil {
		return nil, fmt.Errorf("watchlist: ensure table: %w", err)
	}
	return s, nil
}

func (s *SQLStore) Close() error { return s.db.Close() }

// Ping is used by the health check.
func (s *SQLStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// rebind rewrites $N placeholders for sqlite.
func (s *SQLStore) rebind(query string) string {
	if s.dialect != "sqlite" {
		return query
	}
	for _, p := range []string{"$1", "$2"} {
		query = strings.ReplaceAll(query, p, "?")
	}
	return query
}

func (s *SQLStore) ensureTable(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`)
	return err
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *SQLStore) load(ctx context.Context, q querier) ([]string, error) {
	var raw string
	err := q.QueryRowContext(ctx, s.rebind(`SELECT value FROM settings WHERE key=$1`), Key).Scan(&raw)
	if err == sql.ErrNoRows {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		// a corrupt row reads as empty and is replaced on the next write
		logger.WithComponent("watchlist").Warn("discarding unreadable watchlist", "error", err)
		return []string{}, nil
	}
	return clean(ids), nil
}

func (s *SQLStore) save(ctx context.Context, q querier, ids []string) error {
	b, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx, s.rebind(`
		INSERT INTO settings(key, value)
		VALUES($1,$2)
		ON CONFLICT (key) DO UPDATE SET value=EXCLUDED.value`), Key, string(b))
	return err
}

func (s *SQLStore) List(ctx context.Context) ([]string, error) {
	ids, err := s.load(ctx, s.db)
	if err != nil {
		return nil, fmt.Errorf("watchlist: list: %w", err)
	}
	return ids, nil
}

func (s *SQLStore) Contains(ctx context.Context, id string) (bool, error) {
	ids, err := s.List(ctx)
	if err != nil {
		return false, err
	}
	return utils.ContainsString(ids, utils.NormalizeCoinID(id)), nil
}

func (s *SQLStore) Add(ctx context.Context, id string) error {
	id, err := normalize(id)
	if err != nil {
		return err
	}
	return s.update(ctx, "add", func(ids []string) ([]string, bool) { return withID(ids, id) })
}

func (s *SQLStore) Remove(ctx context.Context, id string) error {
	id, err := normalize(id)
	if err != nil {
		return err
	}
	return s.update(ctx, "remove", func(ids []string) ([]string, bool) { return withoutID(ids, id) })
}

func (s *SQLStore) update(ctx context.Context, op string, fn func([]string) ([]string, bool)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("watchlist: %s: %w", op, err)
	}
	defer tx.Rollback()

	ids, err := s.load(ctx, tx)
	if err != nil {
		return fmt.Errorf("watchlist: %s: %w", op, err)
	}
	next, changed := fn(ids)
	if !changed {
		return nil
	}
	if err := s.save(ctx, tx, next); err != nil {
		return fmt.Errorf("watchlist: %s: %w", op, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("watchlist: %s: %w", op, err)
	}
	return nil
}
