// Adapted from pkg/database/client.go (connection pooling + migrations over
// github.com/lib/pq). Here it backs a single flat key-value table instead of
// the teacher's proof-artifact schema, so it can implement StorageEffects for
// server deployments that want queryable, durable fact storage alongside a
// goleveldb device store.

package effects

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// SQLStorage implements StorageEffects over a single `aura_kv(key bytea
// primary key, value bytea)` table, reachable for operators who want to
// run journal storage against an existing Postgres fleet instead of an
// embedded goleveldb file.
type SQLStorage struct {
	db     *sql.DB
	logger *log.Logger
}

// OpenSQLStorage opens a Postgres connection pool at databaseURL and
// ensures the backing table exists.
func OpenSQLStorage(databaseURL string, maxConns, minConns int) (*SQLStorage, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("effects: sql storage: empty database URL")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("effects: sql storage: open: %w", err)
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(minConns)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("effects: sql storage: ping: %w", err)
	}

	s := &SQLStorage{db: db, logger: log.New(log.Writer(), "[SQLStorage] ", log.LstdFlags)}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLStorage) migrate() error {
	const ddl = `CREATE TABLE IF NOT EXISTS aura_kv (
		key bytea PRIMARY KEY,
		value bytea NOT NULL
	)`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("effects: sql storage: migrate: %w", err)
	}
	return nil
}

func (s *SQLStorage) Get(ctx context.Context, key []byte) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM aura_kv WHERE key = $1`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("effects: sql storage: get: %w", err)
	}
	return value, nil
}

func (s *SQLStorage) Set(ctx context.Context, key, value []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO aura_kv (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`, key, value)
	if err != nil {
		return fmt.Errorf("effects: sql storage: set: %w", err)
	}
	return nil
}

func (s *SQLStorage) Delete(ctx context.Context, key []byte) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM aura_kv WHERE key = $1`, key); err != nil {
		return fmt.Errorf("effects: sql storage: delete: %w", err)
	}
	return nil
}

func (s *SQLStorage) Iterate(ctx context.Context, prefix []byte, fn func(key, value []byte) bool) error {
	query := `
		SELECT key, value FROM aura_kv
		WHERE key >= $1 AND key < $2
		ORDER BY key ASC`
	args := []any{prefix, prefixUpperBound(prefix)}
	if args[1].([]byte) == nil {
		// No upper bound exists; binding nil would compare against NULL.
		query = `SELECT key, value FROM aura_kv WHERE key >= $1 ORDER BY key ASC`
		args = args[:1]
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("effects: sql storage: iterate: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var k, v []byte
		if err := rows.Scan(&k, &v); err != nil {
			return fmt.Errorf("effects: sql storage: scan row: %w", err)
		}
		if !fn(k, v) {
			break
		}
	}
	return rows.Err()
}

func (s *SQLStorage) Close() error { return s.db.Close() }

// prefixUpperBound returns the smallest byte string greater than every key
// sharing prefix, so a half-open range query ([prefix, upperBound)) covers
// exactly the prefix namespace. Equivalent to cometbft-db's PrefixEndBytes.
func prefixUpperBound(prefix []byte) []byte {
	out := make([]byte, len(prefix))
	copy(out, prefix)
	for i := len(out) - 1; i >= 0; i-- {
		if out[i] < 0xff {
			out[i]++
			return out[:i+1]
		}
	}
	return nil // prefix is all 0xff: unbounded above
}
