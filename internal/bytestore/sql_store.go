package bytestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Dialect selects placeholder style and column types.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// SQLStore keeps blobs in a single table. Each row records its parent key
// so ListChildren is an indexed lookup.
type SQLStore struct {
	db         *sql.DB
	dialect    Dialect
	schemaOnce sync.Once
	schemaErr  error
}

// OpenPostgres opens dsn through the pgx stdlib driver.
func OpenPostgres(dsn string) (*SQLStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return NewSQLStore(db, DialectPostgres), nil
}

// OpenSQLite opens a database file with WAL journaling.
func OpenSQLite(path string) (*SQLStore, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	return NewSQLStore(db, DialectSQLite), nil
}

func NewSQLStore(db *sql.DB, dialect Dialect) *SQLStore {
	return &SQLStore{db: db, dialect: dialect}
}

func (s *SQLStore) Close() error { return s.db.Close() }

func (s *SQLStore) ensureSchema(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("db is nil")
	}
	s.schemaOnce.Do(func() {
		blob := "BYTEA"
		if s.dialect == DialectSQLite {
			blob = "BLOB"
		}
		stmts := []string{
			`CREATE TABLE IF NOT EXISTS blobs (
    key TEXT PRIMARY KEY,
    parent TEXT NOT NULL,
    name TEXT NOT NULL,
    is_dir INTEGER NOT NULL DEFAULT 0,
    content ` + blob + `,
    size BIGINT NOT NULL DEFAULT 0,
    updated_at TIMESTAMP WITH TIME ZONE
)`,
			`CREATE INDEX IF NOT EXISTS idx_blobs_parent ON blobs(parent)`,
		}
		for _, stmt := range stmts {
			if _, err := s.db.ExecContext(ctx, stmt); err != nil {
				s.schemaErr = err
				return
			}
		}
	})
	return s.schemaErr
}

func (s *SQLStore) Write(ctx context.Context, key string, data []byte) error {
	k, err := NormalizeKey(key)
	if err != nil {
		return err
	}
	if k == "" {
		return fmt.Errorf("key is required")
	}
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}
	if data == nil {
		data = []byte{}
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := s.insertDirs(ctx, tx, ancestors(k)); err != nil {
		return err
	}
	parent, name := splitKey(k)
	_, err = tx.ExecContext(ctx, s.rebind(`
INSERT INTO blobs (key, parent, name, is_dir, content, size, updated_at)
VALUES (?, ?, ?, 0, ?, ?, ?)
ON CONFLICT (key)
DO UPDATE SET content=excluded.content, size=excluded.size, updated_at=excluded.updated_at
`), k, parent, name, data, int64(len(data)), time.Now().UTC())
	if err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLStore) Read(ctx context.Context, key string) ([]byte, error) {
	k, err := NormalizeKey(key)
	if err != nil {
		return nil, err
	}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	var content []byte
	err = s.db.QueryRowContext(ctx, s.rebind(`SELECT content FROM blobs WHERE key=? AND is_dir=0`), k).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if content == nil && err == nil {
		content = []byte{}
	}
	return content, err
}

func (s *SQLStore) MakeDir(ctx context.Context, dirKey string) error {
	k, err := NormalizeKey(dirKey)
	if err != nil {
		return err
	}
	if k == "" {
		return nil
	}
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := s.insertDirs(ctx, tx, append([]string{k}, ancestors(k)...)); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLStore) ListChildren(ctx context.Context, dirKey string) ([]Entry, error) {
	k, err := NormalizeKey(dirKey)
	if err != nil {
		return nil, err
	}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	if k != "" {
		var one int
		err := s.db.QueryRowContext(ctx, s.rebind(`SELECT 1 FROM blobs WHERE key=? AND is_dir=1`), k).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, err
		}
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT name, is_dir FROM blobs WHERE parent=? ORDER BY name`), k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			name  string
			isDir int
		)
		if err := rows.Scan(&name, &isDir); err != nil {
			return nil, err
		}
		out = append(out, Entry{Name: name, IsDir: isDir == 1})
	}
	return out, rows.Err()
}

func (s *SQLStore) RemoveAll(ctx context.Context, prefix string) error {
	k, err := NormalizeKey(prefix)
	if err != nil {
		return err
	}
	if k == "" {
		return fmt.Errorf("bytestore: refusing to remove store root")
	}
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, s.rebind(`DELETE FROM blobs WHERE key=? OR key LIKE ? ESCAPE '\'`), k, escapeLike(k)+"/%")
	return err
}

func (s *SQLStore) insertDirs(ctx context.Context, tx *sql.Tx, dirs []string) error {
	q := s.rebind(`
INSERT INTO blobs (key, parent, name, is_dir, size, updated_at)
VALUES (?, ?, ?, 1, 0, ?)
ON CONFLICT (key) DO NOTHING
`)
	now := time.Now().UTC()
	for _, dir := range dirs {
		parent, name := splitKey(dir)
		if _, err := tx.ExecContext(ctx, q, dir, parent, name, now); err != nil {
			return fmt.Errorf("insert dir %s: %w", dir, err)
		}
	}
	return nil
}

// rebind rewrites '?' placeholders into $n for postgres.
func (s *SQLStore) rebind(q string) string {
	if s.dialect != DialectPostgres {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
