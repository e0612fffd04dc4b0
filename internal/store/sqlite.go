package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"fxgym/internal/model"
)

// SQLiteStore keeps every key in one database: bars rows plus a manifest row per key.
// The manifest row is written in the same transaction as the bars, so Exists
// never reports a partially written key.
type SQLiteStore struct {
	path string
	db   *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("sqlite path must not be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := ensureSQLiteSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{path: path, db: db}, nil
}

func ensureSQLiteSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS bars (
			symbol    TEXT    NOT NULL,
			year      INTEGER NOT NULL,
			month     INTEGER NOT NULL,
			bucket_ms INTEGER NOT NULL,
			t         INTEGER NOT NULL,
			o         REAL    NOT NULL,
			h         REAL    NOT NULL,
			l         REAL    NOT NULL,
			c         REAL    NOT NULL,
			v         INTEGER NOT NULL,
			PRIMARY KEY (symbol, bucket_ms, year, month, t)
		);`,
		`CREATE TABLE IF NOT EXISTS manifest (
			symbol     TEXT    NOT NULL,
			year       INTEGER NOT NULL,
			month      INTEGER NOT NULL,
			bucket_ms  INTEGER NOT NULL,
			rows       INTEGER NOT NULL,
			written_at INTEGER NOT NULL,
			PRIMARY KEY (symbol, bucket_ms, year, month)
		);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) Name() string { return "sqlite" }

func (s *SQLiteStore) Close() error { return s.db.Close() }

func keyArgs(key model.CacheKey) []any {
	return []any{key.Symbol, key.Bucket.Milliseconds(), key.Period.Year, int(key.Period.Month)}
}

func (s *SQLiteStore) manifestRows(ctx context.Context, key model.CacheKey) (int64, bool, error) {
	var rows int64
	err := s.db.QueryRowContext(ctx,
		`SELECT rows FROM manifest WHERE symbol=? AND bucket_ms=? AND year=? AND month=?`,
		keyArgs(key)...).Scan(&rows)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return rows, true, nil
}

func (s *SQLiteStore) Exists(ctx context.Context, key model.CacheKey) (bool, error) {
	_, ok, err := s.manifestRows(ctx, key)
	return ok, err
}

func (s *SQLiteStore) Read(ctx context.Context, key model.CacheKey) ([]model.Bar, error) {
	want, ok, err := s.manifestRows(ctx, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT t, o, h, l, c, v FROM bars
		WHERE symbol=? AND bucket_ms=? AND year=? AND month=?
		ORDER BY t ASC`, keyArgs(key)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []model.Bar
	for rows.Next() {
		var b model.Bar
		if err := rows.Scan(&b.Timestamp, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, schemaErr("%s: %v", key, err)
		}
		list = append(list, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if int64(len(list)) != want {
		return nil, schemaErr("%s: manifest says %d rows, found %d", key, want, len(list))
	}
	return list, nil
}

// Write replaces all rows of key in one transaction.
func (s *SQLiteStore) Write(ctx context.Context, key model.CacheKey, bars []model.Bar) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	args := keyArgs(key)
	if _, err := tx.ExecContext(ctx, `DELETE FROM bars WHERE symbol=? AND bucket_ms=? AND year=? AND month=?`, args...); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO bars (symbol, bucket_ms, year, month, t, o, h, l, c, v)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, b := range bars {
		if _, err := stmt.ExecContext(ctx, append(args, b.Timestamp, b.Open, b.High, b.Low, b.Close, b.Volume)...); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO manifest (symbol, bucket_ms, year, month, rows, written_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol, bucket_ms, year, month) DO UPDATE SET
		    rows=excluded.rows,
		    written_at=excluded.written_at`,
		append(args, len(bars), time.Now().UnixMilli())...); err != nil {
		return err
	}
	return tx.Commit()
}
