package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"fxgym/internal/model"
)

// PostgresStore is the database-backed bar cache. Same layout as SQLiteStore;
// rows are bulk loaded with COPY inside the replacing transaction.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, errors.New("DATABASE_URL must not be empty")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	s := &PostgresStore{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS fx_bars (
			symbol    TEXT             NOT NULL,
			bucket_ms BIGINT           NOT NULL,
			year      INTEGER          NOT NULL,
			month     INTEGER          NOT NULL,
			t         BIGINT           NOT NULL,
			o         DOUBLE PRECISION NOT NULL,
			h         DOUBLE PRECISION NOT NULL,
			l         DOUBLE PRECISION NOT NULL,
			c         DOUBLE PRECISION NOT NULL,
			v         BIGINT           NOT NULL,
			PRIMARY KEY (symbol, bucket_ms, year, month, t)
		)`,
		`CREATE TABLE IF NOT EXISTS fx_bars_manifest (
			symbol     TEXT    NOT NULL,
			bucket_ms  BIGINT  NOT NULL,
			year       INTEGER NOT NULL,
			month      INTEGER NOT NULL,
			rows       BIGINT  NOT NULL,
			written_at BIGINT  NOT NULL,
			PRIMARY KEY (symbol, bucket_ms, year, month)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) Name() string { return "postgres" }

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) manifestRows(ctx context.Context, key model.CacheKey) (int64, bool, error) {
	var rows int64
	err := s.pool.QueryRow(ctx,
		`SELECT rows FROM fx_bars_manifest WHERE symbol=$1 AND bucket_ms=$2 AND year=$3 AND month=$4`,
		keyArgs(key)...).Scan(&rows)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return rows, true, nil
}

func (s *PostgresStore) Exists(ctx context.Context, key model.CacheKey) (bool, error) {
	_, ok, err := s.manifestRows(ctx, key)
	return ok, err
}

func (s *PostgresStore) Read(ctx context.Context, key model.CacheKey) ([]model.Bar, error) {
	want, ok, err := s.manifestRows(ctx, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	rows, err := s.pool.Query(ctx, `
		SELECT t, o, h, l, c, v FROM fx_bars
		WHERE symbol=$1 AND bucket_ms=$2 AND year=$3 AND month=$4
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

func (s *PostgresStore) Write(ctx context.Context, key model.CacheKey, bars []model.Bar) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	args := keyArgs(key)
	if _, err := tx.Exec(ctx, `DELETE FROM fx_bars WHERE symbol=$1 AND bucket_ms=$2 AND year=$3 AND month=$4`, args...); err != nil {
		return err
	}
	rows := make([][]any, len(bars))
	for i, b := range bars {
		rows[i] = append(keyArgs(key), b.Timestamp, b.Open, b.High, b.Low, b.Close, b.Volume)
	}
	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"fx_bars"},
		[]string{"symbol", "bucket_ms", "year", "month", "t", "o", "h", "l", "c", "v"},
		pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("copy bars: %w", err)
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO fx_bars_manifest (symbol, bucket_ms, year, month, rows, written_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (symbol, bucket_ms, year, month) DO UPDATE SET
		    rows = EXCLUDED.rows,
		    written_at = EXCLUDED.written_at`,
		append(args, int64(len(bars)), time.Now().UnixMilli())...); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
