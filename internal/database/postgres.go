package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"LectureCrawler/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const createLecturesTablePostgres = `
CREATE TABLE IF NOT EXISTS lectures (
	id BIGSERIAL PRIMARY KEY,
	hash TEXT NOT NULL UNIQUE,
	source_name TEXT NOT NULL,
	source_url TEXT NOT NULL,
	original_price INTEGER NOT NULL,
	current_price INTEGER NOT NULL,
	crawled_at TIMESTAMPTZ NOT NULL
)`

const upsertLecturePostgres = `
INSERT INTO lectures (hash, source_name, source_url, original_price, current_price, crawled_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (hash) DO UPDATE SET
	source_url = EXCLUDED.source_url,
	original_price = EXCLUDED.original_price,
	current_price = EXCLUDED.current_price,
	crawled_at = EXCLUDED.crawled_at`

// PostgresRepository stores lectures in PostgreSQL through a pgx pool.
type PostgresRepository struct {
	Pool *pgxpool.Pool
}

// NewPostgresPool creates and verifies a pgxpool connection pool.
func NewPostgresPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}

	return pool, nil
}

// InitPostgres connects to databaseURL and makes sure the schema exists.
func InitPostgres(ctx context.Context, databaseURL string) (*PostgresRepository, error) {
	pool, err := NewPostgresPool(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	if _, err := pool.Exec(ctx, createLecturesTablePostgres); err != nil {
		pool.Close()
		return nil, fmt.Errorf("error creating lectures table: %w", err)
	}
	slog.Info("database initialized", "driver", "postgres")
	return &PostgresRepository{Pool: pool}, nil
}

func (repo *PostgresRepository) Close() error {
	repo.Pool.Close()
	return nil
}

// UpsertLectures sends every upsert as one batch inside a transaction.
func (repo *PostgresRepository) UpsertLectures(ctx context.Context, domain string, lectures []models.Lecture) error {
	tx, err := repo.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	now := time.Now().UTC()
	b := &pgx.Batch{}
	for _, l := range lectures {
		crawledAt := l.CrawledAt
		if crawledAt.IsZero() {
			crawledAt = now
		}
		b.Queue(upsertLecturePostgres,
			l.Hash, domain, l.DetailURL, l.OriginalPrice, l.CurrentPrice, crawledAt)
	}

	br := tx.SendBatch(ctx, b)
	for _, l := range lectures {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("upsert lecture %s: %w", l.DetailURL, err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit lectures: %w", err)
	}
	slog.Info("lectures saved", "domain", domain, "count", len(lectures))
	return nil
}

func (repo *PostgresRepository) GetLectures(ctx context.Context, filters models.LectureFilters) ([]models.Lecture, error) {
	query := `SELECT id, hash, source_name, source_url, original_price, current_price, crawled_at
	          FROM lectures`
	var args []any
	if filters.SourceName != "" {
		args = append(args, filters.SourceName)
		query += fmt.Sprintf(" WHERE source_name = $%d", len(args))
	}
	query += " ORDER BY crawled_at DESC, id DESC"
	if filters.Limit > 0 {
		args = append(args, filters.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
		if filters.Offset > 0 {
			args = append(args, filters.Offset)
			query += fmt.Sprintf(" OFFSET $%d", len(args))
		}
	}

	rows, err := repo.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute lecture query: %w", err)
	}
	lectures, err := pgx.CollectRows(rows, pgx.RowToStructByName[models.Lecture])
	if err != nil {
		return nil, fmt.Errorf("scan lecture rows: %w", err)
	}
	return lectures, nil
}

func (repo *PostgresRepository) CountLectures(ctx context.Context, filters models.LectureFilters) (int, error) {
	query := "SELECT COUNT(*) FROM lectures"
	var args []any
	if filters.SourceName != "" {
		query += " WHERE source_name = $1"
		args = append(args, filters.SourceName)
	}

	var total int
	if err := repo.Pool.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count lectures: %w", err)
	}
	return total, nil
}
