package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"LectureCrawler/internal/models"

	_ "modernc.org/sqlite"
)

const createLecturesTableSQL = `
CREATE TABLE IF NOT EXISTS lectures (
	"id" INTEGER NOT NULL PRIMARY KEY AUTOINCREMENT,
	"hash" TEXT NOT NULL UNIQUE,
	"source_name" TEXT NOT NULL,
	"source_url" TEXT NOT NULL,
	"original_price" INTEGER NOT NULL,
	"current_price" INTEGER NOT NULL,
	"crawled_at" DATETIME NOT NULL
);`

const upsertLectureSQL = `
INSERT INTO lectures (hash, source_name, source_url, original_price, current_price, crawled_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(hash) DO UPDATE SET
	source_url=excluded.source_url,
	original_price=excluded.original_price,
	current_price=excluded.current_price,
	crawled_at=excluded.crawled_at;`

// DBRepository is a thin layer over the SQLite connection.
type DBRepository struct {
	DB *sql.DB
}

// InitDB opens the SQLite file at path and makes sure the schema exists.
func InitDB(path string) (*DBRepository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	// One writer at a time; also keeps ":memory:" on a single connection.
	db.SetMaxOpenConns(1)

	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("error pinging database: %w", err)
	}

	if _, err = db.Exec(createLecturesTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("error creating lectures table: %w", err)
	}

	slog.Info("database initialized", "driver", "sqlite", "path", path)
	return &DBRepository{DB: db}, nil
}

// Close closes the database connection.
func (repo *DBRepository) Close() error {
	return repo.DB.Close()
}

// UpsertLectures inserts or updates all lectures in one transaction, keyed
// by hash. Either every record is written or none is.
func (repo *DBRepository) UpsertLectures(ctx context.Context, domain string, lectures []models.Lecture) error {
	tx, err := repo.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertLectureSQL)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, l := range lectures {
		crawledAt := l.CrawledAt
		if crawledAt.IsZero() {
			crawledAt = now
		}
		if _, err := stmt.ExecContext(ctx,
			l.Hash, domain, l.DetailURL, l.OriginalPrice, l.CurrentPrice, crawledAt,
		); err != nil {
			return fmt.Errorf("upsert lecture %s: %w", l.DetailURL, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit lectures: %w", err)
	}
	slog.Info("lectures saved", "domain", domain, "count", len(lectures))
	return nil
}

// GetLectures returns stored lectures, newest first, matching the filters.
func (repo *DBRepository) GetLectures(ctx context.Context, filters models.LectureFilters) ([]models.Lecture, error) {
	where, args := sqliteWhere(filters)

	query := `SELECT id, hash, source_name, source_url, original_price, current_price, crawled_at
	          FROM lectures` + where + ` ORDER BY crawled_at DESC, id DESC`
	if filters.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filters.Limit)
		if filters.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filters.Offset)
		}
	}

	rows, err := repo.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute lecture query: %w", err)
	}
	defer rows.Close()

	lectures := []models.Lecture{}
	for rows.Next() {
		var l models.Lecture
		if err := rows.Scan(
			&l.ID, &l.Hash, &l.SourceName, &l.DetailURL,
			&l.OriginalPrice, &l.CurrentPrice, &l.CrawledAt,
		); err != nil {
			return nil, fmt.Errorf("scan lecture row: %w", err)
		}
		lectures = append(lectures, l)
	}
	return lectures, rows.Err()
}

// CountLectures returns how many stored lectures match the filters,
// ignoring limit and offset.
func (repo *DBRepository) CountLectures(ctx context.Context, filters models.LectureFilters) (int, error) {
	where, args := sqliteWhere(filters)

	var total int
	if err := repo.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM lectures"+where, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count lectures: %w", err)
	}
	return total, nil
}

func sqliteWhere(filters models.LectureFilters) (string, []any) {
	var (
		conditions []string
		args       []any
	)
	if filters.SourceName != "" {
		conditions = append(conditions, "source_name = ?")
		args = append(args, filters.SourceName)
	}
	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}
