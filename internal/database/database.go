// Package database persists crawled lectures. SQLite is the default store;
// PostgreSQL is used when the driver is "postgres".
package database

import (
	"context"
	"fmt"

	"LectureCrawler/internal/models"
	"LectureCrawler/pkg/config"
)

// Repository is implemented by every lecture store.
type Repository interface {
	UpsertLectures(ctx context.Context, domain string, lectures []models.Lecture) error
	GetLectures(ctx context.Context, filters models.LectureFilters) ([]models.Lecture, error)
	CountLectures(ctx context.Context, filters models.LectureFilters) (int, error)
	Close() error
}

var (
	_ Repository = (*DBRepository)(nil)
	_ Repository = (*PostgresRepository)(nil)
)

// Open returns the store selected by conf.Driver.
func Open(ctx context.Context, conf config.DatabaseConfig) (Repository, error) {
	switch conf.Driver {
	case "", "sqlite":
		repo, err := InitDB(conf.Path)
		if err != nil {
			return nil, err
		}
		return repo, nil
	case "postgres":
		repo, err := InitPostgres(ctx, conf.DSN)
		if err != nil {
			return nil, err
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", conf.Driver)
	}
}
