package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"LectureCrawler/internal/crawler"
	"LectureCrawler/internal/database"
	"LectureCrawler/internal/scraper"
	"LectureCrawler/internal/scraper/inflearn"
	"LectureCrawler/pkg/config"
)

// ErrRunInProgress is returned by Handle when another crawl has not finished.
var ErrRunInProgress = errors.New("a crawl is already running")

// Response is what an invocation returns to its trigger.
type Response struct {
	StatusCode int    `json:"statusCode"`
	Body       string `json:"body"`
}

// App is the main application structure holding all dependencies.
type App struct {
	Config  *config.Config
	Repo    database.Repository
	Crawler *crawler.Crawler

	running sync.Mutex
}

// New opens the configured store and wires the Inflearn fetcher and
// extractor into a crawler.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	repo, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	c := &crawler.Crawler{
		Domain: cfg.Crawler.Domain,
		Open: func(context.Context) (scraper.PageFetcher, error) {
			f, err := inflearn.NewFetcher(cfg.Browser, cfg.Crawler)
			if err != nil {
				return nil, err
			}
			return f, nil
		},
		Extractor: inflearn.NewExtractor(cfg.Crawler),
		Store:     repo,
		MaxPages:  cfg.Crawler.MaxPages,
	}

	return &App{Config: cfg, Repo: repo, Crawler: c}, nil
}

// Close releases the store.
func (a *App) Close() error {
	if a.Repo == nil {
		return nil
	}
	return a.Repo.Close()
}

// Handle runs one crawl. The event is accepted for trigger compatibility
// and not inspected. A finished run always yields status 200 with a
// summary; a persistence failure is returned alongside that response.
func (a *App) Handle(ctx context.Context, _ any) (Response, error) {
	if !a.running.TryLock() {
		return Response{}, ErrRunInProgress
	}
	defer a.running.Unlock()

	domain := a.Crawler.Domain
	slog.Info("crawl triggered", "domain", domain)

	res, err := a.Crawler.Run(ctx)
	if err != nil {
		slog.Error("failed to save lectures", "domain", domain, "error", err)
	}
	if res.StructuralBreak {
		slog.Error("crawl stopped on a page layout anomaly; check selectors", "domain", domain, "state", res.State)
	}

	return Response{
		StatusCode: http.StatusOK,
		Body:       Summary(domain, len(res.Lectures)),
	}, err
}

// Summary renders the human-readable result of a run.
func Summary(domain string, total int) string {
	if total == 0 {
		return fmt.Sprintf("%s crawling completed, no lectures found", domain)
	}
	return fmt.Sprintf("%s crawling completed, total=%d", domain, total)
}
