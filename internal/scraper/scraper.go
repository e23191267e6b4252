package scraper

import (
	"context"

	"LectureCrawler/internal/models"
)

// PageFetcher renders listing pages. It owns a browser for the lifetime of
// one crawl and must be closed exactly once.
type PageFetcher interface {
	// Fetch returns the rendered markup of the given listing page, after the
	// dynamic content has had time to settle.
	Fetch(ctx context.Context, pageNumber int) (models.ListingPage, error)

	// Close releases the underlying browser.
	Close() error
}

// CardExtractor turns one listing page into per-card outcomes. A single bad
// card never fails the batch; an error means the markup could not be read.
type CardExtractor interface {
	Extract(markup string) ([]models.CardOutcome, error)
}
