// Package crawler drives pagination over a course listing: it fetches pages
// in order, extracts cards, decides when to stop and hands everything that
// was collected to the store in a single call.
package crawler

import (
	"context"
	"fmt"
	"log/slog"

	"LectureCrawler/internal/models"
	"LectureCrawler/internal/scraper"
)

// State is a step of the pagination state machine.
type State string

const (
	StateFetching         State = "fetching"
	StateParsing          State = "parsing"
	StateContinue         State = "continue"
	StateStoppedEmpty     State = "stopped_empty"
	StateStoppedAllFailed State = "stopped_all_failed"
	StateStoppedError     State = "stopped_error"
	StateDone             State = "done"
)

// Terminal reports whether the run ends in this state.
func (s State) Terminal() bool {
	switch s {
	case StateStoppedEmpty, StateStoppedAllFailed, StateStoppedError, StateDone:
		return true
	}
	return false
}

// Store is the persistence layer: an idempotent upsert keyed by lecture hash.
type Store interface {
	UpsertLectures(ctx context.Context, domain string, lectures []models.Lecture) error
}

// OpenFunc acquires the page fetcher for one run.
type OpenFunc func(ctx context.Context) (scraper.PageFetcher, error)

// Crawler runs one crawl per Run call. It holds no state between runs.
type Crawler struct {
	Domain    string
	Open      OpenFunc
	Extractor scraper.CardExtractor
	Store     Store

	// MaxPages caps the number of fetched pages; 0 means no cap.
	MaxPages int
}

// Result summarises a finished run.
type Result struct {
	State State
	// Pages is the number of pages fetched successfully.
	Pages  int
	Parsed int
	Failed int
	// StructuralBreak is set when the stop looks like a site layout change
	// (no cards on page 1, or every card on a page failed).
	StructuralBreak bool
	// Err is the fetch or extract error that stopped the run, if any.
	Err       error
	Lectures  []models.Lecture
	Persisted bool
}

// Run crawls from page 1 until a stop condition and stores the collected
// lectures. The returned error is only set when the store fails; stop
// conditions are reported through Result.
func (c *Crawler) Run(ctx context.Context) (*Result, error) {
	res := c.crawl(ctx)

	slog.Info("crawling finished",
		"domain", c.Domain,
		"state", res.State,
		"pages", res.Pages,
		"parsed", res.Parsed,
		"failed", res.Failed,
	)

	if len(res.Lectures) == 0 {
		slog.Warn("no lectures crawled, skipping database processing", "domain", c.Domain)
		return res, nil
	}

	// Records collected before a cancellation are still worth keeping.
	storeCtx := context.WithoutCancel(ctx)
	if err := c.Store.UpsertLectures(storeCtx, c.Domain, res.Lectures); err != nil {
		return res, models.NewCrawlError(models.ErrCodePersistence,
			fmt.Sprintf("failed to upsert %d lectures", len(res.Lectures)), err)
	}
	res.Persisted = true
	return res, nil
}

// crawl acquires the fetcher, walks the state machine and releases the
// fetcher exactly once on every exit path.
func (c *Crawler) crawl(ctx context.Context) *Result {
	res := &Result{}

	fetcher, err := c.Open(ctx)
	if err != nil {
		slog.Error("failed to start page fetcher", "error", err)
		res.State = StateStoppedError
		res.Err = err
		return res
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			slog.Warn("failed to release page fetcher", "error", err)
		}
	}()

	var (
		state   = StateFetching
		page    = 1
		listing models.ListingPage
	)
	for !state.Terminal() {
		switch state {
		case StateFetching:
			if c.MaxPages > 0 && page > c.MaxPages {
				slog.Info("page limit reached, stopping crawl", "max_pages", c.MaxPages)
				state = StateDone
				continue
			}
			listing, err = fetcher.Fetch(ctx, page)
			if err != nil {
				slog.Error("unexpected error during crawling", "page", page, "error", err)
				res.Err = err
				state = StateStoppedError
				continue
			}
			res.Pages++
			state = StateParsing

		case StateParsing:
			outcomes, err := c.Extractor.Extract(listing.Markup)
			if err != nil {
				slog.Error("failed to read listing page", "page", page, "error", err)
				res.Err = err
				state = StateStoppedError
				continue
			}
			state = c.evaluate(page, outcomes, res)

		case StateContinue:
			page++
			state = StateFetching
		}
	}

	res.State = state
	return res
}

// evaluate applies the stop rules to one parsed page and accumulates its
// lectures when the crawl may continue.
func (c *Crawler) evaluate(page int, outcomes []models.CardOutcome, res *Result) State {
	if len(outcomes) == 0 {
		if page == 1 {
			slog.Error("no lectures found on first page, possible selector change; stopping crawl", "page", page)
			res.StructuralBreak = true
		} else {
			slog.Info("no more lectures found, stopping crawl", "page", page)
		}
		return StateStoppedEmpty
	}

	slog.Info("found cards", "page", page, "count", len(outcomes))

	parsed := make([]models.Lecture, 0, len(outcomes))
	for _, out := range outcomes {
		if out.OK() {
			parsed = append(parsed, *out.Lecture)
			continue
		}
		slog.Warn("skipping lecture card",
			"page", page,
			"card", out.Index,
			"reason", out.Failure.Reason,
			"url", out.Failure.DetailURL,
			"text", out.Failure.Text,
		)
	}

	failed := len(outcomes) - len(parsed)
	res.Failed += failed

	if len(parsed) == 0 {
		slog.Error("all cards failed to parse, stopping crawl", "page", page, "cards", failed)
		res.StructuralBreak = true
		return StateStoppedAllFailed
	}

	res.Lectures = append(res.Lectures, parsed...)
	res.Parsed += len(parsed)
	slog.Info("page parsed", "page", page, "parsed", len(parsed), "failed", failed, "total", res.Parsed)
	return StateContinue
}
