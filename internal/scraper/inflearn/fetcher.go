package inflearn

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"LectureCrawler/internal/models"
	"LectureCrawler/pkg/config"
	"LectureCrawler/utils"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// Fetcher renders listing pages in a single headless browser tab.
type Fetcher struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page

	searchURL   string
	settleDelay time.Duration
	navTimeout  time.Duration

	closeOnce sync.Once
	closeErr  error
}

// NewFetcher launches the browser and opens the tab used for the whole crawl.
func NewFetcher(browserConf config.BrowserConfig, crawlerConf config.CrawlerConfig) (*Fetcher, error) {
	l := launcher.New().
		Headless(browserConf.Headless).
		NoSandbox(browserConf.NoSandbox)

	if browserConf.Bin != "" {
		l = l.Bin(browserConf.Bin)
	}

	// Flags for small containers and serverless hosts.
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-gpu"))
	l.Set(flags.Flag("no-zygote"))
	l.Set(flags.Flag("no-first-run"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("start-maximized"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, models.NewCrawlError(models.ErrCodeBrowserLaunch, "failed to launch browser", err)
	}
	slog.Debug("browser launched", "controlURL", controlURL)

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, models.NewCrawlError(models.ErrCodeBrowserLaunch, "failed to connect to browser", err)
	}

	var page *rod.Page
	if browserConf.Stealth {
		page, err = stealth.Page(browser)
	} else {
		page, err = browser.Page(proto.TargetCreateTarget{})
	}
	if err != nil {
		_ = browser.Close()
		l.Kill()
		return nil, models.NewCrawlError(models.ErrCodeBrowserLaunch, "failed to open browser tab", err)
	}

	return &Fetcher{
		launcher:    l,
		browser:     browser,
		page:        page,
		searchURL:   crawlerConf.SearchURL,
		settleDelay: crawlerConf.SettleDelay,
		navTimeout:  crawlerConf.NavigationTimeout,
	}, nil
}

// Fetch navigates to the listing page, waits for load plus the fixed settle
// delay, and returns the rendered markup. There is no retry at this layer.
func (f *Fetcher) Fetch(ctx context.Context, pageNumber int) (models.ListingPage, error) {
	pageURL := utils.PageURL(f.searchURL, pageNumber)
	slog.Info("crawling page", "page", pageNumber, "url", pageURL)

	navCtx := ctx
	if f.navTimeout > 0 {
		var cancel context.CancelFunc
		navCtx, cancel = context.WithTimeout(ctx, f.navTimeout)
		defer cancel()
	}

	p := f.page.Context(navCtx)
	if err := p.Navigate(pageURL); err != nil {
		return models.ListingPage{}, categorizeError(err, "navigation to listing page failed")
	}
	if err := p.WaitLoad(); err != nil {
		return models.ListingPage{}, categorizeError(err, "listing page did not finish loading")
	}

	if err := settle(ctx, f.settleDelay); err != nil {
		return models.ListingPage{}, categorizeError(err, "interrupted while waiting for content")
	}

	markup, err := f.page.Context(ctx).HTML()
	if err != nil {
		return models.ListingPage{}, models.NewCrawlError(models.ErrCodeMarkupRead, "failed to read page HTML", err)
	}
	return models.ListingPage{Number: pageNumber, Markup: markup}, nil
}

// Close closes the tab and the browser and removes the profile directory.
// Calls after the first return the first result.
func (f *Fetcher) Close() error {
	f.closeOnce.Do(func() {
		slog.Debug("closing browser")
		f.closeErr = release(f.page, f.browser, f.launcher)
	})
	return f.closeErr
}

// browserProcess is the part of *launcher.Launcher that Close needs.
type browserProcess interface {
	Kill()
	Cleanup()
}

// release closes the tab and the browser. Cleanup waits for the process to
// exit, so a browser that refused to close is killed first.
func release(page, browser io.Closer, proc browserProcess) error {
	var errs []error
	if err := page.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := browser.Close(); err != nil {
		errs = append(errs, err)
		proc.Kill()
	}
	proc.Cleanup()
	return errors.Join(errs...)
}

// settle blocks for d unless ctx ends first.
func settle(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// categorizeError wraps raw driver errors into typed CrawlErrors.
func categorizeError(err error, msg string) *models.CrawlError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewCrawlError(models.ErrCodeTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewCrawlError(models.ErrCodeCanceled, "crawl canceled", err)
	default:
		return models.NewCrawlError(models.ErrCodeNavigation, msg, err)
	}
}
