package models

import "fmt"

// Error codes attached to run-level failures.
const (
	ErrCodeBrowserLaunch = "BROWSER_LAUNCH_FAILED"
	ErrCodeNavigation    = "NAVIGATION_FAILED"
	ErrCodeTimeout       = "RENDER_TIMEOUT"
	ErrCodeCanceled      = "CRAWL_CANCELED"
	ErrCodeMarkupRead    = "MARKUP_READ_FAILED"
	ErrCodePersistence   = "PERSISTENCE_FAILED"
)

// CrawlError is a run-level error carrying a code. Card-level problems are
// reported as ParseFailure instead.
type CrawlError struct {
	Code    string
	Message string
	Err     error
}

func (e *CrawlError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *CrawlError) Unwrap() error {
	return e.Err
}

// NewCrawlError creates a new CrawlError.
func NewCrawlError(code, message string, err error) *CrawlError {
	return &CrawlError{Code: code, Message: message, Err: err}
}
