package models

import (
	"fmt"
	"time"
)

// ListingPage is the rendered markup of one listing page.
type ListingPage struct {
	Number int
	Markup string
}

// Lecture is the record handed to the persistence layer for one course card.
type Lecture struct {
	ID            int64     `db:"id" json:"-"`
	Hash          string    `db:"hash" json:"hash"`
	SourceName    string    `db:"source_name" json:"source_name,omitempty"`
	DetailURL     string    `db:"source_url" json:"detail_url"`
	OriginalPrice int       `db:"original_price" json:"original_price"`
	CurrentPrice  int       `db:"current_price" json:"current_price"`
	CrawledAt     time.Time `db:"crawled_at" json:"crawled_at,omitempty"`
}

// FailureReason names why a card could not become a Lecture.
type FailureReason string

const (
	ReasonNoLink              FailureReason = "no_link"
	ReasonEmptyURL            FailureReason = "empty_url"
	ReasonNoCurrentPrice      FailureReason = "no_current_price"
	ReasonInvalidCurrentPrice FailureReason = "invalid_current_price"
	ReasonBothPricesZero      FailureReason = "both_prices_zero"
)

// ParseFailure reports a card that was dropped. DetailURL is set when the
// link was already resolved at the point of failure.
type ParseFailure struct {
	Reason    FailureReason
	DetailURL string
	Text      string
}

func (f *ParseFailure) Error() string {
	switch {
	case f.DetailURL != "" && f.Text != "":
		return fmt.Sprintf("%s: url=%s text=%q", f.Reason, f.DetailURL, f.Text)
	case f.DetailURL != "":
		return fmt.Sprintf("%s: url=%s", f.Reason, f.DetailURL)
	default:
		return string(f.Reason)
	}
}

// CardOutcome is the result of parsing one card. Exactly one of Lecture and
// Failure is set.
type CardOutcome struct {
	Index   int
	Lecture *Lecture
	Failure *ParseFailure
}

// OK reports whether the card produced a Lecture.
func (o CardOutcome) OK() bool { return o.Lecture != nil }

// Parsed wraps a successful card.
func Parsed(index int, l Lecture) CardOutcome {
	return CardOutcome{Index: index, Lecture: &l}
}

// Failed wraps a dropped card.
func Failed(index int, reason FailureReason, detailURL, text string) CardOutcome {
	return CardOutcome{Index: index, Failure: &ParseFailure{Reason: reason, DetailURL: detailURL, Text: text}}
}

// LectureFilters holds the query parameters of the lecture listing endpoint.
type LectureFilters struct {
	SourceName string
	// For Pagination
	Limit  int
	Offset int
}

// LecturePage is the JSON body of the lecture listing endpoint.
type LecturePage struct {
	Data       []Lecture  `json:"data"`
	Pagination Pagination `json:"pagination"`
}

type Pagination struct {
	TotalPages  int `json:"total_pages"`
	CurrentPage int `json:"current_page"`
	Total       int `json:"total"`
}
