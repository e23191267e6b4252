package inflearn

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"LectureCrawler/internal/models"
	"LectureCrawler/pkg/config"
	"LectureCrawler/utils"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Extractor parses Inflearn listing pages into lecture outcomes.
type Extractor struct {
	Selectors  config.SelectorConfig
	FreeMarker string
	SourceName string

	// root is "scheme://host" of the search URL; relative detail links are
	// joined onto it. Empty leaves hrefs as found.
	root string
}

// NewExtractor builds an Extractor from the crawler settings.
func NewExtractor(conf config.CrawlerConfig) *Extractor {
	e := &Extractor{
		Selectors:  conf.Selectors,
		FreeMarker: conf.FreeMarker,
		SourceName: conf.Domain,
	}
	if u, err := url.Parse(conf.SearchURL); err == nil && u.IsAbs() {
		e.root = u.Scheme + "://" + u.Host
	}
	return e
}

// Extract returns one outcome per card in document order.
func (e *Extractor) Extract(markup string) ([]models.CardOutcome, error) {
	root, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse listing markup: %w", err)
	}
	doc := goquery.NewDocumentFromNode(root)

	cards := doc.Find(e.Selectors.Card)
	outcomes := make([]models.CardOutcome, 0, cards.Length())
	cards.Each(func(i int, card *goquery.Selection) {
		outcomes = append(outcomes, e.parseCard(i+1, card))
	})
	return outcomes, nil
}

// parseCard applies the card rules in order: link, canonical URL, current
// price, free marker, numeric prices, zero sanity check.
func (e *Extractor) parseCard(index int, card *goquery.Selection) models.CardOutcome {
	link := card.Find(e.Selectors.Link).First()
	if link.Length() == 0 {
		return models.Failed(index, models.ReasonNoLink, "", "")
	}

	href, _ := link.Attr("href")
	detailURL, err := e.canonicalURL(href)
	if err != nil {
		return models.Failed(index, models.ReasonNoLink, "", href)
	}
	if detailURL == "" {
		return models.Failed(index, models.ReasonEmptyURL, "", "")
	}

	lecture := models.Lecture{
		Hash:       utils.HashURL(detailURL),
		SourceName: e.SourceName,
		DetailURL:  detailURL,
	}

	currEl := card.Find(e.Selectors.CurrentPrice).First()
	if currEl.Length() == 0 {
		return models.Failed(index, models.ReasonNoCurrentPrice, detailURL, "")
	}
	currText := strings.TrimSpace(currEl.Text())

	if e.FreeMarker != "" && strings.Contains(currText, e.FreeMarker) {
		return models.Parsed(index, lecture)
	}

	current, err := utils.ParsePrice(currText)
	if err != nil {
		return models.Failed(index, models.ReasonInvalidCurrentPrice, detailURL, currText)
	}

	original := current
	if e.Selectors.OriginalPrice != "" {
		if origEl := card.Find(e.Selectors.OriginalPrice).First(); origEl.Length() > 0 {
			origText := strings.TrimSpace(origEl.Text())
			if p, err := utils.ParsePrice(origText); err == nil {
				original = p
			} else {
				slog.Warn("invalid original price, using current price",
					"url", detailURL,
					"price", origText,
				)
			}
		}
	}

	// Zero/zero from parsed text points at a selector problem, not a free course.
	if original == 0 && current == 0 {
		return models.Failed(index, models.ReasonBothPricesZero, detailURL, currText)
	}

	lecture.OriginalPrice = original
	lecture.CurrentPrice = current
	return models.Parsed(index, lecture)
}

// canonicalURL strips the query and returns the link as written, so the
// identity hash matches the raw href. url.Parse only rejects malformed links.
// Relative links are joined onto the site root by string concatenation.
func (e *Extractor) canonicalURL(href string) (string, error) {
	stripped := utils.RemoveQueryParams(strings.TrimSpace(href))
	if stripped == "" {
		return "", nil
	}

	u, err := url.Parse(stripped)
	if err != nil {
		return "", err
	}
	if u.IsAbs() || e.root == "" {
		return stripped, nil
	}

	switch {
	case strings.HasPrefix(stripped, "//"):
		scheme, _, _ := strings.Cut(e.root, "://")
		return scheme + ":" + stripped, nil
	case strings.HasPrefix(stripped, "/"):
		return e.root + stripped, nil
	default:
		return e.root + "/" + stripped, nil
	}
}
