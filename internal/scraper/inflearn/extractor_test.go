package inflearn

import (
	"fmt"
	"strings"
	"testing"

	"LectureCrawler/internal/models"
	"LectureCrawler/pkg/config"
	"LectureCrawler/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() config.CrawlerConfig {
	return config.CrawlerConfig{
		Domain:     "inflearn",
		SearchURL:  "https://www.inflearn.com/courses",
		FreeMarker: "무료",
		Selectors: config.SelectorConfig{
			Card:          "ul.courses > li",
			Link:          "a",
			CurrentPrice:  "p.current",
			OriginalPrice: "p.original",
		},
	}
}

// card renders one listing tile; empty arguments leave the element out.
func card(href, current, original string) string {
	var b strings.Builder
	b.WriteString("<li>")
	if href != "-" {
		fmt.Fprintf(&b, `<a href="%s">Course</a>`, href)
	}
	if original != "" {
		fmt.Fprintf(&b, `<p class="original">%s</p>`, original)
	}
	if current != "" {
		fmt.Fprintf(&b, `<p class="current">%s</p>`, current)
	}
	b.WriteString("</li>")
	return b.String()
}

func listing(cards ...string) string {
	return `<html><body><ul class="courses">` + strings.Join(cards, "") + `</ul></body></html>`
}

func extractOne(t *testing.T, cardHTML string) models.CardOutcome {
	t.Helper()
	outcomes, err := NewExtractor(testConfig()).Extract(listing(cardHTML))
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	return outcomes[0]
}

func TestExtractor_Extract(t *testing.T) {
	t.Parallel()

	t.Run("discounted course keeps both prices", func(t *testing.T) {
		t.Parallel()

		out := extractOne(t, card("https://www.inflearn.com/course/go-basics?cid=10", "33,000", "55,000"))

		require.True(t, out.OK())
		assert.Nil(t, out.Failure)
		assert.Equal(t, "https://www.inflearn.com/course/go-basics", out.Lecture.DetailURL)
		assert.Equal(t, utils.HashURL("https://www.inflearn.com/course/go-basics"), out.Lecture.Hash)
		assert.Equal(t, 55000, out.Lecture.OriginalPrice)
		assert.Equal(t, 33000, out.Lecture.CurrentPrice)
		assert.Equal(t, "inflearn", out.Lecture.SourceName)
	})

	t.Run("missing original price falls back to current price", func(t *testing.T) {
		t.Parallel()

		out := extractOne(t, card("https://www.inflearn.com/course/a", "₩22,000", ""))

		require.True(t, out.OK())
		assert.Equal(t, 22000, out.Lecture.OriginalPrice)
		assert.Equal(t, 22000, out.Lecture.CurrentPrice)
	})

	t.Run("unparseable original price falls back without dropping the card", func(t *testing.T) {
		t.Parallel()

		out := extractOne(t, card("https://www.inflearn.com/course/a", "22,000", "정가 미정"))

		require.True(t, out.OK())
		assert.Equal(t, 22000, out.Lecture.OriginalPrice)
		assert.Equal(t, 22000, out.Lecture.CurrentPrice)
	})

	t.Run("free marker short-circuits to zero prices", func(t *testing.T) {
		t.Parallel()

		out := extractOne(t, card("https://www.inflearn.com/course/free", "무료 강의", "55,000"))

		require.True(t, out.OK())
		assert.Equal(t, 0, out.Lecture.OriginalPrice)
		assert.Equal(t, 0, out.Lecture.CurrentPrice)
	})

	t.Run("relative link is resolved against the site root", func(t *testing.T) {
		t.Parallel()

		out := extractOne(t, card("/course/relative?inst=1", "1,000", ""))

		require.True(t, out.OK())
		assert.Equal(t, "https://www.inflearn.com/course/relative", out.Lecture.DetailURL)
	})

	t.Run("korean slug is hashed exactly as written", func(t *testing.T) {
		t.Parallel()

		href := "https://www.inflearn.com/course/스프링-입문?cid=1"
		out := extractOne(t, card(href, "10,000", ""))

		require.True(t, out.OK())
		assert.Equal(t, "https://www.inflearn.com/course/스프링-입문", out.Lecture.DetailURL)
		assert.Equal(t, utils.HashURL(utils.RemoveQueryParams(href)), out.Lecture.Hash)
	})

	t.Run("relative korean slug keeps its raw path", func(t *testing.T) {
		t.Parallel()

		out := extractOne(t, card("/course/코틀린?inst=9", "5,000", ""))

		require.True(t, out.OK())
		assert.Equal(t, "https://www.inflearn.com/course/코틀린", out.Lecture.DetailURL)
		assert.Equal(t, utils.HashURL("https://www.inflearn.com/course/코틀린"), out.Lecture.Hash)
	})

	t.Run("already escaped link is not re-encoded", func(t *testing.T) {
		t.Parallel()

		href := "https://www.inflearn.com/course/%EC%8A%A4%ED%94%84%EB%A7%81"
		out := extractOne(t, card(href, "10,000", ""))

		require.True(t, out.OK())
		assert.Equal(t, href, out.Lecture.DetailURL)
	})

	failures := []struct {
		name   string
		card   string
		reason models.FailureReason
	}{
		{"no link", card("-", "10,000", ""), models.ReasonNoLink},
		{"unparseable link", card("%zz", "10,000", ""), models.ReasonNoLink},
		{"empty href", card("", "10,000", ""), models.ReasonEmptyURL},
		{"query-only href", card("?page=2", "10,000", ""), models.ReasonEmptyURL},
		{"no current price", card("https://www.inflearn.com/course/a", "", "10,000"), models.ReasonNoCurrentPrice},
		{"current price without digits", card("https://www.inflearn.com/course/a", "free", "10,000"), models.ReasonInvalidCurrentPrice},
		{"both prices zero", card("https://www.inflearn.com/course/a", "0", "0"), models.ReasonBothPricesZero},
		{"zero current without original", card("https://www.inflearn.com/course/a", "0", ""), models.ReasonBothPricesZero},
		{"zero current with broken original", card("https://www.inflearn.com/course/a", "0", "n/a"), models.ReasonBothPricesZero},
	}
	for _, tc := range failures {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			out := extractOne(t, tc.card)

			assert.False(t, out.OK())
			assert.Nil(t, out.Lecture)
			require.NotNil(t, out.Failure)
			assert.Equal(t, tc.reason, out.Failure.Reason)
		})
	}

	t.Run("mixed page keeps document order and reports every card", func(t *testing.T) {
		t.Parallel()

		outcomes, err := NewExtractor(testConfig()).Extract(listing(
			card("https://www.inflearn.com/course/1", "1,000", ""),
			card("-", "2,000", ""),
			card("https://www.inflearn.com/course/3", "", ""),
			card("https://www.inflearn.com/course/4", "4,000", "8,000"),
			card("https://www.inflearn.com/course/5", "무료", ""),
		))
		require.NoError(t, err)
		require.Len(t, outcomes, 5)

		for i, out := range outcomes {
			assert.Equal(t, i+1, out.Index)
		}
		assert.True(t, outcomes[0].OK())
		assert.False(t, outcomes[1].OK())
		assert.False(t, outcomes[2].OK())
		assert.True(t, outcomes[3].OK())
		assert.True(t, outcomes[4].OK())
		assert.Equal(t, "https://www.inflearn.com/course/4", outcomes[3].Lecture.DetailURL)
	})

	t.Run("page without cards yields no outcomes", func(t *testing.T) {
		t.Parallel()

		outcomes, err := NewExtractor(testConfig()).Extract(`<html><body><p>검색 결과가 없습니다</p></body></html>`)
		require.NoError(t, err)
		assert.Empty(t, outcomes)
	})
}

func TestExtractor_DefaultSelectors(t *testing.T) {
	t.Parallel()

	tile := func(href, original, current string) string {
		return `<li><a href="` + href + `">` +
			`<div class="css-4542l5 mantine-1avyp1d"><div><div>` +
			`<div><p>` + original + `</p></div>` +
			`<div><p>40%</p><p>` + current + `</p></div>` +
			`</div></div></div></a></li>`
	}
	markup := `<html><body><main><section><h2>추천</h2></section><section>` +
		`<ul class="css-sdr7qd mantine-1avyp1d">` +
		tile("https://www.inflearn.com/course/spring?cid=1", "88,000", "52,800") +
		tile("https://www.inflearn.com/course/kotlin", "", "무료") +
		`</ul></section></main></body></html>`

	outcomes, err := NewExtractor(config.Default().Crawler).Extract(markup)
	require.NoError(t, err)
	require.Len(t, outcomes, 2)

	require.True(t, outcomes[0].OK())
	assert.Equal(t, "https://www.inflearn.com/course/spring", outcomes[0].Lecture.DetailURL)
	assert.Equal(t, 88000, outcomes[0].Lecture.OriginalPrice)
	assert.Equal(t, 52800, outcomes[0].Lecture.CurrentPrice)

	require.True(t, outcomes[1].OK())
	assert.Equal(t, 0, outcomes[1].Lecture.CurrentPrice)
}
