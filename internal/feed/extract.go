package feed

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// contentSelectors are tried in order against the article page; the first
// selector yielding non-trivial text wins.
var contentSelectors = []string{
	"article",
	"[class*=\"content\"]",
	"[class*=\"article\"]",
	"main",
	".post",
	".entry-content",
}

// extractArticleContent downloads an article page and pulls its readable text.
func (a *Aggregator) extractArticleContent(ctx context.Context, link string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", link, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", a.userAgent)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("parsing page: %w", err)
	}

	doc.Find("script, style, nav, header, footer, aside").Remove()

	for _, selector := range contentSelectors {
		text := collapseText(doc.Find(selector).First().Text())
		if len(text) > 100 {
			return truncate(text, a.maxContentLength), nil
		}
	}

	text := collapseText(doc.Find("body").Text())
	if text == "" {
		return "", fmt.Errorf("no readable content")
	}
	return truncate(text, a.maxContentLength), nil
}

// PlainText strips HTML tags from a fragment, collapsing whitespace. Feed
// descriptions frequently embed markup that must not reach a chat message.
func PlainText(fragment string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return collapseText(fragment)
	}
	return collapseText(doc.Text())
}

// collapseText normalizes all runs of whitespace to single spaces.
func collapseText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// truncate caps s at max characters, appending an ellipsis when cut.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
