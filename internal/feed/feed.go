package feed

import (
	"context"
	"crypto/md5"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/Naman6019/News-Agent/internal/config"
)

// Category identifies one of the fixed news categories.
type Category string

const (
	CategoryTechnology Category = "technology"
	CategoryBusiness   Category = "business"
	CategoryScience    Category = "science"
	CategoryWorld      Category = "world"
)

// Categories returns all categories in canonical digest order.
func Categories() []Category {
	return []Category{CategoryTechnology, CategoryBusiness, CategoryScience, CategoryWorld}
}

// ParseCategory validates a category name.
func ParseCategory(value string) (Category, error) {
	for _, category := range Categories() {
		if string(category) == strings.ToLower(strings.TrimSpace(value)) {
			return category, nil
		}
	}
	return "", fmt.Errorf("unknown category %q", value)
}

// Title returns the category name with an upper-case first letter.
func (c Category) Title() string {
	s := string(c)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// Article represents a news article parsed from an RSS feed.
// Immutable once created; discarded after the digest cycle.
type Article struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Content     string    `json:"content,omitempty"`
	Link        string    `json:"link"`
	PublishedAt time.Time `json:"published_at"`
	SourceURL   string    `json:"source_url"`
	SourceName  string    `json:"source_name"`
	Category    Category  `json:"category"`
}

// SourceError records one failed feed source within an aggregation pass.
type SourceError struct {
	Category Category
	URL      string
	Err      error
}

func (e SourceError) Error() string {
	return fmt.Sprintf("%s feed %s: %v", e.Category, e.URL, e.Err)
}

func (e SourceError) Unwrap() error {
	return e.Err
}

// Aggregator fetches and parses the configured RSS feeds per category.
type Aggregator struct {
	httpClient       *http.Client
	parser           *gofeed.Parser
	feeds            map[Category][]string
	userAgent        string
	maxPerCategory   int
	maxAge           time.Duration
	extractContent   bool
	maxContentLength int
	logger           *slog.Logger

	now func() time.Time // test seam for the article age filter
}

// NewAggregator creates an aggregator from the loaded configuration.
func NewAggregator(cfg *config.Config, logger *slog.Logger) *Aggregator {
	feeds := make(map[Category][]string, len(cfg.Feeds))
	for _, category := range Categories() {
		feeds[category] = append([]string(nil), cfg.Feeds[string(category)]...)
	}

	return &Aggregator{
		httpClient: &http.Client{
			Timeout: cfg.RSSFetchTimeout,
		},
		parser:           gofeed.NewParser(),
		feeds:            feeds,
		userAgent:        "Mozilla/5.0 (compatible; NewsAgentBot/1.0; +https://newsagent.ai)",
		maxPerCategory:   cfg.MaxArticlesPerCategory,
		maxAge:           cfg.MaxArticleAge,
		extractContent:   cfg.ExtractContent,
		maxContentLength: cfg.MaxContentLength,
		logger:           logger,
		now:              time.Now,
	}
}

// Feeds returns the configured category -> feed URL map.
func (a *Aggregator) Feeds() map[Category][]string {
	out := make(map[Category][]string, len(a.feeds))
	for category, urls := range a.feeds {
		out[category] = append([]string(nil), urls...)
	}
	return out
}

// FetchAll aggregates every category in canonical order. Failed sources are
// skipped and reported; they never abort the pass.
func (a *Aggregator) FetchAll(ctx context.Context) (map[Category][]Article, []SourceError) {
	all := make(map[Category][]Article, len(a.feeds))
	var failures []SourceError

	for _, category := range Categories() {
		articles, errs := a.FetchCategory(ctx, category)
		all[category] = articles
		failures = append(failures, errs...)
	}

	total := 0
	for _, articles := range all {
		total += len(articles)
	}
	a.logger.Info("aggregation complete", "articles", total, "failed_sources", len(failures))

	return all, failures
}

// FetchCategory fetches all feeds of one category, preserving feed order and
// in-feed order, then applies the per-category cap.
func (a *Aggregator) FetchCategory(ctx context.Context, category Category) ([]Article, []SourceError) {
	urls, ok := a.feeds[category]
	if !ok {
		a.logger.Warn("unknown category requested", "category", category)
		return nil, nil
	}

	var articles []Article
	var failures []SourceError

	for _, feedURL := range urls {
		fetched, err := a.fetchFeed(ctx, feedURL, category)
		if err != nil {
			a.logger.Warn("skipping feed source", "category", category, "url", feedURL, "error", err)
			failures = append(failures, SourceError{Category: category, URL: feedURL, Err: err})
			continue
		}
		a.logger.Debug("feed fetched", "category", category, "url", feedURL, "articles", len(fetched))
		articles = append(articles, fetched...)
	}

	if len(articles) > a.maxPerCategory {
		articles = articles[:a.maxPerCategory]
	}

	if a.extractContent {
		for i := range articles {
			if articles[i].Content != "" {
				continue
			}
			content, err := a.extractArticleContent(ctx, articles[i].Link)
			if err != nil {
				a.logger.Debug("content extraction failed", "link", articles[i].Link, "error", err)
				continue
			}
			articles[i].Content = content
		}
	}

	return articles, failures
}

// fetchFeed downloads and parses a single feed URL.
func (a *Aggregator) fetchFeed(ctx context.Context, feedURL string, category Category) ([]Article, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("User-Agent", a.userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	parsed, err := a.parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing feed: %w", err)
	}

	if len(parsed.Items) == 0 {
		return nil, fmt.Errorf("no entries in feed")
	}

	var articles []Article
	for _, item := range parsed.Items {
		article, ok := a.parseItem(item, feedURL, category)
		if !ok {
			continue
		}
		articles = append(articles, article)
	}

	return articles, nil
}

// parseItem converts one feed entry into an Article; entries without a title
// or link, and entries older than the configured maximum age, are dropped.
func (a *Aggregator) parseItem(item *gofeed.Item, sourceURL string, category Category) (Article, bool) {
	title := strings.TrimSpace(item.Title)
	if title == "" {
		return Article{}, false
	}

	link := item.Link
	if link == "" && len(item.Links) > 0 {
		link = item.Links[0]
	}
	if link == "" {
		return Article{}, false
	}

	published := a.now()
	switch {
	case item.PublishedParsed != nil:
		published = *item.PublishedParsed
	case item.UpdatedParsed != nil:
		published = *item.UpdatedParsed
	}

	if published.Before(a.now().Add(-a.maxAge)) {
		return Article{}, false
	}

	return Article{
		ID:          articleID(title, link, published),
		Title:       title,
		Description: strings.TrimSpace(item.Description),
		Content:     strings.TrimSpace(item.Content),
		Link:        link,
		PublishedAt: published,
		SourceURL:   sourceURL,
		SourceName:  sourceNameFromURL(sourceURL),
		Category:    category,
	}, true
}

// articleID derives a stable short identifier from title, link and timestamp.
func articleID(title, link string, published time.Time) string {
	hash := md5.Sum([]byte(title + link + published.Format(time.RFC3339)))
	return fmt.Sprintf("%x", hash)[:12]
}

// sourceNameFromURL reduces a feed URL to its host without a www prefix.
func sourceNameFromURL(feedURL string) string {
	parsed, err := url.Parse(feedURL)
	if err != nil || parsed.Host == "" {
		return feedURL
	}
	return strings.TrimPrefix(parsed.Hostname(), "www.")
}
