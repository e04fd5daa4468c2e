// Package summarize turns fetched articles into short WhatsApp-ready
// summaries via the local language model.
package summarize

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/Naman6019/News-Agent/internal/config"
	"github.com/Naman6019/News-Agent/internal/feed"
	"github.com/Naman6019/News-Agent/internal/ollama"
)

// prefixPattern strips boilerplate lead-ins models like to emit despite the
// prompt telling them not to.
var prefixPattern = regexp.MustCompile(`(?i)^(Summary:|Here's a summary:|In summary:|News Digest:)`)

var whitespacePattern = regexp.MustCompile(`\s+`)

// Summarizer generates one cleaned summary per article.
type Summarizer struct {
	client           *ollama.Client
	maxContentLength int
	maxSummaryLength int
	logger           *slog.Logger
}

// New builds a summarizer around an Ollama client.
func New(client *ollama.Client, cfg *config.Config, logger *slog.Logger) *Summarizer {
	return &Summarizer{
		client:           client,
		maxContentLength: cfg.MaxContentLength,
		maxSummaryLength: cfg.MaxSummaryLength,
		logger:           logger,
	}
}

// Summarize produces a cleaned, length-capped summary for one article.
func (s *Summarizer) Summarize(ctx context.Context, article feed.Article) (string, error) {
	s.logger.Debug("summarizing article", "id", article.ID, "title", capLength(article.Title, 50))

	raw, err := s.client.Generate(ctx, s.buildPrompt(article))
	if err != nil {
		return "", fmt.Errorf("generating summary: %w", err)
	}

	summary := Clean(raw)
	if summary == "" {
		return "", fmt.Errorf("summary empty after cleanup")
	}
	return capLength(summary, s.maxSummaryLength), nil
}

// Fallback derives a summary substitute from the article's own snippet for
// when generation fails. Returns "" when the article has nothing usable.
func (s *Summarizer) Fallback(article feed.Article) string {
	snippet := feed.PlainText(article.Description)
	if snippet == "" {
		return ""
	}
	return capLength(snippet, s.maxSummaryLength)
}

// buildPrompt assembles the summarization prompt for one article.
func (s *Summarizer) buildPrompt(article feed.Article) string {
	content := article.Content
	if content == "" {
		content = article.Description
	}
	if len(content) > s.maxContentLength {
		content = content[:s.maxContentLength] + "..."
	}

	var b strings.Builder
	b.WriteString("You are a professional news summarizer. Create a concise, engaging summary suitable for WhatsApp messaging.\n\n")
	b.WriteString("Article Details:\n")
	fmt.Fprintf(&b, "- Title: %s\n", article.Title)
	fmt.Fprintf(&b, "- Source: %s\n", article.SourceName)
	fmt.Fprintf(&b, "- Category: %s\n\n", article.Category.Title())
	b.WriteString("Content:\n")
	b.WriteString(content)
	b.WriteString("\n\nRequirements:\n")
	b.WriteString("- Focus on key facts and main events\n")
	fmt.Fprintf(&b, "- Keep under %d characters\n", s.maxSummaryLength)
	b.WriteString("- Make it engaging and easy to read\n")
	b.WriteString("- Start directly with the summary (no prefixes)\n\n")
	b.WriteString("Summary:")

	return b.String()
}

// Clean normalizes model output: drops lead-in prefixes, surrounding quotes
// and repeated whitespace, then capitalizes the first letter.
func Clean(summary string) string {
	cleaned := prefixPattern.ReplaceAllString(summary, "")
	cleaned = strings.TrimSpace(cleaned)
	cleaned = strings.Trim(cleaned, `"'`)
	cleaned = whitespacePattern.ReplaceAllString(cleaned, " ")
	cleaned = strings.TrimSpace(cleaned)

	if cleaned == "" {
		return cleaned
	}
	first, size := utf8.DecodeRuneInString(cleaned)
	if unicode.IsLower(first) {
		cleaned = string(unicode.ToUpper(first)) + cleaned[size:]
	}
	return cleaned
}

// capLength trims s to at most max bytes, ending on a rune boundary with an
// ellipsis when cut.
func capLength(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max - 3
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
