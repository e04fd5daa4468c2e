// Package digest assembles summarized articles into WhatsApp-ready news
// digests and records the outcome of each delivery cycle.
package digest

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Naman6019/News-Agent/internal/feed"
	"github.com/Naman6019/News-Agent/internal/schedule"
)

// Outcome classifies a finished digest cycle.
type Outcome string

const (
	// OutcomeOK means every stage of the cycle completed cleanly.
	OutcomeOK Outcome = "ok"
	// OutcomeDegraded means the digest went out but some sources or
	// summaries failed along the way.
	OutcomeDegraded Outcome = "degraded"
	// OutcomeFailed means no digest could be produced or delivered.
	OutcomeFailed Outcome = "failed"
)

// Delivery states recorded on a Report.
const (
	DeliveryDelivered = "delivered"
	DeliverySkipped   = "skipped"
	DeliveryFailed    = "failed"
	DeliveryNone      = "none"
)

// Degradation records one contained failure inside a cycle.
type Degradation struct {
	Stage   string `json:"stage"`
	Subject string `json:"subject"`
	Reason  string `json:"reason"`
}

// Report describes a single digest cycle from fetch to delivery.
type Report struct {
	ID           string        `json:"id"`
	Slot         schedule.Slot `json:"slot"`
	StartedAt    time.Time     `json:"started_at"`
	FinishedAt   time.Time     `json:"finished_at"`
	Articles     int           `json:"articles"`
	Summarized   int           `json:"summarized"`
	Sections     int           `json:"sections"`
	Message      string        `json:"message,omitempty"`
	Delivery     string        `json:"delivery"`
	Degradations []Degradation `json:"degradations,omitempty"`
	Outcome      Outcome       `json:"outcome"`
	Error        string        `json:"error,omitempty"`
}

// Duration returns the elapsed wall time of the cycle.
func (r Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Entry pairs one article with its summary. An empty summary renders as a
// headline-only bullet.
type Entry struct {
	Article feed.Article
	Summary string
}

// Section groups one category's entries in digest order.
type Section struct {
	Category feed.Category
	Entries  []Entry
}

// maxSourceLinks caps the links listed under each section's Sources block.
const maxSourceLinks = 2

// Format renders sections into a WhatsApp digest message. Sections without
// entries are omitted. The result is capped at maxLength bytes.
func Format(slot schedule.Slot, date time.Time, sections []Section, maxLength int) string {
	parts := []string{
		fmt.Sprintf("📰 *%s! Here's your %s News Digest*", slot.Greeting(), slot.Title()),
		"📅 " + date.Format("02/01/2006"),
		"",
	}

	for _, section := range sections {
		if len(section.Entries) == 0 {
			continue
		}

		parts = append(parts, fmt.Sprintf("*%s News:*", section.Category.Title()))
		for _, entry := range section.Entries {
			parts = append(parts, fmt.Sprintf("• *%s* (%s)", entry.Article.Title, entry.Article.SourceName))
			if entry.Summary != "" {
				parts = append(parts, "  "+entry.Summary)
			}
		}

		parts = append(parts, "*Sources:*")
		for i, entry := range section.Entries {
			if i == maxSourceLinks {
				break
			}
			parts = append(parts, fmt.Sprintf("🔗 %s: %s", entry.Article.SourceName, entry.Article.Link))
		}
		parts = append(parts, "")
	}

	parts = append(parts, "_Powered by Ollama & AI News Agent_")
	return capLength(strings.Join(parts, "\n"), maxLength)
}

// capLength truncates s to at most max bytes, replacing the tail with "..."
// without splitting a UTF-8 sequence.
func capLength(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	cut := max - 3
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
