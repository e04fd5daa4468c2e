package digest

import (
	"strings"
	"testing"
	"time"

	"github.com/Naman6019/News-Agent/internal/feed"
	"github.com/Naman6019/News-Agent/internal/schedule"
)

func sampleSections() []Section {
	return []Section{
		{
			Category: feed.CategoryTechnology,
			Entries: []Entry{
				{
					Article: feed.Article{Title: "Chips Rally", SourceName: "techcrunch.com", Link: "https://techcrunch.com/chips"},
					Summary: "Chip stocks rallied after strong earnings.",
				},
				{
					Article: feed.Article{Title: "New Phone", SourceName: "theverge.com", Link: "https://theverge.com/phone"},
					Summary: "A new phone launched today.",
				},
			},
		},
		{
			Category: feed.CategoryScience,
			Entries: []Entry{
				{
					Article: feed.Article{Title: "Mars Probe", SourceName: "nature.com", Link: "https://nature.com/mars"},
					Summary: "A probe reached Mars orbit.",
				},
			},
		},
	}
}

func TestFormat(t *testing.T) {
	date := time.Date(2025, 3, 15, 8, 0, 0, 0, time.UTC)

	got := Format(schedule.SlotMorning, date, sampleSections(), 4000)

	want := strings.Join([]string{
		"📰 *Good morning! Here's your Morning News Digest*",
		"📅 15/03/2025",
		"",
		"*Technology News:*",
		"• *Chips Rally* (techcrunch.com)",
		"  Chip stocks rallied after strong earnings.",
		"• *New Phone* (theverge.com)",
		"  A new phone launched today.",
		"*Sources:*",
		"🔗 techcrunch.com: https://techcrunch.com/chips",
		"🔗 theverge.com: https://theverge.com/phone",
		"",
		"*Science News:*",
		"• *Mars Probe* (nature.com)",
		"  A probe reached Mars orbit.",
		"*Sources:*",
		"🔗 nature.com: https://nature.com/mars",
		"",
		"_Powered by Ollama & AI News Agent_",
	}, "\n")

	if got != want {
		t.Errorf("Digest mismatch.\nExpected:\n%s\n\nGot:\n%s", want, got)
	}
}

func TestFormatEveningHeader(t *testing.T) {
	date := time.Date(2025, 3, 15, 18, 0, 0, 0, time.UTC)

	got := Format(schedule.SlotEvening, date, sampleSections(), 4000)

	if !strings.Contains(got, "Good evening! Here's your Evening News Digest") {
		t.Errorf("Expected evening header, got:\n%s", got)
	}
}

func TestFormatOmitsEmptySections(t *testing.T) {
	sections := []Section{
		{Category: feed.CategoryTechnology, Entries: sampleSections()[0].Entries},
		{Category: feed.CategoryBusiness},
	}

	got := Format(schedule.SlotMorning, time.Now(), sections, 4000)

	if strings.Contains(got, "*Business News:*") {
		t.Errorf("Expected empty section to be omitted, got:\n%s", got)
	}
	if !strings.Contains(got, "*Technology News:*") {
		t.Errorf("Expected technology section, got:\n%s", got)
	}
}

func TestFormatLimitsSourceLinks(t *testing.T) {
	section := Section{
		Category: feed.CategoryWorld,
		Entries: []Entry{
			{Article: feed.Article{Title: "A", SourceName: "one.com", Link: "https://one.com/a"}, Summary: "First."},
			{Article: feed.Article{Title: "B", SourceName: "two.com", Link: "https://two.com/b"}, Summary: "Second."},
			{Article: feed.Article{Title: "C", SourceName: "three.com", Link: "https://three.com/c"}, Summary: "Third."},
		},
	}

	got := Format(schedule.SlotMorning, time.Now(), []Section{section}, 4000)

	if count := strings.Count(got, "🔗"); count != 2 {
		t.Errorf("Expected 2 source links, got %d:\n%s", count, got)
	}
	if strings.Contains(got, "https://three.com/c") {
		t.Errorf("Expected third link to be dropped, got:\n%s", got)
	}
}

func TestFormatHeadlineOnlyEntry(t *testing.T) {
	section := Section{
		Category: feed.CategoryBusiness,
		Entries: []Entry{
			{Article: feed.Article{Title: "Markets Close Flat", SourceName: "ft.com", Link: "https://ft.com/flat"}},
		},
	}

	got := Format(schedule.SlotEvening, time.Now(), []Section{section}, 4000)

	if !strings.Contains(got, "• *Markets Close Flat* (ft.com)") {
		t.Errorf("Expected headline bullet, got:\n%s", got)
	}
	if strings.Contains(got, "\n  ") {
		t.Errorf("Expected no summary line for empty summary, got:\n%s", got)
	}
}

func TestFormatCapsLength(t *testing.T) {
	got := Format(schedule.SlotMorning, time.Now(), sampleSections(), 120)

	if len(got) > 120 {
		t.Errorf("Expected digest capped at 120 bytes, got %d", len(got))
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("Expected truncated digest to end with ellipsis, got: %q", got)
	}
}

func TestReportDuration(t *testing.T) {
	report := Report{
		StartedAt:  time.Date(2025, 3, 15, 8, 0, 0, 0, time.UTC),
		FinishedAt: time.Date(2025, 3, 15, 8, 0, 42, 0, time.UTC),
	}

	if report.Duration() != 42*time.Second {
		t.Errorf("Expected duration 42s, got %v", report.Duration())
	}
}
