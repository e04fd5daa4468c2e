package digest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Naman6019/News-Agent/internal/cache"
	"github.com/Naman6019/News-Agent/internal/config"
	"github.com/Naman6019/News-Agent/internal/feed"
	"github.com/Naman6019/News-Agent/internal/schedule"
	"github.com/Naman6019/News-Agent/internal/summarize"
	"github.com/Naman6019/News-Agent/internal/whatsapp"
)

// Service runs the full digest pipeline: fetch feeds, summarize articles,
// format the message, deliver it over WhatsApp.
type Service struct {
	cfg        *config.Config
	aggregator *feed.Aggregator
	summarizer *summarize.Summarizer
	messenger  *whatsapp.Client
	seen       *cache.SeenStore
	location   *time.Location
	logger     *slog.Logger
	now        func() time.Time

	mu   sync.Mutex
	last *Report
}

// NewService wires the digest pipeline together. The seen store may be nil
// when cross-cycle deduplication is disabled.
func NewService(cfg *config.Config, aggregator *feed.Aggregator, summarizer *summarize.Summarizer, messenger *whatsapp.Client, seen *cache.SeenStore, logger *slog.Logger) *Service {
	location, err := cfg.Location()
	if err != nil {
		location = time.UTC
	}

	return &Service{
		cfg:        cfg,
		aggregator: aggregator,
		summarizer: summarizer,
		messenger:  messenger,
		seen:       seen,
		location:   location,
		logger:     logger,
		now:        time.Now,
	}
}

// Run executes one digest cycle. Individual source and summary failures
// degrade the cycle instead of aborting it; the report records each one.
// Producing no content at all, or failing to deliver, fails the cycle and
// triggers an error notification to the recipient.
func (s *Service) Run(ctx context.Context, slot schedule.Slot) Report {
	report := Report{
		ID:        uuid.NewString(),
		Slot:      slot,
		StartedAt: s.now(),
		Delivery:  DeliveryNone,
	}
	s.logger.Info("starting digest cycle", "run_id", report.ID, "slot", slot)

	sections := s.collect(ctx, &report)

	if report.Articles == 0 {
		report.Error = fmt.Sprintf("No news content available for %s delivery", slot)
		report.Outcome = OutcomeFailed
		s.finish(&report)
		s.notifyError(ctx, report.Error)
		return report
	}

	report.Sections = len(sections)
	report.Message = Format(slot, s.now().In(s.location), sections, s.cfg.MaxMessageLength)

	if err := s.messenger.SendDigest(ctx, report.Message); err != nil {
		if errors.Is(err, whatsapp.ErrNotConfigured) {
			report.Delivery = DeliverySkipped
			report.Degradations = append(report.Degradations, Degradation{
				Stage:   "deliver",
				Subject: "whatsapp",
				Reason:  "messaging not configured",
			})
		} else {
			report.Delivery = DeliveryFailed
			report.Error = fmt.Sprintf("Failed to send %s news via WhatsApp: %v", slot, err)
			report.Outcome = OutcomeFailed
			s.finish(&report)
			s.notifyError(ctx, report.Error)
			return report
		}
	} else {
		report.Delivery = DeliveryDelivered
		s.markDelivered(sections)
		s.confirmDelivery(ctx, slot, report.Articles)
	}

	if len(report.Degradations) > 0 {
		report.Outcome = OutcomeDegraded
	} else {
		report.Outcome = OutcomeOK
	}
	s.finish(&report)
	return report
}

// Preview builds a digest without delivering it. It does not mark articles
// as seen and does not become the service's last report.
func (s *Service) Preview(ctx context.Context, slot schedule.Slot) Report {
	report := Report{
		ID:        uuid.NewString(),
		Slot:      slot,
		StartedAt: s.now(),
		Delivery:  DeliveryNone,
	}

	sections := s.collect(ctx, &report)
	report.FinishedAt = s.now()

	if report.Articles == 0 {
		report.Error = fmt.Sprintf("No news content available for %s delivery", slot)
		report.Outcome = OutcomeFailed
		return report
	}

	report.Sections = len(sections)
	report.Message = Format(slot, s.now().In(s.location), sections, s.cfg.MaxMessageLength)
	if len(report.Degradations) > 0 {
		report.Outcome = OutcomeDegraded
	} else {
		report.Outcome = OutcomeOK
	}
	return report
}

// LastReport returns a copy of the most recent cycle report, or nil before
// the first cycle has finished.
func (s *Service) LastReport() *Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return nil
	}
	snapshot := *s.last
	return &snapshot
}

// SelfTestResult reports which pipeline stages are currently working.
type SelfTestResult struct {
	RSSAggregator bool `json:"rss_aggregator"`
	Summarizer    bool `json:"summarizer"`
	WhatsApp      bool `json:"whatsapp"`
	Overall       bool `json:"overall"`
}

// SelfTest probes each pipeline stage with one minimal real request: a single
// category fetch, one summarization, and a WhatsApp test message.
func (s *Service) SelfTest(ctx context.Context) SelfTestResult {
	var result SelfTestResult

	articles, sourceErrs := s.aggregator.FetchCategory(ctx, feed.CategoryTechnology)
	result.RSSAggregator = len(articles) > 0
	if len(sourceErrs) > 0 {
		s.logger.Warn("self-test feed failures", "count", len(sourceErrs))
	}

	if len(articles) > 0 {
		if _, err := s.summarizer.Summarize(ctx, articles[0]); err != nil {
			s.logger.Warn("self-test summarization failed", "error", err)
		} else {
			result.Summarizer = true
		}
	}

	if err := s.messenger.SendTestMessage(ctx); err != nil {
		if !errors.Is(err, whatsapp.ErrNotConfigured) {
			s.logger.Warn("self-test message failed", "error", err)
		}
	} else {
		result.WhatsApp = true
	}

	result.Overall = result.RSSAggregator && result.Summarizer && result.WhatsApp
	return result
}

// collect fetches and summarizes articles for every category, recording
// degradations on the report as it goes. A failed summarization falls back
// to the article's own description.
func (s *Service) collect(ctx context.Context, report *Report) []Section {
	byCategory, sourceErrs := s.aggregator.FetchAll(ctx)
	for _, sourceErr := range sourceErrs {
		report.Degradations = append(report.Degradations, Degradation{
			Stage:   "fetch",
			Subject: sourceErr.URL,
			Reason:  sourceErr.Err.Error(),
		})
	}

	var sections []Section
	for _, category := range feed.Categories() {
		articles := byCategory[category]
		if s.seen != nil && s.cfg.DedupeEnabled {
			fresh := s.seen.FilterNew(articles)
			if dropped := len(articles) - len(fresh); dropped > 0 {
				s.logger.Info("skipping already delivered articles", "category", category, "count", dropped)
			}
			articles = fresh
		}
		if len(articles) == 0 {
			continue
		}

		section := Section{Category: category}
		for _, article := range articles {
			summary, err := s.summarizer.Summarize(ctx, article)
			if err != nil {
				report.Degradations = append(report.Degradations, Degradation{
					Stage:   "summarize",
					Subject: article.ID,
					Reason:  err.Error(),
				})
				summary = s.summarizer.Fallback(article)
			} else {
				report.Summarized++
			}
			section.Entries = append(section.Entries, Entry{Article: article, Summary: summary})
			report.Articles++
		}
		sections = append(sections, section)
	}
	return sections
}

// markDelivered records delivered article IDs in the seen store.
func (s *Service) markDelivered(sections []Section) {
	if s.seen == nil || !s.cfg.DedupeEnabled {
		return
	}
	var ids []string
	for _, section := range sections {
		for _, entry := range section.Entries {
			ids = append(ids, entry.Article.ID)
		}
	}
	s.seen.Mark(ids...)
}

// confirmDelivery sends the post-delivery confirmation message when enabled.
func (s *Service) confirmDelivery(ctx context.Context, slot schedule.Slot, articleCount int) {
	if !s.cfg.DeliveryConfirmation {
		return
	}
	if err := s.messenger.SendDeliveryConfirmation(ctx, string(slot), articleCount); err != nil && !errors.Is(err, whatsapp.ErrNotConfigured) {
		s.logger.Warn("failed to send delivery confirmation", "error", err)
	}
}

// notifyError pushes a failure notice to the recipient so missed digests do
// not go unnoticed.
func (s *Service) notifyError(ctx context.Context, message string) {
	if err := s.messenger.SendErrorNotification(ctx, message); err != nil && !errors.Is(err, whatsapp.ErrNotConfigured) {
		s.logger.Error("failed to send error notification", "error", err)
	}
}

// finish stamps the report, stores it as the last run, and logs a summary.
func (s *Service) finish(report *Report) {
	report.FinishedAt = s.now()

	s.mu.Lock()
	snapshot := *report
	s.last = &snapshot
	s.mu.Unlock()

	s.logger.Info("digest cycle finished",
		"run_id", report.ID,
		"slot", report.Slot,
		"outcome", report.Outcome,
		"articles", report.Articles,
		"summarized", report.Summarized,
		"sections", report.Sections,
		"delivery", report.Delivery,
		"degradations", len(report.Degradations),
		"duration", report.Duration().Round(time.Millisecond),
	)
}
