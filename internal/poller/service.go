// Package poller drives the pipeline: for every tracked subject it
// fetches, normalizes, classifies, scores and persists mentions, then
// runs the alert pass over newly found crisis mentions. One cycle is a
// single logical run invoked by the scheduler or the HTTP trigger;
// overlapping cycles are rejected so concurrent runs cannot race the
// same platform rate limits.
package poller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/aurashield/mentions-bot/internal/alerts"
	"github.com/aurashield/mentions-bot/internal/archive"
	"github.com/aurashield/mentions-bot/internal/models"
	"github.com/aurashield/mentions-bot/internal/normalize"
	"github.com/aurashield/mentions-bot/internal/scoring"
	"github.com/aurashield/mentions-bot/internal/sources"
	"github.com/aurashield/mentions-bot/internal/store"
	"github.com/aurashield/mentions-bot/internal/transport"
)

// ErrCycleInProgress is returned when a cycle is invoked while another
// one is still running.
var ErrCycleInProgress = errors.New("a polling cycle is already running")

// Classifier assigns a sentiment label; it never fails.
type Classifier interface {
	Classify(ctx context.Context, text string) models.Sentiment
}

// Dispatcher fans one crisis mention out to the user's channels.
type Dispatcher interface {
	Dispatch(ctx context.Context, mention *models.Mention, cfg *models.ChannelConfig) *alerts.Report
}

// Options are the orchestrator's tuning knobs.
type Options struct {
	BatchSize            int
	BatchDelay           time.Duration
	MaxConcurrentFetches int
	MaxPages             int
	AlertBatchLimit      int
	CrisisThreshold      float64
	CycleBudget          time.Duration
}

func (o *Options) fillDefaults() {
	if o.BatchSize <= 0 {
		o.BatchSize = 10
	}
	if o.BatchDelay <= 0 {
		o.BatchDelay = time.Second
	}
	if o.MaxConcurrentFetches <= 0 {
		o.MaxConcurrentFetches = 4
	}
	if o.MaxPages <= 0 {
		o.MaxPages = 3
	}
	if o.AlertBatchLimit <= 0 {
		o.AlertBatchLimit = 20
	}
	if o.CrisisThreshold <= 0 {
		o.CrisisThreshold = scoring.DefaultThreshold
	}
	if o.CycleBudget <= 0 {
		o.CycleBudget = 30 * time.Minute
	}
}

// Service is the batch poll orchestrator.
type Service struct {
	connectors []sources.Connector
	classifier Classifier
	scorer     *scoring.Scorer
	mentions   store.MentionStore
	subjects   store.SubjectStore
	dispatcher Dispatcher
	archiver   archive.Archiver
	opts       Options

	runMu sync.Mutex

	mu         sync.RWMutex
	lastReport *models.CycleReport
}

// NewService creates the orchestrator.
func NewService(
	connectors []sources.Connector,
	classifier Classifier,
	scorer *scoring.Scorer,
	mentions store.MentionStore,
	subjects store.SubjectStore,
	dispatcher Dispatcher,
	archiver archive.Archiver,
	opts Options,
) *Service {
	opts.fillDefaults()
	if archiver == nil {
		archiver = archive.Noop{}
	}
	return &Service{
		connectors: connectors,
		classifier: classifier,
		scorer:     scorer,
		mentions:   mentions,
		subjects:   subjects,
		dispatcher: dispatcher,
		archiver:   archiver,
		opts:       opts,
	}
}

// subjectResult is what one subject's poll contributes to the report.
type subjectResult struct {
	stored  []models.Mention
	skipped int
	errors  int
}

// RunCycle performs one complete run: fetch and persist mentions for
// every tracked subject in rate-limited batches, then dispatch alerts
// for unalerted crisis mentions. It returns a report even when
// individual subjects failed; the error is non-nil only for fatal
// conditions (another cycle running, subjects unlistable).
func (s *Service) RunCycle(ctx context.Context) (*models.CycleReport, error) {
	if !s.runMu.TryLock() {
		return nil, ErrCycleInProgress
	}
	defer s.runMu.Unlock()

	start := time.Now()
	logrus.Info("Starting polling cycle")

	ctx, cancel := context.WithTimeout(ctx, s.opts.CycleBudget)
	defer cancel()

	subjects, err := s.subjects.ListSubjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("cannot list tracked subjects: %w", err)
	}

	report := &models.CycleReport{
		SourceCounts:       make(map[string]int),
		SentimentBreakdown: make(map[string]int),
		StartedAt:          start.UTC(),
	}

	suspended := newSuspensionSet()
	limiter := rate.NewLimiter(rate.Every(s.opts.BatchDelay), 1)

	for i := 0; i < len(subjects); i += s.opts.BatchSize {
		// Paces batches: the first Wait is immediate, every later one
		// observes the configured inter-batch delay.
		if err := limiter.Wait(ctx); err != nil {
			logrus.Warnf("Cycle budget exhausted, abandoning remaining batches: %v", err)
			break
		}

		end := i + s.opts.BatchSize
		if end > len(subjects) {
			end = len(subjects)
		}
		s.pollBatch(ctx, subjects[i:end], suspended, report)
	}

	s.alertPass(ctx, report)

	report.SuspendedPlatforms = suspended.names()
	report.Duration = time.Since(start).String()
	s.setLastReport(report)
	s.archiveReport(report)

	logrus.Infof("Polling cycle completed in %v: polled=%d errors=%d alerts=%d",
		time.Since(start), report.Polled, report.Errors, report.AlertsSent)
	return report, nil
}

// LastReport returns the most recent cycle report, nil before the
// first run.
func (s *Service) LastReport() *models.CycleReport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastReport
}

func (s *Service) setLastReport(r *models.CycleReport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastReport = r
}

// pollBatch fetches all subjects of one batch through a bounded worker
// pool and folds their results into the report.
func (s *Service) pollBatch(ctx context.Context, batch []models.Subject, suspended *suspensionSet, report *models.CycleReport) {
	var wg sync.WaitGroup
	results := make(chan subjectResult, len(batch))
	sem := make(chan struct{}, s.opts.MaxConcurrentFetches)

	for _, subject := range batch {
		wg.Add(1)
		go func(subject models.Subject) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			results <- s.pollSubject(ctx, subject, suspended)
		}(subject)
	}

	wg.Wait()
	close(results)

	for result := range results {
		report.Errors += result.errors
		report.Skipped += result.skipped
		report.Polled += len(result.stored)
		for _, m := range result.stored {
			report.SourceCounts[string(m.Source)]++
			report.SentimentBreakdown[string(m.Sentiment)]++
		}
	}
}

// pollSubject runs the fetch-normalize-classify-score-persist chain for
// one subject across every enabled, unsuspended connector. Failures are
// counted, never propagated: one subject cannot sink the cycle.
func (s *Service) pollSubject(ctx context.Context, subject models.Subject, suspended *suspensionSet) subjectResult {
	var result subjectResult

	// Fetch and normalize per platform first; scoring needs the
	// platform aggregates of the whole window.
	bySource := make(map[models.Source][]models.Mention)

	for _, connector := range s.connectors {
		source := connector.Name()
		if !connector.Enabled() || suspended.has(source) {
			continue
		}

		items, err := s.fetchAll(ctx, connector, subject)
		if err != nil {
			var rateLimited *transport.RateLimitedError
			if errors.As(err, &rateLimited) {
				logrus.Warnf("Platform %s rate limited, suspending for this cycle (retry after %s)",
					source, rateLimited.RetryAfter)
				suspended.add(source)
			} else {
				logrus.Errorf("Fetching %s mentions for subject %q failed: %v", source, subject.Value, err)
			}
			result.errors++
			// Items fetched before the failure still flow through the
			// pipeline below.
		}

		for _, item := range items {
			mention, err := normalize.Normalize(source, subject, item)
			if err != nil {
				logrus.Debugf("Skipping malformed item: %v", err)
				result.skipped++
				continue
			}
			mention.Sentiment = s.classifier.Classify(ctx, mention.Text)
			bySource[source] = append(bySource[source], mention)
		}
	}

	for source, mentions := range bySource {
		agg := scoring.PlatformAggregates{TotalMentions: len(mentions)}
		for _, m := range mentions {
			if m.Sentiment == models.SentimentNegative {
				agg.NegativeMentions++
			}
		}
		velocity := float64(len(mentions))

		for i := range mentions {
			m := &mentions[i]
			score, severity := s.scorer.Score(scoring.Input{
				Sentiment:      m.Sentiment,
				EngagementRate: float64(m.Engagement),
				Velocity:       velocity,
			}, agg)

			m.CrisisScore = score
			m.Severity = severity
			m.IsCrisis = scoring.IsCrisis(score, s.opts.CrisisThreshold)

			stored, err := s.mentions.Upsert(ctx, m)
			if err != nil {
				logrus.Errorf("Persisting %s mention %s failed: %v", source, m.ExternalRef, err)
				result.errors++
				continue
			}
			result.stored = append(result.stored, *stored)
		}
	}

	return result
}

// fetchAll follows the connector's cursor up to MaxPages. A rate limit
// on any page is returned alongside the items fetched so far, so the
// caller both persists them and suspends the platform.
func (s *Service) fetchAll(ctx context.Context, connector sources.Connector, subject models.Subject) ([]sources.RawItem, error) {
	var items []sources.RawItem
	cursor := ""

	for page := 0; page < s.opts.MaxPages; page++ {
		result, err := connector.FetchMentions(ctx, subject, cursor)
		if err != nil {
			var rateLimited *transport.RateLimitedError
			if errors.As(err, &rateLimited) {
				return items, err
			}
			// Keep what earlier pages already returned.
			if len(items) > 0 {
				logrus.Warnf("Page %d of %s fetch failed, keeping %d items: %v",
					page+1, connector.Name(), len(items), err)
				return items, nil
			}
			return nil, err
		}

		items = append(items, result.Items...)
		if result.NextCursor == "" {
			break
		}
		cursor = result.NextCursor
	}

	return items, nil
}

// alertPass evaluates alerting for mentions found in this and previous
// cycles. Non-crisis mentions are bulk-marked processed; each crisis
// candidate gets one dispatch across the owner's enabled channels and
// is marked alerted once all of them were attempted. A candidate whose
// owner has no enabled channels stays queued for a later pass.
func (s *Service) alertPass(ctx context.Context, report *models.CycleReport) {
	if _, err := s.mentions.MarkNonCrisisProcessed(ctx); err != nil {
		logrus.Errorf("Failed to mark non-crisis mentions processed: %v", err)
		report.Errors++
	}

	candidates, err := s.mentions.ListAlertCandidates(ctx, s.opts.AlertBatchLimit)
	if err != nil {
		logrus.Errorf("Failed to list alert candidates: %v", err)
		report.Errors++
		return
	}

	for i := range candidates {
		mention := &candidates[i]

		cfg, err := s.subjects.ChannelConfig(ctx, mention.UserID)
		if err != nil {
			logrus.Errorf("Failed to load channel config for mention %s: %v", mention.ID, err)
			report.Errors++
			continue
		}

		if err := s.mentions.MarkProcessed(ctx, mention.ID); err != nil {
			logrus.Errorf("Failed to mark mention %s processed: %v", mention.ID, err)
			report.Errors++
		}

		if len(cfg.EnabledChannels()) == 0 {
			logrus.Debugf("No channels enabled for user %s, leaving mention %s queued", mention.UserID, mention.ID)
			continue
		}

		dispatchReport := s.dispatcher.Dispatch(ctx, mention, cfg)

		// All enabled channels were attempted; the alert state flips
		// regardless of per-channel failures, which are already logged
		// and recorded in the dispatch report.
		if err := s.mentions.MarkAlerted(ctx, mention.ID); err != nil {
			logrus.Errorf("Failed to mark mention %s alerted: %v", mention.ID, err)
			report.Errors++
			continue
		}

		report.AlertsSent++
		if dispatchReport.Failed() > 0 {
			logrus.Warnf("Alert for mention %s delivered with %d/%d channel failures",
				mention.ID, dispatchReport.Failed(), dispatchReport.Attempted())
		}
	}
}

func (s *Service) archiveReport(report *models.CycleReport) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		logrus.Errorf("Failed to marshal cycle report: %v", err)
		return
	}

	name := fmt.Sprintf("cycle-%s.json", report.StartedAt.Format("2006-01-02-15-04-05"))
	if err := s.archiver.Store(name, data); err != nil {
		logrus.Errorf("Failed to archive cycle report: %v", err)
	}
}

// suspensionSet tracks platforms rate limited during the current cycle.
type suspensionSet struct {
	mu  sync.Mutex
	set map[models.Source]bool
}

func newSuspensionSet() *suspensionSet {
	return &suspensionSet{set: make(map[models.Source]bool)}
}

func (s *suspensionSet) add(source models.Source) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.set[source] = true
}

func (s *suspensionSet) has(source models.Source) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.set[source]
}

func (s *suspensionSet) names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var names []string
	for source := range s.set {
		names = append(names, string(source))
	}
	return names
}
