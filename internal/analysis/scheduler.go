package analysis

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sentinelhq/sentinel-backend/internal/models"
	"github.com/sentinelhq/sentinel-backend/internal/pkg/metrics"
	"github.com/sentinelhq/sentinel-backend/internal/repository"
)

const (
	contextWindow    = time.Hour // anomaly context fetched for the classifier
	contextLimit     = 100
	dedupWindow      = 10 * time.Minute
	defaultInterval  = 5 * time.Minute
	defaultCooldown  = 2 * time.Minute
	defaultBatchSize = 50
)

// Publisher delivers newly created anomalies to live subscribers.
type Publisher interface {
	PublishAnomaly(payload models.AnomalyPayload)
}

// Scheduler periodically batches unprocessed logs through the AI
// classifier and reconciles the findings against stored anomalies.
//
// Two independent protections prevent overlapping work: a running flag
// (an overlapping cycle is skipped, never queued) and a cool-down window
// measured from the start of the last completed cycle. Forced runs bypass
// the cool-down but still respect the running flag.
type Scheduler struct {
	repo      repository.Store
	analyzer  *Analyzer
	publisher Publisher
	log       *slog.Logger

	interval  time.Duration
	cooldown  time.Duration
	batchSize int

	running atomic.Bool
	stopCh  chan struct{}

	// cache state, owned by this single long-lived instance
	mu               sync.Mutex
	lastAnalysisTime time.Time
	processedIDs     map[int64]struct{}
}

// NewScheduler creates a scheduler. Zero or negative timing values fall
// back to the defaults (5 minute interval, 2 minute cool-down, batch 50).
func NewScheduler(repo repository.Store, analyzer *Analyzer, publisher Publisher, intervalMin, cooldownMin, batchSize int, log *slog.Logger) *Scheduler {
	interval := time.Duration(intervalMin) * time.Minute
	if interval <= 0 {
		interval = defaultInterval
	}
	cooldown := time.Duration(cooldownMin) * time.Minute
	if cooldown <= 0 {
		cooldown = defaultCooldown
	}
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Scheduler{
		repo:             repo,
		analyzer:         analyzer,
		publisher:        publisher,
		log:              log,
		interval:         interval,
		cooldown:         cooldown,
		batchSize:        batchSize,
		stopCh:           make(chan struct{}),
		lastAnalysisTime: time.Now(),
		processedIDs:     make(map[int64]struct{}),
	}
}

// Start runs the timer loop in a background goroutine until Stop or
// context cancellation.
func (s *Scheduler) Start(ctx context.Context) {
	s.log.Info("starting AI analysis scheduler", "interval", s.interval, "cooldown", s.cooldown, "batch_size", s.batchSize)

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.RunCycle(ctx, false)
			case <-s.stopCh:
				s.log.Info("AI analysis scheduler stopped")
				return
			case <-ctx.Done():
				s.log.Info("AI analysis scheduler context cancelled")
				return
			}
		}
	}()
}

// Stop stops the timer loop. A cycle already executing runs to completion.
func (s *Scheduler) Stop() {
	close(s.stopCh)
}

// LastAnalysisTime returns the start time of the last completed cycle.
func (s *Scheduler) LastAnalysisTime() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAnalysisTime
}

// Running reports whether a cycle is currently executing.
func (s *Scheduler) Running() bool {
	return s.running.Load()
}

// Trigger forces one analysis cycle inline, bypassing the cool-down check
// but not the running flag. It reports whether the cycle actually ran.
func (s *Scheduler) Trigger(ctx context.Context) bool {
	s.log.Info("manually triggering AI analysis")
	return s.RunCycle(ctx, true)
}

// RunCycle executes one analysis cycle. It returns false when the cycle
// was skipped by the running flag or the cool-down window. All internal
// failures are handled; RunCycle never panics the caller.
func (s *Scheduler) RunCycle(ctx context.Context, forced bool) bool {
	if !s.running.CompareAndSwap(false, true) {
		s.log.Info("AI analysis already running, skipping this cycle")
		metrics.AnalysisCyclesSkippedTotal.WithLabelValues("overlap").Inc()
		return false
	}
	// Reset runs even when a cycle fails internally, so a crashed cycle
	// can never wedge the scheduler.
	defer s.running.Store(false)
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("panic in AI analysis cycle", "panic", r)
		}
	}()

	start := time.Now()

	if !forced {
		s.mu.Lock()
		last := s.lastAnalysisTime
		s.mu.Unlock()
		if start.Sub(last) < s.cooldown {
			s.log.Info("skipping AI analysis, cool-down window not elapsed")
			metrics.AnalysisCyclesSkippedTotal.WithLabelValues("cooldown").Inc()
			return false
		}
	}

	s.log.Info("starting AI analysis cycle", "forced", forced)

	logs := s.fetchRecentLogs(ctx)
	if len(logs) == 0 {
		s.log.Info("no recent logs to analyze")
		return false
	}

	contextAnomalies := s.fetchContextAnomalies(ctx)
	s.log.Info("analyzing batch", "logs", len(logs), "context_anomalies", len(contextAnomalies))

	result := s.analyzer.Analyze(ctx, logs, contextAnomalies)
	s.reconcile(ctx, result, logs)

	s.mu.Lock()
	s.lastAnalysisTime = start
	s.processedIDs = make(map[int64]struct{}, len(logs))
	for _, l := range logs {
		s.processedIDs[l.ID] = struct{}{}
	}
	s.mu.Unlock()

	metrics.AnalysisCyclesTotal.Inc()
	s.log.Info("AI analysis cycle complete", "new_candidates", len(result.NewAnomalies))
	return true
}

// fetchRecentLogs loads the next batch, excluding logs processed in the
// previous cycle. A store failure degrades to an empty batch.
func (s *Scheduler) fetchRecentLogs(ctx context.Context) []*models.LogEntry {
	s.mu.Lock()
	exclude := make([]int64, 0, len(s.processedIDs))
	for id := range s.processedIDs {
		exclude = append(exclude, id)
	}
	s.mu.Unlock()

	logs, err := s.repo.ListRecentLogEntries(ctx, exclude, s.batchSize)
	if err != nil {
		s.log.Error("failed to fetch recent logs", "error", err)
		return nil
	}
	return logs
}

// fetchContextAnomalies loads the trailing-hour anomalies used as
// classification context. A store failure degrades to no context.
func (s *Scheduler) fetchContextAnomalies(ctx context.Context) []*models.Anomaly {
	anomalies, err := s.repo.ListAnomaliesSince(ctx, time.Now().Add(-contextWindow), contextLimit)
	if err != nil {
		s.log.Error("failed to fetch context anomalies", "error", err)
		return nil
	}
	return anomalies
}

// reconcile merges classifier findings into stored anomalies: rule hits
// are upgraded to HYBRID, unseen findings become new AI anomalies. One
// failing candidate never aborts the rest.
func (s *Scheduler) reconcile(ctx context.Context, result *models.AIAnalysisResult, logs []*models.LogEntry) {
	for _, candidate := range result.NewAnomalies {
		if err := s.processCandidate(ctx, candidate, logs); err != nil {
			s.log.Error("failed to process AI candidate", "ip", candidate.IP, "error", err)
		}
	}
}

func (s *Scheduler) processCandidate(ctx context.Context, candidate models.AIFinding, logs []*models.LogEntry) error {
	// Relevant log: the first batch entry from the candidate's IP. No
	// match leaves the link empty rather than attaching an unrelated log.
	var relevant *models.LogEntry
	for _, l := range logs {
		if l.IP == candidate.IP {
			relevant = l
			break
		}
	}

	if relevant != nil {
		existing, err := s.repo.FindRecentAnomaly(ctx, candidate.IP, relevant.ID, time.Now().Add(-dedupWindow))
		if err != nil {
			s.log.Error("dedup lookup failed, treating as no match", "ip", candidate.IP, "error", err)
		} else if existing != nil {
			if existing.DetectionSource == models.SourceRule {
				confidence := models.ClampConfidence(candidate.ConfidenceScore)
				if err := s.repo.UpdateAnomalyAI(ctx, existing.ID, models.SourceHybrid,
					candidate.AIExplanation, candidate.RecommendedAction, confidence); err != nil {
					return err
				}
				s.log.Info("upgraded anomaly to HYBRID detection", "anomaly_id", existing.ID)
			}
			// Already AI or HYBRID: nothing left to merge.
			return nil
		}
	}

	explanation := candidate.AIExplanation
	action := candidate.RecommendedAction
	confidence := models.ClampConfidence(candidate.ConfidenceScore)

	anomaly := &models.Anomaly{
		IP:                candidate.IP,
		Severity:          models.CanonicalSeverity(candidate.Severity),
		Reason:            candidate.Reason,
		Timestamp:         time.Now().UTC(),
		DetectionSource:   models.SourceAI,
		AIExplanation:     &explanation,
		RecommendedAction: &action,
		ConfidenceScore:   &confidence,
		Status:            models.StatusOpen,
	}
	if relevant != nil {
		anomaly.LogEntryID = &relevant.ID
	}

	if err := s.repo.CreateAnomaly(ctx, anomaly); err != nil {
		return err
	}

	metrics.AnomaliesCreatedTotal.WithLabelValues(models.SourceAI).Inc()
	s.publisher.PublishAnomaly(models.ToAnomalyPayload(anomaly, relevant))
	s.log.Info("created AI anomaly", "anomaly_id", anomaly.ID, "reason", anomaly.Reason, "severity", anomaly.Severity)
	return nil
}
