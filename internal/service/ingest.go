// Package service implements the ingestion pipeline and the anomaly
// query/status operations exposed by the REST layer.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sentinelhq/sentinel-backend/internal/detection"
	"github.com/sentinelhq/sentinel-backend/internal/models"
	"github.com/sentinelhq/sentinel-backend/internal/pkg/metrics"
	"github.com/sentinelhq/sentinel-backend/internal/pkg/validate"
	"github.com/sentinelhq/sentinel-backend/internal/repository"
)

// RuleConfidence is the fixed confidence assigned to rule-based anomalies.
// The canonical scale is integer percent 0-100; the historical rule
// confidence of 0.8 on a 0-1 scale maps to 80.
const RuleConfidence = 80

// defaultAnomalyReason is recorded when no rule triggers, so every
// ingested log yields at least one auditable anomaly.
const defaultAnomalyReason = "No specific anomalies detected"

// Publisher delivers newly created anomalies to live subscribers.
type Publisher interface {
	PublishAnomaly(payload models.AnomalyPayload)
}

// IngestInput is one inbound log record. EventType is the only optional
// field.
type IngestInput struct {
	Source    string `json:"source"`
	Event     string `json:"event"`
	EventType string `json:"eventType,omitempty"`
	IP        string `json:"ip"`
	User      string `json:"user"`
}

// IngestResult reports the outcome of one ingestion call.
type IngestResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// IngestService receives log records, persists them, runs rule detection,
// and publishes resulting anomalies.
type IngestService struct {
	repo      repository.Store
	engine    *detection.Engine
	publisher Publisher
	log       *slog.Logger
}

// NewIngestService creates the ingestion pipeline.
func NewIngestService(repo repository.Store, engine *detection.Engine, publisher Publisher, log *slog.Logger) *IngestService {
	return &IngestService{
		repo:      repo,
		engine:    engine,
		publisher: publisher,
		log:       log,
	}
}

// Ingest runs one log record through the pipeline: validate, persist the
// log, evaluate rules, persist and publish anomalies. Validation failures
// reject the call before anything is persisted. A failed log write fails
// the whole call; a failed anomaly write or publish is logged and skipped.
func (s *IngestService) Ingest(ctx context.Context, input IngestInput) (IngestResult, error) {
	if err := validateIngestInput(input); err != nil {
		return IngestResult{Success: false, Message: err.Error()}, nil
	}

	entry := &models.LogEntry{
		Source:    input.Source,
		Event:     input.Event,
		IP:        input.IP,
		User:      input.User,
		Timestamp: time.Now().UTC(),
	}
	if input.EventType != "" {
		eventType := input.EventType
		entry.EventType = &eventType
	}

	if err := s.repo.CreateLogEntry(ctx, entry); err != nil {
		s.log.Error("failed to persist log entry", "source", input.Source, "error", err)
		return IngestResult{Success: false, Message: "failed to ingest log"}, fmt.Errorf("failed to persist log entry: %w", err)
	}
	metrics.LogsIngestedTotal.Inc()

	findings := s.engine.Detect(ctx, detection.LogRecord{
		Source:    entry.Source,
		Event:     entry.Event,
		EventType: input.EventType,
		IP:        entry.IP,
		User:      entry.User,
		Timestamp: entry.Timestamp,
	}, s.repo)

	if len(findings) == 0 {
		findings = []detection.Finding{{Severity: models.SeverityLow, Reason: defaultAnomalyReason}}
	}

	for _, finding := range findings {
		s.createRuleAnomaly(ctx, entry, finding)
	}

	return IngestResult{Success: true, Message: "Log received"}, nil
}

// createRuleAnomaly persists and publishes one rule finding. Failures are
// logged and skipped so the remaining findings still land.
func (s *IngestService) createRuleAnomaly(ctx context.Context, entry *models.LogEntry, finding detection.Finding) {
	confidence := RuleConfidence
	anomaly := &models.Anomaly{
		IP:              entry.IP,
		Severity:        models.CanonicalSeverity(finding.Severity),
		Reason:          finding.Reason,
		Timestamp:       time.Now().UTC(),
		DetectionSource: models.SourceRule,
		ConfidenceScore: &confidence,
		LogEntryID:      &entry.ID,
		Status:          models.StatusOpen,
	}

	if err := s.repo.CreateAnomaly(ctx, anomaly); err != nil {
		s.log.Error("failed to persist anomaly", "ip", entry.IP, "reason", finding.Reason, "error", err)
		return
	}

	metrics.AnomaliesCreatedTotal.WithLabelValues(models.SourceRule).Inc()
	s.publisher.PublishAnomaly(models.ToAnomalyPayload(anomaly, entry))
	s.log.Info("created rule anomaly", "anomaly_id", anomaly.ID, "reason", anomaly.Reason, "severity", anomaly.Severity)
}

func validateIngestInput(input IngestInput) error {
	switch {
	case input.Source == "":
		return fmt.Errorf("source is required")
	case input.Event == "":
		return fmt.Errorf("event is required")
	case input.IP == "":
		return fmt.Errorf("ip is required")
	case input.User == "":
		return fmt.Errorf("user is required")
	case !validate.Source(input.Source):
		return fmt.Errorf("source exceeds %d characters", validate.SourceMaxLen)
	case !validate.Event(input.Event):
		return fmt.Errorf("event exceeds %d characters", validate.EventMaxLen)
	case !validate.EventType(input.EventType):
		return fmt.Errorf("invalid event type")
	case !validate.User(input.User):
		return fmt.Errorf("user exceeds %d characters", validate.UserMaxLen)
	}
	return nil
}
