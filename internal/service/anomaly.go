package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/sentinelhq/sentinel-backend/internal/models"
	"github.com/sentinelhq/sentinel-backend/internal/repository"
)

const (
	// DefaultAnomalyPageSize is the page size when the caller omits limit.
	DefaultAnomalyPageSize = 15
	// MaxLogsByIP caps the logs-by-IP query.
	MaxLogsByIP = 100

	summaryWindow   = time.Hour
	summaryFetchCap = 100
	topThreatsCap   = 5
	patternsCap     = 3

	// missing confidence scores count as 50 in the risk mean
	defaultConfidence = 50
)

// AnomalyPage is one page of anomalies ordered by timestamp descending.
type AnomalyPage struct {
	Anomalies       []models.AnomalyPayload `json:"anomalies"`
	TotalCount      int                     `json:"totalCount"`
	HasNextPage     bool                    `json:"hasNextPage"`
	HasPreviousPage bool                    `json:"hasPreviousPage"`
}

// StatusUpdateResult reports the outcome of a lifecycle transition.
type StatusUpdateResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// LastAnalysisTimer exposes the scheduler's last completed cycle time to
// the summary query.
type LastAnalysisTimer interface {
	LastAnalysisTime() time.Time
}

// AnomalyService serves the dashboard queries and the status mutation.
type AnomalyService struct {
	repo  repository.Store
	timer LastAnalysisTimer
	log   *slog.Logger
}

// NewAnomalyService creates the query/status service.
func NewAnomalyService(repo repository.Store, timer LastAnalysisTimer, log *slog.Logger) *AnomalyService {
	return &AnomalyService{repo: repo, timer: timer, log: log}
}

// ListAnomalies returns one page ordered by timestamp descending. The
// originating log entry is resolved per anomaly; a failed lookup leaves
// the link null rather than failing the page.
func (s *AnomalyService) ListAnomalies(ctx context.Context, limit, offset int) (*AnomalyPage, error) {
	if limit <= 0 {
		limit = DefaultAnomalyPageSize
	}
	if offset < 0 {
		offset = 0
	}

	anomalies, total, err := s.repo.ListAnomalies(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list anomalies: %w", err)
	}

	payloads := make([]models.AnomalyPayload, 0, len(anomalies))
	for _, a := range anomalies {
		payloads = append(payloads, models.ToAnomalyPayload(a, s.resolveLogEntry(ctx, a)))
	}

	return &AnomalyPage{
		Anomalies:       payloads,
		TotalCount:      total,
		HasNextPage:     offset+len(anomalies) < total,
		HasPreviousPage: offset > 0,
	}, nil
}

// LogsByIP returns up to 100 most-recent log entries for one IP.
func (s *AnomalyService) LogsByIP(ctx context.Context, ip string) ([]*models.LogEntryPayload, error) {
	if ip == "" {
		return nil, fmt.Errorf("ip is required")
	}

	entries, err := s.repo.ListLogEntriesByIP(ctx, ip, MaxLogsByIP)
	if err != nil {
		return nil, fmt.Errorf("failed to list logs for ip %s: %w", ip, err)
	}

	payloads := make([]*models.LogEntryPayload, 0, len(entries))
	for _, e := range entries {
		payloads = append(payloads, models.ToLogEntryPayload(e))
	}
	return payloads, nil
}

// AnomaliesByIP returns every anomaly recorded for one IP, newest first.
func (s *AnomalyService) AnomaliesByIP(ctx context.Context, ip string) ([]models.AnomalyPayload, error) {
	if ip == "" {
		return nil, fmt.Errorf("ip is required")
	}

	anomalies, err := s.repo.ListAnomaliesByIP(ctx, ip)
	if err != nil {
		return nil, fmt.Errorf("failed to list anomalies for ip %s: %w", ip, err)
	}

	payloads := make([]models.AnomalyPayload, 0, len(anomalies))
	for _, a := range anomalies {
		payloads = append(payloads, models.ToAnomalyPayload(a, s.resolveLogEntry(ctx, a)))
	}
	return payloads, nil
}

// AISummary rolls up the trailing hour of AI and HYBRID anomalies. The
// risk score is the rounded mean confidence (missing scores count as 50),
// capped at 100, and zero when no AI activity exists. A store failure
// degrades to an empty summary rather than an error.
func (s *AnomalyService) AISummary(ctx context.Context) *models.AISummary {
	summary := &models.AISummary{
		LastAnalysisTime:       s.timer.LastAnalysisTime().UTC().Format(time.RFC3339),
		TopThreats:             []string{},
		AttackPatternsDetected: []string{},
	}

	recent, err := s.repo.ListAnomaliesSince(ctx, time.Now().Add(-summaryWindow), summaryFetchCap)
	if err != nil {
		s.log.Error("failed to fetch anomalies for AI summary", "error", err)
		return summary
	}

	var aiAnomalies []*models.Anomaly
	for _, a := range recent {
		if a.DetectionSource == models.SourceAI || a.DetectionSource == models.SourceHybrid {
			aiAnomalies = append(aiAnomalies, a)
		}
	}
	summary.TotalAIAnomalies = len(aiAnomalies)
	if len(aiAnomalies) == 0 {
		return summary
	}

	sum := 0
	for _, a := range aiAnomalies {
		if a.ConfidenceScore != nil {
			sum += *a.ConfidenceScore
		} else {
			sum += defaultConfidence
		}
	}
	mean := int(math.Round(float64(sum) / float64(len(aiAnomalies))))
	if mean > 100 {
		mean = 100
	}
	summary.OverallRiskScore = mean

	summary.TopThreats = distinctReasons(aiAnomalies, topThreatsCap)
	summary.AttackPatternsDetected = distinctReasons(aiAnomalies, patternsCap)
	return summary
}

// UpdateStatus applies one lifecycle transition. Invalid ids, unknown
// statuses, and forbidden transitions come back as success=false without
// touching the store. Terminal transitions record the resolution fields.
func (s *AnomalyService) UpdateStatus(ctx context.Context, id int64, status string, notes, resolvedBy *string) StatusUpdateResult {
	if !models.ValidStatus(status) {
		return StatusUpdateResult{Success: false, Message: fmt.Sprintf("unknown status: %s", status)}
	}

	anomaly, err := s.repo.GetAnomaly(ctx, id)
	if err != nil || anomaly == nil {
		return StatusUpdateResult{Success: false, Message: fmt.Sprintf("anomaly not found: %d", id)}
	}

	if !models.ValidStatusTransition(anomaly.Status, status) {
		return StatusUpdateResult{
			Success: false,
			Message: fmt.Sprintf("invalid status transition: %s -> %s", anomaly.Status, status),
		}
	}

	var resolvedAt *time.Time
	if models.IsTerminalStatus(status) {
		now := time.Now().UTC()
		resolvedAt = &now
	} else {
		notes, resolvedBy = nil, nil
	}

	if err := s.repo.UpdateAnomalyStatus(ctx, id, status, notes, resolvedBy, resolvedAt); err != nil {
		s.log.Error("failed to update anomaly status", "anomaly_id", id, "error", err)
		return StatusUpdateResult{Success: false, Message: "failed to update status"}
	}

	return StatusUpdateResult{Success: true, Message: fmt.Sprintf("status updated to %s", status)}
}

// distinctReasons returns up to max distinct reasons in list order.
func distinctReasons(anomalies []*models.Anomaly, max int) []string {
	seen := make(map[string]struct{}, len(anomalies))
	reasons := []string{}
	for _, a := range anomalies {
		if _, ok := seen[a.Reason]; ok {
			continue
		}
		seen[a.Reason] = struct{}{}
		reasons = append(reasons, a.Reason)
		if len(reasons) == max {
			break
		}
	}
	return reasons
}

// resolveLogEntry loads the anomaly's originating log, or nil when the
// anomaly has no link or the lookup fails.
func (s *AnomalyService) resolveLogEntry(ctx context.Context, a *models.Anomaly) *models.LogEntry {
	if a.LogEntryID == nil {
		return nil
	}
	entry, err := s.repo.GetLogEntry(ctx, *a.LogEntryID)
	if err != nil {
		s.log.Error("failed to resolve anomaly log entry", "anomaly_id", a.ID, "log_entry_id", *a.LogEntryID, "error", err)
		return nil
	}
	return entry
}
