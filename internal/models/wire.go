package models

import (
	"strconv"
	"time"
)

// Wire payloads decouple the persisted representation (typed timestamps,
// numeric ids) from what goes over HTTP and WebSocket (RFC3339 strings,
// string ids). The mapping functions are pure so they can be tested in
// isolation.

// LogEntryPayload is the wire shape of a LogEntry.
type LogEntryPayload struct {
	ID        string  `json:"id"`
	Source    string  `json:"source"`
	Event     string  `json:"event"`
	EventType *string `json:"eventType"`
	IP        string  `json:"ip"`
	User      string  `json:"user"`
	Timestamp string  `json:"timestamp"`
}

// AnomalyPayload is the wire shape of an Anomaly.
type AnomalyPayload struct {
	ID                string           `json:"id"`
	IP                string           `json:"ip"`
	Severity          string           `json:"severity"`
	Reason            string           `json:"reason"`
	Timestamp         string           `json:"timestamp"`
	AIExplanation     *string          `json:"aiExplanation"`
	RecommendedAction *string          `json:"recommendedAction"`
	DetectionSource   string           `json:"detectionSource"`
	ConfidenceScore   *int             `json:"confidenceScore"`
	Status            string           `json:"status"`
	ResolutionNotes   *string          `json:"resolutionNotes"`
	ResolvedAt        *string          `json:"resolvedAt"`
	ResolvedBy        *string          `json:"resolvedBy"`
	LogEntry          *LogEntryPayload `json:"logEntry"`
}

// ToLogEntryPayload maps a persisted LogEntry to its wire shape.
func ToLogEntryPayload(e *LogEntry) *LogEntryPayload {
	if e == nil {
		return nil
	}
	return &LogEntryPayload{
		ID:        strconv.FormatInt(e.ID, 10),
		Source:    e.Source,
		Event:     e.Event,
		EventType: e.EventType,
		IP:        e.IP,
		User:      e.User,
		Timestamp: e.Timestamp.UTC().Format(time.RFC3339),
	}
}

// ToAnomalyPayload maps a persisted Anomaly to its wire shape. The
// originating log entry is optional; pass nil when not loaded or not linked.
func ToAnomalyPayload(a *Anomaly, logEntry *LogEntry) AnomalyPayload {
	var resolvedAt *string
	if a.ResolvedAt != nil {
		s := a.ResolvedAt.UTC().Format(time.RFC3339)
		resolvedAt = &s
	}
	return AnomalyPayload{
		ID:                strconv.FormatInt(a.ID, 10),
		IP:                a.IP,
		Severity:          a.Severity,
		Reason:            a.Reason,
		Timestamp:         a.Timestamp.UTC().Format(time.RFC3339),
		AIExplanation:     a.AIExplanation,
		RecommendedAction: a.RecommendedAction,
		DetectionSource:   a.DetectionSource,
		ConfidenceScore:   a.ConfidenceScore,
		Status:            a.Status,
		ResolutionNotes:   a.ResolutionNotes,
		ResolvedAt:        resolvedAt,
		ResolvedBy:        a.ResolvedBy,
		LogEntry:          ToLogEntryPayload(logEntry),
	}
}
