package models

import (
	"strings"
	"time"
)

// Severity levels, canonicalized to upper case at the boundary.
const (
	SeverityCritical = "CRITICAL"
	SeverityHigh     = "HIGH"
	SeverityMedium   = "MEDIUM"
	SeverityLow      = "LOW"
)

// Detection sources. A RULE anomaly becomes HYBRID when AI analysis
// merges into it; the transition is one-way.
const (
	SourceRule   = "RULE"
	SourceAI     = "AI"
	SourceHybrid = "HYBRID"
)

// Lifecycle statuses. FALSE_POSITIVE and RESOLVED are terminal.
const (
	StatusOpen          = "OPEN"
	StatusInvestigating = "INVESTIGATING"
	StatusFalsePositive = "FALSE_POSITIVE"
	StatusResolved      = "RESOLVED"
)

// Anomaly is a persisted record of one flagged suspicious condition.
// LogEntryID is a non-owning back-reference; AI-only findings may have none.
type Anomaly struct {
	ID                int64      `json:"id" db:"id"`
	IP                string     `json:"ip" db:"ip"`
	Severity          string     `json:"severity" db:"severity"`
	Reason            string     `json:"reason" db:"reason"`
	Timestamp         time.Time  `json:"timestamp" db:"timestamp"`
	DetectionSource   string     `json:"detection_source" db:"detection_source"`
	AIExplanation     *string    `json:"ai_explanation,omitempty" db:"ai_explanation"`
	RecommendedAction *string    `json:"recommended_action,omitempty" db:"recommended_action"`
	ConfidenceScore   *int       `json:"confidence_score,omitempty" db:"confidence_score"`
	LogEntryID        *int64     `json:"log_entry_id,omitempty" db:"log_entry_id"`
	Status            string     `json:"status" db:"status"`
	ResolutionNotes   *string    `json:"resolution_notes,omitempty" db:"resolution_notes"`
	ResolvedBy        *string    `json:"resolved_by,omitempty" db:"resolved_by"`
	ResolvedAt        *time.Time `json:"resolved_at,omitempty" db:"resolved_at"`
}

// CanonicalSeverity maps a case-insensitive severity to its canonical form.
// Unknown values fall back to LOW rather than being rejected.
func CanonicalSeverity(s string) string {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case SeverityCritical:
		return SeverityCritical
	case SeverityHigh:
		return SeverityHigh
	case SeverityMedium:
		return SeverityMedium
	case SeverityLow:
		return SeverityLow
	default:
		return SeverityLow
	}
}

// ValidSeverity reports whether s is one of the four severity levels,
// ignoring case.
func ValidSeverity(s string) bool {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow:
		return true
	}
	return false
}

// ValidStatus reports whether s is a known lifecycle status.
func ValidStatus(s string) bool {
	switch s {
	case StatusOpen, StatusInvestigating, StatusFalsePositive, StatusResolved:
		return true
	}
	return false
}

// ValidStatusTransition reports whether an anomaly may move from one
// lifecycle status to another. Terminal states accept no transitions.
func ValidStatusTransition(from, to string) bool {
	if from == to {
		return false
	}
	switch from {
	case StatusOpen:
		return to == StatusInvestigating || to == StatusFalsePositive || to == StatusResolved
	case StatusInvestigating:
		return to == StatusFalsePositive || to == StatusResolved
	default:
		return false
	}
}

// IsTerminalStatus reports whether s is FALSE_POSITIVE or RESOLVED.
func IsTerminalStatus(s string) bool {
	return s == StatusFalsePositive || s == StatusResolved
}

// ClampConfidence forces a confidence score into the canonical 0-100
// percent range. Out-of-range values are clamped, never rejected.
func ClampConfidence(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
