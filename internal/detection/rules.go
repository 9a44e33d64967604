// Package detection implements rule-based anomaly detection over ingested
// log entries. Rules are pure functions of the entry plus store history;
// a failing rule degrades to "no finding" and never aborts its siblings.
package detection

import (
	"context"
	"strings"
	"time"

	"github.com/sentinelhq/sentinel-backend/internal/models"
)

// Finding is one rule hit: a severity plus a human-readable reason.
type Finding struct {
	Severity string
	Reason   string
}

// LogHistory is the read-only slice of the store the rules need.
type LogHistory interface {
	CountLogEntries(ctx context.Context, ip, eventType string, since time.Time) (int, error)
}

// LogRecord carries the fields of an ingested log entry relevant to rules.
type LogRecord struct {
	Source    string
	Event     string
	EventType string // empty when the caller omitted it
	IP        string
	User      string
	Timestamp time.Time
}

// Rule evaluates one detection rule against a log record. A nil Finding
// with a nil error means the rule did not trigger.
type Rule interface {
	Name() string
	Evaluate(ctx context.Context, record LogRecord, history LogHistory) (*Finding, error)
}

const (
	bruteForceWindow    = 10 * time.Minute
	bruteForceThreshold = 5 // findings fire strictly above this count

	reasonBruteForce          = "Brute force attempt detected"
	reasonPrivilegeEscalation = "Privilege escalation detected"
)

// BruteForceRule flags an IP with more than five FAILED_LOGIN events in
// the trailing ten minutes, the current event included.
type BruteForceRule struct{}

func (BruteForceRule) Name() string { return "brute_force" }

func (BruteForceRule) Evaluate(ctx context.Context, record LogRecord, history LogHistory) (*Finding, error) {
	if record.EventType != models.EventTypeFailedLogin {
		return nil, nil
	}

	since := record.Timestamp.Add(-bruteForceWindow)
	count, err := history.CountLogEntries(ctx, record.IP, models.EventTypeFailedLogin, since)
	if err != nil {
		return nil, err
	}

	if count > bruteForceThreshold {
		return &Finding{Severity: models.SeverityHigh, Reason: reasonBruteForce}, nil
	}
	return nil, nil
}

// PrivilegeEscalationRule flags event types mentioning sudo or root.
type PrivilegeEscalationRule struct{}

func (PrivilegeEscalationRule) Name() string { return "privilege_escalation" }

func (PrivilegeEscalationRule) Evaluate(ctx context.Context, record LogRecord, history LogHistory) (*Finding, error) {
	if record.EventType == "" {
		return nil, nil
	}

	eventType := strings.ToLower(record.EventType)
	if strings.Contains(eventType, "sudo") || strings.Contains(eventType, "root") {
		return &Finding{Severity: models.SeverityMedium, Reason: reasonPrivilegeEscalation}, nil
	}
	return nil, nil
}

// GeoAnomalyRule is a reserved slot for geographic-reputation checks.
// It currently never triggers.
type GeoAnomalyRule struct{}

func (GeoAnomalyRule) Name() string { return "geo_anomaly" }

func (GeoAnomalyRule) Evaluate(ctx context.Context, record LogRecord, history LogHistory) (*Finding, error) {
	return nil, nil
}
