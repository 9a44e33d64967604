package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToLogEntryPayload(t *testing.T) {
	t.Run("nil in nil out", func(t *testing.T) {
		assert.Nil(t, ToLogEntryPayload(nil))
	})

	t.Run("maps fields to wire shape", func(t *testing.T) {
		eventType := "FAILED_LOGIN"
		entry := &LogEntry{
			ID:        42,
			Source:    "auth-service",
			Event:     "login failed",
			EventType: &eventType,
			IP:        "10.0.0.5",
			User:      "alice",
			Timestamp: time.Date(2026, 8, 29, 12, 0, 0, 0, time.FixedZone("CEST", 2*3600)),
		}

		payload := ToLogEntryPayload(entry)
		assert.Equal(t, "42", payload.ID)
		assert.Equal(t, "2026-08-29T10:00:00Z", payload.Timestamp, "timestamps normalize to UTC")
		require.NotNil(t, payload.EventType)
		assert.Equal(t, "FAILED_LOGIN", *payload.EventType)
	})
}

func TestToAnomalyPayload(t *testing.T) {
	confidence := 80
	explanation := "correlated with exfiltration"
	resolvedAt := time.Date(2026, 8, 29, 13, 0, 0, 0, time.UTC)
	logID := int64(42)

	anomaly := &Anomaly{
		ID:              7,
		IP:              "10.0.0.5",
		Severity:        SeverityHigh,
		Reason:          "Brute force attempt detected",
		Timestamp:       time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC),
		DetectionSource: SourceHybrid,
		AIExplanation:   &explanation,
		ConfidenceScore: &confidence,
		LogEntryID:      &logID,
		Status:          StatusResolved,
		ResolvedAt:      &resolvedAt,
	}
	entry := &LogEntry{ID: 42, Source: "auth-service", Event: "e", IP: "10.0.0.5", User: "alice",
		Timestamp: time.Date(2026, 8, 29, 11, 59, 0, 0, time.UTC)}

	payload := ToAnomalyPayload(anomaly, entry)
	assert.Equal(t, "7", payload.ID)
	assert.Equal(t, SourceHybrid, payload.DetectionSource)
	require.NotNil(t, payload.ResolvedAt)
	assert.Equal(t, "2026-08-29T13:00:00Z", *payload.ResolvedAt)
	require.NotNil(t, payload.LogEntry)
	assert.Equal(t, "42", payload.LogEntry.ID)

	t.Run("optional fields serialize as null", func(t *testing.T) {
		bare := ToAnomalyPayload(&Anomaly{ID: 1, Timestamp: time.Now()}, nil)
		raw, err := json.Marshal(bare)
		require.NoError(t, err)
		assert.Contains(t, string(raw), `"logEntry":null`)
		assert.Contains(t, string(raw), `"confidenceScore":null`)
	})
}

func TestCanonicalSeverity(t *testing.T) {
	assert.Equal(t, SeverityHigh, CanonicalSeverity("high"))
	assert.Equal(t, SeverityCritical, CanonicalSeverity(" Critical "))
	assert.Equal(t, SeverityLow, CanonicalSeverity("bogus"))
	assert.Equal(t, SeverityLow, CanonicalSeverity(""))
}

func TestValidStatusTransition(t *testing.T) {
	tests := []struct {
		from, to string
		want     bool
	}{
		{StatusOpen, StatusInvestigating, true},
		{StatusOpen, StatusFalsePositive, true},
		{StatusOpen, StatusResolved, true},
		{StatusInvestigating, StatusResolved, true},
		{StatusInvestigating, StatusFalsePositive, true},
		{StatusInvestigating, StatusOpen, false},
		{StatusResolved, StatusOpen, false},
		{StatusFalsePositive, StatusInvestigating, false},
		{StatusOpen, StatusOpen, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ValidStatusTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestClampConfidence(t *testing.T) {
	assert.Equal(t, 0, ClampConfidence(-10))
	assert.Equal(t, 100, ClampConfidence(150))
	assert.Equal(t, 87, ClampConfidence(87))
}
