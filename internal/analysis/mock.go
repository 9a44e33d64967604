package analysis

import (
	"context"

	"github.com/sentinelhq/sentinel-backend/internal/models"
)

// MockClassifier returns a fixed, deterministic analysis result. It stands
// in for the external classifier when AI analysis is disabled and is the
// fallback for every classifier failure, so the pipeline stays exercisable
// without network access or credentials.
type MockClassifier struct{}

func (MockClassifier) Analyze(ctx context.Context, logs []*models.LogEntry, anomalies []*models.Anomaly) (*models.AIAnalysisResult, error) {
	return MockResult(), nil
}

// MockResult builds the canonical mock response. Callers get a fresh copy
// on every call so shared state cannot leak between cycles.
func MockResult() *models.AIAnalysisResult {
	return &models.AIAnalysisResult{
		NewAnomalies: []models.AIFinding{
			{
				IP:                "192.168.1.100",
				Severity:          models.SeverityHigh,
				Reason:            "Suspicious data exfiltration pattern",
				AIExplanation:     "Detected unusual data transfer patterns with large file sizes during off-hours, combined with multiple failed authentication attempts suggesting potential data breach attempt.",
				RecommendedAction: "Immediately block this IP, audit data access logs, and check for any unauthorized data transfers.",
				ConfidenceScore:   87,
			},
		},
		OverallRiskScore:       75,
		ThreatSummary:          "High-risk activity detected with potential data exfiltration and brute force attempts. Immediate investigation recommended.",
		AttackPatternsDetected: []string{"Data Exfiltration", "Brute Force", "Off-hours Activity"},
	}
}
