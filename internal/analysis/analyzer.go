// Package analysis wraps the external AI classifier and drives the
// periodic analysis scheduler. The adapter never propagates classifier
// errors: any failure degrades to the deterministic mock result.
package analysis

import (
	"context"
	"log/slog"

	"github.com/sentinelhq/sentinel-backend/internal/models"
)

// Classifier produces a structured analysis of a log batch with recent
// anomalies as context.
type Classifier interface {
	Analyze(ctx context.Context, logs []*models.LogEntry, anomalies []*models.Anomaly) (*models.AIAnalysisResult, error)
}

// Analyzer selects between the network-backed classifier and the mock,
// and guarantees a valid result shape to every caller.
type Analyzer struct {
	classifier Classifier
	enabled    bool
	log        *slog.Logger
}

// NewAnalyzer builds the adapter. When enabled is false or the API key is
// empty, the network classifier is never constructed and every call is
// served by the mock.
func NewAnalyzer(enabled bool, apiKey, model string, log *slog.Logger) *Analyzer {
	if !enabled || apiKey == "" {
		if enabled {
			log.Warn("AI analysis requested but no API key configured; using mock classifier")
		}
		return &Analyzer{classifier: MockClassifier{}, enabled: false, log: log}
	}
	return &Analyzer{classifier: NewGeminiClassifier(apiKey, model), enabled: true, log: log}
}

// NewAnalyzerWithClassifier builds an adapter around an explicit
// classifier implementation.
func NewAnalyzerWithClassifier(c Classifier, log *slog.Logger) *Analyzer {
	return &Analyzer{classifier: c, enabled: true, log: log}
}

// Enabled reports whether the external classifier is configured.
func (a *Analyzer) Enabled() bool {
	return a.enabled
}

// Analyze runs the classifier and falls back to the mock result on any
// error. It always returns a non-nil, validated result.
func (a *Analyzer) Analyze(ctx context.Context, logs []*models.LogEntry, anomalies []*models.Anomaly) *models.AIAnalysisResult {
	result, err := a.classifier.Analyze(ctx, logs, anomalies)
	if err != nil {
		a.log.Error("AI classifier failed, falling back to mock result", "error", err)
		return MockResult()
	}
	if result == nil {
		return MockResult()
	}
	return result
}
