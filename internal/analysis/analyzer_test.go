package analysis

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinelhq/sentinel-backend/internal/models"
)

type fakeClassifier struct {
	result *models.AIAnalysisResult
	err    error
	calls  int
}

func (f *fakeClassifier) Analyze(ctx context.Context, logs []*models.LogEntry, anomalies []*models.Anomaly) (*models.AIAnalysisResult, error) {
	f.calls++
	return f.result, f.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestMockResultIsDeterministicAndIsolated(t *testing.T) {
	a := MockResult()
	b := MockResult()

	assert.Equal(t, a, b)

	// Mutating one copy must not leak into the next.
	a.NewAnomalies[0].IP = "10.10.10.10"
	a.AttackPatternsDetected[0] = "mutated"

	c := MockResult()
	assert.Equal(t, "192.168.1.100", c.NewAnomalies[0].IP)
	assert.Equal(t, "Data Exfiltration", c.AttackPatternsDetected[0])

	assert.Equal(t, models.SeverityHigh, c.NewAnomalies[0].Severity)
	assert.Equal(t, 87, c.NewAnomalies[0].ConfidenceScore)
	assert.Equal(t, 75, c.OverallRiskScore)
}

func TestNewAnalyzerSelection(t *testing.T) {
	t.Run("disabled uses mock", func(t *testing.T) {
		a := NewAnalyzer(false, "key", "gemini-1.5-flash", testLogger())
		assert.False(t, a.Enabled())
	})

	t.Run("enabled without key falls back to mock", func(t *testing.T) {
		a := NewAnalyzer(true, "", "gemini-1.5-flash", testLogger())
		assert.False(t, a.Enabled())
	})

	t.Run("enabled with key uses external classifier", func(t *testing.T) {
		a := NewAnalyzer(true, "key", "gemini-1.5-flash", testLogger())
		assert.True(t, a.Enabled())
	})
}

func TestAnalyzerFallsBackOnError(t *testing.T) {
	classifier := &fakeClassifier{err: errors.New("quota exceeded")}
	a := NewAnalyzerWithClassifier(classifier, testLogger())

	result := a.Analyze(context.Background(), nil, nil)
	require.NotNil(t, result)
	assert.Equal(t, MockResult(), result)
	assert.Equal(t, 1, classifier.calls)
}

func TestAnalyzerFallsBackOnNilResult(t *testing.T) {
	a := NewAnalyzerWithClassifier(&fakeClassifier{}, testLogger())

	result := a.Analyze(context.Background(), nil, nil)
	require.NotNil(t, result)
	assert.Equal(t, MockResult(), result)
}

func TestAnalyzerPassesThroughClassifierResult(t *testing.T) {
	want := &models.AIAnalysisResult{
		NewAnomalies:           []models.AIFinding{},
		OverallRiskScore:       10,
		ThreatSummary:          "quiet hour",
		AttackPatternsDetected: []string{},
	}
	a := NewAnalyzerWithClassifier(&fakeClassifier{result: want}, testLogger())

	got := a.Analyze(context.Background(), nil, nil)
	assert.Same(t, want, got)
}

func TestParseAnalysisText(t *testing.T) {
	t.Run("strips markdown fences", func(t *testing.T) {
		text := "```json\n{\"newAnomalies\":[],\"overallRiskScore\":20,\"threatSummary\":\"ok\",\"attackPatternsDetected\":[\"Scan\"]}\n```"
		result, err := parseAnalysisText(text)
		require.NoError(t, err)
		assert.Empty(t, result.NewAnomalies)
		assert.Equal(t, 20, result.OverallRiskScore)
		assert.Equal(t, "ok", result.ThreatSummary)
		assert.Equal(t, []string{"Scan"}, result.AttackPatternsDetected)
	})

	t.Run("rejects missing newAnomalies", func(t *testing.T) {
		_, err := parseAnalysisText(`{"overallRiskScore":10}`)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "newAnomalies")
	})

	t.Run("rejects malformed JSON", func(t *testing.T) {
		_, err := parseAnalysisText("not json at all")
		require.Error(t, err)
	})

	t.Run("one bad finding invalidates the response", func(t *testing.T) {
		text := `{"newAnomalies":[
			{"ip":"1.2.3.4","severity":"HIGH","reason":"ok","confidenceScore":90},
			{"ip":"","severity":"LOW","reason":"missing ip"}
		],"overallRiskScore":50}`
		_, err := parseAnalysisText(text)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "index 1")
	})

	t.Run("rejects unknown severity", func(t *testing.T) {
		text := `{"newAnomalies":[{"ip":"1.2.3.4","severity":"EXTREME","reason":"x"}]}`
		_, err := parseAnalysisText(text)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "EXTREME")
	})

	t.Run("canonicalizes severity case", func(t *testing.T) {
		text := `{"newAnomalies":[{"ip":"1.2.3.4","severity":"high","reason":"x","confidenceScore":55}]}`
		result, err := parseAnalysisText(text)
		require.NoError(t, err)
		assert.Equal(t, models.SeverityHigh, result.NewAnomalies[0].Severity)
	})

	t.Run("clamps out-of-range scores", func(t *testing.T) {
		text := `{"newAnomalies":[{"ip":"1.2.3.4","severity":"HIGH","reason":"x","confidenceScore":150}],"overallRiskScore":-10}`
		result, err := parseAnalysisText(text)
		require.NoError(t, err)
		assert.Equal(t, 100, result.NewAnomalies[0].ConfidenceScore)
		assert.Equal(t, 0, result.OverallRiskScore)
	})

	t.Run("defaults empty summary and patterns", func(t *testing.T) {
		result, err := parseAnalysisText(`{"newAnomalies":[]}`)
		require.NoError(t, err)
		assert.Equal(t, "No specific threats detected", result.ThreatSummary)
		require.NotNil(t, result.AttackPatternsDetected)
		assert.Empty(t, result.AttackPatternsDetected)
	})
}
