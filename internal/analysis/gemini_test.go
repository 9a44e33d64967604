package analysis

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinelhq/sentinel-backend/internal/models"
)

func geminiBody(analysisJSON string) string {
	resp := map[string]any{
		"candidates": []map[string]any{
			{"content": map[string]any{"parts": []map[string]string{{"text": analysisJSON}}}},
		},
	}
	raw, _ := json.Marshal(resp)
	return string(raw)
}

func newServerClassifier(t *testing.T, handler http.HandlerFunc) *GeminiClassifier {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	g := NewGeminiClassifier("test-key", "gemini-1.5-flash")
	g.baseURL = server.URL
	return g
}

func TestGeminiClassifierAnalyze(t *testing.T) {
	analysis := `{"newAnomalies":[{"ip":"1.2.3.4","severity":"HIGH","reason":"exfil","aiExplanation":"x","recommendedAction":"block","confidenceScore":91}],"overallRiskScore":70,"threatSummary":"bad","attackPatternsDetected":["Exfiltration"]}`

	var gotPath, gotKey string
	g := newServerClassifier(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.URL.Query().Get("key")

		var req geminiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Contents, 1)
		assert.Contains(t, req.Contents[0].Parts[0].Text, "cybersecurity expert")

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(geminiBody("```json\n" + analysis + "\n```")))
	})

	logs := []*models.LogEntry{{ID: 1, Source: "s", Event: "e", IP: "1.2.3.4", User: "u", Timestamp: time.Now().UTC()}}
	result, err := g.Analyze(context.Background(), logs, nil)
	require.NoError(t, err)

	assert.Equal(t, "/gemini-1.5-flash:generateContent", gotPath)
	assert.Equal(t, "test-key", gotKey)
	require.Len(t, result.NewAnomalies, 1)
	assert.Equal(t, "1.2.3.4", result.NewAnomalies[0].IP)
	assert.Equal(t, 91, result.NewAnomalies[0].ConfidenceScore)
	assert.Equal(t, 70, result.OverallRiskScore)
}

func TestGeminiClassifierHTTPErrors(t *testing.T) {
	t.Run("non-200 status", func(t *testing.T) {
		g := newServerClassifier(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		})
		_, err := g.Analyze(context.Background(), nil, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "429")
	})

	t.Run("no candidates", func(t *testing.T) {
		g := newServerClassifier(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"candidates":[]}`))
		})
		_, err := g.Analyze(context.Background(), nil, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no candidates")
	})

	t.Run("invalid analysis payload", func(t *testing.T) {
		g := newServerClassifier(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(geminiBody("this is prose, not JSON")))
		})
		_, err := g.Analyze(context.Background(), nil, nil)
		require.Error(t, err)
	})
}
