package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sentinelhq/sentinel-backend/internal/models"
)

const geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/models"

// GeminiClassifier calls the Google Generative Language API with the fixed
// security-analysis prompt and parses the JSON it returns.
type GeminiClassifier struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// NewGeminiClassifier creates a classifier for the given API key and model.
func NewGeminiClassifier(apiKey, model string) *GeminiClassifier {
	return &GeminiClassifier{
		apiKey:  apiKey,
		model:   model,
		baseURL: geminiBaseURL,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

// Request/response shapes for the generateContent endpoint. Only the
// fields this service reads are declared.

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func (g *GeminiClassifier) Analyze(ctx context.Context, logs []*models.LogEntry, anomalies []*models.Anomaly) (*models.AIAnalysisResult, error) {
	prompt := buildPrompt(logs, anomalies)

	body, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	url := fmt.Sprintf("%s/%s:generateContent?key=%s", g.baseURL, g.model, g.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("classifier request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("classifier returned status %d", resp.StatusCode)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var parsed geminiResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("classifier returned no candidates")
	}

	return parseAnalysisText(parsed.Candidates[0].Content.Parts[0].Text)
}

// parseAnalysisText parses the classifier's text output into a validated
// AIAnalysisResult. One invalid finding invalidates the whole response;
// out-of-range confidence and risk scores are clamped instead.
func parseAnalysisText(text string) (*models.AIAnalysisResult, error) {
	cleaned := strings.TrimSpace(text)
	cleaned = strings.ReplaceAll(cleaned, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	cleaned = strings.TrimSpace(cleaned)

	var raw struct {
		NewAnomalies           []models.AIFinding `json:"newAnomalies"`
		OverallRiskScore       int                `json:"overallRiskScore"`
		ThreatSummary          string             `json:"threatSummary"`
		AttackPatternsDetected []string           `json:"attackPatternsDetected"`
	}
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return nil, fmt.Errorf("invalid classifier JSON: %w", err)
	}
	if raw.NewAnomalies == nil {
		return nil, fmt.Errorf("invalid response structure: missing newAnomalies array")
	}

	for i := range raw.NewAnomalies {
		f := &raw.NewAnomalies[i]
		if f.IP == "" || f.Severity == "" || f.Reason == "" {
			return nil, fmt.Errorf("invalid finding at index %d: missing required fields", i)
		}
		if !models.ValidSeverity(f.Severity) {
			return nil, fmt.Errorf("invalid finding at index %d: unknown severity %q", i, f.Severity)
		}
		f.Severity = models.CanonicalSeverity(f.Severity)
		f.ConfidenceScore = models.ClampConfidence(f.ConfidenceScore)
	}

	result := &models.AIAnalysisResult{
		NewAnomalies:           raw.NewAnomalies,
		OverallRiskScore:       models.ClampConfidence(raw.OverallRiskScore),
		ThreatSummary:          raw.ThreatSummary,
		AttackPatternsDetected: raw.AttackPatternsDetected,
	}
	if result.ThreatSummary == "" {
		result.ThreatSummary = "No specific threats detected"
	}
	if result.AttackPatternsDetected == nil {
		result.AttackPatternsDetected = []string{}
	}
	return result, nil
}
