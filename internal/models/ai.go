package models

// AIFinding is one new-anomaly candidate returned by the classifier.
type AIFinding struct {
	IP                string `json:"ip"`
	Severity          string `json:"severity"`
	Reason            string `json:"reason"`
	AIExplanation     string `json:"aiExplanation"`
	RecommendedAction string `json:"recommendedAction"`
	ConfidenceScore   int    `json:"confidenceScore"`
}

// AIAnalysisResult is the structured output of one classifier invocation.
// The adapter guarantees this shape even when the external call fails.
type AIAnalysisResult struct {
	NewAnomalies           []AIFinding `json:"newAnomalies"`
	OverallRiskScore       int         `json:"overallRiskScore"`
	ThreatSummary          string      `json:"threatSummary"`
	AttackPatternsDetected []string    `json:"attackPatternsDetected"`
}

// AISummary is the dashboard-facing rollup of recent AI activity.
type AISummary struct {
	LastAnalysisTime       string   `json:"lastAnalysisTime"`
	OverallRiskScore       int      `json:"overallRiskScore"`
	TopThreats             []string `json:"topThreats"`
	AttackPatternsDetected []string `json:"attackPatternsDetected"`
	TotalAIAnomalies       int      `json:"totalAiAnomalies"`
}
