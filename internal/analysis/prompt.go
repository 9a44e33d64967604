package analysis

import (
	"fmt"
	"strings"
	"time"

	"github.com/sentinelhq/sentinel-backend/internal/models"
)

// securityAnalysisPrompt is the fixed contract with the external
// classifier. The response must be a single JSON document matching
// models.AIAnalysisResult.
const securityAnalysisPrompt = `You are a cybersecurity expert analyzing log data for potential threats and anomalies. Analyze the provided logs and identify security issues that may have been missed by rule-based detection.

## Your Task:
1. Identify suspicious patterns, attack vectors, and security threats
2. Explain WHY each anomaly is suspicious with technical details
3. Rate severity: CRITICAL, HIGH, MEDIUM, or LOW
4. Provide specific, actionable remediation steps
5. Look for multi-step attack patterns across different IPs/users
6. Calculate overall risk score (0-100)

## Analysis Guidelines:
- Focus on patterns that indicate real security threats
- Consider timing, frequency, and context of events
- Look for reconnaissance, lateral movement, data exfiltration
- Identify privilege escalation attempts
- Watch for unusual geographic or temporal patterns
- Consider the relationship between different log entries

## Response Format:
Return ONLY valid JSON in this exact format:
{
  "newAnomalies": [
    {
      "ip": "string",
      "severity": "CRITICAL|HIGH|MEDIUM|LOW",
      "reason": "brief descriptive title",
      "aiExplanation": "detailed technical explanation of why this is suspicious",
      "recommendedAction": "specific actionable steps to address this threat",
      "confidenceScore": 85
    }
  ],
  "overallRiskScore": 65,
  "threatSummary": "overall security assessment of the log batch",
  "attackPatternsDetected": ["pattern1", "pattern2"]
}

## Log Data:
%s

## Existing Anomalies:
%s

Analyze this data and provide your security assessment in the specified JSON format.`

// buildPrompt serializes the batch into the fixed prompt template.
func buildPrompt(logs []*models.LogEntry, anomalies []*models.Anomaly) string {
	return fmt.Sprintf(securityAnalysisPrompt, formatLogs(logs), formatAnomalies(anomalies))
}

func formatLogs(logs []*models.LogEntry) string {
	lines := make([]string, 0, len(logs))
	for _, l := range logs {
		eventType := ""
		if l.EventType != nil {
			eventType = *l.EventType
		}
		lines = append(lines, fmt.Sprintf("[%s] %s - %s (%s) - IP: %s - User: %s",
			l.Timestamp.UTC().Format(time.RFC3339), l.Source, l.Event, eventType, l.IP, l.User))
	}
	return strings.Join(lines, "\n")
}

func formatAnomalies(anomalies []*models.Anomaly) string {
	lines := make([]string, 0, len(anomalies))
	for _, a := range anomalies {
		lines = append(lines, fmt.Sprintf("[%s] %s - %s - IP: %s",
			a.Timestamp.UTC().Format(time.RFC3339), a.Severity, a.Reason, a.IP))
	}
	return strings.Join(lines, "\n")
}
