package detection

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// Engine runs a fixed set of rules against each log record. Rules execute
// concurrently (they only read from the store) but results are merged in
// rule order so output is reproducible regardless of scheduling.
type Engine struct {
	rules []Rule
	log   *slog.Logger
}

// NewEngine creates an engine with the standard rule set.
func NewEngine(log *slog.Logger) *Engine {
	return &Engine{
		rules: []Rule{
			BruteForceRule{},
			PrivilegeEscalationRule{},
			GeoAnomalyRule{},
		},
		log: log,
	}
}

// Detect evaluates every rule and returns the merged findings. A rule
// failure is logged and counts as no finding for that rule only.
func (e *Engine) Detect(ctx context.Context, record LogRecord, history LogHistory) []Finding {
	results := make([]*Finding, len(e.rules))

	var g errgroup.Group
	for i, rule := range e.rules {
		i, rule := i, rule
		g.Go(func() error {
			finding, err := rule.Evaluate(ctx, record, history)
			if err != nil {
				e.log.Error("detection rule failed", "rule", rule.Name(), "error", err)
				return nil
			}
			results[i] = finding
			return nil
		})
	}
	_ = g.Wait() // goroutines never return errors

	findings := []Finding{}
	for _, f := range results {
		if f != nil {
			findings = append(findings, *f)
		}
	}
	return findings
}
