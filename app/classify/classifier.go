package classify

import "context"

// Strategy names the path that produced a verdict.
type Strategy string

const (
	StrategyKeyword  Strategy = "keyword"
	StrategyAI       Strategy = "ai"
	StrategyFallback Strategy = "fallback"
)

type Verdict struct {
	IsOpportunity bool     `json:"is_opportunity"`
	Confidence    float64  `json:"confidence"`
	Reasoning     string   `json:"reasoning"`
	Strategy      Strategy `json:"strategy"`
}

// Classifier decides whether a posting offers a real opportunity. Classify
// always returns a verdict; strategies degrade instead of failing.
type Classifier interface {
	Classify(ctx context.Context, title, description, source string) Verdict
}
