package classify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Generative asks a language model for a verdict and falls back to the
// keyword rules for any item the model cannot answer in time.
type Generative struct {
	completer     Completer
	rules         *RuleBased
	timeout       time.Duration
	minConfidence float64
}

var _ Classifier = (*Generative)(nil)

func NewGenerative(completer Completer, timeout time.Duration, minConfidence float64) *Generative {
	return &Generative{
		completer:     completer,
		rules:         NewRuleBased(),
		timeout:       timeout,
		minConfidence: minConfidence,
	}
}

type completion struct {
	text string
	err  error
}

func (g *Generative) Classify(ctx context.Context, title, description, source string) Verdict {
	ruled := g.rules.Classify(ctx, title, description, source)
	if isBlank(title) && isBlank(description) {
		return ruled
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	// The completer may ignore its context; the select keeps the timeout strict.
	done := make(chan completion, 1)
	go func() {
		text, err := g.completer.Generate(callCtx, buildPrompt(title, description, source))
		done <- completion{text: text, err: err}
	}()

	var result completion
	select {
	case result = <-done:
	case <-callCtx.Done():
		result.err = fmt.Errorf("generative classification timed out after %v: %w", g.timeout, callCtx.Err())
	}

	if result.err != nil {
		slog.Warn("Generative classifier unavailable, using keyword rules",
			"source", source,
			"title", title,
			"error", result.err)
		return fallback(ruled)
	}

	verdict, err := parseVerdict(result.text)
	if err != nil {
		slog.Warn("Unparsable generative classification, using keyword rules",
			"source", source,
			"title", title,
			"response", truncate(result.text, 200))
		return fallback(ruled)
	}

	verdict.Strategy = StrategyAI
	if verdict.IsOpportunity && verdict.Confidence < g.minConfidence {
		verdict.IsOpportunity = false
		verdict.Reasoning = fmt.Sprintf("Confidence %.2f below %.2f: %s", verdict.Confidence, g.minConfidence, verdict.Reasoning)
	}

	return verdict
}

func fallback(verdict Verdict) Verdict {
	verdict.Strategy = StrategyFallback
	return verdict
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

func truncate(s string, n int) string {
	if runes := []rune(s); len(runes) > n {
		return string(runes[:n]) + "..."
	}
	return s
}
