package tasks

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/campusclimb/opportunity-fetcher/app/classify"
	"github.com/campusclimb/opportunity-fetcher/app/dedup"
	"github.com/campusclimb/opportunity-fetcher/app/source"
)

// ErrNoSources is the only error RunFetchCycle returns. Everything else is
// recorded in the report.
var ErrNoSources = errors.New("no sources to fetch")

// Orchestrator drives one fetch cycle: every requested source is fetched
// once, each candidate is classified, accepted ones are resolved against the
// store.
type Orchestrator struct {
	adapters    AdapterLookup
	classifier  classify.Classifier
	resolver    CandidateResolver
	parallelism int
	now         func() time.Time
}

func NewOrchestrator(adapters AdapterLookup, classifier classify.Classifier, resolver CandidateResolver, parallelism int) *Orchestrator {
	if parallelism < 1 {
		parallelism = 1
	}
	return &Orchestrator{
		adapters:    adapters,
		classifier:  classifier,
		resolver:    resolver,
		parallelism: parallelism,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// RunFetchCycle fetches the named sources. Sources run concurrently up to
// the configured parallelism; writes are serialized by the resolver.
// Cancelling ctx stops the remaining work but keeps what was committed.
func (o *Orchestrator) RunFetchCycle(ctx context.Context, enabled []string) (*Report, error) {
	names := uniqueNames(enabled)
	if len(names) == 0 {
		return nil, ErrNoSources
	}

	report := newReport(names)
	report.start(o.now())
	slog.Info("Fetch cycle started", "run_id", report.RunID, "sources", len(names))

	var g errgroup.Group
	g.SetLimit(o.parallelism)

	for i, name := range names {
		sourceReport := &report.Sources[i]
		g.Go(func() error {
			o.processSource(ctx, name, sourceReport)
			return nil
		})
	}
	_ = g.Wait()

	report.finish(o.now())

	slog.Info("Fetch cycle finished",
		"run_id", report.RunID,
		"state", report.State,
		"fetched", report.Fetched,
		"inserted", report.Inserted,
		"updated", report.Updated,
		"skipped", report.Skipped,
		"rejected", report.Rejected,
		"errors", report.Errors,
		"duration", report.FinishedAt.Sub(report.StartedAt))

	return report, nil
}

func (o *Orchestrator) processSource(ctx context.Context, name string, sr *SourceReport) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Source processing panicked", "source", name, "panic", r)
			sr.addError("internal error: %v", r)
		}
	}()

	if err := ctx.Err(); err != nil {
		sr.addError("run cancelled before fetch: %v", err)
		return
	}

	adapter, err := o.adapters.Adapter(name)
	if err != nil {
		slog.Error("Source not configured", "source", name, "error", err)
		sr.addError("configuration error: %v", err)
		return
	}

	start := time.Now()
	result, err := adapter.Fetch(ctx)
	if err != nil {
		slog.Error("Source unavailable", "source", name, "error", err)
		sr.addError("source unavailable: %v", err)
		return
	}
	if result == nil {
		result = &source.Result{}
	}

	for _, itemErr := range result.ItemErrors {
		slog.Warn("Skipped malformed item", "source", name, "error", itemErr)
		sr.addError("%v", itemErr)
	}

	sr.Fetched = len(result.Candidates) + result.Discarded
	sr.Rejected = result.Discarded

	for i, candidate := range result.Candidates {
		if err := ctx.Err(); err != nil {
			sr.addError("run cancelled after %d of %d candidates: %v", i, len(result.Candidates), err)
			break
		}
		o.processCandidate(ctx, name, candidate, sr)
	}

	slog.Debug("Source processed", "source", name, "fetched", sr.Fetched, "duration", time.Since(start))
}

func (o *Orchestrator) processCandidate(ctx context.Context, name string, candidate source.Candidate, sr *SourceReport) {
	if candidate.Source == "" {
		candidate.Source = name
	}

	verdict := o.classifier.Classify(ctx, candidate.Title, candidate.Description, candidate.Source)
	if !verdict.IsOpportunity {
		sr.Rejected++
		slog.Info("Candidate rejected",
			"source", name,
			"title", candidate.Title,
			"strategy", verdict.Strategy,
			"confidence", verdict.Confidence,
			"reasoning", verdict.Reasoning)
		return
	}

	outcome, err := o.resolver.Resolve(ctx, candidate)
	if err != nil {
		slog.Error("Failed to resolve candidate", "source", name, "title", candidate.Title, "error", err)
		sr.addError("failed to store %q: %v", candidate.Title, err)
		return
	}

	switch outcome.Action {
	case dedup.ActionInsert:
		sr.Inserted++
	case dedup.ActionUpdate:
		sr.Updated++
	default:
		sr.Skipped++
	}

	slog.Info("Candidate resolved",
		"source", name,
		"title", candidate.Title,
		"strategy", verdict.Strategy,
		"action", outcome.Action,
		"id", outcome.ID,
		"reason", outcome.Reason)
}

func uniqueNames(names []string) []string {
	seen := make(map[string]bool, len(names))
	unique := make([]string, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		unique = append(unique, name)
	}
	return unique
}
