package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/campusclimb/opportunity-fetcher/app/classify"
	"github.com/campusclimb/opportunity-fetcher/app/database"
)

type ReclassifyResult struct {
	Checked    int     `json:"checked"`
	Kept       int     `json:"kept"`
	Uncertain  int     `json:"uncertain"`
	Removed    int     `json:"removed"`
	RemovedIDs []int64 `json:"removed_ids"`
	DryRun     bool    `json:"dry_run"`
}

// ReclassifyTask re-runs the classifier over active auto-fetched records and
// soft-deletes the ones a generative model now judges non-opportunities.
// Keyword and fallback rejections count as uncertain and never delete.
type ReclassifyTask struct {
	Task
	repo         database.OpportunityRepository
	classifier   classify.Classifier
	SourceFilter string
	Limit        int
	DryRun       bool
}

func NewReclassifyTask(repo database.OpportunityRepository, classifier classify.Classifier, sourceFilter string, limit int, dryRun bool) *ReclassifyTask {
	return &ReclassifyTask{
		Task:         NewTask(TaskTypeReclassify, sourceFilter),
		repo:         repo,
		classifier:   classifier,
		SourceFilter: sourceFilter,
		Limit:        limit,
		DryRun:       dryRun,
	}
}

func (t *ReclassifyTask) Execute(ctx context.Context) error {
	_, err := t.Run(ctx)
	return err
}

func (t *ReclassifyTask) Run(ctx context.Context) (*ReclassifyResult, error) {
	opportunities, err := t.repo.ListActive(ctx, database.ListFilter{
		SourceContains:  t.SourceFilter,
		AutoFetchedOnly: true,
		Limit:           t.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list opportunities: %w", err)
	}

	result := &ReclassifyResult{DryRun: t.DryRun, RemovedIDs: []int64{}}

	for _, opp := range opportunities {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Checked++

		verdict := t.classifier.Classify(ctx, opp.Title, opp.Description, opp.Source)
		switch {
		case verdict.IsOpportunity:
			result.Kept++
			continue
		case verdict.Strategy != classify.StrategyAI:
			result.Uncertain++
			slog.Debug("Uncertain verdict, keeping opportunity",
				"id", opp.ID,
				"title", opp.Title,
				"strategy", verdict.Strategy)
			continue
		}

		slog.Info("Opportunity judged not an opportunity",
			"id", opp.ID,
			"title", opp.Title,
			"source", opp.Source,
			"strategy", verdict.Strategy,
			"reasoning", verdict.Reasoning,
			"dry_run", t.DryRun)

		if !t.DryRun {
			if err := t.repo.SoftDelete(ctx, opp.ID); err != nil {
				return result, err
			}
		}
		result.Removed++
		result.RemovedIDs = append(result.RemovedIDs, opp.ID)
	}

	slog.Info("Task completed",
		"type", string(t.GetType()),
		"scope", t.GetScope(),
		"checked", result.Checked,
		"removed", result.Removed,
		"duration", t.GetDuration())

	return result, nil
}
