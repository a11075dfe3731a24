package api

import (
	"context"

	"github.com/campusclimb/opportunity-fetcher/app/database"
	"github.com/campusclimb/opportunity-fetcher/app/feed"
	"github.com/campusclimb/opportunity-fetcher/app/source"
	"github.com/campusclimb/opportunity-fetcher/app/tasks"
)

type GeneratorInterface interface {
	Run(opportunities []database.Opportunity) (string, error)
}

var _ GeneratorInterface = (*feed.Generator)(nil)

// FetchFunc runs one locked fetch cycle. Empty sources means the configured
// default set.
type FetchFunc func(ctx context.Context, sources []string) (*tasks.Report, error)

// ReclassifyFunc builds a reclassify task for the queue.
type ReclassifyFunc func(sourceFilter string, limit int, dryRun bool) tasks.TaskInterface

type Handler struct {
	configCache   *source.ConfigCache
	oppRepo       database.OpportunityRepository
	runRepo       database.FetchRunRepository
	generator     GeneratorInterface
	scheduler     tasks.TaskSchedulerInterface
	fetch         FetchFunc
	newReclassify ReclassifyFunc
}

type fetchRequest struct {
	Sources []string `json:"sources"`
}

type reclassifyRequest struct {
	Source string `json:"source"`
	Limit  int    `json:"limit"`
	DryRun bool   `json:"dry_run"`
}

const (
	defaultFeedLimit = 50
	maxFeedLimit     = 500
	defaultLogLimit  = 50
)
