package tasks

import (
	"context"

	"github.com/campusclimb/opportunity-fetcher/app/dedup"
	"github.com/campusclimb/opportunity-fetcher/app/source"
)

// TaskSchedulerInterface defines the interface for task scheduling operations.
// Used by the main application and the API to queue background work.
// Example usage:
//
//	scheduler := NewScheduler(interval, workerCount, runOnStart, newFetchTask)
//	scheduler.Start()
//	defer scheduler.Stop()
//	scheduler.EnqueueTask(NewReclassifyTask(...))
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
}

// AdapterLookup resolves a source name to its adapter. *source.Registry
// satisfies it.
type AdapterLookup interface {
	Adapter(name string) (source.Adapter, error)
}

// CandidateResolver decides and persists the dedup outcome for one
// candidate. *dedup.Resolver satisfies it.
type CandidateResolver interface {
	Resolve(ctx context.Context, candidate source.Candidate) (dedup.Outcome, error)
}
