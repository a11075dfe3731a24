package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/campusclimb/opportunity-fetcher/app/database"
	"github.com/campusclimb/opportunity-fetcher/app/lock"
)

const (
	fetchCycleLock    = "fetch_cycle"
	fetchCycleLockTTL = 2 * time.Hour
)

// FetchCycleTask runs one fetch cycle under the shared run lock and records
// the report in the fetch run log.
type FetchCycleTask struct {
	Task
	orchestrator *Orchestrator
	locker       lock.Locker
	runRepo      database.FetchRunRepository
	sources      []string
}

func NewFetchCycleTask(orchestrator *Orchestrator, locker lock.Locker, runRepo database.FetchRunRepository, sources []string) *FetchCycleTask {
	return &FetchCycleTask{
		Task:         NewTask(TaskTypeFetchCycle, strings.Join(sources, ",")),
		orchestrator: orchestrator,
		locker:       locker,
		runRepo:      runRepo,
		sources:      sources,
	}
}

// Execute is the queued form of Run. A cycle already in progress or an empty
// source list is not worth retrying.
func (t *FetchCycleTask) Execute(ctx context.Context) error {
	_, err := t.Run(ctx)
	switch {
	case errors.Is(err, lock.ErrLocked):
		slog.Info("Fetch cycle already running, skipping", "id", t.GetID())
		return nil
	case errors.Is(err, ErrNoSources):
		slog.Warn("No sources enabled, skipping fetch cycle", "id", t.GetID())
		return nil
	}
	return err
}

func (t *FetchCycleTask) Run(ctx context.Context) (*Report, error) {
	release, err := t.locker.Acquire(ctx, fetchCycleLock, fetchCycleLockTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire fetch cycle lock: %w", err)
	}
	defer func() {
		// The request context may already be gone.
		if err := release(context.Background()); err != nil {
			slog.Warn("Failed to release fetch cycle lock", "error", err)
		}
	}()

	report, err := t.orchestrator.RunFetchCycle(ctx, t.sources)
	if err != nil {
		return nil, err
	}

	if t.runRepo != nil {
		if err := t.recordRun(report); err != nil {
			slog.Error("Failed to record fetch run", "run_id", report.RunID, "error", err)
		}
	}

	slog.Info("Task completed", "type", string(t.GetType()), "scope", t.GetScope(), "duration", t.GetDuration())
	return report, nil
}

func (t *FetchCycleTask) recordRun(report *Report) error {
	run, err := report.FetchRun()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return t.runRepo.RecordRun(ctx, run)
}
