package tasks

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/campusclimb/opportunity-fetcher/app/database"
)

type RunState string

const (
	StateNotStarted          RunState = "NOT_STARTED"
	StateRunning             RunState = "RUNNING"
	StateCompleted           RunState = "COMPLETED"
	StateCompletedWithErrors RunState = "COMPLETED_WITH_ERRORS"
)

// SourceReport counts one source's outcomes within a run.
type SourceReport struct {
	Source     string   `json:"source"`
	Fetched    int      `json:"fetched"`
	Inserted   int      `json:"inserted"`
	Updated    int      `json:"updated"`
	Skipped    int      `json:"skipped"`
	Rejected   int      `json:"rejected"`
	ErrorCount int      `json:"error_count"`
	Errors     []string `json:"errors"`
}

func (s *SourceReport) addError(format string, args ...any) {
	s.Errors = append(s.Errors, fmt.Sprintf(format, args...))
	s.ErrorCount = len(s.Errors)
}

// Report is the outcome of one fetch cycle. Sources keep the order in which
// they were requested.
type Report struct {
	RunID      string         `json:"run_id"`
	State      RunState       `json:"state"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Fetched    int            `json:"fetched"`
	Inserted   int            `json:"inserted"`
	Updated    int            `json:"updated"`
	Skipped    int            `json:"skipped"`
	Rejected   int            `json:"rejected"`
	Errors     int            `json:"errors"`
	Sources    []SourceReport `json:"sources"`

	mu sync.Mutex
}

func newReport(sources []string) *Report {
	report := &Report{
		RunID:   uuid.NewString(),
		State:   StateNotStarted,
		Sources: make([]SourceReport, len(sources)),
	}
	for i, name := range sources {
		report.Sources[i] = SourceReport{Source: name, Errors: []string{}}
	}
	return report
}

func (r *Report) start(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.StartedAt = now
	r.State = StateRunning
}

func (r *Report) finish(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.FinishedAt = now
	r.Fetched, r.Inserted, r.Updated, r.Skipped, r.Rejected, r.Errors = 0, 0, 0, 0, 0, 0
	for _, s := range r.Sources {
		r.Fetched += s.Fetched
		r.Inserted += s.Inserted
		r.Updated += s.Updated
		r.Skipped += s.Skipped
		r.Rejected += s.Rejected
		r.Errors += s.ErrorCount
	}

	if r.Errors > 0 {
		r.State = StateCompletedWithErrors
	} else {
		r.State = StateCompleted
	}
}

// Source returns the breakdown for name, or nil.
func (r *Report) Source(name string) *SourceReport {
	for i := range r.Sources {
		if r.Sources[i].Source == name {
			return &r.Sources[i]
		}
	}
	return nil
}

// FetchRun converts the report into its persisted form.
func (r *Report) FetchRun() (*database.FetchRun, error) {
	sources, err := json.Marshal(r.Sources)
	if err != nil {
		return nil, fmt.Errorf("failed to encode source breakdown: %w", err)
	}

	return &database.FetchRun{
		RunID:      r.RunID,
		State:      string(r.State),
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		Fetched:    r.Fetched,
		Inserted:   r.Inserted,
		Updated:    r.Updated,
		Skipped:    r.Skipped,
		Rejected:   r.Rejected,
		Errors:     r.Errors,
		Sources:    string(sources),
	}, nil
}
