package dedup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/campusclimb/opportunity-fetcher/app/database"
	"github.com/campusclimb/opportunity-fetcher/app/source"
)

type Action string

const (
	ActionInsert Action = "insert"
	ActionUpdate Action = "update"
	ActionSkip   Action = "skip"
)

// Policy decides what happens when several active records fuzzy-match.
type Policy string

const (
	PolicyPreferRecent Policy = "prefer_recent"
	PolicySkip         Policy = "skip"
)

const (
	DefaultThreshold   = 0.85
	maxConflictRetries = 3
)

func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", PolicyPreferRecent:
		return PolicyPreferRecent, nil
	case PolicySkip:
		return PolicySkip, nil
	}
	return "", fmt.Errorf("unknown ambiguous match policy: %q", s)
}

type Outcome struct {
	Action Action
	ID     int64 // zero when nothing was written or matched
	Reason string
}

// Resolver merges accepted candidates into the opportunity store. Calls are
// serialized so two candidates can never both decide to insert the same
// record; the storage uniqueness constraint backs this up with retries.
type Resolver struct {
	repo      database.OpportunityRepository
	threshold float64
	policy    Policy
	now       func() time.Time
	mu        sync.Mutex
}

func NewResolver(repo database.OpportunityRepository, threshold float64, policy Policy) *Resolver {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	if policy == "" {
		policy = PolicyPreferRecent
	}

	return &Resolver{
		repo:      repo,
		threshold: threshold,
		policy:    policy,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (r *Resolver) Resolve(ctx context.Context, candidate source.Candidate) (Outcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var err error
	for attempt := 1; attempt <= maxConflictRetries; attempt++ {
		var outcome Outcome
		outcome, err = r.resolve(ctx, candidate)
		if !errors.Is(err, database.ErrConflict) {
			return outcome, err
		}

		slog.Warn("Write conflict, re-resolving candidate",
			"source", candidate.Source,
			"source_id", candidate.SourceID,
			"attempt", attempt)
	}

	return Outcome{}, fmt.Errorf("failed to resolve %q after %d attempts: %w", candidate.Title, maxConflictRetries, err)
}

func (r *Resolver) resolve(ctx context.Context, candidate source.Candidate) (Outcome, error) {
	now := r.now()

	if candidate.Source != "" && candidate.SourceID != "" {
		existing, err := r.repo.FindBySourceID(ctx, candidate.Source, candidate.SourceID)
		if err != nil {
			return Outcome{}, err
		}
		if existing != nil {
			return r.updateExact(ctx, existing, candidate, now)
		}
	}

	matches, err := r.fuzzyMatches(ctx, candidate)
	if err != nil {
		return Outcome{}, err
	}
	if len(matches) > 0 {
		return r.updateFuzzy(ctx, matches, candidate, now)
	}

	opp := newOpportunity(candidate, now)
	id, err := r.repo.Insert(ctx, opp)
	if err != nil {
		return Outcome{}, err
	}

	return Outcome{Action: ActionInsert, ID: id, Reason: "new opportunity"}, nil
}

func (r *Resolver) updateExact(ctx context.Context, existing *database.Opportunity, candidate source.Candidate, now time.Time) (Outcome, error) {
	if existing.IsDeleted {
		return Outcome{Action: ActionSkip, ID: existing.ID, Reason: "exact match was deleted"}, nil
	}

	overwrite(existing, candidate)
	existing.LastFetchedAt = &now

	if err := r.repo.Update(ctx, existing); err != nil {
		return Outcome{}, err
	}
	return Outcome{Action: ActionUpdate, ID: existing.ID, Reason: "exact match"}, nil
}

func (r *Resolver) updateFuzzy(ctx context.Context, matches []database.Opportunity, candidate source.Candidate, now time.Time) (Outcome, error) {
	for _, match := range matches {
		if match.IsDeleted {
			return Outcome{Action: ActionSkip, ID: match.ID, Reason: "fuzzy match was deleted"}, nil
		}
	}

	if len(matches) > 1 && r.policy == PolicySkip {
		ids := make([]int64, 0, len(matches))
		for _, match := range matches {
			ids = append(ids, match.ID)
		}
		slog.Warn("Ambiguous fuzzy match left for review",
			"source", candidate.Source,
			"title", candidate.Title,
			"ids", ids)
		return Outcome{Action: ActionSkip, Reason: fmt.Sprintf("ambiguous fuzzy match %v", ids)}, nil
	}

	target := matches[0]
	if !fillEmpty(&target, candidate) {
		return Outcome{Action: ActionSkip, ID: target.ID, Reason: "fuzzy match has nothing to fill"}, nil
	}
	target.LastFetchedAt = &now

	if err := r.repo.Update(ctx, &target); err != nil {
		return Outcome{}, err
	}
	return Outcome{Action: ActionUpdate, ID: target.ID, Reason: "fuzzy match"}, nil
}

// fuzzyMatches returns records of the same type whose title and company both
// pass the threshold, deleted ones included, most recently updated first.
// Records from the same source under a different source id are separate
// postings and never match.
func (r *Resolver) fuzzyMatches(ctx context.Context, candidate source.Candidate) ([]database.Opportunity, error) {
	oppType := candidateType(candidate)

	existing, err := r.repo.FindByFuzzyKey(ctx, database.FuzzyKey{
		Title:   candidate.Title,
		Company: candidate.Company,
		Type:    oppType,
	}, true)
	if err != nil {
		return nil, err
	}

	var matches []database.Opportunity
	for _, opp := range existing {
		if opp.Type != oppType {
			continue
		}
		if opp.Source == candidate.Source && opp.SourceID != "" && candidate.SourceID != "" && opp.SourceID != candidate.SourceID {
			continue
		}
		if Similarity(opp.Title, candidate.Title) < r.threshold {
			continue
		}
		if Similarity(opp.Company, candidate.Company) < r.threshold {
			continue
		}
		matches = append(matches, opp)
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if !matches[i].UpdatedAt.Equal(matches[j].UpdatedAt) {
			return matches[i].UpdatedAt.After(matches[j].UpdatedAt)
		}
		return matches[i].ID > matches[j].ID
	})

	return matches, nil
}

func candidateType(candidate source.Candidate) database.OpportunityType {
	if candidate.Type == "" {
		return database.TypeJob
	}
	return candidate.Type
}

func newOpportunity(candidate source.Candidate, now time.Time) *database.Opportunity {
	return &database.Opportunity{
		Title:          candidate.Title,
		Company:        candidate.Company,
		Location:       candidate.Location,
		Description:    candidate.Description,
		Requirements:   candidate.Requirements,
		Type:           candidateType(candidate),
		Category:       candidate.Category,
		Salary:         candidate.Salary,
		Deadline:       candidate.Deadline,
		ApplicationURL: candidate.ApplicationURL,
		Source:         candidate.Source,
		SourceID:       candidate.SourceID,
		SourceURL:      candidate.SourceURL,
		LastFetchedAt:  &now,
		AutoFetched:    true,
	}
}

// overwrite copies every non-empty candidate value onto opp. Empty values
// never clear what is stored.
func overwrite(opp *database.Opportunity, candidate source.Candidate) {
	set := func(dst *string, value string) {
		if value != "" {
			*dst = value
		}
	}

	set(&opp.Title, candidate.Title)
	set(&opp.Company, candidate.Company)
	set(&opp.Location, candidate.Location)
	set(&opp.Description, candidate.Description)
	set(&opp.Requirements, candidate.Requirements)
	set(&opp.Category, candidate.Category)
	set(&opp.Salary, candidate.Salary)
	set(&opp.ApplicationURL, candidate.ApplicationURL)
	set(&opp.SourceURL, candidate.SourceURL)

	if candidate.Type != "" {
		opp.Type = candidate.Type
	}
	if candidate.Deadline != nil {
		opp.Deadline = candidate.Deadline
	}
}

// fillEmpty copies candidate values only into empty fields of opp and
// reports whether anything changed.
func fillEmpty(opp *database.Opportunity, candidate source.Candidate) bool {
	changed := false
	fill := func(dst *string, value string) {
		if *dst == "" && value != "" {
			*dst = value
			changed = true
		}
	}

	fill(&opp.Location, candidate.Location)
	fill(&opp.Description, candidate.Description)
	fill(&opp.Requirements, candidate.Requirements)
	fill(&opp.Category, candidate.Category)
	fill(&opp.Salary, candidate.Salary)
	fill(&opp.ApplicationURL, candidate.ApplicationURL)

	if opp.Deadline == nil && candidate.Deadline != nil {
		opp.Deadline = candidate.Deadline
		changed = true
	}

	return changed
}
