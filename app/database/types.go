package database

import (
	"strings"
	"time"
)

type OpportunityType string

const (
	TypeJob         OpportunityType = "job"
	TypeInternship  OpportunityType = "internship"
	TypeWorkshop    OpportunityType = "workshop"
	TypeConference  OpportunityType = "conference"
	TypeCompetition OpportunityType = "competition"
)

// ParseOpportunityType maps free text onto a known type. Unknown or empty
// values report false so callers can pick their own default.
func ParseOpportunityType(s string) (OpportunityType, bool) {
	switch OpportunityType(strings.ToLower(strings.TrimSpace(s))) {
	case TypeJob:
		return TypeJob, true
	case TypeInternship:
		return TypeInternship, true
	case TypeWorkshop:
		return TypeWorkshop, true
	case TypeConference:
		return TypeConference, true
	case TypeCompetition:
		return TypeCompetition, true
	}
	return TypeJob, false
}

type Opportunity struct {
	ID             int64
	Title          string
	Company        string
	Location       string
	Description    string
	Requirements   string
	Type           OpportunityType
	Category       string
	Salary         string
	Deadline       *time.Time
	ApplicationURL string

	Source        string // empty for admin-created records
	SourceID      string // source-native identifier
	SourceURL     string
	LastFetchedAt *time.Time
	AutoFetched   bool

	IsDeleted bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// FuzzyKey is the secondary match key used when no source identifier is available.
type FuzzyKey struct {
	Title   string
	Company string
	Type    OpportunityType
}

type ListFilter struct {
	SourceContains  string
	AutoFetchedOnly bool
	Limit           int
}

type OpportunityStats struct {
	Total       int `json:"total"`
	Active      int `json:"active"`
	AutoFetched int `json:"auto_fetched"`
	Deleted     int `json:"deleted"`
}

type FetchRun struct {
	RunID      string
	State      string
	StartedAt  time.Time
	FinishedAt time.Time
	Fetched    int
	Inserted   int
	Updated    int
	Skipped    int
	Rejected   int
	Errors     int
	Sources    string // JSON encoded per-source breakdown
}
