package source

import (
	"context"
	"time"

	"github.com/campusclimb/opportunity-fetcher/app/database"
)

type Kind string

const (
	KindRSS    Kind = "rss"
	KindReddit Kind = "reddit"
	KindAdzuna Kind = "adzuna"
	KindJooble Kind = "jooble"
	KindJSON   Kind = "json"
)

// Candidate is an unvalidated opportunity produced by one adapter during a run.
// String fields are never absent, only empty.
type Candidate struct {
	Title          string
	Company        string
	Location       string
	Description    string
	Requirements   string
	Type           database.OpportunityType
	Category       string
	Salary         string
	Deadline       *time.Time
	ApplicationURL string

	Source    string
	SourceID  string
	SourceURL string
}

type Result struct {
	Candidates []Candidate
	ItemErrors []error
	Discarded  int // self-promotion entries dropped before classification
}

// Adapter fetches one external source. Fetch fails only when the source as a
// whole is unavailable; malformed entries land in Result.ItemErrors.
type Adapter interface {
	Name() string
	Fetch(ctx context.Context) (*Result, error)
}

// Configuration types

type Config struct {
	Name         string            // Derived from filename (without .yml extension)
	Kind         Kind              `yaml:"kind"`
	URL          string            `yaml:"url"`
	APIKey       string            `yaml:"api_key"`
	APIKeyHeader string            `yaml:"api_key_header"`
	AppID        string            `yaml:"app_id"`
	Params       map[string]string `yaml:"params"`
	Method       string            `yaml:"method"` // json sources: GET (default) or POST
	Body         string            `yaml:"body"`   // json sources: POST payload, e.g. a GraphQL query
	Mapping      FieldMapping      `yaml:"mapping"`
	Settings     ConfigSettings    `yaml:"settings"`
}

type ConfigSettings struct {
	Enabled        bool    `yaml:"enabled"`
	MaxItems       int     `yaml:"max_items"`
	Timeout        int     `yaml:"timeout"`    // seconds
	RateLimit      float64 `yaml:"rate_limit"` // requests per second, 0 disables
	MaxPages       int     `yaml:"max_pages"`
	DefaultType    string  `yaml:"default_type"`
	ExtractContent bool    `yaml:"extract_content"`
}

// FieldMapping holds dot paths into a JSON API response.
type FieldMapping struct {
	Items       string `yaml:"items"`
	ID          string `yaml:"id"`
	Title       string `yaml:"title"`
	Company     string `yaml:"company"`
	Location    string `yaml:"location"`
	Description string `yaml:"description"`
	URL         string `yaml:"url"`
	Deadline    string `yaml:"deadline"`
	Salary      string `yaml:"salary"`
	Type        string `yaml:"type"`
}
