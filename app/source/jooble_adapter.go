package source

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/campusclimb/opportunity-fetcher/app/database"
)

// JoobleAdapter posts a keyword search to the Jooble API. The API key is part
// of the request path.
type JoobleAdapter struct {
	config     *Config
	httpClient *http.Client
	userAgent  string
}

var _ Adapter = (*JoobleAdapter)(nil)

func NewJoobleAdapter(config *Config, httpClient *http.Client, userAgent string) (*JoobleAdapter, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("source %s: api_key is required", config.Name)
	}

	return &JoobleAdapter{
		config:     config,
		httpClient: httpClient,
		userAgent:  userAgent,
	}, nil
}

func (a *JoobleAdapter) Name() string {
	return a.config.Name
}

type joobleResponse struct {
	TotalCount int               `json:"totalCount"`
	Jobs       []json.RawMessage `json:"jobs"`
}

type joobleJob struct {
	ID       flexString `json:"id"`
	Title    string     `json:"title"`
	Location string     `json:"location"`
	Snippet  string     `json:"snippet"`
	Salary   string     `json:"salary"`
	Source   string     `json:"source"`
	Type     string     `json:"type"`
	Link     string     `json:"link"`
	Company  string     `json:"company"`
	Updated  string     `json:"updated"`
}

func (a *JoobleAdapter) Fetch(ctx context.Context) (*Result, error) {
	params := a.config.Params
	if params == nil {
		params = map[string]string{}
	}

	body, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to encode search params: %w", err)
	}

	endpoint := strings.TrimRight(a.config.URL, "/") + "/" + a.config.APIKey
	req, err := http.NewRequest(http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	data, err := fetchBody(ctx, a.httpClient, req, a.userAgent, a.config.timeout())
	if err != nil {
		return nil, err
	}

	var response joobleResponse
	if err := json.Unmarshal(data, &response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	defaultType, _ := database.ParseOpportunityType(a.config.Settings.DefaultType)

	result := &Result{}
	for i, raw := range response.Jobs {
		if len(result.Candidates) >= a.config.Settings.MaxItems {
			break
		}

		var job joobleJob
		if err := json.Unmarshal(raw, &job); err != nil {
			result.ItemErrors = append(result.ItemErrors, fmt.Errorf("job %d: %w", i, err))
			continue
		}

		title := StripHTML(job.Title)
		if title == "" && job.ID == "" {
			result.ItemErrors = append(result.ItemErrors, fmt.Errorf("job %d: no title or id", i))
			continue
		}

		description := StripHTML(job.Snippet)
		jobType := defaultType
		if strings.Contains(strings.ToLower(job.Type), "intern") {
			jobType = database.TypeInternship
		}

		result.Candidates = append(result.Candidates, Candidate{
			Title:          title,
			Company:        job.Company,
			Location:       job.Location,
			Description:    description,
			Type:           DetermineType(title, description, jobType),
			Category:       Categorize(title, description),
			Salary:         job.Salary,
			ApplicationURL: job.Link,
			Source:         a.config.Name,
			SourceID:       cmp.Or(string(job.ID), SourceID("", job.Link, title)),
			SourceURL:      job.Link,
		})
	}

	return result, nil
}
