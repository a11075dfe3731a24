package source

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/time/rate"

	"github.com/campusclimb/opportunity-fetcher/app/database"
)

const adzunaPageSize = 50

// AdzunaAdapter pages through the Adzuna job search API.
type AdzunaAdapter struct {
	config     *Config
	httpClient *http.Client
	limiter    *rate.Limiter
	userAgent  string
}

var _ Adapter = (*AdzunaAdapter)(nil)

func NewAdzunaAdapter(config *Config, httpClient *http.Client, userAgent string) (*AdzunaAdapter, error) {
	if config.AppID == "" || config.APIKey == "" {
		return nil, fmt.Errorf("source %s: app_id and api_key are required", config.Name)
	}

	return &AdzunaAdapter{
		config:     config,
		httpClient: httpClient,
		limiter:    newLimiter(config.Settings.RateLimit),
		userAgent:  userAgent,
	}, nil
}

func (a *AdzunaAdapter) Name() string {
	return a.config.Name
}

// Results stay raw so one mistyped posting cannot fail the whole page.
type adzunaResponse struct {
	Results []json.RawMessage `json:"results"`
	Count   int               `json:"count"`
}

type adzunaResult struct {
	ID           flexString     `json:"id"`
	Title        string         `json:"title"`
	Description  string         `json:"description"`
	Company      adzunaCompany  `json:"company"`
	Location     adzunaLocation `json:"location"`
	SalaryMin    float64        `json:"salary_min"`
	SalaryMax    float64        `json:"salary_max"`
	RedirectURL  string         `json:"redirect_url"`
	ContractTime string         `json:"contract_time"`
}

type adzunaCompany struct {
	DisplayName string `json:"display_name"`
}

type adzunaLocation struct {
	DisplayName string `json:"display_name"`
}

func (a *AdzunaAdapter) Fetch(ctx context.Context) (*Result, error) {
	result := &Result{}

	for page := 1; page <= a.config.Settings.MaxPages; page++ {
		if err := a.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		batch, err := a.fetchPage(ctx, page)
		if err != nil {
			// Later pages failing still leaves a usable partial result.
			if page == 1 {
				return nil, err
			}
			result.ItemErrors = append(result.ItemErrors, fmt.Errorf("page %d: %w", page, err))
			break
		}

		for i, raw := range batch {
			if len(result.Candidates) >= a.config.Settings.MaxItems {
				return result, nil
			}

			var r adzunaResult
			if err := json.Unmarshal(raw, &r); err != nil {
				result.ItemErrors = append(result.ItemErrors, fmt.Errorf("page %d result %d: %w", page, i, err))
				continue
			}
			candidate, err := a.toCandidate(r)
			if err != nil {
				result.ItemErrors = append(result.ItemErrors, fmt.Errorf("page %d result %d: %w", page, i, err))
				continue
			}
			result.Candidates = append(result.Candidates, candidate)
		}

		if len(batch) < adzunaPageSize {
			break
		}
	}

	return result, nil
}

func (a *AdzunaAdapter) fetchPage(ctx context.Context, page int) ([]json.RawMessage, error) {
	params := url.Values{}
	for key, value := range a.config.Params {
		params.Set(key, value)
	}
	params.Set("app_id", a.config.AppID)
	params.Set("app_key", a.config.APIKey)
	params.Set("results_per_page", strconv.Itoa(adzunaPageSize))

	endpoint := fmt.Sprintf("%s/%d?%s", strings.TrimRight(a.config.URL, "/"), page, params.Encode())
	req, err := http.NewRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	data, err := fetchBody(ctx, a.httpClient, req, a.userAgent, a.config.timeout())
	if err != nil {
		return nil, err
	}

	var response adzunaResponse
	if err := json.Unmarshal(data, &response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return response.Results, nil
}

func (a *AdzunaAdapter) toCandidate(r adzunaResult) (Candidate, error) {
	title := StripHTML(r.Title)
	if title == "" && r.ID == "" {
		return Candidate{}, fmt.Errorf("result has no title or id")
	}

	description := StripHTML(r.Description)
	defaultType, _ := database.ParseOpportunityType(a.config.Settings.DefaultType)
	if strings.EqualFold(r.ContractTime, "internship") {
		defaultType = database.TypeInternship
	}

	return Candidate{
		Title:          title,
		Company:        r.Company.DisplayName,
		Location:       r.Location.DisplayName,
		Description:    description,
		Type:           DetermineType(title, description, defaultType),
		Category:       Categorize(title, description),
		Salary:         formatSalaryRange(r.SalaryMin, r.SalaryMax),
		ApplicationURL: r.RedirectURL,
		Source:         a.config.Name,
		SourceID:       cmp.Or(string(r.ID), Slugify(title)),
		SourceURL:      r.RedirectURL,
	}, nil
}

func formatSalaryRange(min, max float64) string {
	switch {
	case min > 0 && max > 0 && min != max:
		return fmt.Sprintf("%.0f - %.0f", min, max)
	case min > 0:
		return fmt.Sprintf("%.0f", min)
	case max > 0:
		return fmt.Sprintf("%.0f", max)
	}
	return ""
}
