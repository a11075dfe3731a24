package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/campusclimb/opportunity-fetcher/app/database"
)

// JSONAdapter reads any keyed JSON API whose postings sit in one array. The
// mapping config names dot paths to the array and to each field. With method
// POST the configured body is sent as JSON, which covers GraphQL endpoints.
type JSONAdapter struct {
	config     *Config
	httpClient *http.Client
	userAgent  string
}

var _ Adapter = (*JSONAdapter)(nil)

func NewJSONAdapter(config *Config, httpClient *http.Client, userAgent string) (*JSONAdapter, error) {
	if config.Mapping.Title == "" {
		return nil, fmt.Errorf("source %s: mapping.title is required", config.Name)
	}

	return &JSONAdapter{
		config:     config,
		httpClient: httpClient,
		userAgent:  userAgent,
	}, nil
}

func (a *JSONAdapter) Name() string {
	return a.config.Name
}

func (a *JSONAdapter) Fetch(ctx context.Context) (*Result, error) {
	endpoint, err := url.Parse(a.config.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	query := endpoint.Query()
	for key, value := range a.config.Params {
		query.Set(key, value)
	}
	if a.config.APIKey != "" && a.config.APIKeyHeader == "" {
		query.Set("api_key", a.config.APIKey)
	}
	endpoint.RawQuery = query.Encode()

	var body io.Reader
	method := http.MethodGet
	if strings.EqualFold(a.config.Method, http.MethodPost) {
		method = http.MethodPost
		body = strings.NewReader(a.config.Body)
	}

	req, err := http.NewRequest(method, endpoint.String(), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if a.config.APIKeyHeader != "" {
		req.Header.Set(a.config.APIKeyHeader, a.config.APIKey)
	}

	data, err := fetchBody(ctx, a.httpClient, req, a.userAgent, a.config.timeout())
	if err != nil {
		return nil, err
	}

	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()

	var payload any
	if err := decoder.Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	items, ok := lookupPath(payload, a.config.Mapping.Items).([]any)
	if !ok {
		return nil, fmt.Errorf("no result array at %q", a.config.Mapping.Items)
	}

	defaultType, _ := database.ParseOpportunityType(a.config.Settings.DefaultType)
	mapping := a.config.Mapping

	result := &Result{}
	for i, raw := range items {
		if len(result.Candidates) >= a.config.Settings.MaxItems {
			break
		}

		item, ok := raw.(map[string]any)
		if !ok {
			result.ItemErrors = append(result.ItemErrors, fmt.Errorf("item %d: not an object", i))
			continue
		}

		title := StripHTML(field(item, mapping.Title))
		id := field(item, mapping.ID)
		if title == "" && id == "" {
			result.ItemErrors = append(result.ItemErrors, fmt.Errorf("item %d: no title or id", i))
			continue
		}

		description := StripHTML(field(item, mapping.Description))
		link := field(item, mapping.URL)

		var oppType database.OpportunityType
		if mapped, ok := database.ParseOpportunityType(field(item, mapping.Type)); ok {
			oppType = mapped
		} else {
			oppType = DetermineType(title, description, defaultType)
		}

		if id == "" {
			id = SourceID("", link, title)
		}

		result.Candidates = append(result.Candidates, Candidate{
			Title:          title,
			Company:        field(item, mapping.Company),
			Location:       field(item, mapping.Location),
			Description:    description,
			Type:           oppType,
			Category:       Categorize(title, description),
			Salary:         field(item, mapping.Salary),
			Deadline:       ParseDate(field(item, mapping.Deadline)),
			ApplicationURL: link,
			Source:         a.config.Name,
			SourceID:       id,
			SourceURL:      link,
		})
	}

	return result, nil
}

// lookupPath walks a dot path such as "data.jobs" through decoded JSON.
// An empty path returns the value itself.
func lookupPath(value any, path string) any {
	if path == "" {
		return value
	}

	for _, key := range strings.Split(path, ".") {
		switch node := value.(type) {
		case map[string]any:
			value = node[key]
		case []any:
			index, err := strconv.Atoi(key)
			if err != nil || index < 0 || index >= len(node) {
				return nil
			}
			value = node[index]
		default:
			return nil
		}
	}

	return value
}

func field(item map[string]any, path string) string {
	if path == "" {
		return ""
	}

	switch v := lookupPath(item, path).(type) {
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	}
	return ""
}

// flexString decodes JSON strings and numbers alike.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexString(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}
