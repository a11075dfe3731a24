package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/campusclimb/opportunity-fetcher/app/database"
)

func adzunaPage(n int, offset int) []map[string]any {
	results := make([]map[string]any, 0, n)
	for i := 0; i < n; i++ {
		results = append(results, map[string]any{
			"id":            offset + i,
			"title":         fmt.Sprintf("Graduate Analyst %d", offset+i),
			"description":   "<strong>Entry level</strong> role",
			"company":       map[string]any{"display_name": "Globex"},
			"location":      map[string]any{"display_name": "Leeds, West Yorkshire"},
			"salary_min":    25000,
			"salary_max":    30000,
			"redirect_url":  fmt.Sprintf("https://adzuna.example/land/%d", offset+i),
			"contract_time": "full_time",
		})
	}
	return results
}

func TestAdzunaAdapterPaging(t *testing.T) {
	var pages []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pages = append(pages, r.URL.Path)

		if r.URL.Query().Get("app_id") != "id-123" || r.URL.Query().Get("app_key") != "key-456" {
			t.Errorf("Expected credentials in query, got %s", r.URL.RawQuery)
		}
		if r.URL.Query().Get("what") != "graduate" {
			t.Errorf("Expected search param 'what=graduate', got %s", r.URL.RawQuery)
		}

		var results []map[string]any
		switch r.URL.Path {
		case "/search/1":
			results = adzunaPage(adzunaPageSize, 0)
		case "/search/2":
			results = adzunaPage(3, adzunaPageSize)
		default:
			t.Errorf("Unexpected page request %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{"results": results, "count": adzunaPageSize + 3})
	}))
	defer server.Close()

	config := newFeedConfig("adzuna_gb", KindAdzuna, server.URL+"/search/")
	config.AppID = "id-123"
	config.APIKey = "key-456"
	config.Params = map[string]string{"what": "graduate"}
	config.Settings.MaxItems = 500

	adapter, err := NewAdzunaAdapter(config, server.Client(), "")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	result, err := adapter.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if len(pages) != 2 {
		t.Errorf("Expected 2 page requests, got %d: %v", len(pages), pages)
	}
	if len(result.Candidates) != adzunaPageSize+3 {
		t.Fatalf("Expected %d candidates, got %d", adzunaPageSize+3, len(result.Candidates))
	}

	first := result.Candidates[0]
	if first.SourceID != "0" {
		t.Errorf("Expected numeric id as source id '0', got %q", first.SourceID)
	}
	if first.Company != "Globex" || first.Location != "Leeds, West Yorkshire" {
		t.Errorf("Unexpected company/location: %q / %q", first.Company, first.Location)
	}
	if first.Description != "Entry level role" {
		t.Errorf("Expected stripped description, got %q", first.Description)
	}
	if first.Salary != "25000 - 30000" {
		t.Errorf("Expected salary range, got %q", first.Salary)
	}
	if first.Type != database.TypeJob {
		t.Errorf("Expected type job, got %s", first.Type)
	}
}

func TestAdzunaAdapterFirstPageFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	config := newFeedConfig("adzuna_gb", KindAdzuna, server.URL)
	config.AppID = "id"
	config.APIKey = "key"

	adapter, err := NewAdzunaAdapter(config, server.Client(), "")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if _, err := adapter.Fetch(context.Background()); err == nil {
		t.Fatal("Expected error when first page fails")
	}
}

func TestAdzunaAdapterRequiresCredentials(t *testing.T) {
	config := newFeedConfig("adzuna_gb", KindAdzuna, "https://api.adzuna.example/v1/api/jobs/gb/search")
	if _, err := NewAdzunaAdapter(config, http.DefaultClient, ""); err == nil {
		t.Fatal("Expected error for missing credentials")
	}
}

func TestAdzunaAdapterKeepsGoodResultsOnMistypedItem(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"count": 2, "results": [
			{"id": "101", "title": "Graduate Analyst", "company": {"display_name": "Globex"}, "salary_min": 25000, "redirect_url": "https://adzuna.example/land/101"},
			{"id": "102", "title": "Junior Developer", "company": {"display_name": "Hooli"}, "salary_min": "competitive"}
		]}`))
	}))
	defer server.Close()

	config := newFeedConfig("adzuna_gb", KindAdzuna, server.URL)
	config.AppID = "id"
	config.APIKey = "key"

	adapter, err := NewAdzunaAdapter(config, server.Client(), "")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	result, err := adapter.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if len(result.Candidates) != 1 {
		t.Fatalf("Expected 1 candidate, got %d", len(result.Candidates))
	}
	if result.Candidates[0].SourceID != "101" {
		t.Errorf("Expected source id '101', got '%s'", result.Candidates[0].SourceID)
	}
	if len(result.ItemErrors) != 1 {
		t.Fatalf("Expected 1 item error, got %d", len(result.ItemErrors))
	}
	if !strings.HasPrefix(result.ItemErrors[0].Error(), "page 1 result 1:") {
		t.Errorf("Expected error prefixed with 'page 1 result 1:', got '%v'", result.ItemErrors[0])
	}
}

func TestJoobleAdapter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/api/secret-key" {
			t.Errorf("Expected key in path, got %s", r.URL.Path)
		}

		var params map[string]string
		if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
			t.Errorf("Expected JSON body, got error: %v", err)
		}
		if params["keywords"] != "intern" {
			t.Errorf("Expected keywords 'intern', got %q", params["keywords"])
		}

		w.Write([]byte(`{"totalCount": 2, "jobs": [
			{"id": -4417431785375890000, "title": "Summer Analyst", "location": "Boston, MA", "snippet": "&nbsp;Join our <b>summer</b> program", "salary": "$25/hr", "type": "Internship", "link": "https://jooble.example/desc/1", "company": "Initech"},
			{"id": "", "title": "", "link": ""}
		]}`))
	}))
	defer server.Close()

	config := newFeedConfig("jooble_us", KindJooble, server.URL+"/api")
	config.APIKey = "secret-key"
	config.Params = map[string]string{"keywords": "intern"}

	adapter, err := NewJoobleAdapter(config, server.Client(), "")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	result, err := adapter.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if len(result.Candidates) != 1 {
		t.Fatalf("Expected 1 candidate, got %d", len(result.Candidates))
	}
	if len(result.ItemErrors) != 1 {
		t.Errorf("Expected 1 item error, got %d", len(result.ItemErrors))
	}

	job := result.Candidates[0]
	if job.Type != database.TypeInternship {
		t.Errorf("Expected type internship, got %s", job.Type)
	}
	if job.SourceID == "" {
		t.Error("Expected numeric id to be kept as source id")
	}
	if job.Company != "Initech" || job.Salary != "$25/hr" {
		t.Errorf("Unexpected company/salary: %q / %q", job.Company, job.Salary)
	}
	if strings.Contains(job.Description, "<b>") {
		t.Errorf("Expected HTML stripped, got %q", job.Description)
	}
}

func TestJoobleAdapterKeepsGoodJobsOnMistypedItem(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"totalCount": 2, "jobs": [
			{"id": 7, "title": "Summer Analyst", "salary": "$25/hr", "link": "https://jooble.example/desc/7", "company": "Initech"},
			{"id": 8, "title": "Research Assistant", "salary": 45000, "link": "https://jooble.example/desc/8"}
		]}`))
	}))
	defer server.Close()

	config := newFeedConfig("jooble_us", KindJooble, server.URL+"/api")
	config.APIKey = "secret-key"

	adapter, err := NewJoobleAdapter(config, server.Client(), "")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	result, err := adapter.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if len(result.Candidates) != 1 {
		t.Fatalf("Expected 1 candidate, got %d", len(result.Candidates))
	}
	if result.Candidates[0].Title != "Summer Analyst" {
		t.Errorf("Expected title 'Summer Analyst', got '%s'", result.Candidates[0].Title)
	}
	if len(result.ItemErrors) != 1 {
		t.Fatalf("Expected 1 item error, got %d", len(result.ItemErrors))
	}
	if !strings.HasPrefix(result.ItemErrors[0].Error(), "job 1:") {
		t.Errorf("Expected error prefixed with 'job 1:', got '%v'", result.ItemErrors[0])
	}
}

func TestJSONAdapterMapping(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Api-Key") != "k1" {
			t.Errorf("Expected key header, got %q", r.Header.Get("X-Api-Key"))
		}
		if r.URL.Query().Get("api_key") != "" {
			t.Error("Expected key not to be sent in query when a header is configured")
		}
		if r.URL.Query().Get("category") != "student" {
			t.Errorf("Expected category param, got %s", r.URL.RawQuery)
		}

		w.Write([]byte(`{"data": {"postings": [
			{"uid": 7, "name": "Robotics Hackathon", "org": {"name": "Campus Makers"}, "where": "Lab 3", "summary": "48 hour build", "apply": "https://makers.example/hack", "closes": "2025-04-01", "kind": "competition"},
			{"uid": "a-2", "name": "Data Science Workshop", "org": {"name": "Stats Club"}, "summary": "Intro to pandas", "apply": "https://stats.example/ws", "kind": "unknown"},
			"not an object",
			{"summary": "missing title and id"}
		]}}`))
	}))
	defer server.Close()

	config := newFeedConfig("campus_board", KindJSON, server.URL)
	config.APIKey = "k1"
	config.APIKeyHeader = "X-Api-Key"
	config.Params = map[string]string{"category": "student"}
	config.Mapping = FieldMapping{
		Items:       "data.postings",
		ID:          "uid",
		Title:       "name",
		Company:     "org.name",
		Location:    "where",
		Description: "summary",
		URL:         "apply",
		Deadline:    "closes",
		Type:        "kind",
	}

	adapter, err := NewJSONAdapter(config, server.Client(), "")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	result, err := adapter.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if len(result.Candidates) != 2 {
		t.Fatalf("Expected 2 candidates, got %d", len(result.Candidates))
	}
	if len(result.ItemErrors) != 2 {
		t.Errorf("Expected 2 item errors, got %d", len(result.ItemErrors))
	}

	hackathon := result.Candidates[0]
	if hackathon.SourceID != "7" {
		t.Errorf("Expected source id '7', got %q", hackathon.SourceID)
	}
	if hackathon.Company != "Campus Makers" {
		t.Errorf("Expected nested company, got %q", hackathon.Company)
	}
	if hackathon.Type != database.TypeCompetition {
		t.Errorf("Expected mapped type competition, got %s", hackathon.Type)
	}
	if hackathon.Deadline == nil || hackathon.Deadline.Format("2006-01-02") != "2025-04-01" {
		t.Errorf("Expected deadline 2025-04-01, got %v", hackathon.Deadline)
	}

	workshop := result.Candidates[1]
	if workshop.Type != database.TypeWorkshop {
		t.Errorf("Expected inferred type workshop, got %s", workshop.Type)
	}
	if workshop.Deadline != nil {
		t.Errorf("Expected no deadline, got %v", workshop.Deadline)
	}
}

func TestJSONAdapterPostBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Expected JSON content type, got %q", r.Header.Get("Content-Type"))
		}

		var payload map[string]string
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("Expected JSON body, got error: %v", err)
		}
		if !strings.Contains(payload["query"], "jobs") {
			t.Errorf("Expected GraphQL query in body, got %q", payload["query"])
		}

		w.Write([]byte(`{"data": {"jobs": [
			{"id": "ck1", "title": "Frontend Engineer", "company": {"name": "Apollo"}, "locationNames": "Remote", "description": "React and GraphQL", "applyUrl": "https://graphql.example/jobs/ck1"}
		]}}`))
	}))
	defer server.Close()

	config := newFeedConfig("graphql_jobs", KindJSON, server.URL)
	config.Method = "post"
	config.Body = `{"query": "{ jobs { id title company { name } locationNames description applyUrl } }"}`
	config.Mapping = FieldMapping{
		Items:       "data.jobs",
		ID:          "id",
		Title:       "title",
		Company:     "company.name",
		Location:    "locationNames",
		Description: "description",
		URL:         "applyUrl",
	}

	adapter, err := NewJSONAdapter(config, server.Client(), "")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	result, err := adapter.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(result.Candidates) != 1 {
		t.Fatalf("Expected 1 candidate, got %d", len(result.Candidates))
	}

	job := result.Candidates[0]
	if job.SourceID != "ck1" || job.Company != "Apollo" {
		t.Errorf("Unexpected source id/company: %q / %q", job.SourceID, job.Company)
	}
	if job.ApplicationURL != "https://graphql.example/jobs/ck1" {
		t.Errorf("Expected apply URL, got %q", job.ApplicationURL)
	}
}

func TestJSONAdapterMissingArray(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error": "quota exceeded"}`))
	}))
	defer server.Close()

	config := newFeedConfig("campus_board", KindJSON, server.URL)
	config.Mapping = FieldMapping{Items: "data.postings", Title: "name"}

	adapter, err := NewJSONAdapter(config, server.Client(), "")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if _, err := adapter.Fetch(context.Background()); err == nil {
		t.Fatal("Expected error when result array is missing")
	}
}

func TestLookupPath(t *testing.T) {
	value := map[string]any{
		"a": map[string]any{
			"b": []any{"first", "second"},
		},
	}

	if got := lookupPath(value, "a.b.1"); got != "second" {
		t.Errorf("Expected 'second', got %v", got)
	}
	if got := lookupPath(value, "a.b.5"); got != nil {
		t.Errorf("Expected nil for out of range index, got %v", got)
	}
	if got := lookupPath(value, "a.missing.c"); got != nil {
		t.Errorf("Expected nil for missing key, got %v", got)
	}
}

func TestRegistry(t *testing.T) {
	cache := NewConfigCache(t.TempDir())
	if err := cache.Add(&Config{Name: "campus_rss", URL: "https://campus.example/feed", Settings: ConfigSettings{Enabled: true}}); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if err := cache.Add(&Config{Name: "adzuna_gb", Kind: KindAdzuna, URL: "https://api.adzuna.example", Settings: ConfigSettings{Enabled: true}}); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	registry := BuildRegistry(cache, http.DefaultClient, nil, "")

	if names := registry.Names(); len(names) != 1 || names[0] != "campus_rss" {
		t.Errorf("Expected only campus_rss to build, got %v", names)
	}

	if _, err := registry.Adapter("campus_rss"); err != nil {
		t.Errorf("Expected adapter, got error: %v", err)
	}

	_, err := registry.Adapter("adzuna_gb")
	if err == nil || !strings.Contains(err.Error(), "app_id and api_key are required") {
		t.Errorf("Expected build error for adzuna_gb, got: %v", err)
	}

	_, err = registry.Adapter("nope")
	if !errors.Is(err, ErrUnknownSource) {
		t.Errorf("Expected ErrUnknownSource, got: %v", err)
	}
}
