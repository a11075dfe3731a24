package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/campusclimb/opportunity-fetcher/app/database"
)

const rssFixture = `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>Campus Jobs</title>
    <link>https://jobs.example.com</link>
    <description>Jobs for students</description>
    <item>
      <title>Software Engineering Intern at Acme (Remote)</title>
      <link>https://jobs.example.com/postings/1001</link>
      <description>&lt;p&gt;We are hiring interns. &lt;b&gt;Apply&lt;/b&gt; by March 1.&lt;/p&gt;</description>
      <guid>posting-1001</guid>
    </item>
    <item>
      <title>[For Hire] Freelance web developer</title>
      <link>https://jobs.example.com/postings/1002</link>
      <description>Hire me for your next project</description>
    </item>
    <item>
      <title>Marketing Analyst</title>
      <link>https://jobs.example.com/postings/1003/</link>
      <description>Location: Denver, CO</description>
      <author>hr@initech.example (Initech)</author>
    </item>
    <item>
      <title></title>
      <description>orphan entry</description>
    </item>
  </channel>
</rss>`

const redditFixture = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>internships</title>
  <entry>
    <author><name>/u/recruiter</name><uri>https://www.reddit.com/user/recruiter</uri></author>
    <id>t3_abc123</id>
    <link href="https://www.reddit.com/r/internships/comments/abc123/hiring_software_engineer/"/>
    <title>[Hiring] Software Engineer at Stripe</title>
    <content type="html">&lt;!-- SC_OFF --&gt;&lt;div class="md"&gt;&lt;p&gt;We are hiring.&lt;/p&gt;&lt;p&gt;Apply now!&lt;/p&gt;&lt;/div&gt;&lt;!-- SC_ON --&gt; &amp;#32; submitted by &amp;#32; &lt;a href="https://www.reddit.com/user/recruiter"&gt; /u/recruiter &lt;/a&gt;</content>
    <updated>2025-01-10T12:00:00+00:00</updated>
  </entry>
  <entry>
    <author><name>/u/student</name></author>
    <id>t3_def456</id>
    <link href="https://www.reddit.com/r/internships/comments/def456/how_do_i/"/>
    <title>How do I find an internship?</title>
    <content type="html">&lt;div class="md"&gt;&lt;p&gt;Looking for advice&lt;/p&gt;&lt;/div&gt;</content>
    <updated>2025-01-10T13:00:00+00:00</updated>
  </entry>
</feed>`

func newFeedServer(t *testing.T, body string, status int) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "test-agent" {
			t.Errorf("Expected User-Agent 'test-agent', got '%s'", r.Header.Get("User-Agent"))
		}
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func newFeedConfig(name string, kind Kind, url string) *Config {
	config := &Config{Name: name, Kind: kind, URL: url, Settings: ConfigSettings{Enabled: true}}
	applyDefaults(config)
	return config
}

func TestFeedAdapterRSS(t *testing.T) {
	server := newFeedServer(t, rssFixture, http.StatusOK)
	adapter := NewFeedAdapter(newFeedConfig("campus_jobs", KindRSS, server.URL), server.Client(), nil, "test-agent")

	result, err := adapter.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if len(result.Candidates) != 2 {
		t.Fatalf("Expected 2 candidates, got %d", len(result.Candidates))
	}
	if result.Discarded != 1 {
		t.Errorf("Expected 1 discarded for-hire entry, got %d", result.Discarded)
	}
	if len(result.ItemErrors) != 1 {
		t.Errorf("Expected 1 item error, got %d", len(result.ItemErrors))
	}

	intern := result.Candidates[0]
	if intern.Title != "Software Engineering Intern at Acme (Remote)" {
		t.Errorf("Unexpected title: %q", intern.Title)
	}
	if intern.Description != "We are hiring interns. Apply by March 1." {
		t.Errorf("Expected HTML to be stripped, got %q", intern.Description)
	}
	if intern.Company != "Acme" {
		t.Errorf("Expected company 'Acme', got %q", intern.Company)
	}
	if intern.Location != "Remote" {
		t.Errorf("Expected location 'Remote', got %q", intern.Location)
	}
	if intern.Type != database.TypeInternship {
		t.Errorf("Expected type internship, got %s", intern.Type)
	}
	if intern.SourceID != "posting-1001" {
		t.Errorf("Expected source id 'posting-1001', got %q", intern.SourceID)
	}
	if intern.Source != "campus_jobs" {
		t.Errorf("Expected source 'campus_jobs', got %q", intern.Source)
	}
	if intern.Deadline != nil {
		t.Errorf("Expected no deadline for feed entries, got %v", intern.Deadline)
	}

	analyst := result.Candidates[1]
	if analyst.Company != "Initech" {
		t.Errorf("Expected author as company 'Initech', got %q", analyst.Company)
	}
	if analyst.Location != "Denver, CO" {
		t.Errorf("Expected location 'Denver, CO', got %q", analyst.Location)
	}
	if analyst.SourceID != "1003" {
		t.Errorf("Expected source id from link '1003', got %q", analyst.SourceID)
	}
	if analyst.Type != database.TypeJob {
		t.Errorf("Expected default type job, got %s", analyst.Type)
	}
}

func TestFeedAdapterReddit(t *testing.T) {
	server := newFeedServer(t, redditFixture, http.StatusOK)
	adapter := NewFeedAdapter(newFeedConfig("reddit_internships", KindReddit, server.URL), server.Client(), nil, "test-agent")

	result, err := adapter.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(result.Candidates) != 2 {
		t.Fatalf("Expected 2 candidates, got %d", len(result.Candidates))
	}

	hiring := result.Candidates[0]
	if hiring.Description != "We are hiring. Apply now!" {
		t.Errorf("Expected post body only, got %q", hiring.Description)
	}
	if hiring.Location != "" {
		t.Errorf("Expected empty location without a hint, got %q", hiring.Location)
	}
	if hiring.Company != "Stripe" {
		t.Errorf("Expected company from title 'Stripe', got %q", hiring.Company)
	}
	if hiring.SourceID != "t3_abc123" {
		t.Errorf("Expected source id 't3_abc123', got %q", hiring.SourceID)
	}

	question := result.Candidates[1]
	if question.Company != "Unknown Company" {
		t.Errorf("Expected reddit author not to be used as company, got %q", question.Company)
	}
	if question.Description != "Looking for advice" {
		t.Errorf("Unexpected description %q", question.Description)
	}
}

func TestFeedAdapterMaxItems(t *testing.T) {
	server := newFeedServer(t, rssFixture, http.StatusOK)
	config := newFeedConfig("campus_jobs", KindRSS, server.URL)
	config.Settings.MaxItems = 1

	result, err := NewFeedAdapter(config, server.Client(), nil, "test-agent").Fetch(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(result.Candidates) != 1 {
		t.Errorf("Expected 1 candidate, got %d", len(result.Candidates))
	}
}

func TestFeedAdapterSourceUnavailable(t *testing.T) {
	server := newFeedServer(t, "gone", http.StatusServiceUnavailable)
	adapter := NewFeedAdapter(newFeedConfig("down", KindRSS, server.URL), server.Client(), nil, "test-agent")

	_, err := adapter.Fetch(context.Background())
	if err == nil {
		t.Fatal("Expected error for unavailable source")
	}
	if !strings.Contains(err.Error(), "503") {
		t.Errorf("Expected HTTP status in error, got: %v", err)
	}
}

func TestFeedAdapterUnparsableFeed(t *testing.T) {
	server := newFeedServer(t, "this is not xml", http.StatusOK)
	adapter := NewFeedAdapter(newFeedConfig("broken", KindRSS, server.URL), server.Client(), nil, "test-agent")

	if _, err := adapter.Fetch(context.Background()); err == nil {
		t.Fatal("Expected error for unparsable feed")
	}
}

func TestFeedAdapterTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(3 * time.Second):
		}
	}))
	defer server.Close()

	config := newFeedConfig("slow", KindRSS, server.URL)
	config.Settings.Timeout = 1

	start := time.Now()
	if _, err := NewFeedAdapter(config, server.Client(), nil, "").Fetch(context.Background()); err == nil {
		t.Fatal("Expected timeout error")
	}
	if elapsed := time.Since(start); elapsed > 2500*time.Millisecond {
		t.Errorf("Expected fetch to respect timeout, took %v", elapsed)
	}
}

func TestFeedAdapterExtractContent(t *testing.T) {
	page := `<html><head><title>Posting</title></head><body><article>
<h1>Research Assistant</h1>
<p>The lab is hiring a research assistant to help with data collection and analysis for a two year study of campus housing.</p>
<p>Apply with a CV and a short statement of interest describing relevant coursework and experience with statistics.</p>
<p>Assistants work ten hours per week during the semester, attend a weekly team meeting, and are paid at the standard student research rate.</p>
<p>Students from any department are welcome, and previous research experience is not required for this position.</p>
</article></body></html>`

	mux := http.NewServeMux()
	var server *httptest.Server
	mux.HandleFunc("/feed", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<?xml version="1.0"?><rss version="2.0"><channel><title>t</title>
<item><title>Research Assistant</title><link>` + server.URL + `/posting</link><description>Short</description></item>
</channel></rss>`))
	})
	mux.HandleFunc("/posting", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(page))
	})
	server = httptest.NewServer(mux)
	defer server.Close()

	config := newFeedConfig("lab", KindRSS, server.URL+"/feed")
	config.Settings.ExtractContent = true
	extractor := NewContentExtractor(server.Client(), "", 5*time.Second)

	result, err := NewFeedAdapter(config, server.Client(), extractor, "").Fetch(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(result.Candidates) != 1 {
		t.Fatalf("Expected 1 candidate, got %d", len(result.Candidates))
	}
	if !strings.Contains(result.Candidates[0].Description, "hiring a research assistant") {
		t.Errorf("Expected description from linked page, got %q", result.Candidates[0].Description)
	}
}
