package source

import (
	"bytes"
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"github.com/campusclimb/opportunity-fetcher/app/database"
)

// Descriptions shorter than this are replaced by the linked page text when
// extract_content is enabled.
const minDescriptionLength = 80

// FeedAdapter reads RSS/Atom feeds, including Reddit's feed-as-RSS listings.
type FeedAdapter struct {
	config     *Config
	httpClient *http.Client
	parser     *gofeed.Parser
	extractor  *ContentExtractor
	userAgent  string
}

var _ Adapter = (*FeedAdapter)(nil)

func NewFeedAdapter(config *Config, httpClient *http.Client, extractor *ContentExtractor, userAgent string) *FeedAdapter {
	return &FeedAdapter{
		config:     config,
		httpClient: httpClient,
		parser:     gofeed.NewParser(),
		extractor:  extractor,
		userAgent:  userAgent,
	}
}

func (a *FeedAdapter) Name() string {
	return a.config.Name
}

func (a *FeedAdapter) Fetch(ctx context.Context) (*Result, error) {
	req, err := http.NewRequest(http.MethodGet, a.config.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	data, err := fetchBody(ctx, a.httpClient, req, a.userAgent, a.config.timeout())
	if err != nil {
		return nil, err
	}

	feed, err := a.parser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	result := &Result{}
	for i, item := range feed.Items {
		if i >= a.config.Settings.MaxItems {
			break
		}

		if item == nil {
			result.ItemErrors = append(result.ItemErrors, fmt.Errorf("entry %d: empty entry", i))
			continue
		}

		title := StripHTML(item.Title)
		if title == "" && item.Link == "" {
			result.ItemErrors = append(result.ItemErrors, fmt.Errorf("entry %d: no title or link", i))
			continue
		}

		if IsForHire(title) {
			result.Discarded++
			slog.Debug("Self-promotion entry discarded", "source", a.config.Name, "title", title)
			continue
		}

		result.Candidates = append(result.Candidates, a.normalizeItem(ctx, item, title))
	}

	return result, nil
}

func (a *FeedAdapter) normalizeItem(ctx context.Context, item *gofeed.Item, title string) Candidate {
	var description, company string

	if a.config.Kind == KindReddit {
		description = redditBody(cmp.Or(item.Content, item.Description))
		company = ExtractCompany(title, "")
	} else {
		description = StripHTML(cmp.Or(item.Description, item.Content))
		company = ExtractCompany(title, authorName(item))
	}

	if a.config.Settings.ExtractContent && a.extractor != nil && item.Link != "" && len(description) < minDescriptionLength {
		if text, err := a.extractor.Run(ctx, item.Link); err != nil {
			slog.Debug("Content extraction failed", "source", a.config.Name, "url", item.Link, "error", err)
		} else {
			description = text
		}
	}

	defaultType, _ := database.ParseOpportunityType(a.config.Settings.DefaultType)

	return Candidate{
		Title:          title,
		Company:        company,
		Location:       ExtractLocation(title, description),
		Description:    description,
		Type:           DetermineType(title, description, defaultType),
		Category:       Categorize(title, description),
		ApplicationURL: item.Link,
		Source:         a.config.Name,
		SourceID:       SourceID(item.GUID, item.Link, title),
		SourceURL:      item.Link,
	}
}

func authorName(item *gofeed.Item) string {
	for _, author := range item.Authors {
		if author != nil && strings.TrimSpace(author.Name) != "" {
			return author.Name
		}
	}
	if item.Author != nil {
		return item.Author.Name
	}
	return ""
}

// redditBody keeps the post's markdown block and drops the listing boilerplate.
func redditBody(content string) string {
	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(content)); err == nil {
		if body := doc.Find("div.md").First(); body.Length() > 0 {
			if inner, err := body.Html(); err == nil {
				return StripHTML(inner)
			}
		}
	}

	text := StripHTML(content)
	if i := strings.Index(text, "submitted by"); i >= 0 {
		text = strings.TrimSpace(text[:i])
	}
	return text
}
