package source

import (
	"html"
	"net/url"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/microcosm-cc/bluemonday"

	"github.com/campusclimb/opportunity-fetcher/app/database"
)

const unknownCompany = "Unknown Company"

var (
	stripPolicy = bluemonday.StrictPolicy()
	whitespace  = regexp.MustCompile(`\s+`)
	nonSlug     = regexp.MustCompile(`[^a-z0-9]+`)
)

// Title prefixes of posts offering services rather than seeking applicants.
var forHireMarkers = []string{
	"[for hire]",
	"[forhire]",
	"(for hire)",
	"for hire:",
	"[fh]",
	"[offer]",
	"[offering]",
	"[available]",
	"[seeking work]",
	"[self-promotion]",
}

// StripHTML removes markup and entities and collapses whitespace.
func StripHTML(s string) string {
	if s == "" {
		return ""
	}
	text := stripPolicy.Sanitize(strings.ReplaceAll(s, "<", " <"))
	text = html.UnescapeString(text)
	return strings.TrimSpace(whitespace.ReplaceAllString(text, " "))
}

func IsForHire(title string) bool {
	lower := strings.ToLower(strings.TrimSpace(title))
	for _, marker := range forHireMarkers {
		if strings.HasPrefix(lower, marker) {
			return true
		}
	}
	return false
}

type typeRule struct {
	oppType database.OpportunityType
	pattern *regexp.Regexp
}

// Checked in order; the first match wins.
var typeRules = []typeRule{
	{database.TypeInternship, regexp.MustCompile(`(?i)\b(intern|interns|internship|internships|co-?op)\b`)},
	{database.TypeConference, regexp.MustCompile(`(?i)\b(conference|summit|symposium|convention)\b`)},
	{database.TypeWorkshop, regexp.MustCompile(`(?i)\b(workshop|bootcamp|seminar|webinar|meetup|masterclass)\b`)},
	{database.TypeCompetition, regexp.MustCompile(`(?i)\b(hackathon|competition|contest|challenge|olympiad)\b`)},
}

// DetermineType looks at the title first, then the description. When neither
// carries a signal the fallback (a source default_type, else job) is used.
func DetermineType(title, description string, fallback database.OpportunityType) database.OpportunityType {
	for _, text := range []string{title, description} {
		for _, rule := range typeRules {
			if rule.pattern.MatchString(text) {
				return rule.oppType
			}
		}
	}
	if fallback == "" {
		return database.TypeJob
	}
	return fallback
}

type categoryRule struct {
	name    string
	pattern *regexp.Regexp
}

var categoryRules = []categoryRule{
	{"Technology", regexp.MustCompile(`(?i)\b(software|developer|engineer|engineering|programming|programmer|data|devops|cloud|web|frontend|backend|full[- ]?stack|machine learning|ai|tech|computer|cyber ?security)\b`)},
	{"Business", regexp.MustCompile(`(?i)\b(business|marketing|finance|financial|sales|management|accounting|consulting|analyst|operations)\b`)},
	{"Design", regexp.MustCompile(`(?i)\b(design|designer|ux|ui|graphic|creative|illustrat\w*)\b`)},
	{"Education", regexp.MustCompile(`(?i)\b(teaching|teacher|tutor|tutoring|education|research|academic|scholarship)\b`)},
}

func Categorize(title, description string) string {
	text := title + " " + description
	for _, rule := range categoryRules {
		if rule.pattern.MatchString(text) {
			return rule.name
		}
	}
	return "General"
}

var (
	companyAt    = regexp.MustCompile(`(?i)\s(?:at|@)\s+([^|(\[,]+)`)
	companyDash  = regexp.MustCompile(`\s[-–|]\s+([^|(\[,]+)$`)
	bracketedTag = regexp.MustCompile(`^\s*[\[(][^\])]*[\])]\s*`)
)

// ExtractCompany prefers the feed author, then "Role at Company" and
// "Role - Company" title shapes.
func ExtractCompany(title, author string) string {
	if author = strings.TrimSpace(author); author != "" {
		return author
	}

	title = bracketedTag.ReplaceAllString(title, "")
	if m := companyAt.FindStringSubmatch(title); m != nil {
		if company := cleanCompany(m[1]); company != "" {
			return company
		}
	}
	if m := companyDash.FindStringSubmatch(title); m != nil {
		if company := cleanCompany(m[1]); company != "" {
			return company
		}
	}

	return unknownCompany
}

func cleanCompany(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, " - "); i > 0 {
		s = s[:i]
	}
	return strings.Trim(s, " .:;-")
}

var locationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)location\s*:\s*([^\n|;.]+)`),
	regexp.MustCompile(`\(([^)]*(?i:remote|hybrid|on-?site)[^)]*)\)`),
	regexp.MustCompile(`\(([A-Z][A-Za-z .]+,\s*[A-Z]{2,})\)`),
	regexp.MustCompile(`\bin\s+([A-Z][a-zA-Z]+(?:\s[A-Z][a-zA-Z]+)?,\s*[A-Z]{2})\b`),
}

// ExtractLocation scans title and description text and returns "" when
// nothing looks like a location.
func ExtractLocation(texts ...string) string {
	for _, pattern := range locationPatterns {
		for _, text := range texts {
			if m := pattern.FindStringSubmatch(text); m != nil {
				if location := strings.TrimSpace(m[1]); location != "" {
					return location
				}
			}
		}
	}
	return ""
}

// ParseDate never panics; unparsable input yields nil. The result is the
// calendar date at UTC midnight.
func ParseDate(value string) (deadline *time.Time) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}

	defer func() {
		if recover() != nil {
			deadline = nil
		}
	}()

	parsed, err := dateparse.ParseAny(value)
	if err != nil {
		return nil
	}

	date := time.Date(parsed.Year(), parsed.Month(), parsed.Day(), 0, 0, 0, 0, time.UTC)
	return &date
}

// SourceID picks a stable source-native identifier for a feed entry.
func SourceID(guid, link, title string) string {
	if guid = strings.TrimSpace(guid); guid != "" {
		return guid
	}

	if link != "" {
		if u, err := url.Parse(link); err == nil {
			if segment := path.Base(strings.TrimRight(u.Path, "/")); segment != "" && segment != "." && segment != "/" {
				return segment
			}
		}
	}

	return Slugify(title)
}

func Slugify(s string) string {
	slug := strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(s), "-"), "-")
	if len(slug) > 100 {
		slug = strings.TrimRight(slug[:100], "-")
	}
	return slug
}
