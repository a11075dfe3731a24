package classify

import (
	"context"
	"regexp"
	"strings"

	"github.com/campusclimb/opportunity-fetcher/app/source"
)

var (
	leadingTag = regexp.MustCompile(`^\s*[\[(][^\])]*[\])]\s*`)
	hiringTag  = regexp.MustCompile(`(?i)^\s*[\[(]\s*(hiring|job|internship|opportunity|event)\s*[\])]`)

	interrogative = regexp.MustCompile(`(?i)^(how|what|where|when|why|who|which|whom|whose|should|can|could|would|is|are|do|does|did|has|have|any|anyone|anybody)\b`)

	hiringIndicator = regexp.MustCompile(`(?i)\b(` + strings.Join([]string{
		`hiring`,
		`now hiring`,
		`apply`,
		`applications?`,
		`applicants?`,
		`positions? available`,
		`job openings?`,
		`openings?`,
		`vacanc(y|ies)`,
		`recruiting`,
		`we are looking for`,
		`we're looking for`,
		`we are seeking`,
		`we're seeking`,
		`join our team`,
		`join us`,
		`internship program`,
		`internship opportunit(y|ies)`,
		`register`,
		`registration`,
		`sign up`,
		`rsvp`,
		`tickets`,
		`call for`,
		`workshop`,
		`hackathon`,
		`competition`,
		`conference`,
	}, "|") + `)\b`)
)

var advicePhrases = []string{
	"looking for advice",
	"looking for help",
	"looking for tips",
	"looking for suggestions",
	"looking for recommendations",
	"any advice",
	"any tips",
	"any suggestions",
	"any recommendations",
	"need advice",
	"need help",
	"seeking advice",
	"advice needed",
	"what should i",
}

var seekerPhrases = []string{
	"i am looking for",
	"i'm looking for",
	"im looking for",
	"i am seeking",
	"i'm seeking",
	"looking for a job",
	"looking for an internship",
	"looking for internships",
	"looking for work",
	"open to work",
	"hire me",
}

// RuleBased is the keyword strategy. It is deterministic and total over any
// input, including empty and non-English text.
type RuleBased struct{}

var _ Classifier = (*RuleBased)(nil)

func NewRuleBased() *RuleBased {
	return &RuleBased{}
}

func (r *RuleBased) Classify(_ context.Context, title, description, _ string) Verdict {
	title = strings.TrimSpace(title)
	description = strings.TrimSpace(description)

	if title == "" && description == "" {
		return reject(1.0, "Empty title and description")
	}

	if source.IsForHire(title) {
		return reject(0.9, "Self-promotion post offering services")
	}

	subject := strings.TrimSpace(leadingTag.ReplaceAllString(title, ""))
	if interrogative.MatchString(subject) || strings.HasSuffix(title, "?") {
		return reject(0.8, "Title is a question")
	}

	text := normalizeQuotes(strings.ToLower(title + " " + description))

	if phrase, ok := containsAny(text, advicePhrases); ok {
		return reject(0.8, "Asks for advice: '"+phrase+"'")
	}

	if !hiringTag.MatchString(title) {
		if phrase, ok := containsAny(text, seekerPhrases); ok {
			return reject(0.75, "Written by a job seeker: '"+phrase+"'")
		}
	}

	indicator := hiringIndicator.FindString(text)
	if indicator == "" {
		return reject(0.6, "No hiring or participation indicator")
	}

	return Verdict{
		IsOpportunity: true,
		Confidence:    0.7,
		Reasoning:     "Contains indicator '" + indicator + "'",
		Strategy:      StrategyKeyword,
	}
}

func reject(confidence float64, reasoning string) Verdict {
	return Verdict{
		IsOpportunity: false,
		Confidence:    confidence,
		Reasoning:     reasoning,
		Strategy:      StrategyKeyword,
	}
}

func containsAny(text string, phrases []string) (string, bool) {
	for _, phrase := range phrases {
		if strings.Contains(text, phrase) {
			return phrase, true
		}
	}
	return "", false
}

func normalizeQuotes(s string) string {
	return strings.NewReplacer("’", "'", "‘", "'").Replace(s)
}
