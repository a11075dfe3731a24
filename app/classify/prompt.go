package classify

import (
	"fmt"
	"strings"
)

const maxPromptDescription = 500

func buildPrompt(title, description, source string) string {
	if runes := []rune(description); len(runes) > maxPromptDescription {
		description = string(runes[:maxPromptDescription]) + "..."
	}

	var b strings.Builder
	b.WriteString(`You classify posts for a student opportunity board. Decide whether the post OFFERS an opportunity (a job, internship, workshop, conference or competition that someone can apply to or join) or is NOT an opportunity (a question, a discussion, a request for advice, or a person looking for work).

Opportunity examples (true):
- "[Hiring] Software Engineer at Google - remote position available, apply at..."
- "Summer Internship Program - we're looking for interns in data science"
- "Free Python workshop next Saturday, registration open"
- "Tech conference 2025, early bird tickets available"

Not an opportunity (false):
- "How do I find an internship? Looking for advice"
- "What's the best way to prepare for interviews?"
- "Has anyone here interned at Google?"
- "Looking for internship opportunities, any suggestions?"
- "I'm a student looking for workshops to attend"

Questions, requests for advice and posts by job seekers are always false. When in doubt answer false.

`)
	fmt.Fprintf(&b, "SOURCE: %s\nTITLE: %s\nDESCRIPTION: %s\n\n", source, title, description)
	b.WriteString(`Respond ONLY with a JSON object in exactly this format:
{"is_opportunity": true or false, "confidence": 0.0 to 1.0, "reasoning": "brief explanation"}
`)

	return b.String()
}
