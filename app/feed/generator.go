package feed

import (
	"bytes"
	"cmp"
	"encoding/xml"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/campusclimb/opportunity-fetcher/app/database"
)

const (
	channelTitle       = "Campus Climb Opportunities"
	channelDescription = "Jobs, internships, workshops, conferences and competitions for students"
)

// Generator renders opportunities as an RSS 2.0 channel.
type Generator struct {
	baseURL string
	version string
}

func NewGenerator(baseURL, version string) *Generator {
	return &Generator{
		baseURL: strings.TrimRight(baseURL, "/"),
		version: version,
	}
}

func (g *Generator) Run(opportunities []database.Opportunity) (string, error) {
	var buf bytes.Buffer

	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	buf.WriteString("\n")
	buf.WriteString(`<rss version="2.0" xmlns:atom="http://www.w3.org/2005/Atom">`)
	buf.WriteString("\n  <channel>\n")

	g.writeElement(&buf, "title", channelTitle, 4)
	g.writeElement(&buf, "link", g.baseURL, 4)
	g.writeElement(&buf, "description", channelDescription, 4)

	selfLink := g.baseURL + "/feeds/opportunities"
	buf.WriteString(fmt.Sprintf("    <atom:link href=\"%s\" rel=\"self\" type=\"application/rss+xml\" />\n",
		html.EscapeString(selfLink)))

	lastBuildDate := time.Now().In(time.Local)
	if len(opportunities) > 0 {
		lastBuildDate = cmp.Or(opportunities[0].CreatedAt, lastBuildDate)
	}

	g.writeElement(&buf, "lastBuildDate", lastBuildDate.Format(time.RFC1123Z), 4)
	g.writeElement(&buf, "generator", fmt.Sprintf("CampusClimb/%s", g.version), 4)

	for _, opp := range opportunities {
		g.writeItem(&buf, opp)
	}

	buf.WriteString("  </channel>\n</rss>")

	return buf.String(), nil
}

func (g *Generator) writeItem(buf *bytes.Buffer, opp database.Opportunity) {
	buf.WriteString("    <item>\n")

	buf.WriteString("      <guid isPermaLink=\"false\">")
	xml.EscapeText(buf, []byte(fmt.Sprintf("campusclimb-opportunity-%d", opp.ID)))
	buf.WriteString("</guid>\n")

	title := opp.Title
	if opp.Company != "" && !strings.Contains(strings.ToLower(title), strings.ToLower(opp.Company)) {
		title = fmt.Sprintf("%s at %s", title, opp.Company)
	}
	g.writeElement(buf, "title", title, 6)
	g.writeElement(buf, "link", cmp.Or(opp.ApplicationURL, opp.SourceURL), 6)
	g.writeElement(buf, "description", g.describe(opp), 6)
	g.writeElement(buf, "pubDate", opp.CreatedAt.Format(time.RFC1123Z), 6)
	g.writeElement(buf, "category", string(opp.Type), 6)
	g.writeElement(buf, "category", opp.Category, 6)

	buf.WriteString("    </item>\n")
}

func (g *Generator) describe(opp database.Opportunity) string {
	var lines []string
	if opp.Location != "" {
		lines = append(lines, "Location: "+opp.Location)
	}
	if opp.Salary != "" {
		lines = append(lines, "Salary: "+opp.Salary)
	}
	if opp.Deadline != nil {
		lines = append(lines, "Deadline: "+opp.Deadline.Format("2006-01-02"))
	}
	lines = append(lines, cmp.Or(opp.Description, "No description available"))
	return strings.Join(lines, " | ")
}

func (g *Generator) writeElement(buf *bytes.Buffer, tag, content string, indent int) {
	if content == "" {
		return
	}

	for i := 0; i < indent; i++ {
		buf.WriteByte(' ')
	}

	buf.WriteString("<")
	buf.WriteString(tag)
	buf.WriteString(">")
	xml.EscapeText(buf, []byte(content))
	buf.WriteString("</")
	buf.WriteString(tag)
	buf.WriteString(">\n")
}
