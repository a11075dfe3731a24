package classify

import (
	"encoding/json"
	"errors"
	"regexp"
	"strconv"
	"strings"
)

var errNoVerdict = errors.New("no classification found in model response")

var (
	opportunityField = regexp.MustCompile(`(?i)"is_opportunity"\s*:\s*"?(true|false)"?`)
	confidenceField  = regexp.MustCompile(`(?i)"confidence"\s*:\s*"?(\d*\.?\d+)`)
	reasoningField   = regexp.MustCompile(`(?is)"reasoning"\s*:\s*"((?:[^"\\]|\\.)*)"`)
	trailingComma    = regexp.MustCompile(`,\s*([}\]])`)
)

// parseVerdict reads a verdict out of free model text. The fields are matched
// directly first; failing that, the first JSON object is decoded after
// trailing commas are removed.
func parseVerdict(text string) (Verdict, error) {
	if m := opportunityField.FindStringSubmatch(text); m != nil {
		verdict := Verdict{
			IsOpportunity: strings.EqualFold(m[1], "true"),
			Confidence:    0.5,
			Reasoning:     "Parsed from response",
		}
		if c := confidenceField.FindStringSubmatch(text); c != nil {
			if confidence, err := strconv.ParseFloat(c[1], 64); err == nil {
				verdict.Confidence = confidence
			}
		}
		if r := reasoningField.FindStringSubmatch(text); r != nil {
			verdict.Reasoning = unescape(r[1])
		}
		verdict.Confidence = clamp(verdict.Confidence)
		return verdict, nil
	}

	object := firstObject(text)
	if object == "" {
		return Verdict{}, errNoVerdict
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(trailingComma.ReplaceAllString(object, "$1")), &fields); err != nil {
		return Verdict{}, errNoVerdict
	}

	isOpportunity, ok := truthy(fields["is_opportunity"])
	if !ok {
		return Verdict{}, errNoVerdict
	}

	verdict := Verdict{
		IsOpportunity: isOpportunity,
		Confidence:    0.5,
		Reasoning:     "No reasoning provided",
	}
	switch c := fields["confidence"].(type) {
	case float64:
		verdict.Confidence = c
	case string:
		if confidence, err := strconv.ParseFloat(c, 64); err == nil {
			verdict.Confidence = confidence
		}
	}
	if reasoning, ok := fields["reasoning"].(string); ok && reasoning != "" {
		verdict.Reasoning = reasoning
	}
	verdict.Confidence = clamp(verdict.Confidence)

	return verdict, nil
}

// firstObject returns the first balanced {...} span, or "".
func firstObject(text string) string {
	start := strings.Index(text, "{")
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		switch {
		case escaped:
			escaped = false
		case ch == '\\' && inString:
			escaped = true
		case ch == '"':
			inString = !inString
		case inString:
		case ch == '{':
			depth++
		case ch == '}':
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}

func truthy(value any) (bool, bool) {
	switch v := value.(type) {
	case bool:
		return v, true
	case float64:
		return v != 0, true
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "yes", "1":
			return true, true
		case "false", "no", "0":
			return false, true
		}
	}
	return false, false
}

func unescape(s string) string {
	if unquoted, err := strconv.Unquote(`"` + s + `"`); err == nil {
		return unquoted
	}
	return s
}

func clamp(confidence float64) float64 {
	return max(0, min(1, confidence))
}
