package classify

import "testing"

func TestParseVerdict(t *testing.T) {
	tests := []struct {
		name          string
		text          string
		isOpportunity bool
		confidence    float64
		reasoning     string
	}{
		{
			name:          "plain json",
			text:          `{"is_opportunity": true, "confidence": 0.92, "reasoning": "Employer posting"}`,
			isOpportunity: true,
			confidence:    0.92,
			reasoning:     "Employer posting",
		},
		{
			name:          "wrapped in prose",
			text:          "Sure! Here is my answer:\n```json\n{\n  \"is_opportunity\": false,\n  \"confidence\": 0.8,\n  \"reasoning\": \"A question\"\n}\n```\nHope this helps.",
			isOpportunity: false,
			confidence:    0.8,
			reasoning:     "A question",
		},
		{
			name:          "trailing comma",
			text:          `{"is_opportunity": TRUE, "confidence": 0.75, "reasoning": "Workshop \"announcement\"",}`,
			isOpportunity: true,
			confidence:    0.75,
			reasoning:     `Workshop "announcement"`,
		},
		{
			name:          "confidence clamped",
			text:          `{"is_opportunity": true, "confidence": 7.5}`,
			isOpportunity: true,
			confidence:    1,
			reasoning:     "Parsed from response",
		},
		{
			name:          "string answer in object",
			text:          `Answer: {"is_opportunity": "yes", "confidence": "0.9", "reasoning": "Hiring post",}`,
			isOpportunity: true,
			confidence:    0.9,
			reasoning:     "Hiring post",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verdict, err := parseVerdict(tt.text)
			if err != nil {
				t.Fatalf("Expected no error, got: %v", err)
			}
			if verdict.IsOpportunity != tt.isOpportunity {
				t.Errorf("Expected is_opportunity=%v, got %v", tt.isOpportunity, verdict.IsOpportunity)
			}
			if verdict.Confidence != tt.confidence {
				t.Errorf("Expected confidence %v, got %v", tt.confidence, verdict.Confidence)
			}
			if verdict.Reasoning != tt.reasoning {
				t.Errorf("Expected reasoning %q, got %q", tt.reasoning, verdict.Reasoning)
			}
		})
	}
}

func TestParseVerdictGarbage(t *testing.T) {
	for _, text := range []string{
		"",
		"I think this is probably a job post.",
		`{"answer": "maybe"}`,
		`{"is_opportunity": `,
	} {
		if _, err := parseVerdict(text); err == nil {
			t.Errorf("Expected error for %q", text)
		}
	}
}
