package dedup

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Software Engineer", "software engineer"},
		{"  Café   Résumé Workshop!! ", "cafe resume workshop"},
		{"ACME, Inc.", "acme inc"},
		{"Straße", "strasse"},
		{"", ""},
		{"---", ""},
	}

	for _, tt := range tests {
		if got := Normalize(tt.input); got != tt.expected {
			t.Errorf("Normalize(%q) = %q, expected %q", tt.input, got, tt.expected)
		}
	}
}

func TestSimilarity(t *testing.T) {
	if got := Similarity("Software Engineer", "software engineer!"); got != 1 {
		t.Errorf("Expected identical after normalization, got %v", got)
	}
	if got := Similarity("", ""); got != 1 {
		t.Errorf("Expected two empty strings to be equal, got %v", got)
	}
	if got := Similarity("Acme", ""); got != 0 {
		t.Errorf("Expected 0 against empty, got %v", got)
	}

	// One substitution in 17 runes.
	if got := Similarity("Software Engineer", "Software Engineex"); got < 0.94 || got > 0.95 {
		t.Errorf("Expected ratio near 0.941, got %v", got)
	}

	if got := Similarity("Software Engineer", "Marketing Manager"); got >= DefaultThreshold {
		t.Errorf("Expected unrelated titles below threshold, got %v", got)
	}
	if got := Similarity("Software Engineer Intern", "Software Engineering Intern"); got < DefaultThreshold {
		t.Errorf("Expected near-identical titles above threshold, got %v", got)
	}
}
