package mode

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		raw  string
		want Mode
	}{
		{"semantic", Semantic},
		{"keyword", Keyword},
		{"SEMANTIC", Semantic},
		{"Keyword", Keyword},
		{"  keyword  ", Keyword},
		{"", Semantic},
		{"bogus", Semantic},
		{"hybrid", Semantic},
	}

	for _, tt := range tests {
		if got := Normalize(tt.raw); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestIsValid(t *testing.T) {
	if !Semantic.IsValid() || !Keyword.IsValid() {
		t.Error("builtin modes must be valid")
	}
	if Mode("hybrid").IsValid() {
		t.Error("unknown mode must be invalid")
	}
}
