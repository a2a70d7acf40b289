package openai

import (
	"strings"
	"testing"

	"deck-backend/internal/evaluator"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "bare", in: `{"score": 7}`, want: `{"score": 7}`},
		{name: "fenced", in: "```json\n{\"score\": 7}\n```", want: `{"score": 7}`},
		{name: "prose", in: "Here you go: {\"score\": 7} hope it helps", want: `{"score": 7}`},
		{name: "none", in: "no json", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractJSON(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(got) != tt.want {
				t.Fatalf("extractJSON = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseRefinementDefaults(t *testing.T) {
	fb, err := parseRefinement(`{}`, 3)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if fb.Score != 5 || !fb.IsAcceptable || fb.SlideIndex != 3 || len(fb.PositionFixes) != 0 {
		t.Fatalf("unexpected defaults %+v", fb)
	}
}

func TestParseRejectsOutOfRangeScore(t *testing.T) {
	if _, err := parseRefinement(`{"score": 11}`, 0); err == nil || !strings.Contains(err.Error(), "out of range") {
		t.Fatalf("expected range error, got %v", err)
	}
	if _, err := parseValidation(`{"score": -1}`, 0); err == nil {
		t.Fatalf("expected range error")
	}
}

func TestParseValidationRequiresScore(t *testing.T) {
	if _, err := parseValidation(`{"issues": []}`, 0); err == nil {
		t.Fatalf("expected missing score error")
	}
}

func TestParseValidationNormalizesIssues(t *testing.T) {
	fb, err := parseValidation(`{"score": 6, "issues": [{"severity": "severe", "category": " color ", "description": "clash", "suggestion": "use palette"}], "strengths": ["hierarchy"]}`, 4)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(fb.Issues) != 1 {
		t.Fatalf("expected one issue, got %d", len(fb.Issues))
	}
	is := fb.Issues[0]
	if is.SlideIndex != 4 || is.Severity != evaluator.SeverityMinor || is.Category != "color" {
		t.Fatalf("unexpected issue %+v", is)
	}
	if len(fb.Strengths) != 1 || fb.Strengths[0] != "hierarchy" {
		t.Fatalf("unexpected strengths %v", fb.Strengths)
	}
}
