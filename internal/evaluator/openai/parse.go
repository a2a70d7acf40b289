package openai

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"deck-backend/internal/evaluator"
)

var errNoJSON = errors.New("no json object in evaluator reply")

// extractJSON trims markdown fences and surrounding prose from a reply.
func extractJSON(content string) ([]byte, error) {
	s := strings.TrimSpace(content)
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return nil, errNoJSON
	}
	return []byte(s[start : end+1]), nil
}

type refinementReply struct {
	Score         *float64                `json:"score"`
	IsAcceptable  *bool                   `json:"is_acceptable"`
	PositionFixes []evaluator.PositionFix `json:"position_fixes"`
}

type validationReply struct {
	Score  *float64 `json:"score"`
	Issues []struct {
		Severity    string `json:"severity"`
		Category    string `json:"category"`
		Description string `json:"description"`
		Suggestion  string `json:"suggestion"`
	} `json:"issues"`
	Strengths []string `json:"strengths"`
}

// parseRefinement decodes a positioning verdict. A missing score defaults to
// 5 and a missing acceptance flag to true; out-of-range scores are rejected.
// Every fix is stamped with slideIndex regardless of what the model claimed.
func parseRefinement(content string, slideIndex int) (evaluator.RefinementFeedback, error) {
	raw, err := extractJSON(content)
	if err != nil {
		return evaluator.RefinementFeedback{}, err
	}
	var reply refinementReply
	if err := json.Unmarshal(raw, &reply); err != nil {
		return evaluator.RefinementFeedback{}, fmt.Errorf("parse refinement reply: %w", err)
	}
	score := 5.0
	if reply.Score != nil {
		score = *reply.Score
	}
	if err := checkScore(score); err != nil {
		return evaluator.RefinementFeedback{}, err
	}
	acceptable := true
	if reply.IsAcceptable != nil {
		acceptable = *reply.IsAcceptable
	}
	fixes := make([]evaluator.PositionFix, 0, len(reply.PositionFixes))
	for _, f := range reply.PositionFixes {
		f.SlideIndex = slideIndex
		fixes = append(fixes, f)
	}
	return evaluator.RefinementFeedback{
		SlideIndex:    slideIndex,
		Score:         score,
		PositionFixes: fixes,
		IsAcceptable:  acceptable,
	}, nil
}

// parseValidation decodes a quality verdict. The score is required.
func parseValidation(content string, slideIndex int) (evaluator.ValidationFeedback, error) {
	raw, err := extractJSON(content)
	if err != nil {
		return evaluator.ValidationFeedback{}, err
	}
	var reply validationReply
	if err := json.Unmarshal(raw, &reply); err != nil {
		return evaluator.ValidationFeedback{}, fmt.Errorf("parse validation reply: %w", err)
	}
	if reply.Score == nil {
		return evaluator.ValidationFeedback{}, fmt.Errorf("parse validation reply: missing score")
	}
	if err := checkScore(*reply.Score); err != nil {
		return evaluator.ValidationFeedback{}, err
	}
	fb := evaluator.ValidationFeedback{
		Score:     *reply.Score,
		Issues:    make([]evaluator.Issue, 0, len(reply.Issues)),
		Strengths: reply.Strengths,
	}
	for _, is := range reply.Issues {
		fb.Issues = append(fb.Issues, evaluator.Issue{
			SlideIndex:  slideIndex,
			Severity:    evaluator.NormalizeSeverity(is.Severity),
			Category:    strings.TrimSpace(is.Category),
			Description: strings.TrimSpace(is.Description),
			Suggestion:  strings.TrimSpace(is.Suggestion),
		})
	}
	return fb, nil
}

func checkScore(score float64) error {
	if math.IsNaN(score) || score < 0 || score > 10 {
		return fmt.Errorf("score %v out of range [0,10]", score)
	}
	return nil
}
