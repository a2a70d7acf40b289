package evaluator

import (
	"context"
	"errors"
	"strings"
)

// ErrNotConfigured is returned by the placeholder evaluator.
var ErrNotConfigured = errors.New("evaluator not configured")

// FixType names the kind of geometry correction an evaluator proposes.
type FixType string

const (
	FixMove       FixType = "move"
	FixResize     FixType = "resize"
	FixFontReduce FixType = "font_reduce"
)

// PositionFix is a proposed geometry change for one named shape. Geometry is
// in linear units (914400 per inch); nil fields leave the value unchanged.
type PositionFix struct {
	SlideIndex int      `json:"slide_index"`
	ShapeName  string   `json:"shape_name"`
	Issue      string   `json:"issue"`
	FixType    FixType  `json:"fix_type"`
	NewLeft    *float64 `json:"new_left,omitempty"`
	NewTop     *float64 `json:"new_top,omitempty"`
	NewWidth   *float64 `json:"new_width,omitempty"`
	NewHeight  *float64 `json:"new_height,omitempty"`
}

// RefinementFeedback is one slide's positioning verdict for one iteration.
type RefinementFeedback struct {
	SlideIndex    int           `json:"slide_index"`
	Score         float64       `json:"score"`
	PositionFixes []PositionFix `json:"position_fixes"`
	IsAcceptable  bool          `json:"is_acceptable"`
}

// Severity grades a validation issue.
type Severity string

const (
	SeverityMinor    Severity = "minor"
	SeverityModerate Severity = "moderate"
	SeverityCritical Severity = "critical"
)

// NormalizeSeverity maps free-form evaluator output onto a known severity.
// Anything unrecognized counts as minor.
func NormalizeSeverity(raw string) Severity {
	switch Severity(strings.ToLower(strings.TrimSpace(raw))) {
	case SeverityCritical:
		return SeverityCritical
	case SeverityModerate:
		return SeverityModerate
	default:
		return SeverityMinor
	}
}

// Issue is a single quality problem found on a slide.
type Issue struct {
	SlideIndex  int      `json:"slide_index"`
	Severity    Severity `json:"severity"`
	Category    string   `json:"category"`
	Description string   `json:"description"`
	Suggestion  string   `json:"suggestion"`
}

// ValidationFeedback is one slide's quality verdict.
type ValidationFeedback struct {
	Score     float64  `json:"score"`
	Issues    []Issue  `json:"issues"`
	Strengths []string `json:"strengths"`
}

// RefinementEvaluator judges a rendered slide for positioning defects.
type RefinementEvaluator interface {
	EvaluateRefinement(ctx context.Context, slideIndex int, png []byte) (RefinementFeedback, error)
}

// ValidationEvaluator judges a rendered slide for overall visual quality.
// slideCount lets the evaluator phrase "slide i of n".
type ValidationEvaluator interface {
	EvaluateValidation(ctx context.Context, slideIndex, slideCount int, png []byte) (ValidationFeedback, error)
}

// Evaluator serves both refinement and validation.
type Evaluator interface {
	RefinementEvaluator
	ValidationEvaluator
}

// Placeholder is used when no vision provider is configured.
type Placeholder struct{}

// EvaluateRefinement returns ErrNotConfigured.
func (Placeholder) EvaluateRefinement(ctx context.Context, slideIndex int, png []byte) (RefinementFeedback, error) {
	return RefinementFeedback{}, ErrNotConfigured
}

// EvaluateValidation returns ErrNotConfigured.
func (Placeholder) EvaluateValidation(ctx context.Context, slideIndex, slideCount int, png []byte) (ValidationFeedback, error) {
	return ValidationFeedback{}, ErrNotConfigured
}

var _ Evaluator = Placeholder{}
