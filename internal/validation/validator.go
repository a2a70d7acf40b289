package validation

import (
	"context"
	"errors"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"

	"deck-backend/internal/evaluator"
	"deck-backend/internal/preview"
	"deck-backend/internal/shared/metrics"
	"deck-backend/internal/shared/telemetry"
	"deck-backend/internal/slides"
)

const (
	defaultConcurrency = 4
	noSlidesSummary    = "No slides found in presentation."
)

// Renderer turns a deck into one frame per slide.
type Renderer interface {
	RenderDeck(ctx context.Context, deck slides.Deck) ([]preview.Frame, error)
}

// Result is the aggregated quality report for one deck.
type Result struct {
	OverallScore float64           `json:"overallScore"`
	SlideScores  []float64         `json:"slideScores"`
	Issues       []evaluator.Issue `json:"issues"`
	Strengths    []string          `json:"strengths"`
	Summary      string            `json:"summary"`
}

// Validator scores every slide once and aggregates the verdicts. It never
// modifies the deck.
type Validator struct {
	renderer    Renderer
	evaluator   evaluator.ValidationEvaluator
	concurrency int
}

// NewValidator constructs a Validator; concurrency <= 0 uses the default.
func NewValidator(renderer Renderer, ev evaluator.ValidationEvaluator, concurrency int) *Validator {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &Validator{renderer: renderer, evaluator: ev, concurrency: concurrency}
}

// Validate renders deck and evaluates each slide once. A slide whose
// evaluation fails scores 0. Only render failures and cancellation return
// an error.
func (v *Validator) Validate(ctx context.Context, deck slides.Deck) (Result, error) {
	frames, err := v.renderer.RenderDeck(ctx, deck)
	if err != nil {
		return Result{}, fmt.Errorf("render deck: %w", err)
	}
	if len(frames) == 0 {
		return Result{OverallScore: 0, Summary: noSlidesSummary}, nil
	}

	feedback := make([]evaluator.ValidationFeedback, len(frames))
	var g errgroup.Group
	g.SetLimit(v.concurrency)
	for i := range frames {
		i := i
		g.Go(func() error {
			fb, err := v.evaluateOne(ctx, frames[i], len(frames))
			if err != nil {
				metrics.IncEvaluatorFailed()
				telemetry.Warn("validate.evaluate_failed", map[string]any{
					"slide_index": frames[i].SlideIndex,
					"error":       err.Error(),
				})
				fb = evaluator.ValidationFeedback{Score: 0}
			}
			feedback[i] = fb
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	res := aggregate(frames, feedback)
	metrics.IncValidation()
	telemetry.Info("validate.done", map[string]any{
		"slide_count":   len(frames),
		"overall_score": res.OverallScore,
		"issue_count":   len(res.Issues),
	})
	return res, nil
}

func (v *Validator) evaluateOne(ctx context.Context, frame preview.Frame, slideCount int) (fb evaluator.ValidationFeedback, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("evaluator panic: %v", rec)
		}
	}()
	metrics.IncEvaluatorCall()
	if v.evaluator == nil {
		return fb, errors.New("no validation evaluator")
	}
	return v.evaluator.EvaluateValidation(ctx, frame.SlideIndex, slideCount, frame.PNG)
}

func aggregate(frames []preview.Frame, feedback []evaluator.ValidationFeedback) Result {
	res := Result{
		SlideScores: make([]float64, len(frames)),
		Issues:      []evaluator.Issue{},
		Strengths:   []string{},
	}
	sum := 0.0
	for i, fb := range feedback {
		res.SlideScores[i] = fb.Score
		sum += fb.Score
		for _, is := range fb.Issues {
			is.SlideIndex = frames[i].SlideIndex
			is.Severity = evaluator.NormalizeSeverity(string(is.Severity))
			res.Issues = append(res.Issues, is)
		}
		res.Strengths = append(res.Strengths, fb.Strengths...)
	}
	mean := sum / float64(len(frames))
	res.OverallScore = math.Round(mean*10) / 10
	res.Summary = Summary(len(frames), mean, res.Issues)
	return res
}

// Summary formats the one-line human summary of a validation pass.
func Summary(slideCount int, mean float64, issues []evaluator.Issue) string {
	if slideCount == 0 {
		return noSlidesSummary
	}
	critical, moderate := 0, 0
	for _, is := range issues {
		switch evaluator.NormalizeSeverity(string(is.Severity)) {
		case evaluator.SeverityCritical:
			critical++
		case evaluator.SeverityModerate:
			moderate++
		}
	}
	minor := len(issues) - critical - moderate
	return fmt.Sprintf("Evaluated %d slide(s). Average score: %.1f/10. Issues: %d critical, %d moderate, %d minor.",
		slideCount, mean, critical, moderate, minor)
}
