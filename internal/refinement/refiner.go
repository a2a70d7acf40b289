package refinement

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"deck-backend/internal/evaluator"
	"deck-backend/internal/preview"
	"deck-backend/internal/shared/metrics"
	"deck-backend/internal/shared/telemetry"
	"deck-backend/internal/slides"
)

const (
	defaultMaxIterations  = 2
	defaultScoreThreshold = 7.0
	defaultConcurrency    = 4
)

// Renderer turns a deck into one frame per slide.
type Renderer interface {
	RenderDeck(ctx context.Context, deck slides.Deck) ([]preview.Frame, error)
}

// Config bounds a refinement run.
type Config struct {
	MaxIterations int
	// ScoreThreshold is quoted to the evaluator; the loop itself trusts
	// each verdict's IsAcceptable flag.
	ScoreThreshold float64
	// Concurrency bounds in-flight evaluator calls within one iteration.
	Concurrency int
}

// StopReason explains why a run ended.
type StopReason string

const (
	StopAccepted      StopReason = "accepted"
	StopNoFixes       StopReason = "no_fixes"
	StopNoAssessment  StopReason = "no_assessment"
	StopMaxIterations StopReason = "max_iterations"
	StopRenderFailed  StopReason = "render_failed"
	StopNoSlides      StopReason = "no_slides"
	StopCanceled      StopReason = "canceled"
)

// Report records what a refinement run did.
type Report struct {
	Iterations     int        `json:"iterations"`
	EvaluatorCalls int        `json:"evaluatorCalls"`
	FixesApplied   int        `json:"fixesApplied"`
	Converged      bool       `json:"converged"`
	StopReason     StopReason `json:"stopReason"`
}

// Refiner improves shape geometry from evaluator feedback. It holds no state
// between runs and is safe for concurrent use.
type Refiner struct {
	renderer  Renderer
	evaluator evaluator.RefinementEvaluator
	cfg       Config
}

// NewRefiner constructs a Refiner, filling zero config fields with defaults.
func NewRefiner(renderer Renderer, ev evaluator.RefinementEvaluator, cfg Config) *Refiner {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = defaultMaxIterations
	}
	if cfg.ScoreThreshold <= 0 {
		cfg.ScoreThreshold = defaultScoreThreshold
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	return &Refiner{renderer: renderer, evaluator: ev, cfg: cfg}
}

// Config returns the effective configuration.
func (r *Refiner) Config() Config { return r.cfg }

type slideVerdict struct {
	feedback evaluator.RefinementFeedback
	ok       bool
}

// Refine runs render, evaluate, decide and apply until every slide is
// acceptable, no fixes are proposed, or MaxIterations is reached. The input
// deck is never mutated; the returned deck reflects the last applied round.
// A render failure ends the run with the current deck and a nil error. Only
// context cancellation is returned as an error, alongside the current deck.
func (r *Refiner) Refine(ctx context.Context, deck slides.Deck) (slides.Deck, Report, error) {
	current := deck.Clone()
	var report Report

	for iteration := 0; iteration < r.cfg.MaxIterations; iteration++ {
		if err := ctx.Err(); err != nil {
			report.StopReason = StopCanceled
			return current, report, err
		}
		report.Iterations++
		metrics.IncRefineIteration()

		frames, err := r.renderer.RenderDeck(ctx, current)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				report.StopReason = StopCanceled
				return current, report, ctxErr
			}
			telemetry.Warn("refine.render_failed", map[string]any{
				"iteration": iteration + 1,
				"error":     err.Error(),
			})
			report.StopReason = StopRenderFailed
			return current, report, nil
		}
		if len(frames) == 0 {
			report.StopReason = StopNoSlides
			return current, report, nil
		}

		verdicts := r.evaluate(ctx, frames)
		report.EvaluatorCalls += len(frames)
		if err := ctx.Err(); err != nil {
			report.StopReason = StopCanceled
			return current, report, err
		}

		var fixes []evaluator.PositionFix
		allAcceptable := true
		assessed := 0
		for _, v := range verdicts {
			if !v.ok {
				continue
			}
			assessed++
			if !v.feedback.IsAcceptable {
				allAcceptable = false
			}
			fixes = append(fixes, v.feedback.PositionFixes...)
		}

		if allAcceptable || len(fixes) == 0 {
			switch {
			case assessed == 0:
				// Every evaluation failed; the deck is returned as-is but the
				// run is not reported as converged.
				report.StopReason = StopNoAssessment
				telemetry.Warn("refine.no_assessment", map[string]any{
					"iteration":   iteration + 1,
					"slide_count": len(frames),
				})
			case allAcceptable:
				report.StopReason = StopAccepted
				report.Converged = true
			default:
				report.StopReason = StopNoFixes
				report.Converged = true
			}
			telemetry.Info("refine.done", map[string]any{
				"iterations":    report.Iterations,
				"stop_reason":   string(report.StopReason),
				"fixes_applied": report.FixesApplied,
			})
			return current, report, nil
		}

		applied := ApplyFixes(&current, fixes)
		report.FixesApplied += applied
		metrics.AddFixesApplied(applied)
		telemetry.Info("refine.iteration", map[string]any{
			"iteration":      iteration + 1,
			"fixes_proposed": len(fixes),
			"fixes_applied":  applied,
			"assessed":       assessed,
		})
	}

	report.StopReason = StopMaxIterations
	telemetry.Info("refine.done", map[string]any{
		"iterations":    report.Iterations,
		"stop_reason":   string(report.StopReason),
		"fixes_applied": report.FixesApplied,
	})
	return current, report, nil
}

// evaluate scores every frame on a bounded pool. All slides finish before
// the caller applies anything. Failed slides come back with ok=false.
func (r *Refiner) evaluate(ctx context.Context, frames []preview.Frame) []slideVerdict {
	verdicts := make([]slideVerdict, len(frames))
	var g errgroup.Group
	g.SetLimit(r.cfg.Concurrency)
	for i := range frames {
		i := i
		g.Go(func() error {
			fb, err := r.evaluateOne(ctx, frames[i])
			if err != nil {
				metrics.IncEvaluatorFailed()
				telemetry.Warn("refine.evaluate_failed", map[string]any{
					"slide_index": frames[i].SlideIndex,
					"error":       err.Error(),
				})
				return nil
			}
			verdicts[i] = slideVerdict{feedback: fb, ok: true}
			return nil
		})
	}
	_ = g.Wait()
	return verdicts
}

func (r *Refiner) evaluateOne(ctx context.Context, frame preview.Frame) (fb evaluator.RefinementFeedback, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("evaluator panic: %v", rec)
		}
	}()
	metrics.IncEvaluatorCall()
	if r.evaluator == nil {
		return fb, errors.New("no refinement evaluator")
	}
	fb, err = r.evaluator.EvaluateRefinement(ctx, frame.SlideIndex, frame.PNG)
	if err != nil {
		return fb, err
	}
	fb.SlideIndex = frame.SlideIndex
	for i := range fb.PositionFixes {
		fb.PositionFixes[i].SlideIndex = frame.SlideIndex
	}
	return fb, nil
}

var _ Renderer = (*preview.Renderer)(nil)
