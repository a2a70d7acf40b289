package validation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"deck-backend/internal/evaluator"
	"deck-backend/internal/preview"
	"deck-backend/internal/slides"
)

type fakeRenderer struct {
	err error
}

func (f fakeRenderer) RenderDeck(ctx context.Context, deck slides.Deck) ([]preview.Frame, error) {
	if f.err != nil {
		return nil, f.err
	}
	frames := make([]preview.Frame, len(deck.Slides))
	for i := range frames {
		frames[i] = preview.Frame{SlideIndex: i, PNG: []byte{byte(i)}}
	}
	return frames, nil
}

type scriptedEvaluator struct {
	mu      sync.Mutex
	calls   int
	results map[int]evaluator.ValidationFeedback
	errs    map[int]error
}

func (s *scriptedEvaluator) EvaluateValidation(ctx context.Context, slideIndex, slideCount int, png []byte) (evaluator.ValidationFeedback, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if err := s.errs[slideIndex]; err != nil {
		return evaluator.ValidationFeedback{}, err
	}
	return s.results[slideIndex], nil
}

func deckOf(n int) slides.Deck {
	return slides.Deck{Width: 9144000, Height: 6858000, Slides: make([]slides.Slide, n)}
}

func TestValidateAveragesScores(t *testing.T) {
	ev := &scriptedEvaluator{results: map[int]evaluator.ValidationFeedback{
		0: {Score: 9, Strengths: []string{"clean layout"}},
		1: {Score: 7, Issues: []evaluator.Issue{
			{SlideIndex: 42, Severity: evaluator.SeverityCritical, Category: "spacing", Description: "crowded"},
			{Severity: "moderate", Category: "color"},
			{Severity: "cosmetic", Category: "typography"},
		}},
	}}
	v := NewValidator(fakeRenderer{}, ev, 2)

	res, err := v.Validate(context.Background(), deckOf(2))
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if res.OverallScore != 8.0 {
		t.Fatalf("expected overall 8.0, got %v", res.OverallScore)
	}
	if ev.calls != 2 {
		t.Fatalf("expected one evaluation per slide, got %d", ev.calls)
	}
	if len(res.Issues) != 3 {
		t.Fatalf("expected 3 issues, got %d", len(res.Issues))
	}
	for _, is := range res.Issues {
		if is.SlideIndex != 1 {
			t.Fatalf("expected issues stamped with slide 1, got %d", is.SlideIndex)
		}
	}
	want := "Evaluated 2 slide(s). Average score: 8.0/10. Issues: 1 critical, 1 moderate, 1 minor."
	if res.Summary != want {
		t.Fatalf("summary = %q, want %q", res.Summary, want)
	}
	if len(res.Strengths) != 1 || res.Strengths[0] != "clean layout" {
		t.Fatalf("unexpected strengths %v", res.Strengths)
	}
}

func TestValidateFailureScoresZero(t *testing.T) {
	ev := &scriptedEvaluator{
		results: map[int]evaluator.ValidationFeedback{0: {Score: 9}},
		errs:    map[int]error{1: errors.New("timeout")},
	}
	v := NewValidator(fakeRenderer{}, ev, 0)

	res, err := v.Validate(context.Background(), deckOf(2))
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if res.OverallScore != 4.5 {
		t.Fatalf("expected overall 4.5, got %v", res.OverallScore)
	}
	if len(res.SlideScores) != 2 || res.SlideScores[1] != 0 {
		t.Fatalf("expected failed slide to score 0, got %v", res.SlideScores)
	}
}

func TestValidateRoundsToOneDecimal(t *testing.T) {
	ev := &scriptedEvaluator{results: map[int]evaluator.ValidationFeedback{
		0: {Score: 8}, 1: {Score: 7}, 2: {Score: 7},
	}}
	res, err := NewValidator(fakeRenderer{}, ev, 1).Validate(context.Background(), deckOf(3))
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if res.OverallScore != 7.3 {
		t.Fatalf("expected 7.3, got %v", res.OverallScore)
	}
	if !strings.Contains(res.Summary, "Average score: 7.3/10") {
		t.Fatalf("unexpected summary %q", res.Summary)
	}
}

func TestValidateZeroSlides(t *testing.T) {
	ev := &scriptedEvaluator{}
	res, err := NewValidator(fakeRenderer{}, ev, 0).Validate(context.Background(), deckOf(0))
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if res.OverallScore != 0 || res.Summary != "No slides found in presentation." {
		t.Fatalf("unexpected result %+v", res)
	}
	if ev.calls != 0 {
		t.Fatalf("expected no evaluator calls")
	}
}

func TestValidateRenderFailure(t *testing.T) {
	v := NewValidator(fakeRenderer{err: errors.New("bad page")}, &scriptedEvaluator{}, 0)
	if _, err := v.Validate(context.Background(), deckOf(1)); err == nil {
		t.Fatalf("expected render error")
	}
}

func TestSummaryCountsUnknownAsMinor(t *testing.T) {
	got := Summary(1, 6.24, []evaluator.Issue{{Severity: "blocker"}, {Severity: "critical"}})
	want := "Evaluated 1 slide(s). Average score: 6.2/10. Issues: 1 critical, 0 moderate, 1 minor."
	if got != want {
		t.Fatalf("Summary = %q, want %q", got, want)
	}
}
