package evaluator

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

type flakyEvaluator struct {
	failures int
	err      error
	calls    int
}

func (f *flakyEvaluator) EvaluateRefinement(ctx context.Context, slideIndex int, png []byte) (RefinementFeedback, error) {
	f.calls++
	if f.calls <= f.failures {
		return RefinementFeedback{}, f.err
	}
	return RefinementFeedback{SlideIndex: slideIndex, Score: 8, IsAcceptable: true}, nil
}

func (f *flakyEvaluator) EvaluateValidation(ctx context.Context, slideIndex, slideCount int, png []byte) (ValidationFeedback, error) {
	f.calls++
	if f.calls <= f.failures {
		return ValidationFeedback{}, f.err
	}
	return ValidationFeedback{Score: 9}, nil
}

func withNoDelay(t *testing.T) {
	t.Helper()
	prev := retryBaseDelay
	retryBaseDelay = time.Millisecond
	t.Cleanup(func() { retryBaseDelay = prev })
}

func TestRetryingRetriesTransientOnce(t *testing.T) {
	withNoDelay(t)
	base := &flakyEvaluator{failures: 1, err: fmt.Errorf("openai: http status 503")}
	ev := NewRetrying(base)

	fb, err := ev.EvaluateRefinement(context.Background(), 2, nil)
	if err != nil {
		t.Fatalf("expected success after retry, got %v", err)
	}
	if base.calls != 2 {
		t.Fatalf("expected 2 calls, got %d", base.calls)
	}
	if fb.SlideIndex != 2 || !fb.IsAcceptable {
		t.Fatalf("unexpected feedback %+v", fb)
	}
}

func TestRetryingGivesUpAfterOneRetry(t *testing.T) {
	withNoDelay(t)
	base := &flakyEvaluator{failures: 5, err: context.DeadlineExceeded}
	ev := NewRetrying(base)

	if _, err := ev.EvaluateValidation(context.Background(), 0, 1, nil); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	if base.calls != 2 {
		t.Fatalf("expected 2 calls, got %d", base.calls)
	}
}

func TestRetryingSkipsPermanentErrors(t *testing.T) {
	withNoDelay(t)
	base := &flakyEvaluator{failures: 5, err: ErrNotConfigured}
	ev := NewRetrying(base)

	if _, err := ev.EvaluateRefinement(context.Background(), 0, nil); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	if base.calls != 1 {
		t.Fatalf("expected 1 call, got %d", base.calls)
	}
}

func TestNewRetryingNil(t *testing.T) {
	if NewRetrying(nil) != nil {
		t.Fatalf("expected nil for nil base")
	}
}

func TestShouldRetry(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "deadline", err: fmt.Errorf("call: %w", context.DeadlineExceeded), want: true},
		{name: "canceled", err: context.Canceled, want: false},
		{name: "server error", err: errors.New("http status 502 bad gateway"), want: true},
		{name: "rate limit", err: errors.New("POST /chat/completions: 429 Too Many Requests"), want: true},
		{name: "reset", err: errors.New("read: connection reset by peer"), want: true},
		{name: "malformed", err: errors.New("parse feedback: invalid character"), want: false},
		{name: "not configured", err: ErrNotConfigured, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ShouldRetry(tt.err); got != tt.want {
				t.Fatalf("ShouldRetry(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestNormalizeSeverity(t *testing.T) {
	tests := map[string]Severity{
		"critical":  SeverityCritical,
		" Moderate": SeverityModerate,
		"minor":     SeverityMinor,
		"blocker":   SeverityMinor,
		"":          SeverityMinor,
	}
	for in, want := range tests {
		if got := NormalizeSeverity(in); got != want {
			t.Fatalf("NormalizeSeverity(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestPlaceholder(t *testing.T) {
	var p Placeholder
	if _, err := p.EvaluateRefinement(context.Background(), 0, nil); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	if _, err := p.EvaluateValidation(context.Background(), 0, 1, nil); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}
