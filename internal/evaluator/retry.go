package evaluator

import (
	"context"
	"errors"
	"log"
	"net"
	"strings"
	"time"
)

var retryBaseDelay = 300 * time.Millisecond

// Retrying retries a failed evaluation once when the failure looks transient.
// A failure that survives the retry is returned as-is; callers still apply
// their own per-slide policy (skip in refinement, score zero in validation).
type Retrying struct {
	base Evaluator
}

// NewRetrying wraps base. A nil base yields nil.
func NewRetrying(base Evaluator) Evaluator {
	if base == nil {
		return nil
	}
	return Retrying{base: base}
}

// EvaluateRefinement delegates to the wrapped evaluator with one retry.
func (r Retrying) EvaluateRefinement(ctx context.Context, slideIndex int, png []byte) (RefinementFeedback, error) {
	fb, err := r.base.EvaluateRefinement(ctx, slideIndex, png)
	if err == nil || !ShouldRetry(err) {
		return fb, err
	}
	if err := wait(ctx, "refinement", slideIndex, err); err != nil {
		return RefinementFeedback{}, err
	}
	return r.base.EvaluateRefinement(ctx, slideIndex, png)
}

// EvaluateValidation delegates to the wrapped evaluator with one retry.
func (r Retrying) EvaluateValidation(ctx context.Context, slideIndex, slideCount int, png []byte) (ValidationFeedback, error) {
	fb, err := r.base.EvaluateValidation(ctx, slideIndex, slideCount, png)
	if err == nil || !ShouldRetry(err) {
		return fb, err
	}
	if err := wait(ctx, "validation", slideIndex, err); err != nil {
		return ValidationFeedback{}, err
	}
	return r.base.EvaluateValidation(ctx, slideIndex, slideCount, png)
}

func wait(ctx context.Context, mode string, slideIndex int, cause error) error {
	log.Printf("evaluator retry attempt=1 mode=%s slide_index=%d error=%s", mode, slideIndex, sanitizeError(cause))
	t := time.NewTimer(retryBaseDelay)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ShouldRetry reports whether err looks like a transient provider failure.
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNotConfigured) || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "http status 5") || strings.Contains(msg, "server_error") || strings.Contains(msg, "429") {
		return true
	}
	if strings.Contains(msg, "timeout") {
		return true
	}
	if strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection closed") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "eof") {
		return true
	}
	return false
}

func sanitizeError(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.ReplaceAll(err.Error(), "\n", " ")
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}
