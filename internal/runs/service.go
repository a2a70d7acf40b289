package runs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"deck-backend/internal/capability"
	"deck-backend/internal/checkpoint"
	"deck-backend/internal/refinement"
	"deck-backend/internal/shared/metrics"
	"deck-backend/internal/shared/storage/object"
	"deck-backend/internal/shared/telemetry"
	"deck-backend/internal/slides"
	"deck-backend/internal/validation"
)

var (
	ErrNoReport    = errors.New("run has no validation report")
	ErrNoArtifact  = errors.New("run has no artifact")
	ErrNotRunning  = errors.New("run is not in progress")
	ErrClosed      = errors.New("run service closed")
	errNoDeckStore = errors.New("object store not configured")
)

const persistTimeout = 5 * time.Second

// Refiner improves a deck's layout.
type Refiner interface {
	Refine(ctx context.Context, deck slides.Deck) (slides.Deck, refinement.Report, error)
}

// Validator scores a deck without changing it.
type Validator interface {
	Validate(ctx context.Context, deck slides.Deck) (validation.Result, error)
}

// StartOptions are the caller's choices for one run. Nil pointers take the
// service defaults.
type StartOptions struct {
	Autonomy  string
	Validate  *bool
	Refine    *bool
	RequestID string
}

// Service drives decks through the design pipeline.
type Service struct {
	Repo            Repo
	Store           object.ObjectStore
	Checkpoints     *checkpoint.Store
	Refiner         Refiner
	Validator       Validator
	Caps            capability.Set
	DefaultAutonomy checkpoint.AutonomyLevel
	Codec           slides.Codec

	initOnce sync.Once
	base     context.Context
	stop     context.CancelFunc
	wg       sync.WaitGroup

	mu      sync.Mutex
	closed  bool
	cancels map[string]context.CancelFunc
}

func (s *Service) init() {
	s.initOnce.Do(func() {
		s.base, s.stop = context.WithCancel(context.Background())
		s.cancels = make(map[string]context.CancelFunc)
	})
}

// Start records a queued run and processes it in the background.
func (s *Service) Start(ctx context.Context, deck slides.Deck, opts StartOptions) (Run, error) {
	s.init()
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return Run{}, ErrClosed
	}
	level, err := s.autonomy(opts.Autonomy)
	if err != nil {
		return Run{}, err
	}
	refine, err := s.wantRefine(opts.Refine)
	if err != nil {
		return Run{}, err
	}
	validate := false
	if opts.Validate != nil && *opts.Validate {
		if s.Validator == nil {
			return Run{}, fmt.Errorf("validate: %w", capability.ErrUnavailable)
		}
		if err := s.Caps.Require(capability.Evaluator); err != nil {
			return Run{}, err
		}
		validate = true
	}
	if s.Store == nil {
		return Run{}, errNoDeckStore
	}

	now := time.Now().UTC()
	run := Run{
		ID:         uuid.NewString(),
		Status:     StatusQueued,
		Autonomy:   string(level),
		Validate:   validate,
		Refine:     refine,
		SlideCount: deck.SlideCount(),
		RequestID:  opts.RequestID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	run.InputKey = inputKey(run.ID)
	if err := s.putDeck(ctx, run.InputKey, deck); err != nil {
		return Run{}, fmt.Errorf("store input: %w", err)
	}
	if err := s.Repo.Create(ctx, run); err != nil {
		return Run{}, err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Run{}, ErrClosed
	}
	runCtx, cancel := context.WithCancel(s.base)
	s.cancels[run.ID] = cancel
	s.wg.Add(1)
	s.mu.Unlock()

	telemetry.Info("run.status", map[string]any{
		"request_id":  run.RequestID,
		"run_id":      run.ID,
		"status":      run.Status,
		"autonomy":    run.Autonomy,
		"slide_count": run.SlideCount,
	})
	go s.execute(runCtx, run, deck.Clone(), level)
	return run, nil
}

// Get returns a run by id.
func (s *Service) Get(ctx context.Context, runID string) (Run, error) {
	return s.Repo.GetByID(ctx, runID)
}

// List returns recent runs, newest first.
func (s *Service) List(ctx context.Context, limit int) ([]Run, error) {
	return s.Repo.List(ctx, limit)
}

// Cancel stops an in-flight run. Checkpoints it was waiting on stay pending.
func (s *Service) Cancel(ctx context.Context, runID string) error {
	s.init()
	s.mu.Lock()
	cancel, ok := s.cancels[runID]
	s.mu.Unlock()
	if ok {
		cancel()
		return nil
	}
	if _, err := s.Repo.GetByID(ctx, runID); err != nil {
		return err
	}
	return ErrNotRunning
}

// Report renders the run's validation result as HTML.
func (s *Service) Report(ctx context.Context, runID string) ([]byte, error) {
	run, err := s.Repo.GetByID(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run.Validation == nil {
		return nil, ErrNoReport
	}
	return validation.HTML(*run.Validation)
}

// Artifact opens the persisted output deck.
func (s *Service) Artifact(ctx context.Context, runID string) (io.ReadCloser, string, error) {
	run, err := s.Repo.GetByID(ctx, runID)
	if err != nil {
		return nil, "", err
	}
	if run.ArtifactKey == "" || s.Store == nil {
		return nil, "", ErrNoArtifact
	}
	rc, err := s.Store.Open(ctx, run.ArtifactKey)
	if err != nil {
		return nil, "", err
	}
	return rc, s.codec().ContentType(), nil
}

// Close cancels every in-flight run and waits for them to record their final
// state, or for ctx to end.
func (s *Service) Close(ctx context.Context) error {
	s.init()
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.stop()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) autonomy(raw string) (checkpoint.AutonomyLevel, error) {
	if raw == "" {
		if s.DefaultAutonomy != "" {
			return s.DefaultAutonomy, nil
		}
		return checkpoint.SemiSupervised, nil
	}
	level, err := checkpoint.ParseAutonomyLevel(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return level, nil
}

func (s *Service) wantRefine(requested *bool) (bool, error) {
	available := s.Refiner != nil && s.Caps.Has(capability.Evaluator)
	if requested == nil {
		return available, nil
	}
	if !*requested {
		return false, nil
	}
	if s.Refiner == nil {
		return false, fmt.Errorf("refine: %w", capability.ErrUnavailable)
	}
	if err := s.Caps.Require(capability.Evaluator); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Service) codec() slides.Codec {
	if s.Codec != nil {
		return s.Codec
	}
	return slides.JSONCodec{}
}

func (s *Service) putDeck(ctx context.Context, key string, deck slides.Deck) error {
	codec := s.codec()
	data, err := codec.Encode(deck)
	if err != nil {
		return err
	}
	_, err = s.Store.Put(ctx, key, codec.ContentType(), bytes.NewReader(data))
	return err
}

func (s *Service) reviewer(level checkpoint.AutonomyLevel) checkpoint.Reviewer {
	if s.Checkpoints == nil {
		return checkpoint.AutoApprove{}
	}
	return checkpoint.NewGate(s.Checkpoints, level)
}

func (s *Service) execute(ctx context.Context, run Run, deck slides.Deck, level checkpoint.AutonomyLevel) {
	startedAt := time.Now()
	defer func() {
		s.mu.Lock()
		if cancel, ok := s.cancels[run.ID]; ok {
			cancel()
			delete(s.cancels, run.ID)
		}
		s.mu.Unlock()
		s.wg.Done()
	}()
	defer func() {
		if r := recover(); r != nil {
			s.fail(&run, fmt.Errorf("panic: %v", r), startedAt)
		}
	}()

	metrics.IncRunStarted()
	s.transition(&run, StatusRunning, "")
	reviewer := s.reviewer(level)

	ok, err := s.gate(ctx, &run, reviewer, level, checkpoint.PhaseDesignSpecApproval, map[string]any{
		"runId":      run.ID,
		"slideCount": run.SlideCount,
		"inputKey":   run.InputKey,
	})
	if err != nil {
		s.abort(&run, err, startedAt)
		return
	}
	if !ok {
		s.reject(&run, reasonDesignSpecRejected)
		return
	}

	ok, err = s.gate(ctx, &run, reviewer, level, checkpoint.PhasePreRender, map[string]any{
		"runId":      run.ID,
		"slideCount": run.SlideCount,
		"refine":     run.Refine,
	})
	if err != nil {
		s.abort(&run, err, startedAt)
		return
	}
	if !ok {
		s.reject(&run, reasonPreRenderRejected)
		return
	}

	if run.Refine {
		s.transition(&run, StatusRunning, "refine")
		refined, report, err := s.Refiner.Refine(ctx, deck)
		run.Refinement = &report
		if err != nil {
			s.abort(&run, err, startedAt)
			return
		}
		deck = refined
	}

	s.transition(&run, StatusRunning, "save")
	key := artifactKey(run.ID)
	putCtx, cancel := context.WithTimeout(ctx, persistTimeout)
	err = s.putDeck(putCtx, key, deck)
	cancel()
	if err != nil {
		s.abort(&run, fmt.Errorf("store artifact: %w", err), startedAt)
		return
	}
	run.ArtifactKey = key

	if run.Validate {
		s.transition(&run, StatusRunning, "validate")
		res, err := s.Validator.Validate(ctx, deck)
		if err != nil {
			s.abort(&run, fmt.Errorf("validate: %w", err), startedAt)
			return
		}
		score := res.OverallScore
		run.Validation = &res
		run.Score = &score
		run.Summary = res.Summary
	}

	deliverable := map[string]any{
		"runId":       run.ID,
		"artifactKey": run.ArtifactKey,
		"slideCount":  run.SlideCount,
	}
	if run.Score != nil {
		deliverable["score"] = *run.Score
	}
	ok, err = s.gate(ctx, &run, reviewer, level, checkpoint.PhaseDeliverable, deliverable)
	if err != nil {
		s.abort(&run, err, startedAt)
		return
	}
	// The artifact is already saved; the final review is advisory.
	run.DeliverableApproved = &ok

	completedAt := time.Now().UTC()
	run.CompletedAt = &completedAt
	run.Phase = ""
	s.transition(&run, StatusCompleted, "")
	metrics.IncRunCompleted()
	metrics.ObserveRunDurationMs(float64(time.Since(startedAt).Milliseconds()))
}

// gate marks the run as awaiting review when the policy pauses at phase, then
// blocks on the reviewer.
func (s *Service) gate(ctx context.Context, run *Run, reviewer checkpoint.Reviewer, level checkpoint.AutonomyLevel, phase string, deliverable any) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if s.Checkpoints != nil && checkpoint.ShouldCheckpoint(level, phase) {
		s.transition(run, StatusAwaitingReview, phase)
	} else {
		run.Phase = phase
	}
	ok, err := reviewer.OnCheckpoint(ctx, WorkerName, phase, deliverable)
	if err != nil {
		return false, err
	}
	if run.Status == StatusAwaitingReview {
		s.transition(run, StatusRunning, phase)
	}
	return ok, nil
}

func (s *Service) reject(run *Run, reason string) {
	run.RejectionReason = reason
	completedAt := time.Now().UTC()
	run.CompletedAt = &completedAt
	s.transition(run, StatusRejected, run.Phase)
}

// abort records a cancelled run as canceled and anything else as failed.
func (s *Service) abort(run *Run, err error, startedAt time.Time) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		run.ErrorMessage = err.Error()
		completedAt := time.Now().UTC()
		run.CompletedAt = &completedAt
		s.transition(run, StatusCanceled, run.Phase)
		return
	}
	s.fail(run, err, startedAt)
}

func (s *Service) fail(run *Run, err error, startedAt time.Time) {
	run.ErrorMessage = err.Error()
	completedAt := time.Now().UTC()
	run.CompletedAt = &completedAt
	s.transition(run, StatusFailed, run.Phase)
	metrics.IncRunFailed()
	metrics.ObserveRunDurationMs(float64(time.Since(startedAt).Milliseconds()))
}

// transition persists the new status. Writes use their own deadline so a
// cancelled run can still record how it ended.
func (s *Service) transition(run *Run, status, phase string) {
	from := run.Status
	run.Status = status
	run.Phase = phase
	run.UpdatedAt = time.Now().UTC()
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	fields := map[string]any{
		"request_id":        run.RequestID,
		"run_id":            run.ID,
		"status":            status,
		"status_transition": from + "->" + status,
	}
	if phase != "" {
		fields["phase"] = phase
	}
	if run.RejectionReason != "" {
		fields["rejection_reason"] = run.RejectionReason
	}
	if err := s.Repo.Update(ctx, *run); err != nil {
		fields["error"] = err.Error()
		telemetry.Error("run.persist_failed", fields)
		return
	}
	if status == StatusFailed {
		fields["error"] = run.ErrorMessage
		telemetry.Error("run.status", fields)
		return
	}
	telemetry.Info("run.status", fields)
}
