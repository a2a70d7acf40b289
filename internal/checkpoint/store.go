package checkpoint

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"deck-backend/internal/shared/metrics"
	"deck-backend/internal/shared/telemetry"
)

const journalTimeout = 5 * time.Second

// Journal persists checkpoint state for audit. Writes are best effort.
type Journal interface {
	Save(ctx context.Context, cp Checkpoint) error
	Get(ctx context.Context, id string) (Checkpoint, error)
}

type entry struct {
	cp   Checkpoint
	done chan struct{}
}

// Store holds checkpoints by id. All access is serialized by one mutex.
type Store struct {
	mu      sync.Mutex
	entries map[string]*entry
	journal Journal
	now     func() time.Time
}

// NewStore constructs a Store. journal may be nil.
func NewStore(journal Journal) *Store {
	return &Store{
		entries: make(map[string]*entry),
		journal: journal,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Submit records a pending checkpoint under id. Reusing an id is a
// programming error and panics.
func (s *Store) Submit(id string, deliverable any, workerName, phase string) Checkpoint {
	s.mu.Lock()
	if _, exists := s.entries[id]; exists {
		s.mu.Unlock()
		panic(fmt.Sprintf("checkpoint: id %q already submitted", id))
	}
	cp := Checkpoint{
		ID:          id,
		WorkerName:  workerName,
		Phase:       phase,
		Deliverable: deliverable,
		Status:      StatusPending,
		CreatedAt:   s.now(),
	}
	s.entries[id] = &entry{cp: cp, done: make(chan struct{})}
	s.mu.Unlock()

	metrics.IncCheckpointSubmitted()
	telemetry.Info("checkpoint.submitted", map[string]any{
		"checkpoint_id": id,
		"worker":        workerName,
		"phase":         phase,
	})
	s.record(cp)
	return cp
}

// Create submits a pending checkpoint under a generated id.
func (s *Store) Create(deliverable any, workerName, phase string) Checkpoint {
	return s.Submit(uuid.NewString(), deliverable, workerName, phase)
}

// Approve resolves a pending checkpoint as approved. An unknown id panics.
func (s *Store) Approve(id string) (Checkpoint, error) {
	cp, err := s.resolve(id, StatusApproved, "")
	if err == nil {
		metrics.IncCheckpointApproved()
	}
	return cp, err
}

// Reject resolves a pending checkpoint as rejected. An unknown id panics.
func (s *Store) Reject(id, reason string) (Checkpoint, error) {
	cp, err := s.resolve(id, StatusRejected, reason)
	if err == nil {
		metrics.IncCheckpointRejected()
	}
	return cp, err
}

func (s *Store) resolve(id string, status Status, reason string) (Checkpoint, error) {
	s.mu.Lock()
	e, ok := s.entries[id]
	if !ok {
		s.mu.Unlock()
		panic(fmt.Sprintf("checkpoint: unknown id %q", id))
	}
	if e.cp.Status != StatusPending {
		cp := e.cp
		s.mu.Unlock()
		return cp, fmt.Errorf("%s: %w", id, ErrAlreadyResolved)
	}
	now := s.now()
	e.cp.Status = status
	e.cp.RejectionReason = reason
	e.cp.ResolvedAt = &now
	close(e.done)
	cp := e.cp
	s.mu.Unlock()

	telemetry.Info("checkpoint.resolved", map[string]any{
		"checkpoint_id": id,
		"status":        string(status),
		"worker":        cp.WorkerName,
		"phase":         cp.Phase,
	})
	s.record(cp)
	return cp, nil
}

// IsPending reports whether id exists and is pending.
func (s *Store) IsPending(id string) bool { return s.hasStatus(id, StatusPending) }

// IsApproved reports whether id exists and was approved.
func (s *Store) IsApproved(id string) bool { return s.hasStatus(id, StatusApproved) }

// IsRejected reports whether id exists and was rejected.
func (s *Store) IsRejected(id string) bool { return s.hasStatus(id, StatusRejected) }

func (s *Store) hasStatus(id string, status Status) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	return ok && e.cp.Status == status
}

// Get returns a snapshot of the checkpoint, or false if id is unknown.
func (s *Store) Get(id string) (Checkpoint, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return Checkpoint{}, false
	}
	return e.cp, true
}

// ListPending returns every pending checkpoint in no particular order.
func (s *Store) ListPending() []Checkpoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Checkpoint, 0, len(s.entries))
	for _, e := range s.entries {
		if e.cp.Status == StatusPending {
			out = append(out, e.cp)
		}
	}
	return out
}

// Clear drops every checkpoint and returns how many were pending. Callers
// still waiting get ErrNotFound. Journaled rows are kept.
func (s *Store) Clear() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	dropped := 0
	for id, e := range s.entries {
		if e.cp.Status == StatusPending {
			close(e.done)
			dropped++
		}
		delete(s.entries, id)
	}
	return dropped
}

// Wait blocks until id is resolved or ctx ends. A cancelled wait leaves the
// checkpoint pending.
func (s *Store) Wait(ctx context.Context, id string) (Checkpoint, error) {
	s.mu.Lock()
	e, ok := s.entries[id]
	s.mu.Unlock()
	if !ok {
		return Checkpoint{}, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	select {
	case <-e.done:
	case <-ctx.Done():
		return Checkpoint{}, ctx.Err()
	}
	cp, ok := s.Get(id)
	if !ok {
		return Checkpoint{}, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return cp, nil
}

// Journal returns the configured journal, or nil.
func (s *Store) Journal() Journal { return s.journal }

func (s *Store) record(cp Checkpoint) {
	if s.journal == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), journalTimeout)
	defer cancel()
	if err := s.journal.Save(ctx, cp); err != nil {
		telemetry.Error("checkpoint.journal_failed", map[string]any{
			"checkpoint_id": cp.ID,
			"status":        string(cp.Status),
			"error":         err.Error(),
		})
	}
}
