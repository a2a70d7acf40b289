package checkpoint

import (
	"context"

	"deck-backend/internal/shared/telemetry"
)

// Reviewer is the boundary a pipeline calls at each named phase. It returns
// true to continue and false if the phase was rejected.
type Reviewer interface {
	OnCheckpoint(ctx context.Context, workerName, phase string, deliverable any) (bool, error)
}

// Gate pauses at phases selected by the autonomy policy and waits for a
// human decision recorded in the store.
type Gate struct {
	store *Store
	level AutonomyLevel
}

// NewGate constructs a Gate for one pipeline run.
func NewGate(store *Store, level AutonomyLevel) *Gate {
	return &Gate{store: store, level: level}
}

// Level returns the autonomy level fixed for this gate.
func (g *Gate) Level() AutonomyLevel { return g.level }

// OnCheckpoint returns true immediately when the policy does not pause at
// phase. Otherwise it submits a pending checkpoint and blocks until it is
// approved (true), rejected (false), or ctx ends (ctx.Err()).
func (g *Gate) OnCheckpoint(ctx context.Context, workerName, phase string, deliverable any) (bool, error) {
	if !ShouldCheckpoint(g.level, phase) {
		return true, nil
	}
	cp := g.store.Create(deliverable, workerName, phase)
	resolved, err := g.store.Wait(ctx, cp.ID)
	if err != nil {
		telemetry.Warn("checkpoint.wait_aborted", map[string]any{
			"checkpoint_id": cp.ID,
			"phase":         phase,
			"error":         err.Error(),
		})
		return false, err
	}
	return resolved.Status == StatusApproved, nil
}

// Approve resolves id as approved, releasing its waiter.
func (g *Gate) Approve(id string) (Checkpoint, error) { return g.store.Approve(id) }

// Reject resolves id as rejected, releasing its waiter.
func (g *Gate) Reject(id, reason string) (Checkpoint, error) { return g.store.Reject(id, reason) }

// AutoApprove approves every checkpoint without recording it.
type AutoApprove struct{}

// OnCheckpoint always returns true.
func (AutoApprove) OnCheckpoint(ctx context.Context, workerName, phase string, deliverable any) (bool, error) {
	return true, nil
}

var (
	_ Reviewer = (*Gate)(nil)
	_ Reviewer = AutoApprove{}
)
