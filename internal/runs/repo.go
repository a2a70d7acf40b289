package runs

import "context"

// Repo defines persistence operations for runs.
type Repo interface {
	Create(ctx context.Context, run Run) error
	GetByID(ctx context.Context, runID string) (Run, error)
	Update(ctx context.Context, run Run) error
	List(ctx context.Context, limit int) ([]Run, error)
}
