package checkpoint

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// PGJournal persists checkpoints to Postgres.
type PGJournal struct {
	DB *sql.DB
}

// Save upserts cp. A resolved row is never overwritten by a pending one, so
// out-of-order writes from concurrent callers converge on the final state.
func (j *PGJournal) Save(ctx context.Context, cp Checkpoint) error {
	const query = `
INSERT INTO checkpoints (
	id, worker_name, phase, deliverable, status, rejection_reason, created_at, resolved_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (id) DO UPDATE SET
	status = EXCLUDED.status,
	rejection_reason = EXCLUDED.rejection_reason,
	resolved_at = EXCLUDED.resolved_at
WHERE checkpoints.status = 'pending'`
	deliverable, err := marshalJSONB(cp.Deliverable)
	if err != nil {
		return err
	}
	var resolvedAt any
	if cp.ResolvedAt != nil {
		resolvedAt = *cp.ResolvedAt
	}
	_, err = j.DB.ExecContext(ctx, query,
		cp.ID,
		cp.WorkerName,
		cp.Phase,
		deliverable,
		string(cp.Status),
		cp.RejectionReason,
		cp.CreatedAt,
		resolvedAt,
	)
	return err
}

// Get returns a journaled checkpoint by id.
func (j *PGJournal) Get(ctx context.Context, id string) (Checkpoint, error) {
	const query = `
SELECT id, worker_name, phase, deliverable, status, rejection_reason, created_at, resolved_at
FROM checkpoints
WHERE id = $1
LIMIT 1`
	var cp Checkpoint
	var deliverable sql.NullString
	var status string
	var reason sql.NullString
	var resolvedAt sql.NullTime
	err := j.DB.QueryRowContext(ctx, query, id).Scan(
		&cp.ID,
		&cp.WorkerName,
		&cp.Phase,
		&deliverable,
		&status,
		&reason,
		&cp.CreatedAt,
		&resolvedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Checkpoint{}, ErrNotFound
		}
		return Checkpoint{}, err
	}
	cp.Status = Status(status)
	if deliverable.Valid {
		var v any
		if err := json.Unmarshal([]byte(deliverable.String), &v); err == nil {
			cp.Deliverable = v
		}
	}
	if reason.Valid {
		cp.RejectionReason = reason.String
	}
	if resolvedAt.Valid {
		t := resolvedAt.Time
		cp.ResolvedAt = &t
	}
	return cp, nil
}

func marshalJSONB(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal deliverable: %w", err)
	}
	return string(data), nil
}

var _ Journal = (*PGJournal)(nil)
