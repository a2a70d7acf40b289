package runs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"deck-backend/internal/refinement"
	"deck-backend/internal/validation"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const runColumns = `id, status, autonomy, validate, refine, slide_count, phase, input_key, artifact_key,
	score, summary, refinement, validation, deliverable_approved, rejection_reason, error_message,
	created_at, updated_at, completed_at`

// Create inserts a new run.
func (r *PGRepo) Create(ctx context.Context, run Run) error {
	const query = `
INSERT INTO runs (` + runColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`
	args, err := runArgs(run)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx, query, args...)
	return err
}

// Update replaces the mutable columns of an existing run.
func (r *PGRepo) Update(ctx context.Context, run Run) error {
	const query = `
UPDATE runs
SET status = $2,
	autonomy = $3,
	validate = $4,
	refine = $5,
	slide_count = $6,
	phase = $7,
	input_key = $8,
	artifact_key = $9,
	score = $10,
	summary = $11,
	refinement = $12,
	validation = $13,
	deliverable_approved = $14,
	rejection_reason = $15,
	error_message = $16,
	created_at = $17,
	updated_at = $18,
	completed_at = $19
WHERE id = $1`
	args, err := runArgs(run)
	if err != nil {
		return err
	}
	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetByID returns a run by its ID.
func (r *PGRepo) GetByID(ctx context.Context, runID string) (Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE id = $1 LIMIT 1`
	run, err := scanRun(r.DB.QueryRowContext(ctx, query, runID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, ErrNotFound
		}
		return Run{}, err
	}
	return run, nil
}

// List returns the newest runs first.
func (r *PGRepo) List(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY created_at DESC LIMIT $1`
	rows, err := r.DB.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var run Run
	var phase, inputKey, artifactKey, summary, reason, errMsg sql.NullString
	var score sql.NullFloat64
	var refinementRaw, validationRaw sql.NullString
	var approved sql.NullBool
	var completedAt sql.NullTime
	err := row.Scan(
		&run.ID,
		&run.Status,
		&run.Autonomy,
		&run.Validate,
		&run.Refine,
		&run.SlideCount,
		&phase,
		&inputKey,
		&artifactKey,
		&score,
		&summary,
		&refinementRaw,
		&validationRaw,
		&approved,
		&reason,
		&errMsg,
		&run.CreatedAt,
		&run.UpdatedAt,
		&completedAt,
	)
	if err != nil {
		return Run{}, err
	}
	run.Phase = phase.String
	run.InputKey = inputKey.String
	run.ArtifactKey = artifactKey.String
	run.Summary = summary.String
	run.RejectionReason = reason.String
	run.ErrorMessage = errMsg.String
	if score.Valid {
		v := score.Float64
		run.Score = &v
	}
	if approved.Valid {
		v := approved.Bool
		run.DeliverableApproved = &v
	}
	if completedAt.Valid {
		t := completedAt.Time
		run.CompletedAt = &t
	}
	if refinementRaw.Valid {
		var rep refinement.Report
		if err := json.Unmarshal([]byte(refinementRaw.String), &rep); err != nil {
			return Run{}, fmt.Errorf("decode refinement: %w", err)
		}
		run.Refinement = &rep
	}
	if validationRaw.Valid {
		var res validation.Result
		if err := json.Unmarshal([]byte(validationRaw.String), &res); err != nil {
			return Run{}, fmt.Errorf("decode validation: %w", err)
		}
		run.Validation = &res
	}
	return run, nil
}

func runArgs(run Run) ([]any, error) {
	var refinementPayload, validationPayload any
	var err error
	if run.Refinement != nil {
		if refinementPayload, err = marshalJSONB(run.Refinement); err != nil {
			return nil, err
		}
	}
	if run.Validation != nil {
		if validationPayload, err = marshalJSONB(run.Validation); err != nil {
			return nil, err
		}
	}
	var score, approved, completedAt any
	if run.Score != nil {
		score = *run.Score
	}
	if run.DeliverableApproved != nil {
		approved = *run.DeliverableApproved
	}
	if run.CompletedAt != nil {
		completedAt = *run.CompletedAt
	}
	return []any{
		run.ID,
		run.Status,
		run.Autonomy,
		run.Validate,
		run.Refine,
		run.SlideCount,
		nullString(run.Phase),
		nullString(run.InputKey),
		nullString(run.ArtifactKey),
		score,
		nullString(run.Summary),
		refinementPayload,
		validationPayload,
		approved,
		nullString(run.RejectionReason),
		nullString(run.ErrorMessage),
		run.CreatedAt,
		run.UpdatedAt,
		completedAt,
	}, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func marshalJSONB(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal jsonb: %w", err)
	}
	return string(data), nil
}

var _ Repo = (*PGRepo)(nil)
