package runs

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"deck-backend/internal/refinement"
)

func TestPGRepoCreate(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	now := time.Now().UTC()
	run := Run{
		ID:         "run-1",
		Status:     StatusQueued,
		Autonomy:   "manual",
		Refine:     true,
		SlideCount: 3,
		InputKey:   "runs/run-1/input.json",
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	mock.ExpectExec("INSERT INTO runs").
		WithArgs(
			"run-1", StatusQueued, "manual", false, true, 3,
			nil, "runs/run-1/input.json", nil,
			nil, nil, nil, nil, nil, nil, nil,
			now, now, nil,
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.Create(context.Background(), run); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoUpdateMissingRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	mock.ExpectExec("UPDATE runs").WillReturnResult(sqlmock.NewResult(0, 0))

	err = repo.Update(context.Background(), Run{ID: "missing", Status: StatusRunning})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPGRepoGetByIDDecodesJSONB(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	created := time.Now().UTC().Add(-time.Minute)
	completed := time.Now().UTC()
	cols := []string{
		"id", "status", "autonomy", "validate", "refine", "slide_count", "phase", "input_key", "artifact_key",
		"score", "summary", "refinement", "validation", "deliverable_approved", "rejection_reason", "error_message",
		"created_at", "updated_at", "completed_at",
	}
	rows := sqlmock.NewRows(cols).AddRow(
		"run-1", StatusCompleted, "autonomous", true, true, 2, nil, "runs/run-1/input.json", "runs/run-1/deck.json",
		7.5, "ok", `{"iterations":2,"evaluatorCalls":4,"fixesApplied":3,"converged":false,"stopReason":"max_iterations"}`,
		`{"overallScore":7.5,"slideScores":[7,8],"issues":[],"strengths":["contrast"],"summary":"ok"}`,
		true, nil, nil,
		created, completed, completed,
	)
	mock.ExpectQuery("SELECT (.+) FROM runs WHERE id = \\$1").
		WithArgs("run-1").
		WillReturnRows(rows)

	run, err := repo.GetByID(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if run.Score == nil || *run.Score != 7.5 {
		t.Fatalf("unexpected score %v", run.Score)
	}
	if run.Refinement == nil || run.Refinement.StopReason != refinement.StopMaxIterations || run.Refinement.FixesApplied != 3 {
		t.Fatalf("unexpected refinement %+v", run.Refinement)
	}
	if run.Validation == nil || len(run.Validation.SlideScores) != 2 {
		t.Fatalf("unexpected validation %+v", run.Validation)
	}
	if run.DeliverableApproved == nil || !*run.DeliverableApproved {
		t.Fatalf("expected deliverable approved")
	}
	if run.CompletedAt == nil || run.Phase != "" {
		t.Fatalf("unexpected completion fields: %+v", run)
	}
}

func TestPGRepoGetByIDNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	mock.ExpectQuery("SELECT (.+) FROM runs").WithArgs("nope").WillReturnError(sql.ErrNoRows)

	if _, err := repo.GetByID(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
