package runs

import (
	"errors"
	"time"

	"deck-backend/internal/refinement"
	"deck-backend/internal/validation"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
)

const (
	StatusQueued         = "queued"
	StatusRunning        = "running"
	StatusAwaitingReview = "awaiting_review"
	StatusCompleted      = "completed"
	StatusRejected       = "rejected"
	StatusFailed         = "failed"
	StatusCanceled       = "canceled"
)

// WorkerName identifies the pipeline in checkpoint records.
const WorkerName = "design_pipeline"

const (
	reasonDesignSpecRejected = "Design spec rejected at checkpoint"
	reasonPreRenderRejected  = "Pre-render rejected at checkpoint"
)

// Run is one pass of a deck through the design pipeline.
type Run struct {
	ID                  string             `json:"id"`
	Status              string             `json:"status"`
	Autonomy            string             `json:"autonomy"`
	Validate            bool               `json:"validate"`
	Refine              bool               `json:"refine"`
	SlideCount          int                `json:"slideCount"`
	Phase               string             `json:"phase,omitempty"`
	InputKey            string             `json:"inputKey,omitempty"`
	ArtifactKey         string             `json:"artifactKey,omitempty"`
	Score               *float64           `json:"score,omitempty"`
	Summary             string             `json:"summary,omitempty"`
	Refinement          *refinement.Report `json:"refinement,omitempty"`
	Validation          *validation.Result `json:"validation,omitempty"`
	DeliverableApproved *bool              `json:"deliverableApproved,omitempty"`
	RejectionReason     string             `json:"rejectionReason,omitempty"`
	ErrorMessage        string             `json:"errorMessage,omitempty"`
	RequestID           string             `json:"-"`
	CreatedAt           time.Time          `json:"createdAt"`
	UpdatedAt           time.Time          `json:"updatedAt"`
	CompletedAt         *time.Time         `json:"completedAt,omitempty"`
}

// Terminal reports whether the run will not change again.
func (r Run) Terminal() bool {
	switch r.Status {
	case StatusCompleted, StatusRejected, StatusFailed, StatusCanceled:
		return true
	}
	return false
}

func inputKey(runID string) string    { return "runs/" + runID + "/input.json" }
func artifactKey(runID string) string { return "runs/" + runID + "/deck.json" }
