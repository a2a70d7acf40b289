package checkpoint

import (
	"errors"
	"time"
)

var (
	ErrNotFound        = errors.New("checkpoint not found")
	ErrAlreadyResolved = errors.New("checkpoint already resolved")
)

// Status is the lifecycle state of a checkpoint.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Checkpoint is a pause point awaiting human approval. Status moves from
// pending to approved or rejected exactly once; ResolvedAt is set iff the
// status is not pending.
type Checkpoint struct {
	ID              string     `json:"id"`
	WorkerName      string     `json:"workerName"`
	Phase           string     `json:"phase"`
	Deliverable     any        `json:"deliverable,omitempty"`
	Status          Status     `json:"status"`
	RejectionReason string     `json:"rejectionReason,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	ResolvedAt      *time.Time `json:"resolvedAt,omitempty"`
}
