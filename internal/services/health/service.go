package health

import (
	"context"
	"time"

	"deck-backend/internal/capability"
)

const pingTimeout = 2 * time.Second

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Service encapsulates health-related checks.
type Service struct {
	caps capability.Set
	db   Pinger
}

// NewService constructs a new health service. db may be nil when the process
// runs on in-memory repositories.
func NewService(caps capability.Set, db Pinger) *Service {
	return &Service{caps: caps, db: db}
}

// Report is the health payload.
type Report struct {
	OK           bool                `json:"ok"`
	Database     string              `json:"database,omitempty"`
	Capabilities []capability.Status `json:"capabilities"`
}

// Status reports capabilities detected at startup and whether the database
// still answers.
func (s *Service) Status(ctx context.Context) Report {
	report := Report{OK: true, Capabilities: s.caps.List()}
	if s.db == nil {
		return report
	}
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := s.db.PingContext(pingCtx); err != nil {
		report.OK = false
		report.Database = "down"
		return report
	}
	report.Database = "up"
	return report
}
