package checkpoint

import (
	"fmt"
	"strings"
)

// AutonomyLevel controls how often a pipeline pauses for review.
type AutonomyLevel string

const (
	Manual         AutonomyLevel = "manual"
	SemiSupervised AutonomyLevel = "semi_supervised"
	Autonomous     AutonomyLevel = "autonomous"
)

// Phase names used by the design pipeline.
const (
	PhaseTransition         = "phase_transition"
	PhaseDeliverable        = "deliverable"
	PhaseDesignSpecApproval = "design_spec_approval"
	PhasePreRender          = "pre_render"
)

var semiSupervisedPhases = map[string]struct{}{
	PhaseTransition:         {},
	PhaseDeliverable:        {},
	PhaseDesignSpecApproval: {},
	PhasePreRender:          {},
}

// ShouldCheckpoint reports whether a pipeline at level must pause at phase.
// Unrecognized levels behave like semi_supervised.
func ShouldCheckpoint(level AutonomyLevel, phase string) bool {
	switch level {
	case Manual:
		return true
	case Autonomous:
		return false
	default:
		_, ok := semiSupervisedPhases[phase]
		return ok
	}
}

// ParseAutonomyLevel parses a configured level name.
func ParseAutonomyLevel(raw string) (AutonomyLevel, error) {
	switch AutonomyLevel(strings.ToLower(strings.TrimSpace(raw))) {
	case Manual:
		return Manual, nil
	case SemiSupervised:
		return SemiSupervised, nil
	case Autonomous:
		return Autonomous, nil
	default:
		return "", fmt.Errorf("unknown autonomy level %q", raw)
	}
}
