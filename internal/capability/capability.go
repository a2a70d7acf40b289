package capability

import (
	"errors"
	"fmt"
	"sort"
)

// ErrUnavailable marks an operation whose backend was not detected at startup.
var ErrUnavailable = errors.New("capability unavailable")

// Capability names an optional backend.
type Capability string

const (
	VectorText  Capability = "vector_text"
	Evaluator   Capability = "evaluator"
	Database    Capability = "database"
	ObjectStore Capability = "object_store"
)

// Probe reports whether a backend is usable and, if not, why.
type Probe func() (ok bool, reason string)

// Status is one probed capability.
type Status struct {
	Name      Capability `json:"name"`
	Available bool       `json:"available"`
	Reason    string     `json:"reason,omitempty"`
}

// Set is the immutable result of running probes once at startup.
type Set struct {
	statuses map[Capability]Status
}

// Detect runs every probe exactly once.
func Detect(probes map[Capability]Probe) Set {
	out := Set{statuses: make(map[Capability]Status, len(probes))}
	for name, probe := range probes {
		st := Status{Name: name}
		if probe != nil {
			st.Available, st.Reason = probe()
		} else {
			st.Reason = "no probe registered"
		}
		if st.Available {
			st.Reason = ""
		}
		out.statuses[name] = st
	}
	return out
}

// Static builds a Set from fixed availability, mostly for tests and CLIs.
func Static(available ...Capability) Set {
	out := Set{statuses: make(map[Capability]Status, len(available))}
	for _, c := range available {
		out.statuses[c] = Status{Name: c, Available: true}
	}
	return out
}

// Has reports whether c was detected.
func (s Set) Has(c Capability) bool {
	return s.statuses[c].Available
}

// Require returns nil when c is available, or an ErrUnavailable-wrapped
// error naming the reason.
func (s Set) Require(c Capability) error {
	st, ok := s.statuses[c]
	if ok && st.Available {
		return nil
	}
	reason := st.Reason
	if !ok {
		reason = "not probed"
	}
	return fmt.Errorf("%s: %w: %s", c, ErrUnavailable, reason)
}

// List returns all statuses sorted by name.
func (s Set) List() []Status {
	out := make([]Status, 0, len(s.statuses))
	for _, st := range s.statuses {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
