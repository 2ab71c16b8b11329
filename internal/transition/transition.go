package transition

import (
	"sort"

	"github.com/nholik/sail-sentinel/internal/sail"
)

// ServiceTransition captures a run state change of one service between two
// polls. An empty Previous means the service is new; an empty Current means
// it disappeared from the listing.
type ServiceTransition struct {
	Name     string        `json:"name"`
	Previous sail.RunState `json:"previous"`
	Current  sail.RunState `json:"current"`
	Image    string        `json:"image,omitempty"`
}

// Removed reports whether the service is no longer listed.
func (t ServiceTransition) Removed() bool {
	return t.Current == ""
}

// DetectServiceTransitions compares the run states persisted from the previous
// poll with the current snapshot. On the first run (no previous states) only
// services that are not running are reported.
func DetectServiceTransitions(prev map[string]sail.RunState, current sail.Snapshot) []ServiceTransition {
	firstRun := len(prev) == 0

	transitions := make([]ServiceTransition, 0)
	seen := make(map[string]struct{}, len(current))
	for _, record := range current {
		seen[record.Name] = struct{}{}
		prevState, hadPrev := prev[record.Name]

		switch {
		case firstRun, !hadPrev:
			if record.RunState == sail.RunStateRunning {
				continue
			}
		case prevState == record.RunState:
			continue
		}

		transitions = append(transitions, ServiceTransition{
			Name:     record.Name,
			Previous: prevState,
			Current:  record.RunState,
			Image:    record.Image,
		})
	}

	for name, prevState := range prev {
		if _, ok := seen[name]; ok {
			continue
		}
		transitions = append(transitions, ServiceTransition{
			Name:     name,
			Previous: prevState,
		})
	}

	// Sort by service name for deterministic output
	sort.Slice(transitions, func(i, j int) bool {
		return transitions[i].Name < transitions[j].Name
	})

	return transitions
}
