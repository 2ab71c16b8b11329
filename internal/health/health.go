package health

import "github.com/nholik/sail-sentinel/internal/sail"

// Status is the aggregate state of the whole stack.
type Status string

const (
	StatusWorking Status = "working"
	StatusWarning Status = "warning"
	StatusStopped Status = "stopped"
)

// Classify derives the aggregate status of a snapshot. It is the only
// implementation of this rule; every view uses it.
//
//   - working: at least one service and all of them running
//   - stopped: no service running (including an empty snapshot)
//   - warning: anything else
func Classify(snapshot sail.Snapshot) Status {
	running := snapshot.Running()
	switch {
	case running == 0:
		return StatusStopped
	case running == len(snapshot):
		return StatusWorking
	default:
		return StatusWarning
	}
}

// Summary counts services per run state alongside the aggregate status.
type Summary struct {
	Status  Status `json:"status"`
	Total   int    `json:"total"`
	Running int    `json:"running"`
	Paused  int    `json:"paused"`
	Exited  int    `json:"exited"`
}

// Summarize builds a Summary for snapshot.
func Summarize(snapshot sail.Snapshot) Summary {
	summary := Summary{Status: Classify(snapshot), Total: len(snapshot)}
	for _, record := range snapshot {
		switch record.RunState {
		case sail.RunStateRunning:
			summary.Running++
		case sail.RunStatePaused:
			summary.Paused++
		case sail.RunStateExited:
			summary.Exited++
		}
	}
	return summary
}
