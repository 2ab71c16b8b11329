// Package sail models the services reported by the Sail CLI and wraps its
// command vocabulary.
package sail

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/docker/go-connections/nat"
)

// RunState is the coarse run state derived from the CLI's free-text status.
type RunState string

const (
	RunStateRunning RunState = "running"
	RunStatePaused  RunState = "paused"
	RunStateExited  RunState = "exited"
)

// ClassifyRunState maps a status string such as "Up 2 hours" or
// "Exited (0) 3 seconds ago" to a RunState. Matching is case-sensitive and
// anything unrecognized counts as running.
func ClassifyRunState(status string) RunState {
	switch {
	case strings.Contains(status, "Paused"):
		return RunStatePaused
	case strings.Contains(status, "Exited"):
		return RunStateExited
	default:
		return RunStateRunning
	}
}

// PortBinding is one published port of a service.
type PortBinding struct {
	URL           string `json:"url"`
	TargetPort    int    `json:"target_port"`
	PublishedPort int    `json:"published_port"`
	Protocol      string `json:"protocol"`
}

// String renders the binding as "url:published -> target/proto".
func (p PortBinding) String() string {
	target := strconv.Itoa(p.TargetPort) + "/" + p.Protocol
	if port, err := nat.NewPort(p.protocol(), strconv.Itoa(p.TargetPort)); err == nil {
		target = string(port)
	}
	return fmt.Sprintf("%s:%d -> %s", p.URL, p.PublishedPort, target)
}

func (p PortBinding) protocol() string {
	if p.Protocol == "" {
		return "tcp"
	}
	return p.Protocol
}

// ServiceRecord is one service in a snapshot.
type ServiceRecord struct {
	Name     string        `json:"name"`
	State    string        `json:"state"`
	Status   string        `json:"status"`
	RunState RunState      `json:"run_state"`
	Image    string        `json:"image"`
	Ports    []PortBinding `json:"ports"`
}

// Snapshot is the ordered list of services seen by one poll. Snapshots are
// replaced wholesale and never mutated in place.
type Snapshot []ServiceRecord

// Clone returns a deep copy of s. A nil snapshot clones to an empty one.
func (s Snapshot) Clone() Snapshot {
	out := make(Snapshot, len(s))
	for i, record := range s {
		out[i] = record
		if record.Ports != nil {
			out[i].Ports = append([]PortBinding(nil), record.Ports...)
		}
	}
	return out
}

// RunStates indexes the snapshot by service name.
func (s Snapshot) RunStates() map[string]RunState {
	states := make(map[string]RunState, len(s))
	for _, record := range s {
		states[record.Name] = record.RunState
	}
	return states
}

// Running counts the records in the running state.
func (s Snapshot) Running() int {
	count := 0
	for _, record := range s {
		if record.RunState == RunStateRunning {
			count++
		}
	}
	return count
}
