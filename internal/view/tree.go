// Package view holds the read-only consumers of AppState. Each view
// subscribes to the process-wide broadcaster, rebuilds from AppState when it
// fires, and announces its own change to its renderers.
package view

import (
	"strings"
	"sync"

	"github.com/nholik/sail-sentinel/internal/events"
	"github.com/nholik/sail-sentinel/internal/sail"
	"github.com/nholik/sail-sentinel/internal/state"
	"github.com/nholik/sail-sentinel/internal/ui"
	"github.com/rs/zerolog"
)

// Subscriber is the subscription side of the process-wide broadcaster.
type Subscriber interface {
	Subscribe(handler func()) events.Disposable
}

// Node is one row of the service tree.
type Node struct {
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
	Running     bool   `json:"running"`
	Children    []Node `json:"children,omitempty"`
}

// BuildNodes maps a snapshot to service nodes with one child per port.
func BuildNodes(snapshot sail.Snapshot) []Node {
	nodes := make([]Node, 0, len(snapshot))
	for _, record := range snapshot {
		node := Node{
			Label:       record.Name,
			Description: record.Image,
			Running:     record.RunState == sail.RunStateRunning,
		}
		for _, port := range record.Ports {
			node.Children = append(node.Children, Node{Label: port.String()})
		}
		nodes = append(nodes, node)
	}
	return nodes
}

// Tree is the service tree view.
type Tree struct {
	reader  state.Reader
	logger  zerolog.Logger
	changed *events.Broadcaster
	sub     events.Disposable

	mu    sync.RWMutex
	nodes []Node
}

// NewTree builds the tree from the current state and keeps it converged
// with every broadcast until Dispose.
func NewTree(reader state.Reader, broadcaster Subscriber, logger zerolog.Logger) *Tree {
	t := &Tree{
		reader:  reader,
		logger:  logger,
		changed: events.NewBroadcaster(logger),
	}
	t.rebuild()
	t.sub = broadcaster.Subscribe(func() {
		t.rebuild()
		t.changed.Fire()
	})
	return t
}

func (t *Tree) rebuild() {
	nodes := BuildNodes(t.reader.Snapshot())
	t.mu.Lock()
	t.nodes = nodes
	t.mu.Unlock()
	t.logger.Debug().Int("services", len(nodes)).Msg("service tree rebuilt")
}

// Nodes returns the current node list.
func (t *Tree) Nodes() []Node {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Node, len(t.nodes))
	copy(out, t.nodes)
	return out
}

// OnDidChange subscribes to tree rebuilds.
func (t *Tree) OnDidChange(handler func()) events.Disposable {
	return t.changed.Subscribe(handler)
}

// Render draws the tree for a terminal.
func (t *Tree) Render() string {
	return RenderNodes(t.Nodes())
}

// Dispose stops following the broadcaster.
func (t *Tree) Dispose() {
	if t.sub != nil {
		t.sub.Dispose()
	}
}

// RenderNodes draws nodes as an indented list: a filled green dot for a
// running service, a hollow red one otherwise.
func RenderNodes(nodes []Node) string {
	if len(nodes) == 0 {
		return ui.Muted("No services") + "\n"
	}
	var sb strings.Builder
	for _, node := range nodes {
		icon := ui.Error("○")
		if node.Running {
			icon = ui.Success("●")
		}
		sb.WriteString(icon + " " + ui.Bold(node.Label))
		if node.Description != "" {
			sb.WriteString("  " + ui.Muted(node.Description))
		}
		sb.WriteString("\n")
		for _, child := range node.Children {
			sb.WriteString("    " + ui.Accent("⇄") + " " + child.Label + "\n")
		}
	}
	return sb.String()
}
