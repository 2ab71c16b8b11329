package view

import (
	"strings"
	"testing"
	"time"

	"github.com/nholik/sail-sentinel/internal/events"
	"github.com/nholik/sail-sentinel/internal/sail"
	"github.com/rs/zerolog"
)

type fakeReader struct {
	snapshot        sail.Snapshot
	dockerAvailable bool
	loading         bool
	updatedAt       time.Time
}

func (f *fakeReader) Snapshot() sail.Snapshot { return f.snapshot.Clone() }
func (f *fakeReader) DockerAvailable() bool   { return f.dockerAvailable }
func (f *fakeReader) Loading() bool           { return f.loading }
func (f *fakeReader) UpdatedAt() time.Time    { return f.updatedAt }

func sampleSnapshot() sail.Snapshot {
	return sail.Snapshot{
		{
			Name:     "laravel.test",
			RunState: sail.RunStateRunning,
			Image:    "sail-8.3/app",
			Ports: []sail.PortBinding{
				{URL: "0.0.0.0", PublishedPort: 80, TargetPort: 80, Protocol: "tcp"},
			},
		},
		{Name: "mysql", RunState: sail.RunStateExited, Image: "mysql/mysql-server:8.0"},
	}
}

func TestBuildNodes(t *testing.T) {
	nodes := BuildNodes(sampleSnapshot())
	if len(nodes) != 2 {
		t.Fatalf("expected 2 nodes, got %d", len(nodes))
	}
	if nodes[0].Label != "laravel.test" || !nodes[0].Running {
		t.Fatalf("unexpected first node: %+v", nodes[0])
	}
	if nodes[0].Description != "sail-8.3/app" {
		t.Fatalf("expected image description, got %q", nodes[0].Description)
	}
	if len(nodes[0].Children) != 1 || nodes[0].Children[0].Label != "0.0.0.0:80 -> 80/tcp" {
		t.Fatalf("unexpected port children: %+v", nodes[0].Children)
	}
	if nodes[1].Running {
		t.Fatalf("expected exited service to be not running")
	}
	if len(nodes[1].Children) != 0 {
		t.Fatalf("expected no children for service without ports")
	}
}

func TestBuildNodesEmpty(t *testing.T) {
	if nodes := BuildNodes(nil); len(nodes) != 0 {
		t.Fatalf("expected no nodes, got %d", len(nodes))
	}
}

func TestTreeRebuildsOnBroadcast(t *testing.T) {
	reader := &fakeReader{dockerAvailable: true}
	broadcaster := events.NewBroadcaster(zerolog.Nop())
	tree := NewTree(reader, broadcaster, zerolog.Nop())
	defer tree.Dispose()

	if len(tree.Nodes()) != 0 {
		t.Fatalf("expected empty tree before first poll")
	}

	changes := 0
	tree.OnDidChange(func() { changes++ })

	reader.snapshot = sampleSnapshot()
	broadcaster.Fire()

	if changes != 1 {
		t.Fatalf("expected one change notification, got %d", changes)
	}
	if len(tree.Nodes()) != 2 {
		t.Fatalf("expected 2 nodes after broadcast, got %d", len(tree.Nodes()))
	}
}

func TestTreeDisposeStopsFollowing(t *testing.T) {
	reader := &fakeReader{dockerAvailable: true}
	broadcaster := events.NewBroadcaster(zerolog.Nop())
	tree := NewTree(reader, broadcaster, zerolog.Nop())
	tree.Dispose()

	reader.snapshot = sampleSnapshot()
	broadcaster.Fire()

	if len(tree.Nodes()) != 0 {
		t.Fatalf("expected disposed tree to ignore broadcasts")
	}
	if broadcaster.Subscribers() != 0 {
		t.Fatalf("expected no subscribers after dispose, got %d", broadcaster.Subscribers())
	}
}

func TestRenderNodes(t *testing.T) {
	out := RenderNodes(BuildNodes(sampleSnapshot()))
	for _, want := range []string{"laravel.test", "mysql", "0.0.0.0:80 -> 80/tcp", "sail-8.3/app"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected render to contain %q, got %q", want, out)
		}
	}
	if !strings.Contains(RenderNodes(nil), "No services") {
		t.Fatalf("expected empty render placeholder")
	}
}
