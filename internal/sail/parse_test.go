package sail

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestClassifyRunState(t *testing.T) {
	cases := []struct {
		status string
		want   RunState
	}{
		{"Up 2 hours", RunStateRunning},
		{"Paused", RunStatePaused},
		{"Up 5 minutes (Paused)", RunStatePaused},
		{"Exited (0) 3 seconds ago", RunStateExited},
		{"exited (0)", RunStateRunning},
		{"", RunStateRunning},
		{"Restarting (1) 2 seconds ago", RunStateRunning},
	}

	for _, tc := range cases {
		t.Run(tc.status, func(t *testing.T) {
			if got := ClassifyRunState(tc.status); got != tc.want {
				t.Fatalf("ClassifyRunState(%q) = %q, want %q", tc.status, got, tc.want)
			}
			if again := ClassifyRunState(tc.status); again != tc.want {
				t.Fatalf("classification is not stable: %q", again)
			}
		})
	}
}

func psLine(service, status string) string {
	return fmt.Sprintf(`{"Service":%q,"State":"running","Image":"img-%s","Status":%q,"Publishers":[{"URL":"0.0.0.0","TargetPort":80,"PublishedPort":8080,"Protocol":"tcp"}]}`,
		service, service, status)
}

func TestParseSnapshot_PreservesCountAndOrder(t *testing.T) {
	for n := 0; n <= 4; n++ {
		lines := make([]string, 0, n)
		for i := 0; i < n; i++ {
			lines = append(lines, psLine(fmt.Sprintf("svc%d", i), "Up 1 minute"))
		}
		output := strings.Join(lines, "\n") + "\n\n"

		snapshot, err := ParseSnapshot(output)
		if err != nil {
			t.Fatalf("n=%d: unexpected error: %v", n, err)
		}
		if len(snapshot) != n {
			t.Fatalf("n=%d: expected %d records, got %d", n, n, len(snapshot))
		}
		for i, record := range snapshot {
			if want := fmt.Sprintf("svc%d", i); record.Name != want {
				t.Fatalf("n=%d: record %d name %q, want %q", n, i, record.Name, want)
			}
		}
	}
}

func TestParseSnapshot_MapsFields(t *testing.T) {
	snapshot, err := ParseSnapshot(psLine("mysql", "Exited (1) 2 minutes ago"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	record := snapshot[0]
	if record.Name != "mysql" || record.Image != "img-mysql" || record.State != "running" {
		t.Fatalf("unexpected record: %+v", record)
	}
	if record.RunState != RunStateExited {
		t.Fatalf("expected exited, got %q", record.RunState)
	}
	if len(record.Ports) != 1 {
		t.Fatalf("expected 1 port, got %d", len(record.Ports))
	}
	if got := record.Ports[0].String(); got != "0.0.0.0:8080 -> 80/tcp" {
		t.Fatalf("unexpected port rendering %q", got)
	}
}

func TestParseSnapshot_MalformedLineFailsWholeParse(t *testing.T) {
	output := psLine("laravel.test", "Up") + "\n{not json\n" + psLine("redis", "Up")

	snapshot, err := ParseSnapshot(output)
	if snapshot != nil {
		t.Fatalf("expected no partial snapshot, got %d records", len(snapshot))
	}
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected ParseError, got %v", err)
	}
	if parseErr.Line != 2 {
		t.Fatalf("expected line 2, got %d", parseErr.Line)
	}
}

func TestParseSnapshot_NameFallbacks(t *testing.T) {
	output := `{"Name":"app-redis-1","Status":"Up"}` + "\n" + `{"Names":"app-mysql-1","Status":"Up"}`

	snapshot, err := ParseSnapshot(output)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snapshot[0].Name != "app-redis-1" || snapshot[1].Name != "app-mysql-1" {
		t.Fatalf("unexpected names: %q, %q", snapshot[0].Name, snapshot[1].Name)
	}
	if snapshot[0].Ports != nil {
		t.Fatalf("expected no ports")
	}
}

func TestParseSnapshot_ArrayLine(t *testing.T) {
	output := "[" + psLine("a", "Up") + "," + psLine("b", "Paused") + "]\n"

	snapshot, err := ParseSnapshot(output)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(snapshot) != 2 || snapshot[1].RunState != RunStatePaused {
		t.Fatalf("unexpected snapshot: %+v", snapshot)
	}
}

func TestParseSnapshot_EmptyOutputIsEmptySnapshot(t *testing.T) {
	snapshot, err := ParseSnapshot("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snapshot == nil || len(snapshot) != 0 {
		t.Fatalf("expected empty non-nil snapshot, got %#v", snapshot)
	}
}

func TestSnapshotCloneIsDeep(t *testing.T) {
	original := Snapshot{{Name: "web", Ports: []PortBinding{{TargetPort: 80}}}}
	clone := original.Clone()
	clone[0].Ports[0].TargetPort = 81
	clone[0].Name = "changed"

	if original[0].Ports[0].TargetPort != 80 || original[0].Name != "web" {
		t.Fatalf("clone shares memory with original: %+v", original)
	}
}

func TestNormalizeImage(t *testing.T) {
	if got := NormalizeImage("mysql/mysql-server:8.0@sha256:abc"); got != "mysql/mysql-server:8.0" {
		t.Fatalf("unexpected %q", got)
	}
	if got := NormalizeImage("redis:alpine"); got != "redis:alpine" {
		t.Fatalf("unexpected %q", got)
	}
}
