package notify

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/nholik/sail-sentinel/internal/sail"
	"github.com/nholik/sail-sentinel/internal/transition"
	"github.com/rs/zerolog"
)

type countingNotifier struct {
	calls int
	err   error
}

func (n *countingNotifier) Notify(context.Context, string, []transition.ServiceTransition) error {
	n.calls++
	return n.err
}

func TestDryRunNotifierLogsInsteadOfDelivering(t *testing.T) {
	var buf bytes.Buffer
	inner := &countingNotifier{}
	dryRun := NewDryRunNotifier(zerolog.New(&buf), inner)

	transitions := []transition.ServiceTransition{
		{Name: "mysql", Previous: sail.RunStateRunning, Current: sail.RunStateExited},
	}
	if err := dryRun.Notify(context.Background(), "alpha", transitions); err != nil {
		t.Fatalf("Notify error: %v", err)
	}
	if inner.calls != 0 {
		t.Fatalf("expected no notifier calls, got %d", inner.calls)
	}
	line := buf.String()
	for _, want := range []string{`"project":"alpha"`, `"service":"mysql"`, `"current_state":"exited"`, "[DRY-RUN]"} {
		if !strings.Contains(line, want) {
			t.Fatalf("expected %s in log line %s", want, line)
		}
	}
}

func TestMultiNotifierJoinsFailures(t *testing.T) {
	first := &countingNotifier{err: errors.New("slack down")}
	second := &countingNotifier{}
	third := &countingNotifier{err: errors.New("webhook down")}
	multi := NewMultiNotifier(first, nil, second, third)

	err := multi.Notify(context.Background(), "alpha", makeTransitions(1))
	if err == nil {
		t.Fatalf("expected joined error")
	}
	if !strings.Contains(err.Error(), "slack down") || !strings.Contains(err.Error(), "webhook down") {
		t.Fatalf("expected both failures, got %v", err)
	}
	if first.calls != 1 || second.calls != 1 || third.calls != 1 {
		t.Fatalf("expected every target called once, got %d %d %d", first.calls, second.calls, third.calls)
	}
}
