package notify

import (
	"context"

	"github.com/nholik/sail-sentinel/internal/transition"
)

// Notifier delivers transition alerts to external systems.
type Notifier interface {
	Notify(ctx context.Context, project string, transitions []transition.ServiceTransition) error
}

func projectLabel(project string) string {
	if project == "" {
		return "default"
	}
	return project
}
