package notify

import (
	"context"

	"github.com/nholik/sail-sentinel/internal/transition"
	"github.com/rs/zerolog"
)

// NoopNotifier stands in when no target is configured.
type NoopNotifier struct {
	reason string
}

// NewNoop logs reason once at construction.
func NewNoop(logger zerolog.Logger, reason string) *NoopNotifier {
	if reason != "" {
		logger.Info().Msg(reason)
	}
	return &NoopNotifier{reason: reason}
}

// Reason explains why notifications are disabled.
func (n *NoopNotifier) Reason() string { return n.reason }

// Notify implements Notifier.
func (*NoopNotifier) Notify(context.Context, string, []transition.ServiceTransition) error {
	return nil
}
