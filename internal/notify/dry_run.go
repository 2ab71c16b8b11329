package notify

import (
	"context"

	"github.com/nholik/sail-sentinel/internal/transition"
	"github.com/rs/zerolog"
)

// DryRunNotifier logs what would have been sent and never calls inner.
type DryRunNotifier struct {
	logger zerolog.Logger
	inner  Notifier
}

// NewDryRunNotifier wraps inner; inner is kept so the configured chain is
// still built and validated.
func NewDryRunNotifier(logger zerolog.Logger, inner Notifier) *DryRunNotifier {
	return &DryRunNotifier{logger: logger, inner: inner}
}

// Notify implements Notifier.
func (n *DryRunNotifier) Notify(_ context.Context, project string, transitions []transition.ServiceTransition) error {
	if len(transitions) == 0 {
		return nil
	}
	n.logger.Info().
		Str("project", projectLabel(project)).
		Array("transitions", transitionLog(transitions)).
		Msg("[DRY-RUN] Would notify")
	return nil
}

type transitionLog []transition.ServiceTransition

func (l transitionLog) MarshalZerologArray(a *zerolog.Array) {
	for _, change := range l {
		a.Dict(zerolog.Dict().
			Str("service", change.Name).
			Str("previous_state", string(change.Previous)).
			Str("current_state", string(change.Current)).
			Str("image", change.Image))
	}
}
