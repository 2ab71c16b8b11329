package notify

import (
	"context"
	"errors"

	"github.com/nholik/sail-sentinel/internal/transition"
)

// MultiNotifier hands every batch to each of its targets in turn.
type MultiNotifier struct {
	targets []Notifier
}

// NewMultiNotifier skips nil targets, so optional notifiers can be passed
// straight from their constructors.
func NewMultiNotifier(targets ...Notifier) *MultiNotifier {
	m := &MultiNotifier{}
	for _, target := range targets {
		if target != nil {
			m.targets = append(m.targets, target)
		}
	}
	return m
}

// Notify implements Notifier. A failing target does not stop the others;
// all failures are joined.
func (m *MultiNotifier) Notify(ctx context.Context, project string, transitions []transition.ServiceTransition) error {
	var errs []error
	for _, target := range m.targets {
		if err := target.Notify(ctx, project, transitions); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
