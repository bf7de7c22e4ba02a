package chatops

import (
	"context"
	"errors"

	"github.com/wisbric/fleetwatch/pkg/approval"
)

// MultiNotifier fans an approval request out to every configured channel,
// mirroring the teacher's messaging.Registry pattern of dispatching to all
// enabled providers rather than picking one. A disabled notifier's Notify
// is a no-op, so MultiNotifier works unchanged whether zero, one, or both
// channels are configured.
type MultiNotifier struct {
	notifiers []approval.Notifier
}

// NewMultiNotifier creates a MultiNotifier over the given notifiers. Nil
// entries are skipped, so callers can pass providers unconditionally.
func NewMultiNotifier(notifiers ...approval.Notifier) *MultiNotifier {
	nonNil := make([]approval.Notifier, 0, len(notifiers))
	for _, n := range notifiers {
		if n != nil {
			nonNil = append(nonNil, n)
		}
	}
	return &MultiNotifier{notifiers: nonNil}
}

// Notify implements approval.Notifier, notifying every channel and
// collecting any failures rather than stopping at the first one.
func (m *MultiNotifier) Notify(ctx context.Context, req approval.Request) error {
	var errs []error
	for _, n := range m.notifiers {
		if err := n.Notify(ctx, req); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
