// Package notify delivers committed booking events to requesters. Every
// notifier here is best effort: callers log failures and move on.
package notify

import (
	"context"
	"errors"

	"github.com/example/campus-booking/internal/application"
)

// Multi fans a notification out to several notifiers. All of them are
// attempted and their errors are joined.
type Multi []application.Notifier

var _ application.Notifier = Multi(nil)

// Notify implements application.Notifier.
func (m Multi) Notify(ctx context.Context, notification application.Notification) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, notification); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
