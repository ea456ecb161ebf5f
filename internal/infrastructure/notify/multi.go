package notify

import (
	"context"
	"errors"

	"MarketScanner/internal/ports"
)

// Multi fans a notification out to every channel.
type Multi []ports.Notifier

var _ ports.Notifier = Multi(nil)

// SendReportCompletion reports true when at least one channel accepted the
// message. Channel errors are joined.
func (m Multi) SendReportCompletion(ctx context.Context, msg ports.ReportNotification) (bool, error) {
	var (
		sent bool
		errs []error
	)
	for _, n := range m {
		ok, err := n.SendReportCompletion(ctx, msg)
		if err != nil {
			errs = append(errs, err)
		}
		sent = sent || ok
	}
	return sent, errors.Join(errs...)
}
