package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cuemby/sentinel/pkg/events"
	"github.com/cuemby/sentinel/pkg/log"
	"github.com/cuemby/sentinel/pkg/metrics"
	"github.com/rs/zerolog"
)

// Notifier forwards events from a subscription to a Sender. Delivery failures
// are logged and the alert is dropped; nothing is retried.
type Notifier struct {
	sender  Sender
	timeout time.Duration
	logger  zerolog.Logger
}

// NewNotifier creates a notifier. A zero timeout uses DefaultTimeout.
func NewNotifier(sender Sender, timeout time.Duration) *Notifier {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Notifier{
		sender:  sender,
		timeout: timeout,
		logger:  log.WithComponent("notify"),
	}
}

// Run delivers every event from sub until ctx is done or sub is closed
func (n *Notifier) Run(ctx context.Context, sub events.Subscriber) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-sub:
			if !ok {
				return nil
			}
			n.Deliver(ctx, e)
		}
	}
}

// Deliver sends one event within the notifier's timeout
func (n *Notifier) Deliver(ctx context.Context, e *events.Event) {
	sendCtx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	if err := n.sender.Send(sendCtx, Format(e)); err != nil {
		metrics.NotificationsTotal.WithLabelValues("failed").Inc()
		n.logger.Warn().
			Err(err).
			Str("event", string(e.Type)).
			Str("event_id", e.ID).
			Msg("Notification dropped")
		return
	}
	metrics.NotificationsTotal.WithLabelValues("sent").Inc()
}

// Format renders an event as a single chat message
func Format(e *events.Event) string {
	return fmt.Sprintf("[%s] %s", strings.ToUpper(string(e.Severity)), e.Message)
}
