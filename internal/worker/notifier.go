package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/incident-coordinator/internal/events"
)

// Notifier logs lifecycle events for the presentation layer's consumption.
// It subscribes to every lifecycle type so downstream sinks (webhooks, UI
// push) have a single attachment point.
type Notifier struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewNotifier creates the notifier.
func NewNotifier(dispatcher events.Dispatcher, logger *zap.Logger) *Notifier {
	return &Notifier{dispatcher: dispatcher, logger: logger}
}

// RegisterHandlers subscribes to events.
func (n *Notifier) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	for _, eventType := range []events.EventType{
		events.EventTicketCreated,
		events.EventStaked,
		events.EventAnalystAssigned,
		events.EventReportSubmitted,
		events.EventCertifierAssigned,
		events.EventValidated,
		events.EventRejected,
		events.EventReconciliationScheduled,
		events.EventReconciliationResolved,
		events.EventReconciliationFailed,
		events.EventSessionChanged,
	} {
		n.dispatcher.Subscribe(eventType, n.handle)
	}
}

func (n *Notifier) handle(ctx context.Context, event events.Event) error {
	n.logger.Info("lifecycle event",
		zap.String("type", string(event.Type)),
		zap.String("ticket_id", event.TicketID),
		zap.String("new_status", string(event.NewStatus)),
		zap.String("tx_ref", event.TxRef),
		zap.Any("payload", event.Payload))
	return nil
}
