package consumers

import (
	"fmt"
	"log/slog"

	"teetime/internal/messaging"
	"teetime/internal/models"
)

const queuePrefix = "teetime-consumers"

// auditSubjects are logged but need no further processing.
var auditSubjects = []string{
	models.EventBookingConfirmed,
	models.EventBookingCancelled,
	models.EventBookingRefunded,
	models.EventCommissionCreated,
	models.EventPaymentCaptured,
	models.EventPaymentFailed,
	models.EventReconciliationOpened,
	models.EventHoldsExpired,
}

type ConsumerService struct {
	bus      messaging.Subscriber
	handlers *Handlers
}

func NewConsumerService(bus messaging.Subscriber, recommitter Recommitter) *ConsumerService {
	return &ConsumerService{
		bus:      bus,
		handlers: NewHandlers(recommitter),
	}
}

// Start subscribes every handler. Each subject gets its own queue group so
// consumer replicas share the load.
func (cs *ConsumerService) Start() error {
	slog.Info("Starting consumers...")

	if err := cs.subscribe(models.EventBookingReconcile, cs.handlers.HandleBookingReconcile); err != nil {
		return err
	}

	for _, subject := range auditSubjects {
		if err := cs.subscribe(subject, cs.handlers.HandleAuditEvent); err != nil {
			return err
		}
	}

	slog.Info("All consumers started successfully", "subjects", len(auditSubjects)+1)
	return nil
}

func (cs *ConsumerService) subscribe(subject string, handler messaging.Handler) error {
	if err := cs.bus.Subscribe(subject, queuePrefix+"."+subject, handler); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}
	return nil
}
