package rabbitmq

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"restaurant-service/models"
)

// Without the delayed-message plugin the exchange never comes up and the
// scheduler must degrade to a no-op instead of touching a dead channel.
func TestPublishDelayedEvent_NoopWithoutDelayedExchange(t *testing.T) {
	r := &RabbitMQ{log: zerolog.Nop()}

	err := r.PublishDelayedEvent(context.Background(), models.OrderEvent{
		OrderID:  "o1",
		Type:     "payment_check",
		Status:   models.StatusPlaced,
		Occurred: time.Now().UTC(),
	}, 15*time.Minute)
	if err != nil {
		t.Fatalf("PublishDelayedEvent = %v, want nil no-op", err)
	}
}
