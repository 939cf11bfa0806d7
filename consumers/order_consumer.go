package consumers

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"restaurant-service/config"
	"restaurant-service/database"
	"restaurant-service/models"
	"restaurant-service/store"
)

// OrderConsumer drains the order event queue and the dead-letter queue.
// Both loops stop when the context is cancelled; nothing keeps running
// after shutdown.
type OrderConsumer struct {
	ch     *amqp.Channel
	cfg    *config.Config
	orders *store.OrderStore
	repo   *database.OrderRepository
	log    zerolog.Logger
}

func NewOrderConsumer(ch *amqp.Channel, cfg *config.Config, orders *store.OrderStore, repo *database.OrderRepository, log zerolog.Logger) *OrderConsumer {
	return &OrderConsumer{ch: ch, cfg: cfg, orders: orders, repo: repo, log: log}
}

// Start registers both consumers and blocks until the context is done.
func (c *OrderConsumer) Start(ctx context.Context) error {
	msgs, err := c.ch.Consume(
		c.cfg.OrderQueue,
		"restaurant-service", // consumer tag
		false,                // auto-ack
		false,                // exclusive
		false,                // no-local
		false,                // no-wait
		nil,
	)
	if err != nil {
		return err
	}

	dlqMsgs, err := c.ch.Consume(
		c.cfg.DeadLetterQueue,
		"restaurant-service-dlq",
		false, false, false, false,
		nil,
	)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				return errors.New("order queue channel closed")
			}
			c.processOrderMessage(ctx, msg)
		case msg, ok := <-dlqMsgs:
			if !ok {
				return errors.New("dead letter channel closed")
			}
			c.processDeadLetter(msg)
		}
	}
}

func (c *OrderConsumer) processOrderMessage(ctx context.Context, msg amqp.Delivery) {
	var event models.OrderEvent
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		c.log.Error().Err(err).Str("body", string(msg.Body)).Msg("invalid event payload")
		_ = msg.Nack(false, false) // to the dead-letter queue
		return
	}

	c.log.Info().
		Str("order_id", event.OrderID).
		Str("type", event.Type).
		Str("status", string(event.Status)).
		Msg("processing order event")

	switch event.Type {
	case "created", "status_updated":
		// Notification fan-out hangs off these events; nothing to mutate.
	case "payment_check":
		c.handlePaymentCheck(ctx, event.OrderID)
	default:
		c.log.Warn().Str("type", event.Type).Msg("unknown event type")
	}

	_ = msg.Ack(false)
}

// handlePaymentCheck auto-cancels orders that are still sitting in the
// initial status when the payment window closes. The cancellation goes
// through the state machine like any other transition, so an order that
// has moved on is left alone.
func (c *OrderConsumer) handlePaymentCheck(ctx context.Context, orderID string) {
	order, err := c.orders.FindByID(orderID)
	if errors.Is(err, store.ErrNotFound) {
		return
	}
	if err != nil {
		c.log.Error().Err(err).Str("order_id", orderID).Msg("payment check lookup failed")
		return
	}
	if order.Status != models.StatusInitial {
		return
	}

	dbCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err = c.orders.ApplyTransitionWith(orderID, models.StatusCancelled, func(o *models.Order) error {
		return c.repo.UpdateStatus(dbCtx, o.ID, o.Status, o.CompletedAt)
	})
	if errors.Is(err, models.ErrInvalidTransition) || errors.Is(err, store.ErrNotFound) {
		// Raced with a legitimate transition; the machine already said no.
		c.log.Debug().Err(err).Str("order_id", orderID).Msg("payment check skipped")
		return
	}
	if err != nil {
		c.log.Error().Err(err).Str("order_id", orderID).Msg("persist auto-cancel failed")
		return
	}

	c.log.Info().Str("order_id", orderID).Msg("order auto-cancelled after payment window")
}

func (c *OrderConsumer) processDeadLetter(msg amqp.Delivery) {
	c.log.Warn().Str("body", string(msg.Body)).Msg("dead letter received")
	_ = msg.Ack(false)
}
