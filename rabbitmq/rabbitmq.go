package rabbitmq

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"restaurant-service/config"
	"restaurant-service/models"
)

type RabbitMQ struct {
	Conn    *amqp.Connection
	Channel *amqp.Channel
	Cfg     *config.Config
	log     zerolog.Logger

	// delayed is set once SetupQueues has declared the delayed exchange.
	// Without the delayed-message plugin the exchange cannot exist and
	// payment checks are disabled.
	delayed bool
}

func NewRabbitMQ(cfg *config.Config, log zerolog.Logger) (*RabbitMQ, error) {
	conn, err := amqp.Dial(cfg.RabbitMQURL)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	return &RabbitMQ{Conn: conn, Channel: ch, Cfg: cfg, log: log}, nil
}

// SetupQueues declares the order exchange, the priority order queue with a
// dead-letter route, and the delayed exchange used for payment checks.
func (r *RabbitMQ) SetupQueues() error {
	if err := r.Channel.ExchangeDeclare(
		r.Cfg.OrderExchange,
		"direct",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		return err
	}

	if err := r.Channel.ExchangeDeclare(
		r.Cfg.DeadLetterQueue+"_exchange",
		"direct",
		true, false, false, false,
		nil,
	); err != nil {
		return err
	}

	if _, err := r.Channel.QueueDeclare(
		r.Cfg.DeadLetterQueue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		amqp.Table{"x-queue-type": "classic"},
	); err != nil {
		return err
	}

	if err := r.Channel.QueueBind(
		r.Cfg.DeadLetterQueue, "", r.Cfg.DeadLetterQueue+"_exchange", false, nil,
	); err != nil {
		return err
	}

	if _, err := r.Channel.QueueDeclare(
		r.Cfg.OrderQueue,
		true, false, false, false,
		amqp.Table{
			"x-max-priority":            r.Cfg.MaxPriority,
			"x-dead-letter-exchange":    r.Cfg.DeadLetterQueue + "_exchange",
			"x-dead-letter-routing-key": r.Cfg.DeadLetterQueue,
		},
	); err != nil {
		return err
	}

	if err := r.Channel.QueueBind(
		r.Cfg.OrderQueue, "", r.Cfg.OrderExchange, false, nil,
	); err != nil {
		return err
	}

	// The delayed exchange needs the RabbitMQ delayed-message plugin. A
	// failed declare closes its channel, so it goes through a throwaway
	// channel to keep the main one usable when the plugin is missing;
	// payment checks then degrade to a no-op.
	tmp, err := r.Conn.Channel()
	if err != nil {
		return err
	}
	if err := tmp.ExchangeDeclare(
		r.Cfg.DelayExchange,
		"x-delayed-message",
		true, false, false, false,
		amqp.Table{"x-delayed-type": "direct"},
	); err != nil {
		r.log.Warn().Err(err).Msg("delayed exchange not supported, payment checks disabled")
		return nil
	}
	_ = tmp.Close()

	if err := r.Channel.QueueBind(
		r.Cfg.OrderQueue, "", r.Cfg.DelayExchange, false, nil,
	); err != nil {
		return err
	}
	r.delayed = true
	return nil
}

// PublishOrderEvent publishes an order event after a successful store
// mutation. Cancellations and big tickets jump the queue.
func (r *RabbitMQ) PublishOrderEvent(ctx context.Context, event models.OrderEvent, priority int) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return r.Channel.PublishWithContext(ctx,
		r.Cfg.OrderExchange,
		"",
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			ContentType:  "application/json",
			Body:         body,
			Priority:     uint8(priority),
		},
	)
}

// PublishDelayedEvent schedules an order event for later delivery through
// the delayed exchange (e.g. the payment check after the payment window).
// It is a no-op when the exchange could not be declared.
func (r *RabbitMQ) PublishDelayedEvent(ctx context.Context, event models.OrderEvent, delay time.Duration) error {
	if !r.delayed {
		r.log.Debug().Str("order_id", event.OrderID).Msg("delayed exchange unavailable, event dropped")
		return nil
	}

	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return r.Channel.PublishWithContext(ctx,
		r.Cfg.DelayExchange,
		"",
		false,
		false,
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			ContentType:  "application/json",
			Body:         body,
			Headers:      amqp.Table{"x-delay": delay.Milliseconds()},
		},
	)
}

func (r *RabbitMQ) Close() {
	if r.Channel != nil {
		_ = r.Channel.Close()
	}
	if r.Conn != nil {
		_ = r.Conn.Close()
	}
}
