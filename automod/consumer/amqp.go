// Inbound gateway event stream, consumed from RabbitMQ.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/guildwarden/warden/automod/event"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	DefaultExchange   = "gateway"
	DefaultQueue      = "gateway.recv"
	DefaultRoutingKey = "#"
	DefaultPrefetch   = 50
)

// Processor accepts decoded events. Implemented by *scheduler.Scheduler.
type Processor interface {
	AddWork(ctx context.Context, evt event.Event) error
}

// AMQPConsumer reads gateway payloads from a durable queue bound to a topic exchange.
//
// Every delivery is acknowledged before it is decoded and processed, so a payload which fails processing is never redelivered.
type AMQPConsumer struct {
	URL        string
	Exchange   string
	Queue      string
	RoutingKey string
	// unacknowledged deliveries the broker may push ahead of processing
	Prefetch  int
	Logger    *slog.Logger
	Processor Processor
}

func (ac *AMQPConsumer) withDefaults() {
	if ac.Exchange == "" {
		ac.Exchange = DefaultExchange
	}
	if ac.Queue == "" {
		ac.Queue = DefaultQueue
	}
	if ac.RoutingKey == "" {
		ac.RoutingKey = DefaultRoutingKey
	}
	if ac.Prefetch <= 0 {
		ac.Prefetch = DefaultPrefetch
	}
	if ac.Logger == nil {
		ac.Logger = slog.Default()
	}
}

// Run consumes until ctx is done, returning nil, or until the connection fails, returning the transport error.
func (ac *AMQPConsumer) Run(ctx context.Context) error {
	if ac.Processor == nil {
		return fmt.Errorf("nil processor")
	}
	ac.withDefaults()

	conn, err := amqp.Dial(ac.URL)
	if err != nil {
		return fmt.Errorf("rabbitmq dial: %w", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("rabbitmq channel: %w", err)
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(ac.Exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("rabbitmq exchange declare %s: %w", ac.Exchange, err)
	}
	if _, err := ch.QueueDeclare(ac.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("rabbitmq queue declare %s: %w", ac.Queue, err)
	}
	if err := ch.QueueBind(ac.Queue, ac.RoutingKey, ac.Exchange, false, nil); err != nil {
		return fmt.Errorf("rabbitmq queue bind %s: %w", ac.Queue, err)
	}
	if err := ch.Qos(ac.Prefetch, 0, false); err != nil {
		return fmt.Errorf("rabbitmq qos: %w", err)
	}

	tag := "warden-" + uuid.NewString()
	deliveries, err := ch.Consume(ac.Queue, tag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("rabbitmq consume: %w", err)
	}
	closed := conn.NotifyClose(make(chan *amqp.Error, 1))

	ac.Logger.Info("consuming gateway events", "exchange", ac.Exchange, "queue", ac.Queue, "routing_key", ac.RoutingKey, "prefetch", ac.Prefetch, "tag", tag)
	for {
		select {
		case <-ctx.Done():
			ac.Logger.Info("stopping gateway event consumer")
			return nil
		case aerr, ok := <-closed:
			if !ok || aerr == nil {
				return errors.New("rabbitmq connection closed")
			}
			return fmt.Errorf("rabbitmq connection closed: %w", aerr)
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("rabbitmq delivery channel closed")
			}
			if err := d.Ack(false); err != nil {
				return fmt.Errorf("rabbitmq ack: %w", err)
			}
			if err := ac.HandleMessage(ctx, d.Body); err != nil {
				// only a done context ends up here
				return nil
			}
		}
	}
}

// HandleMessage decodes one payload and hands it to the processor. Undecodable and unrecognized payloads are logged and dropped; the only error returned is from a done ctx.
func (ac *AMQPConsumer) HandleMessage(ctx context.Context, body []byte) error {
	if ac.Logger == nil {
		ac.Logger = slog.Default()
	}
	messagesReceived.Inc()

	evt, err := event.Decode(body)
	if err != nil {
		var derr *event.DeserializeError
		switch {
		case errors.As(err, &derr):
			ac.Logger.Warn("failed to decode gateway event", "type", derr.Type, "err", err)
			decodeErrors.WithLabelValues(derr.Type).Inc()
		case errors.Is(err, event.ErrUnsupportedEvent):
			ac.Logger.Debug("skipping unsupported gateway payload", "err", err)
			eventsSkipped.WithLabelValues("unsupported").Inc()
		default:
			ac.Logger.Warn("failed to decode gateway event", "err", err)
			decodeErrors.WithLabelValues("unknown").Inc()
		}
		return nil
	}
	if u, ok := evt.(*event.Unrecognized); ok {
		ac.Logger.Warn("skipping unrecognized gateway event", "type", u.Type)
		eventsSkipped.WithLabelValues("unrecognized").Inc()
		return nil
	}
	return ac.Processor.AddWork(ctx, evt)
}
