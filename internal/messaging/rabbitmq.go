package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

type RabbitConfig struct {
	URL      string
	Exchange string
}

// RabbitClient publishes to a topic exchange, using the subject as routing key.
type RabbitClient struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string

	mu     sync.Mutex
	cancel []context.CancelFunc
}

func NewRabbitClient(cfg RabbitConfig) (*RabbitClient, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	slog.Info("Connected to RabbitMQ", "exchange", cfg.Exchange)
	return &RabbitClient{conn: conn, ch: ch, exchange: cfg.Exchange}, nil
}

func (r *RabbitClient) Publish(ctx context.Context, subject string, v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}
	err = r.ch.PublishWithContext(ctx, r.exchange, subject, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         b,
	})
	if err != nil {
		return fmt.Errorf("failed to publish to subject %s: %w", subject, err)
	}
	return nil
}

// Subscribe binds a durable queue to subject and consumes it on its own channel.
func (r *RabbitClient) Subscribe(subject, queue string, handler Handler) error {
	ch, err := r.conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	q, err := ch.QueueDeclare(queue, true, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		return fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, subject, r.exchange, false, nil); err != nil {
		_ = ch.Close()
		return fmt.Errorf("bind %s: %w", subject, err)
	}
	if err := ch.Qos(1, 0, false); err != nil {
		_ = ch.Close()
		return fmt.Errorf("set qos: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	deliveries, err := ch.ConsumeWithContext(ctx, q.Name, "", false, false, false, false, nil)
	if err != nil {
		cancel()
		_ = ch.Close()
		return fmt.Errorf("consume %s: %w", q.Name, err)
	}

	r.mu.Lock()
	r.cancel = append(r.cancel, cancel)
	r.mu.Unlock()

	go func() {
		defer ch.Close()
		for d := range deliveries {
			hctx, hcancel := context.WithTimeout(ctx, 30*time.Second)
			err := handler(hctx, d.RoutingKey, d.Body)
			hcancel()
			if err != nil {
				slog.Error("Failed to handle message", "subject", d.RoutingKey, "error", err)
				_ = d.Nack(false, true)
				continue
			}
			_ = d.Ack(false)
		}
	}()

	slog.Info("Subscribed to subject", "subject", subject, "queue", q.Name)
	return nil
}

func (r *RabbitClient) Close() error {
	r.mu.Lock()
	for _, cancel := range r.cancel {
		cancel()
	}
	r.cancel = nil
	r.mu.Unlock()

	if r.ch != nil {
		_ = r.ch.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}
