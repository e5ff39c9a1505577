package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/stan.go"
)

type NATSConfig struct {
	URL       string
	ClusterID string
	ClientID  string
}

type NATSClient struct {
	conn stan.Conn

	mu   sync.Mutex
	subs []stan.Subscription
}

func NewNATSClient(cfg NATSConfig) (*NATSClient, error) {
	// Unique client id so several replicas can share one cluster.
	clientID := fmt.Sprintf("%s-%s", cfg.ClientID, uuid.New().String()[:8])

	conn, err := stan.Connect(cfg.ClusterID, clientID, stan.NatsURL(cfg.URL))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS Streaming: %w", err)
	}

	slog.Info("Connected to NATS Streaming", "url", cfg.URL, "cluster", cfg.ClusterID, "client", clientID)
	return &NATSClient{conn: conn}, nil
}

func (nc *NATSClient) Publish(ctx context.Context, subject string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	if err := nc.conn.Publish(subject, payload); err != nil {
		return fmt.Errorf("failed to publish to subject %s: %w", subject, err)
	}

	slog.Debug("Published message", "subject", subject)
	return nil
}

// Subscribe creates a durable queue subscription with manual acks; a failed handler is redelivered after AckWait.
func (nc *NATSClient) Subscribe(subject, queue string, handler Handler) error {
	sub, err := nc.conn.QueueSubscribe(subject, queue, func(msg *stan.Msg) {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := handler(ctx, msg.Subject, msg.Data); err != nil {
			slog.Error("Failed to handle message", "subject", msg.Subject, "sequence", msg.Sequence, "error", err)
			return
		}
		if err := msg.Ack(); err != nil {
			slog.Error("Failed to ack message", "subject", msg.Subject, "error", err)
		}
	},
		stan.DurableName(subject+"-"+queue+"-durable"),
		stan.SetManualAckMode(),
		stan.AckWait(30*time.Second),
		stan.MaxInflight(1))
	if err != nil {
		return fmt.Errorf("failed to queue subscribe to subject %s: %w", subject, err)
	}

	nc.mu.Lock()
	nc.subs = append(nc.subs, sub)
	nc.mu.Unlock()

	slog.Info("Subscribed to subject", "subject", subject, "queue", queue)
	return nil
}

func (nc *NATSClient) Close() error {
	nc.mu.Lock()
	for _, sub := range nc.subs {
		_ = sub.Close()
	}
	nc.subs = nil
	nc.mu.Unlock()

	if nc.conn != nil {
		return nc.conn.Close()
	}
	return nil
}
