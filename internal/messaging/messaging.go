package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

const (
	DriverNATS     = "nats"
	DriverRabbitMQ = "rabbitmq"
	DriverNone     = "none"
)

type Config struct {
	Driver   string
	NATS     NATSConfig
	RabbitMQ RabbitConfig
}

// Publisher sends JSON-encoded events to a subject.
type Publisher interface {
	Publish(ctx context.Context, subject string, v interface{}) error
	Close() error
}

// Handler processes one message. Returning an error leaves the message for redelivery.
type Handler func(ctx context.Context, subject string, data []byte) error

// Subscriber delivers messages on subject to handler, load-balanced across queue members.
type Subscriber interface {
	Subscribe(subject, queue string, handler Handler) error
	Close() error
}

// Bus is a broker connection that can both publish and subscribe.
type Bus interface {
	Publisher
	Subscriber
}

// Connect opens the bus selected by cfg.Driver.
func Connect(cfg Config) (Bus, error) {
	switch cfg.Driver {
	case DriverNATS:
		return NewNATSClient(cfg.NATS)
	case DriverRabbitMQ:
		return NewRabbitClient(cfg.RabbitMQ)
	case DriverNone, "":
		return NewMemoryBus(), nil
	default:
		return nil, fmt.Errorf("unknown messaging driver %q", cfg.Driver)
	}
}

// Message is a published message kept by MemoryBus.
type Message struct {
	Subject string
	Data    []byte
}

// MemoryBus is an in-process Bus. Publish delivers synchronously to subscribers.
type MemoryBus struct {
	mu       sync.Mutex
	messages []Message
	handlers map[string][]Handler
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{handlers: make(map[string][]Handler)}
}

func (b *MemoryBus) Publish(ctx context.Context, subject string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	b.mu.Lock()
	b.messages = append(b.messages, Message{Subject: subject, Data: data})
	handlers := append([]Handler(nil), b.handlers[subject]...)
	b.mu.Unlock()

	for _, h := range handlers {
		if err := h(ctx, subject, data); err != nil {
			return fmt.Errorf("handler for %s failed: %w", subject, err)
		}
	}
	return nil
}

func (b *MemoryBus) Subscribe(subject, queue string, handler Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[subject] = append(b.handlers[subject], handler)
	return nil
}

// Messages returns everything published on subject.
func (b *MemoryBus) Messages(subject string) []Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Message
	for _, m := range b.messages {
		if m.Subject == subject {
			out = append(out, m)
		}
	}
	return out
}

func (b *MemoryBus) Close() error { return nil }
