package payment

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
)

var (
	ErrUnknownProvider   = errors.New("unknown payment provider")
	ErrInvalidSignature  = errors.New("invalid webhook signature")
	ErrUnsupportedEvent  = errors.New("unsupported payment event")
	ErrMalformedEnvelope = errors.New("malformed webhook payload")
)

type EventType string

const (
	EventCaptured      EventType = "payment.captured"
	EventDenied        EventType = "payment.denied"
	EventRefunded      EventType = "payment.refunded"
	EventOrderApproved EventType = "order.approved"
)

// Event is the canonical form of every provider webhook, decoded once at the boundary.
type Event struct {
	ID         string
	Type       EventType
	Provider   string
	ResourceID string
	OrderID    string
	Status     string
	OccurredAt time.Time
}

// WebhookDecoder turns a provider's raw webhook into an Event.
type WebhookDecoder interface {
	Provider() string
	Decode(header http.Header, body []byte) (Event, error)
}

// Registry routes webhooks to the decoder registered for the provider.
type Registry struct {
	mu       sync.RWMutex
	decoders map[string]WebhookDecoder
}

func NewRegistry(decoders ...WebhookDecoder) *Registry {
	r := &Registry{decoders: make(map[string]WebhookDecoder)}
	for _, d := range decoders {
		r.Register(d)
	}
	return r
}

func (r *Registry) Register(d WebhookDecoder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decoders[strings.ToLower(d.Provider())] = d
}

func (r *Registry) Decode(provider string, header http.Header, body []byte) (Event, error) {
	r.mu.RLock()
	d, ok := r.decoders[strings.ToLower(provider)]
	r.mu.RUnlock()
	if !ok {
		return Event{}, fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
	}
	return d.Decode(header, body)
}

// EventID derives a stable id for providers that do not send one.
func EventID(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:16])
}

// envelope is the provider-neutral webhook shape.
type envelope struct {
	ID             string    `json:"id"`
	EventType      string    `json:"eventType"`
	ResourceID     string    `json:"resourceId"`
	RelatedOrderID string    `json:"relatedOrderId"`
	Status         string    `json:"status"`
	OccurredAt     time.Time `json:"occurredAt"`
}

// EnvelopeDecoder decodes the generic {eventType, resourceId, relatedOrderId, status} envelope.
type EnvelopeDecoder struct {
	name string
}

func NewEnvelopeDecoder(name string) *EnvelopeDecoder {
	return &EnvelopeDecoder{name: name}
}

func (d *EnvelopeDecoder) Provider() string { return d.name }

func (d *EnvelopeDecoder) Decode(header http.Header, body []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if env.RelatedOrderID == "" || env.EventType == "" {
		return Event{}, fmt.Errorf("%w: eventType and relatedOrderId are required", ErrMalformedEnvelope)
	}

	var typ EventType
	switch strings.ToLower(env.EventType) {
	case "payment.captured", "payment.capture.completed":
		typ = EventCaptured
	case "payment.denied", "payment.capture.denied", "payment.failed":
		typ = EventDenied
	case "payment.refunded", "payment.capture.refunded":
		typ = EventRefunded
	case "order.approved", "checkout.order.approved":
		typ = EventOrderApproved
	default:
		return Event{}, fmt.Errorf("%w: %s", ErrUnsupportedEvent, env.EventType)
	}

	id := env.ID
	if id == "" {
		id = EventID(d.name, string(typ), env.ResourceID, env.RelatedOrderID, env.Status)
	}
	occurred := env.OccurredAt
	if occurred.IsZero() {
		occurred = time.Now().UTC()
	}

	return Event{
		ID:         id,
		Type:       typ,
		Provider:   d.name,
		ResourceID: env.ResourceID,
		OrderID:    env.RelatedOrderID,
		Status:     env.Status,
		OccurredAt: occurred,
	}, nil
}
