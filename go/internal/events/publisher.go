package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

const (
	natsMaxReconnects = -1
	natsReconnectWait = 2 * time.Second
)

// Event is one assignment transition ready to be published
type Event struct {
	ID           uuid.UUID       `json:"id"`
	AssignmentID int             `json:"assignment_id"`
	EventType    string          `json:"event_type"`
	Payload      json.RawMessage `json:"payload"`
	CreatedAt    time.Time       `json:"created_at"`
}

// NewEvent marshals payload into a fresh event
func NewEvent(eventType string, assignmentID int, payload any, at time.Time) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}
	return Event{
		ID:           uuid.New(),
		AssignmentID: assignmentID,
		EventType:    eventType,
		Payload:      data,
		CreatedAt:    at,
	}, nil
}

// Publisher delivers transition events
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// envelope is the wire format shared by every publisher
func envelope(event Event) ([]byte, error) {
	msg := map[string]interface{}{
		"eventId":      event.ID.String(),
		"eventType":    event.EventType,
		"assignmentId": event.AssignmentID,
		"timestamp":    event.CreatedAt,
		"payload":      event.Payload,
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}
	return data, nil
}

// LogPublisher only logs events. It is the default when no broker is configured.
type LogPublisher struct{}

func NewLogPublisher() *LogPublisher {
	return &LogPublisher{}
}

func (p *LogPublisher) Publish(ctx context.Context, event Event) error {
	log.Info().
		Str("event_id", event.ID.String()).
		Str("event_type", event.EventType).
		Int("assignment_id", event.AssignmentID).
		RawJSON("payload", event.Payload).
		Msg("assignment event")
	return nil
}

// Conn is the part of *nats.Conn the publisher needs
type Conn interface {
	Publish(subject string, data []byte) error
}

// NATSPublisher publishes envelopes to <prefix>.assignment.<type>
type NATSPublisher struct {
	conn   Conn
	prefix string
}

func NewNATSPublisher(conn Conn, prefix string) *NATSPublisher {
	return &NATSPublisher{
		conn:   conn,
		prefix: prefix,
	}
}

// Subject returns the subject an event type is published on
func (p *NATSPublisher) Subject(eventType string) string {
	return fmt.Sprintf("%s.assignment.%s", p.prefix, eventType)
}

func (p *NATSPublisher) Publish(ctx context.Context, event Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := envelope(event)
	if err != nil {
		return err
	}

	subject := p.Subject(event.EventType)
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}

	log.Debug().
		Str("subject", subject).
		Int("size", len(data)).
		Msg("published to NATS")
	return nil
}

// Connect opens a NATS connection that reconnects forever
func Connect(url string) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Name("queuetimer"),
		nats.MaxReconnects(natsMaxReconnects),
		nats.ReconnectWait(natsReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return nc, nil
}

// Multi publishes to every publisher and returns the first error
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, event Event) error {
	var first error
	for _, p := range m {
		if err := p.Publish(ctx, event); err != nil && first == nil {
			first = err
		}
	}
	return first
}
