// Package events publishes bridge slot events to NATS.
package events

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/Alia5/padbridge/bridge"
	"github.com/Alia5/padbridge/internal/log"
)

// Config selects the NATS server and subject prefix. An empty URL disables
// publishing.
type Config struct {
	URL     string `help:"NATS server URL for slot events, empty to disable" env:"PADBRIDGE_NATS_URL"`
	Subject string `help:"Subject prefix for slot events" default:"padbridge.slots" env:"PADBRIDGE_NATS_SUBJECT"`
	Creds   string `help:"NATS user credentials file" type:"path" env:"PADBRIDGE_NATS_CREDS"`
}

// Conn is the part of *nats.Conn the publisher uses.
type Conn interface {
	Publish(subject string, data []byte) error
}

// Message is the JSON body of a published event.
type Message struct {
	Session string    `json:"session,omitempty"`
	Kind    string    `json:"kind"`
	Slot    int       `json:"slot"`
	Handle  uint64    `json:"handle,omitempty"`
	Error   string    `json:"error,omitempty"`
	Time    time.Time `json:"time"`
}

// Publisher sends every slot event to <subject>.<kind>.
type Publisher struct {
	conn    Conn
	subject string
	logger  *slog.Logger
	now     func() time.Time
}

// Connect dials the NATS server named in cfg.
func Connect(cfg Config, name string) (*nats.Conn, error) {
	opts := []nats.Option{nats.Name(name)}
	if cfg.Creds != "" {
		opts = append(opts, nats.UserCredentials(cfg.Creds))
	}
	return nats.Connect(cfg.URL, opts...)
}

// NewPublisher returns a Publisher on conn.
func NewPublisher(conn Conn, subject string, logger *slog.Logger) *Publisher {
	if subject == "" {
		subject = "padbridge.slots"
	}
	return &Publisher{conn: conn, subject: subject, logger: log.Or(logger), now: time.Now}
}

// Sink returns an event sink tagging events with session.
func (p *Publisher) Sink(session string) bridge.EventSink {
	return func(ev bridge.Event) {
		msg := Message{
			Session: session,
			Kind:    ev.Kind.String(),
			Slot:    ev.Slot,
			Handle:  uint64(ev.Handle),
			Time:    p.now().UTC(),
		}
		if ev.Err != nil {
			msg.Error = ev.Err.Error()
		}
		data, err := json.Marshal(msg)
		if err != nil {
			p.logger.Warn("encode slot event", "error", err)
			return
		}
		if err := p.conn.Publish(p.subject+"."+msg.Kind, data); err != nil {
			p.logger.Warn("publish slot event", "kind", msg.Kind, "slot", ev.Slot, "error", err)
		}
	}
}
