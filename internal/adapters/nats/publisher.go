package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/samirrijal/cityview/internal/core/domain"
)

// Subjects and stream for session events.
const (
	StreamName           = "CITYVIEW_EVENTS"
	SubjectAll           = "cityview.>"
	SubjectViewSelected  = "cityview.view.selected"
	SubjectFetchWildcard = "cityview.fetch.>"
)

// FetchSubject returns the subject for a fetch outcome, e.g. cityview.fetch.cityA.loaded.
func FetchSubject(view domain.ViewID, status domain.FetchStatus) string {
	return "cityview.fetch." + string(view) + "." + string(status)
}

// Publisher implements ports.EventPublisher using NATS JetStream.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher connects to NATS and enables JetStream.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	cfg := nats.StreamConfig{
		Name:      StreamName,
		Subjects:  []string{SubjectAll},
		Retention: nats.LimitsPolicy,
		MaxAge:    1 * time.Hour,
		Storage:   nats.FileStorage,
	}
	if _, err := js.AddStream(&cfg); err != nil {
		// Stream may already exist — try update
		if _, err := js.UpdateStream(&cfg); err != nil {
			conn.Close()
			return nil, fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
		}
	}

	return &Publisher{conn: conn, js: js}, nil
}

func (p *Publisher) PublishViewSelected(ctx context.Context, event *domain.ViewSelectedEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(SubjectViewSelected, data, nats.Context(ctx))
	return err
}

func (p *Publisher) PublishFetchCompleted(ctx context.Context, event *domain.FetchCompletedEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(FetchSubject(event.View, event.Status), data, nats.Context(ctx))
	return err
}

// Conn exposes the underlying connection for readiness checks and relays.
func (p *Publisher) Conn() *nats.Conn {
	return p.conn
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// RawConn dials NATS with unlimited reconnects.
func RawConn(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.Name("cityview"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}
