// Package notify publishes run events to NATS JetStream so external
// consumers (chat bots, dashboards) can follow publish activity.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"git.home.luguber.info/inful/docpublish/internal/config"
	"git.home.luguber.info/inful/docpublish/internal/eventstore"
)

// Publisher mirrors run events onto a JetStream stream.
type Publisher struct {
	conn          *nats.Conn
	js            jetstream.JetStream
	stream        string
	subjectPrefix string
}

// NewPublisher connects to NATS and ensures the run event stream exists.
func NewPublisher(cfg *config.NATSConfig) (*Publisher, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nats config is required")
	}

	if !cfg.Enabled {
		return nil, fmt.Errorf("nats publication is disabled")
	}

	conn, err := nats.Connect(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	p := &Publisher{
		conn:          conn,
		js:            js,
		stream:        cfg.Stream,
		subjectPrefix: cfg.SubjectPrefix,
	}

	if err := p.ensureStream(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ensure stream: %w", err)
	}

	slog.Info("NATS publisher initialized for run events",
		"url", cfg.URL,
		"stream", cfg.Stream,
		"subject_prefix", cfg.SubjectPrefix)

	return p, nil
}

// ensureStream creates or gets the stream holding run events.
func (p *Publisher) ensureStream() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Try to get existing stream
	if _, err := p.js.Stream(ctx, p.stream); err == nil {
		return nil
	}

	// Create new stream if it doesn't exist
	_, err := p.js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        p.stream,
		Description: "Documentation publish run events",
		Subjects:    []string{p.subjectPrefix + ".>"},
		MaxBytes:    100 * 1024 * 1024, // 100MB max
		Retention:   jetstream.LimitsPolicy,
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}

	slog.Info("Created stream for run events", "stream", p.stream)
	return nil
}

// Envelope is the wire form of a mirrored run event.
type Envelope struct {
	RunID     string          `json:"run_id"`
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// PublishRunEvent publishes a run event to the stream.
func (p *Publisher) PublishRunEvent(event eventstore.Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	envelope := Envelope{
		RunID:     event.RunID(),
		Type:      event.Type(),
		Timestamp: event.Timestamp(),
		Payload:   json.RawMessage(event.Payload()),
	}

	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	subject := subjectFor(p.subjectPrefix, event.Type())
	if _, err := p.js.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	slog.Debug("Published run event",
		"subject", subject,
		"run_id", event.RunID(),
		"type", event.Type())

	return nil
}

// subjectFor maps an event type to its stream subject.
func subjectFor(prefix, eventType string) string {
	var suffix string
	switch eventType {
	case eventstore.TypeRunQueued:
		suffix = "runs.queued"
	case eventstore.TypeRunStarted:
		suffix = "runs.started"
	case eventstore.TypeStageCompleted:
		suffix = "runs.stage"
	case eventstore.TypeRunCompleted:
		suffix = "runs.completed"
	case eventstore.TypeRunFailed:
		suffix = "runs.failed"
	case eventstore.TypeRunReportRecorded:
		suffix = "runs.report"
	default:
		suffix = "runs.other"
	}
	return prefix + "." + suffix
}

// Close closes the NATS connection.
func (p *Publisher) Close() error {
	if p.conn != nil {
		p.conn.Close()
	}
	return nil
}
