// Package audit publishes conversation audit events to Kafka.
package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

// Event types recorded on the audit stream. A failed transcription still
// counts as a received voice message.
const (
	EventMessageReceived = "message_received"
	EventReplySent       = "reply_sent"
	EventStageFailed     = "stage_failed"
)

// Event is one audit record, keyed by user id on the topic.
type Event struct {
	Type      string    `json:"type"`
	Channel   string    `json:"channel"`
	UserID    string    `json:"user_id"`
	TraceID   string    `json:"trace_id"`
	Kind      string    `json:"kind,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher writes audit events to a Kafka topic, best effort. A nil
// Publisher is valid and drops everything.
type Publisher struct {
	writer *kafka.Writer
}

// NewPublisher creates a Kafka audit publisher for the given brokers and topic.
func NewPublisher(brokers, topic string) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(strings.Split(brokers, ",")...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			Async:        true,
		},
	}
}

// Publish records an event. Failures are logged and swallowed: the audit
// trail must never block or fail the reply path.
func (p *Publisher) Publish(ctx context.Context, evt Event) {
	if p == nil {
		return
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	value, err := json.Marshal(evt)
	if err != nil {
		slog.Warn("Audit event marshal failed", "type", evt.Type, "error", err)
		return
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(evt.UserID),
		Value: value,
	})
	if err != nil {
		slog.Warn("Audit publish failed", "type", evt.Type, "error", err)
	}
}

// Close flushes and closes the writer.
func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	return p.writer.Close()
}
