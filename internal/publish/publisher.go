// Package publish defines the outward decision sink. The control core hands
// a sink (topic, decision) pairs and does not manage delivery, retries, or
// connection state. Those belong to the messaging collaborator behind the
// interface.
package publish

import (
	"log/slog"
	"sync"

	"github.com/voltaic-sim/control-core/pkg/models"
)

// TopicDecisions is the topic the control loop publishes decisions on.
const TopicDecisions = "plant/control/decision"

// Sink receives decisions for delivery.
type Sink interface {
	Publish(topic string, d models.Decision) error
}

// LogSink writes every published decision to a structured logger. Used as
// the default sink when no external bus is wired.
type LogSink struct {
	log *slog.Logger
}

func NewLogSink(log *slog.Logger) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) Publish(topic string, d models.Decision) error {
	s.log.Info("decision published", "topic", topic, "decision", d.Flatten())
	return nil
}

// Message is one published (topic, decision) pair.
type Message struct {
	Topic    string
	Decision models.Decision
}

// MemorySink retains published messages in memory. Used by tests and the
// HTTP inspection endpoints.
type MemorySink struct {
	mu       sync.Mutex
	messages []Message
	limit    int
}

// NewMemorySink creates a sink retaining at most limit messages (oldest
// evicted). A non-positive limit keeps everything.
func NewMemorySink(limit int) *MemorySink {
	return &MemorySink{limit: limit}
}

func (s *MemorySink) Publish(topic string, d models.Decision) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, Message{Topic: topic, Decision: d})
	if s.limit > 0 && len(s.messages) > s.limit {
		s.messages = s.messages[len(s.messages)-s.limit:]
	}
	return nil
}

// Messages returns a copy of the retained messages, oldest first.
func (s *MemorySink) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Fanout publishes to several sinks in order, returning the first error
// after attempting all of them.
type Fanout []Sink

func (f Fanout) Publish(topic string, d models.Decision) error {
	var firstErr error
	for _, sink := range f {
		if err := sink.Publish(topic, d); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
