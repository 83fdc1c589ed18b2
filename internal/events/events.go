// Package events announces finished collection reports on Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/DeafMist/kpop-radar/backend/internal/models"
)

const (
	writeAttempts = 3
	baseBackoff   = 200 * time.Millisecond
	batchTimeout  = 5 * time.Millisecond
)

// Publisher announces a collected report. Publishing is best effort and never
// fails the caller.
type Publisher interface {
	Publish(ctx context.Context, report *models.ContentReport)
	Close() error
}

// Nop drops every report. It is used when no brokers are configured.
type Nop struct{}

func (Nop) Publish(context.Context, *models.ContentReport) {}
func (Nop) Close() error                                   { return nil }

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes one message per report, keyed by keyword display.
type KafkaPublisher struct {
	w       messageWriter
	log     *slog.Logger
	backoff time.Duration
}

// NewKafka builds a publisher for topic on brokers.
func NewKafka(brokers []string, topic string, logger *slog.Logger) *KafkaPublisher {
	return newKafka(newWriter(brokers, topic), logger, baseBackoff)
}

// newWriter sends each report as soon as it is written. Publish is called
// with one message at a time, so batching would only add latency.
func newWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		RequiredAcks:           kafka.RequireOne,
		MaxAttempts:            writeAttempts,
		BatchSize:              1,
		BatchTimeout:           batchTimeout,
	}
}

// NewWithWriter wraps an existing writer; tests use it with a fake.
func NewWithWriter(w messageWriter, logger *slog.Logger) *KafkaPublisher {
	return newKafka(w, logger, time.Millisecond)
}

func newKafka(w messageWriter, logger *slog.Logger, backoff time.Duration) *KafkaPublisher {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &KafkaPublisher{w: w, log: logger, backoff: backoff}
}

// Publish writes report, retrying with exponential backoff. Failures are
// logged and dropped.
func (p *KafkaPublisher) Publish(ctx context.Context, report *models.ContentReport) {
	if report == nil {
		return
	}

	msg, err := Message(report)
	if err != nil {
		p.log.Warn("encode report event", slog.String("keyword", report.Keyword), slog.Any("err", err))
		return
	}

	for attempt := range writeAttempts {
		err = p.w.WriteMessages(ctx, msg)
		if err == nil {
			return
		}
		if attempt == writeAttempts-1 {
			break
		}

		backoff := p.backoff << attempt
		p.log.Warn("publish report failed, retrying",
			slog.String("keyword", report.Keyword),
			slog.Int("attempt", attempt+1),
			slog.Duration("backoff", backoff),
			slog.Any("err", err),
		)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return
		}
	}
	p.log.Error("publish report exhausted retries", slog.String("keyword", report.Keyword), slog.Any("err", err))
}

func (p *KafkaPublisher) Close() error {
	return p.w.Close()
}

// Message encodes report as a Kafka message.
func Message(report *models.ContentReport) (kafka.Message, error) {
	value, err := json.Marshal(report)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal report: %w", err)
	}
	counts, err := json.Marshal(report.CountsBySource)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal source counts: %w", err)
	}

	return kafka.Message{
		Key:   []byte(report.Keyword),
		Value: value,
		Headers: []kafka.Header{
			{Key: "collected_at", Value: []byte(report.CollectedAt.UTC().Format(time.RFC3339))},
			{Key: "source_counts", Value: counts},
		},
	}, nil
}
