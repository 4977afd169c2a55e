// Package publish ships completed pipeline results to an external sink.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"call-insights-go/internal/logger"
	"call-insights-go/internal/metrics"
)

// Publisher delivers one result keyed by its request id.
type Publisher interface {
	Publish(ctx context.Context, key string, v any) error
	Close() error
}

// Nop drops every result. Used when no brokers are configured.
type Nop struct{}

func (Nop) Publish(context.Context, string, any) error { return nil }
func (Nop) Close() error                               { return nil }

type Config struct {
	Brokers []string
	Topic   string
}

// messageWriter is the subset of *kafka.Writer the publisher needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Kafka struct {
	w       messageWriter
	topic   string
	metrics *metrics.Metrics
	log     *logger.Logger
}

// New returns a Kafka publisher, or Nop when cfg has no brokers.
func New(cfg Config, m *metrics.Metrics, log *logger.Logger) Publisher {
	if log == nil {
		log = logger.New()
	}
	log = log.WithComponent("publish")
	if len(cfg.Brokers) == 0 {
		log.Info("kafka disabled, results are not published")
		return Nop{}
	}
	if cfg.Topic == "" {
		cfg.Topic = "call-insights"
	}

	dialer := &kafka.Dialer{Timeout: 10 * time.Second, DualStack: true}
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Transport:    &kafka.Transport{Dial: dialer.DialFunc},
	}
	log.WithField("brokers", cfg.Brokers).WithField("topic", cfg.Topic).Info("kafka publisher initialized")
	return newKafka(w, cfg.Topic, m, log)
}

func newKafka(w messageWriter, topic string, m *metrics.Metrics, log *logger.Logger) *Kafka {
	return &Kafka{w: w, topic: topic, metrics: m, log: log}
}

func (k *Kafka) Publish(ctx context.Context, key string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "content-type", Value: []byte("application/json")},
		},
	}
	err = k.w.WriteMessages(ctx, msg)
	k.metrics.Call("kafka", err)
	if err != nil {
		return fmt.Errorf("write to %s: %w", k.topic, err)
	}
	k.log.WithField("topic", k.topic).WithField("key", key).Debug("result published")
	return nil
}

func (k *Kafka) Close() error {
	return k.w.Close()
}
