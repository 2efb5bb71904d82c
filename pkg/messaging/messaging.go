// Package messaging publishes domain events to the outside world.
package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	kafkaGo "github.com/segmentio/kafka-go"

	"github.com/shashiranjanraj/storefront/config"
	"github.com/shashiranjanraj/storefront/pkg/logger"
)

// Publisher sends one keyed event to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, event any) error
	Close() error
}

// New returns a Kafka publisher when KAFKA_BROKERS is set, otherwise a
// publisher that only logs.
func New() Publisher {
	brokers := config.KafkaBrokers()
	if len(brokers) == 0 {
		return LogPublisher{}
	}
	return NewKafkaPublisher(brokers)
}

// ─── Kafka ────────────────────────────────────────────────────────────────────

// KafkaPublisher keeps one writer per topic for the life of the process.
type KafkaPublisher struct {
	brokers []string
	mu      sync.Mutex
	writers map[string]*kafkaGo.Writer
}

func NewKafkaPublisher(brokers []string) *KafkaPublisher {
	return &KafkaPublisher{brokers: brokers, writers: map[string]*kafkaGo.Writer{}}
}

func (k *KafkaPublisher) writer(topic string) *kafkaGo.Writer {
	k.mu.Lock()
	defer k.mu.Unlock()

	w, ok := k.writers[topic]
	if !ok {
		w = &kafkaGo.Writer{
			Addr:         kafkaGo.TCP(k.brokers...),
			Topic:        topic,
			Balancer:     &kafkaGo.Hash{},
			RequiredAcks: kafkaGo.RequireAll,
			WriteTimeout: 5 * time.Second,
		}
		k.writers[topic] = w
	}
	return w
}

// Publish keys messages so every event for one order lands on one partition.
func (k *KafkaPublisher) Publish(ctx context.Context, topic, key string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("messaging: marshal event: %w", err)
	}

	if err := k.writer(topic).WriteMessages(ctx, kafkaGo.Message{
		Key:   []byte(key),
		Value: payload,
	}); err != nil {
		return fmt.Errorf("messaging: write %s: %w", topic, err)
	}
	return nil
}

func (k *KafkaPublisher) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()

	var first error
	for topic, w := range k.writers {
		if err := w.Close(); err != nil && first == nil {
			first = fmt.Errorf("messaging: close %s: %w", topic, err)
		}
	}
	k.writers = map[string]*kafkaGo.Writer{}
	return first
}

// ─── Log only ─────────────────────────────────────────────────────────────────

// LogPublisher drops events after logging them at debug level.
type LogPublisher struct{}

func (LogPublisher) Publish(ctx context.Context, topic, key string, _ any) error {
	logger.WithCtx(ctx).Debug("messaging: no brokers configured, event dropped", "topic", topic, "key", key)
	return nil
}

func (LogPublisher) Close() error { return nil }

// ─── Memory ───────────────────────────────────────────────────────────────────

// Message is an event captured by MemoryPublisher.
type Message struct {
	Topic string
	Key   string
	Value []byte
}

// MemoryPublisher records events; used by tests.
type MemoryPublisher struct {
	mu       sync.Mutex
	messages []Message
	Err      error
}

func (m *MemoryPublisher) Publish(_ context.Context, topic, key string, event any) error {
	if m.Err != nil {
		return m.Err
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.messages = append(m.messages, Message{Topic: topic, Key: key, Value: payload})
	m.mu.Unlock()
	return nil
}

func (m *MemoryPublisher) Messages() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.messages...)
}

func (m *MemoryPublisher) Close() error { return nil }
