package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/ripplekit/storebridge/internal/core"
	"github.com/segmentio/kafka-go"
)

// KafkaConfig holds settings for the Kafka-backed outbox.
type KafkaConfig struct {
	Brokers      []string      `yaml:"brokers" json:"brokers"`
	Topic        string        `yaml:"topic" json:"topic"`
	GroupID      string        `yaml:"group_id,omitempty" json:"group_id,omitempty"`
	BatchTimeout time.Duration `yaml:"batch_timeout,omitempty" json:"batch_timeout,omitempty"`
	WriteTimeout time.Duration `yaml:"write_timeout,omitempty" json:"write_timeout,omitempty"`
}

// KafkaQueue publishes change events to a Kafka topic and reads them back
// through a consumer group, giving the change feed durability and
// multi-consumer fan-out.
type KafkaQueue struct {
	writer *kafka.Writer
	reader *kafka.Reader
	mu     sync.RWMutex
	closed bool
}

// NewKafkaQueue creates a Kafka-backed outbox queue.
func NewKafkaQueue(cfg KafkaConfig) (*KafkaQueue, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("at least one Kafka broker is required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("Kafka topic is required")
	}
	if cfg.GroupID == "" {
		cfg.GroupID = "storebridge-outbox"
	}
	if cfg.BatchTimeout == 0 {
		cfg.BatchTimeout = 100 * time.Millisecond
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 10 * time.Second
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: cfg.BatchTimeout,
		WriteTimeout: cfg.WriteTimeout,
		RequiredAcks: kafka.RequireOne,
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: cfg.Brokers,
		Topic:   cfg.Topic,
		GroupID: cfg.GroupID,
		MaxWait: 500 * time.Millisecond,
	})
	return &KafkaQueue{writer: writer, reader: reader}, nil
}

// Enqueue publishes one event, keyed by table so per-table ordering is
// preserved within a partition.
func (q *KafkaQueue) Enqueue(ctx context.Context, event *core.ChangeEvent) error {
	q.mu.RLock()
	closed := q.closed
	q.mu.RUnlock()
	if closed {
		return ErrQueueClosed
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal change event: %w", err)
	}
	if err := q.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.Table),
		Value: data,
	}); err != nil {
		return fmt.Errorf("failed to publish change event: %w", err)
	}
	return nil
}

// Dequeue reads up to batchSize events. It returns early once the read
// for the next message would block past the reader's max wait.
func (q *KafkaQueue) Dequeue(ctx context.Context, batchSize int) ([]*core.ChangeEvent, error) {
	q.mu.RLock()
	closed := q.closed
	q.mu.RUnlock()
	if closed {
		return nil, ErrQueueClosed
	}
	if batchSize <= 0 {
		batchSize = 100
	}

	events := make([]*core.ChangeEvent, 0, batchSize)
	for i := 0; i < batchSize; i++ {
		readCtx, cancel := context.WithTimeout(ctx, time.Second)
		msg, err := q.reader.ReadMessage(readCtx)
		cancel()
		if err != nil {
			if len(events) > 0 {
				return events, nil
			}
			if ctx.Err() != nil {
				return events, ctx.Err()
			}
			return events, nil
		}
		var event core.ChangeEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			return events, fmt.Errorf("failed to unmarshal change event: %w", err)
		}
		events = append(events, &event)
	}
	return events, nil
}

// Close closes the writer and reader.
func (q *KafkaQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	q.closed = true
	if err := q.writer.Close(); err != nil {
		q.reader.Close()
		return fmt.Errorf("failed to close Kafka writer: %w", err)
	}
	if err := q.reader.Close(); err != nil {
		return fmt.Errorf("failed to close Kafka reader: %w", err)
	}
	return nil
}
