package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
)

// JobQueuedEvent announces a freshly enqueued job. Workers consume it as a
// wake-up signal; the queue row itself stays the source of truth.
type JobQueuedEvent struct {
	JobID      string    `json:"jobId"`
	DocumentID string    `json:"documentId"`
	Priority   string    `json:"priority"`
	QueuedAt   time.Time `json:"queuedAt"`
}

type Producer interface {
	JobQueued(ctx context.Context, event JobQueuedEvent) error
	Close() error
}

type kafkaProducer struct {
	writer *kafka.Writer
}

func NewKafkaProducer(brokers []string, topic string) Producer {
	writer := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	}
	return &kafkaProducer{writer: writer}
}

func (p *kafkaProducer) JobQueued(ctx context.Context, event JobQueuedEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.DocumentID),
		Value: payload,
		Time:  time.Now(),
	})
}

func (p *kafkaProducer) Close() error {
	return p.writer.Close()
}
