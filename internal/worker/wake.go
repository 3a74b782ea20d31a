package worker

import (
	"context"
	"log"

	"github.com/segmentio/kafka-go"
)

// Waker is the part of the pool the consumer needs.
type Waker interface {
	Wake()
}

// Consumer feeds wake-up signals into the pool until its context ends.
type Consumer interface {
	Run(ctx context.Context) error
	Close() error
}

type kafkaWaker struct {
	reader *kafka.Reader
	target Waker
	logger *log.Logger
}

// NewKafkaWaker consumes the enqueue-event topic and nudges the pool on
// every message. Events are advisory; the queue rows stay the source of
// truth, so message loss only delays a job until the next poll tick.
func NewKafkaWaker(brokers []string, topic, groupID string, target Waker, logger *log.Logger) Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return &kafkaWaker{reader: reader, target: target, logger: logger}
}

// Run reads messages until ctx is cancelled.
func (w *kafkaWaker) Run(ctx context.Context) error {
	for {
		_, err := w.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.logger.Printf("wake consumer: %v", err)
			continue
		}
		w.target.Wake()
	}
}

func (w *kafkaWaker) Close() error {
	return w.reader.Close()
}
