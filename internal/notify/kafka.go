package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type kafkaSink struct {
	writer messageWriter
}

// NewKafkaSink publishes each notification as a JSON document keyed by
// customer, so one customer's notifications stay on one partition.
func NewKafkaSink(brokers []string, topic string) Sink {
	return &kafkaSink{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.LeastBytes{},
		},
	}
}

func (s *kafkaSink) Name() string { return "kafka" }

type kafkaEnvelope struct {
	ID       int64   `json:"id"`
	Audience string  `json:"audience"`
	Payload  Payload `json:"payload"`
}

func kafkaMessage(n Notification) (kafka.Message, error) {
	data, err := json.Marshal(kafkaEnvelope{ID: n.ID, Audience: n.Audience, Payload: n.Payload})
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encode kafka notification: %w", err)
	}
	key := "notification-" + strconv.FormatInt(n.ID, 10)
	if n.CustomerID > 0 {
		key = "customer-" + strconv.FormatInt(n.CustomerID, 10)
	}
	return kafka.Message{
		Key:   []byte(key),
		Value: data,
		Headers: []kafka.Header{
			{Key: "category", Value: []byte(n.Category)},
		},
	}, nil
}

func (s *kafkaSink) Deliver(ctx context.Context, n Notification) error {
	msg, err := kafkaMessage(n)
	if err != nil {
		return err
	}
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish kafka notification: %w", err)
	}
	return nil
}

func (s *kafkaSink) Close() error {
	return s.writer.Close()
}
