package notify

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/segmentio/kafka-go"

	"leadflow/internal/customer"
)

type fakeWriter struct {
	messages []kafka.Message
	closed   bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaSinkKeysByCustomer(t *testing.T) {
	writer := &fakeWriter{}
	sink := &kafkaSink{writer: writer}

	n := Notification{
		ID:         7,
		Audience:   "sales",
		Category:   CategoryLevelCrossed,
		CustomerID: 42,
		Payload: Payload{
			CustomerID:    42,
			Category:      CategoryLevelCrossed,
			PreviousLevel: customer.LevelB,
			NewLevel:      customer.LevelA,
		},
	}
	if err := sink.Deliver(context.Background(), n); err != nil {
		t.Fatalf("Deliver failed: %v", err)
	}
	if len(writer.messages) != 1 {
		t.Fatalf("expected one message, got %d", len(writer.messages))
	}
	msg := writer.messages[0]
	if string(msg.Key) != "customer-42" {
		t.Fatalf("unexpected key %q", msg.Key)
	}
	var envelope kafkaEnvelope
	if err := json.Unmarshal(msg.Value, &envelope); err != nil {
		t.Fatalf("decode message: %v", err)
	}
	if envelope.ID != 7 || envelope.Payload.NewLevel != customer.LevelA {
		t.Fatalf("unexpected envelope %+v", envelope)
	}
	if len(msg.Headers) != 1 || string(msg.Headers[0].Value) != string(CategoryLevelCrossed) {
		t.Fatalf("unexpected headers %+v", msg.Headers)
	}

	if err := sink.Close(); err != nil || !writer.closed {
		t.Fatalf("expected writer to close, err=%v", err)
	}
}

func TestKafkaMessageWithoutCustomer(t *testing.T) {
	msg, err := kafkaMessage(Notification{ID: 3, Category: CategoryTaskCompleted})
	if err != nil {
		t.Fatalf("kafkaMessage failed: %v", err)
	}
	if string(msg.Key) != "notification-3" {
		t.Fatalf("unexpected key %q", msg.Key)
	}
}
