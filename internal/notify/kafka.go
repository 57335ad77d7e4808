package notify

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"

	"github.com/pvoronin/claimroute/internal/model"
)

// KafkaHook publishes committed assignments to a Kafka topic so queue
// views elsewhere can refresh. Messages are keyed by claim id, keeping
// per-claim ordering within a partition.
type KafkaHook struct {
	writer *kafka.Writer
}

// NewKafkaHook creates a hook writing to the given brokers and topic
func NewKafkaHook(brokers []string, topic string) *KafkaHook {
	return &KafkaHook{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.LeastBytes{},
		},
	}
}

// AssignmentCommitted publishes the committed record
func (h *KafkaHook) AssignmentCommitted(ctx context.Context, rec model.AssignmentRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	return h.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(rec.ClaimID),
		Value: data,
	})
}

// Close closes the underlying writer
func (h *KafkaHook) Close() error {
	return h.writer.Close()
}
