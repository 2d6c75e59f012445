package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"qarelease/internal/models"

	"github.com/segmentio/kafka-go"
)

type kafkaNotifier struct {
	writer *kafka.Writer
}

// NewKafkaNotifier публикует сигналы размещения в складской топик.
func NewKafkaNotifier(brokers []string, topic string) WarehouseNotifier {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireAll,
	}

	return &kafkaNotifier{writer: writer}
}

func (n *kafkaNotifier) Notify(ctx context.Context, release *models.Release) error {
	msg := newPutawayMessage(release)

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal putaway message: %w", err)
	}

	err = n.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(release.ReleaseNumber),
		Value: payload,
	})
	if err != nil {
		return fmt.Errorf("failed to publish putaway message: %w", err)
	}

	return nil
}

func (n *kafkaNotifier) Close() error {
	return n.writer.Close()
}
