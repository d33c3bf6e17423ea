package events

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/promohive/rewards/internal/models"
	"github.com/promohive/rewards/pkg/logger"
)

// KafkaPublisher writes events to a kafka topic keyed by user id, so one
// user's events stay ordered within a partition.
type KafkaPublisher struct {
	writer *kafka.Writer
	logger *logger.Logger
}

func NewKafkaPublisher(brokers []string, topic string, logger *logger.Logger) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka backend needs at least one broker")
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
	}
	return &KafkaPublisher{writer: writer, logger: logger.Named("events")}, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, event *models.Event) error {
	payload, err := encode(event)
	if err != nil {
		return err
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatInt(event.UserID, 10)),
		Value: payload,
		Time:  time.Unix(event.Timestamp, 0),
	})
	if err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	p.logger.Debug("Published event", "type", event.Type, "user_id", event.UserID, "topic", p.writer.Topic)
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
