// Package events ships committed domain events to an external bus.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/promohive/rewards/internal/config"
	"github.com/promohive/rewards/internal/models"
	"github.com/promohive/rewards/pkg/logger"
)

// Channel is the redis channel and the default kafka topic.
const Channel = "promohive:events"

// NewPublisher builds the publisher selected by EVENTS_BACKEND.
func NewPublisher(cfg *config.Config, logger *logger.Logger) (models.EventPublisher, error) {
	switch cfg.EventsBackend {
	case config.EventsBackendRedis:
		return NewRedisPublisher(cfg.RedisURL, Channel, logger)
	case config.EventsBackendKafka:
		topic := cfg.KafkaTopic
		if topic == "" {
			topic = Channel
		}
		return NewKafkaPublisher(cfg.KafkaBrokers, topic, logger)
	case config.EventsBackendNone, "":
		return NopPublisher{}, nil
	default:
		return nil, fmt.Errorf("unknown events backend %q", cfg.EventsBackend)
	}
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, *models.Event) error { return nil }
func (NopPublisher) Close() error                                 { return nil }

func encode(event *models.Event) ([]byte, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}
	return payload, nil
}
