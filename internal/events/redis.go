package events

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/promohive/rewards/internal/models"
	"github.com/promohive/rewards/pkg/logger"
)

// RedisPublisher publishes events on a redis pub/sub channel.
type RedisPublisher struct {
	rdb     *redis.Client
	channel string
	logger  *logger.Logger
}

func NewRedisPublisher(url, channel string, logger *logger.Logger) (*RedisPublisher, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return NewRedisPublisherWithClient(redis.NewClient(opts), channel, logger), nil
}

func NewRedisPublisherWithClient(rdb *redis.Client, channel string, logger *logger.Logger) *RedisPublisher {
	return &RedisPublisher{rdb: rdb, channel: channel, logger: logger.Named("events")}
}

func (p *RedisPublisher) Publish(ctx context.Context, event *models.Event) error {
	payload, err := encode(event)
	if err != nil {
		return err
	}
	if err := p.rdb.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	p.logger.Debug("Published event", "type", event.Type, "user_id", event.UserID, "channel", p.channel)
	return nil
}

func (p *RedisPublisher) Close() error {
	return p.rdb.Close()
}
