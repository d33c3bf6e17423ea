package events

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promohive/rewards/internal/config"
	"github.com/promohive/rewards/internal/models"
	"github.com/promohive/rewards/pkg/logger"
)

func TestNewPublisher(t *testing.T) {
	log := logger.NewNopLogger()

	p, err := NewPublisher(&config.Config{EventsBackend: config.EventsBackendNone}, log)
	require.NoError(t, err)
	assert.IsType(t, NopPublisher{}, p)
	assert.NoError(t, p.Publish(context.Background(), &models.Event{}))

	p, err = NewPublisher(&config.Config{EventsBackend: config.EventsBackendRedis, RedisURL: "redis://localhost:6379/0"}, log)
	require.NoError(t, err)
	assert.IsType(t, &RedisPublisher{}, p)
	assert.NoError(t, p.Close())

	p, err = NewPublisher(&config.Config{EventsBackend: config.EventsBackendKafka, KafkaBrokers: []string{"localhost:9092"}}, log)
	require.NoError(t, err)
	kp, ok := p.(*KafkaPublisher)
	require.True(t, ok)
	assert.Equal(t, Channel, kp.writer.Topic)
	assert.NoError(t, p.Close())

	_, err = NewPublisher(&config.Config{EventsBackend: config.EventsBackendRedis, RedisURL: "://bad"}, log)
	assert.Error(t, err)

	_, err = NewPublisher(&config.Config{EventsBackend: config.EventsBackendKafka}, log)
	assert.Error(t, err)

	_, err = NewPublisher(&config.Config{EventsBackend: "nats"}, log)
	assert.Error(t, err)
}

func TestEncode(t *testing.T) {
	payload, err := encode(&models.Event{Type: models.EventWithdrawalCompleted, UserID: 7, Amount: 1000, Timestamp: 1700000000})
	require.NoError(t, err)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(payload, &got))
	assert.Equal(t, "withdrawal.completed", got["event_type"])
	assert.EqualValues(t, 7, got["user_id"])
	assert.EqualValues(t, 1000, got["amount"])
	assert.NotContains(t, got, "detail")
}
