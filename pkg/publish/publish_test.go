package publish

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/psantana5/vitals-engine/pkg/config"
	"github.com/psantana5/vitals-engine/pkg/models"
)

func TestEncode(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	payload, err := encode("job-1", models.NewReading(1000, models.Rate(72), nil), now)
	require.NoError(t, err)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(payload, &got))
	assert.Equal(t, "job-1", got["job_id"])
	assert.Equal(t, 1000.0, got["timestamp_ms"])
	assert.Equal(t, 72.0, got["heart_rate_bpm"])
	assert.NotContains(t, got, "breathing_rate_bpm")
	assert.Equal(t, models.SourcePresageSDK, got["source"])
	assert.Equal(t, "2025-01-02T03:04:05Z", got["published_at"])
}

func TestRedisStreamSink(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	sink, err := NewRedisStreamSink(ctx, config.RedisConfig{Addr: mr.Addr(), Stream: "vitals:readings", MaxLen: 100})
	require.NoError(t, err)
	defer sink.Close()

	require.NoError(t, sink.Publish(ctx, "job-1", models.NewReading(1000, models.Rate(70), models.Rate(14))))
	require.NoError(t, sink.Publish(ctx, "job-1", models.NewReading(2000, models.Rate(72), nil)))

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	entries, err := client.XRange(ctx, "vitals:readings", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "job-1", entries[0].Values["job_id"])
	assert.Equal(t, "1000", entries[0].Values["timestamp_ms"])
	assert.Equal(t, "2000", entries[1].Values["timestamp_ms"])

	var msg Message
	require.NoError(t, json.Unmarshal([]byte(entries[1].Values["data"].(string)), &msg))
	assert.Equal(t, "job-1", msg.JobID)
	assert.Equal(t, 72.0, *msg.HeartRateBPM)
}

func TestRedisStreamSinkUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedisStreamSink(context.Background(), config.RedisConfig{Addr: addr, Stream: "s"})
	assert.Error(t, err)
}

func TestOpen(t *testing.T) {
	mr := miniredis.RunT(t)

	sinks := Open(context.Background(), config.PublishConfig{
		Redis: config.RedisConfig{Addr: mr.Addr(), Stream: "vitals:readings"},
	}, zap.NewNop())
	require.Len(t, sinks, 1)
	assert.Equal(t, "redis", sinks[0].Name())
	assert.NoError(t, CloseAll(sinks))

	assert.Empty(t, Open(context.Background(), config.PublishConfig{}, zap.NewNop()))
}

func TestOpenSkipsUnreachableBroker(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	sinks := Open(ctx, config.PublishConfig{
		MQTT: config.MQTTConfig{Broker: "tcp://127.0.0.1:1", Topic: "vitals/readings", ClientID: "test"},
	}, zap.NewNop())
	assert.Empty(t, sinks)
}
