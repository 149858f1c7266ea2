package publish

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/psantana5/vitals-engine/pkg/config"
	"github.com/psantana5/vitals-engine/pkg/models"
)

// RedisStreamSink appends each reading to a Redis stream
type RedisStreamSink struct {
	client *redis.Client
	stream string
	maxLen int64
}

// NewRedisStreamSink connects and pings the server
func NewRedisStreamSink(ctx context.Context, cfg config.RedisConfig) (*RedisStreamSink, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}

	return &RedisStreamSink{client: client, stream: cfg.Stream, maxLen: cfg.MaxLen}, nil
}

// Name returns the sink name
func (s *RedisStreamSink) Name() string {
	return "redis"
}

// Publish XADDs one reading with its JSON encoding under "data"
func (s *RedisStreamSink) Publish(ctx context.Context, jobID string, r models.Reading) error {
	now := time.Now()
	payload, err := encode(jobID, r, now)
	if err != nil {
		return err
	}

	args := &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]interface{}{
			"job_id":       jobID,
			"timestamp_ms": strconv.FormatInt(r.TimestampMs, 10),
			"data":         string(payload),
			"published_at": strconv.FormatInt(now.Unix(), 10),
		},
	}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}

	if err := s.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("failed to add reading to stream %s: %w", s.stream, err)
	}
	return nil
}

// Close releases the connection pool
func (s *RedisStreamSink) Close() error {
	return s.client.Close()
}
