// Package publish forwards readings to message brokers while a job runs.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/psantana5/vitals-engine/pkg/config"
	"github.com/psantana5/vitals-engine/pkg/models"
	"github.com/psantana5/vitals-engine/pkg/retry"
)

// Sink receives readings as they are recorded
type Sink interface {
	Name() string
	Publish(ctx context.Context, jobID string, r models.Reading) error
	Close() error
}

// Message is the broker payload for one reading
type Message struct {
	JobID string `json:"job_id"`
	models.Reading
	PublishedAt time.Time `json:"published_at"`
}

func encode(jobID string, r models.Reading, now time.Time) ([]byte, error) {
	payload, err := json.Marshal(Message{JobID: jobID, Reading: r, PublishedAt: now.UTC()})
	if err != nil {
		return nil, fmt.Errorf("failed to encode reading: %w", err)
	}
	return payload, nil
}

// Open connects every configured sink. A sink whose broker stays unreachable
// after retries is skipped with a warning; readings are best-effort.
func Open(ctx context.Context, cfg config.PublishConfig, logger *zap.Logger) []Sink {
	var sinks []Sink
	backoff := retry.DefaultConfig()

	connect := func(name string, fn func() (Sink, error)) {
		var sink Sink
		err := retry.Do(ctx, backoff, func() error {
			s, err := fn()
			if err != nil {
				return err
			}
			sink = s
			return nil
		}, func(attempt int, err error, wait time.Duration) {
			logger.Warn("Sink connect failed, retrying",
				zap.String("sink", name),
				zap.Int("attempt", attempt),
				zap.Duration("wait", wait),
				zap.Error(err))
		})
		if err != nil {
			logger.Warn("Reading sink disabled", zap.String("sink", name), zap.Error(err))
			return
		}
		logger.Info("Reading sink connected", zap.String("sink", sink.Name()))
		sinks = append(sinks, sink)
	}

	if cfg.MQTT.Broker != "" {
		connect("mqtt", func() (Sink, error) { return NewMQTTSink(cfg.MQTT, logger) })
	}
	if cfg.Redis.Addr != "" {
		connect("redis", func() (Sink, error) { return NewRedisStreamSink(ctx, cfg.Redis) })
	}
	return sinks
}

// CloseAll closes every sink, returning the first error
func CloseAll(sinks []Sink) error {
	var first error
	for _, s := range sinks {
		if err := s.Close(); err != nil && first == nil {
			first = fmt.Errorf("failed to close %s: %w", s.Name(), err)
		}
	}
	return first
}
