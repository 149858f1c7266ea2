package jobs

import (
	"context"

	"go.uber.org/zap"

	"github.com/psantana5/vitals-engine/pkg/models"
)

// forwarder publishes one job's readings to the sinks on its own goroutine.
// offer never blocks; a full queue drops the reading.
type forwarder struct {
	jobID  string
	sinks  []ReadingSink
	queue  chan models.Reading
	logger *zap.Logger

	// owned by the recording goroutine
	dropped int
}

func newForwarder(jobID string, sinks []ReadingSink, size int, logger *zap.Logger) *forwarder {
	return &forwarder{
		jobID:  jobID,
		sinks:  sinks,
		queue:  make(chan models.Reading, size),
		logger: logger,
	}
}

func (f *forwarder) offer(rd models.Reading) {
	select {
	case f.queue <- rd:
	default:
		f.dropped++
		f.logger.Debug("Sink queue full, dropping reading",
			zap.String("job_id", f.jobID),
			zap.Int64("timestamp_ms", rd.TimestampMs))
	}
}

// close stops accepting readings; run drains what is queued
func (f *forwarder) close() {
	close(f.queue)
	if f.dropped > 0 {
		f.logger.Info("Readings dropped before reaching sinks",
			zap.String("job_id", f.jobID),
			zap.Int("dropped", f.dropped))
	}
}

func (f *forwarder) run(ctx context.Context) {
	for rd := range f.queue {
		if ctx.Err() != nil {
			continue
		}
		for _, sink := range f.sinks {
			if err := sink.Publish(ctx, f.jobID, rd); err != nil {
				f.logger.Warn("Failed to publish reading",
					zap.String("job_id", f.jobID),
					zap.Error(err))
			}
		}
	}
}
