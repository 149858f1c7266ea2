package jobs

import (
	"context"
	"time"

	"github.com/psantana5/vitals-engine/pkg/models"
)

// Observer receives job lifecycle events for metrics
type Observer interface {
	JobStarted()
	JobRejected()
	JobFinished(outcome models.JobOutcome, failed bool, duration time.Duration)
	ReadingRecorded(r models.Reading)
}

// ReadingSink forwards readings to external consumers while a job runs
type ReadingSink interface {
	Publish(ctx context.Context, jobID string, r models.Reading) error
}

type nopObserver struct{}

func (nopObserver) JobStarted()                                        {}
func (nopObserver) JobRejected()                                       {}
func (nopObserver) JobFinished(models.JobOutcome, bool, time.Duration) {}
func (nopObserver) ReadingRecorded(models.Reading)                     {}
