// Package jobs runs at most one sensing job at a time.
//
// A job clears the readings log, drives the engine against a video source in
// a background goroutine, and records every emitted reading in order. Callers
// either poll Status or block in RunSynchronous for a summary.
package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/psantana5/vitals-engine/pkg/engine"
	"github.com/psantana5/vitals-engine/pkg/models"
	"github.com/psantana5/vitals-engine/pkg/store"
)

const (
	readingBuffer = 64
	sinkQueue     = 256
)

// Result describes a finished job
type Result struct {
	JobID      string
	Video      models.VideoRef
	Readings   []models.Reading
	Summary    *models.Summary
	Outcome    models.JobOutcome
	EngineErr  error
	StartedAt  time.Time
	FinishedAt time.Time
}

type run struct {
	id      string
	video   models.VideoRef
	started time.Time
	done    chan struct{}

	// written by the run goroutine before done is closed
	readings []models.Reading
	err      error
	finished time.Time
}

func (r *run) result() *Result {
	res := &Result{
		JobID:      r.id,
		Video:      r.video,
		Readings:   r.readings,
		Outcome:    models.ClassifyOutcome(r.readings),
		EngineErr:  r.err,
		StartedAt:  r.started,
		FinishedAt: r.finished,
	}
	res.Summary = models.Summarize(r.readings)
	return res
}

// Option configures a Controller
type Option func(*Controller)

// WithObserver attaches a metrics observer
func WithObserver(o Observer) Option {
	return func(c *Controller) {
		if o != nil {
			c.observer = o
		}
	}
}

// WithTracer sets the tracer for job spans; the global provider is used otherwise
func WithTracer(t trace.Tracer) Option {
	return func(c *Controller) {
		if t != nil {
			c.tracer = t
		}
	}
}

// WithSinks forwards recorded readings to the given sinks off the recording
// path. Readings are dropped while the sinks fall behind.
func WithSinks(sinks ...ReadingSink) Option {
	return func(c *Controller) {
		c.sinks = append(c.sinks, sinks...)
	}
}

// Controller owns the job state, the current video reference and the readings log
type Controller struct {
	engine     engine.Engine
	credential string
	log        store.ReadingLog
	observer   Observer
	sinks      []ReadingSink
	tracer     trace.Tracer
	logger     *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	videoMu sync.RWMutex
	video   models.VideoRef

	stateMu sync.RWMutex
	state   models.JobState
	current *run
	last    *run
}

// NewController creates an idle controller
func NewController(eng engine.Engine, credential string, log store.ReadingLog, logger *zap.Logger, opts ...Option) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		engine:     eng,
		credential: credential,
		log:        log,
		observer:   nopObserver{},
		tracer:     otel.Tracer("vitals-engine/jobs"),
		logger:     logger.Named("jobs"),
		ctx:        ctx,
		cancel:     cancel,
		state:      models.JobStateIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StoreVideo replaces the current video reference.
// Returns ErrBusy and leaves the reference alone while a job is running.
func (c *Controller) StoreVideo(ref models.VideoRef) error {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	if models.IsActiveState(c.state) {
		return ErrBusy
	}
	c.setVideo(ref)
	return nil
}

// setVideo requires stateMu
func (c *Controller) setVideo(ref models.VideoRef) {
	c.videoMu.Lock()
	defer c.videoMu.Unlock()
	c.video = ref
}

// Video returns the current video reference
func (c *Controller) Video() (models.VideoRef, bool) {
	c.videoMu.RLock()
	defer c.videoMu.RUnlock()
	return c.video, !c.video.IsZero()
}

// Busy reports whether a job is running
func (c *Controller) Busy() bool {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return models.IsActiveState(c.state)
}

// EngineAvailable reports whether the configured engine can produce readings
func (c *Controller) EngineAvailable() bool {
	return c.engine.Available()
}

// EngineName returns the configured engine name
func (c *Controller) EngineName() string {
	return c.engine.Name()
}

// Readings returns a copy of the readings log
func (c *Controller) Readings() []models.Reading {
	return c.log.Snapshot()
}

// Latest returns the most recent reading, if any
func (c *Controller) Latest() (models.Reading, bool) {
	return c.log.Latest()
}

// Status returns a point-in-time view of the controller
func (c *Controller) Status() models.JobStatus {
	c.stateMu.RLock()
	status := models.JobStatus{State: c.state}
	if c.current != nil {
		status.JobID = c.current.id
	} else if c.last != nil {
		status.JobID = c.last.id
	}
	if c.last != nil {
		if c.last.err != nil {
			status.LastError = c.last.err.Error()
		}
		finished := c.last.finished
		status.LastJobFinishedAt = &finished
	}
	c.stateMu.RUnlock()

	video, ok := c.Video()
	status.HasVideo = ok
	status.VideoPath = video.Path
	status.ReadingsCount = c.log.Len()
	return status
}

// StartJob begins processing in the background and returns the job ID.
// Returns ErrBusy without side effects when a job is already running.
func (c *Controller) StartJob(ref models.VideoRef) (string, error) {
	r, err := c.start(ref)
	if err != nil {
		return "", err
	}
	return r.id, nil
}

// RunSynchronous starts a job and waits for it to finish.
// A cancelled ctx stops the wait only; the job keeps running.
func (c *Controller) RunSynchronous(ctx context.Context, ref models.VideoRef) (*Result, error) {
	r, err := c.start(ref)
	if err != nil {
		return nil, err
	}

	select {
	case <-r.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	res := r.result()
	switch res.Outcome {
	case models.JobOutcomeNoData:
		return res, ErrNoData
	case models.JobOutcomeInconclusive:
		return res, ErrInconclusive
	}
	return res, nil
}

func (c *Controller) start(ref models.VideoRef) (*run, error) {
	if ref.IsZero() {
		return nil, ErrNoVideo
	}

	c.stateMu.Lock()
	if err := models.ValidateTransition(c.state, models.JobStateRunning); err != nil {
		c.stateMu.Unlock()
		c.observer.JobRejected()
		return nil, ErrBusy
	}

	r := &run{
		id:      uuid.NewString(),
		video:   ref,
		started: time.Now(),
		done:    make(chan struct{}),
	}
	c.state = models.JobStateRunning
	c.current = r
	c.log.Reset()
	if ref.Kind != models.VideoSourceCamera {
		c.setVideo(ref)
	}
	c.wg.Add(1)
	c.stateMu.Unlock()

	c.observer.JobStarted()
	c.logger.Info("Job started",
		zap.String("job_id", r.id),
		zap.String("source_kind", string(ref.Kind)),
		zap.String("source", ref.Path))

	go c.execute(r)
	return r, nil
}

func (c *Controller) execute(r *run) {
	defer c.wg.Done()

	ctx, span := c.tracer.Start(c.ctx, "job.run")
	span.SetAttributes(
		attribute.String("job.id", r.id),
		attribute.String("job.source_kind", string(r.video.Kind)),
	)

	defer func() {
		outcome := models.ClassifyOutcome(r.readings)
		duration := r.finished.Sub(r.started)

		span.SetAttributes(
			attribute.Int("job.readings", len(r.readings)),
			attribute.String("job.outcome", string(outcome)),
		)
		if r.err != nil {
			span.RecordError(r.err)
			span.SetStatus(codes.Error, r.err.Error())
		}
		span.End()

		c.observer.JobFinished(outcome, r.err != nil, duration)
		c.finish(r)

		fields := []zap.Field{
			zap.String("job_id", r.id),
			zap.Int("readings", len(r.readings)),
			zap.String("outcome", string(outcome)),
			zap.Duration("duration", duration),
		}
		if r.err != nil {
			c.logger.Warn("Job finished with engine error", append(fields, zap.Error(r.err))...)
		} else {
			c.logger.Info("Job finished", fields...)
		}
	}()

	var fwd *forwarder
	if len(c.sinks) > 0 {
		fwd = newForwarder(r.id, c.sinks, sinkQueue, c.logger)
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			fwd.run(ctx)
		}()
	}

	readings := make(chan models.Reading, readingBuffer)
	consumed := make(chan struct{})
	go func() {
		defer close(consumed)
		for rd := range readings {
			c.record(r, rd, fwd)
		}
	}()

	var sendMu sync.Mutex
	closed := false
	onReading := func(rd models.Reading) {
		sendMu.Lock()
		defer sendMu.Unlock()
		if closed {
			c.logger.Debug("Dropping reading emitted after engine returned", zap.String("job_id", r.id))
			return
		}
		readings <- rd
	}
	onStatus := func(s engine.Status) {
		c.logger.Debug("Engine status",
			zap.String("job_id", r.id),
			zap.Int("code", s.Code),
			zap.String("description", s.Description))
	}

	r.err = c.invoke(ctx, r.video, onReading, onStatus)

	sendMu.Lock()
	closed = true
	close(readings)
	sendMu.Unlock()
	<-consumed
	if fwd != nil {
		fwd.close()
	}

	r.finished = time.Now()
}

// invoke calls the engine and converts a panic into an error
func (c *Controller) invoke(ctx context.Context, ref models.VideoRef, onReading engine.ReadingFunc, onStatus engine.StatusFunc) (err error) {
	defer func() {
		if p := recover(); p != nil {
			c.logger.Error("Engine panicked", zap.Any("panic", p), zap.Stack("stack"))
			err = fmt.Errorf("engine panicked: %v", p)
		}
	}()
	return c.engine.Run(ctx, ref, c.credential, onReading, onStatus)
}

func (c *Controller) record(r *run, rd models.Reading, fwd *forwarder) {
	c.log.Append(rd)
	r.readings = append(r.readings, rd)
	c.observer.ReadingRecorded(rd)
	if fwd != nil {
		fwd.offer(rd)
	}
}

func (c *Controller) finish(r *run) {
	c.stateMu.Lock()
	if err := models.ValidateTransition(c.state, models.JobStateIdle); err != nil {
		c.logger.Error("Unexpected job state at finish", zap.Error(err))
	}
	c.state = models.JobStateIdle
	c.current = nil
	c.last = r
	c.stateMu.Unlock()
	close(r.done)
}

// Wait blocks until the running job and its sink forwarding finish, or ctx expires
func (c *Controller) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close cancels the running job, if any, and waits for it to finish
func (c *Controller) Close() error {
	c.cancel()
	c.wg.Wait()
	return nil
}
