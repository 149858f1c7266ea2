package jobs

import "errors"

var (
	// ErrBusy is returned when a job is already running
	ErrBusy = errors.New("processing already in progress")

	// ErrNoData means the engine finished without emitting any readings
	ErrNoData = errors.New("no vitals data extracted from video")

	// ErrInconclusive means readings arrived but none carried a heart or breathing rate
	ErrInconclusive = errors.New("readings contained no heart or breathing rate")

	// ErrNoVideo means a run was requested with nothing to process
	ErrNoVideo = errors.New("no video source available")
)
