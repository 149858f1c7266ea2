package models

import (
	"time"
)

// VideoSourceKind distinguishes uploaded files from capture devices
type VideoSourceKind string

const (
	VideoSourceFile   VideoSourceKind = "file"
	VideoSourceCamera VideoSourceKind = "camera"
)

// VideoRef points the sensing engine at its input.
type VideoRef struct {
	Kind VideoSourceKind `json:"kind"`
	Path string          `json:"path"`
	// Duration is an advisory bound for camera sources, passed through to the engine
	Duration time.Duration `json:"duration,omitempty"`
}

// FileRef builds a reference to a persisted video file
func FileRef(path string) VideoRef {
	return VideoRef{Kind: VideoSourceFile, Path: path}
}

// CameraRef builds a reference to a capture device
func CameraRef(device string, duration time.Duration) VideoRef {
	return VideoRef{Kind: VideoSourceCamera, Path: device, Duration: duration}
}

// IsZero reports whether the reference points at nothing
func (v VideoRef) IsZero() bool {
	return v.Path == ""
}

// JobStatus is a point-in-time view of the job controller
type JobStatus struct {
	State             JobState   `json:"state"`
	JobID             string     `json:"job_id,omitempty"`
	HasVideo          bool       `json:"video_file_uploaded"`
	VideoPath         string     `json:"video_file_path"`
	ReadingsCount     int        `json:"readings_count"`
	LastError         string     `json:"last_error,omitempty"`
	LastJobFinishedAt *time.Time `json:"last_job_finished_at,omitempty"`
}

// JobOutcome classifies how a finished job ended
type JobOutcome string

const (
	JobOutcomeReadings     JobOutcome = "readings"
	JobOutcomeInconclusive JobOutcome = "inconclusive"
	JobOutcomeNoData       JobOutcome = "no_data"
)

// ClassifyOutcome derives the outcome of a finished job from its readings
func ClassifyOutcome(readings []Reading) JobOutcome {
	if len(readings) == 0 {
		return JobOutcomeNoData
	}
	for _, r := range readings {
		if r.HasSignal() {
			return JobOutcomeReadings
		}
	}
	return JobOutcomeInconclusive
}
