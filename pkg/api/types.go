package api

import (
	"time"

	"github.com/psantana5/vitals-engine/pkg/models"
)

// ErrorResponse is the body of every non-2xx JSON response
type ErrorResponse struct {
	Success           *bool  `json:"success,omitempty"`
	Error             string `json:"error"`
	Message           string `json:"message,omitempty"`
	ReadingsCollected *int   `json:"readings_collected,omitempty"`
	VideoFile         string `json:"video_file,omitempty"`
	JobID             string `json:"job_id,omitempty"`
}

// ProcessResponse is returned by POST /process-video on success
type ProcessResponse struct {
	Success            bool            `json:"success"`
	Vitals             *models.Summary `json:"vitals"`
	ProcessingComplete bool            `json:"processing_complete"`
	VideoFile          string          `json:"video_file"`
	DataSource         string          `json:"data_source"`
	JobID              string          `json:"job_id"`
}

// StatusResponse is returned by GET /status
type StatusResponse struct {
	State             models.JobState `json:"state"`
	SDKAvailable      bool            `json:"sdk_available"`
	SDKStatus         string          `json:"sdk_status"`
	Engine            string          `json:"engine"`
	ReadingsCount     int             `json:"readings_count"`
	VideoFileUploaded bool            `json:"video_file_uploaded"`
	VideoFilePath     string          `json:"video_file_path"`
	CameraAvailable   bool            `json:"camera_available"`
	JobID             string          `json:"job_id,omitempty"`
	LastError         string          `json:"last_error,omitempty"`
	LastJobFinishedAt *time.Time      `json:"last_job_finished_at,omitempty"`
}

// UploadResponse is returned by POST /upload
type UploadResponse struct {
	Message   string `json:"message"`
	Filename  string `json:"filename"`
	Path      string `json:"path"`
	SizeBytes int64  `json:"size_bytes"`
}

// RunResponse acknowledges a background run started by GET /test or POST /run
type RunResponse struct {
	Message        string `json:"message"`
	UsingVideoFile bool   `json:"using_video_file"`
	VideoSource    string `json:"video_source"`
	JobID          string `json:"job_id"`
}

// NoDataResponse is returned by GET /live before any reading exists
type NoDataResponse struct {
	Message    string `json:"message"`
	Suggestion string `json:"suggestion,omitempty"`
}
