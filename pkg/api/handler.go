// Package api exposes the job controller over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/psantana5/vitals-engine/pkg/engine"
	"github.com/psantana5/vitals-engine/pkg/jobs"
	"github.com/psantana5/vitals-engine/pkg/models"
	"github.com/psantana5/vitals-engine/pkg/storage"
)

const (
	msgBusy       = "Processing already in progress. Please wait for current processing to complete."
	msgNoData     = "No vitals data extracted from video"
	msgNoDataHint = "Presage SDK did not return any vital sign readings. Check video quality and ensure face is visible."
	msgNoSignal   = "Readings were collected but none contained a heart or breathing rate. The result is inconclusive."
)

// JobRunner is the subset of the job controller the HTTP surface needs
type JobRunner interface {
	StartJob(ref models.VideoRef) (string, error)
	RunSynchronous(ctx context.Context, ref models.VideoRef) (*jobs.Result, error)
	Status() models.JobStatus
	Busy() bool
	StoreVideo(ref models.VideoRef) error
	Video() (models.VideoRef, bool)
	Latest() (models.Reading, bool)
	EngineAvailable() bool
	EngineName() string
}

// VideoSaver persists uploaded video bodies
type VideoSaver interface {
	Save(r io.Reader) (string, int64, error)
	Remove(path string) error
}

// UploadRecorder is an interface for recording upload metrics
type UploadRecorder interface {
	UploadStored(bytes int64)
}

// CameraConfig describes the capture-device fallback for background runs
type CameraConfig struct {
	Device   string
	Duration time.Duration
}

// VitalsHandler handles the vitals API
type VitalsHandler struct {
	jobs         JobRunner
	videos       VideoSaver
	camera       CameraConfig
	engineStatus string
	uploads      UploadRecorder
	limit        func(http.Handler) http.Handler
	logger       *zap.Logger
}

// NewVitalsHandler creates a handler. engineStatus explains the engine
// selection and is reported by GET /status.
func NewVitalsHandler(runner JobRunner, videos VideoSaver, camera CameraConfig, engineStatus string, logger *zap.Logger) *VitalsHandler {
	return &VitalsHandler{
		jobs:         runner,
		videos:       videos,
		camera:       camera,
		engineStatus: engineStatus,
		logger:       logger.Named("api"),
	}
}

// SetUploadRecorder sets the metrics recorder for stored uploads
func (h *VitalsHandler) SetUploadRecorder(recorder UploadRecorder) {
	h.uploads = recorder
}

// SetRateLimit wraps the upload routes with the given middleware
func (h *VitalsHandler) SetRateLimit(mw func(http.Handler) http.Handler) {
	h.limit = mw
}

// RegisterRoutes registers all API routes
func (h *VitalsHandler) RegisterRoutes(r *mux.Router) {
	r.Handle("/process-video", h.limited(h.ProcessVideo)).Methods("POST")
	r.Handle("/upload", h.limited(h.Upload)).Methods("POST")
	r.HandleFunc("/status", h.Status).Methods("GET")
	r.HandleFunc("/test", h.StartRun).Methods("GET")
	r.HandleFunc("/run", h.StartRun).Methods("POST")
	r.HandleFunc("/live", h.Live).Methods("GET")
	r.HandleFunc("/health", h.Health).Methods("GET")
}

func (h *VitalsHandler) limited(fn http.HandlerFunc) http.Handler {
	if h.limit == nil {
		return fn
	}
	return h.limit(fn)
}

// ProcessVideo stores the request body as the current video, runs a job
// against it and answers with the summary once the job finishes.
func (h *VitalsHandler) ProcessVideo(w http.ResponseWriter, r *http.Request) {
	if h.jobs.Busy() {
		writeError(w, http.StatusConflict, msgBusy, "")
		return
	}

	path, size, ok := h.saveUpload(w, r)
	if !ok {
		return
	}

	ref := models.FileRef(path)
	res, err := h.jobs.RunSynchronous(r.Context(), ref)
	switch {
	case errors.Is(err, jobs.ErrBusy):
		// lost the race to another submission; the file was never referenced
		h.removeOrphan(path)
		writeError(w, http.StatusConflict, msgBusy, "")
		return

	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		h.logger.Info("Client left before processing finished", zap.String("path", path))
		return

	case errors.Is(err, jobs.ErrNoData), errors.Is(err, jobs.ErrInconclusive):
		collected := len(res.Readings)
		message := msgNoDataHint
		errText := msgNoData
		if errors.Is(err, jobs.ErrInconclusive) {
			errText = "Inconclusive vitals data"
			message = msgNoSignal
		}
		fail := false
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Success:           &fail,
			Error:             errText,
			Message:           message,
			ReadingsCollected: &collected,
			VideoFile:         filepath.Base(path),
			JobID:             res.JobID,
		})
		return

	case err != nil:
		h.logger.Error("Processing failed", zap.String("path", path), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Processing failed", err.Error())
		return
	}

	h.logger.Info("Video processed",
		zap.String("job_id", res.JobID),
		zap.Int64("bytes", size),
		zap.Int("readings", res.Summary.ReadingsCount))

	writeJSON(w, http.StatusOK, ProcessResponse{
		Success:            true,
		Vitals:             res.Summary,
		ProcessingComplete: true,
		VideoFile:          filepath.Base(path),
		DataSource:         models.SourcePresageSDK,
		JobID:              res.JobID,
	})
}

// Upload stores the request body as the current video without processing it
func (h *VitalsHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if h.jobs.Busy() {
		writeError(w, http.StatusConflict, msgBusy, "")
		return
	}

	path, size, ok := h.saveUpload(w, r)
	if !ok {
		return
	}
	if err := h.jobs.StoreVideo(models.FileRef(path)); err != nil {
		// a job started while the body was streaming
		h.removeOrphan(path)
		if errors.Is(err, jobs.ErrBusy) {
			writeError(w, http.StatusConflict, msgBusy, "")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to store video", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, UploadResponse{
		Message:   "Video uploaded successfully",
		Filename:  filepath.Base(path),
		Path:      path,
		SizeBytes: size,
	})
}

// StartRun starts a background job against the current video, or the camera
// when nothing was uploaded, and returns immediately.
func (h *VitalsHandler) StartRun(w http.ResponseWriter, r *http.Request) {
	if h.jobs.Busy() {
		writeError(w, http.StatusConflict, msgBusy, "")
		return
	}

	ref, usingFile := h.jobs.Video()
	if !usingFile {
		if !engine.CameraAvailable(h.camera.Device) {
			writeError(w, http.StatusBadRequest, "No video uploaded and no camera available",
				"Upload a video with POST /upload first")
			return
		}
		ref = models.CameraRef(h.camera.Device, h.camera.Duration)
	}

	jobID, err := h.jobs.StartJob(ref)
	if err != nil {
		if errors.Is(err, jobs.ErrBusy) {
			writeError(w, http.StatusConflict, msgBusy, "")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to start processing", err.Error())
		return
	}

	message := "Processing started with uploaded video"
	if !usingFile {
		message = "Processing started with camera"
	}
	writeJSON(w, http.StatusAccepted, RunResponse{
		Message:        message,
		UsingVideoFile: usingFile,
		VideoSource:    ref.Path,
		JobID:          jobID,
	})
}

// Status reports the job state and engine availability
func (h *VitalsHandler) Status(w http.ResponseWriter, r *http.Request) {
	st := h.jobs.Status()
	available := h.jobs.EngineAvailable()

	sdkStatus := "ready"
	if !available {
		sdkStatus = h.engineStatus
	}

	writeJSON(w, http.StatusOK, StatusResponse{
		State:             st.State,
		SDKAvailable:      available,
		SDKStatus:         sdkStatus,
		Engine:            h.jobs.EngineName(),
		ReadingsCount:     st.ReadingsCount,
		VideoFileUploaded: st.HasVideo,
		VideoFilePath:     st.VideoPath,
		CameraAvailable:   engine.CameraAvailable(h.camera.Device),
		JobID:             st.JobID,
		LastError:         st.LastError,
		LastJobFinishedAt: st.LastJobFinishedAt,
	})
}

// Live returns the most recent reading
func (h *VitalsHandler) Live(w http.ResponseWriter, r *http.Request) {
	reading, ok := h.jobs.Latest()
	if !ok {
		writeJSON(w, http.StatusOK, NoDataResponse{
			Message:    "No vitals data available yet",
			Suggestion: "Call /test first to collect data",
		})
		return
	}
	writeJSON(w, http.StatusOK, reading)
}

// Health is a liveness probe
func (h *VitalsHandler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *VitalsHandler) removeOrphan(path string) {
	if err := h.videos.Remove(path); err != nil {
		h.logger.Warn("Failed to remove orphaned upload", zap.String("path", path), zap.Error(err))
	}
}

// saveUpload writes the error response itself and returns false on failure
func (h *VitalsHandler) saveUpload(w http.ResponseWriter, r *http.Request) (string, int64, bool) {
	path, size, err := h.videos.Save(r.Body)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrEmptyUpload):
			writeError(w, http.StatusBadRequest, "No video data received", "")
		case errors.Is(err, storage.ErrTooLarge):
			writeError(w, http.StatusRequestEntityTooLarge, "Video too large", err.Error())
		default:
			h.logger.Error("Failed to save upload", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "Failed to save video file", err.Error())
		}
		return "", 0, false
	}

	if h.uploads != nil {
		h.uploads.UploadStored(size)
	}
	return path, size, true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, errText, message string) {
	writeJSON(w, status, ErrorResponse{Error: errText, Message: message})
}
