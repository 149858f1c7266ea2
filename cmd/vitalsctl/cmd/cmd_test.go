package cmd

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psantana5/vitals-engine/pkg/api"
	"github.com/psantana5/vitals-engine/pkg/client"
	"github.com/psantana5/vitals-engine/pkg/config"
	"github.com/psantana5/vitals-engine/pkg/models"
)

func withOutput(t *testing.T, format string) {
	t.Helper()
	prev := outputFormat
	outputFormat = format
	t.Cleanup(func() { outputFormat = prev })
}

func TestFormatRate(t *testing.T) {
	assert.Equal(t, "-", formatRate(nil))
	assert.Equal(t, "72.5 bpm", formatRate(models.Rate(72.5)))
}

func TestRenderStatus(t *testing.T) {
	finished := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	var buf bytes.Buffer
	renderStatus(&buf, &api.StatusResponse{
		State:             models.JobStateIdle,
		Engine:            "process:hello_vitals",
		SDKAvailable:      true,
		SDKStatus:         "ready",
		ReadingsCount:     12,
		VideoFileUploaded: true,
		VideoFilePath:     "/app/uploads/video_1.mp4",
		JobID:             "job-9",
		LastJobFinishedAt: &finished,
	})

	out := buf.String()
	assert.Contains(t, out, "idle")
	assert.Contains(t, out, "process:hello_vitals")
	assert.Contains(t, out, "/app/uploads/video_1.mp4")
	assert.Contains(t, out, "job-9")
	assert.Contains(t, out, "2026-01-02T03:04:05Z")
	assert.NotContains(t, out, "Last Error")
}

func TestRenderSummary(t *testing.T) {
	var buf bytes.Buffer
	renderSummary(&buf, &models.Summary{
		HeartRate:     &models.MetricStats{Avg: 71.25, Min: 70, Max: 73, Count: 4},
		ReadingsCount: 5,
	})

	out := buf.String()
	assert.Contains(t, out, "71.2")
	assert.Contains(t, out, "73.0")
	assert.Contains(t, out, "Readings: 5")

	buf.Reset()
	renderSummary(&buf, nil)
	assert.Contains(t, buf.String(), "No summary available")
}

func TestEmitIfNew(t *testing.T) {
	withOutput(t, "table")
	var buf bytes.Buffer
	r := models.NewReading(1000, models.Rate(60), nil)

	last := emitIfNew(&buf, r, -1)
	assert.Equal(t, int64(1000), last)
	assert.Contains(t, buf.String(), "heart=60.0 bpm")
	assert.Contains(t, buf.String(), "breathing=-")

	buf.Reset()
	last = emitIfNew(&buf, r, last)
	assert.Equal(t, int64(1000), last)
	assert.Empty(t, buf.String())
}

func TestWriteConfig(t *testing.T) {
	cfg := config.Config{APIKey: "secret"}
	cfg.Server.Port = 8080
	cfg.Server.ShutdownTimeout = 30 * time.Second

	var buf bytes.Buffer
	require.NoError(t, writeConfig(&buf, cfg.Redacted(), "yaml"))
	assert.Contains(t, buf.String(), "port: 8080")
	assert.Contains(t, buf.String(), "shutdown_timeout: 30s")
	assert.NotContains(t, buf.String(), "secret")

	buf.Reset()
	require.NoError(t, writeConfig(&buf, cfg.Redacted(), "json"))
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "********", decoded["api_key"])

	assert.Error(t, writeConfig(&buf, cfg, "xml"))
}

func TestDescribeSubmitError(t *testing.T) {
	busy := &client.APIError{StatusCode: http.StatusConflict}
	assert.Contains(t, describeSubmitError(busy).Error(), "busy")

	collected := 3
	noSignal := &client.APIError{
		StatusCode: http.StatusInternalServerError,
		Body: api.ErrorResponse{
			Error:             "Inconclusive vitals data",
			ReadingsCollected: &collected,
			JobID:             "job-3",
		},
	}
	msg := describeSubmitError(noSignal).Error()
	assert.Contains(t, msg, "Inconclusive vitals data")
	assert.Contains(t, msg, "readings collected: 3")
	assert.Contains(t, msg, "job-3")
}

func TestWaitForIdle(t *testing.T) {
	var polls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		state := models.JobStateRunning
		if polls.Add(1) >= 3 {
			state = models.JobStateIdle
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(api.StatusResponse{State: state, JobID: "job-1"})
	}))
	defer srv.Close()

	c := client.New(srv.URL, client.DefaultOptions())
	st, err := waitForIdle(t.Context(), c, "job-1", 5*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, models.JobStateIdle, st.State)
	assert.Equal(t, int32(3), polls.Load())
}
