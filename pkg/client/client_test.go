package client

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psantana5/vitals-engine/pkg/api"
	"github.com/psantana5/vitals-engine/pkg/models"
)

func testOptions() Options {
	opts := DefaultOptions()
	opts.Timeout = 2 * time.Second
	opts.RetryWait = time.Millisecond
	opts.RetryMaxWait = 5 * time.Millisecond
	return opts
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func TestStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/status", r.URL.Path)
		writeJSON(w, http.StatusOK, api.StatusResponse{
			State:         models.JobStateRunning,
			SDKAvailable:  true,
			ReadingsCount: 4,
			JobID:         "job-1",
		})
	}))
	defer srv.Close()

	st, err := New(srv.URL, testOptions()).Status(t.Context())
	require.NoError(t, err)
	assert.Equal(t, models.JobStateRunning, st.State)
	assert.True(t, st.SDKAvailable)
	assert.Equal(t, 4, st.ReadingsCount)
	assert.Equal(t, "job-1", st.JobID)
}

func TestLatest(t *testing.T) {
	var hasData atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !hasData.Load() {
			writeJSON(w, http.StatusOK, api.NoDataResponse{Message: "No vitals data available yet"})
			return
		}
		writeJSON(w, http.StatusOK, models.NewReading(1700000000000, models.Rate(72), nil))
	}))
	defer srv.Close()

	c := New(srv.URL, testOptions())

	reading, ok, err := c.Latest(t.Context())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, reading)

	hasData.Store(true)
	reading, ok, err = c.Latest(t.Context())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(1700000000000), reading.TimestampMs)
	require.NotNil(t, reading.HeartRateBPM)
	assert.Equal(t, 72.0, *reading.HeartRateBPM)
	assert.Nil(t, reading.BreathingRateBPM)
}

func TestProcess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/process-video", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "video-bytes", string(body))

		writeJSON(w, http.StatusOK, api.ProcessResponse{
			Success: true,
			Vitals: &models.Summary{
				HeartRate:     &models.MetricStats{Avg: 70, Min: 68, Max: 72, Count: 2},
				ReadingsCount: 2,
			},
			ProcessingComplete: true,
			DataSource:         models.SourcePresageSDK,
			JobID:              "job-2",
		})
	}))
	defer srv.Close()

	res, err := New(srv.URL, testOptions()).Process(t.Context(), strings.NewReader("video-bytes"))
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "job-2", res.JobID)
	require.NotNil(t, res.Vitals.HeartRate)
	assert.Equal(t, 70.0, res.Vitals.HeartRate.Avg)
}

func TestProcessNoData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		collected := 0
		fail := false
		writeJSON(w, http.StatusInternalServerError, api.ErrorResponse{
			Success:           &fail,
			Error:             "No vitals data collected",
			ReadingsCollected: &collected,
		})
	}))
	defer srv.Close()

	_, err := New(srv.URL, testOptions()).Process(t.Context(), strings.NewReader("x"))
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Equal(t, "No vitals data collected", apiErr.Body.Error)
	require.NotNil(t, apiErr.Body.ReadingsCollected)
	assert.Equal(t, 0, *apiErr.Body.ReadingsCollected)
	assert.False(t, IsBusy(err))
}

func TestSubmissionsAreNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusConflict, api.ErrorResponse{Error: "Processing already in progress"})
	}))
	defer srv.Close()

	_, err := New(srv.URL, testOptions()).Run(t.Context())
	require.Error(t, err)
	assert.True(t, IsBusy(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestReadsRetryServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, http.StatusOK, api.StatusResponse{State: models.JobStateIdle})
	}))
	defer srv.Close()

	st, err := New(srv.URL, testOptions()).Status(t.Context())
	require.NoError(t, err)
	assert.Equal(t, models.JobStateIdle, st.State)
	assert.Equal(t, int32(3), calls.Load())
}

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("OK"))
	}))
	defer srv.Close()

	c := New(srv.URL, testOptions())
	assert.NoError(t, c.Health(t.Context()))

	_, err := c.Upload(t.Context(), strings.NewReader("x"))
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Contains(t, apiErr.Error(), "Not Found")
}
