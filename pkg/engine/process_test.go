package engine

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/psantana5/vitals-engine/pkg/models"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		name       string
		line       string
		wantOK     bool
		wantStatus bool
		wantHR     *float64
		wantBR     *float64
	}{
		{"full reading", `{"timestamp_ms":1000,"heart_rate_bpm":72,"breathing_rate_bpm":15}`, true, false, models.Rate(72), models.Rate(15)},
		{"heart rate only", `{"timestamp_ms":1000,"heart_rate_bpm":70}`, true, false, models.Rate(70), nil},
		{"no metrics", `{"timestamp_ms":1000}`, true, false, nil, nil},
		{"status", `{"status":3,"description":"face not found"}`, true, true, nil, nil},
		{"plain text", `Initializing camera...`, false, false, nil, nil},
		{"blank", `   `, false, false, nil, nil},
		{"broken json", `{"timestamp_ms":`, false, false, nil, nil},
		{"unrelated object", `{"hello":"world"}`, false, false, nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reading, status, ok := ParseLine([]byte(tt.line))
			assert.Equal(t, tt.wantOK, ok)
			if !tt.wantOK {
				return
			}
			if tt.wantStatus {
				require.NotNil(t, status)
				assert.Nil(t, reading)
				return
			}
			require.NotNil(t, reading)
			assert.Equal(t, int64(1000), reading.TimestampMs)
			assert.Equal(t, models.SourcePresageSDK, reading.Source)
			assert.Equal(t, tt.wantHR, reading.HeartRateBPM)
			assert.Equal(t, tt.wantBR, reading.BreathingRateBPM)
		})
	}
}

func TestBuildArgs(t *testing.T) {
	e := NewProcessEngine("hello_vitals", []string{"--headless"}, "key", zap.NewNop())

	assert.Equal(t, []string{"--headless", "/app/uploads/video_1.mp4"},
		e.BuildArgs(models.FileRef("/app/uploads/video_1.mp4")))
	assert.Equal(t, []string{"--headless", "--camera", "/dev/video0", "--duration", "10"},
		e.BuildArgs(models.CameraRef("/dev/video0", 10*time.Second)))
}

func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported")
	}
	path := filepath.Join(t.TempDir(), "fake_engine.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func TestProcessEngineRun(t *testing.T) {
	script := writeScript(t, `echo "starting"
echo "key=$SMARTSPECTRA_API_KEY" >&2
echo '{"status":0,"description":"ok"}'
echo '{"timestamp_ms":1000,"heart_rate_bpm":70,"breathing_rate_bpm":14}'
echo '{"timestamp_ms":2000,"heart_rate_bpm":72}'
`)
	e := NewProcessEngine(script, nil, "secret", zap.NewNop())
	assert.True(t, e.Available())

	var readings []models.Reading
	var statuses []Status
	err := e.Run(context.Background(), models.FileRef("/tmp/video.mp4"), "",
		func(r models.Reading) { readings = append(readings, r) },
		func(s Status) { statuses = append(statuses, s) })
	require.NoError(t, err)

	require.Len(t, readings, 2)
	assert.Equal(t, int64(1000), readings[0].TimestampMs)
	assert.Equal(t, int64(2000), readings[1].TimestampMs)
	assert.Nil(t, readings[1].BreathingRateBPM)
	assert.Equal(t, []Status{{Code: 0, Description: "ok"}}, statuses)
}

func TestProcessEngineRunCredentialInEnv(t *testing.T) {
	script := writeScript(t, `if [ "$SMARTSPECTRA_API_KEY" = "secret" ]; then
  echo '{"timestamp_ms":1,"heart_rate_bpm":60}'
fi
for arg in "$@"; do
  if [ "$arg" = "secret" ]; then exit 9; fi
done
`)
	e := NewProcessEngine(script, nil, "", zap.NewNop())

	count := 0
	err := e.Run(context.Background(), models.FileRef("/tmp/video.mp4"), "secret",
		func(models.Reading) { count++ }, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestProcessEngineRunExitCode(t *testing.T) {
	script := writeScript(t, `echo '{"timestamp_ms":1000,"heart_rate_bpm":70}'
exit 3
`)
	e := NewProcessEngine(script, nil, "secret", zap.NewNop())

	count := 0
	err := e.Run(context.Background(), models.FileRef("/tmp/video.mp4"), "",
		func(models.Reading) { count++ }, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "code 3")
	assert.Equal(t, 1, count)
}

func TestProcessEngineRunMissingBinary(t *testing.T) {
	e := NewProcessEngine("definitely-not-a-real-engine-binary", nil, "secret", zap.NewNop())
	assert.False(t, e.Available())

	err := e.Run(context.Background(), models.FileRef("/tmp/video.mp4"), "", nil, nil)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestProcessEngineRunCancelled(t *testing.T) {
	script := writeScript(t, `echo '{"timestamp_ms":1000,"heart_rate_bpm":70}'
exec sleep 30
`)
	e := NewProcessEngine(script, nil, "secret", zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := e.Run(ctx, models.FileRef("/tmp/video.mp4"), "", func(models.Reading) {}, nil)
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 10*time.Second)
}
