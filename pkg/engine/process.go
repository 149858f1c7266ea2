package engine

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/psantana5/vitals-engine/pkg/models"
)

// CredentialEnv carries the API key to the engine process
const CredentialEnv = "SMARTSPECTRA_API_KEY"

const maxLineBytes = 1 << 20

// ProcessEngine drives an external sensing binary. The child prints one JSON
// object per line on stdout: readings carry timestamp_ms, status changes carry status.
type ProcessEngine struct {
	binary     string
	extraArgs  []string
	credential string
	logger     *zap.Logger
}

// NewProcessEngine creates an engine backed by the given binary
func NewProcessEngine(binary string, extraArgs []string, credential string, logger *zap.Logger) *ProcessEngine {
	return &ProcessEngine{
		binary:     binary,
		extraArgs:  extraArgs,
		credential: credential,
		logger:     logger.Named("engine"),
	}
}

// Name returns the engine name
func (e *ProcessEngine) Name() string {
	return "process:" + e.binary
}

// Available reports whether the binary resolves and a credential is configured
func (e *ProcessEngine) Available() bool {
	if e.credential == "" {
		return false
	}
	_, err := exec.LookPath(e.binary)
	return err == nil
}

// BuildArgs generates the command line for a video source
func (e *ProcessEngine) BuildArgs(src models.VideoRef) []string {
	args := append([]string{}, e.extraArgs...)
	switch src.Kind {
	case models.VideoSourceCamera:
		args = append(args, "--camera", src.Path)
		if src.Duration > 0 {
			args = append(args, "--duration", strconv.Itoa(int(src.Duration.Seconds())))
		}
	default:
		args = append(args, src.Path)
	}
	return args
}

// Run spawns the engine and streams its output until the process exits
func (e *ProcessEngine) Run(ctx context.Context, src models.VideoRef, credential string, onReading ReadingFunc, onStatus StatusFunc) error {
	if credential == "" {
		credential = e.credential
	}

	cmd := exec.CommandContext(ctx, e.binary, e.BuildArgs(src)...)
	cmd.Env = append(os.Environ(), CredentialEnv+"="+credential)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to open engine stdout: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to open engine stderr: %w", err)
	}

	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return fmt.Errorf("failed to start engine: %w", err)
	}

	e.logger.Info("Engine started",
		zap.String("binary", e.binary),
		zap.Int("pid", cmd.Process.Pid),
		zap.String("source_kind", string(src.Kind)),
		zap.String("source", src.Path))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		e.drainStderr(stderr)
	}()

	scanErr := e.scan(stdout, onReading, onStatus)
	if scanErr != nil {
		// keep the child from blocking on a full pipe
		_, _ = io.Copy(io.Discard, stdout)
	}
	wg.Wait()

	waitErr := cmd.Wait()
	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			return fmt.Errorf("engine exited with code %d: %w", exitErr.ExitCode(), waitErr)
		}
		return fmt.Errorf("engine wait failed: %w", waitErr)
	}
	if scanErr != nil {
		return fmt.Errorf("failed to read engine output: %w", scanErr)
	}
	return nil
}

func (e *ProcessEngine) scan(r io.Reader, onReading ReadingFunc, onStatus StatusFunc) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	for scanner.Scan() {
		reading, status, ok := ParseLine(scanner.Bytes())
		switch {
		case !ok:
			e.logger.Debug("Engine output", zap.ByteString("line", scanner.Bytes()))
		case status != nil:
			if onStatus != nil {
				onStatus(*status)
			}
		case reading != nil:
			if onReading != nil {
				onReading(*reading)
			}
		}
	}
	return scanner.Err()
}

func (e *ProcessEngine) drainStderr(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 16*1024), maxLineBytes)
	for scanner.Scan() {
		e.logger.Warn("Engine stderr", zap.ByteString("line", scanner.Bytes()))
	}
}

type outputLine struct {
	TimestampMs      *int64   `json:"timestamp_ms"`
	HeartRateBPM     *float64 `json:"heart_rate_bpm"`
	BreathingRateBPM *float64 `json:"breathing_rate_bpm"`
	Source           string   `json:"source"`
	Status           *int     `json:"status"`
	Description      string   `json:"description"`
}

// ParseLine decodes one line of engine output.
// ok is false for anything that is neither a reading nor a status change.
func ParseLine(line []byte) (*models.Reading, *Status, bool) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 || line[0] != '{' {
		return nil, nil, false
	}

	var out outputLine
	if err := json.Unmarshal(line, &out); err != nil {
		return nil, nil, false
	}

	if out.Status != nil {
		return nil, &Status{Code: *out.Status, Description: out.Description}, true
	}
	if out.TimestampMs == nil {
		return nil, nil, false
	}

	reading := models.NewReading(*out.TimestampMs, out.HeartRateBPM, out.BreathingRateBPM)
	if out.Source != "" {
		reading.Source = out.Source
	}
	return &reading, nil, true
}
