// Package storage persists uploaded videos on local disk.
package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v3/disk"
	"go.uber.org/zap"
)

var (
	// ErrEmptyUpload is returned when the request body carried no bytes
	ErrEmptyUpload = errors.New("empty video upload")

	// ErrTooLarge is returned when the upload exceeds the configured limit
	ErrTooLarge = errors.New("video upload exceeds size limit")

	// ErrInsufficientSpace is returned when the upload directory is nearly full
	ErrInsufficientSpace = errors.New("insufficient disk space for upload")
)

const (
	filePrefix = "video_"
	fileSuffix = ".mp4"
)

// Config holds upload storage settings
type Config struct {
	Dir          string
	MaxBytes     int64
	MinFreeBytes uint64
}

// VideoStore writes uploads to unique files in one directory
type VideoStore struct {
	cfg    Config
	logger *zap.Logger
	now    func() time.Time
}

// NewVideoStore creates the upload directory if needed
func NewVideoStore(cfg Config, logger *zap.Logger) (*VideoStore, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("upload directory not configured")
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory %s: %w", cfg.Dir, err)
	}
	return &VideoStore{
		cfg:    cfg,
		logger: logger.Named("storage"),
		now:    time.Now,
	}, nil
}

// Dir returns the upload directory
func (s *VideoStore) Dir() string {
	return s.cfg.Dir
}

// Save streams r into a new file and returns its path and size.
// Nothing is left on disk when an error is returned.
func (s *VideoStore) Save(r io.Reader) (string, int64, error) {
	if err := s.checkFreeSpace(); err != nil {
		return "", 0, err
	}

	tmp, err := os.CreateTemp(s.cfg.Dir, ".upload-*")
	if err != nil {
		return "", 0, fmt.Errorf("failed to create upload file: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpPath)
	}

	src := r
	if s.cfg.MaxBytes > 0 {
		src = io.LimitReader(r, s.cfg.MaxBytes+1)
	}

	n, err := io.Copy(tmp, src)
	if err != nil {
		cleanup()
		return "", 0, fmt.Errorf("failed to write upload: %w", err)
	}
	if n == 0 {
		cleanup()
		return "", 0, ErrEmptyUpload
	}
	if s.cfg.MaxBytes > 0 && n > s.cfg.MaxBytes {
		cleanup()
		return "", 0, fmt.Errorf("%w (%d bytes)", ErrTooLarge, s.cfg.MaxBytes)
	}

	if err := tmp.Sync(); err != nil {
		cleanup()
		return "", 0, fmt.Errorf("failed to flush upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", 0, fmt.Errorf("failed to close upload: %w", err)
	}

	path := filepath.Join(s.cfg.Dir, s.newFileName())
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return "", 0, fmt.Errorf("failed to store upload: %w", err)
	}

	s.logger.Info("Video saved", zap.String("path", path), zap.Int64("bytes", n))
	return path, n, nil
}

// Remove deletes a stored video. Missing files are not an error.
func (s *VideoStore) Remove(path string) error {
	if !s.Owns(path) {
		return fmt.Errorf("refusing to remove %s outside %s", path, s.cfg.Dir)
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove %s: %w", path, err)
	}
	return nil
}

// Owns reports whether path is a video file managed by this store
func (s *VideoStore) Owns(path string) bool {
	if filepath.Dir(filepath.Clean(path)) != filepath.Clean(s.cfg.Dir) {
		return false
	}
	name := filepath.Base(path)
	return strings.HasPrefix(name, filePrefix) && strings.HasSuffix(name, fileSuffix)
}

// FreeBytes returns the free space on the upload volume
func (s *VideoStore) FreeBytes() (uint64, error) {
	usage, err := disk.Usage(s.cfg.Dir)
	if err != nil {
		return 0, fmt.Errorf("failed to stat upload volume: %w", err)
	}
	return usage.Free, nil
}

func (s *VideoStore) checkFreeSpace() error {
	if s.cfg.MinFreeBytes == 0 {
		return nil
	}
	free, err := s.FreeBytes()
	if err != nil {
		// an unreadable volume should not block uploads
		s.logger.Warn("Disk usage check failed", zap.Error(err))
		return nil
	}
	if free < s.cfg.MinFreeBytes {
		return fmt.Errorf("%w: %d bytes free, %d required", ErrInsufficientSpace, free, s.cfg.MinFreeBytes)
	}
	return nil
}

// newFileName returns video_<unix seconds>_<8 hex>.mp4
func (s *VideoStore) newFileName() string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s%d_%s%s", filePrefix, s.now().Unix(), suffix, fileSuffix)
}
