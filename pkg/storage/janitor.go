package storage

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

// JanitorConfig defines retention for uploaded videos
type JanitorConfig struct {
	Enabled   bool
	Retention time.Duration
	Interval  time.Duration
}

// DefaultJanitorConfig returns the default retention policy
func DefaultJanitorConfig() JanitorConfig {
	return JanitorConfig{
		Enabled:   true,
		Retention: 24 * time.Hour,
		Interval:  time.Hour,
	}
}

// JanitorStats tracks cleanup runs
type JanitorStats struct {
	LastRunTime       time.Time
	LastRunDuration   time.Duration
	TotalFilesDeleted int64
	TotalBytesFreed   int64
}

// Janitor removes expired uploads, skipping the file currently referenced for processing
type Janitor struct {
	config JanitorConfig
	videos *VideoStore
	inUse  func() string
	logger *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.RWMutex
	stats JanitorStats
}

// NewJanitor creates a janitor. inUse returns the path that must be kept.
func NewJanitor(config JanitorConfig, videos *VideoStore, inUse func() string, logger *zap.Logger) *Janitor {
	ctx, cancel := context.WithCancel(context.Background())
	return &Janitor{
		config: config,
		videos: videos,
		inUse:  inUse,
		logger: logger.Named("janitor"),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start begins periodic cleanup
func (j *Janitor) Start() {
	if !j.config.Enabled || j.config.Retention <= 0 || j.config.Interval <= 0 {
		j.logger.Info("Upload janitor disabled")
		return
	}

	j.logger.Info("Starting upload janitor",
		zap.Duration("retention", j.config.Retention),
		zap.Duration("interval", j.config.Interval))

	j.wg.Add(1)
	go j.loop()
}

// Stop halts the cleanup loop and waits for it to exit
func (j *Janitor) Stop() {
	j.cancel()
	j.wg.Wait()
}

func (j *Janitor) loop() {
	defer j.wg.Done()

	ticker := time.NewTicker(j.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-j.ctx.Done():
			return
		case <-ticker.C:
			j.RunOnce()
		}
	}
}

// RunOnce deletes every expired upload and returns how many were removed
func (j *Janitor) RunOnce() int {
	start := time.Now()
	cutoff := j.videos.now().Add(-j.config.Retention)

	keep := ""
	if j.inUse != nil {
		keep = filepath.Clean(j.inUse())
	}

	entries, err := os.ReadDir(j.videos.Dir())
	if err != nil {
		j.logger.Warn("Failed to list upload directory", zap.Error(err))
		return 0
	}

	var deleted int
	var freed int64
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(j.videos.Dir(), entry.Name())
		if !j.videos.Owns(path) || path == keep {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := j.videos.Remove(path); err != nil {
			j.logger.Warn("Failed to delete expired upload", zap.String("path", path), zap.Error(err))
			continue
		}
		deleted++
		freed += info.Size()
	}

	duration := time.Since(start)
	j.mu.Lock()
	j.stats.LastRunTime = start
	j.stats.LastRunDuration = duration
	j.stats.TotalFilesDeleted += int64(deleted)
	j.stats.TotalBytesFreed += freed
	j.mu.Unlock()

	if deleted > 0 {
		j.logger.Info("Expired uploads deleted",
			zap.Int("files", deleted),
			zap.Int64("bytes", freed),
			zap.Duration("duration", duration))
	}
	return deleted
}

// Stats returns cleanup statistics
func (j *Janitor) Stats() JanitorStats {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.stats
}
