package conversation

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/simplechat/convmeta/store"
)

const (
	// DefaultRetentionDays is the default number of days archived
	// conversations are kept before vacuuming.
	DefaultRetentionDays = 30
	// DefaultCleanupInterval is the default interval between cleanup runs.
	DefaultCleanupInterval = 24 * time.Hour
)

// CleanupConfig holds configuration for the retention job.
type CleanupConfig struct {
	RetentionDays   int
	CleanupInterval time.Duration
}

// DefaultCleanupConfig returns the default cleanup configuration.
func DefaultCleanupConfig() CleanupConfig {
	return CleanupConfig{
		RetentionDays:   DefaultRetentionDays,
		CleanupInterval: DefaultCleanupInterval,
	}
}

// CleanupJob periodically deletes archived conversations older than the
// retention window.
type CleanupJob struct {
	store  *store.Store
	config CleanupConfig
	logger *slog.Logger

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
}

// NewCleanupJob creates a retention job over the given store.
func NewCleanupJob(st *store.Store, config CleanupConfig, logger *slog.Logger) *CleanupJob {
	if config.RetentionDays <= 0 {
		config.RetentionDays = DefaultRetentionDays
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = DefaultCleanupInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CleanupJob{
		store:  st,
		config: config,
		logger: logger,
	}
}

// Start begins the periodic cleanup. Non-blocking; the loop runs until Stop
// is called or the context is canceled.
func (j *CleanupJob) Start(ctx context.Context) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.running {
		return
	}
	j.running = true
	j.stopChan = make(chan struct{})

	go j.run(ctx)
}

// Stop halts the periodic cleanup.
func (j *CleanupJob) Stop() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if !j.running {
		return
	}
	j.running = false
	close(j.stopChan)
}

func (j *CleanupJob) run(ctx context.Context) {
	ticker := time.NewTicker(j.config.CleanupInterval)
	defer ticker.Stop()

	// Run once at startup so a long-stopped instance catches up.
	j.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-j.stopChan:
			return
		case <-ticker.C:
			j.runOnce(ctx)
		}
	}
}

func (j *CleanupJob) runOnce(ctx context.Context) {
	deleted, err := j.RunNow(ctx)
	if err != nil {
		j.logger.Error("conversation cleanup failed", "error", err)
		return
	}
	if deleted > 0 {
		j.logger.Info("conversation cleanup completed", "deleted", deleted)
	}
}

// RunNow performs a single vacuum pass and returns the number of deleted
// conversations.
func (j *CleanupJob) RunNow(ctx context.Context) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -j.config.RetentionDays).Unix()
	return j.store.VacuumConversations(ctx, cutoff)
}
