package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/tutor-booking-api/pkg/config"
	"github.com/noah-isme/tutor-booking-api/pkg/jobs"
)

// CacheWarmer invalidates a teacher's cached slot lists and regenerates
// them in the background so the next reader hits a warm cache. It stands in
// for the raw cache wherever a write invalidates slots.
type CacheWarmer struct {
	cache   slotCacheInvalidator
	slots   *SlotService
	queue   *jobs.Queue
	daysOut int
	logger  *zap.Logger
}

// NewCacheWarmer constructs the warmer around the raw cache and the slot engine.
func NewCacheWarmer(cache slotCacheInvalidator, slots *SlotService, cfg config.WarmerConfig, logger *zap.Logger) *CacheWarmer {
	daysOut := cfg.DaysOut
	if daysOut <= 0 {
		daysOut = 7
	}
	w := &CacheWarmer{
		cache:   cache,
		slots:   slots,
		daysOut: daysOut,
		logger:  logger,
	}
	w.queue = jobs.NewQueue("slot-warmer", w.warm, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: 2,
		RetryDelay: 5 * time.Second,
		Logger:     logger,
	})
	return w
}

// Start launches the warmer's worker pool.
func (w *CacheWarmer) Start(ctx context.Context) {
	w.queue.Start(ctx)
}

// Stop drains the worker pool.
func (w *CacheWarmer) Stop() {
	w.queue.Stop()
}

// InvalidateTeacher drops the teacher's cached slots and schedules a rewarm.
// The enqueue must not block the calling request handler, so a full buffer
// drops the job; the invalidation itself already happened and the next
// reader simply repopulates the cache on miss.
func (w *CacheWarmer) InvalidateTeacher(ctx context.Context, teacherID string) {
	w.cache.InvalidateTeacher(ctx, teacherID)
	if !w.queue.TryEnqueue(jobs.Job{
		ID:      uuid.NewString(),
		Kind:    "warm-slots",
		Payload: teacherID,
	}) {
		w.logger.Warn("slot rewarm dropped", zap.String("teacher_id", teacherID))
	}
}

func (w *CacheWarmer) warm(ctx context.Context, job jobs.Job) error {
	teacherID, ok := job.Payload.(string)
	if !ok || teacherID == "" {
		return fmt.Errorf("warm job %s has no teacher id", job.ID)
	}
	// Generating the range repopulates the per-day cache entries as a side
	// effect; today is skipped by the slot engine's caching rule.
	_, err := w.slots.GenerateSlotsRange(ctx, teacherID, time.Now(), w.daysOut, 0, "")
	return err
}
