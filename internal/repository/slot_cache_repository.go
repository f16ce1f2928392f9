package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/tutor-booking-api/pkg/errors"
)

// SlotCacheRepository caches generated slot lists in Redis. The cache only
// serves slot discovery; the reservation conflict check always goes to
// Postgres.
type SlotCacheRepository struct {
	client *redis.Client
	logger *zap.Logger
}

// NewSlotCacheRepository constructs a slot cache repository. A nil client
// disables caching entirely.
func NewSlotCacheRepository(client *redis.Client, logger *zap.Logger) *SlotCacheRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SlotCacheRepository{client: client, logger: logger}
}

func slotKey(teacherID, date string, durationMinutes int) string {
	return fmt.Sprintf("slots:%s:%s:%d", teacherID, date, durationMinutes)
}

// Get retrieves a cached slot list, ErrCacheMiss when absent.
func (r *SlotCacheRepository) Get(ctx context.Context, teacherID, date string, durationMinutes int) ([]string, error) {
	if r.client == nil {
		return nil, appErrors.ErrCacheMiss
	}

	raw, err := r.client.Get(ctx, slotKey(teacherID, date, durationMinutes)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, appErrors.ErrCacheMiss
		}
		return nil, fmt.Errorf("redis get slots: %w", err)
	}

	var slots []string
	if err := json.Unmarshal(raw, &slots); err != nil {
		return nil, fmt.Errorf("unmarshal cached slots: %w", err)
	}
	return slots, nil
}

// Set stores a slot list with the given TTL.
func (r *SlotCacheRepository) Set(ctx context.Context, teacherID, date string, durationMinutes int, slots []string, ttl time.Duration) error {
	if r.client == nil {
		return nil
	}

	payload, err := json.Marshal(slots)
	if err != nil {
		return fmt.Errorf("marshal slots: %w", err)
	}
	if err := r.client.Set(ctx, slotKey(teacherID, date, durationMinutes), payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis set slots: %w", err)
	}
	return nil
}

// InvalidateTeacher drops every cached slot list for a teacher. Called
// after booking and availability writes; failures are logged, not fatal,
// since entries expire on their own TTL.
func (r *SlotCacheRepository) InvalidateTeacher(ctx context.Context, teacherID string) {
	if r.client == nil {
		return
	}

	pattern := fmt.Sprintf("slots:%s:*", teacherID)
	iter := r.client.Scan(ctx, 0, pattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		r.logger.Warn("slot cache scan failed", zap.String("teacher_id", teacherID), zap.Error(err))
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		r.logger.Warn("slot cache invalidation failed", zap.String("teacher_id", teacherID), zap.Error(err))
	}
}
