package work

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	redisv9 "github.com/redis/go-redis/v9"

	"github.com/p2pml/training-dispatcher/common/redis"
)

const (
	taskStateKeyPrefix   = "task:state:"
	taskSummaryKeyPrefix = "task:summary:"
	runningState         = "running"
)

// ErrTaskAlreadyRunning is returned when a task is dispatched twice.
var ErrTaskAlreadyRunning = errors.New("task is already running")

// TaskManager tracks dispatch state in Redis. The running marker carries a
// TTL so tasks that died without proper cleanup are not stuck forever.
type TaskManager struct {
	redis    *redis.RedisClient
	stateTTL time.Duration
}

// NewTaskManager creates a new TaskManager.
func NewTaskManager(client *redis.RedisClient, stateTTL time.Duration) *TaskManager {
	if stateTTL <= 0 {
		stateTTL = 24 * time.Hour
	}
	return &TaskManager{
		redis:    client,
		stateTTL: stateTTL,
	}
}

func (tm *TaskManager) stateKey(taskID string) string {
	return taskStateKeyPrefix + taskID
}

func (tm *TaskManager) summaryKey(taskID string) string {
	return taskSummaryKeyPrefix + taskID
}

// Start marks a task as running. SetNX guards against dispatching the same
// task twice.
func (tm *TaskManager) Start(ctx context.Context, taskID string) error {
	ok, err := tm.redis.SetNX(ctx, tm.stateKey(taskID), runningState, tm.stateTTL)
	if err != nil {
		return fmt.Errorf("failed to start task %s: %w", taskID, err)
	}
	if !ok {
		return fmt.Errorf("task %s: %w", taskID, ErrTaskAlreadyRunning)
	}
	return nil
}

// IsRunning checks if a task is currently marked as running.
func (tm *TaskManager) IsRunning(ctx context.Context, taskID string) (bool, error) {
	state, err := tm.redis.Get(ctx, tm.stateKey(taskID))
	if err != nil {
		if errors.Is(err, redisv9.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("failed to get task state for %s: %w", taskID, err)
	}
	return state == runningState, nil
}

// Complete marks a task as finished by removing its running marker.
func (tm *TaskManager) Complete(ctx context.Context, taskID string) error {
	if err := tm.redis.Delete(ctx, tm.stateKey(taskID)); err != nil {
		return fmt.Errorf("failed to complete task %s: %w", taskID, err)
	}
	return nil
}

// Cancel removes a task's running marker without recording a summary.
func (tm *TaskManager) Cancel(ctx context.Context, taskID string) error {
	if err := tm.redis.Delete(ctx, tm.stateKey(taskID)); err != nil {
		return fmt.Errorf("failed to cancel task %s: %w", taskID, err)
	}
	return nil
}

// ListRunning returns the IDs of all tasks currently marked as running.
// It uses SCAN to avoid blocking the Redis server.
func (tm *TaskManager) ListRunning(ctx context.Context) ([]string, error) {
	var taskIDs []string
	pattern := taskStateKeyPrefix + "*"

	iter := tm.redis.GetClient().Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		taskIDs = append(taskIDs, strings.TrimPrefix(iter.Val(), taskStateKeyPrefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan for running tasks: %w", err)
	}

	return taskIDs, nil
}

// StoreSummary persists a serialized dispatch summary for later retrieval.
func (tm *TaskManager) StoreSummary(ctx context.Context, taskID string, summary []byte) error {
	if err := tm.redis.Set(ctx, tm.summaryKey(taskID), summary, tm.stateTTL); err != nil {
		return fmt.Errorf("failed to store summary for task %s: %w", taskID, err)
	}
	return nil
}

// GetSummary returns the stored dispatch summary, or nil when none exists.
func (tm *TaskManager) GetSummary(ctx context.Context, taskID string) ([]byte, error) {
	val, err := tm.redis.Get(ctx, tm.summaryKey(taskID))
	if err != nil {
		if errors.Is(err, redisv9.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get summary for task %s: %w", taskID, err)
	}
	return []byte(val), nil
}
