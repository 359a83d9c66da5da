package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const QueuePipelineRun = "queue:pipeline_run"

type Queue struct {
	client *redis.Client
}

// RunJob asks the worker to run the full generation pipeline for a project.
// The queue is a plain redis list: best-effort handoff, no durability or
// exactly-once guarantee.
type RunJob struct {
	ID        uuid.UUID `json:"id"`
	ProjectID uuid.UUID `json:"project_id"`
	CreatedAt time.Time `json:"created_at"`
}

func New(redisURL string) (*Queue, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Queue{client: client}, nil
}

func (q *Queue) Close() error {
	return q.client.Close()
}

// EnqueuePipelineRun schedules a full pipeline run for a project.
func (q *Queue) EnqueuePipelineRun(ctx context.Context, projectID uuid.UUID) error {
	job := &RunJob{
		ID:        uuid.New(),
		ProjectID: projectID,
		CreatedAt: time.Now(),
	}

	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	return q.client.RPush(ctx, QueuePipelineRun, data).Err()
}

// Dequeue blocks up to timeout waiting for the next pipeline run. Returns
// (nil, nil) when no job is available.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (*RunJob, error) {
	result, err := q.client.BLPop(ctx, timeout, QueuePipelineRun).Result()
	if err == redis.Nil {
		return nil, nil // No job available
	}
	if err != nil {
		return nil, fmt.Errorf("failed to dequeue: %w", err)
	}

	if len(result) != 2 {
		return nil, fmt.Errorf("unexpected redis response")
	}

	var job RunJob
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}

	return &job, nil
}

// Length returns the number of queued pipeline runs.
func (q *Queue) Length(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, QueuePipelineRun).Result()
}
