package worker

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/recloned/adcloner/internal/pipeline"
	"github.com/recloned/adcloner/internal/queue"
)

// Worker consumes pipeline-run jobs from the queue and executes them. Up to
// maxConcurrent runs are in flight at once; further jobs wait on the slot
// semaphore before being dequeued.
type Worker struct {
	queue         *queue.Queue
	orchestrator  *pipeline.Orchestrator
	maxConcurrent int
}

func New(q *queue.Queue, orchestrator *pipeline.Orchestrator, maxConcurrent int) *Worker {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Worker{
		queue:         q,
		orchestrator:  orchestrator,
		maxConcurrent: maxConcurrent,
	}
}

// Start runs the dequeue loop until the context is cancelled, then waits for
// in-flight runs to finish.
func (w *Worker) Start(ctx context.Context) {
	log.Printf("[Worker] Started (max %d concurrent runs)", w.maxConcurrent)

	slots := make(chan struct{}, w.maxConcurrent)
	var wg sync.WaitGroup

	for {
		select {
		case <-ctx.Done():
			log.Println("[Worker] Shutting down, waiting for in-flight runs...")
			wg.Wait()
			log.Println("[Worker] Stopped")
			return
		case slots <- struct{}{}:
		}

		job, err := w.queue.Dequeue(ctx, 5*time.Second)
		if err != nil {
			<-slots
			if ctx.Err() != nil {
				continue
			}
			log.Printf("[Worker] Dequeue error: %v", err)
			time.Sleep(time.Second)
			continue
		}
		if job == nil {
			<-slots
			continue
		}

		wg.Add(1)
		go func(job *queue.RunJob) {
			defer wg.Done()
			defer func() { <-slots }()

			log.Printf("[Worker] Processing run %s (project %s)", job.ID, job.ProjectID)
			if err := w.orchestrator.Run(ctx, job.ProjectID); err != nil {
				// Orchestrator already marked the project errored
				log.Printf("[Worker] Run %s failed: %v", job.ID, err)
			}
		}(job)
	}
}
