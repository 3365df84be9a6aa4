package worker

import (
	"context"
	"log"
	"time"

	"github.com/edutoons/backend/internal/queue"
)

// Worker consumes render jobs from the queue and runs them through the
// pipeline. Each job is processed to completion by a single goroutine;
// parallelism across jobs comes from the worker pool, parallelism within a
// job from the pipeline's scene fan-out.
type Worker struct {
	queue    *queue.Queue
	pipeline *Pipeline
}

func New(q *queue.Queue, p *Pipeline) *Worker {
	return &Worker{
		queue:    q,
		pipeline: p,
	}
}

// Start begins processing jobs. Blocks until ctx is cancelled.
func (w *Worker) Start(ctx context.Context, concurrency int) {
	log.Printf("Worker started with concurrency: %d", concurrency)

	for i := 0; i < concurrency; i++ {
		go w.processQueue(ctx)
	}

	<-ctx.Done()
	log.Println("Worker shutting down...")
}

func (w *Worker) processQueue(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
			job, err := w.queue.Dequeue(ctx, queue.QueueRenderVideo, 5*time.Second)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Printf("Error dequeuing from %s: %v", queue.QueueRenderVideo, err)
				continue
			}

			if job == nil {
				continue // No job available, retry
			}

			log.Printf("Processing job %s (project: %s, scenes: %d)", job.ID, job.ProjectID, len(job.Scenes))

			if signedURL, err := w.pipeline.Run(ctx, job); err != nil {
				log.Printf("Job %s failed: %v", job.ID, err)
			} else {
				log.Printf("Job %s completed successfully: %s", job.ID, signedURL)
			}
		}
	}
}
