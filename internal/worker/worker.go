package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gofrs/uuid"
	"github.com/redis/go-redis/v9"
)

type JobType string

const (
	JobTypePhotoAnalysis     JobType = "photo_analysis"
	JobTypeTaskReminder      JobType = "task_reminder"
	JobTypeEmailNotification JobType = "email_notification"
	JobTypeCleanup           JobType = "cleanup"
)

const (
	AnalysisQueue = "analysis_queue"
	RetryQueue    = "retry_queue"
	DeadQueue     = "dead_queue"

	defaultMaxTries = 3
	retryDelay      = time.Minute
)

// Job is the unit of background work carried through the Redis queues.
type Job struct {
	ID        string                 `json:"id"`
	Type      JobType                `json:"type"`
	Payload   map[string]interface{} `json:"payload"`
	Attempts  int                    `json:"attempts"`
	MaxTries  int                    `json:"max_tries"`
	CreatedAt time.Time              `json:"created_at"`
	ProcessAt time.Time              `json:"process_at"`
}

type JobHandler func(ctx context.Context, job *Job) error

type WorkerConfig struct {
	RedisClient  *redis.Client
	Concurrency  int
	PollInterval time.Duration
	Queues       []string
}

// Worker polls the configured queues in order and dispatches jobs to
// registered handlers. Failed jobs go to the retry queue until their
// attempts are exhausted, then to the dead queue.
type Worker struct {
	client       *redis.Client
	handlers     map[JobType]JobHandler
	queues       []string
	pollInterval time.Duration
	concurrency  int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.RWMutex
}

func NewWorker(config WorkerConfig) *Worker {
	ctx, cancel := context.WithCancel(context.Background())

	pollInterval := config.PollInterval
	if pollInterval <= 0 {
		pollInterval = time.Second
	}

	concurrency := config.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	return &Worker{
		client:       config.RedisClient,
		handlers:     make(map[JobType]JobHandler),
		queues:       config.Queues,
		pollInterval: pollInterval,
		concurrency:  concurrency,
		ctx:          ctx,
		cancel:       cancel,
	}
}

func (w *Worker) RegisterHandler(jobType JobType, handler JobHandler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[jobType] = handler
}

// Start launches n polling goroutines. Pass 0 to use the configured
// concurrency.
func (w *Worker) Start(n int) {
	if n <= 0 {
		n = w.concurrency
	}

	for i := 0; i < n; i++ {
		w.wg.Add(1)
		go w.run(i)
	}

	log.Printf("🔄 Worker started with %d goroutines polling %v", n, w.queues)
}

func (w *Worker) Stop() {
	w.cancel()
	w.wg.Wait()
	log.Println("🛑 Worker stopped")
}

func (w *Worker) run(id int) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			if err := w.processNextJob(); err != nil {
				log.Printf("⚠️ Worker %d failed to process job: %v", id, err)
			}
		}
	}
}

// processNextJob pops at most one job off the queues. An empty queue is
// not an error.
func (w *Worker) processNextJob() error {
	for _, queue := range w.queues {
		data, err := w.client.LPop(w.ctx, queue).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to pop from queue %s: %w", queue, err)
		}

		var job Job
		if err := json.Unmarshal([]byte(data), &job); err != nil {
			return fmt.Errorf("failed to unmarshal job from queue %s: %w", queue, err)
		}

		// Not due yet, put it back.
		if job.ProcessAt.After(time.Now()) {
			if err := w.push(queue, &job); err != nil {
				return err
			}
			return nil
		}

		w.mu.RLock()
		handler, exists := w.handlers[job.Type]
		w.mu.RUnlock()

		if !exists {
			return fmt.Errorf("no handler registered for job type %s", job.Type)
		}

		if err := handler(w.ctx, &job); err != nil {
			return w.handleFailure(&job, err)
		}

		return nil
	}

	return nil
}

func (w *Worker) handleFailure(job *Job, cause error) error {
	job.Attempts++

	if job.Attempts >= job.MaxTries {
		log.Printf("❌ Job %s (%s) exhausted %d attempts: %v", job.ID, job.Type, job.Attempts, cause)
		return w.push(DeadQueue, job)
	}

	job.ProcessAt = time.Now().Add(retryDelay)
	log.Printf("⚠️ Job %s (%s) failed attempt %d/%d, retrying: %v", job.ID, job.Type, job.Attempts, job.MaxTries, cause)
	return w.push(RetryQueue, job)
}

func (w *Worker) push(queue string, job *Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job %s: %w", job.ID, err)
	}
	if err := w.client.RPush(w.ctx, queue, data).Err(); err != nil {
		return fmt.Errorf("failed to push job %s to queue %s: %w", job.ID, queue, err)
	}
	return nil
}

// JobQueue is the producer side of the background job pipeline.
type JobQueue struct {
	client *redis.Client
}

func NewJobQueue(client *redis.Client) *JobQueue {
	return &JobQueue{client: client}
}

func (q *JobQueue) Enqueue(queue string, jobType JobType, payload map[string]interface{}) error {
	return q.EnqueueAt(queue, jobType, payload, time.Now())
}

func (q *JobQueue) EnqueueAt(queue string, jobType JobType, payload map[string]interface{}, processAt time.Time) error {
	job := Job{
		ID:        uuid.Must(uuid.NewV4()).String(),
		Type:      jobType,
		Payload:   payload,
		Attempts:  0,
		MaxTries:  defaultMaxTries,
		CreatedAt: time.Now(),
		ProcessAt: processAt,
	}

	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	if err := q.client.RPush(context.Background(), queue, data).Err(); err != nil {
		return fmt.Errorf("failed to enqueue job: %w", err)
	}

	return nil
}

func (q *JobQueue) GetQueueSize(queue string) (int64, error) {
	return q.client.LLen(context.Background(), queue).Result()
}
