package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"tasklist/backend/internal/logger"
	"tasklist/backend/internal/models"
	"tasklist/backend/internal/repositories"

	"github.com/gofrs/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultAuditQueue = "tasklist:audit"
	DefaultDeadQueue  = "tasklist:audit:dead"
)

// Job is one audit entry waiting to be written.
type Job struct {
	ID        string           `json:"id"`
	Entry     *models.AuditLog `json:"entry"`
	Attempts  int              `json:"attempts"`
	MaxTries  int              `json:"max_tries"`
	CreatedAt time.Time        `json:"created_at"`
}

// AuditQueue is an AuditStore that pushes entries onto a Redis list for the
// Worker to persist.
type AuditQueue struct {
	client   redis.UniversalClient
	queue    string
	maxTries int
}

func NewAuditQueue(client redis.UniversalClient, queue string) *AuditQueue {
	if queue == "" {
		queue = DefaultAuditQueue
	}
	return &AuditQueue{client: client, queue: queue, maxTries: 3}
}

func (q *AuditQueue) Record(ctx context.Context, entry *models.AuditLog) error {
	if entry.ID == uuid.Nil {
		id, err := uuid.NewV4()
		if err != nil {
			return fmt.Errorf("failed to generate audit id: %w", err)
		}
		entry.ID = id
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	job := &Job{
		ID:        entry.ID.String(),
		Entry:     entry,
		MaxTries:  q.maxTries,
		CreatedAt: time.Now(),
	}
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	if err := q.client.RPush(ctx, q.queue, data).Err(); err != nil {
		return fmt.Errorf("failed to enqueue audit entry: %w", err)
	}
	return nil
}

func (q *AuditQueue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.queue).Result()
}

type Config struct {
	Client      redis.UniversalClient
	Sink        repositories.AuditStore
	Queue       string
	DeadQueue   string
	Concurrency int
	// PollTimeout bounds each blocking pop so Stop is noticed promptly.
	PollTimeout time.Duration
	Log         *logger.Logger
}

// Worker drains the audit queue into the durable audit store.
type Worker struct {
	client      redis.UniversalClient
	sink        repositories.AuditStore
	queue       string
	deadQueue   string
	concurrency int
	pollTimeout time.Duration
	log         *logger.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewWorker(cfg Config) *Worker {
	if cfg.Queue == "" {
		cfg.Queue = DefaultAuditQueue
	}
	if cfg.DeadQueue == "" {
		cfg.DeadQueue = DefaultDeadQueue
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = time.Second
	}
	if cfg.Log == nil {
		cfg.Log = logger.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		client:      cfg.Client,
		sink:        cfg.Sink,
		queue:       cfg.Queue,
		deadQueue:   cfg.DeadQueue,
		concurrency: cfg.Concurrency,
		pollTimeout: cfg.PollTimeout,
		log:         cfg.Log.WithComponent("audit_worker"),
		ctx:         ctx,
		cancel:      cancel,
	}
}

func (w *Worker) Start() {
	w.log.Infow("Starting audit worker", "concurrency", w.concurrency, "queue", w.queue)
	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.loop()
	}
}

func (w *Worker) Stop() {
	w.cancel()
	w.wg.Wait()
	w.log.Info("Audit worker stopped")
}

func (w *Worker) loop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		default:
		}

		if _, err := w.ProcessNext(w.ctx); err != nil {
			if w.ctx.Err() != nil {
				return
			}
			w.log.Warnw("Error processing audit job", "error", err)
			select {
			case <-w.ctx.Done():
				return
			case <-time.After(time.Second):
			}
		}
	}
}

// ProcessNext pops and handles one job. It reports false when the queue
// stayed empty for the poll timeout.
func (w *Worker) ProcessNext(ctx context.Context) (bool, error) {
	result, err := w.client.BLPop(ctx, w.pollTimeout, w.queue).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("failed to pop job: %w", err)
	}
	if len(result) < 2 {
		return false, fmt.Errorf("invalid job result")
	}

	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		return true, w.bury(ctx, result[1], fmt.Errorf("failed to unmarshal job: %w", err))
	}
	if job.Entry == nil {
		return true, w.bury(ctx, result[1], errors.New("job has no audit entry"))
	}

	writeCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := w.sink.Record(writeCtx, job.Entry); err != nil {
		job.Attempts++
		if job.Attempts < job.MaxTries {
			w.log.Warnw("Audit job failed, retrying",
				"job_id", job.ID, "attempt", job.Attempts, "max_tries", job.MaxTries, "error", err)
			return true, w.push(ctx, w.queue, &job)
		}
		w.log.Errorw("Audit job failed permanently", "job_id", job.ID, "attempts", job.Attempts, "error", err)
		data, _ := json.Marshal(&job)
		return true, w.bury(ctx, string(data), err)
	}
	return true, nil
}

func (w *Worker) push(ctx context.Context, queue string, job *Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	return w.client.RPush(ctx, queue, data).Err()
}

func (w *Worker) bury(ctx context.Context, raw string, jobErr error) error {
	dead, err := json.Marshal(map[string]interface{}{
		"job":       json.RawMessage(rawOrQuoted(raw)),
		"error":     jobErr.Error(),
		"failed_at": time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal dead job: %w", err)
	}
	return w.client.RPush(ctx, w.deadQueue, dead).Err()
}

func rawOrQuoted(raw string) []byte {
	if json.Valid([]byte(raw)) {
		return []byte(raw)
	}
	quoted, _ := json.Marshal(raw)
	return quoted
}
