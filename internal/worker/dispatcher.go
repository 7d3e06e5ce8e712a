// Package worker consumes queued send jobs from redis and runs each one
// through the delivery pipeline. The queue sits outside the pipeline:
// dequeue order carries no delivery guarantee beyond per-job isolation.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/mailroom/internal/message"
	"github.com/ignite/mailroom/internal/pipeline"
	"github.com/ignite/mailroom/internal/pkg/logger"
)

// DefaultQueue is the redis list holding pending send jobs.
const DefaultQueue = "mailroom:queue:outbound"

// Job is one queued send: the composed message plus its type tag.
type Job struct {
	EmailType string                   `json:"email_type"`
	Message   *message.OutboundMessage `json:"message"`
}

// Dispatcher is a pool of workers draining the send queue. Each job gets
// one pipeline run; outcomes land in the delivery log like any other send.
type Dispatcher struct {
	redis      *redis.Client
	pipeline   *pipeline.Pipeline
	queue      string
	numWorkers int

	sent    int64
	skipped int64
	failed  int64

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// NewDispatcher creates a dispatcher. Zero or negative numWorkers gets a
// small default; queue "" uses DefaultQueue.
func NewDispatcher(rc *redis.Client, p *pipeline.Pipeline, queue string, numWorkers int) *Dispatcher {
	if queue == "" {
		queue = DefaultQueue
	}
	if numWorkers <= 0 {
		numWorkers = 4
	}
	return &Dispatcher{
		redis:      rc,
		pipeline:   p,
		queue:      queue,
		numWorkers: numWorkers,
	}
}

// Enqueue pushes a send job onto the queue.
func Enqueue(ctx context.Context, rc *redis.Client, queue string, job *Job) error {
	if queue == "" {
		queue = DefaultQueue
	}
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("worker: marshal job: %w", err)
	}
	return rc.LPush(ctx, queue, data).Err()
}

// Start launches the worker pool. Safe to call once; a second call while
// running is a no-op.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return
	}
	d.running = true
	d.ctx, d.cancel = context.WithCancel(ctx)

	for i := 0; i < d.numWorkers; i++ {
		d.wg.Add(1)
		go d.run(i)
	}

	logger.Info("dispatcher started",
		"queue", d.queue,
		"workers", d.numWorkers,
	)
}

// Stop cancels the workers and waits for in-flight jobs to finish.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	d.cancel()
	d.mu.Unlock()

	d.wg.Wait()
	logger.Info("dispatcher stopped",
		"sent", atomic.LoadInt64(&d.sent),
		"skipped", atomic.LoadInt64(&d.skipped),
		"failed", atomic.LoadInt64(&d.failed),
	)
}

// Stats reports lifetime counters for the pool.
func (d *Dispatcher) Stats() (sent, skipped, failed int64) {
	return atomic.LoadInt64(&d.sent), atomic.LoadInt64(&d.skipped), atomic.LoadInt64(&d.failed)
}

func (d *Dispatcher) run(id int) {
	defer d.wg.Done()

	for {
		res, err := d.redis.BRPop(d.ctx, 2*time.Second, d.queue).Result()
		if err != nil {
			if errors.Is(err, context.Canceled) || d.ctx.Err() != nil {
				return
			}
			if errors.Is(err, redis.Nil) {
				continue
			}
			logger.Error("dispatcher dequeue failed",
				"worker", id,
				"error", err.Error(),
			)
			// Back off so a dead redis does not spin the pool hot.
			select {
			case <-time.After(time.Second):
			case <-d.ctx.Done():
				return
			}
			continue
		}

		// BRPop returns [key, value].
		if len(res) != 2 {
			continue
		}
		d.process(id, []byte(res[1]))
	}
}

func (d *Dispatcher) process(id int, payload []byte) {
	var job Job
	if err := json.Unmarshal(payload, &job); err != nil {
		atomic.AddInt64(&d.failed, 1)
		logger.Error("dispatcher bad job payload",
			"worker", id,
			"error", err.Error(),
		)
		return
	}

	out, err := d.pipeline.Send(d.ctx, job.Message, job.EmailType)
	if err != nil {
		atomic.AddInt64(&d.failed, 1)
		logger.Error("dispatcher send failed",
			"worker", id,
			"email_type", job.EmailType,
			"error", err.Error(),
		)
		return
	}

	if out.Sent() {
		atomic.AddInt64(&d.sent, 1)
	} else {
		atomic.AddInt64(&d.skipped, 1)
	}
}
