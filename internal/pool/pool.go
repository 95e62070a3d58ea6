package pool

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/GitRadiation/template-filler/internal/domain"
	"github.com/GitRadiation/template-filler/internal/metrics"
	"github.com/GitRadiation/template-filler/internal/usecase"
)

// WorkerPool manages a fixed-size pool of goroutines that render documents.
type WorkerPool struct {
	size     int
	tasks    <-chan *domain.TaskMessage
	renderUC *usecase.RenderJobUsecase
	logger   *zap.Logger
	wg       sync.WaitGroup
}

// NewWorkerPool creates a new fixed-size worker pool.
func NewWorkerPool(size int, tasks <-chan *domain.TaskMessage, renderUC *usecase.RenderJobUsecase, logger *zap.Logger) *WorkerPool {
	return &WorkerPool{
		size:     size,
		tasks:    tasks,
		renderUC: renderUC,
		logger:   logger,
	}
}

// Start launches all worker goroutines. Call Stop to wait for them to finish.
func (p *WorkerPool) Start(ctx context.Context) {
	p.logger.Info("Starting worker pool", zap.Int("pool_size", p.size))

	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

// Stop waits for all workers to finish their current tasks and exit.
func (p *WorkerPool) Stop() {
	p.wg.Wait()
	p.logger.Info("Worker pool stopped")
}

func (p *WorkerPool) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Worker panic recovered",
				zap.Int("worker_id", id),
				zap.Any("panic", r),
			)
		}
	}()

	p.logger.Debug("Worker started", zap.Int("worker_id", id))

	for {
		select {
		case <-ctx.Done():
			p.logger.Debug("Worker shutting down", zap.Int("worker_id", id))
			return
		case msg, ok := <-p.tasks:
			if !ok {
				p.logger.Debug("Task channel closed", zap.Int("worker_id", id))
				return
			}

			p.logger.Info("Worker processing job",
				zap.Int("worker_id", id),
				zap.String("job_id", msg.JobID.String()),
			)

			metrics.WorkersActive.Inc()
			skipped, err := p.renderUC.Execute(ctx, msg.JobID)
			metrics.WorkersActive.Dec()

			if err != nil {
				// The job record could not be updated, so the failure is not
				// on file anywhere. Nack without requeue — the message lands
				// in the DLQ for operator inspection instead of looping.
				p.logger.Error("Job processing failed",
					zap.Int("worker_id", id),
					zap.String("job_id", msg.JobID.String()),
					zap.Error(err),
				)
				if nackErr := msg.Nack(false); nackErr != nil {
					p.logger.Error("Failed to NACK message",
						zap.String("job_id", msg.JobID.String()),
						zap.Error(nackErr),
					)
				}
				continue
			}

			if skipped {
				p.logger.Debug("Duplicate or stale delivery skipped",
					zap.Int("worker_id", id),
					zap.String("job_id", msg.JobID.String()),
				)
			}

			// Outcome is recorded on the job row (completed or failed),
			// so the message is done either way.
			if ackErr := msg.Ack(); ackErr != nil {
				p.logger.Error("Failed to ACK message",
					zap.String("job_id", msg.JobID.String()),
					zap.Error(ackErr),
				)
			}
		}
	}
}
