// Package worker drains the event outbox and hands events to a publisher.
package worker

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/softai/coursecore/internal/domain/model"
	"github.com/softai/coursecore/pkg/logger"
	"github.com/softai/coursecore/pkg/metrics"
)

const (
	defaultWorkerCount    = 2
	defaultPublishTimeout = 5 * time.Second
)

// Publisher delivers one event to the message broker.
type Publisher interface {
	Publish(ctx context.Context, e model.Event) error
}

// Queue is where workers read events from.
type Queue interface {
	Dequeue() <-chan model.Event
	Close() error
}

// Pool runs a fixed number of workers over one queue.
type Pool struct {
	queue     Queue
	publisher Publisher

	workerCount    int
	publishTimeout time.Duration

	wg      sync.WaitGroup
	started bool
	logger  logger.Logger
}

// NewPool creates a pool. Call Start to run it.
func NewPool(q Queue, pub Publisher, opts ...Option) *Pool {
	p := &Pool{
		queue:          q,
		publisher:      pub,
		workerCount:    defaultWorkerCount,
		publishTimeout: defaultPublishTimeout,
		logger:         logger.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start launches the workers. They run until the queue is closed and
// drained; ctx only scopes the publish calls.
func (p *Pool) Start(ctx context.Context) {
	if p.started {
		return
	}
	p.started = true

	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.run(ctx, p.logger.Named("worker-"+strconv.Itoa(i)))
	}
}

func (p *Pool) run(ctx context.Context, log logger.Logger) {
	defer p.wg.Done()
	for e := range p.queue.Dequeue() {
		p.publish(ctx, log, e)
	}
}

func (p *Pool) publish(ctx context.Context, log logger.Logger, e model.Event) { //nolint:gocritic // hugeParam: Event passed by value for channel semantics
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.publishTimeout)
	defer cancel()

	if err := p.publisher.Publish(pctx, e); err != nil {
		metrics.RecordEventDropped("publish_error")
		log.Error(ctx, "event publish failed",
			logger.String("event_id", e.EventID),
			logger.String("routing_key", e.RoutingKey),
			logger.Error(err))
		return
	}
	metrics.RecordEventPublished(e.RoutingKey)
}

// Shutdown closes the queue and waits for the workers to drain it.
func (p *Pool) Shutdown(ctx context.Context) error {
	if err := p.queue.Close(); err != nil {
		p.logger.Error(ctx, "error closing queue", logger.Error(err))
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		p.logger.Warn(ctx, "event drain timed out")
		return fmt.Errorf("drain events: %w", ctx.Err())
	}
}
