// Package dispatch hands accepted enrichment candidates to the ingestion
// queue on a bounded worker pool, off the search request path.
package dispatch

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/kirillkom/knowledge-gateway/internal/core/domain"
	"github.com/kirillkom/knowledge-gateway/internal/core/ports"
)

// Compile-time check: PoolDispatcher implements ports.EnrichmentDispatcher.
var _ ports.EnrichmentDispatcher = (*PoolDispatcher)(nil)

const defaultPublishTimeout = 5 * time.Second

type PoolDispatcher struct {
	pool           *ants.Pool
	queue          ports.IngestionQueue
	publishTimeout time.Duration
	logger         *slog.Logger
}

// Option configures a PoolDispatcher.
type Option func(*PoolDispatcher)

// WithPublishTimeout bounds each queue publish. Default is 5s.
func WithPublishTimeout(d time.Duration) Option {
	return func(p *PoolDispatcher) {
		if d > 0 {
			p.publishTimeout = d
		}
	}
}

// WithLogger sets a custom logger. Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *PoolDispatcher) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewPoolDispatcher creates a dispatcher publishing to queue with size
// workers. size < 1 defaults to half the CPU count, with a minimum of 1.
func NewPoolDispatcher(queue ports.IngestionQueue, size int, opts ...Option) (*PoolDispatcher, error) {
	if size < 1 {
		size = runtime.NumCPU() / 2
		if size < 1 {
			size = 1
		}
	}
	pool, err := ants.NewPool(size)
	if err != nil {
		return nil, err
	}

	p := &PoolDispatcher{
		pool:           pool,
		queue:          queue,
		publishTimeout: defaultPublishTimeout,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// DispatchAsync submits one publish task per candidate and returns
// immediately. Failures are logged, never surfaced: a full pool or a down
// queue drops candidates rather than stalling the caller.
func (p *PoolDispatcher) DispatchAsync(candidates []domain.EnrichmentCandidate) {
	for _, candidate := range candidates {
		candidate := candidate
		err := p.pool.Submit(func() {
			ctx, cancel := context.WithTimeout(context.Background(), p.publishTimeout)
			defer cancel()
			if err := p.queue.PublishEnrichmentCandidate(ctx, candidate); err != nil {
				p.logger.Error("drop enrichment candidate",
					"candidate_id", candidate.ID,
					"url", candidate.URL,
					"error", err)
			}
		})
		if err != nil {
			p.logger.Error("dispatch pool rejected candidate",
				"candidate_id", candidate.ID,
				"error", err)
		}
	}
}

// Release stops the pool, waiting up to 5s for in-flight publishes.
// The dispatcher should not be used after calling Release.
func (p *PoolDispatcher) Release() {
	if err := p.pool.ReleaseTimeout(5 * time.Second); err != nil {
		p.logger.Warn("dispatch pool release timed out", "error", err)
	}
}
