// Package pipeline buffers per-entity update requests from concurrent
// skirmish workers and flushes them into single ledger transactions.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/talgya/fleet-roster/internal/fleet"
	"github.com/talgya/fleet-roster/internal/ledger"
)

const (
	// DefaultBatchSize is the queue depth that triggers an automatic flush.
	DefaultBatchSize = 10
	// DefaultFlushTimeout bounds how long one drain-and-commit may take.
	DefaultFlushTimeout = 5 * time.Second
)

// Pipeline decouples many concurrent producers from the single-writer
// ledger. One mutex guards the queue: enqueue and drain are mutually
// exclusive, and drained updates leave the queue only after their
// transaction commits.
type Pipeline struct {
	led          *ledger.Ledger
	batchSize    int
	flushTimeout time.Duration

	mu      sync.Mutex
	pending []ledger.Update

	flushCh chan struct{}
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// New creates a pipeline and starts its background flusher. Zero values for
// batchSize and flushTimeout select the defaults.
func New(led *ledger.Ledger, batchSize int, flushTimeout time.Duration) *Pipeline {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if flushTimeout <= 0 {
		flushTimeout = DefaultFlushTimeout
	}

	p := &Pipeline{
		led:          led,
		batchSize:    batchSize,
		flushTimeout: flushTimeout,
		flushCh:      make(chan struct{}, 1),
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}
	go p.flusher()
	return p
}

// Submit enqueues one update. It blocks only on the queue lock, never on
// I/O: when the queue reaches the batch size the flush is handed to the
// background flusher. Returns false once the pipeline is closed.
func (p *Pipeline) Submit(u ledger.Update) bool {
	select {
	case <-p.stopCh:
		return false
	default:
	}

	p.mu.Lock()
	p.pending = append(p.pending, u)
	full := len(p.pending) >= p.batchSize
	p.mu.Unlock()

	if full {
		select {
		case p.flushCh <- struct{}{}:
		default: // flush already signalled
		}
	}
	return true
}

// Pending reports the current queue depth.
func (p *Pipeline) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

// ForceFlush synchronously drains the whole queue into one ledger
// transaction and reports whether it committed. A timeout or I/O failure
// keeps the drained updates queued for retry (they are idempotent upserts);
// a validation failure poisons the batch, so it is dropped and reported
// failed for the producer to re-submit clean data.
func (p *Pipeline) ForceFlush() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.pending) == 0 {
		return true
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.flushTimeout)
	defer cancel()

	batch := p.pending
	err := p.led.ApplyContext(ctx, batch)
	switch {
	case err == nil:
		p.pending = p.pending[len(batch):]
		return true
	case errors.Is(err, fleet.ErrValidation):
		slog.Error("flush rejected, dropping poisoned batch", "updates", len(batch), "error", err)
		p.pending = p.pending[len(batch):]
		return false
	default:
		// Contention or I/O failure: the batch stays queued; a later flush
		// re-applies it and the upsert keys absorb any partial overlap.
		slog.Warn("flush failed, batch retained", "updates", len(batch), "error", err)
		return false
	}
}

// Close stops the background flusher after one final drain.
func (p *Pipeline) Close() {
	close(p.stopCh)
	<-p.doneCh
}

func (p *Pipeline) flusher() {
	defer close(p.doneCh)
	for {
		select {
		case <-p.flushCh:
			p.ForceFlush()
		case <-p.stopCh:
			p.ForceFlush()
			return
		}
	}
}
