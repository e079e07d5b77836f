/*
Package audit batches the scheduling audit trail.

PURPOSE:
  Audit writes are fire-and-forget: scheduling must never slow down or fail
  because the trail couldn't be written. The Batcher owns an explicit queue
  and flush timer (no package-level state) and is injected into the engine
  as its AuditSink.

FLUSH POLICY:
  - Size threshold: a full batch wakes the background flusher.
  - Interval: a background ticker flushes whatever is pending.
  All repository writes happen on the background goroutine.
  - Close(): drains the queue before returning.
  A failed flush is logged and the entries are dropped; audit loss is
  acceptable, blocked scheduling is not.
*/
package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/catalyst-eval/catalyst-scheduler/scheduling"
)

const (
	defaultBatchSize    = 25
	defaultFlushEvery   = 10 * time.Second
	defaultFlushTimeout = 5 * time.Second
)

// Batcher buffers audit entries and writes them through the repository in
// batches. Implements scheduling.AuditSink.
type Batcher struct {
	repo   scheduling.Repository
	logger *zap.Logger

	batchSize  int
	flushEvery time.Duration

	mu      sync.Mutex
	pending []scheduling.AuditEntry
	closed  bool

	ticker *time.Ticker
	kick   chan struct{}
	stop   chan struct{}
	wg     sync.WaitGroup
}

// Option customizes a Batcher.
type Option func(*Batcher)

// WithBatchSize sets the size threshold that triggers an immediate flush.
func WithBatchSize(n int) Option {
	return func(b *Batcher) { b.batchSize = n }
}

// WithFlushInterval sets the background flush cadence.
func WithFlushInterval(d time.Duration) Option {
	return func(b *Batcher) { b.flushEvery = d }
}

// NewBatcher creates and starts a batcher writing through repo.
func NewBatcher(repo scheduling.Repository, logger *zap.Logger, opts ...Option) *Batcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &Batcher{
		repo:       repo,
		logger:     logger,
		batchSize:  defaultBatchSize,
		flushEvery: defaultFlushEvery,
		kick:       make(chan struct{}, 1),
		stop:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}

	b.ticker = time.NewTicker(b.flushEvery)
	b.wg.Add(1)
	go b.run()
	return b
}

// Record queues one entry. Never blocks on storage and never fails the
// caller; entries recorded after Close are dropped.
func (b *Batcher) Record(entry scheduling.AuditEntry) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.pending = append(b.pending, entry)
	full := len(b.pending) >= b.batchSize
	b.mu.Unlock()

	if full {
		// Nudge the background flusher; the recording goroutine never
		// touches storage itself.
		select {
		case b.kick <- struct{}{}:
		default:
		}
	}
}

// Flush writes everything pending. Safe to call at any time.
func (b *Batcher) Flush() {
	b.mu.Lock()
	batch := b.pending
	b.pending = nil
	b.mu.Unlock()

	if len(batch) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultFlushTimeout)
	defer cancel()

	failed := 0
	for _, entry := range batch {
		if err := b.repo.AppendAuditEntry(ctx, entry); err != nil {
			failed++
		}
	}
	if failed > 0 {
		// Audit loss is tolerated; scheduling already moved on.
		b.logger.Warn("audit flush dropped entries",
			zap.Int("dropped", failed),
			zap.Int("batch", len(batch)))
	}
}

// Pending returns the number of queued entries.
func (b *Batcher) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Close stops the background flusher and drains the queue.
func (b *Batcher) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.mu.Unlock()

	close(b.stop)
	b.wg.Wait()
	b.ticker.Stop()
	b.Flush()
}

func (b *Batcher) run() {
	defer b.wg.Done()
	for {
		select {
		case <-b.ticker.C:
			b.Flush()
		case <-b.kick:
			b.Flush()
		case <-b.stop:
			return
		}
	}
}
