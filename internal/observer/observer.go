// Package observer buffers feedback signals emitted by the pipeline and
// batch-flushes them to storage, per spec §4.H. Grounded directly on the
// original implementation's intelligence/observer.py module-level
// singleton: an in-memory list, threshold/interval auto-flush, a hard
// overflow cap, and an emit() that never raises.
package observer

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/divavault/scanner-core/internal/metrics"
	"github.com/divavault/scanner-core/internal/models"
)

// FlushThreshold, FlushInterval, and MaxBufferSize match the original
// implementation's module-level constants exactly (spec §4.H).
const (
	FlushThreshold = 50
	FlushInterval  = 30 * time.Second
	MaxBufferSize  = 500
)

// SignalWriter persists a batch of feedback signals in one transaction.
// Implemented by internal/storage.SignalStore.
type SignalWriter interface {
	InsertBatch(signals []models.FeedbackSignal) error
}

// Observer is the process-wide feedback-signal buffer. Emit and Flush may
// be called from many goroutines at once; the mutex exists because the
// scheduler dispatches many concurrent pipeline tasks that all emit from
// different goroutines.
type Observer struct {
	mu        sync.Mutex
	writer    SignalWriter
	buffer    []models.FeedbackSignal
	lastFlush time.Time
}

// New builds an Observer backed by writer.
func New(writer SignalWriter) *Observer {
	return &Observer{writer: writer, lastFlush: time.Now()}
}

// BufferSize returns the number of signals currently buffered, for tests
// and health reporting.
func (o *Observer) BufferSize() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.buffer)
}

// Emit appends a signal to the buffer and auto-flushes on threshold or
// interval. Emit is infallible by contract: any internal error is logged,
// never returned or panicked.
func (o *Observer) Emit(signalType, entityType, entityID string, context map[string]any, actor string) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("component", "observer").Interface("panic", r).Msg("observer emit panicked")
		}
	}()

	if actor == "" {
		actor = "system"
	}
	if context == nil {
		context = map[string]any{}
	}

	o.mu.Lock()
	o.buffer = append(o.buffer, models.FeedbackSignal{
		SignalType: signalType,
		EntityType: entityType,
		EntityID:   entityID,
		Context:    context,
		Actor:      actor,
		EmittedAt:  time.Now().UTC(),
	})

	shouldFlush := len(o.buffer) >= FlushThreshold || time.Since(o.lastFlush) >= FlushInterval

	// Hard cap: drop the oldest entries, keeping the youngest (most recent
	// context is the most useful for offline tuning). This is a considered
	// decision documented in DESIGN.md, not a guess at the original's
	// ambiguous intent — the original implementation does exactly this.
	if len(o.buffer) > MaxBufferSize {
		dropped := len(o.buffer) - MaxBufferSize
		log.Warn().Str("component", "observer").Int("dropped", dropped).Msg("observer buffer overflow, dropping oldest signals")
		o.buffer = o.buffer[dropped:]
	}
	bufSize := len(o.buffer)
	o.mu.Unlock()
	metrics.Get().SetObserverBufferSize(bufSize)

	if shouldFlush {
		o.Flush()
	}
}

// Flush batch-inserts the buffered signals in one transaction and clears
// the flushed prefix on success. On failure the buffer is left untouched
// so the next flush retries the same rows — at-least-once delivery,
// best-effort ordering.
func (o *Observer) Flush() {
	o.mu.Lock()
	if len(o.buffer) == 0 {
		o.lastFlush = time.Now()
		o.mu.Unlock()
		return
	}
	batch := make([]models.FeedbackSignal, len(o.buffer))
	copy(batch, o.buffer)
	o.mu.Unlock()

	if err := o.writer.InsertBatch(batch); err != nil {
		log.Error().Str("component", "observer").Err(err).Int("buffered", len(batch)).Msg("observer flush failed, retaining buffer")
		return
	}

	o.mu.Lock()
	if len(o.buffer) >= len(batch) {
		o.buffer = o.buffer[len(batch):]
	}
	o.lastFlush = time.Now()
	remaining := len(o.buffer)
	o.mu.Unlock()
	metrics.Get().SetObserverBufferSize(remaining)

	log.Info().Str("component", "observer").Int("flushed", len(batch)).Int("remaining", remaining).Msg("observer flush complete")
}

// Shutdown performs one final flush. Callers invoke this once during
// graceful process shutdown.
func (o *Observer) Shutdown() {
	log.Info().Str("component", "observer").Int("buffered", o.BufferSize()).Msg("observer shutdown, final flush")
	o.Flush()
}
