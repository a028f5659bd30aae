// Package speech - Narration output: a non-blocking FIFO queue in front of a speaker.
package speech

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Speaker plays one utterance. Speak blocks until playback finishes or ctx ends.
type Speaker interface {
	Speak(ctx context.Context, text string) error
}

// Queue appends utterances to a bounded FIFO drained by a single worker, so
// a new narration never interrupts the one being spoken. Enqueue never blocks
// the caller; when the queue is full the text is dropped.
type Queue struct {
	speaker Speaker
	logger  *zap.Logger
	items   chan string
	mu      sync.RWMutex
	closed  bool
	wg      sync.WaitGroup

	// OnDrop, if set, is called with each dropped utterance.
	OnDrop func(text string)
}

// NewQueue creates a queue holding up to size pending utterances.
func NewQueue(speaker Speaker, size int, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	if size < 1 {
		size = 1
	}
	return &Queue{
		speaker: speaker,
		logger:  logger,
		items:   make(chan string, size),
	}
}

// Enqueue appends text for playback.
//
// Returns:
//   - bool: False if the queue is closed or full and the text was dropped.
func (q *Queue) Enqueue(text string) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return false
	}

	select {
	case q.items <- text:
		return true
	default:
		q.logger.Warn("speech queue full, dropping narration", zap.String("text", text))
		if q.OnDrop != nil {
			q.OnDrop(text)
		}
		return false
	}
}

// Start launches the worker. It exits when ctx is done or after Close has
// drained the queue.
func (q *Queue) Start(ctx context.Context) {
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case text, ok := <-q.items:
				if !ok {
					return
				}
				if err := q.speaker.Speak(ctx, text); err != nil {
					q.logger.Warn("failed to speak narration", zap.String("text", text), zap.Error(err))
				}
			}
		}
	}()
}

// Close stops accepting utterances and waits for the worker to finish the
// ones already queued.
func (q *Queue) Close() {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.items)
	}
	q.mu.Unlock()

	q.wg.Wait()
}
