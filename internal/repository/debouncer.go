package repository

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xiaot623/gogo/streamchat/internal/domain"
)

// DefaultDebounce is the quiet period before a pending save is written.
const DefaultDebounce = 300 * time.Millisecond

// Debouncer coalesces conversation saves. Only the latest version of each
// conversation is written once no newer version arrived for the delay.
type Debouncer struct {
	store  Store
	delay  time.Duration
	logger *zap.Logger

	mu      sync.Mutex
	pending map[string]*domain.Conversation
	timer   *time.Timer
	closed  bool
	// writeMu serialises writes between the timer and Flush.
	writeMu sync.Mutex
}

// NewDebouncer creates a debouncer writing to store.
func NewDebouncer(store Store, delay time.Duration, logger *zap.Logger) *Debouncer {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Debouncer{
		store:   store,
		delay:   delay,
		logger:  logger,
		pending: make(map[string]*domain.Conversation),
	}
}

// Save schedules conv to be written. Each call restarts the quiet period.
func (d *Debouncer) Save(conv domain.Conversation) {
	conv.Messages = cloneMessages(conv.Messages)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.pending[conv.ID] = &conv
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, func() { d.Flush(context.Background()) })
}

// Cancel drops a pending save, e.g. after the conversation was deleted.
func (d *Debouncer) Cancel(id string) {
	d.mu.Lock()
	delete(d.pending, id)
	d.mu.Unlock()
}

// Pending returns the number of conversations waiting to be written.
func (d *Debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Flush writes all pending conversations now.
func (d *Debouncer) Flush(ctx context.Context) {
	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	d.mu.Lock()
	batch := d.pending
	d.pending = make(map[string]*domain.Conversation)
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.mu.Unlock()

	for id, conv := range batch {
		if err := d.store.SaveConversation(ctx, conv); err != nil {
			d.logger.Warn("failed to persist conversation", zap.String("conversation_id", id), zap.Error(err))
		}
	}
}

// Close flushes pending saves and rejects new ones.
func (d *Debouncer) Close(ctx context.Context) {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.Flush(ctx)
}

func cloneMessages(msgs []domain.Message) []domain.Message {
	out := make([]domain.Message, len(msgs))
	for i, m := range msgs {
		out[i] = m.Clone()
	}
	return out
}
