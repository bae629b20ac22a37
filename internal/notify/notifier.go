// Package notify holds the single active user-facing notification and the
// retry action bound to the last failed operation.
package notify

import (
	"sync"
	"time"

	"github.com/xiaot623/gogo/streamchat/internal/domain"
)

// DefaultTTL is how long info and warning notifications stay visible.
const DefaultTTL = 5 * time.Second

// RetryFunc re-runs a failed operation and reports whether it started.
type RetryFunc func() bool

// Notifier holds at most one notification. Error notifications persist until
// retried or dismissed; others auto-dismiss after the TTL unless superseded.
type Notifier struct {
	mu       sync.Mutex
	ttl      time.Duration
	current  *domain.Notification
	retry    RetryFunc
	timer    *time.Timer
	gen      uint64
	onExpire func()
}

// New creates a notifier. onExpire, if set, is called after a notification
// auto-dismisses; callers commit their own synchronous changes.
func New(ttl time.Duration, onExpire func()) *Notifier {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Notifier{ttl: ttl, onExpire: onExpire}
}

// Show replaces the current notification.
func (n *Notifier) Show(message string, level domain.NotificationLevel) {
	n.mu.Lock()
	n.stopTimerLocked()
	n.gen++
	n.current = &domain.Notification{Message: message, Level: level}
	if level != domain.LevelError {
		gen := n.gen
		n.timer = time.AfterFunc(n.ttl, func() { n.expire(gen) })
	}
	n.mu.Unlock()
}

// Fail shows an error notification and arms retry.
func (n *Notifier) Fail(message string, retry RetryFunc) {
	n.mu.Lock()
	n.retry = retry
	n.mu.Unlock()
	n.Show(message, domain.LevelError)
}

// Dismiss clears the current notification. The armed retry stays.
func (n *Notifier) Dismiss() {
	n.mu.Lock()
	if n.current == nil {
		n.mu.Unlock()
		return
	}
	n.stopTimerLocked()
	n.gen++
	n.current = nil
	n.mu.Unlock()
}

// Succeeded clears the armed retry and any error notification it belonged to.
func (n *Notifier) Succeeded() {
	n.mu.Lock()
	n.retry = nil
	isError := n.current != nil && n.current.Level == domain.LevelError
	n.mu.Unlock()
	if isError {
		n.Dismiss()
	}
}

// TakeRetry returns and disarms the retry action, clearing the notification.
func (n *Notifier) TakeRetry() RetryFunc {
	n.mu.Lock()
	retry := n.retry
	n.retry = nil
	n.mu.Unlock()
	n.Dismiss()
	return retry
}

// Armed reports whether a retry action is bound.
func (n *Notifier) Armed() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.retry != nil
}

// Current returns a copy of the active notification, or nil.
func (n *Notifier) Current() *domain.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.copyLocked()
}

// Clear drops the notification and the armed retry without notifying.
// The notifier stays usable.
func (n *Notifier) Clear() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.stopTimerLocked()
	n.gen++
	n.current = nil
	n.retry = nil
}

// Close stops pending timers and drops all state.
func (n *Notifier) Close() {
	n.Clear()
}

func (n *Notifier) expire(gen uint64) {
	n.mu.Lock()
	if gen != n.gen || n.current == nil {
		n.mu.Unlock()
		return
	}
	n.gen++
	n.current = nil
	n.timer = nil
	n.mu.Unlock()
	if n.onExpire != nil {
		n.onExpire()
	}
}

func (n *Notifier) stopTimerLocked() {
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
}

func (n *Notifier) copyLocked() *domain.Notification {
	if n.current == nil {
		return nil
	}
	c := *n.current
	return &c
}
