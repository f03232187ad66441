package facade

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultNotificationTTL is how long a notification stays visible.
const DefaultNotificationTTL = 3 * time.Second

// NotificationKind distinguishes success toasts from error toasts.
type NotificationKind string

const (
	KindSuccess NotificationKind = "success"
	KindError   NotificationKind = "error"
)

// Notification is a transient message shown to the user. Several may be
// visible at once; display order is insertion order.
type Notification struct {
	ID   string
	Text string
	Kind NotificationKind

	expiresAt time.Time
}

// NotificationQueue holds the currently visible notifications. Every entry
// disappears a fixed duration after it was pushed, regardless of user
// interaction.
type NotificationQueue struct {
	mu    sync.Mutex
	ttl   time.Duration
	now   func() time.Time
	items []Notification
}

// NewNotificationQueue creates a queue with the given display duration.
func NewNotificationQueue(ttl time.Duration) *NotificationQueue {
	if ttl <= 0 {
		ttl = DefaultNotificationTTL
	}
	return &NotificationQueue{
		ttl: ttl,
		now: time.Now,
	}
}

// Push enqueues a notification and returns it.
func (q *NotificationQueue) Push(text string, kind NotificationKind) Notification {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := Notification{
		ID:        uuid.New().String(),
		Text:      text,
		Kind:      kind,
		expiresAt: q.now().Add(q.ttl),
	}
	q.items = append(q.items, n)
	return n
}

// Active returns the notifications still within their display window, in
// insertion order, pruning the expired ones.
func (q *NotificationQueue) Active() []Notification {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	kept := q.items[:0]
	for _, n := range q.items {
		if n.expiresAt.After(now) {
			kept = append(kept, n)
		}
	}
	q.items = kept

	out := make([]Notification, len(q.items))
	copy(out, q.items)
	return out
}
