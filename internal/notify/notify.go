// Package notify records transient user-visible notices (toasts) raised while handling a request.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Level classifies a notice.
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelInfo    Level = "info"
)

// Notification is a single transient notice.
type Notification struct {
	ID        string    `json:"id"`
	Level     Level     `json:"level"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// Notifier accepts notices.
type Notifier interface {
	Notify(ctx context.Context, level Level, message string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, level Level, message string)

// Notify implements Notifier.
func (f NotifierFunc) Notify(ctx context.Context, level Level, message string) {
	f(ctx, level, message)
}

// Discard drops every notice.
var Discard Notifier = NotifierFunc(func(context.Context, Level, string) {})

// Recorder buffers notices until they are drained into a response.
type Recorder struct {
	mu    sync.Mutex
	items []Notification
	now   func() time.Time
	idGen func() string
}

// NewRecorder constructs an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		now:   time.Now,
		idGen: func() string { return ulid.Make().String() },
	}
}

// Notify implements Notifier.
func (r *Recorder) Notify(_ context.Context, level Level, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, Notification{
		ID:        r.idGen(),
		Level:     level,
		Message:   message,
		CreatedAt: r.now().UTC(),
	})
}

// Drain returns the buffered notices in order and empties the buffer.
func (r *Recorder) Drain() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.items
	r.items = nil
	if out == nil {
		return []Notification{}
	}
	return out
}
