// Package schedule runs periodic orchestration work. Every Loop owns one
// goroutine and one ticker; a tick that overruns its period delays the next
// tick instead of overlapping it.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Func is the body executed on every tick.
type Func func(ctx context.Context)

// Option customizes a Loop.
type Option func(*Loop)

// WithLogger sets the logger used for skipped ticks and recovered panics.
func WithLogger(logger *zap.Logger) Option {
	return func(l *Loop) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithImmediate runs the body once as soon as the loop starts, before the
// first tick.
func WithImmediate() Option {
	return func(l *Loop) {
		l.immediate = true
	}
}

// ErrAlreadyStarted is returned by Start on a running loop.
var ErrAlreadyStarted = errors.New("loop already started")

// Loop invokes a Func on a fixed interval.
type Loop struct {
	name      string
	interval  time.Duration
	fn        Func
	logger    *zap.Logger
	immediate bool

	// running is held for the duration of one body execution.
	running sync.Mutex

	lifecycle sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
}

// New builds a Loop. The loop is idle until Start.
func New(name string, interval time.Duration, fn Func, opts ...Option) (*Loop, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("loop %s: interval must be positive", name)
	}
	if fn == nil {
		return nil, fmt.Errorf("loop %s: func is required", name)
	}
	l := &Loop{
		name:     name,
		interval: interval,
		fn:       fn,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.With(zap.String("loop", name))
	return l, nil
}

// Name returns the loop name.
func (l *Loop) Name() string {
	return l.name
}

// Start launches the background goroutine. It stops when ctx ends or Stop
// is called.
func (l *Loop) Start(ctx context.Context) error {
	l.lifecycle.Lock()
	defer l.lifecycle.Unlock()
	if l.done != nil {
		return fmt.Errorf("%s: %w", l.name, ErrAlreadyStarted)
	}
	runCtx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.done = make(chan struct{})
	go l.run(runCtx, l.done)
	return nil
}

// Stop cancels the loop and waits for an in-flight tick to return.
func (l *Loop) Stop() {
	l.lifecycle.Lock()
	cancel, done := l.cancel, l.done
	l.cancel, l.done = nil, nil
	l.lifecycle.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Trigger runs the body synchronously outside the ticker. It returns false
// without running anything when a tick or another trigger is in progress.
func (l *Loop) Trigger(ctx context.Context) bool {
	if !l.running.TryLock() {
		return false
	}
	defer l.running.Unlock()
	l.invoke(ctx)
	return true
}

// Busy reports whether the body is currently executing.
func (l *Loop) Busy() bool {
	if l.running.TryLock() {
		l.running.Unlock()
		return false
	}
	return true
}

func (l *Loop) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	if l.immediate {
		l.tick(ctx)
	}
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.tick(ctx)
		}
	}
}

func (l *Loop) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if !l.Trigger(ctx) {
		l.logger.Debug("tick skipped, previous run still in progress")
	}
}

func (l *Loop) invoke(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("loop body panicked", zap.Any("panic", r), zap.Stack("stack"))
		}
	}()
	l.fn(ctx)
}
