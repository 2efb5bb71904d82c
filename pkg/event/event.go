// Package event is an in-process publish/subscribe dispatcher. Listeners run
// after the work that fired the event has committed; a failing listener never
// undoes it.
package event

import (
	"context"
	"fmt"
	"sync"

	"github.com/shashiranjanraj/storefront/pkg/logger"
)

// Handler receives an event payload. A returned error is logged.
type Handler func(ctx context.Context, payload any) error

var (
	mu       sync.RWMutex
	handlers = map[string][]Handler{}

	inflight sync.WaitGroup
)

// Listen registers a handler for the given event name.
func Listen(event string, handler Handler) {
	mu.Lock()
	defer mu.Unlock()
	handlers[event] = append(handlers[event], handler)
}

func listeners(event string) []Handler {
	mu.RLock()
	defer mu.RUnlock()
	return append([]Handler(nil), handlers[event]...)
}

// Fire dispatches synchronously, in registration order.
func Fire(ctx context.Context, event string, payload any) {
	for _, h := range listeners(event) {
		call(ctx, event, h, payload)
	}
}

// FireAsync dispatches on a fresh goroutine per listener, detached from the
// caller's cancellation.
func FireAsync(ctx context.Context, event string, payload any) {
	ctx = context.WithoutCancel(ctx)
	for _, h := range listeners(event) {
		h := h
		inflight.Add(1)
		go func() {
			defer inflight.Done()
			call(ctx, event, h, payload)
		}()
	}
}

// Wait blocks until every listener started by FireAsync has returned, or
// ctx is done.
func Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("event: listeners still running: %w", ctx.Err())
	}
}

func call(ctx context.Context, event string, h Handler, payload any) {
	defer func() {
		if r := recover(); r != nil {
			logger.WithCtx(ctx).Error("event: listener panicked", "event", event, "panic", fmt.Sprint(r))
		}
	}()
	if err := h(ctx, payload); err != nil {
		logger.WithCtx(ctx).Error("event: listener failed", "event", event, "error", err)
	}
}

// Flush removes all listeners. Listeners already running are not waited
// for; call Wait first.
func Flush() {
	mu.Lock()
	defer mu.Unlock()
	handlers = map[string][]Handler{}
}
