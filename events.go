package saga

import (
	"context"
	"time"
)

// ClientEvents provides hooks for observability and monitoring.
// All callbacks are optional - only set the ones you need.
// Event handlers are called synchronously but wrapped in panic recovery,
// so a panicking handler won't break the request flow.
//
// Example:
//
//	events := &saga.ClientEvents{
//	    OnRequestComplete: func(ctx context.Context, service, endpoint string, status int, d time.Duration) {
//	        log.Printf("%s %s -> %d in %v", service, endpoint, status, d)
//	    },
//	    OnFallback: func(id string, err error) {
//	        log.Printf("showing cached saga %s: %v", id, err)
//	    },
//	}
type ClientEvents struct {
	// Request lifecycle. ctx carries the request's span.
	OnRequestStart    func(service, endpoint string)
	OnRequestComplete func(ctx context.Context, service, endpoint string, statusCode int, duration time.Duration)
	OnRequestFailed   func(ctx context.Context, service, endpoint string, err error, duration time.Duration)

	// Snapshot lifecycle
	OnSnapshot   func(sagaID string, state SagaState)
	OnReconciled func(sagaID string, rec Reconciliation)
	OnFallback   func(sagaID string, err error)
}

// emitEvent safely calls an event handler, catching any panics.
func emitEvent(events *ClientEvents, handler func()) {
	if events == nil || handler == nil {
		return
	}
	defer func() {
		// Catch panics from event handlers - never break the request flow
		_ = recover()
	}()
	handler()
}

// ChainEvents returns hooks that call each non-nil set of events in order.
// A panic in one handler does not stop the ones after it.
func ChainEvents(all ...*ClientEvents) *ClientEvents {
	var list []*ClientEvents
	for _, e := range all {
		if e != nil {
			list = append(list, e)
		}
	}
	each := func(fn func(e *ClientEvents)) {
		for _, e := range list {
			emitEvent(e, func() { fn(e) })
		}
	}

	return &ClientEvents{
		OnRequestStart: func(service, endpoint string) {
			each(func(e *ClientEvents) {
				if e.OnRequestStart != nil {
					e.OnRequestStart(service, endpoint)
				}
			})
		},
		OnRequestComplete: func(ctx context.Context, service, endpoint string, statusCode int, duration time.Duration) {
			each(func(e *ClientEvents) {
				if e.OnRequestComplete != nil {
					e.OnRequestComplete(ctx, service, endpoint, statusCode, duration)
				}
			})
		},
		OnRequestFailed: func(ctx context.Context, service, endpoint string, err error, duration time.Duration) {
			each(func(e *ClientEvents) {
				if e.OnRequestFailed != nil {
					e.OnRequestFailed(ctx, service, endpoint, err, duration)
				}
			})
		},
		OnSnapshot: func(sagaID string, state SagaState) {
			each(func(e *ClientEvents) {
				if e.OnSnapshot != nil {
					e.OnSnapshot(sagaID, state)
				}
			})
		},
		OnReconciled: func(sagaID string, rec Reconciliation) {
			each(func(e *ClientEvents) {
				if e.OnReconciled != nil {
					e.OnReconciled(sagaID, rec)
				}
			})
		},
		OnFallback: func(sagaID string, err error) {
			each(func(e *ClientEvents) {
				if e.OnFallback != nil {
					e.OnFallback(sagaID, err)
				}
			})
		},
	}
}
