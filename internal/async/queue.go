package async

import (
	"context"
)

// Queue accepts work items until it is shut down.
type Queue[T any] interface {
	Enqueue(ctx context.Context, item T) error
	// Shutdown stops intake, waits for in-flight items and returns the error that
	// stopped the queue early, if any.
	Shutdown(ctx context.Context) error
}

// Handler processes one item. A returned error is fatal for the whole pool:
// handlers deal with recoverable per-item failures themselves.
type Handler[T any] func(ctx context.Context, workerID int, item T) error
