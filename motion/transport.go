package motion

import (
	"context"
	"time"
)

// Frame is the constraint on frame types flowing through the pipeline.
// Frames own native memory: whoever holds a frame last must Close it.
type Frame[F any] interface {
	Clone() F
	Close() error
}

// Item is one unit of the hand-off between the Frame Source and the Tracking Coordinator.
type Item[F Frame[F]] struct {
	// External frame number, 1-based
	FrameNo int
	// Position of the frame in the container, milliseconds
	Timestamp float64
	Frame     F
	// Whether trackers should be updated on this frame
	Track bool
}

// Transport is a single-slot blocking channel. A full slot blocks the producer:
// that is the only backpressure between decoding and tracking.
type Transport[F Frame[F]] struct {
	ch chan Item[F]
}

// NewTransport creates a channel of capacity 1.
func NewTransport[F Frame[F]]() *Transport[F] {
	return &Transport[F]{
		ch: make(chan Item[F], 1),
	}
}

// Send blocks until the slot is free or ctx is done. On ctx cancellation the
// frame is not consumed and stays owned by the caller.
func (t *Transport[F]) Send(ctx context.Context, item Item[F]) error {
	select {
	case t.ch <- item:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Receive waits up to timeout for an item.
func (t *Transport[F]) Receive(ctx context.Context, timeout time.Duration) (Item[F], bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case item := <-t.ch:
		return item, true
	case <-timer.C:
	case <-ctx.Done():
	}
	return Item[F]{}, false
}

// Clear discards (and closes) any buffered item. Returns the number discarded.
func (t *Transport[F]) Clear() int {
	n := 0
	for {
		select {
		case item := <-t.ch:
			item.Frame.Close()
			n++
		default:
			return n
		}
	}
}

// Len returns the number of buffered items (0 or 1).
func (t *Transport[F]) Len() int {
	return len(t.ch)
}
