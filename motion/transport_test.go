package motion

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
)

func TestTransportBackpressure(t *testing.T) {
	live := &atomic.Int64{}
	transport := NewTransport[fakeFrame]()

	if err := transport.Send(context.Background(), Item[fakeFrame]{FrameNo: 1, Frame: newFakeFrame(1, live)}); err != nil {
		t.Fatalf("First send should not block: %v", err)
	}

	// Second send must block while the slot is occupied
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	second := newFakeFrame(2, live)
	err := transport.Send(ctx, Item[fakeFrame]{FrameNo: 2, Frame: second})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Second send should block until deadline, got %v", err)
	}

	// Once the consumer drains the slot, the producer proceeds
	done := make(chan error, 1)
	go func() {
		done <- transport.Send(context.Background(), Item[fakeFrame]{FrameNo: 2, Frame: second})
	}()
	item, ok := transport.Receive(context.Background(), time.Second)
	if !ok || item.FrameNo != 1 {
		t.Fatalf("Expected frame 1, got %+v (ok=%v)", item, ok)
	}
	item.Frame.Close()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Blocked send should succeed after drain: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Producer still blocked after consumer drained the slot")
	}
	item, ok = transport.Receive(context.Background(), time.Second)
	if !ok || item.FrameNo != 2 {
		t.Fatalf("Expected frame 2, got %+v (ok=%v)", item, ok)
	}
	item.Frame.Close()
	if n := live.Load(); n != 0 {
		t.Errorf("Expected no live frames, got %d", n)
	}
}

func TestTransportClear(t *testing.T) {
	live := &atomic.Int64{}
	transport := NewTransport[fakeFrame]()
	if err := transport.Send(context.Background(), Item[fakeFrame]{FrameNo: 7, Frame: newFakeFrame(7, live)}); err != nil {
		t.Fatal(err)
	}
	if n := transport.Clear(); n != 1 {
		t.Errorf("Expected 1 discarded item, got %d", n)
	}
	if transport.Len() != 0 {
		t.Errorf("Transport should be empty after Clear")
	}
	if n := live.Load(); n != 0 {
		t.Errorf("Discarded frame should be closed, %d live", n)
	}
	if _, ok := transport.Receive(context.Background(), 10*time.Millisecond); ok {
		t.Errorf("Receive after Clear should time out")
	}
}
