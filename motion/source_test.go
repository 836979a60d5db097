package motion

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/pkg/errors"
)

type sourceFixture struct {
	source    *Source[fakeFrame]
	transport *Transport[fakeFrame]
	decoder   *fakeDecoder
	live      *atomic.Int64
}

func newSourceFixture(t *testing.T, count int) *sourceFixture {
	fx := &sourceFixture{
		transport: NewTransport[fakeFrame](),
		live:      &atomic.Int64{},
	}
	fx.decoder = &fakeDecoder{count: count, fps: 25, live: fx.live}
	opener := func(path string) (Decoder[fakeFrame], error) {
		if path == "missing.mp4" {
			return nil, errors.New("no such file")
		}
		return fx.decoder, nil
	}
	fx.source = NewSource[fakeFrame](logs.NewTestingLog(t), opener, fx.transport, SourceOptions{IdlePoll: 5 * time.Millisecond})
	return fx
}

func (fx *sourceFixture) receive(t *testing.T) Item[fakeFrame] {
	t.Helper()
	item, ok := fx.transport.Receive(context.Background(), time.Second)
	if !ok {
		t.Fatal("Expected a published frame")
	}
	item.Frame.Close()
	return item
}

func TestSourceOpen(t *testing.T) {
	fx := newSourceFixture(t, 10)
	props, err := fx.source.Open("clip.mp4")
	if err != nil {
		t.Fatal(err)
	}
	if props.FrameCount != 10 || props.FrameRate != 25 {
		t.Errorf("Wrong props: %+v", props)
	}
	// Shape comes from the corrected frame
	if props.Shape.Width != 64 || props.Shape.Height != 48 {
		t.Errorf("Shape should be reported by the frame, got %+v", props.Shape)
	}
	if fx.decoder.pos != 0 {
		t.Errorf("Decoder should be rewound after probing, at %d", fx.decoder.pos)
	}
	events := drainEvents(fx.source.Events())
	if len(events) != 1 {
		t.Fatalf("Expected StreamOpened, got %d events", len(events))
	}
	if e, ok := events[0].(StreamOpened); !ok || e.Props.FrameCount != 10 {
		t.Errorf("Expected StreamOpened, got %+v", events[0])
	}

	if _, err := fx.source.Open("missing.mp4"); !errors.Is(err, ErrOpen) {
		t.Errorf("Expected ErrOpen, got %v", err)
	}
}

func TestSourceSeekAndStep(t *testing.T) {
	fx := newSourceFixture(t, 10)
	if _, err := fx.source.Open("clip.mp4"); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if err := fx.source.SeekTo(ctx, 5, false); err != nil {
		t.Fatal(err)
	}
	if item := fx.receive(t); item.FrameNo != 5 || item.Frame.no != 5 || item.Track {
		t.Errorf("SeekTo(5) published %+v", item)
	}

	fx.source.SetTracking(true)
	if err := fx.source.StepForward(ctx); err != nil {
		t.Fatal(err)
	}
	if item := fx.receive(t); item.FrameNo != 6 || !item.Track {
		t.Errorf("StepForward published %+v", item)
	}
	fx.source.SetTracking(false)

	if err := fx.source.StepBackward(ctx); err != nil {
		t.Fatal(err)
	}
	if item := fx.receive(t); item.FrameNo != 5 || item.Track {
		t.Errorf("StepBackward published %+v", item)
	}

	if err := fx.source.ReadCurrent(ctx); err != nil {
		t.Fatal(err)
	}
	if item := fx.receive(t); item.FrameNo != 5 {
		t.Errorf("ReadCurrent should republish frame 5, got %d", item.FrameNo)
	}
	if expected := 4 * 1000.0 / 25; fx.source.FrameNo() != 5 || fx.decoder.PositionMsec() != expected {
		t.Errorf("Wrong position after ReadCurrent")
	}

	if err := fx.source.SeekTo(ctx, 10, false); err != nil {
		t.Fatal(err)
	}
	fx.receive(t)
	if err := fx.source.ReadNext(ctx); !errors.Is(err, ErrEndOfStream) {
		t.Errorf("Expected ErrEndOfStream, got %v", err)
	}
	if n := fx.live.Load(); n != 0 {
		t.Errorf("Frames leaked: %d live", n)
	}
}

func TestSourceSeekDiscardsQueuedFrame(t *testing.T) {
	fx := newSourceFixture(t, 10)
	if _, err := fx.source.Open("clip.mp4"); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if err := fx.source.ReadNext(ctx); err != nil {
		t.Fatal(err)
	}
	// The slot is full; a seek must drop frame 1 rather than block behind it
	if err := fx.source.SeekTo(ctx, 8, false); err != nil {
		t.Fatal(err)
	}
	if item := fx.receive(t); item.FrameNo != 8 {
		t.Errorf("Expected frame 8 after seek, got %d", item.FrameNo)
	}
	if fx.transport.Len() != 0 {
		t.Errorf("Stale frame still queued")
	}
	if n := fx.live.Load(); n != 0 {
		t.Errorf("Discarded frame not closed: %d live", n)
	}
}

func TestSourceStream(t *testing.T) {
	fx := newSourceFixture(t, 3)
	if _, err := fx.source.Open("clip.mp4"); err != nil {
		t.Fatal(err)
	}
	drainEvents(fx.source.Events())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- fx.source.Stream(ctx)
	}()

	// First frame is shown without tracking and the reader rewinds
	if item := fx.receive(t); item.FrameNo != 1 || item.Track {
		t.Errorf("Expected preview of frame 1, got %+v", item)
	}

	fx.source.SetTracking(true)
	fx.source.Play()
	for expected := 1; expected <= 3; expected++ {
		if item := fx.receive(t); item.FrameNo != expected || !item.Track {
			t.Errorf("Expected tracked frame %d, got %+v", expected, item)
		}
	}
	// Playback pauses itself at the end
	deadline := time.Now().Add(time.Second)
	for fx.source.Playing() {
		if time.Now().After(deadline) {
			t.Fatal("Source still playing after end of stream")
		}
		time.Sleep(5 * time.Millisecond)
	}

	fx.source.Stop()
	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(time.Second):
		t.Fatal("Stream did not return after Stop")
	}
	if !fx.decoder.closed {
		t.Errorf("Decoder should be released")
	}
	events := drainEvents(fx.source.Events())
	if len(events) != 1 {
		t.Fatalf("Expected StreamFinished, got %d events", len(events))
	}
	if _, ok := events[0].(StreamFinished); !ok {
		t.Errorf("Expected StreamFinished, got %+v", events[0])
	}
}

func TestSourceNotOpen(t *testing.T) {
	fx := newSourceFixture(t, 3)
	if err := fx.source.ReadNext(context.Background()); !errors.Is(err, ErrNotOpen) {
		t.Errorf("Expected ErrNotOpen, got %v", err)
	}
	if err := fx.source.Stream(context.Background()); !errors.Is(err, ErrNotOpen) {
		t.Errorf("Expected ErrNotOpen, got %v", err)
	}
}
