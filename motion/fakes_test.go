package motion

import (
	"sync/atomic"

	"github.com/pkg/errors"
)

// fakeFrame stands in for a decoded image. live counts frames not yet closed.
type fakeFrame struct {
	no   int
	tag  string
	live *atomic.Int64
}

func newFakeFrame(no int, live *atomic.Int64) fakeFrame {
	if live != nil {
		live.Add(1)
	}
	return fakeFrame{no: no, live: live}
}

func (f fakeFrame) Clone() fakeFrame {
	if f.live != nil {
		f.live.Add(1)
	}
	return f
}

func (f fakeFrame) Close() error {
	if f.live != nil {
		f.live.Add(-1)
	}
	return nil
}

func (f fakeFrame) Shape() FrameShape {
	return FrameShape{Width: 64, Height: 48, Channels: 3}
}

// scriptedTracker returns boxes from a per-frame script. Frames missing from
// the script keep the last box. failAt makes Update fail on that frame number.
type scriptedTracker struct {
	bbox   Rectangle
	script map[int]Rectangle
	failAt int
	inits  int
	closed bool
}

func (tracker *scriptedTracker) Init(_ fakeFrame, bbox Rectangle) error {
	tracker.bbox = bbox
	tracker.inits++
	return nil
}

func (tracker *scriptedTracker) Update(frame fakeFrame) (Rectangle, error) {
	if tracker.failAt != 0 && frame.no == tracker.failAt {
		return Rectangle{}, ErrTrackerLost
	}
	if bbox, ok := tracker.script[frame.no]; ok {
		tracker.bbox = bbox
	}
	return tracker.bbox, nil
}

func (tracker *scriptedTracker) Close() error {
	tracker.closed = true
	return nil
}

type failingInitTracker struct{}

func (failingInitTracker) Init(fakeFrame, Rectangle) error {
	return errors.Wrap(ErrTrackerInit, "refused")
}

func (failingInitTracker) Update(fakeFrame) (Rectangle, error) {
	return Rectangle{}, nil
}

func (failingInitTracker) Close() error {
	return nil
}

// fakeDecoder serves frames 1..count.
type fakeDecoder struct {
	count  int
	pos    int
	fps    float64
	live   *atomic.Int64
	closed bool
}

func (d *fakeDecoder) Read() (fakeFrame, bool) {
	if d.pos >= d.count {
		return fakeFrame{}, false
	}
	d.pos++
	return newFakeFrame(d.pos, d.live), true
}

func (d *fakeDecoder) Position() int {
	return d.pos
}

func (d *fakeDecoder) PositionMsec() float64 {
	return float64(d.pos-1) * 1000.0 / d.fps
}

func (d *fakeDecoder) SetPosition(index int) error {
	if index < 0 || index > d.count {
		return errors.Errorf("position %d out of range", index)
	}
	d.pos = index
	return nil
}

func (d *fakeDecoder) Props() StreamProps {
	return StreamProps{
		Shape:      FrameShape{Width: 32, Height: 24, Channels: 3},
		FrameRate:  d.fps,
		FrameCount: d.count,
	}
}

func (d *fakeDecoder) Close() error {
	d.closed = true
	return nil
}

func drainEvents(ch <-chan Event) []Event {
	var out []Event
	for {
		select {
		case e := <-ch:
			out = append(out, e)
		default:
			return out
		}
	}
}
