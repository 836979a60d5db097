package project

import (
	"sync"
	"sync/atomic"

	"github.com/LdDl/motion2d/calibration"
	"github.com/LdDl/motion2d/motion"
	"github.com/pkg/errors"
)

type fakeFrame struct {
	no int
}

func (f fakeFrame) Clone() fakeFrame { return f }
func (f fakeFrame) Close() error     { return nil }

func (f fakeFrame) Shape() motion.FrameShape {
	return motion.FrameShape{Width: 64, Height: 48, Channels: 3}
}

type fakeDecoder struct {
	count int
	pos   int
}

func (d *fakeDecoder) Read() (fakeFrame, bool) {
	if d.pos >= d.count {
		return fakeFrame{}, false
	}
	d.pos++
	return fakeFrame{no: d.pos}, true
}

func (d *fakeDecoder) Position() int         { return d.pos }
func (d *fakeDecoder) PositionMsec() float64 { return float64(d.pos-1) * 40 }
func (d *fakeDecoder) Close() error          { return nil }

func (d *fakeDecoder) SetPosition(index int) error {
	if index < 0 || index > d.count {
		return errors.Errorf("bad position %d", index)
	}
	d.pos = index
	return nil
}

func (d *fakeDecoder) Props() motion.StreamProps {
	return motion.StreamProps{FrameRate: 25, FrameCount: d.count}
}

// lostTracker follows its bbox and loses it on frame failAt.
type lostTracker struct {
	bbox   motion.Rectangle
	failAt int
}

func (tracker *lostTracker) Init(_ fakeFrame, bbox motion.Rectangle) error {
	tracker.bbox = bbox
	return nil
}

func (tracker *lostTracker) Update(frame fakeFrame) (motion.Rectangle, error) {
	if frame.no == tracker.failAt {
		return motion.NaNRect(), motion.ErrTrackerLost
	}
	return tracker.bbox, nil
}

func (tracker *lostTracker) Close() error { return nil }

type fakeBackend struct {
	frames int
	failAt int

	mu     sync.Mutex
	builds []*calibration.Extrinsic
	opened atomic.Int32
}

func (b *fakeBackend) Open(path string) (motion.Decoder[fakeFrame], error) {
	if path == "" {
		return nil, errors.New("empty path")
	}
	b.opened.Add(1)
	return &fakeDecoder{count: b.frames}, nil
}

func (b *fakeBackend) RegisterTrackers(registry *motion.Registry[fakeFrame]) {
	registry.Register("Lost", func() (motion.Tracker[fakeFrame], error) {
		return &lostTracker{failAt: b.failAt}, nil
	})
}

func (b *fakeBackend) TransformSet(intrinsic *calibration.Intrinsic, extrinsic *calibration.Extrinsic, orientation motion.Orientation) *motion.TransformSet[fakeFrame] {
	b.mu.Lock()
	b.builds = append(b.builds, extrinsic)
	b.mu.Unlock()
	set := &motion.TransformSet[fakeFrame]{}
	if extrinsic != nil {
		set.Scale = extrinsic.Scale
	}
	return set
}
