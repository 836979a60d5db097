package motion

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/pkg/errors"
)

// Decoder is the container reader the Source drives.
// Positions are 0-based indices of the next frame to be read.
type Decoder[F any] interface {
	// Read decodes the next frame. false means end of stream or read error.
	Read() (F, bool)
	// Position is the index of the next frame, equal to the 1-based number of the frame just read.
	Position() int
	// PositionMsec is the timestamp of the frame just read.
	PositionMsec() float64
	SetPosition(index int) error
	Props() StreamProps
	Close() error
}

// Opener opens a decoder for path.
type Opener[F any] func(path string) (Decoder[F], error)

// Shaper is implemented by frames that can report their own size.
type Shaper interface {
	Shape() FrameShape
}

// SourceOptions tune the play loop.
type SourceOptions struct {
	// Sleep between flag checks while paused. Default is 300ms.
	IdlePoll time.Duration
	// Capacity of the events channel. Default is 64.
	EventsBuffer int
}

// Source reads frames, corrects them and publishes them on the Transport.
type Source[F Frame[F]] struct {
	log       logs.Log
	open      Opener[F]
	transport *Transport[F]
	events    *eventBus
	idlePoll  time.Duration

	calibration atomic.Pointer[TransformSet[F]]
	playing     atomic.Bool
	tracking    atomic.Bool
	stopped     atomic.Bool

	// mu serializes decoder access. Publishing happens under mu, so a
	// seek cannot interleave with a read in flight.
	mu      sync.Mutex
	decoder Decoder[F]
	path    string
	props   StreamProps
	frameNo int
}

// NewSource creates a source publishing on transport.
func NewSource[F Frame[F]](log logs.Log, open Opener[F], transport *Transport[F], opts SourceOptions) *Source[F] {
	if opts.IdlePoll <= 0 {
		opts.IdlePoll = 300 * time.Millisecond
	}
	return &Source[F]{
		log:       log,
		open:      open,
		transport: transport,
		events:    newEventBus(log, opts.EventsBuffer),
		idlePoll:  opts.IdlePoll,
	}
}

// Events returns the channel StreamOpened and StreamFinished are delivered on.
func (s *Source[F]) Events() <-chan Event {
	return s.events.ch
}

// Open opens path, reports its properties and emits StreamOpened.
// Frame shape is the shape after correction when the frame type can report it.
func (s *Source[F]) Open(path string) (StreamProps, error) {
	decoder, err := s.open(path)
	if err != nil {
		return StreamProps{}, errors.Wrapf(ErrOpen, "'%s': %v", path, err)
	}
	props := decoder.Props()
	if props.FrameCount <= 0 {
		decoder.Close()
		return StreamProps{}, errors.Wrapf(ErrOpen, "'%s': no frames", path)
	}
	if raw, ok := decoder.Read(); ok {
		s.mu.Lock()
		corrected, err := s.calibration.Load().Correct(raw)
		s.mu.Unlock()
		if err == nil {
			if shaper, ok := any(corrected).(Shaper); ok {
				props.Shape = shaper.Shape()
			}
			corrected.Close()
		}
	}
	if err := decoder.SetPosition(0); err != nil {
		decoder.Close()
		return StreamProps{}, errors.Wrapf(ErrOpen, "'%s': can't rewind: %v", path, err)
	}

	s.mu.Lock()
	if s.decoder != nil {
		s.decoder.Close()
	}
	s.decoder = decoder
	s.path = path
	s.props = props
	s.frameNo = 0
	s.mu.Unlock()
	s.stopped.Store(false)
	s.playing.Store(false)

	s.log.Infof("[Source] Opened '%s': %dx%d, %.2f fps, %d frames", path, props.Shape.Width, props.Shape.Height, props.FrameRate, props.FrameCount)
	s.events.emit(StreamOpened{Path: path, Props: props})
	return props, nil
}

// Props returns the properties of the opened stream.
func (s *Source[F]) Props() StreamProps {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.props
}

// FrameNo returns the number of the last published frame.
func (s *Source[F]) FrameNo() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frameNo
}

// Stream publishes the first frame without tracking unless a frame was already
// published since Open, then plays while the play flag is set until Stop is called
// or ctx is done. The decoder is released on return.
func (s *Source[F]) Stream(ctx context.Context) error {
	s.mu.Lock()
	if s.decoder == nil {
		s.mu.Unlock()
		return ErrNotOpen
	}
	path := s.path
	var err error
	if s.frameNo == 0 {
		err = s.readLocked(ctx, false)
		if err == nil {
			err = s.decoder.SetPosition(0)
		}
	}
	s.mu.Unlock()
	if err != nil && !errors.Is(err, ErrEndOfStream) {
		s.log.Warnf("[Source] Can't read first frame of '%s': %v", path, err)
	}

	for !s.stopped.Load() && ctx.Err() == nil {
		if !s.playing.Load() {
			select {
			case <-ctx.Done():
			case <-time.After(s.idlePoll):
			}
			continue
		}
		if err := s.playNext(ctx); err != nil {
			if errors.Is(err, ErrEndOfStream) {
				s.log.Infof("[Source] End of '%s'", path)
			} else if ctx.Err() == nil {
				s.log.Warnf("[Source] Read failed: %v", err)
			}
			s.playing.Store(false)
		}
	}

	s.mu.Lock()
	if s.decoder != nil {
		s.decoder.Close()
		s.decoder = nil
	}
	s.mu.Unlock()
	s.stopped.Store(false)
	s.events.emit(StreamFinished{Path: path})
	return nil
}

// ReadNext reads, corrects and publishes the next frame with the current tracking flag.
func (s *Source[F]) ReadNext(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readLocked(ctx, s.tracking.Load())
}

// playNext is ReadNext for the play loop: a Pause that happened while waiting for
// mu wins, so a seek done right after pausing is not followed by another frame.
func (s *Source[F]) playNext(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.playing.Load() {
		return nil
	}
	return s.readLocked(ctx, s.tracking.Load())
}

// readLocked requires mu.
func (s *Source[F]) readLocked(ctx context.Context, track bool) error {
	if s.decoder == nil {
		return ErrNotOpen
	}
	raw, ok := s.decoder.Read()
	if !ok {
		return ErrEndOfStream
	}
	frameNo := s.decoder.Position()
	timestamp := s.decoder.PositionMsec()
	frame, err := s.calibration.Load().Correct(raw)
	if err != nil {
		return errors.Wrapf(err, "Can't correct frame %d", frameNo)
	}
	item := Item[F]{FrameNo: frameNo, Timestamp: timestamp, Frame: frame, Track: track}
	if err := s.transport.Send(ctx, item); err != nil {
		frame.Close()
		return err
	}
	s.frameNo = frameNo
	return nil
}

// seekLocked discards any queued frame, then reads frame number frameNo. Requires mu.
func (s *Source[F]) seekLocked(ctx context.Context, frameNo int, track bool) error {
	if s.decoder == nil {
		return ErrNotOpen
	}
	if frameNo < 1 {
		frameNo = 1
	}
	if s.props.FrameCount > 0 && frameNo > s.props.FrameCount {
		frameNo = s.props.FrameCount
	}
	s.transport.Clear()
	if err := s.decoder.SetPosition(frameNo - 1); err != nil {
		return errors.Wrapf(err, "Can't seek to frame %d", frameNo)
	}
	return s.readLocked(ctx, track)
}

// SeekTo repositions the decoder and publishes frame number frameNo (1-based).
func (s *Source[F]) SeekTo(ctx context.Context, frameNo int, track bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seekLocked(ctx, frameNo, track)
}

// StepForward publishes the next frame with the current tracking flag.
func (s *Source[F]) StepForward(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transport.Clear()
	return s.readLocked(ctx, s.tracking.Load())
}

// StepBackward publishes the frame before the last published one, without tracking.
func (s *Source[F]) StepBackward(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seekLocked(ctx, s.frameNo-1, false)
}

// ReadCurrent publishes the last published frame again, without tracking.
// Used to re-render after the calibration changed.
func (s *Source[F]) ReadCurrent(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seekLocked(ctx, s.frameNo, false)
}

func (s *Source[F]) Play() {
	s.playing.Store(true)
}

func (s *Source[F]) Pause() {
	s.playing.Store(false)
}

func (s *Source[F]) Playing() bool {
	return s.playing.Load()
}

// Stop ends Stream.
func (s *Source[F]) Stop() {
	s.playing.Store(false)
	s.stopped.Store(true)
}

// SetTracking sets the flag published with frames read by the play loop and StepForward.
func (s *Source[F]) SetTracking(track bool) {
	s.tracking.Store(track)
}

func (s *Source[F]) Tracking() bool {
	return s.tracking.Load()
}

// SetCalibration swaps the transform set used for frames read from now on and
// releases the previous one. nil disables correction.
func (s *Source[F]) SetCalibration(set *TransformSet[F]) {
	s.mu.Lock()
	previous := s.calibration.Swap(set)
	s.mu.Unlock()
	if previous != nil && previous != set {
		if err := previous.Close(); err != nil {
			s.log.Warnf("[Source] Can't release calibration: %v", err)
		}
	}
}

// Calibration returns the active transform set.
func (s *Source[F]) Calibration() *TransformSet[F] {
	return s.calibration.Load()
}
