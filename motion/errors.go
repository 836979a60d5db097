package motion

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrOpen is returned when a video container cannot be opened or read.
	ErrOpen = errors.New("can't open video")
	// ErrEndOfStream is returned by reads past the last frame.
	ErrEndOfStream = errors.New("end of stream")
	// ErrNotOpen is returned by Source operations issued before Open.
	ErrNotOpen = errors.New("stream is not open")
	// ErrNotConfigured is returned when the coordinator has no frame count yet.
	ErrNotConfigured = errors.New("coordinator is not configured")
	// ErrNoReferenceFrame is returned when a tracker is created before any frame was received.
	ErrNoReferenceFrame = errors.New("no reference frame")
	// ErrNoBBox is returned when a tracker has no bounding box at the current frame.
	ErrNoBBox = errors.New("no bounding box at current frame")
	// ErrUnknownTrackerType is a configuration error: the tag is not registered.
	ErrUnknownTrackerType = errors.New("unknown tracker type")
	// ErrUnknownItem is returned for operations on a name that does not exist.
	ErrUnknownItem = errors.New("unknown item")
	// ErrNameTaken is returned when renaming onto an existing name.
	ErrNameTaken = errors.New("name already taken")
	// ErrSeriesLength is returned when bulk-loaded series do not match the configured frame count.
	ErrSeriesLength = errors.New("series length does not match frame count")
	// ErrTrackerInit is returned by tracker variants whose algorithm refuses the initial box.
	ErrTrackerInit = errors.New("tracker init failed")
	// ErrTrackerLost is returned by tracker variants that lose their target.
	ErrTrackerLost = errors.New("tracker lost target")
	// ErrTrackerJump is returned by the smoothing decorator when a measurement jumps too far.
	ErrTrackerJump = errors.New("tracker jumped")
)

// AddTrackerError reports that the algorithm handle for Name could not be constructed.
type AddTrackerError struct {
	Name  string
	Cause error
}

func (e *AddTrackerError) Error() string {
	return fmt.Sprintf("can't add tracker '%s': %v", e.Name, e.Cause)
}

func (e *AddTrackerError) Unwrap() error {
	return e.Cause
}

// TrackingError reports that tracker Name failed to update at FrameNo.
type TrackingError struct {
	Name    string
	FrameNo int
	Cause   error
}

func (e *TrackingError) Error() string {
	return fmt.Sprintf("tracking failed for '%s' at frame %d: %v", e.Name, e.FrameNo, e.Cause)
}

func (e *TrackingError) Unwrap() error {
	return e.Cause
}
