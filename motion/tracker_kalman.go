package motion

import (
	kalman_filter "github.com/LdDl/kalman-filter"
	"github.com/pkg/errors"
)

// SmoothingOptions configures the Kalman smoothing decorator.
type SmoothingOptions struct {
	// Time step between frames. Default 1.0
	Dt float64
	// Measurements whose IoU with the predicted box is below this are rejected. Zero disables the gate.
	MinIoU float64
	// Measurements whose center moves further than this (pixels) from the predicted center are rejected. Zero disables the gate.
	MaxJump float64
}

// SmoothedTracker filters the boxes of an inner tracker with an 8-D Kalman filter
// (center, size and their velocities) and rejects implausible jumps.
type SmoothedTracker[F any] struct {
	inner   Tracker[F]
	opts    SmoothingOptions
	tracker *kalman_filter.KalmanBBox
	bbox    Rectangle
}

// NewSmoothedTracker wraps inner.
func NewSmoothedTracker[F any](inner Tracker[F], opts SmoothingOptions) *SmoothedTracker[F] {
	if opts.Dt <= 0 {
		opts.Dt = 1.0
	}
	return &SmoothedTracker[F]{
		inner: inner,
		opts:  opts,
	}
}

func (smoothed *SmoothedTracker[F]) Init(frame F, bbox Rectangle) error {
	if err := smoothed.inner.Init(frame, bbox); err != nil {
		return err
	}
	center := bbox.Center()

	// Kalman filter props. No control input: a target at rest must stay at rest.
	uCx := 0.0
	uCy := 0.0
	uW := 0.0
	uH := 0.0
	stdDevA := 2.0
	stdDevMCx := 0.1
	stdDevMCy := 0.1
	stdDevMW := 0.1
	stdDevMH := 0.1
	smoothed.tracker = kalman_filter.NewKalmanBBox(
		smoothed.opts.Dt, uCx, uCy, uW, uH,
		stdDevA, stdDevMCx, stdDevMCy, stdDevMW, stdDevMH,
		kalman_filter.WithStateBBox(center.X, center.Y, bbox.Width, bbox.Height),
	)
	smoothed.bbox = bbox
	return nil
}

func (smoothed *SmoothedTracker[F]) Update(frame F) (Rectangle, error) {
	if smoothed.tracker == nil {
		return Rectangle{}, errors.Wrap(ErrTrackerInit, "smoothed tracker used before Init")
	}
	smoothed.tracker.Predict()
	cx, cy, w, h := smoothed.tracker.GetState()
	predicted := Rectangle{
		X:      cx - w/2.0,
		Y:      cy - h/2.0,
		Width:  w,
		Height: h,
	}

	measured, err := smoothed.inner.Update(frame)
	if err != nil {
		return Rectangle{}, err
	}
	if smoothed.opts.MinIoU > 0 && IoU(predicted, measured) < smoothed.opts.MinIoU {
		return Rectangle{}, errors.Wrapf(ErrTrackerJump, "IoU %.3f below %.3f", IoU(predicted, measured), smoothed.opts.MinIoU)
	}
	if smoothed.opts.MaxJump > 0 {
		if jump := euclideanDistance(predicted.Center(), measured.Center()); jump > smoothed.opts.MaxJump {
			return Rectangle{}, errors.Wrapf(ErrTrackerJump, "moved %.1f px, limit %.1f px", jump, smoothed.opts.MaxJump)
		}
	}

	center := measured.Center()
	err = smoothed.tracker.Update(center.X, center.Y, measured.Width, measured.Height)
	if err != nil {
		return Rectangle{}, errors.Wrap(err, "Can't update object tracker")
	}
	cx, cy, w, h = smoothed.tracker.GetState()
	smoothed.bbox = Rectangle{
		X:      cx - w/2.0,
		Y:      cy - h/2.0,
		Width:  w,
		Height: h,
	}
	return smoothed.bbox, nil
}

func (smoothed *SmoothedTracker[F]) Close() error {
	return smoothed.inner.Close()
}
