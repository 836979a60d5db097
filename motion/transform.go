package motion

import (
	"github.com/pkg/errors"
)

// Stage is one geometric correction step. Apply must return a new frame and leave src untouched.
type Stage[F any] interface {
	Apply(src F) (F, error)
}

// StageFunc adapts a function to Stage.
type StageFunc[F any] func(src F) (F, error)

func (fn StageFunc[F]) Apply(src F) (F, error) {
	return fn(src)
}

// TransformSet is the calibration applied to every raw frame:
// undistort, then reorient, then perspective-correct. Any stage may be nil.
//
// Perspective parameters are computed on undistorted, reoriented images, so the order is fixed.
type TransformSet[F Frame[F]] struct {
	Undistort   Stage[F]
	Reorient    Stage[F]
	Perspective Stage[F]
	// Pixels per world unit of the perspective-corrected image. Zero means 1.
	Scale float64
}

// Correct runs raw through the configured stages. raw is consumed: on success the
// returned frame replaces it, on error everything is closed. A nil set returns raw as is.
func (t *TransformSet[F]) Correct(raw F) (F, error) {
	if t == nil {
		return raw, nil
	}
	current := raw
	for _, step := range []struct {
		name  string
		stage Stage[F]
	}{
		{"undistort", t.Undistort},
		{"reorient", t.Reorient},
		{"perspective", t.Perspective},
	} {
		if step.stage == nil {
			continue
		}
		next, err := step.stage.Apply(current)
		current.Close()
		if err != nil {
			var zero F
			return zero, errors.Wrapf(err, "Can't apply %s", step.name)
		}
		current = next
	}
	return current, nil
}

// Close releases the stages that hold resources.
func (t *TransformSet[F]) Close() error {
	if t == nil {
		return nil
	}
	var firstErr error
	for _, stage := range []Stage[F]{t.Undistort, t.Reorient, t.Perspective} {
		if closer, ok := stage.(interface{ Close() error }); ok {
			if err := closer.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// ScaleFactor returns Scale, defaulting to 1.
func (t *TransformSet[F]) ScaleFactor() float64 {
	if t == nil || t.Scale == 0 {
		return 1.0
	}
	return t.Scale
}

// Rotation is a clockwise frame rotation.
type Rotation string

const (
	Rotate0   Rotation = "0"
	Rotate90  Rotation = "90"
	Rotate180 Rotation = "180"
	Rotate270 Rotation = "270"
)

// Flip mirrors the frame after rotation.
type Flip string

const (
	NoFlip Flip = "no_flip"
	FlipH  Flip = "h_flip"
	FlipV  Flip = "v_flip"
	FlipHV Flip = "hv_flip"
)

const errBadEnum = "unknown %s '%s'"

// ParseRotation validates s. Empty means no rotation.
func ParseRotation(s string) (Rotation, error) {
	switch r := Rotation(s); r {
	case Rotate0, Rotate90, Rotate180, Rotate270:
		return r, nil
	case "":
		return Rotate0, nil
	}
	return Rotate0, errors.Errorf(errBadEnum, "rotation", s)
}

// ParseFlip validates s. Empty means no flip.
func ParseFlip(s string) (Flip, error) {
	switch f := Flip(s); f {
	case NoFlip, FlipH, FlipV, FlipHV:
		return f, nil
	case "":
		return NoFlip, nil
	}
	return NoFlip, errors.Errorf(errBadEnum, "flip", s)
}

// Orientation is the rotate/flip pair of the orientation stage.
type Orientation struct {
	Rotation Rotation
	Flip     Flip
}

// IsIdentity reports whether the orientation leaves frames unchanged.
func (o Orientation) IsIdentity() bool {
	return (o.Rotation == Rotate0 || o.Rotation == "") && (o.Flip == NoFlip || o.Flip == "")
}
