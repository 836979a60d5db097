package cv

import (
	"github.com/LdDl/motion2d/motion"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
	"gocv.io/x/gocv/contrib"
)

// Tracker type tags of the OpenCV algorithms
const (
	TrackerCSRT       = "CSRT"
	TrackerKCF        = "KCF"
	TrackerMIL        = "MIL"
	TrackerBoosting   = "Boosting"
	TrackerMedianFlow = "MedianFlow"
	TrackerMOSSE      = "MOSSE"
)

// visualTracker adapts gocv.Tracker to motion.Tracker.
type visualTracker struct {
	tag     string
	tracker gocv.Tracker
}

func (v *visualTracker) Init(frame Frame, bbox motion.Rectangle) error {
	if bbox.IsNaN() || bbox.Width <= 0 || bbox.Height <= 0 {
		return errors.Wrapf(motion.ErrTrackerInit, "%s: invalid box %+v", v.tag, bbox)
	}
	if !v.tracker.Init(frame.Mat, bbox.Image()) {
		return errors.Wrapf(motion.ErrTrackerInit, "%s", v.tag)
	}
	return nil
}

func (v *visualTracker) Update(frame Frame) (motion.Rectangle, error) {
	rect, ok := v.tracker.Update(frame.Mat)
	if !ok {
		return motion.NaNRect(), errors.Wrapf(motion.ErrTrackerLost, "%s", v.tag)
	}
	return motion.NewRectFrom(rect), nil
}

func (v *visualTracker) Close() error {
	return v.tracker.Close()
}

func factory(tag string, create func() gocv.Tracker) motion.Factory[Frame] {
	return func() (motion.Tracker[Frame], error) {
		return &visualTracker{tag: tag, tracker: create()}, nil
	}
}

// RegisterTrackers adds every OpenCV tracker type to registry.
func RegisterTrackers(registry *motion.Registry[Frame]) {
	registry.Register(TrackerCSRT, factory(TrackerCSRT, func() gocv.Tracker { return contrib.NewTrackerCSRT() }))
	registry.Register(TrackerKCF, factory(TrackerKCF, func() gocv.Tracker { return contrib.NewTrackerKCF() }))
	registry.Register(TrackerMIL, factory(TrackerMIL, func() gocv.Tracker { return gocv.NewTrackerMIL() }))
	registry.Register(TrackerBoosting, factory(TrackerBoosting, func() gocv.Tracker { return contrib.NewTrackerBoosting() }))
	registry.Register(TrackerMedianFlow, factory(TrackerMedianFlow, func() gocv.Tracker { return contrib.NewTrackerMedianFlow() }))
	registry.Register(TrackerMOSSE, factory(TrackerMOSSE, func() gocv.Tracker { return contrib.NewTrackerMOSSE() }))
}
