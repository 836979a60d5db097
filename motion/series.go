package motion

import "math"

// TrackerSeries is the frame-indexed history of one tracker.
// Index i holds external frame number i+1. Unwritten slots are NaN.
type TrackerSeries struct {
	Time   []float64
	BBox   []Rectangle
	Target []Point
}

// NewTrackerSeries allocates a series of n missing samples.
func NewTrackerSeries(n int) TrackerSeries {
	s := TrackerSeries{
		Time:   make([]float64, n),
		BBox:   make([]Rectangle, n),
		Target: make([]Point, n),
	}
	for i := 0; i < n; i++ {
		s.Time[i] = math.NaN()
		s.BBox[i] = NaNRect()
		s.Target[i] = NaNPoint()
	}
	return s
}

// Len returns number of frames covered by the series.
func (s TrackerSeries) Len() int {
	return len(s.Time)
}

// Set writes one sample, deriving the target from bbox and offset.
func (s TrackerSeries) Set(i int, time float64, bbox Rectangle, offset Point) {
	s.Time[i] = time
	s.BBox[i] = bbox
	s.Target[i] = bbox.Target(offset)
}

// Valid reports whether the series is rectangular: all columns of equal length.
func (s TrackerSeries) Valid() bool {
	return len(s.BBox) == len(s.Time) && len(s.Target) == len(s.Time)
}

// Clone returns a deep copy.
func (s TrackerSeries) Clone() TrackerSeries {
	return TrackerSeries{
		Time:   append([]float64(nil), s.Time...),
		BBox:   append([]Rectangle(nil), s.BBox...),
		Target: append([]Point(nil), s.Target...),
	}
}

// LastRecorded returns the highest index with a recorded time, or -1.
func (s TrackerSeries) LastRecorded() int {
	for i := len(s.Time) - 1; i >= 0; i-- {
		if !math.IsNaN(s.Time[i]) {
			return i
		}
	}
	return -1
}

// FirstBBox returns the index of the first complete bounding box, or -1.
func (s TrackerSeries) FirstBBox() int {
	for i, bbox := range s.BBox {
		if !bbox.IsNaN() {
			return i
		}
	}
	return -1
}

// AngleSeries is the frame-indexed history of a derived angle, in degrees.
type AngleSeries struct {
	Angle []float64
}

func NewAngleSeries(n int) AngleSeries {
	s := AngleSeries{Angle: make([]float64, n)}
	for i := range s.Angle {
		s.Angle[i] = math.NaN()
	}
	return s
}

func (s AngleSeries) Clone() AngleSeries {
	return AngleSeries{Angle: append([]float64(nil), s.Angle...)}
}

// DistanceSeries is the frame-indexed history of a derived displacement vector.
type DistanceSeries struct {
	Delta []Point
}

func NewDistanceSeries(n int) DistanceSeries {
	s := DistanceSeries{Delta: make([]Point, n)}
	for i := range s.Delta {
		s.Delta[i] = NaNPoint()
	}
	return s
}

func (s DistanceSeries) Clone() DistanceSeries {
	return DistanceSeries{Delta: append([]Point(nil), s.Delta...)}
}
