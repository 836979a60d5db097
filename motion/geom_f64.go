package motion

import (
	"image"
	"math"
)

// Rectangle is a bounding box: top-left corner plus size, in pixels of the corrected frame.
type Rectangle struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

func NewRect(x, y, width, height float64) Rectangle {
	return Rectangle{
		X:      x,
		Y:      y,
		Width:  width,
		Height: height,
	}
}

func NewRectFrom(rect image.Rectangle) Rectangle {
	return Rectangle{
		X:      float64(rect.Min.X),
		Y:      float64(rect.Min.Y),
		Width:  float64(rect.Dx()),
		Height: float64(rect.Dy()),
	}
}

// NaNRect returns the "missing" rectangle used by unwritten time-series slots.
func NaNRect() Rectangle {
	nan := math.NaN()
	return Rectangle{X: nan, Y: nan, Width: nan, Height: nan}
}

// IsNaN reports whether any component of the rectangle is missing.
func (r Rectangle) IsNaN() bool {
	return math.IsNaN(r.X) || math.IsNaN(r.Y) || math.IsNaN(r.Width) || math.IsNaN(r.Height)
}

// Center returns the center of the rectangle.
func (r Rectangle) Center() Point {
	return Point{
		X: r.X + r.Width/2.0,
		Y: r.Y + r.Height/2.0,
	}
}

// Target returns the logical target point: bounding box center shifted by offset.
func (r Rectangle) Target(offset Point) Point {
	return r.Center().Add(offset)
}

// Image converts the rectangle to integer pixel coordinates (truncating, as OpenCV does).
func (r Rectangle) Image() image.Rectangle {
	return image.Rect(int(r.X), int(r.Y), int(r.X+r.Width), int(r.Y+r.Height))
}

type Point struct {
	X float64
	Y float64
}

func NewPoint(x, y float64) Point {
	return Point{
		X: x,
		Y: y,
	}
}

// NaNPoint returns the "missing" point.
func NaNPoint() Point {
	return Point{X: math.NaN(), Y: math.NaN()}
}

func (p Point) IsNaN() bool {
	return math.IsNaN(p.X) || math.IsNaN(p.Y)
}

func (p Point) Add(q Point) Point {
	return Point{X: p.X + q.X, Y: p.Y + q.Y}
}

func (p Point) Sub(q Point) Point {
	return Point{X: p.X - q.X, Y: p.Y - q.Y}
}

// Scale divides both components by s. Used to convert pixels to world units.
func (p Point) Scale(s float64) Point {
	return Point{X: p.X / s, Y: p.Y / s}
}

// Heading returns the signed angle of v from the +X axis in degrees, in (-180, 180].
// Image rows grow downwards, so (0,-1) points "up" and has a heading of 90.
func Heading(v Point) float64 {
	deg := math.Atan2(-v.Y, v.X) * 180.0 / math.Pi
	if deg <= -180.0 {
		deg += 360.0
	}
	return deg
}

// RelativeAngle returns heading(end2-start2) - heading(end1-start1).
func RelativeAngle(start1, end1, start2, end2 Point) float64 {
	return Heading(end2.Sub(start2)) - Heading(end1.Sub(start1))
}

// Displacement returns the vector from start to end.
func Displacement(start, end Point) Point {
	return end.Sub(start)
}

func euclideanDistance(p1, p2 Point) float64 {
	return math.Sqrt(math.Pow(float64(p1.X-p2.X), 2) + math.Pow(float64(p1.Y-p2.Y), 2))
}
