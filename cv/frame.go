// Package cv binds the motion package to OpenCV through gocv.
package cv

import (
	"github.com/LdDl/motion2d/motion"
	"gocv.io/x/gocv"
)

// Frame wraps a decoded image. Copies share the underlying Mat, Clone does not.
type Frame struct {
	Mat gocv.Mat
}

func (f Frame) Clone() Frame {
	return Frame{Mat: f.Mat.Clone()}
}

func (f Frame) Close() error {
	return f.Mat.Close()
}

func (f Frame) Shape() motion.FrameShape {
	return motion.FrameShape{
		Width:    f.Mat.Cols(),
		Height:   f.Mat.Rows(),
		Channels: f.Mat.Channels(),
	}
}

// Empty reports whether the frame holds no pixels.
func (f Frame) Empty() bool {
	return f.Mat.Empty()
}
