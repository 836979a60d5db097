package cv

import (
	"github.com/LdDl/motion2d/motion"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// Capture decodes a video file frame by frame.
type Capture struct {
	capture *gocv.VideoCapture
	props   motion.StreamProps
}

// Open is a motion.Opener backed by gocv.VideoCaptureFile.
func Open(path string) (motion.Decoder[Frame], error) {
	capture, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "Can't open video '%s'", path)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, errors.Errorf("Video '%s' is not readable", path)
	}
	props := motion.StreamProps{
		Shape: motion.FrameShape{
			Width:    int(capture.Get(gocv.VideoCaptureFrameWidth)),
			Height:   int(capture.Get(gocv.VideoCaptureFrameHeight)),
			Channels: 3,
		},
		FrameRate:  capture.Get(gocv.VideoCaptureFPS),
		FrameCount: int(capture.Get(gocv.VideoCaptureFrameCount)),
	}
	return &Capture{capture: capture, props: props}, nil
}

func (c *Capture) Read() (Frame, bool) {
	mat := gocv.NewMat()
	if ok := c.capture.Read(&mat); !ok || mat.Empty() {
		mat.Close()
		return Frame{}, false
	}
	return Frame{Mat: mat}, true
}

func (c *Capture) Position() int {
	return int(c.capture.Get(gocv.VideoCapturePosFrames))
}

func (c *Capture) PositionMsec() float64 {
	return c.capture.Get(gocv.VideoCapturePosMsec)
}

func (c *Capture) SetPosition(index int) error {
	if index < 0 || (c.props.FrameCount > 0 && index >= c.props.FrameCount) {
		return errors.Errorf("position %d is out of [0, %d)", index, c.props.FrameCount)
	}
	c.capture.Set(gocv.VideoCapturePosFrames, float64(index))
	return nil
}

func (c *Capture) Props() motion.StreamProps {
	return c.props
}

func (c *Capture) Close() error {
	return c.capture.Close()
}
