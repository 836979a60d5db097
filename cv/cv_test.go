package cv

import (
	"testing"

	"github.com/LdDl/motion2d/calibration"
	"github.com/LdDl/motion2d/motion"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func newFrame(rows, cols int) Frame {
	mat := gocv.NewMatWithSize(rows, cols, gocv.MatTypeCV8UC3)
	return Frame{Mat: mat}
}

func TestFrameCloneIsIndependent(t *testing.T) {
	frame := newFrame(4, 6)
	defer frame.Close()
	clone := frame.Clone()
	require.Equal(t, motion.FrameShape{Width: 6, Height: 4, Channels: 3}, clone.Shape())
	require.NoError(t, clone.Close())
	require.False(t, frame.Empty())
}

func TestFlipCode(t *testing.T) {
	cases := map[motion.Flip]int{motion.FlipH: 1, motion.FlipV: 0, motion.FlipHV: -1}
	for flip, want := range cases {
		got, ok := flipCode(flip)
		require.True(t, ok)
		require.Equal(t, want, got)
	}
	_, ok := flipCode(motion.NoFlip)
	require.False(t, ok)
}

func TestOrientShape(t *testing.T) {
	frame := newFrame(4, 6)
	defer frame.Close()
	for rotation, want := range map[motion.Rotation]motion.FrameShape{
		motion.Rotate0:   {Width: 6, Height: 4, Channels: 3},
		motion.Rotate90:  {Width: 4, Height: 6, Channels: 3},
		motion.Rotate180: {Width: 6, Height: 4, Channels: 3},
		motion.Rotate270: {Width: 4, Height: 6, Channels: 3},
	} {
		out, err := NewOrient(motion.Orientation{Rotation: rotation, Flip: motion.FlipHV}).Apply(frame)
		require.NoError(t, err)
		require.Equal(t, want, out.Shape(), "rotation %s", rotation)
		out.Close()
	}
}

func TestBuildTransformSet(t *testing.T) {
	set := BuildTransformSet(nil, nil, motion.Orientation{Rotation: motion.Rotate0, Flip: motion.NoFlip})
	require.Nil(t, set.Undistort)
	require.Nil(t, set.Reorient)
	require.Nil(t, set.Perspective)
	require.Equal(t, 1.0, set.ScaleFactor())

	ext, err := calibration.NewExtrinsic(
		[][2]float64{{0, 0}, {6, 0}, {6, 4}, {0, 4}},
		[][2]float64{{0, 0}, {12, 0}, {12, 8}, {0, 8}},
		[2]int{12, 8}, 2,
	)
	require.NoError(t, err)
	set = BuildTransformSet(nil, ext, motion.Orientation{Rotation: motion.Rotate90})
	require.NotNil(t, set.Reorient)
	require.NotNil(t, set.Perspective)
	require.Equal(t, 2.0, set.ScaleFactor())

	frame := newFrame(6, 4)
	out, err := set.Correct(frame)
	require.NoError(t, err)
	defer out.Close()
	require.Equal(t, motion.FrameShape{Width: 12, Height: 8, Channels: 3}, out.Shape())
}

func TestRegisterTrackers(t *testing.T) {
	registry := motion.NewRegistry[Frame]()
	RegisterTrackers(registry)
	for _, tag := range []string{TrackerCSRT, TrackerKCF, TrackerMIL, TrackerBoosting, TrackerMedianFlow, TrackerMOSSE, motion.TrackerStatic} {
		require.True(t, registry.Has(tag), tag)
	}
}
