package cv

import (
	"image"
	"image/color"

	"github.com/LdDl/motion2d/calibration"
	"github.com/LdDl/motion2d/motion"
	"gocv.io/x/gocv"
)

// Undistort removes lens distortion. Maps are built for the first frame size
// seen and rebuilt when the size changes.
type Undistort struct {
	intrinsic *calibration.Intrinsic
	k         gocv.Mat
	d         gocv.Mat
	size      image.Point
	map1      gocv.Mat
	map2      gocv.Mat
	knew      gocv.Mat
	ready     bool
}

func NewUndistort(intrinsic *calibration.Intrinsic) *Undistort {
	k := gocv.NewMatWithSize(3, 3, gocv.MatTypeCV64F)
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			k.SetDoubleAt(r, c, intrinsic.K[r][c])
		}
	}
	d := gocv.NewMatWithSize(1, len(intrinsic.D), gocv.MatTypeCV64F)
	for i, v := range intrinsic.D {
		d.SetDoubleAt(0, i, v)
	}
	return &Undistort{
		intrinsic: intrinsic,
		k:         k,
		d:         d,
		map1:      gocv.NewMat(),
		map2:      gocv.NewMat(),
		knew:      gocv.NewMat(),
	}
}

func (u *Undistort) prepare(size image.Point) {
	if u.ready && u.size == size {
		return
	}
	u.size = size
	u.ready = true
	if u.intrinsic.Fisheye {
		identity := gocv.Eye(3, 3, gocv.MatTypeCV64F)
		defer identity.Close()
		gocv.EstimateNewCameraMatrixForUndistortRectify(u.k, u.d, size, identity, &u.knew, 0, size, 1)
		return
	}
	u.knew.Close()
	u.knew, _ = gocv.GetOptimalNewCameraMatrixWithParams(u.k, u.d, size, 1, size, false)
	empty := gocv.NewMat()
	defer empty.Close()
	gocv.InitUndistortRectifyMap(u.k, u.d, empty, u.knew, size, int(gocv.MatTypeCV16SC2), u.map1, u.map2)
}

func (u *Undistort) Apply(src Frame) (Frame, error) {
	u.prepare(image.Pt(src.Mat.Cols(), src.Mat.Rows()))
	dst := gocv.NewMat()
	if u.intrinsic.Fisheye {
		gocv.FisheyeUndistortImageWithParams(src.Mat, &dst, u.k, u.d, u.knew, u.size)
		return Frame{Mat: dst}, nil
	}
	gocv.Remap(src.Mat, &dst, &u.map1, &u.map2, gocv.InterpolationLinear, gocv.BorderConstant, color.RGBA{})
	return Frame{Mat: dst}, nil
}

func (u *Undistort) Close() error {
	for _, m := range []*gocv.Mat{&u.k, &u.d, &u.map1, &u.map2, &u.knew} {
		m.Close()
	}
	return nil
}

// Orient rotates clockwise, then flips.
type Orient struct {
	orientation motion.Orientation
}

func NewOrient(orientation motion.Orientation) *Orient {
	return &Orient{orientation: orientation}
}

func (o *Orient) Apply(src Frame) (Frame, error) {
	rotated := gocv.NewMat()
	switch o.orientation.Rotation {
	case motion.Rotate90:
		gocv.Rotate(src.Mat, &rotated, gocv.Rotate90Clockwise)
	case motion.Rotate180:
		gocv.Rotate(src.Mat, &rotated, gocv.Rotate180Clockwise)
	case motion.Rotate270:
		gocv.Rotate(src.Mat, &rotated, gocv.Rotate90CounterClockwise)
	default:
		src.Mat.CopyTo(&rotated)
	}
	code, ok := flipCode(o.orientation.Flip)
	if !ok {
		return Frame{Mat: rotated}, nil
	}
	flipped := gocv.NewMat()
	gocv.Flip(rotated, &flipped, code)
	rotated.Close()
	return Frame{Mat: flipped}, nil
}

// flipCode returns the OpenCV flip code: 1 mirrors around the vertical axis,
// 0 around the horizontal one and -1 around both.
func flipCode(flip motion.Flip) (int, bool) {
	switch flip {
	case motion.FlipH:
		return 1, true
	case motion.FlipV:
		return 0, true
	case motion.FlipHV:
		return -1, true
	}
	return 0, false
}

// Warp maps the calibrated plane onto a top-down view.
type Warp struct {
	m    gocv.Mat
	size image.Point
}

func NewWarp(extrinsic *calibration.Extrinsic) *Warp {
	m := gocv.NewMatWithSize(3, 3, gocv.MatTypeCV64F)
	h := extrinsic.Matrix()
	for i, v := range h {
		m.SetDoubleAt(i/3, i%3, v)
	}
	return &Warp{
		m:    m,
		size: image.Pt(extrinsic.OutputSize[0], extrinsic.OutputSize[1]),
	}
}

func (w *Warp) Apply(src Frame) (Frame, error) {
	dst := gocv.NewMat()
	gocv.WarpPerspective(src.Mat, &dst, w.m, w.size)
	return Frame{Mat: dst}, nil
}

func (w *Warp) Close() error {
	return w.m.Close()
}

// BuildTransformSet assembles the correction stages. Any of intrinsic and
// extrinsic may be nil, an identity orientation adds no stage.
func BuildTransformSet(intrinsic *calibration.Intrinsic, extrinsic *calibration.Extrinsic, orientation motion.Orientation) *motion.TransformSet[Frame] {
	set := &motion.TransformSet[Frame]{Scale: 1.0}
	if intrinsic != nil {
		set.Undistort = NewUndistort(intrinsic)
	}
	if !orientation.IsIdentity() {
		set.Reorient = NewOrient(orientation)
	}
	if extrinsic != nil {
		set.Perspective = NewWarp(extrinsic)
		set.Scale = extrinsic.Scale
	}
	return set
}
