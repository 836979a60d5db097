package calibration

import (
	"encoding/json"
	"os"

	"github.com/LdDl/motion2d/motion"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Extrinsic maps a plane seen by the camera onto a top-down view of OutputSize pixels.
type Extrinsic struct {
	// Image points, at least four
	CornersIn [][2]float64
	// Where CornersIn land in the output image
	CornersOut [][2]float64
	OutputSize [2]int
	// Output pixels per world unit
	Scale float64
	// 3x3 homography from input to output pixels
	H *mat.Dense
}

type extrinsicFile struct {
	CornersIn  [][2]float64 `json:"corners_in"`
	CornersOut [][2]float64 `json:"corners_out"`
	OutputSize [2]int       `json:"output_size"`
	Scale      float64      `json:"scale,omitempty"`
	Scaling    float64      `json:"scaling,omitempty"`
}

// NewExtrinsic solves the homography for the corner pairs.
func NewExtrinsic(cornersIn, cornersOut [][2]float64, outputSize [2]int, scale float64) (*Extrinsic, error) {
	if outputSize[0] <= 0 || outputSize[1] <= 0 {
		return nil, errors.Wrapf(ErrCalibration, "output size %dx%d", outputSize[0], outputSize[1])
	}
	if scale <= 0 {
		scale = 1.0
	}
	h, err := Homography(cornersIn, cornersOut)
	if err != nil {
		return nil, err
	}
	return &Extrinsic{
		CornersIn:  cornersIn,
		CornersOut: cornersOut,
		OutputSize: outputSize,
		Scale:      scale,
		H:          h,
	}, nil
}

// LoadExtrinsic reads a JSON file with corners_in, corners_out, output_size and optional scale.
func LoadExtrinsic(path string) (*Extrinsic, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "Can't read extrinsic calibration '%s'", path)
	}
	var file extrinsicFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, errors.Wrapf(ErrCalibration, "'%s': %v", path, err)
	}
	scale := file.Scale
	if scale == 0 {
		scale = file.Scaling
	}
	ext, err := NewExtrinsic(file.CornersIn, file.CornersOut, file.OutputSize, scale)
	if err != nil {
		return nil, errors.Wrapf(err, "'%s'", path)
	}
	return ext, nil
}

// Save writes the corner pairs in the format LoadExtrinsic reads.
func (ext *Extrinsic) Save(path string) error {
	data, err := json.MarshalIndent(extrinsicFile{
		CornersIn:  ext.CornersIn,
		CornersOut: ext.CornersOut,
		OutputSize: ext.OutputSize,
		Scale:      ext.Scale,
	}, "", "    ")
	if err != nil {
		return errors.Wrap(err, "Can't encode extrinsic calibration")
	}
	return errors.Wrapf(os.WriteFile(path, data, 0644), "Can't write '%s'", path)
}

// Matrix returns the homography row-major.
func (ext *Extrinsic) Matrix() [9]float64 {
	var out [9]float64
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			out[r*3+c] = ext.H.At(r, c)
		}
	}
	return out
}

// MapPoint projects an input image point into the output image.
func (ext *Extrinsic) MapPoint(p motion.Point) motion.Point {
	src := mat.NewVecDense(3, []float64{p.X, p.Y, 1})
	var dst mat.VecDense
	dst.MulVec(ext.H, src)
	w := dst.AtVec(2)
	return motion.NewPoint(dst.AtVec(0)/w, dst.AtVec(1)/w)
}

// Homography solves dst ~ H * src with H[2][2] = 1. Four pairs give the exact
// solution, more pairs the least squares one.
func Homography(src, dst [][2]float64) (*mat.Dense, error) {
	if len(src) != len(dst) {
		return nil, errors.Wrapf(ErrCalibration, "%d input corners but %d output corners", len(src), len(dst))
	}
	if len(src) < 4 {
		return nil, errors.Wrapf(ErrCalibration, "need at least 4 corners, got %d", len(src))
	}
	n := len(src)
	a := mat.NewDense(2*n, 8, nil)
	b := mat.NewVecDense(2*n, nil)
	for i := 0; i < n; i++ {
		x, y := src[i][0], src[i][1]
		u, v := dst[i][0], dst[i][1]
		a.SetRow(2*i, []float64{x, y, 1, 0, 0, 0, -u * x, -u * y})
		a.SetRow(2*i+1, []float64{0, 0, 0, x, y, 1, -v * x, -v * y})
		b.SetVec(2*i, u)
		b.SetVec(2*i+1, v)
	}
	var h mat.VecDense
	if err := h.SolveVec(a, b); err != nil {
		return nil, errors.Wrapf(ErrCalibration, "degenerate corners: %v", err)
	}
	return mat.NewDense(3, 3, []float64{
		h.AtVec(0), h.AtVec(1), h.AtVec(2),
		h.AtVec(3), h.AtVec(4), h.AtVec(5),
		h.AtVec(6), h.AtVec(7), 1,
	}), nil
}
