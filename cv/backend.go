package cv

import (
	"github.com/LdDl/motion2d/calibration"
	"github.com/LdDl/motion2d/motion"
)

// Backend provides OpenCV decoding, tracking and correction to a project.
type Backend struct{}

func (Backend) Open(path string) (motion.Decoder[Frame], error) {
	return Open(path)
}

func (Backend) RegisterTrackers(registry *motion.Registry[Frame]) {
	RegisterTrackers(registry)
}

func (Backend) TransformSet(intrinsic *calibration.Intrinsic, extrinsic *calibration.Extrinsic, orientation motion.Orientation) *motion.TransformSet[Frame] {
	return BuildTransformSet(intrinsic, extrinsic, orientation)
}
