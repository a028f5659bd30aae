// Package narration - Depth estimation, position description and narration text.
package narration

import (
	"github.com/chewxy/math32"
)

const (
	// DefaultFocalLength is the camera focal length in pixels.
	DefaultFocalLength = 1000
	// DefaultObjectHeight is the assumed real-world height in meters of labels
	// missing from the known heights table.
	DefaultObjectHeight = 1.0
)

// DefaultKnownHeights returns the real-world heights, in meters, of common labels.
func DefaultKnownHeights() map[string]float32 {
	return map[string]float32{
		"person":  1.7,
		"car":     1.5,
		"bicycle": 1.2,
	}
}

// DepthEstimator maps a box's pixel height to a distance with the pinhole
// model: distance = realHeight * focalLength / pixelHeight.
type DepthEstimator struct {
	FocalLength   float32            `json:"focalLength" yaml:"focal_length"`
	DefaultHeight float32            `json:"defaultHeight" yaml:"default_height"`
	KnownHeights  map[string]float32 `json:"knownHeights" yaml:"known_heights"`
}

// NewDepthEstimator returns an estimator with the default calibration.
func NewDepthEstimator() DepthEstimator {
	return DepthEstimator{
		FocalLength:   DefaultFocalLength,
		DefaultHeight: DefaultObjectHeight,
		KnownHeights:  DefaultKnownHeights(),
	}
}

// RealHeight returns the real-world height for label.
func (e DepthEstimator) RealHeight(label string) float32 {
	if h, ok := e.KnownHeights[label]; ok {
		return h
	}
	return e.DefaultHeight
}

// Estimate returns the distance in meters to an object of the given label
// whose box is boxHeight pixels tall.
//
// Arguments:
//   - boxHeight: The box height in pixels.
//   - label: The class label, used to look up the real-world height.
//
// Returns:
//   - float32: The distance in meters.
//   - bool: False if boxHeight is not positive or the result is not finite.
func (e DepthEstimator) Estimate(boxHeight float32, label string) (float32, bool) {
	if !(boxHeight > 0) || math32.IsInf(boxHeight, 0) {
		return 0, false
	}

	depth := e.RealHeight(label) * e.FocalLength / boxHeight
	if math32.IsNaN(depth) || math32.IsInf(depth, 0) {
		return 0, false
	}
	return depth, true
}
