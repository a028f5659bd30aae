// Package postprocess - Postprocessing utilities for detection model outputs.
package postprocess

import (
	"fmt"

	"github.com/nvr-ai/narrator/images"
)

// Detection represents a single decoded object detection in pixel space.
//
// Detections have no identity across frames.
type Detection struct {
	// The bounding box of the detection, in original frame pixels.
	Box images.Rect `json:"box"`
	// The objectness score of the prediction, in [0, 1].
	Confidence float32 `json:"confidence"`
	// The predicted class index.
	ClassID int `json:"classId"`
	// The class name for ClassID.
	Label string `json:"label"`
}

func (d Detection) String() string {
	return fmt.Sprintf("%s (class %d, confidence %.3f) at %v", d.Label, d.ClassID, d.Confidence, d.Box)
}
