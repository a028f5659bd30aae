package narration

import (
	"fmt"

	"github.com/nvr-ai/narrator/images"
)

// Horizontal and vertical grid cells.
const (
	Left   = "left"
	Center = "center"
	Right  = "right"
	Top    = "top"
	Middle = "middle"
	Bottom = "bottom"
)

// Qualitative distance buckets.
const (
	VeryClose = "very close"
	Near      = "near"
	Far       = "far"
)

// DescribePosition places the box center on a 3x3 grid over the frame and
// buckets the box height relative to the frame height.
//
// Grid boundaries are integer thirds of the frame dimensions. The box is
// "very close" if taller than half the frame, "near" if taller than a
// third, else "far".
//
// Arguments:
//   - box: The detection box in frame pixels.
//   - frame: The frame size.
//
// Returns:
//   - string: "{horizontal}-{vertical}, {distance}", e.g. "center-middle, very close".
func DescribePosition(box images.Rect, frame images.Size) string {
	c := box.Center()

	horizontal := Center
	switch {
	case c.X < float32(frame.Width/3):
		horizontal = Left
	case c.X > float32(frame.Width*2/3):
		horizontal = Right
	}

	vertical := Middle
	switch {
	case c.Y < float32(frame.Height/3):
		vertical = Top
	case c.Y > float32(frame.Height*2/3):
		vertical = Bottom
	}

	h := box.Height()
	distance := Far
	switch {
	case h > float32(frame.Height/2):
		distance = VeryClose
	case h > float32(frame.Height/3):
		distance = Near
	}

	return fmt.Sprintf("%s-%s, %s", horizontal, vertical, distance)
}
