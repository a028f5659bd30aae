// Package images - Pixel geometry and frame preprocessing utilities.
package images

import (
	"fmt"

	"github.com/chewxy/math32"
)

// Size is the width and height of a frame in pixels.
type Size struct {
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// Point is a location in pixel space.
type Point struct {
	X, Y float32
}

// Rect is an axis-aligned bounding box in pixel coordinates.
//
// X1,Y1 is the left/top edge and X2,Y2 is the right/bottom edge. A Rect with
// X2 <= X1 or Y2 <= Y1 is degenerate and has no positive area.
type Rect struct {
	X1, Y1, X2, Y2 float32
}

// RectFromCenter builds a Rect from a center point and a width/height.
//
// Arguments:
//   - cx, cy: The center of the box.
//   - w, h: The width and height of the box.
//
// Returns:
//   - Rect: The box with left = cx - w/2, top = cy - h/2.
func RectFromCenter(cx, cy, w, h float32) Rect {
	x := cx - w/2
	y := cy - h/2
	return Rect{X1: x, Y1: y, X2: x + w, Y2: y + h}
}

// Width returns the horizontal extent of the box.
func (r Rect) Width() float32 {
	return r.X2 - r.X1
}

// Height returns the vertical extent of the box.
func (r Rect) Height() float32 {
	return r.Y2 - r.Y1
}

// Area returns Width*Height, or 0 for a degenerate box.
func (r Rect) Area() float32 {
	w, h := r.Width(), r.Height()
	if !(w > 0) || !(h > 0) {
		return 0
	}
	return w * h
}

// Center returns the midpoint of the box.
func (r Rect) Center() Point {
	return Point{X: (r.X1 + r.X2) / 2, Y: (r.Y1 + r.Y2) / 2}
}

// Offset returns the box translated by dx, dy.
func (r Rect) Offset(dx, dy float32) Rect {
	return Rect{X1: r.X1 + dx, Y1: r.Y1 + dy, X2: r.X2 + dx, Y2: r.Y2 + dy}
}

// IsFinite reports whether every coordinate is a finite number.
func (r Rect) IsFinite() bool {
	return isFinite(r.X1) && isFinite(r.Y1) && isFinite(r.X2) && isFinite(r.Y2)
}

func (r Rect) String() string {
	return fmt.Sprintf("(%.1f, %.1f)-(%.1f, %.1f)", r.X1, r.Y1, r.X2, r.Y2)
}

// CenterDistance returns the Euclidean distance between the centers of two boxes.
//
// The result is NaN or +Inf if either box has non-finite coordinates; callers
// that must stay live across bad input should check it with math32.IsNaN/IsInf.
func CenterDistance(a, b Rect) float32 {
	ca := a.Center()
	cb := b.Center()
	return math32.Hypot(ca.X-cb.X, ca.Y-cb.Y)
}

// CalculateIoU measures how much two rectangles overlap, as a value between 0.0 and 1.0.
//
// It is formally defined by the formula:
//
//	IoU = Area of Intersection / Area of Union
//
//	- A value of 1.0 means the rectangles are identical.
//	- A value of 0.0 means the rectangles don't overlap at all.
//
// The intersection's corners are the maximum of the two top-left corners and the minimum
// of the two bottom-right corners; a non-positive width or height means no overlap. The
// union follows inclusion-exclusion: Area(A) + Area(B) - Area(Intersection).
//
// When the union is not positive (degenerate or non-finite boxes) the result is 0, so a
// degenerate box never suppresses another box and is never suppressed by one.
//
// Arguments:
//   - r: The first rectangle.
//   - o: The other rectangle to compare against.
//
// Returns:
//   - float32: The IoU score. CalculateIoU(a, b) == CalculateIoU(b, a).
//
// Example Usage:
// ```go
//
//	rect1 := Rect{X1: 0, Y1: 0, X2: 10, Y2: 10}
//	rect2 := Rect{X1: 5, Y1: 5, X2: 15, Y2: 15}
//
//	iouScore := CalculateIoU(rect1, rect2) // 25 / 175 = 0.142857
//
// ```
func CalculateIoU(r, o Rect) float32 {
	ix1 := max(r.X1, o.X1)
	iy1 := max(r.Y1, o.Y1)
	ix2 := min(r.X2, o.X2)
	iy2 := min(r.Y2, o.Y2)

	interArea := max(0, ix2-ix1) * max(0, iy2-iy1)
	unionArea := r.Area() + o.Area() - interArea

	// Also rejects NaN.
	if !(unionArea > 0) {
		return 0
	}

	iou := interArea / unionArea
	if !isFinite(iou) {
		return 0
	}
	return iou
}

func isFinite(v float32) bool {
	return !math32.IsNaN(v) && !math32.IsInf(v, 0)
}
