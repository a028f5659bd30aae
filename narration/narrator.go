package narration

import (
	"fmt"

	"github.com/nvr-ai/narrator/images"
	"github.com/nvr-ai/narrator/models/postprocess"
)

// Compose renders the spoken sentence for one object.
func Compose(label, position string, depth float32) string {
	return fmt.Sprintf("I see a %s at %s, approximately %.1f meters away.", label, position, depth)
}

// Narrator turns a detection into narration text.
type Narrator struct {
	Depth DepthEstimator
}

// NewNarrator returns a Narrator using the given depth estimator.
func NewNarrator(depth DepthEstimator) *Narrator {
	return &Narrator{Depth: depth}
}

// Narrate describes detection d within a frame of the given size.
//
// Returns:
//   - string: The narration text.
//   - bool: False if no valid depth can be estimated for the box, in which
//     case nothing should be narrated.
func (n *Narrator) Narrate(d postprocess.Detection, frame images.Size) (string, bool) {
	depth, ok := n.Depth.Estimate(d.Box.Height(), d.Label)
	if !ok {
		return "", false
	}
	return Compose(d.Label, DescribePosition(d.Box, frame), depth), true
}
