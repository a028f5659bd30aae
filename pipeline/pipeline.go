// Package pipeline - Per-frame decode, suppress and track, plus the frame runner.
package pipeline

import (
	"fmt"
	"image"
	"strings"
	"time"

	"github.com/chewxy/math32"
	"github.com/nvr-ai/narrator/images"
	"github.com/nvr-ai/narrator/models/postprocess"
	"github.com/nvr-ai/narrator/models/yolov5"
	"github.com/nvr-ai/narrator/narration"
	"github.com/nvr-ai/narrator/tracker"
	"gorgonia.org/tensor"
)

// NoObjectsText is the summary of a frame without detections.
const NoObjectsText = "No objects detected"

// Frame is a single frame of video.
type Frame struct {
	ID        int
	Image     image.Image
	Timestamp time.Time
}

// FrameResult is everything the pipeline produced for one frame.
type FrameResult struct {
	FrameID       int                      `json:"frameId"`
	Timestamp     time.Time                `json:"timestamp"`
	Size          images.Size              `json:"size"`
	Detections    []postprocess.Detection  `json:"detections"`
	Narrations    []tracker.NarrationEvent `json:"narrations"`
	Summary       string                   `json:"summary"`
	InferenceTime time.Duration            `json:"inferenceTime"`
}

// Pipeline runs decode, class-wise suppression and tracking on one output
// tensor. It is synchronous and owns no sinks.
type Pipeline struct {
	decoder yolov5.Config
	nms     postprocess.NMSConfig
	tracker *tracker.Tracker
}

// New creates a pipeline around tr.
func New(decoder yolov5.Config, nms postprocess.NMSConfig, tr *tracker.Tracker) *Pipeline {
	return &Pipeline{decoder: decoder, nms: nms, tracker: tr}
}

// Tracker returns the pipeline's tracker.
func (p *Pipeline) Tracker() *tracker.Tracker {
	return p.tracker
}

// ProcessFrame decodes t, suppresses overlapping detections and advances
// the tracker.
//
// A malformed tensor fails this frame only; the tracker is not touched.
//
// Arguments:
//   - t: The model output tensor, shaped [1, N, 5+K].
//   - frame: The original frame size.
//   - now: The frame timestamp.
//
// Returns:
//   - FrameResult: The visible detections, any narrations and the display summary.
//   - error: A wrapped yolov5.ErrMalformedTensor if t cannot be decoded.
func (p *Pipeline) ProcessFrame(t tensor.Tensor, frame images.Size, now time.Time) (FrameResult, error) {
	detections, err := yolov5.Decode(t, frame, p.decoder)
	if err != nil {
		return FrameResult{}, err
	}

	kept := postprocess.ApplyClassNMS(detections, p.nms)
	events := p.tracker.Update(kept, frame, now)

	return FrameResult{
		Timestamp:  now,
		Size:       frame,
		Detections: kept,
		Narrations: events,
		Summary:    Summarize(kept, frame),
	}, nil
}

// Summarize renders one "label: NN% → position" line per detection, or
// NoObjectsText when there are none.
func Summarize(detections []postprocess.Detection, frame images.Size) string {
	if len(detections) == 0 {
		return NoObjectsText
	}

	var sb strings.Builder
	for i, d := range detections {
		if i > 0 {
			sb.WriteByte('\n')
		}
		fmt.Fprintf(&sb, "%s: %d%% → %s", d.Label, int(math32.Round(d.Confidence*100)), narration.DescribePosition(d.Box, frame))
	}
	return sb.String()
}
