// Package yolov5 - decode YOLOv5-style detection tensors into pixel-space detections.
package yolov5

import (
	"github.com/nvr-ai/narrator/images"
	"github.com/nvr-ai/narrator/models"
	"github.com/nvr-ai/narrator/models/postprocess"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// ErrMalformedTensor is returned when an output tensor does not have the
// [1, N, 5+K] float32 layout. It fails a single frame only.
var ErrMalformedTensor = errors.New("malformed detection tensor")

// Column layout of one prediction row.
const (
	colCX = iota
	colCY
	colW
	colH
	colObjectness
	colFirstClass
)

// DefaultThreshold is the default gate for both objectness and best class score.
const DefaultThreshold = 0.4

// Config holds the decoder gates and vocabulary.
type Config struct {
	// A row is kept only if objectness is strictly greater than this.
	ObjectnessThreshold float32 `json:"objectnessThreshold" yaml:"objectness_threshold"`
	// A row is kept only if its best class score is strictly greater than this.
	ClassScoreThreshold float32 `json:"classScoreThreshold" yaml:"class_score_threshold"`
	// Labels maps class indices to names.
	Labels models.Vocabulary `json:"labels" yaml:"labels"`
}

// DefaultConfig returns gates of 0.4 and the COCO vocabulary.
func DefaultConfig() Config {
	return Config{
		ObjectnessThreshold: DefaultThreshold,
		ClassScoreThreshold: DefaultThreshold,
		Labels:              models.COCOClasses,
	}
}

// Decode converts one model output tensor into unfiltered detections in
// the pixel space of the original frame.
//
// Arguments:
//   - t: The output tensor, shaped [1, N, 5+K] or [N, 5+K], dtype float32.
//   - frame: The original (pre-resize) frame size used to scale normalized boxes.
//   - cfg: The decoder configuration.
//
// Returns:
//   - []postprocess.Detection: Detections in row order.
//   - error: ErrMalformedTensor (wrapped) if the tensor layout is wrong.
//
// Example Usage:
// ```go
//
//	out := tensor.New(tensor.WithShape(1, 25200, 85), tensor.WithBacking(raw))
//	dets, err := yolov5.Decode(out, images.Size{Width: 1280, Height: 720}, yolov5.DefaultConfig())
//
// ```
func Decode(t tensor.Tensor, frame images.Size, cfg Config) ([]postprocess.Detection, error) {
	if t == nil {
		return nil, errors.Wrap(ErrMalformedTensor, "nil tensor")
	}
	if t.Dtype() != tensor.Float32 {
		return nil, errors.Wrapf(ErrMalformedTensor, "dtype %v, want float32", t.Dtype())
	}

	shape := t.Shape()
	var numCols int
	switch len(shape) {
	case 3:
		if shape[0] != 1 {
			return nil, errors.Wrapf(ErrMalformedTensor, "batch size %d, want 1", shape[0])
		}
		numCols = shape[2]
	case 2:
		numCols = shape[1]
	default:
		return nil, errors.Wrapf(ErrMalformedTensor, "shape %v, want [1 N 5+K]", shape)
	}

	if t.RequiresIterator() {
		t = tensor.Materialize(t)
	}
	data, ok := t.Data().([]float32)
	if !ok {
		return nil, errors.Wrapf(ErrMalformedTensor, "unexpected backing %T", t.Data())
	}

	return DecodeRows(data, numCols, frame, cfg)
}

// DecodeRows decodes a flat row-major buffer of prediction rows, each
// numCols wide: [cx, cy, w, h, objectness, class_0..class_{K-1}].
//
// When cfg.Labels is set, numCols must be 5 plus its length.
// A row is emitted only if objectness > ObjectnessThreshold and its best
// class score > ClassScoreThreshold. The reported confidence is the
// objectness, not the class score.
func DecodeRows(rows []float32, numCols int, frame images.Size, cfg Config) ([]postprocess.Detection, error) {
	if numCols <= colFirstClass {
		return nil, errors.Wrapf(ErrMalformedTensor, "%d columns, want at least %d", numCols, colFirstClass+1)
	}
	if k := cfg.Labels.Len(); k > 0 && numCols != colFirstClass+k {
		return nil, errors.Wrapf(ErrMalformedTensor, "%d columns, want %d for %d labels", numCols, colFirstClass+k, k)
	}
	if len(rows)%numCols != 0 {
		return nil, errors.Wrapf(ErrMalformedTensor, "%d values is not a multiple of %d columns", len(rows), numCols)
	}

	fw := float32(frame.Width)
	fh := float32(frame.Height)

	var detections []postprocess.Detection
	for offset := 0; offset < len(rows); offset += numCols {
		row := rows[offset : offset+numCols]

		objectness := row[colObjectness]
		// Negated so NaN is discarded.
		if !(objectness > cfg.ObjectnessThreshold) {
			continue
		}

		classID := -1
		maxScore := float32(0)
		for j := colFirstClass; j < numCols; j++ {
			if row[j] > maxScore {
				maxScore = row[j]
				classID = j - colFirstClass
			}
		}
		if classID < 0 || !(maxScore > cfg.ClassScoreThreshold) {
			continue
		}

		detections = append(detections, postprocess.Detection{
			Box:        images.RectFromCenter(row[colCX]*fw, row[colCY]*fh, row[colW]*fw, row[colH]*fh),
			Confidence: objectness,
			ClassID:    classID,
			Label:      cfg.Labels.Name(classID),
		})
	}

	return detections, nil
}

// NormalizeRows divides the box columns of each row by inputSize, in place.
// Use it for exports that emit boxes in model-input pixels rather than [0, 1].
func NormalizeRows(rows []float32, numCols, inputSize int) {
	if numCols <= colH || inputSize <= 0 {
		return
	}
	s := float32(inputSize)
	for offset := 0; offset+numCols <= len(rows); offset += numCols {
		rows[offset+colCX] /= s
		rows[offset+colCY] /= s
		rows[offset+colW] /= s
		rows[offset+colH] /= s
	}
}
