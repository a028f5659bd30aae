package models

import "github.com/pkg/errors"

// ErrModelUnavailable is returned when the detection model cannot be loaded
// or initialized. It is terminal for the session: no frames can be processed.
var ErrModelUnavailable = errors.New("model unavailable")

// Layout describes the tensors a YOLO-style detection model exchanges.
type Layout struct {
	// InputSize is the square spatial size of the [1, 3, S, S] input.
	InputSize int `json:"inputSize" yaml:"input_size"`
	// NumPredictions is N in the [1, N, 5+K] output.
	NumPredictions int `json:"numPredictions" yaml:"num_predictions"`
	// NumClasses is K in the [1, N, 5+K] output.
	NumClasses int `json:"numClasses" yaml:"num_classes"`
}

// InputShape returns the NCHW input shape.
func (l Layout) InputShape() []int64 {
	return []int64{1, 3, int64(l.InputSize), int64(l.InputSize)}
}

// OutputShape returns the [1, N, 5+K] output shape.
func (l Layout) OutputShape() []int64 {
	return []int64{1, int64(l.NumPredictions), int64(5 + l.NumClasses)}
}
