// Package models - Class label vocabularies for detection model outputs.
package models

import (
	"bufio"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// UnknownLabel is returned for class indices outside the vocabulary.
const UnknownLabel = "Unknown"

// Vocabulary is an ordered list of class names. A model's class index is an
// index into this list.
type Vocabulary []string

// Name returns the class name for idx, or UnknownLabel if idx is out of range.
//
// Arguments:
//   - idx: The zero-based class index emitted by the model.
//
// Returns:
//   - string: The class name.
func (v Vocabulary) Name(idx int) string {
	if idx < 0 || idx >= len(v) {
		return UnknownLabel
	}
	return v[idx]
}

// Index returns the class index for name.
//
// Returns:
//   - int: The index, or -1 if the name is not present.
//   - bool: True if the name was found.
func (v Vocabulary) Index(name string) (int, bool) {
	for i, n := range v {
		if n == name {
			return i, true
		}
	}
	return -1, false
}

// Len returns the number of classes.
func (v Vocabulary) Len() int {
	return len(v)
}

// LoadVocabulary reads a text file with one class name per line.
// Blank lines are skipped and surrounding whitespace (including a trailing
// '\r' from CRLF files) is trimmed.
//
// Arguments:
//   - path: The path to the label file.
//
// Returns:
//   - Vocabulary: The class names in file order.
//   - error: An error if the file cannot be read or contains no labels.
func LoadVocabulary(path string) (Vocabulary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open label file")
	}
	defer f.Close()

	var v Vocabulary
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			v = append(v, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "failed to read label file %s", path)
	}
	if len(v) == 0 {
		return nil, errors.Errorf("label file %s contains no labels", path)
	}
	return v, nil
}

// COCOClasses is the 80 COCO classes in the order YOLO models emit them
// (no background class).
var COCOClasses = Vocabulary{
	"person", "bicycle", "car", "motorcycle", "airplane", "bus", "train", "truck", "boat",
	"traffic light", "fire hydrant", "stop sign", "parking meter", "bench", "bird", "cat",
	"dog", "horse", "sheep", "cow", "elephant", "bear", "zebra", "giraffe", "backpack",
	"umbrella", "handbag", "tie", "suitcase", "frisbee", "skis", "snowboard", "sports ball",
	"kite", "baseball bat", "baseball glove", "skateboard", "surfboard", "tennis racket",
	"bottle", "wine glass", "cup", "fork", "knife", "spoon", "bowl", "banana", "apple",
	"sandwich", "orange", "broccoli", "carrot", "hot dog", "pizza", "donut", "cake",
	"chair", "couch", "potted plant", "bed", "dining table", "toilet", "tv", "laptop",
	"mouse", "remote", "keyboard", "cell phone", "microwave", "oven", "toaster", "sink",
	"refrigerator", "book", "clock", "vase", "scissors", "teddy bear", "hair drier", "toothbrush",
}
