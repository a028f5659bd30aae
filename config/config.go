// Package config - YAML configuration for the narrator.
package config

import (
	"os"
	"time"

	"github.com/nvr-ai/narrator/images"
	"github.com/nvr-ai/narrator/models"
	"github.com/nvr-ai/narrator/models/postprocess"
	"github.com/nvr-ai/narrator/models/yolov5"
	"github.com/nvr-ai/narrator/narration"
	"github.com/nvr-ai/narrator/tracker"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned by Validate for out-of-range settings.
var ErrInvalidConfig = errors.New("invalid config")

// Speech modes.
const (
	SpeechModeLog     = "log"
	SpeechModeCommand = "command"
	SpeechModeHTTP    = "http"
)

// Model configures the ONNX model and its tensor layout.
type Model struct {
	Path           string   `yaml:"path"`
	InputSize      int      `yaml:"input_size"`
	InputName      string   `yaml:"input_name"`
	OutputName     string   `yaml:"output_name"`
	NumPredictions int      `yaml:"num_predictions"`
	Threads        int      `yaml:"threads"`
	Labels         []string `yaml:"labels"`
	LabelsFile     string   `yaml:"labels_file"`

	// Provider is the execution provider: cpu, cuda, coreml or openvino.
	Provider         string `yaml:"provider"`
	DeviceID         int    `yaml:"device_id"`
	LibraryPath      string `yaml:"library_path"`
	PixelCoordinates bool   `yaml:"pixel_coordinates"`
}

// Detection configures decoding and suppression.
type Detection struct {
	ObjectnessThreshold float32 `yaml:"objectness_threshold"`
	ClassScoreThreshold float32 `yaml:"class_score_threshold"`
	IoUThreshold        float32 `yaml:"iou_threshold"`
	NMSWorkers          int     `yaml:"nms_workers"`
}

// Tracking configures the stability tracker.
type Tracking struct {
	MovementThreshold  float32       `yaml:"movement_threshold"`
	// StabilityThreshold needs a unit suffix, eg "2s" or "1500ms"; a bare
	// integer is nanoseconds and is rejected by Validate.
	StabilityThreshold time.Duration `yaml:"stability_threshold"`
}

// Depth configures the depth estimator.
type Depth struct {
	FocalLength   float32            `yaml:"focal_length"`
	DefaultHeight float32            `yaml:"default_height"`
	KnownHeights  map[string]float32 `yaml:"known_heights"`
}

// Speech configures the narration sink.
type Speech struct {
	Mode      string        `yaml:"mode"`
	Command   string        `yaml:"command"`
	Args      []string      `yaml:"args"`
	URL       string        `yaml:"url"`
	QueueSize int           `yaml:"queue_size"`
	Timeout   time.Duration `yaml:"timeout"`
}

// Source configures where frames come from.
type Source struct {
	Camera        int           `yaml:"camera"`
	// Resolution requests a capture size from the camera, eg "720p". Empty keeps the device default.
	Resolution    string        `yaml:"resolution"`
	ReplayDir     string        `yaml:"replay_dir"`
	FrameInterval time.Duration `yaml:"frame_interval"`
}

// Server configures the display server.
type Server struct {
	Addr          string `yaml:"addr"`
	NarrationKeep int    `yaml:"narration_keep"`
}

// Log configures logging.
type Log struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Config is the full narrator configuration.
type Config struct {
	Model     Model     `yaml:"model"`
	Detection Detection `yaml:"detection"`
	Tracking  Tracking  `yaml:"tracking"`
	Depth     Depth     `yaml:"depth"`
	Speech    Speech    `yaml:"speech"`
	Source    Source    `yaml:"source"`
	Server    Server    `yaml:"server"`
	Log       Log       `yaml:"log"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Model: Model{
			Path:           "yolov5s.onnx",
			InputSize:      640,
			InputName:      "images",
			OutputName:     "output0",
			NumPredictions: 25200,
			Threads:        4,
			Provider:       "cpu",
		},
		Detection: Detection{
			ObjectnessThreshold: yolov5.DefaultThreshold,
			ClassScoreThreshold: yolov5.DefaultThreshold,
			IoUThreshold:        postprocess.DefaultIoUThreshold,
			NMSWorkers:          1,
		},
		Tracking: Tracking{
			MovementThreshold:  tracker.DefaultMovementThreshold,
			StabilityThreshold: tracker.DefaultStabilityThreshold,
		},
		Depth: Depth{
			FocalLength:   narration.DefaultFocalLength,
			DefaultHeight: narration.DefaultObjectHeight,
			KnownHeights:  narration.DefaultKnownHeights(),
		},
		Speech: Speech{
			Mode:      SpeechModeLog,
			QueueSize: 32,
			Timeout:   10 * time.Second,
		},
		Source: Source{
			FrameInterval: 100 * time.Millisecond,
		},
		Server: Server{
			Addr:          ":8080",
			NarrationKeep: 50,
		},
		Log: Log{
			Level: "info",
		},
	}
}

// Load reads a YAML file over Default. Keys absent from the file keep their defaults.
//
// Arguments:
//   - path: The path to the YAML file.
//
// Returns:
//   - Config: The merged, validated configuration.
//   - error: An error if the file cannot be read or parsed, or fails Validate.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, "failed to read config")
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "failed to parse config %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func unitInterval(v float32) bool {
	return v >= 0 && v <= 1
}

// Validate checks every tunable for a usable value.
func (c Config) Validate() error {
	switch {
	case !unitInterval(c.Detection.ObjectnessThreshold):
		return errors.Wrapf(ErrInvalidConfig, "detection.objectness_threshold %v not in [0,1]", c.Detection.ObjectnessThreshold)
	case !unitInterval(c.Detection.ClassScoreThreshold):
		return errors.Wrapf(ErrInvalidConfig, "detection.class_score_threshold %v not in [0,1]", c.Detection.ClassScoreThreshold)
	case !unitInterval(c.Detection.IoUThreshold):
		return errors.Wrapf(ErrInvalidConfig, "detection.iou_threshold %v not in [0,1]", c.Detection.IoUThreshold)
	case c.Detection.NMSWorkers < 0:
		return errors.Wrapf(ErrInvalidConfig, "detection.nms_workers %d is negative", c.Detection.NMSWorkers)
	case !(c.Tracking.MovementThreshold > 0):
		return errors.Wrapf(ErrInvalidConfig, "tracking.movement_threshold %v must be positive", c.Tracking.MovementThreshold)
	case c.Tracking.StabilityThreshold < time.Millisecond:
		return errors.Wrapf(ErrInvalidConfig, "tracking.stability_threshold %v must be at least 1ms (use a unit suffix such as 2s)", c.Tracking.StabilityThreshold)
	case !(c.Depth.FocalLength > 0):
		return errors.Wrapf(ErrInvalidConfig, "depth.focal_length %v must be positive", c.Depth.FocalLength)
	case !(c.Depth.DefaultHeight > 0):
		return errors.Wrapf(ErrInvalidConfig, "depth.default_height %v must be positive", c.Depth.DefaultHeight)
	case c.Model.InputSize <= 0:
		return errors.Wrapf(ErrInvalidConfig, "model.input_size %d must be positive", c.Model.InputSize)
	case c.Model.Path == "":
		return errors.Wrap(ErrInvalidConfig, "model.path is required")
	case c.Model.NumPredictions <= 0:
		return errors.Wrapf(ErrInvalidConfig, "model.num_predictions %d must be positive", c.Model.NumPredictions)
	case c.Speech.QueueSize <= 0:
		return errors.Wrapf(ErrInvalidConfig, "speech.queue_size %d must be positive", c.Speech.QueueSize)
	case c.Source.FrameInterval <= 0:
		return errors.Wrapf(ErrInvalidConfig, "source.frame_interval %v must be positive", c.Source.FrameInterval)
	}

	for label, h := range c.Depth.KnownHeights {
		if !(h > 0) {
			return errors.Wrapf(ErrInvalidConfig, "depth.known_heights[%s] %v must be positive", label, h)
		}
	}

	switch c.Speech.Mode {
	case SpeechModeLog:
	case SpeechModeCommand:
		if c.Speech.Command == "" {
			return errors.Wrap(ErrInvalidConfig, "speech.command is required in command mode")
		}
	case SpeechModeHTTP:
		if c.Speech.URL == "" {
			return errors.Wrap(ErrInvalidConfig, "speech.url is required in http mode")
		}
	default:
		return errors.Wrapf(ErrInvalidConfig, "unknown speech.mode %q", c.Speech.Mode)
	}

	if c.Source.Resolution != "" {
		if _, ok := images.GetResolutionByName(c.Source.Resolution); !ok {
			return errors.Wrapf(ErrInvalidConfig, "unknown source.resolution %q", c.Source.Resolution)
		}
	}

	if len(c.Model.Labels) > 0 && c.Model.LabelsFile != "" {
		return errors.Wrap(ErrInvalidConfig, "model.labels and model.labels_file are mutually exclusive")
	}

	return nil
}

// Vocabulary returns the configured class labels: the inline list, the
// labels file, or the COCO classes when neither is set.
func (c Config) Vocabulary() (models.Vocabulary, error) {
	switch {
	case len(c.Model.Labels) > 0:
		return models.Vocabulary(c.Model.Labels), nil
	case c.Model.LabelsFile != "":
		return models.LoadVocabulary(c.Model.LabelsFile)
	default:
		return models.COCOClasses, nil
	}
}

// Decoder returns the tensor decoder configuration.
func (c Config) Decoder() (yolov5.Config, error) {
	labels, err := c.Vocabulary()
	if err != nil {
		return yolov5.Config{}, err
	}
	return yolov5.Config{
		ObjectnessThreshold: c.Detection.ObjectnessThreshold,
		ClassScoreThreshold: c.Detection.ClassScoreThreshold,
		Labels:              labels,
	}, nil
}

// NMS returns the suppression configuration.
func (c Config) NMS() postprocess.NMSConfig {
	return postprocess.NMSConfig{
		IoUThreshold: c.Detection.IoUThreshold,
		NumWorkers:   c.Detection.NMSWorkers,
	}
}

// Tracker returns the tracker configuration.
func (c Config) Tracker() tracker.Config {
	return tracker.Config{
		MovementThreshold:  c.Tracking.MovementThreshold,
		StabilityThreshold: c.Tracking.StabilityThreshold,
	}
}

// DepthEstimator returns the configured depth estimator.
func (c Config) DepthEstimator() narration.DepthEstimator {
	return narration.DepthEstimator{
		FocalLength:   c.Depth.FocalLength,
		DefaultHeight: c.Depth.DefaultHeight,
		KnownHeights:  c.Depth.KnownHeights,
	}
}
