package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nvr-ai/narrator/models"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, float32(0.4), cfg.Detection.ObjectnessThreshold)
	assert.Equal(t, float32(0.4), cfg.Detection.ClassScoreThreshold)
	assert.Equal(t, float32(0.5), cfg.Detection.IoUThreshold)
	assert.Equal(t, float32(50), cfg.Tracking.MovementThreshold)
	assert.Equal(t, 2*time.Second, cfg.Tracking.StabilityThreshold)
	assert.Equal(t, float32(1000), cfg.Depth.FocalLength)
	assert.Equal(t, float32(1.7), cfg.Depth.KnownHeights["person"])
	assert.Equal(t, 640, cfg.Model.InputSize)

	labels, err := cfg.Vocabulary()
	require.NoError(t, err)
	assert.Equal(t, models.COCOClasses, labels)
}

func TestLoad(t *testing.T) {
	path := writeFile(t, "narrator.yaml", `
model:
  path: /models/yolov5n.onnx
  input_size: 320
  labels: [person, car]
detection:
  objectness_threshold: 0.3
  nms_workers: 4
tracking:
  stability_threshold: 1500ms
depth:
  known_heights:
    dog: 0.6
speech:
  mode: http
  url: http://localhost:5002/api/tts
source:
  resolution: 720p
log:
  level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/models/yolov5n.onnx", cfg.Model.Path)
	assert.Equal(t, 320, cfg.Model.InputSize)
	assert.Equal(t, "images", cfg.Model.InputName, "absent keys keep defaults")
	assert.Equal(t, float32(0.3), cfg.Detection.ObjectnessThreshold)
	assert.Equal(t, float32(0.4), cfg.Detection.ClassScoreThreshold)
	assert.Equal(t, 1500*time.Millisecond, cfg.Tracking.StabilityThreshold)
	assert.Equal(t, float32(0.6), cfg.Depth.KnownHeights["dog"])
	assert.Equal(t, float32(1.7), cfg.Depth.KnownHeights["person"], "known heights merge over defaults")
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "720p", cfg.Source.Resolution)

	dec, err := cfg.Decoder()
	require.NoError(t, err)
	assert.Equal(t, models.Vocabulary{"person", "car"}, dec.Labels)
	assert.Equal(t, float32(0.3), dec.ObjectnessThreshold)

	nms := cfg.NMS()
	assert.Equal(t, 4, nms.NumWorkers)
	assert.Equal(t, float32(0.5), nms.IoUThreshold)

	assert.Equal(t, 1500*time.Millisecond, cfg.Tracker().StabilityThreshold)
	assert.Equal(t, float32(1000), cfg.DepthEstimator().FocalLength)
}

func TestLoad_LabelsFile(t *testing.T) {
	labels := writeFile(t, "labels.txt", "cat\ndog\n")
	path := writeFile(t, "narrator.yaml", "model:\n  labels_file: "+labels+"\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	v, err := cfg.Vocabulary()
	require.NoError(t, err)
	assert.Equal(t, models.Vocabulary{"cat", "dog"}, v)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "bad.yaml", "detection: [not, a, map]"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "range.yaml", "detection:\n  iou_threshold: 1.5\n"))
	assert.True(t, errors.Is(err, ErrInvalidConfig))

	_, err = Load(writeFile(t, "unitless.yaml", "tracking:\n  stability_threshold: 2000\n"))
	assert.True(t, errors.Is(err, ErrInvalidConfig))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{name: "negative objectness", mutate: func(c *Config) { c.Detection.ObjectnessThreshold = -0.1 }},
		{name: "class score above one", mutate: func(c *Config) { c.Detection.ClassScoreThreshold = 1.1 }},
		{name: "negative workers", mutate: func(c *Config) { c.Detection.NMSWorkers = -1 }},
		{name: "zero movement", mutate: func(c *Config) { c.Tracking.MovementThreshold = 0 }},
		{name: "zero stability", mutate: func(c *Config) { c.Tracking.StabilityThreshold = 0 }},
		{name: "sub-millisecond stability", mutate: func(c *Config) { c.Tracking.StabilityThreshold = 2000 }},
		{name: "zero focal length", mutate: func(c *Config) { c.Depth.FocalLength = 0 }},
		{name: "zero default height", mutate: func(c *Config) { c.Depth.DefaultHeight = 0 }},
		{name: "negative known height", mutate: func(c *Config) { c.Depth.KnownHeights = map[string]float32{"cat": -1} }},
		{name: "zero input size", mutate: func(c *Config) { c.Model.InputSize = 0 }},
		{name: "empty model path", mutate: func(c *Config) { c.Model.Path = "" }},
		{name: "zero predictions", mutate: func(c *Config) { c.Model.NumPredictions = 0 }},
		{name: "zero queue", mutate: func(c *Config) { c.Speech.QueueSize = 0 }},
		{name: "unknown resolution", mutate: func(c *Config) { c.Source.Resolution = "8k" }},
		{name: "zero frame interval", mutate: func(c *Config) { c.Source.FrameInterval = 0 }},
		{name: "unknown speech mode", mutate: func(c *Config) { c.Speech.Mode = "telepathy" }},
		{name: "command mode without command", mutate: func(c *Config) { c.Speech.Mode = SpeechModeCommand }},
		{name: "http mode without url", mutate: func(c *Config) { c.Speech.Mode = SpeechModeHTTP }},
		{name: "both label sources", mutate: func(c *Config) {
			c.Model.Labels = []string{"a"}
			c.Model.LabelsFile = "labels.txt"
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidConfig))
		})
	}
}
