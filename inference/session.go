// Package inference - ONNX Runtime session producing detection output tensors.
package inference

import (
	"context"
	"image"
	"os"
	"sync"

	"github.com/nvr-ai/narrator/images"
	"github.com/nvr-ai/narrator/models"
	"github.com/nvr-ai/narrator/models/yolov5"
	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"
	"gorgonia.org/tensor"
)

// ErrModelUnavailable is returned when the session cannot be created or has
// been closed.
var ErrModelUnavailable = models.ErrModelUnavailable

// Config configures a detection session.
type Config struct {
	// ModelPath is the .onnx file.
	ModelPath string `json:"modelPath" yaml:"model_path"`
	// LibraryPath is the onnxruntime shared library; empty uses DefaultLibraryPath.
	LibraryPath string `json:"libraryPath" yaml:"library_path"`
	// InputName and OutputName are the graph tensor names.
	InputName  string `json:"inputName" yaml:"input_name"`
	OutputName string `json:"outputName" yaml:"output_name"`
	// Layout is the input size and output shape of the model.
	Layout models.Layout `json:"layout" yaml:"layout"`
	// Threads is the intra-op thread count; 0 lets ORT decide.
	Threads int `json:"threads" yaml:"threads"`
	// Provider selects the execution provider.
	Provider Provider `json:"provider" yaml:"provider"`
	// DeviceID selects the GPU for the CUDA provider.
	DeviceID int `json:"deviceId" yaml:"device_id"`
	// PixelCoordinates is set for exports that emit boxes in input pixels
	// instead of normalized [0, 1] values.
	PixelCoordinates bool `json:"pixelCoordinates" yaml:"pixel_coordinates"`
}

// Session runs the detection model. Infer calls are serialized.
type Session struct {
	mu      sync.Mutex
	config  Config
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
	logger  *zap.Logger
}

// NewSession loads the model and allocates its input and output tensors.
//
// Arguments:
//   - cfg: The session configuration.
//   - logger: The logger; nil disables logging.
//
// Returns:
//   - *Session: The ready session.
//   - error: An error wrapping ErrModelUnavailable if the runtime or model cannot be loaded.
func NewSession(cfg Config, logger *zap.Logger) (*Session, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Layout.InputSize <= 0 || cfg.Layout.NumPredictions <= 0 || cfg.Layout.NumClasses <= 0 {
		return nil, errors.Wrapf(ErrModelUnavailable, "invalid model layout %+v", cfg.Layout)
	}

	libPath := cfg.LibraryPath
	if libPath == "" {
		libPath = DefaultLibraryPath()
	}
	if _, err := os.Stat(libPath); err != nil {
		return nil, errors.Wrapf(ErrModelUnavailable, "onnxruntime library not found at %s: %v", libPath, err)
	}
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, errors.Wrapf(ErrModelUnavailable, "model not found at %s: %v", cfg.ModelPath, err)
	}

	if !ort.IsInitialized() {
		ort.SetSharedLibraryPath(libPath)
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, errors.Wrapf(ErrModelUnavailable, "error initializing ORT environment: %v", err)
		}
	}

	input, err := ort.NewEmptyTensor[float32](ort.NewShape(cfg.Layout.InputShape()...))
	if err != nil {
		return nil, errors.Wrapf(ErrModelUnavailable, "error creating input tensor: %v", err)
	}
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(cfg.Layout.OutputShape()...))
	if err != nil {
		input.Destroy()
		return nil, errors.Wrapf(ErrModelUnavailable, "error creating output tensor: %v", err)
	}

	options, err := sessionOptions(cfg)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, errors.Wrap(ErrModelUnavailable, err.Error())
	}
	defer options.Destroy()

	session, err := ort.NewAdvancedSession(
		cfg.ModelPath,
		[]string{cfg.InputName},
		[]string{cfg.OutputName},
		[]ort.ArbitraryTensor{input},
		[]ort.ArbitraryTensor{output},
		options,
	)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, errors.Wrapf(ErrModelUnavailable, "error creating ORT session: %v", err)
	}

	logger.Info("model loaded",
		zap.String("model", cfg.ModelPath),
		zap.String("provider", string(cfg.Provider)),
		zap.Int("inputSize", cfg.Layout.InputSize),
		zap.Int64s("outputShape", cfg.Layout.OutputShape()),
	)

	return &Session{
		config:  cfg,
		session: session,
		input:   input,
		output:  output,
		logger:  logger,
	}, nil
}

// Infer runs the model on img and returns a copy of the [1, N, 5+K] output
// with normalized box coordinates.
func (s *Session) Infer(ctx context.Context, img image.Image) (tensor.Tensor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return nil, errors.Wrap(ErrModelUnavailable, "session closed")
	}

	if err := images.PrepareInput(img, s.config.Layout.InputSize, images.ChannelOrderCHW, s.input.GetData()); err != nil {
		return nil, errors.Wrap(err, "failed to prepare input")
	}
	if err := s.session.Run(); err != nil {
		return nil, errors.Wrap(err, "failed to run inference")
	}

	numCols := 5 + s.config.Layout.NumClasses
	rows := append([]float32(nil), s.output.GetData()...)
	if s.config.PixelCoordinates {
		yolov5.NormalizeRows(rows, numCols, s.config.Layout.InputSize)
	}

	return tensor.New(
		tensor.WithShape(1, s.config.Layout.NumPredictions, numCols),
		tensor.WithBacking(rows),
	), nil
}

// Close releases the session and its tensors. Later Infer calls fail with
// ErrModelUnavailable.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	if s.session != nil {
		firstErr = s.session.Destroy()
		s.session = nil
	}
	if s.input != nil {
		if err := s.input.Destroy(); err != nil && firstErr == nil {
			firstErr = err
		}
		s.input = nil
	}
	if s.output != nil {
		if err := s.output.Destroy(); err != nil && firstErr == nil {
			firstErr = err
		}
		s.output = nil
	}
	return firstErr
}
