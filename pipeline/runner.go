package pipeline

import (
	"context"
	"image"
	"sync/atomic"
	"time"

	"github.com/nvr-ai/narrator/images"
	"github.com/nvr-ai/narrator/metrics"
	"github.com/nvr-ai/narrator/models"
	"github.com/nvr-ai/narrator/util"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorgonia.org/tensor"
)

// Inferencer runs the detection model on one frame.
type Inferencer interface {
	Infer(ctx context.Context, img image.Image) (tensor.Tensor, error)
}

// NarrationSink receives narration text. Enqueue must not block.
type NarrationSink interface {
	Enqueue(text string) bool
}

// DisplaySink receives every processed frame's result.
type DisplaySink interface {
	Display(result FrameResult)
}

// RunnerArgs is the arguments for creating a Runner.
type RunnerArgs struct {
	Pipeline   *Pipeline
	Inferencer Inferencer
	Narrations NarrationSink
	Display    DisplaySink
	Metrics    *metrics.Metrics
	Logger     *zap.Logger
}

// Runner feeds frames through inference and the pipeline with at most one
// frame in flight. A frame submitted while another is in flight is dropped.
type Runner struct {
	pipeline   *Pipeline
	inferencer Inferencer
	narrations NarrationSink
	display    DisplaySink
	metrics    *metrics.Metrics
	logger     *zap.Logger

	frames chan Frame
	busy   atomic.Bool
}

// NewRunner creates a runner. Narrations, Display, Metrics and Logger are optional.
func NewRunner(args RunnerArgs) *Runner {
	r := &Runner{
		pipeline:   args.Pipeline,
		inferencer: args.Inferencer,
		narrations: args.Narrations,
		display:    args.Display,
		metrics:    args.Metrics,
		logger:     args.Logger,
		frames:     make(chan Frame, 1),
	}
	if r.metrics == nil {
		r.metrics = metrics.New()
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	return r
}

// Submit hands a frame to the runner without blocking.
//
// Returns:
//   - bool: False if a frame was already in flight and this one was dropped.
func (r *Runner) Submit(frame Frame) bool {
	if !r.busy.CompareAndSwap(false, true) {
		r.metrics.FramesDropped.Inc()
		return false
	}
	r.frames <- frame
	return true
}

// Run processes submitted frames until ctx is done or inference reports
// that the model is unavailable.
//
// Returns:
//   - error: nil when ctx ends, or the wrapped models.ErrModelUnavailable.
func (r *Runner) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case frame := <-r.frames:
			_, err := r.Process(ctx, frame)
			r.busy.Store(false)
			if errors.Is(err, models.ErrModelUnavailable) {
				r.logger.Error("model unavailable, stopping", zap.Error(err))
				return err
			}
		}
	}
}

// Process runs one frame synchronously and delivers its results to the sinks.
// Failures other than an unavailable model affect this frame only.
func (r *Runner) Process(ctx context.Context, frame Frame) (FrameResult, error) {
	start := time.Now()
	out, err := r.inferencer.Infer(ctx, frame.Image)
	elapsed := time.Since(start)
	if err != nil {
		r.metrics.FrameErrors.WithLabelValues("inference").Inc()
		if !errors.Is(err, models.ErrModelUnavailable) {
			r.logger.Warn("inference failed", zap.Int("frame", frame.ID), zap.Error(err))
		}
		return FrameResult{}, err
	}
	r.metrics.ObserveInference(elapsed)

	b := frame.Image.Bounds()
	size := images.Size{Width: b.Dx(), Height: b.Dy()}

	result, err := r.pipeline.ProcessFrame(out, size, frame.Timestamp)
	if err != nil {
		r.metrics.FrameErrors.WithLabelValues("decode").Inc()
		r.logger.Warn("failed to decode frame", zap.Int("frame", frame.ID), zap.Error(err))
		return FrameResult{}, err
	}
	result.FrameID = frame.ID
	result.InferenceTime = elapsed

	r.metrics.FramesProcessed.Inc()
	r.metrics.TrackedLabels.Set(float64(r.pipeline.Tracker().Len()))
	for _, d := range result.Detections {
		r.metrics.Detections.WithLabelValues(d.Label).Inc()
	}
	for _, e := range result.Narrations {
		r.metrics.Narrations.WithLabelValues(e.Label).Inc()
		if r.narrations != nil && !r.narrations.Enqueue(e.Text) {
			r.metrics.SpeechDropped.Inc()
		}
	}
	if r.display != nil {
		r.display.Display(result)
	}

	r.logger.Debug("frame processed",
		zap.Int("frame", frame.ID),
		zap.Int("detections", len(result.Detections)),
		zap.Int("narrations", len(result.Narrations)),
		zap.Duration("inference", elapsed),
	)
	return result, nil
}

// Replay processes recorded frames synchronously, so none are dropped, with
// timestamps stepping by interval from start. Failed frames are skipped
// unless the model became unavailable, which stops the replay.
//
// Returns:
//   - int: The number of frames handed to the pipeline.
//   - error: ctx.Err() if cancelled, or the wrapped models.ErrModelUnavailable.
func (r *Runner) Replay(ctx context.Context, files []util.ImageFile, interval time.Duration, start time.Time) (int, error) {
	return util.Replay(ctx, files, interval, start, func(id int, img image.Image, ts time.Time) error {
		_, err := r.Process(ctx, Frame{ID: id, Image: img, Timestamp: ts})
		if errors.Is(err, models.ErrModelUnavailable) {
			r.logger.Error("model unavailable, stopping replay", zap.Int("frame", id), zap.Error(err))
			return err
		}
		return nil
	}, r.logger)
}
