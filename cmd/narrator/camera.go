package main

import (
	"context"
	"time"

	"github.com/nvr-ai/narrator/images"
	"github.com/nvr-ai/narrator/pipeline"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

// captureFrames reads from a camera index or a video file path and submits
// every frame to the runner. Frames arriving while one is in flight are dropped
// by the runner.
func captureFrames(ctx context.Context, device interface{}, resolution string, runner *pipeline.Runner, logger *zap.Logger) error {
	capture, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return errors.Wrapf(err, "failed to open video capture %v", device)
	}
	defer capture.Close()

	if res, ok := images.GetResolutionByName(resolution); ok {
		capture.Set(gocv.VideoCaptureFrameWidth, float64(res.Size.Width))
		capture.Set(gocv.VideoCaptureFrameHeight, float64(res.Size.Height))
		logger.Info("requested capture resolution", zap.Stringer("resolution", res))
	}

	mat := gocv.NewMat()
	defer mat.Close()

	logger.Info("capturing frames", zap.Any("device", device))

	var (
		id         int
		frameCount int
		dropped    int
		lastTime   = time.Now()
	)
	for ctx.Err() == nil {
		if ok := capture.Read(&mat); !ok {
			return errors.Errorf("cannot read device %v", device)
		}
		if mat.Empty() {
			continue
		}

		img, err := mat.ToImage()
		if err != nil {
			logger.Warn("failed to convert frame", zap.Error(err))
			continue
		}

		id++
		frameCount++
		if !runner.Submit(pipeline.Frame{ID: id, Image: img, Timestamp: time.Now()}) {
			dropped++
		}

		if elapsed := time.Since(lastTime); elapsed >= 10*time.Second {
			logger.Debug("capture rate",
				zap.Float64("fps", float64(frameCount)/elapsed.Seconds()),
				zap.Int("dropped", dropped),
			)
			frameCount, dropped = 0, 0
			lastTime = time.Now()
		}
	}
	return nil
}
