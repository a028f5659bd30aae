package util

import (
	"context"
	"image"
	"time"

	"go.uber.org/zap"
)

// ReplayFunc receives one decoded frame. Timestamps advance by the replay
// interval from the start time regardless of wall-clock pacing. A non-nil
// error stops the replay.
type ReplayFunc func(id int, img image.Image, ts time.Time) error

// Replay decodes files in order and hands them to fn every interval until
// the files run out, ctx is done or fn fails. Frames that fail to decode are
// logged and skipped.
//
// Arguments:
//   - ctx: Cancels the replay.
//   - files: The frames, as returned by LoadDirectoryImageFiles.
//   - interval: The pacing and timestamp step; zero replays as fast as possible
//     with one-second timestamp steps.
//   - start: The timestamp of the first frame.
//   - fn: The frame consumer.
//   - logger: The logger; nil disables logging.
//
// Returns:
//   - int: The number of frames delivered.
//   - error: ctx.Err() if the replay was cancelled, or the error returned by fn.
func Replay(ctx context.Context, files []ImageFile, interval time.Duration, start time.Time, fn ReplayFunc, logger *zap.Logger) (int, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	step := interval
	if step <= 0 {
		step = time.Second
	}

	var ticker *time.Ticker
	if interval > 0 {
		ticker = time.NewTicker(interval)
		defer ticker.Stop()
	}

	delivered := 0
	for i, f := range files {
		if i > 0 && ticker != nil {
			select {
			case <-ctx.Done():
				return delivered, ctx.Err()
			case <-ticker.C:
			}
		} else if err := ctx.Err(); err != nil {
			return delivered, err
		}

		img, err := f.Decode()
		if err != nil {
			logger.Warn("skipping replay frame", zap.String("path", f.Path), zap.Error(err))
			continue
		}
		if err := fn(f.Frame, img, start.Add(time.Duration(i)*step)); err != nil {
			return delivered, err
		}
		delivered++
	}
	return delivered, nil
}
