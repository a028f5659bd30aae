// Command narrator watches a camera or a recorded frame directory, detects
// objects, and narrates the ones that stay still.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/nvr-ai/narrator/config"
	"github.com/nvr-ai/narrator/inference"
	"github.com/nvr-ai/narrator/logger"
	"github.com/nvr-ai/narrator/metrics"
	"github.com/nvr-ai/narrator/models"
	"github.com/nvr-ai/narrator/narration"
	"github.com/nvr-ai/narrator/pipeline"
	"github.com/nvr-ai/narrator/server"
	"github.com/nvr-ai/narrator/speech"
	"github.com/nvr-ai/narrator/tracker"
	"github.com/nvr-ai/narrator/util"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	var (
		configPath string
		camera     string
		replayDir  string
		logLevel   string
	)
	flag.StringVar(&configPath, "config", "", "Path to YAML configuration (defaults are used when empty)")
	flag.StringVar(&camera, "camera", "", "Camera index or video file; overrides source.camera")
	flag.StringVar(&replayDir, "replay", "", "Directory of frame-N.jpg/png files to replay instead of a camera")
	flag.StringVar(&logLevel, "log-level", "", "Log level; overrides log.level")
	flag.Parse()

	if err := run(configPath, camera, replayDir, logLevel); err != nil {
		fmt.Fprintf(os.Stderr, "narrator: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, camera, replayDir, logLevel string) error {
	cfg := config.Default()
	if configPath != "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return err
		}
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if replayDir != "" {
		cfg.Source.ReplayDir = replayDir
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	decoder, err := cfg.Decoder()
	if err != nil {
		return errors.Wrap(err, "failed to load labels")
	}

	session, err := inference.NewSession(inference.Config{
		ModelPath:   cfg.Model.Path,
		LibraryPath: cfg.Model.LibraryPath,
		InputName:   cfg.Model.InputName,
		OutputName:  cfg.Model.OutputName,
		Layout: models.Layout{
			InputSize:      cfg.Model.InputSize,
			NumPredictions: cfg.Model.NumPredictions,
			NumClasses:     decoder.Labels.Len(),
		},
		Threads:          cfg.Model.Threads,
		Provider:         inference.Provider(cfg.Model.Provider),
		DeviceID:         cfg.Model.DeviceID,
		PixelCoordinates: cfg.Model.PixelCoordinates,
	}, log)
	if err != nil {
		return err
	}
	defer session.Close()

	speaker, err := speech.NewSpeaker(cfg.Speech, log)
	if err != nil {
		return err
	}
	queue := speech.NewQueue(speaker, cfg.Speech.QueueSize, log)

	m := metrics.New()
	display := server.New(m, cfg.Server.NarrationKeep, log)

	tr := tracker.New(cfg.Tracker(), narration.NewNarrator(cfg.DepthEstimator()), log)
	runner := pipeline.NewRunner(pipeline.RunnerArgs{
		Pipeline:   pipeline.New(decoder, cfg.NMS(), tr),
		Inferencer: session,
		Narrations: queue,
		Display:    display,
		Metrics:    m,
		Logger:     log,
	})

	g, gctx := errgroup.WithContext(ctx)

	queue.Start(gctx)
	defer queue.Close()

	go m.StartProcessMonitor(gctx, 5*time.Second, log)

	g.Go(func() error { return display.ListenAndServe(gctx, cfg.Server.Addr) })
	g.Go(func() error { return runner.Run(gctx) })
	g.Go(func() error {
		if cfg.Source.ReplayDir != "" {
			return replay(gctx, cfg.Source.ReplayDir, cfg.Source.FrameInterval, runner, log)
		}
		var device interface{} = cfg.Source.Camera
		if camera != "" {
			if idx, err := strconv.Atoi(camera); err == nil {
				device = idx
			} else {
				device = camera
			}
		}
		return captureFrames(gctx, device, cfg.Source.Resolution, runner, log)
	})

	log.Info("narrator started",
		zap.String("model", cfg.Model.Path),
		zap.String("speech", cfg.Speech.Mode),
		zap.String("addr", cfg.Server.Addr),
	)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("narrator stopped")
	return nil
}

// replay feeds a recorded directory through the runner with synthetic
// timestamps so stability timing matches the recording, not processing speed.
// Each frame is processed synchronously so none are dropped; an unavailable
// model ends the replay and the process.
func replay(ctx context.Context, dir string, interval time.Duration, runner *pipeline.Runner, log *zap.Logger) error {
	files, err := util.LoadDirectoryImageFiles(dir)
	if err != nil {
		return err
	}
	log.Info("replaying frames", zap.String("dir", dir), zap.Int("frames", len(files)))

	n, err := runner.Replay(ctx, files, interval, time.Now())
	log.Info("replay finished", zap.Int("frames", n))
	if err != nil {
		return err
	}
	<-ctx.Done()
	return nil
}
