package mode

import (
	"context"
	"image"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/xerrors"

	"github.com/khaledhikmat/snap-go/model"
	"github.com/khaledhikmat/snap-go/pipeline"
	"github.com/khaledhikmat/snap-go/service/config"
	"github.com/khaledhikmat/snap-go/service/data"
	"github.com/khaledhikmat/snap-go/service/inference"
	"github.com/khaledhikmat/snap-go/service/lgr"
)

const errorStreamSize = 64

// Snap captures frames until a handler saves a qualifying photo, the
// context is cancelled or the capture device fails.
func Snap(canxCtx context.Context, cfgSvc config.IService, dataSvc data.IService) error {
	runID := uuid.NewString()

	// Create an error stream
	errorStream := make(chan interface{}, errorStreamSize)

	coordinator := pipeline.NewShutdownCoordinator(canxCtx)
	dispatcher := pipeline.NewDispatcher(errorStream)
	persister := pipeline.NewPersister()

	detectors := []inference.IService{}
	defer func() {
		for _, detector := range detectors {
			if err := detector.Close(); err != nil {
				lgr.Logger.Error("failed to close detector",
					slog.String("detector", detector.Name()),
					slog.Any("error", err),
				)
			}
		}
	}()

	handlers := []*pipeline.PersistenceHandler{}
	for _, name := range cfgSvc.GetHandlers() {
		params := cfgSvc.GetHandlerParameters(name)
		detector, err := newDetector(params, cfgSvc.GetCaptureWidth(), cfgSvc.GetCaptureHeight())
		if err != nil {
			procError(dataSvc, model.GenError("snap",
				err,
				map[string]interface{}{"handler": name, "detector": params.Detector},
				"error creating detector for handler: %s",
				name))
			return xerrors.Errorf("handler %s: %w", name, err)
		}
		detectors = append(detectors, detector)

		handler := pipeline.NewPersistenceHandler(name, detector, persister, coordinator, pipeline.HandlerOptions{
			SavePath:            params.SavePath,
			ShouldMarkFaces:     params.ShouldMarkFaces,
			ConfidenceThreshold: params.ConfidenceThreshold,
		})
		handlers = append(handlers, handler)
		dispatcher.Register(handler)
	}

	if len(handlers) == 0 {
		return xerrors.New("no frame handlers configured")
	}

	opener, err := newOpener(cfgSvc)
	if err != nil {
		return err
	}

	source := pipeline.NewCaptureSource(cfgSvc.GetCaptureSource(), opener, dispatcher, coordinator, cfgSvc.GetCaptureMaxReadFailures())
	err = source.Start(coordinator.Context())
	if err != nil {
		procError(dataSvc, model.GenError("snap",
			err,
			map[string]interface{}{"source": source.Name()},
			"error starting capture"))
		return err
	}

	lgr.Logger.Info(
		"snap mode started",
		slog.String("runId", runID),
		slog.String("source", source.Name()),
		slog.Int("handlers", len(handlers)),
	)

	captureResult := make(chan error, 1)
	go func() {
		captureResult <- source.Wait()
	}()

	var runErr error

	// Wait for a stop request, cancellation, capture failure or errors
	for {
		select {
		case <-coordinator.Done():
			if !coordinator.IsStopRequested() {
				lgr.Logger.Info(
					"snap mode context cancelled",
					slog.Any("cause", context.Cause(canxCtx)),
				)
				goto resume
			}

			lgr.Logger.Info(
				"snap mode stop requested",
				slog.String("reason", coordinator.Reason()),
			)
			goto resume

		case err := <-captureResult:
			if err != nil {
				runErr = err
				procError(dataSvc, model.GenError("snap",
					err,
					map[string]interface{}{"source": source.Name()},
					"capture ended with an error"))
			}
			goto resume

		case e := <-errorStream:
			procError(dataSvc, e)
		}
	}

resume:
	// Stop producing frames and release the device first
	err = source.Close()
	if err != nil {
		lgr.Logger.Error("failed to release capture device", slog.Any("error", err))
	}

	dispatcher.Close()
	shutdownPeriod := time.Duration(cfgSvc.GetModeMaxShutdownTime()) * time.Second
	if !dispatcher.Wait(shutdownPeriod) {
		lgr.Logger.Warn(
			"frame handlers still running after the shutdown waiting period",
			slog.Duration("period", shutdownPeriod),
		)
	}

	// Handlers may have reported errors while exiting
	drainErrors(dataSvc, errorStream)

	captureStats := source.Stats()
	captureStats.RunID = runID
	procStats(dataSvc, captureStats)

	for _, handler := range handlers {
		stats := handler.Stats()
		stats.RunID = runID
		procStats(dataSvc, stats)
	}

	dispatcherStats := dispatcher.Stats()
	dispatcherStats.RunID = runID
	procStats(dataSvc, dispatcherStats)

	lgr.Logger.Info(
		"snap mode exited",
		slog.String("runId", runID),
		slog.Int64("frames", captureStats.Frames),
		slog.Bool("stopRequested", coordinator.IsStopRequested()),
	)
	return runErr
}

func drainErrors(dataSvc data.IService, errorStream chan interface{}) {
	for {
		select {
		case e := <-errorStream:
			procError(dataSvc, e)
		default:
			return
		}
	}
}

func newDetector(params config.HandlerParameters, width, height int) (inference.IService, error) {
	switch params.Detector {
	case config.DetectorSSD:
		return inference.NewSSD(params.ConfigPath, params.ModelPath)
	case config.DetectorCascade:
		return inference.NewCascade(params.ModelPath)
	case config.DetectorYolo:
		return inference.NewYolo(params.ModelPath, params.ConfigPath, params.Classes...)
	case config.DetectorFake:
		// One confident region in the middle of every frame
		return inference.NewFake(model.DetectedRegion{
			Rect:       image.Rect(width/4, height/4, width*3/4, height*3/4),
			Confidence: 1,
		}), nil
	default:
		return nil, xerrors.Errorf("unknown detector %q", params.Detector)
	}
}

func newOpener(cfgSvc config.IService) (pipeline.Opener, error) {
	switch cfgSvc.GetCaptureSource() {
	case config.CaptureWebcam:
		return pipeline.WebcamOpener(cfgSvc.GetCaptureDevice(), cfgSvc.GetCaptureWidth(), cfgSvc.GetCaptureHeight(), cfgSvc.GetCaptureFPS()), nil
	case config.CaptureRandom:
		return pipeline.RandomOpener(cfgSvc.GetCaptureWidth(), cfgSvc.GetCaptureHeight(), cfgSvc.GetCaptureFPS()), nil
	default:
		return nil, xerrors.Errorf("unknown capture source %q", cfgSvc.GetCaptureSource())
	}
}
