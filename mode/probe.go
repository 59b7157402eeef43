package mode

import (
	"context"
	"log/slog"

	"gocv.io/x/gocv"

	"github.com/khaledhikmat/snap-go/model"
	"github.com/khaledhikmat/snap-go/service/config"
	"github.com/khaledhikmat/snap-go/service/data"
	"github.com/khaledhikmat/snap-go/service/lgr"
)

// Probe opens the configured capture source, reads a single frame and
// reports what the device actually delivers. No detection runs.
func Probe(canxCtx context.Context, cfgSvc config.IService, dataSvc data.IService) error {
	opener, err := newOpener(cfgSvc)
	if err != nil {
		return err
	}

	reader, err := opener()
	if err != nil {
		procError(dataSvc, model.GenError("probe",
			err,
			map[string]interface{}{"source": cfgSvc.GetCaptureSource(), "device": cfgSvc.GetCaptureDevice()},
			"error opening capture source"))
		return err
	}
	defer reader.Close()

	if webcam, ok := reader.(*gocv.VideoCapture); ok {
		lgr.Logger.Info(
			"capture device negotiated",
			slog.Int("device", cfgSvc.GetCaptureDevice()),
			slog.Float64("width", webcam.Get(gocv.VideoCaptureFrameWidth)),
			slog.Float64("height", webcam.Get(gocv.VideoCaptureFrameHeight)),
			slog.Float64("fps", webcam.Get(gocv.VideoCaptureFPS)),
		)
	}

	img := gocv.NewMat()
	defer img.Close() // Crucial to close the image to avoid memory leaks

	stats := model.CaptureStats{Name: cfgSvc.GetCaptureSource()}
	if ok := reader.Read(&img); !ok || img.Empty() {
		stats.Errors++
		lgr.Logger.Warn("capture source did not produce a frame", slog.String("source", stats.Name))
	} else {
		stats.Frames++
		lgr.Logger.Info(
			"capture source probed",
			slog.String("source", stats.Name),
			slog.Int("width", img.Cols()),
			slog.Int("height", img.Rows()),
			slog.Int("channels", img.Channels()),
		)
	}

	procStats(dataSvc, stats)
	return canxCtx.Err()
}
