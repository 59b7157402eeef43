package mode

import (
	"context"
	"log/slog"

	"github.com/khaledhikmat/snap-go/model"
	"github.com/khaledhikmat/snap-go/service/config"
	"github.com/khaledhikmat/snap-go/service/data"
	"github.com/khaledhikmat/snap-go/service/lgr"
)

type Processor func(canxCtx context.Context,
	cfgSvc config.IService,
	dataSvc data.IService) error

func procStats(datasvc data.IService, stats interface{}) {
	switch stats := stats.(type) {
	case model.CaptureStats:
		procCaptureStats(datasvc, stats)
	case model.HandlerStats:
		procHandlerStats(datasvc, stats)
	case model.DispatcherStats:
		procDispatcherStats(datasvc, stats)
	default:
		lgr.Logger.Error(
			"unknown stats type",
			slog.Any("stats", stats),
		)
	}
}

func procCaptureStats(datasvc data.IService, stats model.CaptureStats) {
	err := datasvc.NewCaptureStats(stats)
	if err != nil {
		lgr.Logger.Error(
			"failed to store capture stats",
			slog.Any("stats", stats),
			slog.Any("error", err),
		)
	}
}

func procHandlerStats(datasvc data.IService, stats model.HandlerStats) {
	err := datasvc.NewHandlerStats(stats)
	if err != nil {
		lgr.Logger.Error(
			"failed to store handler stats",
			slog.Any("stats", stats),
			slog.Any("error", err),
		)
	}
}

func procDispatcherStats(datasvc data.IService, stats model.DispatcherStats) {
	err := datasvc.NewDispatcherStats(stats)
	if err != nil {
		lgr.Logger.Error(
			"failed to store dispatcher stats",
			slog.Any("stats", stats),
			slog.Any("error", err),
		)
	}
}

func procError(datasvc data.IService, e interface{}) {
	err := datasvc.NewError(e)
	if err != nil {
		lgr.Logger.Error(
			"failed to store error",
			slog.Any("error", err),
		)
	}
}
