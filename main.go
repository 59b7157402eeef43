package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mdobak/go-xerrors"

	"github.com/khaledhikmat/snap-go/mode"
	"github.com/khaledhikmat/snap-go/service/config"
	"github.com/khaledhikmat/snap-go/service/data"
	"github.com/khaledhikmat/snap-go/service/lgr"
)

const (
	// WARNING: this has to be bigger than the mode processor shutdown time
	waitOnShutdown = 8 * time.Second
)

var modeProcessors = map[string]mode.Processor{
	"snap":  mode.Snap,
	"probe": mode.Probe,
}

func main() {
	rootCtx := context.Background()
	canxCtx, canxFn := context.WithCancel(rootCtx)

	// Hook up a signal handler to cancel the context
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		lgr.Logger.Info(
			"received kill signal",
			slog.Any("signal", sig),
		)
		canxFn()
	}()

	// Load env vars if we are in DEV mode
	if os.Getenv("RUN_TIME_ENV") == "dev" || os.Getenv("RUN_TIME_ENV") == "" {
		err := godotenv.Load()
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			lgr.Logger.Error("error loading .env file", slog.Any("error", xerrors.New(err.Error())))
			panic("error loading .env file")
		}
	}

	// Logging is configured from env vars, so only after .env is loaded
	lgr.Configure()

	modeType := "snap"
	args := os.Args[1:]
	if len(args) > 0 {
		modeType = args[0]
	}

	modeProc, ok := modeProcessors[modeType]
	if !ok {
		lgr.Logger.Error("invalid mode", slog.String("mode", modeType))
		panic("invalid mode")
	}

	// Config service
	cfgSvc := config.NewEnv()
	// Data service
	dataSvc := data.NewFilesDB(cfgSvc)

	// Create mode processor result
	modeProcResult := make(chan error, 1)

	// Start the mode processor
	go func() {
		modeProcResult <- modeProc(canxCtx, cfgSvc, dataSvc)
	}()

	exitCode := 0

	// Wait for cancellation or the mode processor
	select {
	case <-canxCtx.Done():
		lgr.Logger.Info(
			"snap context cancelled",
		)

	case err := <-modeProcResult:
		canxFn()
		if err != nil {
			exitCode = 1
			lgr.Logger.Error(
				"snap mode processor exited",
				slog.String("mode", modeType),
				slog.Any("error", xerrors.New(err.Error())),
			)
		}
		os.Exit(exitCode)
	}

	lgr.Logger.Info(
		"snap is waiting for the mode processor to exit",
	)

	// The mode processor releases the capture device on its way out, so
	// give it up to `waitOnShutdown` before giving up on it
	timer := time.NewTimer(waitOnShutdown)

	select {
	case <-timer.C:
		lgr.Logger.Warn(
			"snap shutdown waiting period expired. Exiting now",
			slog.Duration("period", waitOnShutdown),
		)
		exitCode = 1

	case err := <-modeProcResult:
		if err != nil {
			exitCode = 1
			lgr.Logger.Error(
				"snap mode processor exited",
				slog.String("mode", modeType),
				slog.Any("error", xerrors.New(err.Error())),
			)
		}
	}

	timer.Stop()
	os.Exit(exitCode)
}
