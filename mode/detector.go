package mode

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/khaledhikmat/vs-mood/control"
	"github.com/khaledhikmat/vs-mood/model"
	"github.com/khaledhikmat/vs-mood/pipeline"
	"github.com/khaledhikmat/vs-mood/service/lgr"
	"golang.org/x/xerrors"
)

// teardownMargin covers closing the services once the pipeline stopped
// waiting for uploads.
const teardownMargin = 3 * time.Second

// Detector runs the sampling pipeline until cancelled. Only a model load
// failure ends it early; without media the process stays up but idle.
func Detector(canxCtx context.Context, svcs pipeline.ServicesFactory) error {
	errorStream := make(chan interface{}, 64)
	statsStream := make(chan interface{}, 64)

	controller := pipeline.NewController(svcs, pipeline.ControllerOptions{
		ErrorStream: errorStream,
		StatsStream: statsStream,
	})

	view := NewConsoleView(os.Stdout)
	go view.Run(canxCtx, controller.Attributes())

	runResult := make(chan error, 1)
	go func() {
		runResult <- controller.Run(canxCtx)
	}()

	if addr := svcs.CfgSvc.GetPipeline().ControlAddr; addr != "" {
		ctl := control.New(addr, controller)
		go func() {
			if err := ctl.ListenAndServe(canxCtx, time.Second); err != nil {
				lgr.Logger.Error("detector controls stopped", slog.Any("error", err))
				select {
				case errorStream <- model.GenError("detector", err, map[string]interface{}{
					"addr": addr,
				}, "error serving detector controls"):
				default:
				}
			}
		}()
	}

	lgr.Logger.Info("detector started",
		slog.String("session", controller.Session()),
	)

	// Wait for cancellation, pipeline exit, stats or errors
	for {
		select {
		case <-canxCtx.Done():
			lgr.Logger.Info(
				"detector context cancelled",
			)
			goto resume

		case err := <-runResult:
			runResult = nil
			if err == nil {
				continue
			}
			if xerrors.Is(err, model.ErrModelLoad) {
				lgr.Logger.Error("detector cannot start without models",
					slog.Any("error", err),
				)
				return err
			}
			procError(svcs.DataSvc, model.GenError("detector",
				err,
				map[string]interface{}{
					"state": controller.State().String(),
				},
				"pipeline stopped"))
			lgr.Logger.Error("pipeline is not detecting, waiting for shutdown",
				slog.String("state", controller.State().String()),
				slog.Any("error", err),
			)

		case s := <-statsStream:
			procStats(svcs.DataSvc, s)

		case e := <-errorStream:
			procError(svcs.DataSvc, e)
		}
	}

	// Keep draining while the pipeline tears down
resume:
	if runResult == nil {
		drain(svcs, statsStream, errorStream)
		return nil
	}

	lgr.Logger.Info(
		"detector is waiting for the pipeline to exit",
	)

	period := pipeline.UploadDrainTimeout(svcs.CfgSvc) + teardownMargin
	timer := time.NewTimer(period)
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			lgr.Logger.Info(
				"detector shutdown waiting period expired. Exiting now",
				slog.Duration("period", period),
			)
			return nil

		case err := <-runResult:
			runResult = nil
			if err != nil {
				lgr.Logger.Warn("pipeline exited with error", slog.Any("error", err))
			}
			drain(svcs, statsStream, errorStream)
			return nil

		case s := <-statsStream:
			procStats(svcs.DataSvc, s)

		case e := <-errorStream:
			procError(svcs.DataSvc, e)
		}
	}
}

// drain persists whatever is still buffered without blocking.
func drain(svcs pipeline.ServicesFactory, statsStream, errorStream chan interface{}) {
	for {
		select {
		case s := <-statsStream:
			procStats(svcs.DataSvc, s)
		case e := <-errorStream:
			procError(svcs.DataSvc, e)
		default:
			return
		}
	}
}
