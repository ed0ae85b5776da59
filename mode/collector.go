package mode

import (
	"context"
	"log/slog"
	"time"

	"github.com/khaledhikmat/vs-mood/pipeline"
	"github.com/khaledhikmat/vs-mood/server"
	"github.com/khaledhikmat/vs-mood/service/lgr"
)

// Collector serves the upload endpoints until cancelled.
func Collector(canxCtx context.Context, svcs pipeline.ServicesFactory) error {
	errorStream := make(chan interface{}, 64)

	srv, err := server.New(svcs.CfgSvc, svcs.DataSvc, svcs.PublisherSvc, errorStream)
	if err != nil {
		return err
	}

	shutdown := time.Duration(svcs.CfgSvc.GetModeMaxShutdownTime()) * time.Second
	serveResult := make(chan error, 1)
	go func() {
		serveResult <- srv.ListenAndServe(canxCtx, shutdown)
	}()

	statsPeriod := svcs.CfgSvc.GetStatsPeriod()
	if statsPeriod <= 0 {
		statsPeriod = time.Minute
	}
	ticker := time.NewTicker(statsPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-canxCtx.Done():
			lgr.Logger.Info(
				"collector context cancelled",
			)
			goto resume

		case err := <-serveResult:
			if err != nil {
				lgr.Logger.Error("collector server failed", slog.Any("error", err))
			}
			procCollectorStats(svcs, srv)
			return err

		case <-ticker.C:
			procCollectorStats(svcs, srv)

		case e := <-errorStream:
			procError(svcs.DataSvc, e)
		}
	}

resume:
	timer := time.NewTimer(shutdown)
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			lgr.Logger.Info(
				"collector shutdown waiting period expired. Exiting now",
				slog.Duration("period", shutdown),
			)
			return nil

		case err := <-serveResult:
			procCollectorStats(svcs, srv)
			return err

		case e := <-errorStream:
			procError(svcs.DataSvc, e)
		}
	}
}

func procCollectorStats(svcs pipeline.ServicesFactory, srv *server.Server) {
	stats := srv.Stats()
	stats.Timestamp = time.Now().Unix()
	procStats(svcs.DataSvc, stats)
}
