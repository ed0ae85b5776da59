package mode

import (
	"context"
	"log/slog"

	"github.com/khaledhikmat/vs-mood/model"
	"github.com/khaledhikmat/vs-mood/pipeline"
	"github.com/khaledhikmat/vs-mood/service/data"
	"github.com/khaledhikmat/vs-mood/service/lgr"
)

type Processor func(canxCtx context.Context, svcs pipeline.ServicesFactory) error

func procStats(datasvc data.IService, stats interface{}) {
	var err error
	switch stats := stats.(type) {
	case model.SamplerStats:
		err = datasvc.NewSamplerStats(stats)
	case model.UploaderStats:
		err = datasvc.NewUploaderStats(stats)
	case model.CollectorStats:
		err = datasvc.NewCollectorStats(stats)
	default:
		lgr.Logger.Error(
			"unknown stats type",
			slog.Any("stats", stats),
		)
		return
	}

	if err != nil {
		lgr.Logger.Error(
			"failed to store stats",
			slog.Any("stats", stats),
			slog.Any("error", err),
		)
	}
}

func procError(datasvc data.IService, err interface{}) {
	errTemp := datasvc.NewError(err)
	if errTemp != nil {
		lgr.Logger.Error(
			"failed to store error",
			slog.Any("error", errTemp),
		)
	}
}
