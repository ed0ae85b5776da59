package cmd

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/khaledhikmat/vs-mood/pipeline"
	"github.com/khaledhikmat/vs-mood/service/collector"
	"github.com/khaledhikmat/vs-mood/service/config"
	"github.com/khaledhikmat/vs-mood/service/cv"
	"github.com/khaledhikmat/vs-mood/service/data"
	"github.com/khaledhikmat/vs-mood/service/display"
	"github.com/khaledhikmat/vs-mood/service/emitter"
	"github.com/khaledhikmat/vs-mood/service/inference"
	"github.com/khaledhikmat/vs-mood/service/publisher"
	"github.com/khaledhikmat/vs-mood/service/publisher/kafka"
	"github.com/khaledhikmat/vs-mood/service/video"
)

// detectorServices builds the collaborators named by the configuration. The
// caller closes the emitter and the data service.
func detectorServices(ctx context.Context, cfgSvc config.IService) (pipeline.ServicesFactory, error) {
	svcs := pipeline.ServicesFactory{
		CfgSvc:       cfgSvc,
		CollectorSvc: collector.NewHTTP(cfgSvc.GetEndpointBaseURL(), cfgSvc.GetUploadTimeout()),
	}

	videoParams := cfgSvc.GetVideoParameters()
	switch videoParams.Type {
	case "webcam", "file":
		svcs.VideoSvc = cv.NewWebcam(videoParams)
	case "fake":
		svcs.VideoSvc = video.NewFake(videoParams.Width, videoParams.Height)
	default:
		return svcs, fmt.Errorf("unknown video type %q", videoParams.Type)
	}

	inferenceParams := cfgSvc.GetInferenceParameters()
	switch inferenceParams.Type {
	case "dnn":
		svcs.InferenceSvc = cv.NewDNN(inferenceParams)
	case "fake":
		svcs.InferenceSvc = inference.NewFake()
	default:
		return svcs, fmt.Errorf("unknown inference type %q", inferenceParams.Type)
	}

	displayParams := cfgSvc.GetDisplayParameters()
	switch displayParams.Type {
	case "window":
		svcs.DisplaySvc = cv.NewWindow(displayParams)
	case "canvas", "none":
		svcs.DisplaySvc = display.NewCanvas(displayParams.Labels)
	default:
		return svcs, fmt.Errorf("unknown display type %q", displayParams.Type)
	}

	svcs.EmitterSvc = emitter.NewNoop()
	if emitterParams := cfgSvc.GetEmitterParameters(); emitterParams.Broker != "" {
		em, err := emitter.NewMQTT(ctx, emitterParams, uuid.NewString())
		if err != nil {
			return svcs, err
		}
		svcs.EmitterSvc = em
	}

	dataSvc, err := data.New(ctx, cfgSvc)
	if err != nil {
		return svcs, err
	}
	svcs.DataSvc = dataSvc
	return svcs, nil
}

func collectorServices(ctx context.Context, cfgSvc config.IService) (pipeline.ServicesFactory, error) {
	svcs := pipeline.ServicesFactory{CfgSvc: cfgSvc}

	dataSvc, err := data.New(ctx, cfgSvc)
	if err != nil {
		return svcs, err
	}
	svcs.DataSvc = dataSvc

	svcs.PublisherSvc = publisher.NewNoop()
	if pubParams := cfgSvc.GetPublisherParameters(); pubParams.BootstrapServers != "" {
		pub, err := kafka.New(pubParams)
		if err != nil {
			dataSvc.Close()
			return svcs, err
		}
		svcs.PublisherSvc = pub
	}
	return svcs, nil
}
