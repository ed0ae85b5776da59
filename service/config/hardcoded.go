package config

import (
	"time"
)

// Config is the full configuration tree. The hardcoded service serves
// Defaults(); the yaml service overlays a file and the environment on top.
type Config struct {
	ShutdownTimeoutS int                 `yaml:"shutdown_timeout_s"`
	Pipeline         Pipeline            `yaml:"pipeline"`
	Video            VideoParameters     `yaml:"video"`
	Inference        InferenceParameters `yaml:"inference"`
	Display          DisplayParameters   `yaml:"display"`
	Emitter          EmitterParameters   `yaml:"emitter"`
	Collector        CollectorParameters `yaml:"collector"`
	Data             DataParameters      `yaml:"data"`
	Publisher        PublisherParameters `yaml:"publisher"`
	Log              LogParameters       `yaml:"log"`
}

func Defaults() Config {
	return Config{
		ShutdownTimeoutS: 5,
		Pipeline: Pipeline{
			EndpointBaseURL:   "http://localhost:8000",
			TickPeriodMs:      100,
			DefaultIntervalMs: 1000,
			StatsPeriodS:      30,
			UploadTimeoutS:    10,
			MaxInFlightTicks:  8,
			JournalFile:       "attributes.log",
			ControlAddr:       "localhost:8001",
		},
		Video: VideoParameters{
			Type:   "webcam",
			Source: "0",
			Width:  720,
			Height: 560,
		},
		Inference: InferenceParameters{
			Type:                "dnn",
			ModelsFolder:        "./assets/models",
			FaceModel:           "res10_300x300_ssd_iter_140000.caffemodel",
			FaceConfig:          "deploy.prototxt",
			AgeModel:            "age_net.onnx",
			GenderModel:         "gender_net.onnx",
			ExpressionModel:     "emotion-ferplus-8.onnx",
			ConfidenceThreshold: 0.5,
		},
		Display: DisplayParameters{
			Type:   "window",
			Title:  "vs-mood",
			Labels: true,
		},
		Emitter: EmitterParameters{
			ClientID: "vs-mood",
			Topic:    "vs-mood/attributes",
		},
		Collector: CollectorParameters{
			ListenAddr:             ":8000",
			UploadsFolder:          "./uploads",
			AllowedOrigin:          "http://localhost:3000",
			DefaultIntervalSeconds: 1,
			MaxUploadBytes:         10 << 20,
		},
		Data: DataParameters{
			Type:   "files",
			Folder: "./settings",
		},
		Publisher: PublisherParameters{
			Topic:            "vs-mood-uploads",
			SecurityProtocol: "PLAINTEXT",
			Acks:             "all",
		},
		Log: LogParameters{
			Level: "info",
		},
	}
}

type hardcodedService struct {
	cfg Config
}

func NewHardCoded() IService {
	return &hardcodedService{cfg: Defaults()}
}

// NewFromConfig serves an already assembled configuration.
func NewFromConfig(cfg Config) IService {
	return &hardcodedService{cfg: cfg}
}

func (svc *hardcodedService) GetModeMaxShutdownTime() int {
	return svc.cfg.ShutdownTimeoutS
}

func (svc *hardcodedService) GetPipeline() Pipeline {
	return svc.cfg.Pipeline
}

func (svc *hardcodedService) GetEndpointBaseURL() string {
	return svc.cfg.Pipeline.EndpointBaseURL
}

func (svc *hardcodedService) GetTickPeriod() time.Duration {
	return time.Duration(svc.cfg.Pipeline.TickPeriodMs) * time.Millisecond
}

func (svc *hardcodedService) GetDefaultInterval() time.Duration {
	return time.Duration(svc.cfg.Pipeline.DefaultIntervalMs) * time.Millisecond
}

func (svc *hardcodedService) GetStatsPeriod() time.Duration {
	return time.Duration(svc.cfg.Pipeline.StatsPeriodS) * time.Second
}

func (svc *hardcodedService) GetUploadTimeout() time.Duration {
	return time.Duration(svc.cfg.Pipeline.UploadTimeoutS) * time.Second
}

func (svc *hardcodedService) GetVideoParameters() VideoParameters {
	return svc.cfg.Video
}

func (svc *hardcodedService) GetInferenceParameters() InferenceParameters {
	return svc.cfg.Inference
}

func (svc *hardcodedService) GetDisplayParameters() DisplayParameters {
	return svc.cfg.Display
}

func (svc *hardcodedService) GetEmitterParameters() EmitterParameters {
	return svc.cfg.Emitter
}

func (svc *hardcodedService) GetCollectorParameters() CollectorParameters {
	return svc.cfg.Collector
}

func (svc *hardcodedService) GetDataParameters() DataParameters {
	return svc.cfg.Data
}

func (svc *hardcodedService) GetPublisherParameters() PublisherParameters {
	return svc.cfg.Publisher
}

func (svc *hardcodedService) GetLogParameters() LogParameters {
	return svc.cfg.Log
}
