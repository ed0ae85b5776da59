package config

import "time"

// Pipeline holds the options recognised by the detection core.
type Pipeline struct {
	EndpointBaseURL   string `yaml:"endpoint_base_url"`
	TickPeriodMs      int    `yaml:"tick_period_ms"`
	DefaultIntervalMs int    `yaml:"default_interval_ms"`
	StatsPeriodS      int    `yaml:"stats_period_s"`
	UploadTimeoutS    int    `yaml:"upload_timeout_s"`
	MaxInFlightTicks  int    `yaml:"max_inflight_ticks"` // 0 means unbounded
	JournalFile       string `yaml:"journal_file"`
	ControlAddr       string `yaml:"control_addr"` // empty disables the detector controls
}

type VideoParameters struct {
	Type   string `yaml:"type"`   // webcam, fake
	Source string `yaml:"source"` // device id or file path
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
}

type InferenceParameters struct {
	Type                string  `yaml:"type"` // dnn, fake
	ModelsFolder        string  `yaml:"models_folder"`
	FaceModel           string  `yaml:"face_model"`
	FaceConfig          string  `yaml:"face_config"`
	AgeModel            string  `yaml:"age_model"`
	GenderModel         string  `yaml:"gender_model"`
	ExpressionModel     string  `yaml:"expression_model"`
	ConfidenceThreshold float32 `yaml:"confidence_threshold"`
}

type DisplayParameters struct {
	Type   string `yaml:"type"` // window, canvas, none
	Title  string `yaml:"title"`
	Labels bool   `yaml:"labels"`
}

type EmitterParameters struct {
	Broker   string `yaml:"broker"` // empty disables the mqtt emitter
	ClientID string `yaml:"client_id"`
	Topic    string `yaml:"topic"`
	QoS      byte   `yaml:"qos"`
}

type CollectorParameters struct {
	ListenAddr             string  `yaml:"listen_addr"`
	UploadsFolder          string  `yaml:"uploads_folder"`
	AllowedOrigin          string  `yaml:"allowed_origin"`
	DefaultIntervalSeconds float64 `yaml:"default_interval_s"`
	MaxUploadBytes         int64   `yaml:"max_upload_bytes"`
}

type DataParameters struct {
	Type        string `yaml:"type"` // files, postgres
	Folder      string `yaml:"folder"`
	PostgresURL string `yaml:"postgres_url"`
}

type PublisherParameters struct {
	BootstrapServers string `yaml:"bootstrap_servers"` // empty disables the kafka publisher
	Topic            string `yaml:"topic"`
	SecurityProtocol string `yaml:"security_protocol"`
	SASLMechanism    string `yaml:"sasl_mechanism"`
	SASLUsername     string `yaml:"sasl_username"`
	SASLPassword     string `yaml:"sasl_password"`
	Acks             string `yaml:"acks"`
}

type LogParameters struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

type IService interface {
	GetModeMaxShutdownTime() int
	GetPipeline() Pipeline
	GetEndpointBaseURL() string
	GetTickPeriod() time.Duration
	GetDefaultInterval() time.Duration
	GetStatsPeriod() time.Duration
	GetUploadTimeout() time.Duration
	GetVideoParameters() VideoParameters
	GetInferenceParameters() InferenceParameters
	GetDisplayParameters() DisplayParameters
	GetEmitterParameters() EmitterParameters
	GetCollectorParameters() CollectorParameters
	GetDataParameters() DataParameters
	GetPublisherParameters() PublisherParameters
	GetLogParameters() LogParameters
}
