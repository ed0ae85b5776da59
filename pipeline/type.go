package pipeline

import (
	"github.com/khaledhikmat/vs-mood/service/collector"
	"github.com/khaledhikmat/vs-mood/service/config"
	"github.com/khaledhikmat/vs-mood/service/data"
	"github.com/khaledhikmat/vs-mood/service/display"
	"github.com/khaledhikmat/vs-mood/service/emitter"
	"github.com/khaledhikmat/vs-mood/service/inference"
	"github.com/khaledhikmat/vs-mood/service/publisher"
	"github.com/khaledhikmat/vs-mood/service/video"
)

// ServicesFactory carries every collaborator a mode processor may need.
// Detection uses the first six; the collector side uses data and publisher.
type ServicesFactory struct {
	CfgSvc       config.IService
	VideoSvc     video.IService
	InferenceSvc inference.IService
	DisplaySvc   display.IService
	CollectorSvc collector.IService
	EmitterSvc   emitter.IService
	DataSvc      data.IService
	PublisherSvc publisher.IService
}

// State is the lifecycle controller's position.
type State int32

const (
	Uninitialized State = iota
	ModelsReady
	VideoReady
	Detecting
	Stopped
	Error
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case ModelsReady:
		return "models_ready"
	case VideoReady:
		return "video_ready"
	case Detecting:
		return "detecting"
	case Stopped:
		return "stopped"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == Stopped || s == Error
}
