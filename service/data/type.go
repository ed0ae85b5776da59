package data

import (
	"context"

	"github.com/khaledhikmat/vs-mood/model"
	"github.com/khaledhikmat/vs-mood/service/config"
	"golang.org/x/xerrors"
)

type IService interface {
	NewUploadRecord(rec model.UploadRecord) error
	RetrieveLatestUpload() (model.UploadRecord, error)
	RetrieveUploads(max int) ([]model.UploadRecord, error)
	RetrieveInterval() (float64, error)
	UpdateInterval(seconds float64) error

	NewError(err interface{}) error
	NewSamplerStats(stats model.SamplerStats) error
	NewUploaderStats(stats model.UploaderStats) error
	NewCollectorStats(stats model.CollectorStats) error

	Close() error
}

// New picks the implementation named by the data parameters.
func New(ctx context.Context, cfgsvc config.IService) (IService, error) {
	params := cfgsvc.GetDataParameters()
	switch params.Type {
	case "", "files":
		return NewFilesDB(cfgsvc)
	case "postgres":
		return NewPostgres(ctx, params.PostgresURL)
	default:
		return nil, xerrors.Errorf("unknown data service type %q", params.Type)
	}
}

// errorData is how a reported error is persisted.
type errorData struct {
	Timestamp  int64                  `json:"timestamp"`
	Processor  string                 `json:"processor"`
	Inner      string                 `json:"innerError"`
	Message    string                 `json:"message"`
	StackTrace string                 `json:"stackTrace"`
	Misc       map[string]interface{} `json:"misc"`
}

func toErrorData(err interface{}, now int64) errorData {
	var customErr model.CustomError
	switch e := err.(type) {
	case model.CustomError:
		customErr = e
	case error:
		customErr.Processor = "N/A"
		customErr.Inner = e
		customErr.Message = e.Error()
		customErr.StackTrace = "N/A"
	default:
		customErr.Processor = "N/A"
		customErr.Message = "unknown error"
		customErr.Misc = map[string]interface{}{"value": e}
	}

	inner := ""
	if customErr.Inner != nil {
		inner = customErr.Inner.Error()
	}

	return errorData{
		Timestamp:  now,
		Processor:  customErr.Processor,
		Inner:      inner,
		Message:    customErr.Message,
		StackTrace: customErr.StackTrace,
		Misc:       customErr.Misc,
	}
}
