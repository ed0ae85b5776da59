package data

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/khaledhikmat/vs-mood/model"
	"github.com/khaledhikmat/vs-mood/service/config"
	"golang.org/x/xerrors"
)

const (
	uploadsEntity        = "uploads"
	settingsEntity       = "settings"
	errorsEntity         = "errors"
	samplerStatsEntity   = "sampler-stats"
	uploaderStatsEntity  = "uploader-stats"
	collectorStatsEntity = "collector-stats"
)

type settings struct {
	Interval  float64 `json:"interval"`
	UpdatedAt int64   `json:"updatedAt"`
}

// filesDBService keeps every entity as a JSON array in its own file.
type filesDBService struct {
	mu     sync.Mutex
	folder string
}

func NewFilesDB(cfgsvc config.IService) (IService, error) {
	folder := cfgsvc.GetDataParameters().Folder
	if err := os.MkdirAll(folder, 0755); err != nil {
		return nil, xerrors.Errorf("creating data folder %s: %w", folder, err)
	}
	return &filesDBService{folder: folder}, nil
}

func (svc *filesDBService) NewUploadRecord(rec model.UploadRecord) error {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return newEntity(rec, uploadsEntity, svc.folder)
}

func (svc *filesDBService) RetrieveLatestUpload() (model.UploadRecord, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	records, err := retrieveEntities[model.UploadRecord](uploadsEntity, svc.folder)
	if err != nil {
		return model.UploadRecord{}, err
	}
	if len(records) == 0 {
		return model.UploadRecord{}, model.ErrNotFound
	}
	return records[len(records)-1], nil
}

// RetrieveUploads returns up to max records, newest first.
func (svc *filesDBService) RetrieveUploads(max int) ([]model.UploadRecord, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	records, err := retrieveEntities[model.UploadRecord](uploadsEntity, svc.folder)
	if err != nil {
		return nil, err
	}

	result := []model.UploadRecord{}
	for i := len(records) - 1; i >= 0 && len(result) < max; i-- {
		result = append(result, records[i])
	}
	return result, nil
}

func (svc *filesDBService) RetrieveInterval() (float64, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	all, err := retrieveEntities[settings](settingsEntity, svc.folder)
	if err != nil {
		return 0, err
	}
	if len(all) == 0 {
		return 0, model.ErrNotFound
	}
	return all[0].Interval, nil
}

func (svc *filesDBService) UpdateInterval(seconds float64) error {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	// A single settings row, rewritten in place
	return writeEntities([]settings{{Interval: seconds, UpdatedAt: time.Now().Unix()}}, settingsEntity, svc.folder)
}

func (svc *filesDBService) NewError(err interface{}) error {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return newEntity(toErrorData(err, time.Now().Unix()), errorsEntity, svc.folder)
}

func (svc *filesDBService) NewSamplerStats(stats model.SamplerStats) error {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	stats.Timestamp = time.Now().Unix()
	return newEntity(stats, samplerStatsEntity, svc.folder)
}

func (svc *filesDBService) NewUploaderStats(stats model.UploaderStats) error {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	stats.Timestamp = time.Now().Unix()
	return newEntity(stats, uploaderStatsEntity, svc.folder)
}

func (svc *filesDBService) NewCollectorStats(stats model.CollectorStats) error {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	stats.Timestamp = time.Now().Unix()
	return newEntity(stats, collectorStatsEntity, svc.folder)
}

func (svc *filesDBService) Close() error {
	return nil
}

func entityFile(folder, name string) string {
	return filepath.Join(folder, name+".json")
}

func newEntity[T any](entity T, name, folder string) error {
	entities, err := retrieveEntities[T](name, folder)
	if err != nil {
		return err
	}
	return writeEntities(append(entities, entity), name, folder)
}

func writeEntities[T any](entities []T, name, folder string) error {
	data, err := json.MarshalIndent(entities, "", "  ")
	if err != nil {
		return err
	}

	// Write to a temp file first so readers never see a half written array
	output := entityFile(folder, name)
	tmp := output + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, output)
}

func retrieveEntities[T any](name, folder string) ([]T, error) {
	entities := []T{}

	data, err := os.ReadFile(entityFile(folder, name))
	if os.IsNotExist(err) {
		return entities, nil
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(data, &entities); err != nil {
		return nil, xerrors.Errorf("decoding %s: %w", name, err)
	}
	return entities, nil
}
