package data

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/khaledhikmat/vs-mood/model"
	"golang.org/x/xerrors"
)

const opTimeout = 5 * time.Second

// postgresService serialises access to a single connection; pgx.Conn is
// not safe for concurrent use.
type postgresService struct {
	mu   sync.Mutex
	conn *pgx.Conn
}

// NewPostgres connects and creates the schema when missing.
func NewPostgres(ctx context.Context, connString string) (IService, error) {
	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		return nil, xerrors.Errorf("connecting to postgres: %w", err)
	}

	if err := initSchema(ctx, conn); err != nil {
		conn.Close(ctx)
		return nil, xerrors.Errorf("failed to initialize database schema: %w", err)
	}

	return &postgresService{conn: conn}, nil
}

func initSchema(ctx context.Context, conn *pgx.Conn) error {
	query := `
		CREATE TABLE IF NOT EXISTS uploads (
			id TEXT PRIMARY KEY,
			age INT NOT NULL,
			gender TEXT NOT NULL,
			mood TEXT NOT NULL,
			file_location TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS uploads_created_at_idx ON uploads (created_at DESC);
		CREATE TABLE IF NOT EXISTS settings (
			id INT PRIMARY KEY CHECK (id = 1),
			interval_seconds DOUBLE PRECISION NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS events (
			id BIGSERIAL PRIMARY KEY,
			kind TEXT NOT NULL,
			payload JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS events_kind_idx ON events (kind);
	`
	_, err := conn.Exec(ctx, query)
	return err
}

func (svc *postgresService) NewUploadRecord(rec model.UploadRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	svc.mu.Lock()
	defer svc.mu.Unlock()

	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	_, err := svc.conn.Exec(ctx, `
		INSERT INTO uploads (id, age, gender, mood, file_location, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, rec.ID, rec.Age, rec.Gender, rec.Mood, rec.FileLocation, rec.Timestamp)
	return err
}

func (svc *postgresService) RetrieveLatestUpload() (model.UploadRecord, error) {
	records, err := svc.RetrieveUploads(1)
	if err != nil {
		return model.UploadRecord{}, err
	}
	if len(records) == 0 {
		return model.UploadRecord{}, model.ErrNotFound
	}
	return records[0], nil
}

func (svc *postgresService) RetrieveUploads(max int) ([]model.UploadRecord, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	svc.mu.Lock()
	defer svc.mu.Unlock()

	rows, err := svc.conn.Query(ctx, `
		SELECT id, age, gender, mood, file_location, created_at
		FROM uploads ORDER BY created_at DESC, id DESC LIMIT $1
	`, max)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []model.UploadRecord{}
	for rows.Next() {
		var rec model.UploadRecord
		if err := rows.Scan(&rec.ID, &rec.Age, &rec.Gender, &rec.Mood, &rec.FileLocation, &rec.Timestamp); err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

func (svc *postgresService) RetrieveInterval() (float64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	svc.mu.Lock()
	defer svc.mu.Unlock()

	var seconds float64
	err := svc.conn.QueryRow(ctx, `SELECT interval_seconds FROM settings WHERE id = 1`).Scan(&seconds)
	if err == pgx.ErrNoRows {
		return 0, model.ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	return seconds, nil
}

func (svc *postgresService) UpdateInterval(seconds float64) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	svc.mu.Lock()
	defer svc.mu.Unlock()

	_, err := svc.conn.Exec(ctx, `
		INSERT INTO settings (id, interval_seconds, updated_at)
		VALUES (1, $1, NOW())
		ON CONFLICT (id) DO UPDATE SET interval_seconds = EXCLUDED.interval_seconds, updated_at = NOW()
	`, seconds)
	return err
}

func (svc *postgresService) NewError(err interface{}) error {
	return svc.newEvent(errorsEntity, toErrorData(err, time.Now().Unix()))
}

func (svc *postgresService) NewSamplerStats(stats model.SamplerStats) error {
	stats.Timestamp = time.Now().Unix()
	return svc.newEvent(samplerStatsEntity, stats)
}

func (svc *postgresService) NewUploaderStats(stats model.UploaderStats) error {
	stats.Timestamp = time.Now().Unix()
	return svc.newEvent(uploaderStatsEntity, stats)
}

func (svc *postgresService) NewCollectorStats(stats model.CollectorStats) error {
	stats.Timestamp = time.Now().Unix()
	return svc.newEvent(collectorStatsEntity, stats)
}

// Errors and stats share one JSONB table keyed by kind.
func (svc *postgresService) newEvent(kind string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	svc.mu.Lock()
	defer svc.mu.Unlock()

	_, err = svc.conn.Exec(ctx, `INSERT INTO events (kind, payload) VALUES ($1, $2)`, kind, data)
	return err
}

func (svc *postgresService) countEvents(ctx context.Context, kind string) (int, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	var n int
	err := svc.conn.QueryRow(ctx, `SELECT COUNT(*) FROM events WHERE kind = $1`, kind).Scan(&n)
	return n, err
}

func (svc *postgresService) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return svc.conn.Close(ctx)
}
