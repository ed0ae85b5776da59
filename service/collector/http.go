package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/khaledhikmat/vs-mood/model"
	"golang.org/x/xerrors"
)

const maxResponseBytes = 1 << 20

type intervalBody struct {
	Interval float64 `json:"interval"`
}

type httpService struct {
	BaseURL string
	Client  *http.Client
}

// NewHTTP talks to a collector rooted at baseURL. Timeouts are the client's.
func NewHTTP(baseURL string, timeout time.Duration) IService {
	return &httpService{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: timeout},
	}
}

func (svc *httpService) GetInterval(ctx context.Context) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, svc.BaseURL+"/get-interval/", nil)
	if err != nil {
		return 0, xerrors.Errorf("%v: %w", err, model.ErrIntervalFetch)
	}

	body, err := svc.do(req)
	if err != nil {
		return 0, xerrors.Errorf("%v: %w", err, model.ErrIntervalFetch)
	}

	var data intervalBody
	if err := json.Unmarshal(body, &data); err != nil {
		return 0, xerrors.Errorf("decoding interval: %v: %w", err, model.ErrIntervalFetch)
	}
	if data.Interval < 0 {
		return 0, xerrors.Errorf("negative interval %v: %w", data.Interval, model.ErrIntervalFetch)
	}
	return data.Interval, nil
}

func (svc *httpService) SetInterval(ctx context.Context, seconds float64) error {
	payload, err := json.Marshal(intervalBody{Interval: seconds})
	if err != nil {
		return xerrors.Errorf("%v: %w", err, model.ErrIntervalSet)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, svc.BaseURL+"/set-interval/", bytes.NewReader(payload))
	if err != nil {
		return xerrors.Errorf("%v: %w", err, model.ErrIntervalSet)
	}
	req.Header.Set("Content-Type", "application/json")

	if _, err := svc.do(req); err != nil {
		return xerrors.Errorf("%v: %w", err, model.ErrIntervalSet)
	}
	return nil
}

func (svc *httpService) Upload(ctx context.Context, payload model.UploadPayload) (string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fileName := payload.FileName
	if fileName == "" {
		fileName = "image.png"
	}

	part, err := w.CreateFormFile("file", fileName)
	if err != nil {
		return "", xerrors.Errorf("%v: %w", err, model.ErrUpload)
	}
	if _, err := part.Write(payload.Image); err != nil {
		return "", xerrors.Errorf("%v: %w", err, model.ErrUpload)
	}

	fields := [][2]string{
		{"age", strconv.Itoa(payload.Age)},
		{"gender", payload.Gender},
		{"mood", payload.Mood},
	}
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return "", xerrors.Errorf("%v: %w", err, model.ErrUpload)
		}
	}
	if err := w.Close(); err != nil {
		return "", xerrors.Errorf("%v: %w", err, model.ErrUpload)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, svc.BaseURL+"/upload/", &buf)
	if err != nil {
		return "", xerrors.Errorf("%v: %w", err, model.ErrUpload)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	body, err := svc.do(req)
	if err != nil {
		return "", xerrors.Errorf("%v: %w", err, model.ErrUpload)
	}
	return string(body), nil
}

func (svc *httpService) do(req *http.Request) ([]byte, error) {
	resp, err := svc.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%s %s: status %d: %s", req.Method, req.URL.Path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}
